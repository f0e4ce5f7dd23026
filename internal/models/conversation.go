package models

import "time"

// Conversation turn states.
const (
	ConversationTurnAnswered = "answered"
	ConversationTurnFailed   = "failed"
)

// ConversationTurn is one follow-up question about a feedback point and its reply.
type ConversationTurn struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"size:64;index:idx_conversation_point;not null" json:"session_id"`
	PointID   string    `gorm:"size:64;index:idx_conversation_point;not null" json:"point_id"`
	UserID    string    `gorm:"size:128;index" json:"user_id"`
	Question  string    `gorm:"type:text" json:"question"`
	Answer    string    `gorm:"type:text" json:"answer"`
	Status    string    `gorm:"size:16;not null" json:"status"`
	Error     string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Answered reports whether the turn produced a reply.
func (t ConversationTurn) Answered() bool {
	return t.Status == ConversationTurnAnswered
}
