package dto

import (
	"time"

	"github.com/noah-isme/coding-coach-api/internal/models"
)

// ConversationQuestionRequest asks a follow-up question about a feedback point.
type ConversationQuestionRequest struct {
	Question string `json:"question" validate:"required,max=4000"`
}

// ConversationTurnResponse is one question with its answer or failure.
type ConversationTurnResponse struct {
	ID        uint      `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationThreadResponse is the discussion attached to a feedback point.
type ConversationThreadResponse struct {
	PointID string                     `json:"point_id"`
	Point   FeedbackPointResponse      `json:"point"`
	Turns   []ConversationTurnResponse `json:"turns"`
}

// NewConversationTurnResponse converts a stored turn.
func NewConversationTurnResponse(turn models.ConversationTurn) ConversationTurnResponse {
	return ConversationTurnResponse{
		ID:        turn.ID,
		Question:  turn.Question,
		Answer:    turn.Answer,
		Status:    turn.Status,
		Error:     turn.Error,
		CreatedAt: turn.CreatedAt,
	}
}

// NewConversationThreadResponse assembles a thread for point.
func NewConversationThreadResponse(point models.FeedbackPoint, turns []models.ConversationTurn) ConversationThreadResponse {
	items := make([]ConversationTurnResponse, 0, len(turns))
	for _, turn := range turns {
		items = append(items, NewConversationTurnResponse(turn))
	}
	return ConversationThreadResponse{
		PointID: point.ID,
		Point:   NewFeedbackPointResponse(point),
		Turns:   items,
	}
}
