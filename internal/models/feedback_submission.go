package models

import (
	"time"

	"gorm.io/datatypes"
)

// FeedbackSubmission records a completed submission cycle.
type FeedbackSubmission struct {
	ID             uint                  `gorm:"primaryKey" json:"id"`
	SessionID      string                `gorm:"size:64;index;not null" json:"session_id"`
	UserID         string                `gorm:"size:128;index;not null" json:"user_id"`
	Token          uint64                `gorm:"not null" json:"token"`
	Code           string                `gorm:"type:text" json:"code"`
	Language       string                `gorm:"size:64" json:"language"`
	CategoryStatus datatypes.JSONMap     `json:"category_status"`
	CreatedAt      time.Time             `json:"created_at"`
	Points         []FeedbackPointRecord `gorm:"foreignKey:SubmissionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"points"`
}

// FeedbackPointRecord is the stored form of a FeedbackPoint.
type FeedbackPointRecord struct {
	ID           uint   `gorm:"primaryKey" json:"-"`
	SubmissionID uint   `gorm:"index;not null" json:"-"`
	PointID      string `gorm:"size:64;index" json:"id"`
	Position     int    `json:"position"`
	Title        string `gorm:"size:255" json:"title"`
	Summary      string `gorm:"type:text" json:"summary"`
	Description  string `gorm:"type:text" json:"description"`
	Questions    string `gorm:"type:text" json:"questions"`
	LineNumbers  string `gorm:"size:255" json:"line_numbers"`
	CodeExample  string `gorm:"type:text" json:"code_example"`
	Category     string `gorm:"size:32" json:"type"`
	Severity     int    `json:"severity"`
}

// NewFeedbackPointRecord converts a point for storage.
func NewFeedbackPointRecord(position int, point FeedbackPoint) FeedbackPointRecord {
	return FeedbackPointRecord{
		PointID:     point.ID,
		Position:    position,
		Title:       point.Title,
		Summary:     point.Summary,
		Description: point.Description,
		Questions:   point.Questions,
		LineNumbers: point.LineNumbers,
		CodeExample: point.CodeExample,
		Category:    string(point.Category),
		Severity:    point.Severity,
	}
}

// Point converts the record back into a FeedbackPoint.
func (r FeedbackPointRecord) Point() FeedbackPoint {
	return NewFeedbackPoint(r.PointID, FeedbackPointInput{
		Title:       r.Title,
		Summary:     r.Summary,
		Description: r.Description,
		Questions:   r.Questions,
		LineNumbers: r.LineNumbers,
		CodeExample: r.CodeExample,
		Category:    Category(r.Category),
		Severity:    r.Severity,
	})
}
