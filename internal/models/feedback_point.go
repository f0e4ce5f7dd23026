package models

import (
	"strings"

	"github.com/noah-isme/coding-coach-api/internal/linespec"
)

// FeedbackPoint is one piece of feedback returned for a category.
// Points are values: they are built once and only ever copied afterwards.
type FeedbackPoint struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Questions   string   `json:"questions"`
	LineNumbers string   `json:"line_numbers"`
	CodeExample string   `json:"code_example"`
	Category    Category `json:"type"`
	Severity    int      `json:"severity"`
}

// FeedbackPointInput carries the schema fields used to build a point.
type FeedbackPointInput struct {
	Title       string
	Summary     string
	Description string
	Questions   string
	LineNumbers string
	CodeExample string
	Category    Category
	Severity    int
}

// NewFeedbackPoint builds a point from schema-validated fields.
func NewFeedbackPoint(id string, in FeedbackPointInput) FeedbackPoint {
	return FeedbackPoint{
		ID:          id,
		Title:       in.Title,
		Summary:     in.Summary,
		Description: in.Description,
		Questions:   in.Questions,
		LineNumbers: in.LineNumbers,
		CodeExample: in.CodeExample,
		Category:    in.Category,
		Severity:    in.Severity,
	}
}

// Lines resolves the point's line spec.
func (p FeedbackPoint) Lines() ([]int, error) {
	return linespec.Parse(p.LineNumbers)
}

// HighlightLines resolves the line spec, treating a malformed spec as no lines.
func (p FeedbackPoint) HighlightLines() []int {
	lines, err := p.Lines()
	if err != nil {
		return nil
	}
	return lines
}

// SeverityLevel returns the display level for the point's severity.
func (p FeedbackPoint) SeverityLevel() SeverityLevel {
	return LookupSeverity(p.Severity)
}

// Transcript renders the point as plain text for follow-up conversations.
func (p FeedbackPoint) Transcript() string {
	return strings.Join([]string{p.Title, p.Description, p.Questions, p.CodeExample}, "\n")
}
