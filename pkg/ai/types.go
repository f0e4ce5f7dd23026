package ai

import "context"

// FeedbackRequest asks for one category of feedback on a piece of code.
type FeedbackRequest struct {
	Code     string
	Category string
}

// FeedbackPayload mirrors the structured output schema returned by the model.
type FeedbackPayload struct {
	Language       string                 `json:"language"`
	FeedbackPoints []FeedbackPointPayload `json:"feedback_points"`
}

// FeedbackPointPayload is a single schema-conforming feedback point.
type FeedbackPointPayload struct {
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Questions   string `json:"questions"`
	LineNumbers string `json:"line_numbers"`
	CodeExample string `json:"code_example"`
	Type        string `json:"type"`
	Severity    int    `json:"severity"`
}

// ConversationTurn is a previous question and the answer it received.
type ConversationTurn struct {
	Question string
	Answer   string
}

// ConversationRequest carries the context of a follow-up question about a feedback point.
type ConversationRequest struct {
	Code     string
	Point    string
	History  []ConversationTurn
	Question string
}

// FeedbackGenerator produces categorised feedback for code.
type FeedbackGenerator interface {
	RequestFeedback(ctx context.Context, req FeedbackRequest) (FeedbackPayload, error)
}

// Conversationalist answers follow-up questions about a feedback point.
type Conversationalist interface {
	Continue(ctx context.Context, req ConversationRequest) (string, error)
}
