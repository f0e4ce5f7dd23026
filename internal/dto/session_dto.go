package dto

import (
	"time"

	"github.com/noah-isme/coding-coach-api/internal/linespec"
	"github.com/noah-isme/coding-coach-api/internal/models"
)

// SubmitCodeRequest starts a new feedback cycle.
type SubmitCodeRequest struct {
	Code string `json:"code" validate:"required,max=200000"`
}

// EditCodeRequest reports the current editor content.
type EditCodeRequest struct {
	Code string `json:"code" validate:"max=200000"`
}

// HighlightRequest selects a feedback point to hover or pin.
type HighlightRequest struct {
	PointID string `json:"point_id" validate:"required"`
}

// FeedbackPointResponse describes a feedback point with its resolved lines.
type FeedbackPointResponse struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Summary       string `json:"summary"`
	Description   string `json:"description"`
	Questions     string `json:"questions"`
	LineNumbers   string `json:"line_numbers"`
	LineLabel     string `json:"line_label"`
	Lines         []int  `json:"lines"`
	CodeExample   string `json:"code_example"`
	Category      string `json:"type"`
	Severity      int    `json:"severity"`
	SeverityLabel string `json:"severity_label"`
	SeverityColor string `json:"severity_color"`
}

// FeedbackResponse is the aggregated feedback of the live submission.
type FeedbackResponse struct {
	Token      uint64                  `json:"token"`
	Language   string                  `json:"language"`
	Complete   bool                    `json:"complete"`
	Stale      bool                    `json:"stale"`
	Categories []models.CategoryState  `json:"categories"`
	Points     []FeedbackPointResponse `json:"points"`
}

// HighlightResponse describes which point drives highlighting.
type HighlightResponse struct {
	ActivePointID  string  `json:"active_point_id,omitempty"`
	HoveredPointID string  `json:"hovered_point_id,omitempty"`
	PinnedPointID  string  `json:"pinned_point_id,omitempty"`
	Lines          []int   `json:"lines"`
	ScrollOffset   float64 `json:"scroll_offset"`
}

// SessionResponse is the full state of a coaching session.
type SessionResponse struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Feedback  FeedbackResponse  `json:"feedback"`
	Highlight HighlightResponse `json:"highlight"`
}

// SubmissionAcceptedResponse acknowledges a submission.
type SubmissionAcceptedResponse struct {
	SessionID string `json:"session_id"`
	Token     uint64 `json:"token"`
}

// TokenResponse describes one syntax token of a rendered line.
type TokenResponse struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// LineResponse is one rendered code line and its highlight class.
type LineResponse struct {
	Number int             `json:"number"`
	Class  string          `json:"class"`
	Text   string          `json:"text"`
	Tokens []TokenResponse `json:"tokens"`
}

// HighlightLinesResponse renders the submitted code against the active point.
type HighlightLinesResponse struct {
	Token         uint64         `json:"token"`
	Language      string         `json:"language"`
	ActivePointID string         `json:"active_point_id,omitempty"`
	ScrollOffset  float64        `json:"scroll_offset"`
	Lines         []LineResponse `json:"lines"`
}

// SeverityGroupResponse is one bucket of the group-by-severity view.
type SeverityGroupResponse struct {
	Severity int                     `json:"severity"`
	Label    string                  `json:"label"`
	Color    string                  `json:"color"`
	Points   []FeedbackPointResponse `json:"points"`
}

// FeedbackHistoryResponse is a stored, completed cycle.
type FeedbackHistoryResponse struct {
	Token          uint64                  `json:"token"`
	Language       string                  `json:"language"`
	Code           string                  `json:"code"`
	CategoryStatus map[string]interface{}  `json:"category_status"`
	CreatedAt      time.Time               `json:"created_at"`
	Points         []FeedbackPointResponse `json:"points"`
}

// NewFeedbackPointResponse converts a point, resolving its lines and severity label.
func NewFeedbackPointResponse(point models.FeedbackPoint) FeedbackPointResponse {
	level := point.SeverityLevel()
	lines := point.HighlightLines()
	if lines == nil {
		lines = []int{}
	}

	return FeedbackPointResponse{
		ID:            point.ID,
		Title:         point.Title,
		Summary:       point.Summary,
		Description:   point.Description,
		Questions:     point.Questions,
		LineNumbers:   point.LineNumbers,
		LineLabel:     linespec.Label(point.LineNumbers),
		Lines:         lines,
		CodeExample:   point.CodeExample,
		Category:      string(point.Category),
		Severity:      point.Severity,
		SeverityLabel: level.Label,
		SeverityColor: level.Color,
	}
}

// NewFeedbackPointResponseSlice converts points preserving order.
func NewFeedbackPointResponseSlice(points []models.FeedbackPoint) []FeedbackPointResponse {
	items := make([]FeedbackPointResponse, 0, len(points))
	for _, point := range points {
		items = append(items, NewFeedbackPointResponse(point))
	}
	return items
}

// NewFeedbackResponse converts an aggregation snapshot.
func NewFeedbackResponse(feedback models.AggregatedFeedback) FeedbackResponse {
	categories := feedback.Categories
	if categories == nil {
		categories = []models.CategoryState{}
	}
	return FeedbackResponse{
		Token:      feedback.Token,
		Language:   feedback.Language,
		Complete:   feedback.Complete,
		Stale:      feedback.Stale,
		Categories: categories,
		Points:     NewFeedbackPointResponseSlice(feedback.Points),
	}
}

// NewSeverityGroupResponseSlice converts the group-by-severity view.
func NewSeverityGroupResponseSlice(groups []models.SeverityGroup) []SeverityGroupResponse {
	items := make([]SeverityGroupResponse, 0, len(groups))
	for _, group := range groups {
		items = append(items, SeverityGroupResponse{
			Severity: group.Level.Value,
			Label:    group.Level.Label,
			Color:    group.Level.Color,
			Points:   NewFeedbackPointResponseSlice(group.Points),
		})
	}
	return items
}

// NewFeedbackHistoryResponse converts a stored submission.
func NewFeedbackHistoryResponse(submission models.FeedbackSubmission) FeedbackHistoryResponse {
	points := make([]models.FeedbackPoint, 0, len(submission.Points))
	for _, record := range submission.Points {
		points = append(points, record.Point())
	}

	status := map[string]interface{}{}
	if submission.CategoryStatus != nil {
		status = map[string]interface{}(submission.CategoryStatus)
	}

	return FeedbackHistoryResponse{
		Token:          submission.Token,
		Language:       submission.Language,
		Code:           submission.Code,
		CategoryStatus: status,
		CreatedAt:      submission.CreatedAt,
		Points:         NewFeedbackPointResponseSlice(points),
	}
}

// SessionSummaryResponse describes an active session for operators.
type SessionSummaryResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     uint64    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// ActiveSessionsResponse lists active sessions.
type ActiveSessionsResponse struct {
	Active   int                      `json:"active"`
	Sessions []SessionSummaryResponse `json:"sessions"`
}
