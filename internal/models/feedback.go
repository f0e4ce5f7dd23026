package models

// FeedbackBatch is one category's response for a submission.
type FeedbackBatch struct {
	Category Category        `json:"category"`
	Language string          `json:"language"`
	Points   []FeedbackPoint `json:"points"`
}

// CategoryStatus tracks a category's progress within a submission cycle.
type CategoryStatus string

// Category states.
const (
	CategoryStatusPending CategoryStatus = "pending"
	CategoryStatusLoaded  CategoryStatus = "loaded"
	CategoryStatusFailed  CategoryStatus = "failed"
)

// CategoryState is the per-category loading indicator.
type CategoryState struct {
	Category Category       `json:"category"`
	Status   CategoryStatus `json:"status"`
	Error    string         `json:"error,omitempty"`
	Points   int            `json:"points"`
}

// AggregatedFeedback is the merged, severity-ordered view of one submission cycle.
type AggregatedFeedback struct {
	Token      uint64          `json:"token"`
	Language   string          `json:"language"`
	Points     []FeedbackPoint `json:"points"`
	Categories []CategoryState `json:"categories"`
	Complete   bool            `json:"complete"`
	Stale      bool            `json:"stale"`
}

// Point finds a point by id.
func (a AggregatedFeedback) Point(id string) (FeedbackPoint, bool) {
	for _, point := range a.Points {
		if point.ID == id {
			return point, true
		}
	}
	return FeedbackPoint{}, false
}

// SeverityGroup is one bucket of the group-by-severity view.
type SeverityGroup struct {
	Level  SeverityLevel   `json:"level"`
	Points []FeedbackPoint `json:"points"`
}

// GroupBySeverity buckets points from Critical down to Informational, keeping
// the input order inside each bucket. Empty buckets are included.
func GroupBySeverity(points []FeedbackPoint) []SeverityGroup {
	groups := make([]SeverityGroup, len(SeverityLevels))
	index := make(map[int]int, len(SeverityLevels))
	for i, level := range SeverityLevels {
		groups[i] = SeverityGroup{Level: level, Points: []FeedbackPoint{}}
		index[level.Value] = i
	}

	for _, point := range points {
		i := index[NormalizeSeverity(point.Severity)]
		groups[i].Points = append(groups[i].Points, point)
	}

	return groups
}
