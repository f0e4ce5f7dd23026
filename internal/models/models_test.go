package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFeedbackPointKeepsFields(t *testing.T) {
	in := FeedbackPointInput{
		Title:       "Avoid repeated lookups",
		Summary:     "Cache the value once",
		Description: "The map is read on every iteration.",
		Questions:   "What changes between iterations?",
		LineNumbers: "3,10-12",
		CodeExample: "v := m[k]",
		Category:    CategoryPerformance,
		Severity:    4,
	}

	point := NewFeedbackPoint("p-1", in)
	require.Equal(t, "p-1", point.ID)
	require.Equal(t, in.Title, point.Title)
	require.Equal(t, in.Summary, point.Summary)
	require.Equal(t, in.Description, point.Description)
	require.Equal(t, in.Questions, point.Questions)
	require.Equal(t, in.LineNumbers, point.LineNumbers)
	require.Equal(t, in.CodeExample, point.CodeExample)
	require.Equal(t, in.Category, point.Category)
	require.Equal(t, in.Severity, point.Severity)
	require.Equal(t, []int{3, 10, 11, 12}, point.HighlightLines())

	record := NewFeedbackPointRecord(0, point)
	require.Equal(t, point, record.Point())
}

func TestFeedbackPointMalformedLinesHighlightNothing(t *testing.T) {
	point := NewFeedbackPoint("p", FeedbackPointInput{LineNumbers: ""})
	_, err := point.Lines()
	require.Error(t, err)
	require.Empty(t, point.HighlightLines())
}

func TestLookupSeverityFallsBackToInformational(t *testing.T) {
	require.Equal(t, "Critical", LookupSeverity(5).Label)
	require.Equal(t, "Informational", LookupSeverity(1).Label)
	require.Equal(t, "Informational", LookupSeverity(0).Label)
	require.Equal(t, "Informational", LookupSeverity(9).Label)
	require.Equal(t, 1, NormalizeSeverity(-3))
}

func TestGroupBySeverity(t *testing.T) {
	points := []FeedbackPoint{
		{ID: "a", Severity: 5},
		{ID: "b", Severity: 2},
		{ID: "c", Severity: 7},
		{ID: "d", Severity: 5},
	}

	groups := GroupBySeverity(points)
	require.Len(t, groups, 5)
	require.Equal(t, "Critical", groups[0].Level.Label)
	require.Equal(t, []string{"a", "d"}, ids(groups[0].Points))
	require.Empty(t, groups[1].Points)
	require.Equal(t, []string{"b"}, ids(groups[3].Points))
	require.Equal(t, "Informational", groups[4].Level.Label)
	require.Equal(t, []string{"c"}, ids(groups[4].Points))
}

func TestParseCategory(t *testing.T) {
	category, err := ParseCategory("bug")
	require.NoError(t, err)
	require.Equal(t, CategoryBug, category)

	_, err = ParseCategory("security")
	require.Error(t, err)
	require.False(t, Category("Style").Valid())
}

func ids(points []FeedbackPoint) []string {
	out := make([]string, 0, len(points))
	for _, p := range points {
		out = append(out, p.ID)
	}
	return out
}
