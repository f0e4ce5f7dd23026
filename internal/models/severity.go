package models

// SeverityLevel describes how a severity value is labelled and coloured.
type SeverityLevel struct {
	Value int    `json:"value"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// Severity bounds.
const (
	SeverityMin = 1
	SeverityMax = 5
)

// SeverityLevels is the single lookup table shared by grouping and presentation,
// ordered from most to least severe.
var SeverityLevels = []SeverityLevel{
	{Value: 5, Label: "Critical", Color: "#dc3545"},
	{Value: 4, Label: "High", Color: "#fd7e14"},
	{Value: 3, Label: "Medium", Color: "#ffc107"},
	{Value: 2, Label: "Low", Color: "#0dcaf0"},
	{Value: 1, Label: "Informational", Color: "#6c757d"},
}

// LookupSeverity returns the level for severity. Values outside 1-5 are Informational.
func LookupSeverity(severity int) SeverityLevel {
	for _, level := range SeverityLevels {
		if level.Value == severity {
			return level
		}
	}
	return SeverityLevels[len(SeverityLevels)-1]
}

// NormalizeSeverity folds out-of-range values into the Informational bucket.
func NormalizeSeverity(severity int) int {
	return LookupSeverity(severity).Value
}
