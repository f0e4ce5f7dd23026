package models

import (
	"fmt"
	"strings"
)

// Category is one of the feedback lenses requested independently per submission.
type Category string

// Supported feedback categories.
const (
	CategoryPerformance Category = "Performance"
	CategoryReadability Category = "Readability"
	CategoryAdvanced    Category = "Advanced"
	CategoryBug         Category = "Bug"
)

// DefaultCategories returns the categories requested for every submission.
func DefaultCategories() []Category {
	return []Category{CategoryPerformance, CategoryReadability, CategoryAdvanced, CategoryBug}
}

// ParseCategory resolves a category name case-insensitively.
func ParseCategory(value string) (Category, error) {
	for _, category := range DefaultCategories() {
		if strings.EqualFold(strings.TrimSpace(value), string(category)) {
			return category, nil
		}
	}
	return "", fmt.Errorf("unknown feedback category %q", value)
}

// Valid reports whether c is one of the supported categories.
func (c Category) Valid() bool {
	_, err := ParseCategory(string(c))
	return err == nil
}
