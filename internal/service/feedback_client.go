package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/coding-coach-api/internal/models"
	"github.com/noah-isme/coding-coach-api/internal/syntax"
	"github.com/noah-isme/coding-coach-api/pkg/ai"
)

// FeedbackFetchError reports that one category's feedback could not be produced.
type FeedbackFetchError struct {
	Category models.Category
	Err      error
}

func (e *FeedbackFetchError) Error() string {
	return fmt.Sprintf("fetch %s feedback: %v", e.Category, e.Err)
}

func (e *FeedbackFetchError) Unwrap() error {
	return e.Err
}

// FeedbackClient requests one category of feedback for a piece of code.
type FeedbackClient interface {
	FetchFeedback(ctx context.Context, code string, category models.Category) (models.FeedbackBatch, error)
}

type feedbackClient struct {
	generator ai.FeedbackGenerator
	newID     func() string
}

// NewFeedbackClient wraps a model generator into a FeedbackClient.
func NewFeedbackClient(generator ai.FeedbackGenerator) FeedbackClient {
	return &feedbackClient{generator: generator, newID: uuid.NewString}
}

func (c *feedbackClient) FetchFeedback(ctx context.Context, code string, category models.Category) (models.FeedbackBatch, error) {
	if c.generator == nil {
		return models.FeedbackBatch{}, &FeedbackFetchError{Category: category, Err: ErrFeedbackUnavailable}
	}

	payload, err := c.generator.RequestFeedback(ctx, ai.FeedbackRequest{Code: code, Category: string(category)})
	if err != nil {
		return models.FeedbackBatch{}, &FeedbackFetchError{Category: category, Err: err}
	}

	points := make([]models.FeedbackPoint, 0, len(payload.FeedbackPoints))
	for _, item := range payload.FeedbackPoints {
		pointCategory, err := models.ParseCategory(item.Type)
		if err != nil {
			return models.FeedbackBatch{}, &FeedbackFetchError{Category: category, Err: err}
		}
		points = append(points, models.NewFeedbackPoint(c.newID(), models.FeedbackPointInput{
			Title:       item.Title,
			Summary:     item.Summary,
			Description: item.Description,
			Questions:   item.Questions,
			LineNumbers: item.LineNumbers,
			CodeExample: item.CodeExample,
			Category:    pointCategory,
			Severity:    item.Severity,
		}))
	}

	return models.FeedbackBatch{
		Category: category,
		Language: syntax.NormalizeLanguage(payload.Language),
		Points:   points,
	}, nil
}

// FeedbackClientFunc adapts a function to FeedbackClient.
type FeedbackClientFunc func(ctx context.Context, code string, category models.Category) (models.FeedbackBatch, error)

// FetchFeedback calls f.
func (f FeedbackClientFunc) FetchFeedback(ctx context.Context, code string, category models.Category) (models.FeedbackBatch, error) {
	return f(ctx, code, category)
}
