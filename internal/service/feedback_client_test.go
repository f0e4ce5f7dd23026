package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coding-coach-api/internal/models"
	"github.com/noah-isme/coding-coach-api/pkg/ai"
)

type stubGenerator struct {
	payload ai.FeedbackPayload
	err     error
	request ai.FeedbackRequest
}

func (s *stubGenerator) RequestFeedback(_ context.Context, req ai.FeedbackRequest) (ai.FeedbackPayload, error) {
	s.request = req
	return s.payload, s.err
}

func TestFeedbackClientBuildsBatch(t *testing.T) {
	generator := &stubGenerator{payload: ai.FeedbackPayload{
		Language: "Python",
		FeedbackPoints: []ai.FeedbackPointPayload{{
			Title: "Name things", Summary: "Pick clearer labels", Description: "d", Questions: "q",
			LineNumbers: "1-2", CodeExample: "total = 0", Type: "Readability", Severity: 2,
		}},
	}}
	client := NewFeedbackClient(generator)

	batch, err := client.FetchFeedback(context.Background(), "x = 0", models.CategoryReadability)
	require.NoError(t, err)
	require.Equal(t, "Readability", generator.request.Category)
	require.Equal(t, models.CategoryReadability, batch.Category)
	require.Equal(t, "python", batch.Language)
	require.Len(t, batch.Points, 1)

	point := batch.Points[0]
	require.NotEmpty(t, point.ID)
	require.Equal(t, "Name things", point.Title)
	require.Equal(t, "Pick clearer labels", point.Summary)
	require.Equal(t, "1-2", point.LineNumbers)
	require.Equal(t, "total = 0", point.CodeExample)
	require.Equal(t, models.CategoryReadability, point.Category)
	require.Equal(t, 2, point.Severity)
}

func TestFeedbackClientWrapsFailures(t *testing.T) {
	client := NewFeedbackClient(&stubGenerator{err: errors.New("status 500")})

	_, err := client.FetchFeedback(context.Background(), "x", models.CategoryBug)
	var fetchErr *FeedbackFetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, models.CategoryBug, fetchErr.Category)

	_, err = NewFeedbackClient(nil).FetchFeedback(context.Background(), "x", models.CategoryBug)
	require.ErrorIs(t, err, ErrFeedbackUnavailable)
}
