package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/coding-coach-api/internal/models"
)

func setupTestDB(t *testing.T, tables ...interface{}) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(tables...))
	return db
}

func TestFeedbackRepositorySaveAndList(t *testing.T) {
	db := setupTestDB(t, &models.FeedbackSubmission{}, &models.FeedbackPointRecord{})
	repo := NewFeedbackRepository(db)
	ctx := context.Background()

	for token := uint64(1); token <= 2; token++ {
		submission := models.FeedbackSubmission{
			SessionID:      "s-1",
			UserID:         "github|1",
			Token:          token,
			Code:           "print(1)",
			Language:       "python",
			CategoryStatus: datatypes.JSONMap{"Bug": "loaded"},
			Points: []models.FeedbackPointRecord{
				models.NewFeedbackPointRecord(1, models.FeedbackPoint{ID: "b", Title: "second", Severity: 2, LineNumbers: "1"}),
				models.NewFeedbackPointRecord(0, models.FeedbackPoint{ID: "a", Title: "first", Severity: 5, LineNumbers: "1"}),
			},
		}
		require.NoError(t, repo.Save(ctx, &submission))
	}
	other := models.FeedbackSubmission{SessionID: "s-2", UserID: "github|2", Token: 1}
	require.NoError(t, repo.Save(ctx, &other))

	items, err := repo.ListBySession(ctx, "s-1", 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, uint64(2), items[0].Token)
	require.Len(t, items[0].Points, 2)
	require.Equal(t, "first", items[0].Points[0].Title)

	found, err := repo.GetByToken(ctx, "s-1", 1)
	require.NoError(t, err)
	require.Equal(t, "python", found.Language)
	require.Equal(t, "a", found.Points[0].Point().ID)

	_, err = repo.GetByToken(ctx, "s-1", 9)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestConversationRepositoryListsThreadInOrder(t *testing.T) {
	db := setupTestDB(t, &models.ConversationTurn{})
	repo := NewConversationRepository(db)
	ctx := context.Background()

	for _, q := range []string{"why?", "how?"} {
		turn := models.ConversationTurn{SessionID: "s", PointID: "p", Question: q, Answer: "because", Status: models.ConversationTurnAnswered}
		require.NoError(t, repo.Save(ctx, &turn))
	}
	other := models.ConversationTurn{SessionID: "s", PointID: "q", Question: "other", Status: models.ConversationTurnFailed}
	require.NoError(t, repo.Save(ctx, &other))

	turns, err := repo.ListByPoint(ctx, "s", "p")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.Equal(t, "why?", turns[0].Question)
	require.Equal(t, "how?", turns[1].Question)
	require.True(t, turns[0].Answered())
}
