package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coding-coach-api/internal/models"
)

func TestFeedbackEventPublisherRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, "coach:feedback")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	publisher := NewFeedbackEventPublisher(client, "coach", nil, testLogger())
	state := models.CategoryState{Category: models.CategoryBug, Status: models.CategoryStatusLoaded, Points: 2}
	require.NoError(t, publisher.Publish(ctx, FeedbackEvent{
		Type:      FeedbackEventCategoryResolved,
		SessionID: "session-1",
		UserID:    "user-1",
		Token:     3,
		Category:  &state,
	}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var event FeedbackEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	require.Equal(t, FeedbackEventCategoryResolved, event.Type)
	require.Equal(t, "session-1", event.SessionID)
	require.Equal(t, uint64(3), event.Token)
	require.NotEmpty(t, event.Source)
	require.False(t, event.SentAt.IsZero())
	require.NotNil(t, event.Category)
	require.Equal(t, models.CategoryBug, event.Category.Category)
}

func TestFeedbackEventPublisherWithoutTransports(t *testing.T) {
	publisher := NewFeedbackEventPublisher(nil, "coach", nil, testLogger())
	require.NoError(t, publisher.Publish(context.Background(), FeedbackEvent{Type: FeedbackEventCycleCompleted}))
}
