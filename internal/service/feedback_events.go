package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coding-coach-api/internal/dto"
	"github.com/noah-isme/coding-coach-api/internal/models"
)

// Feedback event types.
const (
	FeedbackEventCategoryResolved = "feedback.category_resolved"
	FeedbackEventCycleCompleted   = "feedback.cycle_completed"
)

// FeedbackEvent is published whenever a category resolves or a cycle completes.
type FeedbackEvent struct {
	Type      string                `json:"type"`
	Source    string                `json:"source"`
	SessionID string                `json:"session_id"`
	UserID    string                `json:"user_id"`
	Token     uint64                `json:"token"`
	Category  *models.CategoryState `json:"category,omitempty"`
	Feedback  *dto.FeedbackResponse `json:"feedback,omitempty"`
	SentAt    time.Time             `json:"sent_at"`
}

// FeedbackEventPublisher fans feedback events out to the configured brokers.
type FeedbackEventPublisher interface {
	Publish(ctx context.Context, event FeedbackEvent) error
}

type feedbackEventPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	logger       zerolog.Logger
}

// NewFeedbackEventPublisher publishes on "<channelBase>:feedback" over Redis and
// "<channelBase>.feedback" over NATS. Either transport may be nil.
func NewFeedbackEventPublisher(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) FeedbackEventPublisher {
	redisChannel := ""
	natsSubject := ""
	if channelBase != "" {
		redisChannel = channelBase + ":feedback"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".feedback"
	}

	return &feedbackEventPublisher{
		redis:        redisClient,
		redisChannel: redisChannel,
		nats:         natsConn,
		natsSubject:  natsSubject,
		nodeID:       uuid.NewString(),
		logger:       logger.With().Str("component", "feedback_events").Logger(),
	}
}

func (p *feedbackEventPublisher) Publish(ctx context.Context, event FeedbackEvent) error {
	if (p.redis == nil || p.redisChannel == "") && (p.nats == nil || p.natsSubject == "") {
		return nil
	}

	event.Source = p.nodeID
	if event.SentAt.IsZero() {
		event.SentAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if p.redis != nil && p.redisChannel != "" {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			return err
		}
	}

	p.logger.Debug().Str("type", event.Type).Str("session_id", event.SessionID).Uint64("token", event.Token).Msg("feedback event published")
	return nil
}
