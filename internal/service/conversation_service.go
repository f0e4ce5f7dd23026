package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coding-coach-api/internal/dto"
	"github.com/noah-isme/coding-coach-api/internal/models"
	"github.com/noah-isme/coding-coach-api/internal/observability"
	"github.com/noah-isme/coding-coach-api/internal/repository"
	"github.com/noah-isme/coding-coach-api/pkg/ai"
)

var (
	// ErrConversationUnavailable indicates no conversational model is configured.
	ErrConversationUnavailable = errors.New("conversation model unavailable")
	// ErrEmptyQuestion indicates the question was empty after sanitisation.
	ErrEmptyQuestion = errors.New("question empty after sanitization")
)

// ConversationError reports a failed follow-up for a single feedback point.
type ConversationError struct {
	PointID string
	Err     error
}

func (e *ConversationError) Error() string {
	return fmt.Sprintf("conversation about point %s failed: %v", e.PointID, e.Err)
}

func (e *ConversationError) Unwrap() error {
	return e.Err
}

// ConversationService runs the follow-up discussion attached to feedback points.
type ConversationService interface {
	Thread(ctx context.Context, sessionID, userID, pointID string) (dto.ConversationThreadResponse, error)
	Ask(ctx context.Context, sessionID, userID, pointID string, req dto.ConversationQuestionRequest) (dto.ConversationThreadResponse, error)
}

type conversationService struct {
	points    PointResolver
	repo      repository.ConversationRepository
	model     ai.Conversationalist
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewConversationService creates a conversation service.
func NewConversationService(points PointResolver, repo repository.ConversationRepository, model ai.Conversationalist, validate *validator.Validate, logger zerolog.Logger) ConversationService {
	return &conversationService{
		points:    points,
		repo:      repo,
		model:     model,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "conversation_service").Logger(),
	}
}

func (s *conversationService) Thread(ctx context.Context, sessionID, userID, pointID string) (dto.ConversationThreadResponse, error) {
	resolved, err := s.points.ResolvePoint(sessionID, userID, pointID)
	if err != nil {
		return dto.ConversationThreadResponse{}, err
	}

	turns, err := s.repo.ListByPoint(ctx, resolved.SessionID, resolved.Point.ID)
	if err != nil {
		return dto.ConversationThreadResponse{}, err
	}

	return dto.NewConversationThreadResponse(resolved.Point, turns), nil
}

// Ask sends the question with the point's context and prior answered turns.
// A model failure is stored as a failed turn and returned inline in the thread.
func (s *conversationService) Ask(ctx context.Context, sessionID, userID, pointID string, req dto.ConversationQuestionRequest) (dto.ConversationThreadResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ConversationThreadResponse{}, err
	}

	// markup is stripped; entities are decoded back so code fragments survive
	question := strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(req.Question)))
	if question == "" {
		return dto.ConversationThreadResponse{}, ErrEmptyQuestion
	}

	if s.model == nil {
		return dto.ConversationThreadResponse{}, ErrConversationUnavailable
	}

	resolved, err := s.points.ResolvePoint(sessionID, userID, pointID)
	if err != nil {
		return dto.ConversationThreadResponse{}, err
	}

	previous, err := s.repo.ListByPoint(ctx, resolved.SessionID, resolved.Point.ID)
	if err != nil {
		return dto.ConversationThreadResponse{}, err
	}

	history := make([]ai.ConversationTurn, 0, len(previous))
	for _, turn := range previous {
		if !turn.Answered() {
			continue
		}
		history = append(history, ai.ConversationTurn{Question: turn.Question, Answer: turn.Answer})
	}

	turn := models.ConversationTurn{
		SessionID: resolved.SessionID,
		PointID:   resolved.Point.ID,
		UserID:    userID,
		Question:  question,
		Status:    models.ConversationTurnAnswered,
	}

	answer, err := s.model.Continue(ctx, ai.ConversationRequest{
		Code:     resolved.Code,
		Point:    resolved.Point.Transcript(),
		History:  history,
		Question: question,
	})
	if err != nil {
		convErr := &ConversationError{PointID: resolved.Point.ID, Err: err}
		turn.Status = models.ConversationTurnFailed
		turn.Error = convErr.Error()
		s.logger.Warn().Err(err).Str("session_id", resolved.SessionID).Str("point_id", resolved.Point.ID).Msg("follow-up question failed")
	} else {
		turn.Answer = answer
	}
	observability.ConversationTurns().WithLabelValues(turn.Status).Inc()

	if err := s.repo.Save(ctx, &turn); err != nil {
		return dto.ConversationThreadResponse{}, err
	}

	return dto.NewConversationThreadResponse(resolved.Point, append(previous, turn)), nil
}
