package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/coding-coach-api/internal/dto"
	"github.com/noah-isme/coding-coach-api/internal/models"
	"github.com/noah-isme/coding-coach-api/internal/observability"
	"github.com/noah-isme/coding-coach-api/internal/repository"
	"github.com/noah-isme/coding-coach-api/internal/syntax"
)

const (
	defaultSweepInterval  = time.Minute
	sessionPersistTimeout = 10 * time.Second
)

var (
	// ErrSessionNotFound indicates the session does not exist or was swept.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionForbidden indicates the session belongs to another user.
	ErrSessionForbidden = errors.New("session belongs to another user")
	// ErrPointNotFound indicates the point is not part of the live feedback.
	ErrPointNotFound = errors.New("feedback point not found")
)

// SessionConfig tunes the session manager.
type SessionConfig struct {
	Categories      []models.Category
	FeedbackTimeout time.Duration
	// IdleTTL removes sessions untouched for longer. Zero keeps them forever.
	IdleTTL       time.Duration
	SweepInterval time.Duration
	Highlight     HighlightConfig
}

// ResolvedPoint is a live feedback point with the code it refers to.
type ResolvedPoint struct {
	SessionID string
	Code      string
	Language  string
	Point     models.FeedbackPoint
}

// PointResolver looks up live feedback points on behalf of a user.
type PointResolver interface {
	ResolvePoint(sessionID, userID, pointID string) (ResolvedPoint, error)
}

// SessionService owns coaching sessions: one aggregator and one highlight
// controller per session.
type SessionService interface {
	PointResolver
	Create(ctx context.Context, userID string) (dto.SessionResponse, error)
	Get(ctx context.Context, sessionID, userID string) (dto.SessionResponse, error)
	Submit(ctx context.Context, sessionID, userID string, req dto.SubmitCodeRequest) (dto.SubmissionAcceptedResponse, error)
	Edit(ctx context.Context, sessionID, userID string, req dto.EditCodeRequest) (dto.FeedbackResponse, error)
	SeverityGroups(ctx context.Context, sessionID, userID string) ([]dto.SeverityGroupResponse, error)
	Stream(sessionID, userID string) (<-chan models.AggregatedFeedback, func(), error)
	History(ctx context.Context, sessionID, userID string, limit int) ([]dto.FeedbackHistoryResponse, error)
	Hover(ctx context.Context, sessionID, userID string, req dto.HighlightRequest) (dto.HighlightResponse, error)
	ClearHover(ctx context.Context, sessionID, userID string) (dto.HighlightResponse, error)
	Expand(ctx context.Context, sessionID, userID string, req dto.HighlightRequest) (dto.HighlightResponse, error)
	Collapse(ctx context.Context, sessionID, userID string) (dto.HighlightResponse, error)
	Lines(ctx context.Context, sessionID, userID string) (dto.HighlightLinesResponse, error)
	Active() dto.ActiveSessionsResponse
	Start(ctx context.Context)
	Close()
}

type coachSession struct {
	id        string
	userID    string
	createdAt time.Time
	lastSeen  atomic.Int64

	// mu serialises submissions, edits and highlight changes so a hover never
	// lands on a point of a discarded cycle.
	mu         sync.Mutex
	aggregator *FeedbackAggregator
	highlight  *HighlightController
}

func (s *coachSession) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *coachSession) idleSince() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

type sessionService struct {
	client    FeedbackClient
	repo      repository.FeedbackRepository
	events    FeedbackEventPublisher
	validator *validator.Validate
	cfg       SessionConfig
	logger    zerolog.Logger
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*coachSession
}

// NewSessionService creates a session manager. repo and events may be nil.
func NewSessionService(client FeedbackClient, repo repository.FeedbackRepository, events FeedbackEventPublisher, validate *validator.Validate, cfg SessionConfig, logger zerolog.Logger) SessionService {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}

	return &sessionService{
		client:    client,
		repo:      repo,
		events:    events,
		validator: validate,
		cfg:       cfg,
		logger:    logger.With().Str("component", "session_service").Logger(),
		now:       time.Now,
		sessions:  make(map[string]*coachSession),
	}
}

func (s *sessionService) Create(ctx context.Context, userID string) (dto.SessionResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return dto.SessionResponse{}, ErrSessionForbidden
	}

	now := s.now().UTC()
	session := &coachSession{
		id:        uuid.NewString(),
		userID:    userID,
		createdAt: now,
		highlight: NewHighlightController(s.cfg.Highlight),
	}
	session.touch(now)

	sessionID := session.id
	session.aggregator = NewFeedbackAggregator(s.client, AggregatorConfig{
		Categories: s.cfg.Categories,
		Timeout:    s.cfg.FeedbackTimeout,
		Logger:     s.logger.With().Str("session_id", sessionID).Logger(),
		OnResolved: func(feedback models.AggregatedFeedback, state models.CategoryState) {
			s.publish(FeedbackEvent{
				Type:      FeedbackEventCategoryResolved,
				SessionID: sessionID,
				UserID:    userID,
				Token:     feedback.Token,
				Category:  &state,
			})
		},
		OnComplete: func(cycle CompletedCycle) {
			s.persist(sessionID, userID, cycle)
		},
	})

	s.mu.Lock()
	s.sessions[session.id] = session
	active := len(s.sessions)
	s.mu.Unlock()

	observability.ActiveSessions().Set(float64(active))
	s.logger.Info().Str("session_id", session.id).Str("user_id", userID).Msg("session created")

	return s.sessionResponse(session), nil
}

func (s *sessionService) Get(ctx context.Context, sessionID, userID string) (dto.SessionResponse, error) {
	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return dto.SessionResponse{}, err
	}
	return s.sessionResponse(session), nil
}

func (s *sessionService) Submit(ctx context.Context, sessionID, userID string, req dto.SubmitCodeRequest) (dto.SubmissionAcceptedResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SubmissionAcceptedResponse{}, err
	}

	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return dto.SubmissionAcceptedResponse{}, err
	}

	session.mu.Lock()
	token := session.aggregator.Submit(req.Code)
	session.highlight.Reset()
	session.mu.Unlock()

	s.logger.Info().Str("session_id", session.id).Uint64("token", token).Int("code_bytes", len(req.Code)).Msg("code submitted")

	return dto.SubmissionAcceptedResponse{SessionID: session.id, Token: token}, nil
}

func (s *sessionService) Edit(ctx context.Context, sessionID, userID string, req dto.EditCodeRequest) (dto.FeedbackResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.FeedbackResponse{}, err
	}

	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return dto.FeedbackResponse{}, err
	}

	session.mu.Lock()
	session.aggregator.MarkEdited(req.Code)
	snapshot := session.aggregator.Snapshot()
	session.mu.Unlock()

	return dto.NewFeedbackResponse(snapshot), nil
}

func (s *sessionService) SeverityGroups(ctx context.Context, sessionID, userID string) ([]dto.SeverityGroupResponse, error) {
	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewSeverityGroupResponseSlice(session.aggregator.GroupBySeverity()), nil
}

func (s *sessionService) Stream(sessionID, userID string) (<-chan models.AggregatedFeedback, func(), error) {
	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return nil, nil, err
	}

	updates, cancel := session.aggregator.Subscribe()
	return updates, cancel, nil
}

func (s *sessionService) History(ctx context.Context, sessionID, userID string, limit int) ([]dto.FeedbackHistoryResponse, error) {
	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if s.repo == nil {
		return []dto.FeedbackHistoryResponse{}, nil
	}

	submissions, err := s.repo.ListBySession(ctx, session.id, limit)
	if err != nil {
		return nil, err
	}

	items := make([]dto.FeedbackHistoryResponse, 0, len(submissions))
	for _, submission := range submissions {
		items = append(items, dto.NewFeedbackHistoryResponse(submission))
	}
	return items, nil
}

func (s *sessionService) Hover(ctx context.Context, sessionID, userID string, req dto.HighlightRequest) (dto.HighlightResponse, error) {
	return s.selectPoint(sessionID, userID, req, func(h *HighlightController, point models.FeedbackPoint) {
		h.SetHover(point)
	})
}

func (s *sessionService) ClearHover(ctx context.Context, sessionID, userID string) (dto.HighlightResponse, error) {
	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return dto.HighlightResponse{}, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	session.highlight.ClearHover()
	return newHighlightResponse(session.highlight.State()), nil
}

func (s *sessionService) Expand(ctx context.Context, sessionID, userID string, req dto.HighlightRequest) (dto.HighlightResponse, error) {
	return s.selectPoint(sessionID, userID, req, func(h *HighlightController, point models.FeedbackPoint) {
		h.SetExpanded(point)
	})
}

func (s *sessionService) Collapse(ctx context.Context, sessionID, userID string) (dto.HighlightResponse, error) {
	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return dto.HighlightResponse{}, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	session.highlight.ClearExpanded()
	return newHighlightResponse(session.highlight.State()), nil
}

func (s *sessionService) selectPoint(sessionID, userID string, req dto.HighlightRequest, apply func(*HighlightController, models.FeedbackPoint)) (dto.HighlightResponse, error) {
	req.PointID = strings.TrimSpace(req.PointID)
	if err := s.validator.Struct(req); err != nil {
		return dto.HighlightResponse{}, err
	}

	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return dto.HighlightResponse{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	point, ok := session.aggregator.Snapshot().Point(req.PointID)
	if !ok {
		return dto.HighlightResponse{}, ErrPointNotFound
	}
	apply(session.highlight, point)

	return newHighlightResponse(session.highlight.State()), nil
}

func (s *sessionService) Lines(ctx context.Context, sessionID, userID string) (dto.HighlightLinesResponse, error) {
	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return dto.HighlightLinesResponse{}, err
	}

	session.mu.Lock()
	snapshot := session.aggregator.Snapshot()
	code := session.aggregator.Code()
	state := session.highlight.State()
	session.mu.Unlock()

	response := dto.HighlightLinesResponse{
		Token:        snapshot.Token,
		Language:     snapshot.Language,
		ScrollOffset: state.ScrollOffset,
		Lines:        []dto.LineResponse{},
	}
	if state.Active != nil {
		response.ActivePointID = state.Active.ID
	}
	if snapshot.Token == 0 {
		return response, nil
	}

	rendered := syntax.Tokenize(snapshot.Language, code)
	classes := session.highlight.ClassifyAll(len(rendered))
	for i, line := range rendered {
		tokens := make([]dto.TokenResponse, 0, len(line.Tokens))
		for _, token := range line.Tokens {
			tokens = append(tokens, dto.TokenResponse{Text: token.Text, Type: token.Type})
		}
		response.Lines = append(response.Lines, dto.LineResponse{
			Number: i + 1,
			Class:  string(classes[i]),
			Text:   line.Plain(),
			Tokens: tokens,
		})
	}

	return response, nil
}

func (s *sessionService) ResolvePoint(sessionID, userID, pointID string) (ResolvedPoint, error) {
	session, err := s.lookup(sessionID, userID)
	if err != nil {
		return ResolvedPoint{}, err
	}

	session.mu.Lock()
	snapshot := session.aggregator.Snapshot()
	code := session.aggregator.Code()
	session.mu.Unlock()

	point, ok := snapshot.Point(strings.TrimSpace(pointID))
	if !ok {
		return ResolvedPoint{}, ErrPointNotFound
	}

	return ResolvedPoint{
		SessionID: session.id,
		Code:      code,
		Language:  snapshot.Language,
		Point:     point,
	}, nil
}

func (s *sessionService) Active() dto.ActiveSessionsResponse {
	s.mu.RLock()
	summaries := make([]dto.SessionSummaryResponse, 0, len(s.sessions))
	for _, session := range s.sessions {
		summaries = append(summaries, dto.SessionSummaryResponse{
			ID:        session.id,
			UserID:    session.userID,
			Token:     session.aggregator.Token(),
			CreatedAt: session.createdAt,
			LastSeen:  session.idleSince().UTC(),
		})
	}
	s.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})

	return dto.ActiveSessionsResponse{Active: len(summaries), Sessions: summaries}
}

// Start sweeps idle sessions until ctx is done.
func (s *sessionService) Start(ctx context.Context) {
	if s.cfg.IdleTTL <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.sweepIdle(s.now()); removed > 0 {
					s.logger.Info().Int("removed", removed).Msg("idle sessions swept")
				}
			}
		}
	}()
}

func (s *sessionService) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*coachSession)
	s.mu.Unlock()

	for _, session := range sessions {
		session.aggregator.Close()
	}
	observability.ActiveSessions().Set(0)
}

func (s *sessionService) sweepIdle(now time.Time) int {
	if s.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-s.cfg.IdleTTL)

	s.mu.Lock()
	var expired []*coachSession
	for id, session := range s.sessions {
		if session.idleSince().Before(cutoff) {
			expired = append(expired, session)
			delete(s.sessions, id)
		}
	}
	active := len(s.sessions)
	s.mu.Unlock()

	for _, session := range expired {
		session.aggregator.Close()
	}
	observability.ActiveSessions().Set(float64(active))

	return len(expired)
}

func (s *sessionService) lookup(sessionID, userID string) (*coachSession, error) {
	s.mu.RLock()
	session, ok := s.sessions[strings.TrimSpace(sessionID)]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.userID != userID {
		return nil, ErrSessionForbidden
	}

	session.touch(s.now())
	return session, nil
}

func (s *sessionService) sessionResponse(session *coachSession) dto.SessionResponse {
	return dto.SessionResponse{
		ID:        session.id,
		CreatedAt: session.createdAt,
		Feedback:  dto.NewFeedbackResponse(session.aggregator.Snapshot()),
		Highlight: newHighlightResponse(session.highlight.State()),
	}
}

func (s *sessionService) persist(sessionID, userID string, cycle CompletedCycle) {
	ctx, cancel := context.WithTimeout(context.Background(), sessionPersistTimeout)
	defer cancel()

	if s.repo != nil {
		status := datatypes.JSONMap{}
		for _, state := range cycle.Feedback.Categories {
			status[string(state.Category)] = string(state.Status)
		}

		records := make([]models.FeedbackPointRecord, 0, len(cycle.Feedback.Points))
		for i, point := range cycle.Feedback.Points {
			records = append(records, models.NewFeedbackPointRecord(i, point))
		}

		submission := models.FeedbackSubmission{
			SessionID:      sessionID,
			UserID:         userID,
			Token:          cycle.Feedback.Token,
			Code:           cycle.Code,
			Language:       cycle.Feedback.Language,
			CategoryStatus: status,
			Points:         records,
		}
		if err := s.repo.Save(ctx, &submission); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sessionID).Uint64("token", cycle.Feedback.Token).Msg("failed to persist feedback cycle")
		}
	}

	feedback := dto.NewFeedbackResponse(cycle.Feedback)
	s.publishWithContext(ctx, FeedbackEvent{
		Type:      FeedbackEventCycleCompleted,
		SessionID: sessionID,
		UserID:    userID,
		Token:     cycle.Feedback.Token,
		Feedback:  &feedback,
	})
}

func (s *sessionService) publish(event FeedbackEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), sessionPersistTimeout)
	defer cancel()
	s.publishWithContext(ctx, event)
}

func (s *sessionService) publishWithContext(ctx context.Context, event FeedbackEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("type", event.Type).Str("session_id", event.SessionID).Msg("failed to publish feedback event")
	}
}

func newHighlightResponse(state HighlightState) dto.HighlightResponse {
	response := dto.HighlightResponse{
		Lines:        state.Lines,
		ScrollOffset: state.ScrollOffset,
	}
	if response.Lines == nil {
		response.Lines = []int{}
	}
	if state.Active != nil {
		response.ActivePointID = state.Active.ID
	}
	if state.Hovered != nil {
		response.HoveredPointID = state.Hovered.ID
	}
	if state.Pinned != nil {
		response.PinnedPointID = state.Pinned.ID
	}
	return response
}
