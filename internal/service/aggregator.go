package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/coding-coach-api/internal/models"
	"github.com/noah-isme/coding-coach-api/internal/observability"
)

const aggregatorSubscriberBuffer = 16

// ErrFeedbackUnavailable indicates no model client is configured.
var ErrFeedbackUnavailable = errors.New("feedback generator unavailable")

// CompletedCycle is handed to the completion hook once every category of a
// submission has resolved.
type CompletedCycle struct {
	Code     string
	Feedback models.AggregatedFeedback
}

// AggregatorConfig tunes a FeedbackAggregator.
type AggregatorConfig struct {
	Categories []models.Category
	// Timeout bounds each category request. Zero leaves requests unbounded.
	Timeout    time.Duration
	Logger     zerolog.Logger
	OnResolved func(models.AggregatedFeedback, models.CategoryState)
	OnComplete func(CompletedCycle)
}

// FeedbackAggregator fans a submission out to every category concurrently and
// merges whatever has resolved into a severity-ordered list. Only resolutions
// carrying the current submission token are applied.
//
// OnResolved and OnComplete run one at a time in the order resolutions were
// applied, so a cycle's completion always follows its category resolutions and
// precedes any hook of a later cycle.
type FeedbackAggregator struct {
	client     FeedbackClient
	categories []models.Category
	timeout    time.Duration
	logger     zerolog.Logger
	onResolved func(models.AggregatedFeedback, models.CategoryState)
	onComplete func(CompletedCycle)

	mu          sync.Mutex
	token       uint64
	code        string
	stale       bool
	cancel      context.CancelFunc
	batches     []models.FeedbackBatch
	states      []models.CategoryState
	language    string
	merged      []models.FeedbackPoint
	completed   bool
	subscribers map[int]*aggregatorSubscriber
	nextSubID   int
	closed      bool
	hooks       []func()

	// hookMu is held by whichever goroutine is draining hooks.
	hookMu sync.Mutex
}

type aggregatorSubscriber struct {
	ch   chan models.AggregatedFeedback
	once sync.Once
}

func (s *aggregatorSubscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// NewFeedbackAggregator builds an aggregator over client.
func NewFeedbackAggregator(client FeedbackClient, cfg AggregatorConfig) *FeedbackAggregator {
	categories := cfg.Categories
	if len(categories) == 0 {
		categories = models.DefaultCategories()
	}

	return &FeedbackAggregator{
		client:      client,
		categories:  append([]models.Category(nil), categories...),
		timeout:     cfg.Timeout,
		logger:      cfg.Logger.With().Str("component", "feedback_aggregator").Logger(),
		onResolved:  cfg.OnResolved,
		onComplete:  cfg.OnComplete,
		subscribers: make(map[int]*aggregatorSubscriber),
	}
}

// Submit starts a new cycle for code and returns its submission token. All
// state of the previous cycle is discarded and its requests are cancelled.
func (a *FeedbackAggregator) Submit(code string) uint64 {
	a.mu.Lock()
	if a.closed {
		token := a.token
		a.mu.Unlock()
		return token
	}

	if a.cancel != nil {
		a.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())

	a.token++
	token := a.token
	a.code = code
	a.stale = false
	a.cancel = cancel
	a.batches = nil
	a.language = ""
	a.merged = nil
	a.completed = false
	a.states = make([]models.CategoryState, len(a.categories))
	for i, category := range a.categories {
		a.states[i] = models.CategoryState{Category: category, Status: models.CategoryStatusPending}
	}
	a.broadcastLocked(a.snapshotLocked())
	a.mu.Unlock()

	a.logger.Debug().Uint64("token", token).Int("categories", len(a.categories)).Msg("submission started")

	for _, category := range a.categories {
		go a.fetch(ctx, token, code, category)
	}

	return token
}

func (a *FeedbackAggregator) fetch(ctx context.Context, token uint64, code string, category models.Category) {
	requestCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		requestCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	batch, err := a.client.FetchFeedback(requestCtx, code, category)
	a.resolve(token, category, batch, err)
}

func (a *FeedbackAggregator) resolve(token uint64, category models.Category, batch models.FeedbackBatch, err error) {
	a.mu.Lock()
	if token != a.token || a.closed {
		a.mu.Unlock()
		observability.StaleResolutions().Inc()
		a.logger.Debug().Uint64("token", token).Str("category", string(category)).Msg("discarding stale resolution")
		return
	}

	state := a.stateLocked(category)
	if state == nil || state.Status != models.CategoryStatusPending {
		a.mu.Unlock()
		return
	}

	if err != nil {
		state.Status = models.CategoryStatusFailed
		state.Error = err.Error()
		a.logger.Warn().Err(err).Uint64("token", token).Str("category", string(category)).Msg("category feedback failed")
	} else {
		state.Status = models.CategoryStatusLoaded
		state.Points = len(batch.Points)
		a.batches = append(a.batches, batch)
		if a.language == "" {
			a.language = batch.Language
		}
		a.merged = mergeBatches(a.batches)
	}
	observability.FeedbackResults().WithLabelValues(string(category), string(state.Status)).Inc()

	resolved := *state
	snapshot := a.snapshotLocked()
	a.broadcastLocked(snapshot)

	fireComplete := snapshot.Complete && !a.completed
	if fireComplete {
		a.completed = true
	}
	if a.onResolved != nil {
		a.hooks = append(a.hooks, func() { a.onResolved(snapshot, resolved) })
	}
	if fireComplete && a.onComplete != nil {
		cycle := CompletedCycle{Code: a.code, Feedback: snapshot}
		a.hooks = append(a.hooks, func() { a.onComplete(cycle) })
	}
	a.mu.Unlock()

	a.runHooks()
}

// runHooks drains queued hooks in order. Hooks run without a.mu held.
func (a *FeedbackAggregator) runHooks() {
	a.hookMu.Lock()
	defer a.hookMu.Unlock()

	for {
		a.mu.Lock()
		if len(a.hooks) == 0 {
			a.mu.Unlock()
			return
		}
		hook := a.hooks[0]
		a.hooks[0] = nil
		a.hooks = a.hooks[1:]
		a.mu.Unlock()

		hook()
	}
}

// mergeBatches concatenates batches in arrival order and stable-sorts the result
// by severity, most severe first.
func mergeBatches(batches []models.FeedbackBatch) []models.FeedbackPoint {
	total := 0
	for _, batch := range batches {
		total += len(batch.Points)
	}

	merged := make([]models.FeedbackPoint, 0, total)
	for _, batch := range batches {
		merged = append(merged, batch.Points...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return models.NormalizeSeverity(merged[i].Severity) > models.NormalizeSeverity(merged[j].Severity)
	})
	return merged
}

// MarkEdited records the current editor content. When it differs from the
// submitted code the snapshot is flagged stale until the next Submit.
func (a *FeedbackAggregator) MarkEdited(code string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token == 0 {
		return false
	}

	stale := code != a.code
	if stale != a.stale {
		a.stale = stale
		a.broadcastLocked(a.snapshotLocked())
	}
	return a.stale
}

// Token returns the current submission token, zero before the first Submit.
func (a *FeedbackAggregator) Token() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token
}

// Code returns the code of the live submission.
func (a *FeedbackAggregator) Code() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.code
}

// Snapshot returns the live aggregation.
func (a *FeedbackAggregator) Snapshot() models.AggregatedFeedback {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// GroupBySeverity returns the live points bucketed from Critical to Informational.
func (a *FeedbackAggregator) GroupBySeverity() []models.SeverityGroup {
	return models.GroupBySeverity(a.Snapshot().Points)
}

// Subscribe returns a channel receiving a snapshot after every change, starting
// with the current one. A subscriber that falls behind loses its oldest buffered
// snapshots, never the latest.
func (a *FeedbackAggregator) Subscribe() (<-chan models.AggregatedFeedback, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	sub := &aggregatorSubscriber{ch: make(chan models.AggregatedFeedback, aggregatorSubscriberBuffer)}
	if a.closed {
		sub.close()
		return sub.ch, func() {}
	}

	id := a.nextSubID
	a.nextSubID++
	a.subscribers[id] = sub
	sub.ch <- a.snapshotLocked()

	return sub.ch, func() {
		a.mu.Lock()
		delete(a.subscribers, id)
		a.mu.Unlock()
		sub.close()
	}
}

// Close cancels in-flight requests and closes every subscription.
func (a *FeedbackAggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	a.closed = true
	if a.cancel != nil {
		a.cancel()
	}
	for id, sub := range a.subscribers {
		sub.close()
		delete(a.subscribers, id)
	}
}

func (a *FeedbackAggregator) stateLocked(category models.Category) *models.CategoryState {
	for i := range a.states {
		if a.states[i].Category == category {
			return &a.states[i]
		}
	}
	return nil
}

func (a *FeedbackAggregator) snapshotLocked() models.AggregatedFeedback {
	complete := a.token > 0
	for _, state := range a.states {
		if state.Status == models.CategoryStatusPending {
			complete = false
			break
		}
	}

	points := make([]models.FeedbackPoint, len(a.merged))
	copy(points, a.merged)
	states := make([]models.CategoryState, len(a.states))
	copy(states, a.states)

	return models.AggregatedFeedback{
		Token:      a.token,
		Language:   a.language,
		Points:     points,
		Categories: states,
		Complete:   complete,
		Stale:      a.stale,
	}
}

func (a *FeedbackAggregator) broadcastLocked(snapshot models.AggregatedFeedback) {
	for _, sub := range a.subscribers {
		select {
		case sub.ch <- snapshot:
			continue
		default:
		}

		// Only broadcastLocked sends, so one freed slot is enough.
		select {
		case <-sub.ch:
			a.logger.Debug().Uint64("token", snapshot.Token).Msg("dropping oldest snapshot for slow subscriber")
		default:
		}
		select {
		case sub.ch <- snapshot:
		default:
		}
	}
}
