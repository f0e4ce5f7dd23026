package service

import (
	"sync"

	"github.com/noah-isme/coding-coach-api/internal/linespec"
	"github.com/noah-isme/coding-coach-api/internal/models"
)

// LineClass is the rendering classification of a code line.
type LineClass string

// Line classifications.
const (
	LineHighlighted LineClass = "highlighted"
	LineGreyed      LineClass = "greyed"
	LineNormal      LineClass = "normal"
)

// Default scroll tuning; both are presentation parameters.
const (
	DefaultLineHeightPx = 21.0
	DefaultViewportPx   = 600.0
)

// HighlightConfig tunes scroll targeting.
type HighlightConfig struct {
	LineHeightPx float64
	ViewportPx   float64
}

// HighlightState is a read-only view of the controller.
type HighlightState struct {
	Active       *models.FeedbackPoint `json:"active,omitempty"`
	Hovered      *models.FeedbackPoint `json:"hovered,omitempty"`
	Pinned       *models.FeedbackPoint `json:"pinned,omitempty"`
	Lines        []int                 `json:"lines"`
	ScrollOffset float64               `json:"scroll_offset"`
}

// HighlightController tracks the active feedback point and classifies code
// lines against it. A pinned point wins over hover until it is cleared.
type HighlightController struct {
	cfg HighlightConfig

	mu      sync.RWMutex
	hovered *models.FeedbackPoint
	pinned  *models.FeedbackPoint
	lines   []int
	lineSet map[int]struct{}
}

// NewHighlightController builds a controller with cfg, applying defaults.
func NewHighlightController(cfg HighlightConfig) *HighlightController {
	if cfg.LineHeightPx <= 0 {
		cfg.LineHeightPx = DefaultLineHeightPx
	}
	if cfg.ViewportPx <= 0 {
		cfg.ViewportPx = DefaultViewportPx
	}
	return &HighlightController{cfg: cfg}
}

// SetHover makes point active unless a point is pinned.
func (h *HighlightController) SetHover(point models.FeedbackPoint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.hovered = &point
	h.refreshLocked()
}

// ClearHover drops the hovered point, falling back to the pinned one.
func (h *HighlightController) ClearHover() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.hovered = nil
	h.refreshLocked()
}

// SetExpanded pins point until ClearExpanded is called.
func (h *HighlightController) SetExpanded(point models.FeedbackPoint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.pinned = &point
	h.refreshLocked()
}

// ClearExpanded unpins the pinned point.
func (h *HighlightController) ClearExpanded() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.pinned = nil
	h.refreshLocked()
}

// Reset clears hover and pin, used when a new submission invalidates all points.
func (h *HighlightController) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.hovered = nil
	h.pinned = nil
	h.lines = nil
	h.lineSet = nil
}

// Active returns the point currently driving highlighting.
func (h *HighlightController) Active() (models.FeedbackPoint, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	active := h.activeLocked()
	if active == nil {
		return models.FeedbackPoint{}, false
	}
	return *active, true
}

// Classify returns the classification of the 1-based line.
func (h *HighlightController) Classify(line int) LineClass {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.classifyLocked(line)
}

// ClassifyAll classifies lines 1..lineCount.
func (h *HighlightController) ClassifyAll(lineCount int) []LineClass {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if lineCount < 0 {
		lineCount = 0
	}
	classes := make([]LineClass, lineCount)
	for i := range classes {
		classes[i] = h.classifyLocked(i + 1)
	}
	return classes
}

// TargetScrollOffset returns the pixel offset that brings the first referenced
// line near the vertical centre of the viewport.
func (h *HighlightController) TargetScrollOffset() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.scrollOffsetLocked()
}

// State returns a copy of the controller state.
func (h *HighlightController) State() HighlightState {
	h.mu.RLock()
	defer h.mu.RUnlock()

	state := HighlightState{
		Lines:        append([]int{}, h.lines...),
		ScrollOffset: h.scrollOffsetLocked(),
	}
	if active := h.activeLocked(); active != nil {
		copied := *active
		state.Active = &copied
	}
	if h.hovered != nil {
		copied := *h.hovered
		state.Hovered = &copied
	}
	if h.pinned != nil {
		copied := *h.pinned
		state.Pinned = &copied
	}
	return state
}

func (h *HighlightController) activeLocked() *models.FeedbackPoint {
	if h.pinned != nil {
		return h.pinned
	}
	return h.hovered
}

// refreshLocked caches the parsed lines of the active point.
func (h *HighlightController) refreshLocked() {
	active := h.activeLocked()
	if active == nil {
		h.lines = nil
		h.lineSet = nil
		return
	}
	h.lines = active.HighlightLines()
	h.lineSet = linespec.Set(h.lines)
}

func (h *HighlightController) classifyLocked(line int) LineClass {
	if h.activeLocked() == nil {
		return LineNormal
	}
	if _, ok := h.lineSet[line]; ok {
		return LineHighlighted
	}
	return LineGreyed
}

func (h *HighlightController) scrollOffsetLocked() float64 {
	first, ok := linespec.Min(h.lines)
	if !ok {
		return 0
	}
	offset := float64(first-1)*h.cfg.LineHeightPx - h.cfg.ViewportPx/2
	if offset < 0 {
		return 0
	}
	return offset
}
