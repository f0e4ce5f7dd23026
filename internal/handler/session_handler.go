package handler

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coding-coach-api/internal/dto"
	"github.com/noah-isme/coding-coach-api/internal/service"
	"github.com/noah-isme/coding-coach-api/internal/utils"
)

const streamPingInterval = 30 * time.Second

// SessionHandler exposes coaching sessions, submissions and highlighting.
type SessionHandler struct {
	service service.SessionService
	logger  zerolog.Logger
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(service service.SessionService, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		logger:  logger.With().Str("component", "session_handler").Logger(),
	}
}

// Register wires the session endpoints. limiter guards routes that call the
// model and may be nil.
func (h *SessionHandler) Register(router fiber.Router, limiter fiber.Handler) {
	if limiter == nil {
		limiter = func(c *fiber.Ctx) error { return c.Next() }
	}

	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Post("/:id/submissions", limiter, h.submit)
	router.Put("/:id/code", h.edit)
	router.Get("/:id/severity-groups", h.severityGroups)
	router.Get("/:id/history", h.history)

	router.Post("/:id/highlight/hover", h.hover)
	router.Delete("/:id/highlight/hover", h.clearHover)
	router.Post("/:id/highlight/expand", h.expand)
	router.Delete("/:id/highlight/expand", h.collapse)
	router.Get("/:id/highlight/lines", h.lines)

	router.Get("/:id/stream", h.upgrade, websocket.New(h.stream))
}

// RegisterAdmin wires operator endpoints.
func (h *SessionHandler) RegisterAdmin(router fiber.Router) {
	router.Get("/sessions", h.active)
}

func (h *SessionHandler) create(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	response, err := h.service.Create(requestContext(c), userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "session created", response)
}

func (h *SessionHandler) get(c *fiber.Ctx) error {
	response, err := h.service.Get(requestContext(c), c.Params("id"), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "session retrieved", response)
}

func (h *SessionHandler) submit(c *fiber.Ctx) error {
	var payload dto.SubmitCodeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Submit(requestContext(c), c.Params("id"), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	requestLogger(h.logger, c).Info().Str("session_id", response.SessionID).Uint64("token", response.Token).Msg("feedback requested")
	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "submission accepted", response)
}

func (h *SessionHandler) edit(c *fiber.Ctx) error {
	var payload dto.EditCodeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Edit(requestContext(c), c.Params("id"), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "edit recorded", response)
}

func (h *SessionHandler) severityGroups(c *fiber.Ctx) error {
	response, err := h.service.SeverityGroups(requestContext(c), c.Params("id"), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "severity groups", response)
}

func (h *SessionHandler) history(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil || limit < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	response, err := h.service.History(requestContext(c), c.Params("id"), userIDFromContext(c), limit)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "feedback history", response)
}

func (h *SessionHandler) hover(c *fiber.Ctx) error {
	var payload dto.HighlightRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Hover(requestContext(c), c.Params("id"), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "highlight updated", response)
}

func (h *SessionHandler) clearHover(c *fiber.Ctx) error {
	response, err := h.service.ClearHover(requestContext(c), c.Params("id"), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "highlight updated", response)
}

func (h *SessionHandler) expand(c *fiber.Ctx) error {
	var payload dto.HighlightRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Expand(requestContext(c), c.Params("id"), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "highlight updated", response)
}

func (h *SessionHandler) collapse(c *fiber.Ctx) error {
	response, err := h.service.Collapse(requestContext(c), c.Params("id"), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "highlight updated", response)
}

func (h *SessionHandler) lines(c *fiber.Ctx) error {
	response, err := h.service.Lines(requestContext(c), c.Params("id"), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "highlighted lines", response)
}

func (h *SessionHandler) active(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "active sessions", h.service.Active())
}

// upgrade checks ownership before switching protocols so errors keep their
// HTTP status.
func (h *SessionHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if _, err := h.service.Get(requestContext(c), c.Params("id"), userIDFromContext(c)); err != nil {
		return h.handleError(c, err)
	}
	return c.Next()
}

func (h *SessionHandler) stream(conn *websocket.Conn) {
	sessionID := conn.Params("id")
	userID := websocketUserID(conn)

	updates, cancel, err := h.service.Stream(sessionID, userID)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		_ = conn.Close()
		return
	}
	defer cancel()

	logger := h.logger.With().Str("session_id", sessionID).Str("user_id", userID).Logger()
	logger.Debug().Msg("feedback stream connected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case snapshot, ok := <-updates:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return
			}
			if err := conn.WriteJSON(dto.NewFeedbackResponse(snapshot)); err != nil {
				logger.Debug().Err(err).Msg("feedback stream write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				return
			}
		case <-closed:
			logger.Debug().Msg("feedback stream disconnected")
			return
		}
	}
}

func (h *SessionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "session not found")
	case errors.Is(err, service.ErrPointNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "feedback point not found")
	case errors.Is(err, service.ErrSessionForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "forbidden")
	case errors.As(err, &validationErrors):
		return utils.SendValidationError(c, validationErrors)
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("session operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func websocketUserID(conn *websocket.Conn) string {
	if value, ok := conn.Locals("user_id").(string); ok {
		return value
	}
	return ""
}
