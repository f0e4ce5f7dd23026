package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coding-coach-api/internal/dto"
	"github.com/noah-isme/coding-coach-api/internal/service"
	"github.com/noah-isme/coding-coach-api/internal/utils"
)

// ConversationHandler exposes the follow-up discussion of feedback points.
type ConversationHandler struct {
	service service.ConversationService
	logger  zerolog.Logger
}

// NewConversationHandler constructs the handler.
func NewConversationHandler(service service.ConversationService, logger zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: service,
		logger:  logger.With().Str("component", "conversation_handler").Logger(),
	}
}

// Register binds conversation routes under the sessions group.
func (h *ConversationHandler) Register(router fiber.Router, limiter fiber.Handler) {
	if limiter == nil {
		limiter = func(c *fiber.Ctx) error { return c.Next() }
	}

	router.Get("/:id/points/:pointId/conversation", h.thread)
	router.Post("/:id/points/:pointId/conversation", limiter, h.ask)
}

func (h *ConversationHandler) thread(c *fiber.Ctx) error {
	response, err := h.service.Thread(requestContext(c), c.Params("id"), userIDFromContext(c), c.Params("pointId"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "conversation retrieved", response)
}

func (h *ConversationHandler) ask(c *fiber.Ctx) error {
	var payload dto.ConversationQuestionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Ask(requestContext(c), c.Params("id"), userIDFromContext(c), c.Params("pointId"), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "question answered", response)
}

func (h *ConversationHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrPointNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSessionForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrEmptyQuestion):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrConversationUnavailable):
		return utils.SendError(c, fiber.StatusServiceUnavailable, "conversation model unavailable")
	case errors.As(err, &validationErrors):
		return utils.SendValidationError(c, validationErrors)
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("conversation operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
