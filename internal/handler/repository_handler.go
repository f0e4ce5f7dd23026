package handler

import (
	"errors"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coding-coach-api/internal/dto"
	"github.com/noah-isme/coding-coach-api/internal/service"
	"github.com/noah-isme/coding-coach-api/internal/utils"
	"github.com/noah-isme/coding-coach-api/pkg/auth0"
	"github.com/noah-isme/coding-coach-api/pkg/github"
)

// RepositoryHandler lets users browse their GitHub repositories for code to review.
type RepositoryHandler struct {
	service service.RepositoryImportService
	logger  zerolog.Logger
}

// NewRepositoryHandler constructs the handler.
func NewRepositoryHandler(service service.RepositoryImportService, logger zerolog.Logger) *RepositoryHandler {
	return &RepositoryHandler{
		service: service,
		logger:  logger.With().Str("component", "repository_handler").Logger(),
	}
}

// Register binds the repository routes.
func (h *RepositoryHandler) Register(router fiber.Router) {
	router.Get("/repos", h.list)
	router.Get("/repos/search", h.search)
	router.Get("/repos/:owner/:repo/tree", h.tree)
	router.Get("/repos/:owner/:repo/contents/*", h.contents)
}

func (h *RepositoryHandler) list(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	response, err := h.service.ListRepositories(requestContext(c), userID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "repositories retrieved", response)
}

func (h *RepositoryHandler) search(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var query dto.RepositorySearchQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	response, err := h.service.SearchRepositories(requestContext(c), userID, query)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "repositories found", response)
}

func (h *RepositoryHandler) tree(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	response, err := h.service.Tree(requestContext(c), userID, c.Params("owner"), c.Params("repo"))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "repository tree", response)
}

func (h *RepositoryHandler) contents(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	path, err := url.PathUnescape(c.Params("*"))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid path")
	}

	response, err := h.service.File(requestContext(c), userID, c.Params("owner"), c.Params("repo"), path)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "file retrieved", response)
}

func (h *RepositoryHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrInvalidRepository):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, github.ErrUnsupportedFile), errors.Is(err, github.ErrBinaryContent), errors.Is(err, github.ErrNotAFile):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, github.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "repository or file not found")
	case errors.Is(err, github.ErrUnauthorized), errors.Is(err, auth0.ErrNoGitHubIdentity), errors.Is(err, auth0.ErrUserNotFound):
		return utils.SendError(c, fiber.StatusForbidden, "github account not linked")
	case errors.Is(err, service.ErrIdentityUnavailable), errors.Is(err, auth0.ErrNotConfigured):
		return utils.SendError(c, fiber.StatusServiceUnavailable, "github import unavailable")
	case errors.As(err, &validationErrors):
		return utils.SendValidationError(c, validationErrors)
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("repository import failed")
		return utils.SendError(c, fiber.StatusBadGateway, "github request failed")
	}
}
