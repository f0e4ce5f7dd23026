package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coding-coach-api/internal/dto"
	"github.com/noah-isme/coding-coach-api/internal/handler"
	"github.com/noah-isme/coding-coach-api/internal/service"
	"github.com/noah-isme/coding-coach-api/pkg/auth0"
	"github.com/noah-isme/coding-coach-api/pkg/github"
)

type mockRepositoryService struct {
	lastQuery string
	lastPath  string
	err       error
}

func (m *mockRepositoryService) ListRepositories(context.Context, string) ([]dto.RepositoryResponse, error) {
	return []dto.RepositoryResponse{{FullName: "octo/coach"}}, m.err
}

func (m *mockRepositoryService) SearchRepositories(_ context.Context, _ string, query dto.RepositorySearchQuery) ([]dto.RepositoryResponse, error) {
	m.lastQuery = query.Query
	return []dto.RepositoryResponse{}, m.err
}

func (m *mockRepositoryService) Tree(context.Context, string, string, string) (dto.RepositoryTreeResponse, error) {
	return dto.RepositoryTreeResponse{}, m.err
}

func (m *mockRepositoryService) File(_ context.Context, _, owner, repo, path string) (dto.RepositoryContentResponse, error) {
	m.lastPath = path
	if m.err != nil {
		return dto.RepositoryContentResponse{}, m.err
	}
	return dto.RepositoryContentResponse{FullName: owner + "/" + repo, Path: path, Content: "package main", Language: "go"}, nil
}

func newRepositoryApp(svc service.RepositoryImportService, userID string) *fiber.App {
	app := fiber.New()
	handler.NewRepositoryHandler(svc, zerolog.Nop()).Register(app.Group("/github", asUser(userID)))
	return app
}

func TestRepositoryHandler_Contents(t *testing.T) {
	svc := &mockRepositoryService{}
	app := newRepositoryApp(svc, "github|7")

	resp := doRequest(t, app, http.MethodGet, "/github/repos/octo/coach/contents/cmd/api/main%20file.go", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body envelope[dto.RepositoryContentResponse]
	decodeResponse(t, resp, &body)
	require.Equal(t, "octo/coach", body.Data.FullName)
	require.Equal(t, "go", body.Data.Language)
	require.Equal(t, "cmd/api/main file.go", svc.lastPath)
}

func TestRepositoryHandler_Search(t *testing.T) {
	svc := &mockRepositoryService{}
	app := newRepositoryApp(svc, "github|7")

	resp := doRequest(t, app, http.MethodGet, "/github/repos/search?q=coach", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()
	require.Equal(t, "coach", svc.lastQuery)
}

func TestRepositoryHandler_RequiresUser(t *testing.T) {
	app := newRepositoryApp(&mockRepositoryService{}, "")

	resp := doRequest(t, app, http.MethodGet, "/github/repos", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestRepositoryHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid", service.ErrInvalidRepository, fiber.StatusBadRequest},
		{"binary", github.ErrBinaryContent, fiber.StatusUnprocessableEntity},
		{"unsupported", github.ErrUnsupportedFile, fiber.StatusUnprocessableEntity},
		{"missing", github.ErrNotFound, fiber.StatusNotFound},
		{"unlinked", auth0.ErrNoGitHubIdentity, fiber.StatusForbidden},
		{"unavailable", service.ErrIdentityUnavailable, fiber.StatusServiceUnavailable},
		{"upstream", context.DeadlineExceeded, fiber.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newRepositoryApp(&mockRepositoryService{err: tc.err}, "github|7")
			resp := doRequest(t, app, http.MethodGet, "/github/repos/octo/coach/contents/main.go", nil)
			require.Equal(t, tc.status, resp.StatusCode)
			resp.Body.Close()
		})
	}
}
