package integration_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coding-coach-api/internal/config"
	"github.com/noah-isme/coding-coach-api/internal/database"
	"github.com/noah-isme/coding-coach-api/internal/dto"
	"github.com/noah-isme/coding-coach-api/internal/handler"
	"github.com/noah-isme/coding-coach-api/internal/middleware"
	"github.com/noah-isme/coding-coach-api/internal/models"
	"github.com/noah-isme/coding-coach-api/internal/repository"
	"github.com/noah-isme/coding-coach-api/internal/router"
	"github.com/noah-isme/coding-coach-api/internal/service"
	"github.com/noah-isme/coding-coach-api/pkg/ai"
	"github.com/noah-isme/coding-coach-api/pkg/auth0"
	"github.com/noah-isme/coding-coach-api/pkg/github"
)

const (
	jwtSecret = "integration-secret"
	userID    = "github|42"
)

type integrationGenerator struct{}

func (integrationGenerator) RequestFeedback(_ context.Context, req ai.FeedbackRequest) (ai.FeedbackPayload, error) {
	severity := 2
	if req.Category == string(models.CategoryBug) {
		severity = 5
	}
	return ai.FeedbackPayload{
		Language: "python",
		FeedbackPoints: []ai.FeedbackPointPayload{{
			Title:       req.Category,
			Description: "look at line 1",
			LineNumbers: "1",
			Type:        req.Category,
			Severity:    severity,
		}},
	}, nil
}

type stack struct {
	app    *fiber.App
	redis  *redis.Client
	github *atomic.Int32
}

func newGitHubServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()

	writeJSON := func(w http.ResponseWriter, payload interface{}) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/demo", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, map[string]interface{}{"full_name": "octo/demo", "default_branch": "main"})
	})
	mux.HandleFunc("/repos/octo/demo/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"sha": "root",
			"tree": []map[string]interface{}{
				{"path": "app.py", "type": "blob", "size": 24, "sha": "b1"},
				{"path": "logo.png", "type": "blob", "size": 40, "sha": "b2"},
			},
		})
	})
	mux.HandleFunc("/repos/octo/demo/contents/app.py", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gh-user-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]interface{}{
			"type":     "file",
			"path":     "app.py",
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte("def total(xs):\n    return sum(xs)\n")),
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newAuth0Server(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/users/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"user_id":    userID,
			"identities": []map[string]interface{}{{"provider": "github", "access_token": "gh-user-token"}},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func setupStack(t *testing.T) stack {
	t.Helper()

	db, err := database.Connect(database.DriverSQLite, "file:coaching_e2e?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)
	cfg := config.Config{AppName: "Coding Coach API", FeedbackCategories: models.DefaultCategories()}

	events := service.NewFeedbackEventPublisher(redisClient, "coach", nil, logger)
	sessions := service.NewSessionService(service.NewFeedbackClient(integrationGenerator{}), repository.NewFeedbackRepository(db), events, validate, service.SessionConfig{
		Categories: cfg.FeedbackCategories,
	}, logger)
	t.Cleanup(sessions.Close)

	auth0Client, err := auth0.NewClient(context.Background(), auth0.Config{ManagementToken: "mgmt", BaseURL: newAuth0Server(t).URL})
	require.NoError(t, err)

	calls := &atomic.Int32{}
	githubServer := newGitHubServer(t, calls)
	identity := service.NewIdentityService(auth0Client, time.Minute, logger)
	imports := service.NewRepositoryImportService(identity, service.NewGitHubClientFactory(github.WithBaseURL(githubServer.URL)), redisClient, 0, validate, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SessionHandler:    handler.NewSessionHandler(sessions, logger),
		RepositoryHandler: handler.NewRepositoryHandler(imports, logger),
		JWTMiddleware:     middleware.JWTProtected(jwtSecret),
	})

	return stack{app: app, redis: redisClient, github: calls}
}

func authorizedRequest(t *testing.T, app *fiber.App, method, path string, body interface{}, target interface{}) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": userID, "exp": time.Now().Add(time.Hour).Unix()})
	signed, err := token.SignedString([]byte(jwtSecret))
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+signed)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	if target != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
	}
	return resp.StatusCode
}

func TestImportSubmitAndReviewFlow(t *testing.T) {
	s := setupStack(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sub := s.redis.Subscribe(ctx, "coach:feedback")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	var tree struct {
		Data dto.RepositoryTreeResponse `json:"data"`
	}
	require.Equal(t, http.StatusOK, authorizedRequest(t, s.app, http.MethodGet, "/api/v1/github/repos/octo/demo/tree", nil, &tree))
	require.Len(t, tree.Data.Files, 1)
	require.Equal(t, "app.py", tree.Data.Files[0].Path)

	require.Equal(t, http.StatusOK, authorizedRequest(t, s.app, http.MethodGet, "/api/v1/github/repos/octo/demo/tree", nil, nil))
	require.Equal(t, int32(1), s.github.Load(), "second tree lookup is served from cache")

	var file struct {
		Data dto.RepositoryContentResponse `json:"data"`
	}
	require.Equal(t, http.StatusOK, authorizedRequest(t, s.app, http.MethodGet, "/api/v1/github/repos/octo/demo/contents/app.py", nil, &file))
	require.Equal(t, "python", file.Data.Language)

	var created struct {
		Data dto.SessionResponse `json:"data"`
	}
	require.Equal(t, http.StatusCreated, authorizedRequest(t, s.app, http.MethodPost, "/api/v1/sessions", nil, &created))
	sessionID := created.Data.ID

	require.Equal(t, http.StatusAccepted, authorizedRequest(t, s.app, http.MethodPost, "/api/v1/sessions/"+sessionID+"/submissions", dto.SubmitCodeRequest{Code: file.Data.Content}, nil))

	completed := false
	for !completed {
		msg, err := sub.ReceiveMessage(ctx)
		require.NoError(t, err)

		var event service.FeedbackEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
		require.Equal(t, sessionID, event.SessionID)
		if event.Type == service.FeedbackEventCycleCompleted {
			require.NotNil(t, event.Feedback)
			require.Len(t, event.Feedback.Points, 4)
			require.Equal(t, string(models.CategoryBug), event.Feedback.Points[0].Category)
			completed = true
		}
	}

	var history struct {
		Data []dto.FeedbackHistoryResponse `json:"data"`
	}
	require.Eventually(t, func() bool {
		status := authorizedRequest(t, s.app, http.MethodGet, "/api/v1/sessions/"+sessionID+"/history", nil, &history)
		return status == http.StatusOK && len(history.Data) == 1
	}, 2*time.Second, 20*time.Millisecond)
	require.Equal(t, uint64(1), history.Data[0].Token)
	require.Equal(t, file.Data.Content, history.Data[0].Code)
	require.Len(t, history.Data[0].Points, 4)
}

func TestRoutesRequireAuthentication(t *testing.T) {
	s := setupStack(t)

	for _, path := range []string{"/api/v1/sessions/abc", "/api/v1/github/repos", "/api/v1/admin/sessions"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp, err := s.app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		resp.Body.Close()
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Coding Coach API", resp.Header.Get("X-Application"))
	resp.Body.Close()
}
