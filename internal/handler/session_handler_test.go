package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coding-coach-api/internal/dto"
	"github.com/noah-isme/coding-coach-api/internal/handler"
	"github.com/noah-isme/coding-coach-api/internal/models"
	"github.com/noah-isme/coding-coach-api/internal/service"
)

// cannedFeedback answers every category with one point on lines 2-3.
type cannedFeedback struct{}

func (cannedFeedback) FetchFeedback(_ context.Context, _ string, category models.Category) (models.FeedbackBatch, error) {
	severity := 2
	if category == models.CategoryBug {
		severity = 5
	}
	return models.FeedbackBatch{
		Category: category,
		Language: "go",
		Points: []models.FeedbackPoint{models.NewFeedbackPoint(fmt.Sprintf("point-%s", category), models.FeedbackPointInput{
			Title:       string(category) + " issue",
			Description: "details",
			LineNumbers: "2-3",
			Category:    category,
			Severity:    severity,
		})},
	}, nil
}

func newSessionApp(t *testing.T, userID string) (*fiber.App, service.SessionService) {
	t.Helper()

	svc := service.NewSessionService(cannedFeedback{}, nil, nil, validator.New(), service.SessionConfig{
		Categories: []models.Category{models.CategoryBug, models.CategoryReadability},
	}, zerolog.Nop())
	t.Cleanup(svc.Close)

	app := fiber.New()
	sessions := app.Group("/sessions", asUser(userID))
	h := handler.NewSessionHandler(svc, zerolog.Nop())
	h.Register(sessions, nil)
	h.RegisterAdmin(app.Group("/admin"))
	return app, svc
}

func createSession(t *testing.T, app *fiber.App) string {
	t.Helper()

	resp := doRequest(t, app, http.MethodPost, "/sessions", nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body envelope[dto.SessionResponse]
	decodeResponse(t, resp, &body)
	require.NotEmpty(t, body.Data.ID)
	return body.Data.ID
}

func waitForFeedback(t *testing.T, app *fiber.App, sessionID string) dto.FeedbackResponse {
	t.Helper()

	var feedback dto.FeedbackResponse
	require.Eventually(t, func() bool {
		resp := doRequest(t, app, http.MethodGet, "/sessions/"+sessionID, nil)
		var body envelope[dto.SessionResponse]
		decodeResponse(t, resp, &body)
		feedback = body.Data.Feedback
		return feedback.Complete
	}, 2*time.Second, 10*time.Millisecond)
	return feedback
}

func TestSessionHandler_SubmitAndReadFeedback(t *testing.T) {
	app, _ := newSessionApp(t, "github|1")
	sessionID := createSession(t, app)

	resp := doRequest(t, app, http.MethodPost, "/sessions/"+sessionID+"/submissions", dto.SubmitCodeRequest{Code: "package main\nfunc main() {\n}\n"})
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var accepted envelope[dto.SubmissionAcceptedResponse]
	decodeResponse(t, resp, &accepted)
	require.Equal(t, uint64(1), accepted.Data.Token)

	feedback := waitForFeedback(t, app, sessionID)
	require.Equal(t, "go", feedback.Language)
	require.Len(t, feedback.Points, 2)
	require.Equal(t, "point-Bug", feedback.Points[0].ID)
	require.Equal(t, "Critical", feedback.Points[0].SeverityLabel)
	require.Equal(t, []int{2, 3}, feedback.Points[0].Lines)

	resp = doRequest(t, app, http.MethodGet, "/sessions/"+sessionID+"/severity-groups", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var groups envelope[[]dto.SeverityGroupResponse]
	decodeResponse(t, resp, &groups)
	require.Len(t, groups.Data, 5)
	require.Len(t, groups.Data[0].Points, 1)
	require.Len(t, groups.Data[3].Points, 1)
}

func TestSessionHandler_HighlightFlow(t *testing.T) {
	app, _ := newSessionApp(t, "github|1")
	sessionID := createSession(t, app)

	resp := doRequest(t, app, http.MethodPost, "/sessions/"+sessionID+"/submissions", dto.SubmitCodeRequest{Code: "a\nb\nc\nd\n"})
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	resp.Body.Close()
	waitForFeedback(t, app, sessionID)

	resp = doRequest(t, app, http.MethodPost, "/sessions/"+sessionID+"/highlight/hover", dto.HighlightRequest{PointID: "point-Bug"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var highlight envelope[dto.HighlightResponse]
	decodeResponse(t, resp, &highlight)
	require.Equal(t, "point-Bug", highlight.Data.ActivePointID)
	require.Equal(t, []int{2, 3}, highlight.Data.Lines)

	resp = doRequest(t, app, http.MethodGet, "/sessions/"+sessionID+"/highlight/lines", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var lines envelope[dto.HighlightLinesResponse]
	decodeResponse(t, resp, &lines)
	require.GreaterOrEqual(t, len(lines.Data.Lines), 4)
	require.Equal(t, "greyed", lines.Data.Lines[0].Class)
	require.Equal(t, "highlighted", lines.Data.Lines[1].Class)
	require.Equal(t, "highlighted", lines.Data.Lines[2].Class)
	require.Equal(t, "greyed", lines.Data.Lines[3].Class)

	resp = doRequest(t, app, http.MethodDelete, "/sessions/"+sessionID+"/highlight/hover", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeResponse(t, resp, &highlight)
	require.Empty(t, highlight.Data.ActivePointID)

	resp = doRequest(t, app, http.MethodPost, "/sessions/"+sessionID+"/highlight/expand", dto.HighlightRequest{PointID: "missing"})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestSessionHandler_EditMarksStale(t *testing.T) {
	app, _ := newSessionApp(t, "github|1")
	sessionID := createSession(t, app)

	resp := doRequest(t, app, http.MethodPost, "/sessions/"+sessionID+"/submissions", dto.SubmitCodeRequest{Code: "x := 1"})
	resp.Body.Close()
	waitForFeedback(t, app, sessionID)

	resp = doRequest(t, app, http.MethodPut, "/sessions/"+sessionID+"/code", dto.EditCodeRequest{Code: "x := 2"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body envelope[dto.FeedbackResponse]
	decodeResponse(t, resp, &body)
	require.True(t, body.Data.Stale)
	require.Len(t, body.Data.Points, 2)
}

func TestSessionHandler_Errors(t *testing.T) {
	app, svc := newSessionApp(t, "github|1")
	sessionID := createSession(t, app)

	resp := doRequest(t, app, http.MethodGet, "/sessions/unknown", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, app, http.MethodPost, "/sessions/"+sessionID+"/submissions", dto.SubmitCodeRequest{})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, app, http.MethodGet, "/sessions/"+sessionID+"/history?limit=abc", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	other, err := svc.Create(context.Background(), "github|2")
	require.NoError(t, err)
	resp = doRequest(t, app, http.MethodGet, "/sessions/"+other.ID, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, app, http.MethodGet, "/sessions/"+sessionID+"/stream", nil)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
	resp.Body.Close()
}

func TestSessionHandler_CreateRequiresUser(t *testing.T) {
	app, _ := newSessionApp(t, "")

	resp := doRequest(t, app, http.MethodPost, "/sessions", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestSessionHandler_AdminListsActiveSessions(t *testing.T) {
	app, _ := newSessionApp(t, "github|1")
	createSession(t, app)
	createSession(t, app)

	resp := doRequest(t, app, http.MethodGet, "/admin/sessions", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body envelope[dto.ActiveSessionsResponse]
	decodeResponse(t, resp, &body)
	require.Equal(t, 2, body.Data.Active)
	require.Len(t, body.Data.Sessions, 2)
}
