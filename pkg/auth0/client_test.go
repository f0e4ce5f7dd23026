package auth0

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCredentialsFlow(t *testing.T) {
	var tokenRequests atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		tokenRequests.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))
		assert.NotEmpty(t, r.PostForm.Get("audience"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "mgmt-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/api/v2/users/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer mgmt-token", r.Header.Get("Authorization"))
		if r.URL.Path != "/api/v2/users/github|42" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"user_id": "github|42",
			"identities": []map[string]interface{}{
				{"provider": "google-oauth2", "access_token": "google-token"},
				{"provider": "github", "access_token": "gh-token"},
			},
		})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(context.Background(), Config{
		ClientID:     "client-id",
		ClientSecret: "secret",
		BaseURL:      server.URL,
		HTTPClient:   server.Client(),
	})
	require.NoError(t, err)

	token, err := client.GitHubAccessToken(context.Background(), "github|42")
	require.NoError(t, err)
	require.Equal(t, "gh-token", token)

	_, err = client.GitHubAccessToken(context.Background(), "github|7")
	require.ErrorIs(t, err, ErrUserNotFound)
	require.Equal(t, int32(1), tokenRequests.Load())
}

func TestManagementTokenWithoutGitHubIdentity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer static", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user_id":"auth0|1","identities":[{"provider":"auth0","user_id":"1"}]}`))
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), Config{ManagementToken: "static", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.GitHubAccessToken(context.Background(), "auth0|1")
	require.ErrorIs(t, err, ErrNoGitHubIdentity)
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Domain: "example.auth0.com"})
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewClient(context.Background(), Config{})
	require.ErrorIs(t, err, ErrNotConfigured)
}
