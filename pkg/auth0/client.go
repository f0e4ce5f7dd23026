package auth0

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const githubProvider = "github"

var (
	// ErrNoGitHubIdentity indicates the user has no linked GitHub identity.
	ErrNoGitHubIdentity = errors.New("user has no github identity")
	// ErrUserNotFound indicates the management API does not know the user.
	ErrUserNotFound = errors.New("auth0 user not found")
	// ErrNotConfigured indicates neither client credentials nor a management token are set.
	ErrNotConfigured = errors.New("auth0 management api not configured")
)

// Config describes how to reach the Auth0 management API.
type Config struct {
	Domain       string
	ClientID     string
	ClientSecret string
	// Audience defaults to https://<domain>/api/v2/.
	Audience string
	// ManagementToken is a pre-issued token used instead of client credentials.
	ManagementToken string
	// BaseURL overrides https://<domain>, for tests.
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client reads user identities through the Auth0 management API.
type Client struct {
	baseURL string
	http    *http.Client
}

type identity struct {
	Provider    string `json:"provider"`
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
}

type userResponse struct {
	UserID     string     `json:"user_id"`
	Identities []identity `json:"identities"`
}

// NewClient builds a management API client authenticated with the client
// credentials grant, or with ManagementToken when it is set.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		domain := strings.TrimSpace(cfg.Domain)
		if domain == "" {
			return nil, ErrNotConfigured
		}
		baseURL = "https://" + strings.TrimRight(strings.TrimPrefix(domain, "https://"), "/")
	}

	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}

	var httpClient *http.Client
	switch {
	case cfg.ManagementToken != "":
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.ManagementToken}))
	case cfg.ClientID != "" && cfg.ClientSecret != "":
		audience := cfg.Audience
		if audience == "" {
			audience = baseURL + "/api/v2/"
		}
		credentials := clientcredentials.Config{
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			TokenURL:       baseURL + "/oauth/token",
			EndpointParams: url.Values{"audience": {audience}},
			AuthStyle:      oauth2.AuthStyleInParams,
		}
		httpClient = credentials.Client(ctx)
	default:
		return nil, ErrNotConfigured
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient.Timeout = timeout

	return &Client{baseURL: baseURL, http: httpClient}, nil
}

// GitHubAccessToken returns the GitHub access token linked to userID.
func (c *Client) GitHubAccessToken(ctx context.Context, userID string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/v2/users/%s", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth0 get user: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrUserNotFound
	case resp.StatusCode >= 300:
		return "", fmt.Errorf("auth0 get user: unexpected status %d", resp.StatusCode)
	}

	var user userResponse
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("auth0 decode user: %w", err)
	}

	for _, id := range user.Identities {
		if id.Provider == githubProvider && id.AccessToken != "" {
			return id.AccessToken, nil
		}
	}
	return "", ErrNoGitHubIdentity
}
