package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/noah-isme/coding-coach-api/internal/models"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	CORSAllowOrigins string

	DatabaseDriver string
	DatabaseURL    string
	RedisURL       string
	NATSURL        string
	EventsChannel  string

	JWTSecret string

	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	OpenAIMaxTokens   int
	OpenAITemperature float32

	FeedbackCategories []models.Category
	FeedbackTimeout    time.Duration
	FeedbackRateLimit  int
	RateLimitWindow    time.Duration

	HighlightLineHeightPx float64
	HighlightViewportPx   float64
	SessionIdleTTL        time.Duration

	GitHubAPIURL     string
	GitHubCacheTTL   time.Duration
	GitHubExtensions []string

	Auth0Domain          string
	Auth0ClientID        string
	Auth0ClientSecret    string
	Auth0Audience        string
	Auth0ManagementToken string
	IdentityTokenTTL     time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Auth0Enabled reports whether GitHub identities can be resolved.
func (c Config) Auth0Enabled() bool {
	if c.Auth0Domain == "" {
		return false
	}
	return c.Auth0ManagementToken != "" || (c.Auth0ClientID != "" && c.Auth0ClientSecret != "")
}

// Load reads configuration values from COACH_* environment variables and an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("COACH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Coding Coach API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("events.channel", "coach")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 4096)
	v.SetDefault("openai.temperature", 0.2)
	v.SetDefault("feedback.categories", "Performance,Readability,Advanced,Bug")
	v.SetDefault("feedback.timeout", "0s")
	v.SetDefault("feedback.rate_limit", 20)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("highlight.line_height_px", 21)
	v.SetDefault("highlight.viewport_px", 600)
	v.SetDefault("session.idle_ttl", "2h")
	v.SetDefault("github.cache_ttl", "0s")
	v.SetDefault("identity.token_ttl", "10m")

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                v.GetString("app.env"),
		AppPort:               v.GetString("app.port"),
		CORSAllowOrigins:      v.GetString("cors.allow_origins"),
		DatabaseDriver:        strings.ToLower(strings.TrimSpace(v.GetString("database.driver"))),
		DatabaseURL:           v.GetString("database.url"),
		RedisURL:              v.GetString("redis.url"),
		NATSURL:               v.GetString("nats.url"),
		EventsChannel:         v.GetString("events.channel"),
		JWTSecret:             v.GetString("jwt.secret"),
		OpenAIAPIKey:          v.GetString("openai.api_key"),
		OpenAIBaseURL:         v.GetString("openai.base_url"),
		OpenAIModel:           v.GetString("openai.model"),
		OpenAIMaxTokens:       v.GetInt("openai.max_tokens"),
		OpenAITemperature:     float32(v.GetFloat64("openai.temperature")),
		FeedbackRateLimit:     v.GetInt("feedback.rate_limit"),
		HighlightLineHeightPx: v.GetFloat64("highlight.line_height_px"),
		HighlightViewportPx:   v.GetFloat64("highlight.viewport_px"),
		GitHubAPIURL:          v.GetString("github.api_url"),
		GitHubExtensions:      splitList(v.GetString("github.extensions")),
		Auth0Domain:           v.GetString("auth0.domain"),
		Auth0ClientID:         v.GetString("auth0.client_id"),
		Auth0ClientSecret:     v.GetString("auth0.client_secret"),
		Auth0Audience:         v.GetString("auth0.audience"),
		Auth0ManagementToken:  v.GetString("auth0.management_token"),
	}

	durations := map[string]*time.Duration{
		"feedback.timeout":   &cfg.FeedbackTimeout,
		"rate_limit.window":  &cfg.RateLimitWindow,
		"session.idle_ttl":   &cfg.SessionIdleTTL,
		"github.cache_ttl":   &cfg.GitHubCacheTTL,
		"identity.token_ttl": &cfg.IdentityTokenTTL,
	}

	for key, target := range durations {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed < 0 {
			return Config{}, fmt.Errorf("invalid %s: must not be negative", key)
		}
		*target = parsed
	}

	for _, name := range splitList(v.GetString("feedback.categories")) {
		category, err := models.ParseCategory(name)
		if err != nil {
			return Config{}, fmt.Errorf("invalid feedback categories: %w", err)
		}
		cfg.FeedbackCategories = append(cfg.FeedbackCategories, category)
	}
	if len(cfg.FeedbackCategories) == 0 {
		cfg.FeedbackCategories = models.DefaultCategories()
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.HighlightLineHeightPx <= 0 || cfg.HighlightViewportPx <= 0 {
		return Config{}, fmt.Errorf("highlight dimensions must be positive")
	}

	return cfg, nil
}

func splitList(input string) []string {
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
