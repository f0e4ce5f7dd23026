package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultIdentityTokenTTL = 10 * time.Minute

// ErrIdentityUnavailable indicates no identity provider is configured.
var ErrIdentityUnavailable = errors.New("identity provider unavailable")

// GitHubTokenSource resolves a user's GitHub access token from the identity provider.
type GitHubTokenSource interface {
	GitHubAccessToken(ctx context.Context, userID string) (string, error)
}

// IdentityService hands out GitHub tokens for authenticated users.
type IdentityService interface {
	GitHubToken(ctx context.Context, userID string) (string, error)
	Forget(userID string)
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

type identityService struct {
	source GitHubTokenSource
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	tokens map[string]cachedToken
}

// NewIdentityService caches resolved tokens in-process for ttl.
func NewIdentityService(source GitHubTokenSource, ttl time.Duration, logger zerolog.Logger) IdentityService {
	if ttl <= 0 {
		ttl = defaultIdentityTokenTTL
	}
	return &identityService{
		source: source,
		ttl:    ttl,
		logger: logger.With().Str("component", "identity_service").Logger(),
		now:    time.Now,
		tokens: make(map[string]cachedToken),
	}
}

func (s *identityService) GitHubToken(ctx context.Context, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if s.source == nil {
		return "", ErrIdentityUnavailable
	}

	now := s.now()
	s.mu.Lock()
	cached, ok := s.tokens[userID]
	s.mu.Unlock()
	if ok && now.Before(cached.expiresAt) {
		return cached.token, nil
	}

	token, err := s.source.GitHubAccessToken(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to resolve github token")
		return "", err
	}

	s.mu.Lock()
	s.tokens[userID] = cachedToken{token: token, expiresAt: now.Add(s.ttl)}
	s.mu.Unlock()

	return token, nil
}

// Forget drops the cached token, used after GitHub rejects it.
func (s *identityService) Forget(userID string) {
	s.mu.Lock()
	delete(s.tokens, strings.TrimSpace(userID))
	s.mu.Unlock()
}
