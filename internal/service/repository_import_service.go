package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coding-coach-api/internal/dto"
	"github.com/noah-isme/coding-coach-api/internal/observability"
	"github.com/noah-isme/coding-coach-api/internal/syntax"
	"github.com/noah-isme/coding-coach-api/pkg/github"
)

const repositoryCachePrefix = "coach:github"

// ErrInvalidRepository indicates a malformed owner, repository or path.
var ErrInvalidRepository = errors.New("invalid repository reference")

// GitHubRepositoryClient is the subset of the GitHub API used for import.
type GitHubRepositoryClient interface {
	Login(ctx context.Context) (string, error)
	ListRepositories(ctx context.Context) ([]github.Repository, error)
	SearchRepositories(ctx context.Context, login, query string) ([]github.Repository, error)
	Tree(ctx context.Context, owner, repo string) (github.Tree, error)
	File(ctx context.Context, owner, repo, path string) (string, error)
}

// GitHubClientFactory builds a client authenticated as the token's owner.
type GitHubClientFactory func(ctx context.Context, token string) (GitHubRepositoryClient, error)

// RepositoryImportService lets users pick code from their GitHub repositories.
type RepositoryImportService interface {
	ListRepositories(ctx context.Context, userID string) ([]dto.RepositoryResponse, error)
	SearchRepositories(ctx context.Context, userID string, query dto.RepositorySearchQuery) ([]dto.RepositoryResponse, error)
	Tree(ctx context.Context, userID, owner, repo string) (dto.RepositoryTreeResponse, error)
	File(ctx context.Context, userID, owner, repo, path string) (dto.RepositoryContentResponse, error)
}

type repositoryImportService struct {
	identity  IdentityService
	newClient GitHubClientFactory
	cache     *redis.Client
	ttl       time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRepositoryImportService creates the import service. A zero ttl caches
// entries without expiry; a nil cache disables caching.
func NewRepositoryImportService(identity IdentityService, newClient GitHubClientFactory, cache *redis.Client, ttl time.Duration, validate *validator.Validate, logger zerolog.Logger) RepositoryImportService {
	return &repositoryImportService{
		identity:  identity,
		newClient: newClient,
		cache:     cache,
		ttl:       ttl,
		validator: validate,
		logger:    logger.With().Str("component", "repository_import_service").Logger(),
	}
}

// NewGitHubClientFactory returns a factory building pkg/github clients with opts.
func NewGitHubClientFactory(opts ...github.Option) GitHubClientFactory {
	return func(ctx context.Context, token string) (GitHubRepositoryClient, error) {
		return github.NewClient(ctx, token, opts...)
	}
}

func (s *repositoryImportService) ListRepositories(ctx context.Context, userID string) ([]dto.RepositoryResponse, error) {
	key := s.cacheKey("repos", userID)

	var cached []dto.RepositoryResponse
	if s.cacheGet(ctx, "repos", key, &cached) {
		return cached, nil
	}

	var repos []github.Repository
	err := s.withClient(ctx, userID, func(client GitHubRepositoryClient) error {
		var err error
		repos, err = client.ListRepositories(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	response := newRepositoryResponseSlice(repos)
	s.cacheSet(ctx, key, response)
	return response, nil
}

func (s *repositoryImportService) SearchRepositories(ctx context.Context, userID string, query dto.RepositorySearchQuery) ([]dto.RepositoryResponse, error) {
	query.Query = strings.TrimSpace(query.Query)
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	key := s.cacheKey("search", userID, strings.ToLower(query.Query))

	var cached []dto.RepositoryResponse
	if s.cacheGet(ctx, "search", key, &cached) {
		return cached, nil
	}

	var repos []github.Repository
	err := s.withClient(ctx, userID, func(client GitHubRepositoryClient) error {
		login, err := client.Login(ctx)
		if err != nil {
			return err
		}
		repos, err = client.SearchRepositories(ctx, login, query.Query)
		return err
	})
	if err != nil {
		return nil, err
	}

	response := newRepositoryResponseSlice(repos)
	s.cacheSet(ctx, key, response)
	return response, nil
}

func (s *repositoryImportService) Tree(ctx context.Context, userID, owner, repo string) (dto.RepositoryTreeResponse, error) {
	owner, repo, err := cleanRepository(owner, repo)
	if err != nil {
		return dto.RepositoryTreeResponse{}, err
	}

	key := s.cacheKey("tree", userID, owner+"/"+repo)

	var cached dto.RepositoryTreeResponse
	if s.cacheGet(ctx, "tree", key, &cached) {
		return cached, nil
	}

	var tree github.Tree
	err = s.withClient(ctx, userID, func(client GitHubRepositoryClient) error {
		var err error
		tree, err = client.Tree(ctx, owner, repo)
		return err
	})
	if err != nil {
		return dto.RepositoryTreeResponse{}, err
	}

	files := make([]dto.RepositoryFileResponse, 0, len(tree.Files))
	for _, file := range tree.Files {
		files = append(files, dto.RepositoryFileResponse{Path: file.Path, Size: file.Size, SHA: file.SHA})
	}
	response := dto.RepositoryTreeResponse{FullName: tree.FullName, Branch: tree.Branch, Files: files}
	if response.FullName == "" {
		response.FullName = owner + "/" + repo
	}

	s.cacheSet(ctx, key, response)
	return response, nil
}

func (s *repositoryImportService) File(ctx context.Context, userID, owner, repo, path string) (dto.RepositoryContentResponse, error) {
	owner, repo, err := cleanRepository(owner, repo)
	if err != nil {
		return dto.RepositoryContentResponse{}, err
	}
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" || strings.Contains(path, "..") {
		return dto.RepositoryContentResponse{}, ErrInvalidRepository
	}

	fullName := owner + "/" + repo
	key := s.cacheKey("file", userID, fullName, path)

	var cached dto.RepositoryContentResponse
	if s.cacheGet(ctx, "file", key, &cached) {
		return cached, nil
	}

	var content string
	err = s.withClient(ctx, userID, func(client GitHubRepositoryClient) error {
		var err error
		content, err = client.File(ctx, owner, repo, path)
		return err
	})
	if err != nil {
		return dto.RepositoryContentResponse{}, err
	}

	response := dto.RepositoryContentResponse{
		FullName: fullName,
		Path:     path,
		Content:  content,
		Language: syntax.LanguageForFile(path),
	}
	s.cacheSet(ctx, key, response)
	return response, nil
}

// withClient resolves the user's token and runs fn, forgetting the token when
// GitHub rejects it.
func (s *repositoryImportService) withClient(ctx context.Context, userID string, fn func(GitHubRepositoryClient) error) error {
	token, err := s.identity.GitHubToken(ctx, userID)
	if err != nil {
		return err
	}

	client, err := s.newClient(ctx, token)
	if err != nil {
		return err
	}

	if err := fn(client); err != nil {
		if errors.Is(err, github.ErrUnauthorized) {
			s.identity.Forget(userID)
		}
		return err
	}
	return nil
}

func (s *repositoryImportService) cacheKey(kind, userID string, parts ...string) string {
	key := fmt.Sprintf("%s:%s:%s", repositoryCachePrefix, kind, userID)
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

func (s *repositoryImportService) cacheGet(ctx context.Context, kind, key string, target interface{}) bool {
	if s.cache == nil {
		return false
	}

	payload, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Str("key", key).Msg("github cache read failed")
		}
		observability.GitHubCacheLookups().WithLabelValues(kind, "miss").Inc()
		return false
	}

	if err := json.Unmarshal(payload, target); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("discarding corrupt github cache entry")
		observability.GitHubCacheLookups().WithLabelValues(kind, "miss").Inc()
		return false
	}

	observability.GitHubCacheLookups().WithLabelValues(kind, "hit").Inc()
	return true
}

func (s *repositoryImportService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to encode github cache entry")
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("github cache write failed")
	}
}

func cleanRepository(owner, repo string) (string, string, error) {
	owner = strings.TrimSpace(owner)
	repo = strings.TrimSpace(repo)
	if owner == "" || repo == "" || strings.ContainsAny(owner+repo, "/ ") || owner == ".." || repo == ".." {
		return "", "", ErrInvalidRepository
	}
	return owner, repo, nil
}

func newRepositoryResponseSlice(repos []github.Repository) []dto.RepositoryResponse {
	items := make([]dto.RepositoryResponse, 0, len(repos))
	for _, repo := range repos {
		items = append(items, dto.RepositoryResponse{
			FullName:      repo.FullName,
			Name:          repo.Name,
			Owner:         repo.Owner,
			Description:   repo.Description,
			Private:       repo.Private,
			DefaultBranch: repo.DefaultBranch,
			HTMLURL:       repo.HTMLURL,
		})
	}
	return items
}
