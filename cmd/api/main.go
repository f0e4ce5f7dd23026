package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coding-coach-api/internal/config"
	"github.com/noah-isme/coding-coach-api/internal/database"
	"github.com/noah-isme/coding-coach-api/internal/handler"
	"github.com/noah-isme/coding-coach-api/internal/middleware"
	"github.com/noah-isme/coding-coach-api/internal/repository"
	"github.com/noah-isme/coding-coach-api/internal/router"
	"github.com/noah-isme/coding-coach-api/internal/service"
	"github.com/noah-isme/coding-coach-api/pkg/ai"
	"github.com/noah-isme/coding-coach-api/pkg/auth0"
	"github.com/noah-isme/coding-coach-api/pkg/github"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.AppEnv == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis not configured, github cache and redis events are disabled")
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, feedback events go to redis only")
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	var (
		generator ai.FeedbackGenerator
		chat      ai.Conversationalist
	)
	if cfg.OpenAIAPIKey != "" {
		openAIClient, err := ai.NewOpenAIClient(ai.OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			MaxTokens:   cfg.OpenAIMaxTokens,
			Temperature: cfg.OpenAITemperature,
			Logger:      logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create openai client")
		}
		generator = openAIClient
		chat = openAIClient
	} else {
		logger.Warn().Msg("openai api key missing, feedback and conversations are disabled")
	}

	var tokenSource service.GitHubTokenSource
	if cfg.Auth0Enabled() {
		auth0Client, err := auth0.NewClient(context.Background(), auth0.Config{
			Domain:          cfg.Auth0Domain,
			ClientID:        cfg.Auth0ClientID,
			ClientSecret:    cfg.Auth0ClientSecret,
			Audience:        cfg.Auth0Audience,
			ManagementToken: cfg.Auth0ManagementToken,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create auth0 client")
		}
		tokenSource = auth0Client
	} else {
		logger.Warn().Msg("auth0 not configured, github import is disabled")
	}

	feedbackRepo := repository.NewFeedbackRepository(db)
	conversationRepo := repository.NewConversationRepository(db)

	events := service.NewFeedbackEventPublisher(redisClient, cfg.EventsChannel, natsConn, logger)
	sessionService := service.NewSessionService(service.NewFeedbackClient(generator), feedbackRepo, events, validate, service.SessionConfig{
		Categories:      cfg.FeedbackCategories,
		FeedbackTimeout: cfg.FeedbackTimeout,
		IdleTTL:         cfg.SessionIdleTTL,
		Highlight: service.HighlightConfig{
			LineHeightPx: cfg.HighlightLineHeightPx,
			ViewportPx:   cfg.HighlightViewportPx,
		},
	}, logger)
	conversationService := service.NewConversationService(sessionService, conversationRepo, chat, validate, logger)

	var githubOptions []github.Option
	if len(cfg.GitHubExtensions) > 0 {
		githubOptions = append(githubOptions, github.WithExtensions(cfg.GitHubExtensions))
	}
	if cfg.GitHubAPIURL != "" {
		githubOptions = append(githubOptions, github.WithBaseURL(cfg.GitHubAPIURL))
	}
	identityService := service.NewIdentityService(tokenSource, cfg.IdentityTokenTTL, logger)
	importService := service.NewRepositoryImportService(identityService, service.NewGitHubClientFactory(githubOptions...), redisClient, cfg.GitHubCacheTTL, validate, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessionService.Start(ctx)
	defer sessionService.Close()

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		SessionHandler:      handler.NewSessionHandler(sessionService, logger),
		ConversationHandler: handler.NewConversationHandler(conversationService, logger),
		RepositoryHandler:   handler.NewRepositoryHandler(importService, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		ModelLimiter:        middleware.RateLimit("model", cfg.FeedbackRateLimit, cfg.RateLimitWindow),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(ctx, app, logger)
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
