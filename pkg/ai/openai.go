package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "coach",
		Subsystem: "ai",
		Name:      "request_duration_seconds",
		Help:      "Duration of LLM requests",
	}, []string{"model", "operation"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coach",
		Subsystem: "ai",
		Name:      "request_failures_total",
		Help:      "Number of failed LLM requests",
	}, []string{"model", "operation"})
)

// ErrEmptyResponse indicates the model returned no choices.
var ErrEmptyResponse = errors.New("no choices returned from openai")

// OpenAIConfig defines configuration options for the OpenAI client.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIClient implements FeedbackGenerator and Conversationalist against the
// OpenAI chat completion API.
type OpenAIClient struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIClient builds a new client using the provided configuration.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}

	tracer := otel.Tracer("github.com/noah-isme/coding-coach-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAIClient{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger.With().Str("component", "openai_client").Logger(),
	}, nil
}

// RequestFeedback asks the model for one category of feedback and validates the
// structured reply against the feedback schema.
func (c *OpenAIClient) RequestFeedback(parent context.Context, req FeedbackRequest) (FeedbackPayload, error) {
	ctx, span := c.tracer.Start(parent, "openai.feedback", trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
		attribute.String("feedback.category", req.Category),
	))
	defer span.End()

	request := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: feedbackSystemPrompt(req.Category),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: NumberLines(req.Code),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   feedbackSchemaName,
				Schema: FeedbackSchema(),
				Strict: true,
			},
		},
	}

	content, err := c.complete(ctx, span, "feedback", request)
	if err != nil {
		return FeedbackPayload{}, err
	}

	payload, err := ParseFeedbackPayload(content)
	if err != nil {
		c.fail(span, "feedback", err)
		return FeedbackPayload{}, err
	}

	c.logger.Debug().
		Str("category", req.Category).
		Int("points", len(payload.FeedbackPoints)).
		Msg("feedback received")

	return payload, nil
}

// Continue answers a follow-up question about a feedback point.
func (c *OpenAIClient) Continue(parent context.Context, req ConversationRequest) (string, error) {
	ctx, span := c.tracer.Start(parent, "openai.conversation", trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
		attribute.Int("conversation.turns", len(req.History)),
	))
	defer span.End()

	request := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages:    conversationMessages(req),
	}

	return c.complete(ctx, span, "conversation", request)
}

func (c *OpenAIClient) complete(ctx context.Context, span trace.Span, operation string, request openai.ChatCompletionRequest) (string, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(c.cfg.Model, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		c.fail(span, operation, err)
		return "", fmt.Errorf("openai %s: %w", operation, err)
	}

	if len(resp.Choices) == 0 {
		c.fail(span, operation, ErrEmptyResponse)
		return "", ErrEmptyResponse
	}

	span.SetAttributes(attribute.Int("usage.total_tokens", resp.Usage.TotalTokens))
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *OpenAIClient) fail(span trace.Span, operation string, err error) {
	aiFailures.WithLabelValues(c.cfg.Model, operation).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func conversationMessages(req ConversationRequest) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, 4+2*len(req.History))
	messages = append(messages,
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: conversationSystemPrompt()},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: NumberLines(req.Code)},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: req.Point},
	)
	for _, turn := range req.History {
		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: turn.Question},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: turn.Answer},
		)
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Question})
	return messages
}
