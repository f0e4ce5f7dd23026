package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/coding-coach-api/internal/config"
	"github.com/noah-isme/coding-coach-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Model       string    `json:"model"`
	Categories  []string  `json:"categories"`
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		categories := make([]string, 0, len(cfg.FeedbackCategories))
		for _, category := range cfg.FeedbackCategories {
			categories = append(categories, string(category))
		}

		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Model:       cfg.OpenAIModel,
			Categories:  categories,
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
