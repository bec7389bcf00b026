package api

import (
	"context"
	"time"

	"github.com/fluxtranslate/flux-relay/internal/services/database"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports liveness of the relay and its optional
// dependencies.
type HealthHandler struct {
	redisClient *redis.Client
	db          *database.DB
}

// NewHealthHandler creates a health handler. Both dependencies may be
// nil when the corresponding layer is not configured.
func NewHealthHandler(redisClient *redis.Client, db *database.DB) *HealthHandler {
	return &HealthHandler{
		redisClient: redisClient,
		db:          db,
	}
}

// HealthCheck handles GET /health.
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	checks := fiber.Map{}
	overallStatus := "healthy"
	statusCode := fiber.StatusOK

	if redisStatus := h.checkRedis(); redisStatus != "" {
		checks["redis"] = redisStatus
		if redisStatus != "healthy" {
			overallStatus = "degraded"
			statusCode = fiber.StatusServiceUnavailable
		}
	}
	if dbStatus := h.checkDatabase(); dbStatus != "" {
		checks["database"] = dbStatus
		if dbStatus != "healthy" {
			overallStatus = "degraded"
			statusCode = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (h *HealthHandler) checkRedis() string {
	if h.redisClient == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		return "unhealthy"
	}
	return "healthy"
}

func (h *HealthHandler) checkDatabase() string {
	if h.db == nil {
		return ""
	}
	if err := h.db.Ping(); err != nil {
		return "unhealthy"
	}
	return "healthy"
}
