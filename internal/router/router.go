package router

import (
	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/handler"
	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/middleware"
)

// Handlers holds all handler instances needed by the router.
type Handlers struct {
	Review     *handler.ReviewHandler
	Rating     *handler.RatingHandler
	Transcript *handler.TranscriptHandler
	Stats      *handler.StatsHandler
	Health     *handler.HealthHandler
}

// Setup configures the middleware stack and all API routes on the given Fiber app.
func Setup(app *fiber.App, h *Handlers, corsOrigins string) {
	// Middleware stack (order matters)
	app.Use(recoverer.New())
	app.Use(middleware.NewRequestLogger())
	app.Use(middleware.NewCORS(corsOrigins))
	app.Use(handler.MetricsMiddleware())

	// Health probes (before API group, no limits)
	app.Get("/health/live", h.Health.Live)
	app.Get("/health/ready", h.Health.Ready)
	app.Get("/metrics", handler.MetricsHandler())

	// Per-endpoint rate limits. Review endpoints are expensive (audio
	// download plus inference), so they get the tightest budgets.
	reviewLimiter := middleware.NewAIReviewRateLimiter()
	bulkLimiter := middleware.NewBulkReviewRateLimiter()
	ratingLimiter := middleware.NewRatingRateLimiter()
	transcriptLimiter := middleware.NewTranscriptRateLimiter()

	api := app.Group("/api")

	// Rating routes
	api.Get("/ratings/:videoId", h.Rating.Get, ratingLimiter.Handler())
	api.Put("/ratings/:videoId", h.Rating.PutManual, ratingLimiter.Handler())
	api.Get("/safe-list", h.Rating.GetSafeList, ratingLimiter.Handler())

	// AI review routes. Bulk must be registered before :videoId so the
	// literal path wins.
	api.Post("/ai-review/bulk", h.Review.ReviewBulk, bulkLimiter.Handler())
	api.Post("/ai-review/:videoId", h.Review.Review, reviewLimiter.Handler())

	// Transcript routes
	api.Post("/transcript/:videoId", h.Transcript.Fetch, transcriptLimiter.Handler())
	api.Get("/transcript/:videoId/aligned", h.Transcript.GetAligned, transcriptLimiter.Handler())

	// Stats routes
	api.Get("/stats", h.Stats.GetStats)
}
