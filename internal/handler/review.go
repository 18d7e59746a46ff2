package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/middleware"
	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/service"
)

type ReviewHandler struct {
	svc       *service.ReviewService
	cache     *service.CacheService
	bulkLimit int
}

func NewReviewHandler(svc *service.ReviewService, cache *service.CacheService, bulkLimit int) *ReviewHandler {
	return &ReviewHandler{svc: svc, cache: cache, bulkLimit: bulkLimit}
}

// Review handles POST /api/ai-review/:videoId — runs the full AI review
// pipeline for one video and returns the resulting rating.
func (h *ReviewHandler) Review(c fiber.Ctx) error {
	videoID, errMsg := middleware.ValidateVideoID(c.Params("videoId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	start := time.Now()
	result, err := h.svc.ReviewVideo(c.Context(), videoID)
	if err != nil {
		Metrics.ReviewsTotal.WithLabelValues(reviewOutcome(err)).Inc()
		return reviewErrorResponse(c, err)
	}
	Metrics.ReviewsTotal.WithLabelValues("success").Inc()
	Metrics.ReviewDuration.Observe(time.Since(start).Seconds())

	h.cache.InvalidateRating(c.Context(), videoID)

	return c.JSON(result)
}

// ReviewBulk handles POST /api/ai-review/bulk — reviews the backlog of
// unscanned videos, one at a time. Per-video failures are skipped, so the
// response only lists successes.
func (h *ReviewHandler) ReviewBulk(c fiber.Ctx) error {
	limit := fiber.Query[int](c, "limit", h.bulkLimit)
	if limit < 1 || limit > h.bulkLimit {
		limit = h.bulkLimit
	}

	results, err := h.svc.ReviewUnscanned(c.Context(), limit)
	if err != nil {
		// A partial result set is still worth returning.
		if len(results) > 0 {
			return c.JSON(fiber.Map{
				"reviewed": len(results),
				"results":  results,
				"aborted":  true,
			})
		}
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Bulk review failed")
	}

	for _, r := range results {
		h.cache.InvalidateRating(c.Context(), r.VideoID)
	}

	return c.JSON(fiber.Map{
		"reviewed": len(results),
		"results":  results,
	})
}

func reviewOutcome(err error) string {
	var invalidOutput *service.InvalidModelOutputError
	switch {
	case errors.Is(err, service.ErrVideoNotFound):
		return "not_found"
	case errors.Is(err, service.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, service.ErrInvalidScores), errors.As(err, &invalidOutput):
		return "invalid_output"
	default:
		return "failed"
	}
}

func reviewErrorResponse(c fiber.Ctx, err error) error {
	var invalidOutput *service.InvalidModelOutputError
	switch {
	case errors.Is(err, service.ErrVideoNotFound):
		return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "Video not found")
	case errors.Is(err, service.ErrRateLimited):
		return middleware.ErrorResponse(c, fiber.StatusServiceUnavailable, "UPSTREAM_RATE_LIMITED",
			"Inference capacity exhausted, retry later")
	case errors.As(err, &invalidOutput):
		return middleware.ErrorResponse(c, fiber.StatusBadGateway, "INVALID_MODEL_OUTPUT",
			"Model returned unusable output")
	case errors.Is(err, service.ErrInvalidScores):
		return middleware.ErrorResponse(c, fiber.StatusBadGateway, "INVALID_MODEL_OUTPUT",
			"Model scores failed validation")
	default:
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Review failed")
	}
}
