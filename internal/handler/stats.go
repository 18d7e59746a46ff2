package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/middleware"
	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/model"
	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/repository"
	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/service"
)

type StatsHandler struct {
	store *repository.Store
	cache *service.CacheService
}

func NewStatsHandler(store *repository.Store, cache *service.CacheService) *StatsHandler {
	return &StatsHandler{store: store, cache: cache}
}

// GetStats handles GET /api/stats — rating distribution and scan totals,
// cached briefly since the aggregate queries touch every rating row.
func (h *StatsHandler) GetStats(c fiber.Ctx) error {
	if cached, err := h.cache.GetStats(c.Context()); err == nil && cached != nil {
		Metrics.CacheHits.Inc()
		c.Set("Content-Type", "application/json")
		return c.Send(cached)
	}
	Metrics.CacheMisses.Inc()

	distribution, rated, totalScans, err := h.store.RatingStats(c.Context())
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch statistics")
	}

	total, err := h.store.CountVideos(c.Context())
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch statistics")
	}

	// Zero-fill so every rating tier appears in the response.
	for _, rating := range model.AgeRatingOrder {
		if _, ok := distribution[rating]; !ok {
			distribution[rating] = 0
		}
	}

	stats := model.StatsResponse{
		TotalVideos:  total,
		RatedVideos:  rated,
		TotalScans:   totalScans,
		Distribution: distribution,
	}

	h.cache.SetStats(c.Context(), stats)

	return c.JSON(stats)
}
