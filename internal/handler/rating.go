package handler

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/middleware"
	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/model"
	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/repository"
	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/service"
)

// Upper bound on aggregates scanned per safe-list request.
const safeListScanLimit = 200

type RatingHandler struct {
	store  *repository.Store
	rating *service.RatingService
	cache  *service.CacheService
}

func NewRatingHandler(store *repository.Store, rating *service.RatingService, cache *service.CacheService) *RatingHandler {
	return &RatingHandler{store: store, rating: rating, cache: cache}
}

// Get handles GET /api/ratings/:videoId — returns the current rating
// aggregate for a video, cache-aside through Redis.
func (h *RatingHandler) Get(c fiber.Ctx) error {
	videoID, errMsg := middleware.ValidateVideoID(c.Params("videoId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	if cached, err := h.cache.GetRating(c.Context(), videoID); err == nil && cached != nil {
		Metrics.CacheHits.Inc()
		c.Set("Content-Type", "application/json")
		return c.Send(cached)
	}
	Metrics.CacheMisses.Inc()

	agg, err := h.store.GetAggregate(c.Context(), videoID)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch rating")
	}
	if agg == nil {
		return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_RATED", "Video has no rating yet")
	}

	h.cache.SetRating(c.Context(), videoID, agg)

	return c.JSON(agg)
}

// PutManual handles PUT /api/ratings/:videoId — records a manual admin
// rating. Unlike AI output, manual scores are rejected outright when
// malformed rather than coerced.
func (h *RatingHandler) PutManual(c fiber.Ctx) error {
	videoID, errMsg := middleware.ValidateVideoID(c.Params("videoId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	var req model.ManualRatingRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}

	scores := make(model.AxisScores, len(model.AxisKeys))
	for key, v := range req.Scores {
		if !model.IsAxisKey(key) {
			return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_AXIS",
				"Unknown axis: "+key)
		}
		if !middleware.ValidateScoreValue(v) {
			return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_SCORE",
				"Score for "+key+" must be between 0 and 10")
		}
		scores[model.AxisKey(key)] = v
	}
	if !h.rating.ValidateScores(scores) {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "MISSING_AXES",
			"All nine axis scores are required")
	}

	evidence := make([]model.EvidenceItem, 0, len(req.Evidence))
	for _, e := range req.Evidence {
		if !model.IsAxisKey(string(e.AxisKey)) {
			return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_AXIS",
				"Unknown evidence axis: "+string(e.AxisKey))
		}
		note, errMsg := middleware.ValidateNote(e.Note)
		if errMsg != "" {
			return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
		}
		e.Note = note
		evidence = append(evidence, e)
	}

	video, err := h.store.FindVideo(c.Context(), videoID)
	if err != nil {
		if errors.Is(err, service.ErrVideoNotFound) {
			return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "Video not found")
		}
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch video")
	}

	ageRating := h.rating.ComputeAgeRating(scores)
	confidence := h.rating.ComputeConfidence(1, model.ClientAdminManual)

	scan := model.ScanRun{
		ID:         uuid.NewString(),
		VideoID:    video.ID,
		ClientType: model.ClientAdminManual,
		Evidence:   evidence,
		CreatedAt:  time.Now().UTC(),
	}
	agg := model.RatingAggregate{
		VideoID:         video.ID,
		AgeRating:       ageRating,
		Confidence:      confidence,
		Scores:          scores,
		EvidencePreview: evidence,
	}

	if err := h.store.SaveReview(c.Context(), scan, agg); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save rating")
	}

	h.cache.InvalidateRating(c.Context(), videoID)

	return c.JSON(fiber.Map{
		"videoId":    video.ID,
		"ageRating":  ageRating,
		"confidence": confidence,
		"scores":     scores,
	})
}

// GetSafeList handles GET /api/safe-list — returns rated videos that pass a
// caller-supplied strictness filter. maxRating bounds the age rating;
// exclude lists per-axis caps as "axis:maxAllowed" pairs, e.g.
// exclude=music:0,profanity:2.
func (h *RatingHandler) GetSafeList(c fiber.Ctx) error {
	maxRating := model.AgeRating(fiber.Query[string](c, "maxRating", string(model.RatingPG)))
	if maxRating.Ordinal() < 0 {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_RATING",
			"maxRating must be one of: G, PG, PG12, PG15, R15, R18")
	}

	excludedAxes, errMsg := parseExcludedAxes(fiber.Query[string](c, "exclude"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	aggs, err := h.store.ListAggregates(c.Context(), safeListScanLimit)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch ratings")
	}

	safe := make([]model.RatingAggregate, 0, len(aggs))
	for _, agg := range aggs {
		if h.rating.PassesFilter(agg.Scores, maxRating, excludedAxes) {
			safe = append(safe, agg)
		}
	}

	return c.JSON(fiber.Map{
		"maxRating": maxRating,
		"count":     len(safe),
		"videos":    safe,
	})
}

func parseExcludedAxes(raw string) (map[model.AxisKey]int, string) {
	if raw == "" {
		return nil, ""
	}

	excluded := make(map[model.AxisKey]int)
	for _, pair := range strings.Split(raw, ",") {
		key, valStr, found := strings.Cut(strings.TrimSpace(pair), ":")
		if !found {
			return nil, "exclude entries must be axis:maxAllowed pairs"
		}
		if !model.IsAxisKey(key) {
			return nil, "Unknown axis in exclude: " + key
		}
		val, err := strconv.Atoi(valStr)
		if err != nil || !middleware.ValidateScoreValue(val) {
			return nil, "exclude threshold for " + key + " must be between 0 and 10"
		}
		excluded[model.AxisKey(key)] = val
	}
	return excluded, ""
}
