package handler

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/middleware"
	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/model"
	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/repository"
	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/service"
)

type TranscriptHandler struct {
	store      *repository.Store
	transcript *service.TranscriptService
}

func NewTranscriptHandler(store *repository.Store, transcript *service.TranscriptService) *TranscriptHandler {
	return &TranscriptHandler{store: store, transcript: transcript}
}

// Fetch handles POST /api/transcript/:videoId — pulls the video's caption
// track and, when an AI scan exists, stores it alongside the scan for later
// alignment. An empty transcript is a normal outcome, not an error.
func (h *TranscriptHandler) Fetch(c fiber.Ctx) error {
	videoID, errMsg := middleware.ValidateVideoID(c.Params("videoId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	video, err := h.store.FindVideo(c.Context(), videoID)
	if err != nil {
		if errors.Is(err, service.ErrVideoNotFound) {
			return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "Video not found")
		}
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch video")
	}

	lang := fiber.Query[string](c, "lang", "ar")
	transcript, err := h.transcript.FetchTranscript(c.Context(), video.YouTubeVideoID, lang)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch transcript")
	}

	cached := false
	if scan, err := h.store.GetLatestAIScan(c.Context(), video.ID); err == nil && scan != nil && len(transcript.Segments) > 0 {
		if err := h.store.SetScanTranscript(c.Context(), scan.ID, transcript); err == nil {
			cached = true
		}
	}

	return c.JSON(fiber.Map{
		"videoId":  video.ID,
		"language": transcript.Language,
		"segments": len(transcript.Segments),
		"cached":   cached,
	})
}

// GetAligned handles GET /api/transcript/:videoId/aligned — pairs the
// transcript segments with the evidence from the latest AI scan. Uses the
// transcript stored on the scan when present, fetching live otherwise.
func (h *TranscriptHandler) GetAligned(c fiber.Ctx) error {
	videoID, errMsg := middleware.ValidateVideoID(c.Params("videoId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	video, err := h.store.FindVideo(c.Context(), videoID)
	if err != nil {
		if errors.Is(err, service.ErrVideoNotFound) {
			return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "Video not found")
		}
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch video")
	}

	scan, err := h.store.GetLatestAIScan(c.Context(), video.ID)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch scan")
	}
	if scan == nil {
		return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_SCANNED", "Video has no AI scan yet")
	}

	segments := cachedSegments(scan.QualityMetrics)
	if segments == nil {
		transcript, err := h.transcript.FetchTranscript(c.Context(), video.YouTubeVideoID, "ar")
		if err != nil {
			return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch transcript")
		}
		segments = transcript.Segments
	}

	matches := h.transcript.AlignEvidence(segments, scan.Evidence)

	return c.JSON(fiber.Map{
		"videoId":  video.ID,
		"scanId":   scan.ID,
		"segments": len(segments),
		"evidence": len(scan.Evidence),
		"matches":  matches,
	})
}

// cachedSegments extracts a transcript previously stored in a scan's
// quality-metrics blob. Returns nil when absent or unreadable.
func cachedSegments(metrics map[string]any) []model.TranscriptSegment {
	raw, ok := metrics["transcript"]
	if !ok {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var segments []model.TranscriptSegment
	if err := json.Unmarshal(data, &segments); err != nil {
		return nil
	}
	return segments
}
