package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/model"
)

// Fixed pause between videos in a bulk run. A second throttle on top of the
// inference limiter, kept independent on purpose.
const bulkInterVideoDelay = 4 * time.Second

// ReviewStore is the slice of the persistence layer the orchestrator needs.
type ReviewStore interface {
	FindVideo(ctx context.Context, videoID string) (*model.Video, error)
	FindUnscanned(ctx context.Context, limit int) ([]model.Video, error)
	// SaveReview persists the scan run (with its evidence) and upserts the
	// rating aggregate in one transaction.
	SaveReview(ctx context.Context, scan model.ScanRun, agg model.RatingAggregate) error
}

// AudioExtractor produces the audio track for a video, or fails with
// ErrAudioUnavailable.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, youtubeVideoID string) (*AudioResult, error)
}

// InferenceClient runs one content-safety review against the model.
type InferenceClient interface {
	ReviewWithAudio(ctx context.Context, prompt string, audio []byte, mimeType string) (*ModelReview, error)
	ReviewTextOnly(ctx context.Context, prompt string) (*ModelReview, error)
}

// AdmissionGate throttles inference calls.
type AdmissionGate interface {
	Wait(ctx context.Context) error
	Record()
}

// ReviewService orchestrates the AI review pipeline for single videos and
// bulk backlogs.
type ReviewService struct {
	store     ReviewStore
	audio     AudioExtractor
	inference InferenceClient
	limiter   AdmissionGate
	rating    *RatingService
	modelName string

	interDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewReviewService(store ReviewStore, audio AudioExtractor, inference InferenceClient, limiter AdmissionGate, rating *RatingService, modelName string) *ReviewService {
	return &ReviewService{
		store:      store,
		audio:      audio,
		inference:  inference,
		limiter:    limiter,
		rating:     rating,
		modelName:  modelName,
		interDelay: bulkInterVideoDelay,
		sleep:      sleepCtx,
	}
}

// ReviewVideo runs the full pipeline for one video: audio (best effort),
// throttled inference, strict score validation, rating computation and one
// transactional persist. Audio failure degrades to text-only and is never
// surfaced to the caller.
func (s *ReviewService) ReviewVideo(ctx context.Context, videoID string) (*model.ReviewResult, error) {
	video, err := s.store.FindVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	var audio *AudioResult
	if a, err := s.audio.ExtractAudio(ctx, video.YouTubeVideoID); err != nil {
		log.Printf("review: audio extraction failed for %s, falling back to text-only: %v",
			video.YouTubeVideoID, err)
	} else {
		audio = a
		log.Printf("review: audio extracted for %s: %.1fMB, duration %s",
			video.YouTubeVideoID, float64(a.SizeBytes)/1024/1024, formatDuration(a.DurationSec))
	}
	hadAudio := audio != nil

	description := ""
	if video.Description != nil {
		description = *video.Description
	}
	prompt := BuildReviewPrompt(video.Title, description, hadAudio)

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	s.limiter.Record()

	var review *ModelReview
	if hadAudio {
		review, err = s.inference.ReviewWithAudio(ctx, prompt, audio.Data, audio.MimeType)
	} else {
		review, err = s.inference.ReviewTextOnly(ctx, prompt)
	}
	if err != nil {
		return nil, err
	}

	// The client already coerced everything into range; re-check strictly
	// before anything is persisted.
	if !s.rating.ValidateScores(review.Scores) {
		return nil, fmt.Errorf("%w: sanitized model scores failed validation", ErrInvalidScores)
	}

	ageRating := s.rating.ComputeAgeRating(review.Scores)
	confidence := s.rating.ComputeConfidence(1, model.ClientAIGemini)

	metrics := map[string]any{
		"model":    s.modelName,
		"hadAudio": hadAudio,
	}
	if hadAudio {
		metrics["audioSizeBytes"] = audio.SizeBytes
		metrics["audioMimeType"] = audio.MimeType
		if audio.DurationSec != nil {
			metrics["audioDurationSec"] = *audio.DurationSec
		}
	}

	scan := model.ScanRun{
		ID:             uuid.NewString(),
		VideoID:        video.ID,
		ClientType:     model.ClientAIGemini,
		QualityMetrics: metrics,
		Evidence:       review.Evidence,
		CreatedAt:      time.Now().UTC(),
	}
	agg := model.RatingAggregate{
		VideoID:         video.ID,
		AgeRating:       ageRating,
		Confidence:      confidence,
		Scores:          review.Scores,
		EvidencePreview: review.Evidence,
	}

	if err := s.store.SaveReview(ctx, scan, agg); err != nil {
		return nil, fmt.Errorf("persist review for %s: %w", video.ID, err)
	}

	log.Printf("review: %s → %s (%s, %s)", video.YouTubeVideoID, ageRating, confidence, axisList(review.Scores))

	return &model.ReviewResult{
		VideoID:        video.ID,
		YouTubeVideoID: video.YouTubeVideoID,
		AgeRating:      ageRating,
		Confidence:     confidence,
		Scores:         review.Scores,
		EvidenceCount:  len(review.Evidence),
		Summary:        review.Summary,
		HadAudio:       hadAudio,
	}, nil
}

// ReviewUnscanned processes up to limit videos that have no rating yet,
// strictly one at a time. Per-video failures are logged and skipped; only
// successful results are returned.
func (s *ReviewService) ReviewUnscanned(ctx context.Context, limit int) ([]model.ReviewResult, error) {
	videos, err := s.store.FindUnscanned(ctx, limit)
	if err != nil {
		return nil, err
	}

	log.Printf("review: starting bulk review of %d videos", len(videos))

	results := make([]model.ReviewResult, 0, len(videos))
	for i, video := range videos {
		result, err := s.ReviewVideo(ctx, video.ID)
		if err != nil {
			log.Printf("review: %d/%d %s failed: %v", i+1, len(videos), video.YouTubeVideoID, err)
		} else {
			results = append(results, *result)
		}

		if i < len(videos)-1 {
			if err := s.sleep(ctx, s.interDelay); err != nil {
				return results, err
			}
		}
	}

	log.Printf("review: bulk review complete, %d/%d succeeded", len(results), len(videos))
	return results, nil
}

func formatDuration(sec *int) string {
	if sec == nil {
		return "unknown"
	}
	return fmt.Sprintf("%ds", *sec)
}
