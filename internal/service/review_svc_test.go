package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/model"
)

// --- fakes ---

type fakeStore struct {
	videos    map[string]model.Video
	unscanned []model.Video
	saved     []model.ScanRun
	aggs      map[string]model.RatingAggregate
	saveErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		videos: make(map[string]model.Video),
		aggs:   make(map[string]model.RatingAggregate),
	}
}

func (f *fakeStore) FindVideo(ctx context.Context, videoID string) (*model.Video, error) {
	v, ok := f.videos[videoID]
	if !ok {
		return nil, ErrVideoNotFound
	}
	return &v, nil
}

func (f *fakeStore) FindUnscanned(ctx context.Context, limit int) ([]model.Video, error) {
	if limit > len(f.unscanned) {
		limit = len(f.unscanned)
	}
	return f.unscanned[:limit], nil
}

func (f *fakeStore) SaveReview(ctx context.Context, scan model.ScanRun, agg model.RatingAggregate) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, scan)
	prev, ok := f.aggs[agg.VideoID]
	if ok {
		agg.ScansCount = prev.ScansCount + 1
	} else {
		agg.ScansCount = 1
	}
	f.aggs[agg.VideoID] = agg
	return nil
}

type fakeAudio struct {
	result *AudioResult
	err    error
}

func (f *fakeAudio) ExtractAudio(ctx context.Context, youtubeVideoID string) (*AudioResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeInference struct {
	review    *ModelReview
	err       error
	errFor    map[string]error // by prompt substring
	audioUsed bool
	textUsed  bool
	calls     int
}

func (f *fakeInference) pick(prompt string) (*ModelReview, error) {
	f.calls++
	for sub, err := range f.errFor {
		if strings.Contains(prompt, sub) {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.review, nil
}

func (f *fakeInference) ReviewWithAudio(ctx context.Context, prompt string, audio []byte, mimeType string) (*ModelReview, error) {
	f.audioUsed = true
	return f.pick(prompt)
}

func (f *fakeInference) ReviewTextOnly(ctx context.Context, prompt string) (*ModelReview, error) {
	f.textUsed = true
	return f.pick(prompt)
}

type fakeGate struct {
	waits   int
	records int
}

func (f *fakeGate) Wait(ctx context.Context) error { f.waits++; return nil }
func (f *fakeGate) Record()                        { f.records++ }

func cleanReview() *ModelReview {
	scores := NewRatingService().DefaultScores()
	scores[model.AxisMusic] = 5
	return &ModelReview{
		Scores: scores,
		Evidence: []model.EvidenceItem{
			{AxisKey: model.AxisMusic, StartMs: msPtr(3000), Note: "intro song"},
		},
		Summary: "a video with music",
	}
}

func newTestReviewService(store *fakeStore, audio *fakeAudio, inf *fakeInference, gate *fakeGate) *ReviewService {
	svc := NewReviewService(store, audio, inf, gate, NewRatingService(), "gemini-2.0-flash")
	svc.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return svc
}

// --- tests ---

func TestReviewVideo_WithAudio(t *testing.T) {
	store := newFakeStore()
	store.videos["v1"] = model.Video{ID: "v1", YouTubeVideoID: "yt1", Title: "Cartoon"}
	audio := &fakeAudio{result: &AudioResult{Data: []byte("webm"), MimeType: "audio/webm", SizeBytes: 4}}
	inf := &fakeInference{review: cleanReview()}
	gate := &fakeGate{}

	svc := newTestReviewService(store, audio, inf, gate)
	result, err := svc.ReviewVideo(context.Background(), "v1")
	if err != nil {
		t.Fatalf("ReviewVideo() error: %v", err)
	}

	if !result.HadAudio {
		t.Error("hadAudio = false, want true")
	}
	if !inf.audioUsed || inf.textUsed {
		t.Error("should call the audio path, not text-only")
	}
	if result.AgeRating != model.RatingPG12 {
		t.Errorf("ageRating = %s, want PG12 (music=5)", result.AgeRating)
	}
	if result.Confidence != model.ConfidenceMedium {
		t.Errorf("confidence = %s, want MEDIUM for AI reviews", result.Confidence)
	}
	if gate.waits != 1 || gate.records != 1 {
		t.Errorf("limiter waits=%d records=%d, want 1/1", gate.waits, gate.records)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved %d scan runs, want 1", len(store.saved))
	}
	if store.saved[0].ClientType != model.ClientAIGemini {
		t.Errorf("clientType = %s", store.saved[0].ClientType)
	}
	if store.aggs["v1"].ScansCount != 1 {
		t.Errorf("scansCount = %d, want 1", store.aggs["v1"].ScansCount)
	}
}

func TestReviewVideo_AudioFailureFallsBackToTextOnly(t *testing.T) {
	store := newFakeStore()
	store.videos["v1"] = model.Video{ID: "v1", YouTubeVideoID: "yt1", Title: "Cartoon"}
	audio := &fakeAudio{err: fmt.Errorf("%w: yt-dlp exit 1", ErrAudioUnavailable)}
	inf := &fakeInference{review: cleanReview()}

	svc := newTestReviewService(store, audio, inf, &fakeGate{})
	result, err := svc.ReviewVideo(context.Background(), "v1")
	if err != nil {
		t.Fatalf("ReviewVideo() must not surface audio failures, got: %v", err)
	}

	if result.HadAudio {
		t.Error("hadAudio = true, want false")
	}
	if !inf.textUsed || inf.audioUsed {
		t.Error("should degrade to the text-only path")
	}
	if result.AgeRating == "" {
		t.Error("rating must still be populated without audio")
	}
	if store.saved[0].QualityMetrics["hadAudio"] != false {
		t.Error("quality metrics should record hadAudio=false")
	}
}

func TestReviewVideo_VideoNotFound(t *testing.T) {
	svc := newTestReviewService(newFakeStore(), &fakeAudio{}, &fakeInference{}, &fakeGate{})
	_, err := svc.ReviewVideo(context.Background(), "missing")
	if !errors.Is(err, ErrVideoNotFound) {
		t.Fatalf("error = %v, want ErrVideoNotFound", err)
	}
}

func TestReviewVideo_InferenceErrorPropagates(t *testing.T) {
	store := newFakeStore()
	store.videos["v1"] = model.Video{ID: "v1", YouTubeVideoID: "yt1", Title: "Cartoon"}
	inf := &fakeInference{err: &InvalidModelOutputError{Snippet: "garbage"}}

	svc := newTestReviewService(store, &fakeAudio{err: ErrAudioUnavailable}, inf, &fakeGate{})
	_, err := svc.ReviewVideo(context.Background(), "v1")

	var invalid *InvalidModelOutputError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want InvalidModelOutputError", err)
	}
	if len(store.saved) != 0 {
		t.Error("nothing should be persisted on inference failure")
	}
}

func TestReviewVideo_InvalidScoresGuard(t *testing.T) {
	store := newFakeStore()
	store.videos["v1"] = model.Video{ID: "v1", YouTubeVideoID: "yt1", Title: "Cartoon"}
	bad := cleanReview()
	delete(bad.Scores, model.AxisGambling)
	inf := &fakeInference{review: bad}

	svc := newTestReviewService(store, &fakeAudio{err: ErrAudioUnavailable}, inf, &fakeGate{})
	_, err := svc.ReviewVideo(context.Background(), "v1")
	if !errors.Is(err, ErrInvalidScores) {
		t.Fatalf("error = %v, want ErrInvalidScores", err)
	}
}

func TestReviewUnscanned_ContinuesPastFailures(t *testing.T) {
	store := newFakeStore()
	for i := 1; i <= 5; i++ {
		v := model.Video{
			ID:             fmt.Sprintf("v%d", i),
			YouTubeVideoID: fmt.Sprintf("yt%d", i),
			Title:          fmt.Sprintf("Video %d", i),
		}
		store.videos[v.ID] = v
		store.unscanned = append(store.unscanned, v)
	}

	// Video 3's inference call breaks the output contract.
	inf := &fakeInference{
		review: cleanReview(),
		errFor: map[string]error{"Video 3": &InvalidModelOutputError{Snippet: "broken"}},
	}

	svc := newTestReviewService(store, &fakeAudio{err: ErrAudioUnavailable}, inf, &fakeGate{})
	results, err := svc.ReviewUnscanned(context.Background(), 5)
	if err != nil {
		t.Fatalf("ReviewUnscanned() error: %v", err)
	}

	if len(results) != 4 {
		t.Fatalf("results = %d, want 4 (one failure swallowed)", len(results))
	}
	for _, r := range results {
		if r.VideoID == "v3" {
			t.Error("failed video must be excluded from results")
		}
	}
	if _, ok := store.aggs["v3"]; ok {
		t.Error("failed video must not have a persisted aggregate")
	}
	if len(store.aggs) != 4 {
		t.Errorf("aggregates = %d, want 4", len(store.aggs))
	}
}

func TestReviewUnscanned_HonorsLimitAndDelay(t *testing.T) {
	store := newFakeStore()
	for i := 1; i <= 3; i++ {
		v := model.Video{ID: fmt.Sprintf("v%d", i), YouTubeVideoID: fmt.Sprintf("yt%d", i), Title: "t"}
		store.videos[v.ID] = v
		store.unscanned = append(store.unscanned, v)
	}

	svc := NewReviewService(store, &fakeAudio{err: ErrAudioUnavailable},
		&fakeInference{review: cleanReview()}, &fakeGate{}, NewRatingService(), "m")
	sleeps := 0
	svc.sleep = func(ctx context.Context, d time.Duration) error {
		if d != bulkInterVideoDelay {
			t.Errorf("delay = %s, want %s", d, bulkInterVideoDelay)
		}
		sleeps++
		return nil
	}

	results, err := svc.ReviewUnscanned(context.Background(), 2)
	if err != nil {
		t.Fatalf("ReviewUnscanned() error: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("results = %d, want limit 2", len(results))
	}
	// No delay after the last video.
	if sleeps != 1 {
		t.Errorf("sleeps = %d, want 1", sleeps)
	}
}

func TestReviewVideo_RepeatScansIncrementCount(t *testing.T) {
	store := newFakeStore()
	store.videos["v1"] = model.Video{ID: "v1", YouTubeVideoID: "yt1", Title: "t"}
	svc := newTestReviewService(store, &fakeAudio{err: ErrAudioUnavailable},
		&fakeInference{review: cleanReview()}, &fakeGate{})

	for i := 0; i < 3; i++ {
		if _, err := svc.ReviewVideo(context.Background(), "v1"); err != nil {
			t.Fatalf("ReviewVideo() error: %v", err)
		}
	}
	if store.aggs["v1"].ScansCount != 3 {
		t.Errorf("scansCount = %d, want 3", store.aggs["v1"].ScansCount)
	}
	if len(store.saved) != 3 {
		t.Errorf("scan runs = %d, want 3 (append-only history)", len(store.saved))
	}
}
