package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/model"
)

func msPtr(v int) *int { return &v }

func TestAlignEvidence_ToleranceWindow(t *testing.T) {
	svc := NewTranscriptService()

	segments := []model.TranscriptSegment{
		{Text: "segment", OffsetMs: 10000, DurationMs: 2000},
	}
	// Window is [7000, 15000] with the 3000ms tolerance.
	evidence := []model.EvidenceItem{
		{AxisKey: model.AxisProfanity, StartMs: msPtr(14500), Note: "inside, near the end"},
		{AxisKey: model.AxisViolence, StartMs: msPtr(16000), Note: "outside"},
		{AxisKey: model.AxisMusic, StartMs: msPtr(7000), Note: "exactly on the lower bound"},
		{AxisKey: model.AxisMusic, Note: "untimed, never matches"},
	}

	matches := svc.AlignEvidence(segments, evidence)
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1 per segment", len(matches))
	}

	got := matches[0]
	if len(got.MatchedEvidence) != 2 {
		t.Fatalf("matched evidence = %d, want 2: %+v", len(got.MatchedEvidence), got.MatchedEvidence)
	}
	for _, e := range got.MatchedEvidence {
		if e.Note == "outside" || e.Note == "untimed, never matches" {
			t.Errorf("evidence %q should not match", e.Note)
		}
	}
}

func TestAlignEvidence_AxesDeduplicatedPerSegment(t *testing.T) {
	svc := NewTranscriptService()

	segments := []model.TranscriptSegment{
		{Text: "segment", OffsetMs: 0, DurationMs: 5000},
	}
	evidence := []model.EvidenceItem{
		{AxisKey: model.AxisProfanity, StartMs: msPtr(1000), Note: "first"},
		{AxisKey: model.AxisProfanity, StartMs: msPtr(2000), Note: "second, same axis"},
		{AxisKey: model.AxisMusic, StartMs: msPtr(3000), Note: "other axis"},
	}

	matches := svc.AlignEvidence(segments, evidence)
	if len(matches[0].MatchedEvidence) != 3 {
		t.Errorf("matched evidence = %d, want 3", len(matches[0].MatchedEvidence))
	}
	if len(matches[0].MatchedAxes) != 2 {
		t.Errorf("matched axes = %v, want 2 deduplicated axes", matches[0].MatchedAxes)
	}
}

func TestAlignEvidence_SegmentWithNoMatches(t *testing.T) {
	svc := NewTranscriptService()

	segments := []model.TranscriptSegment{
		{Text: "a", OffsetMs: 0, DurationMs: 1000},
		{Text: "b", OffsetMs: 60000, DurationMs: 1000},
	}
	evidence := []model.EvidenceItem{
		{AxisKey: model.AxisDrugs, StartMs: msPtr(60500), Note: "only matches b"},
	}

	matches := svc.AlignEvidence(segments, evidence)
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want one per segment", len(matches))
	}
	if len(matches[0].MatchedEvidence) != 0 {
		t.Errorf("segment a matched %d items, want 0", len(matches[0].MatchedEvidence))
	}
	if len(matches[1].MatchedEvidence) != 1 {
		t.Errorf("segment b matched %d items, want 1", len(matches[1].MatchedEvidence))
	}
}

func TestFetchTranscript_PrefersRequestedLanguage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") == "list" {
			fmt.Fprint(w, `<transcript_list><track lang_code="en"/><track lang_code="ar"/></transcript_list>`)
			return
		}
		if lang := r.URL.Query().Get("lang"); lang != "ar" {
			t.Errorf("fetched lang %q, want ar", lang)
		}
		fmt.Fprint(w, `{"events":[
			{"tStartMs":0,"dDurationMs":1500,"segs":[{"utf8":"مرحبا"}]},
			{"tStartMs":1500,"dDurationMs":2000,"segs":[{"utf8":"بكم "},{"utf8":"جميعا"}]},
			{"tStartMs":4000,"dDurationMs":500,"segs":[{"utf8":"  "}]}
		]}`)
	}))
	defer srv.Close()

	svc := NewTranscriptService()
	svc.baseURL = srv.URL

	tr, err := svc.FetchTranscript(context.Background(), "abc123", "ar")
	if err != nil {
		t.Fatalf("FetchTranscript() error: %v", err)
	}
	if tr.Language == nil || *tr.Language != "ar" {
		t.Errorf("language = %v, want ar", tr.Language)
	}
	if len(tr.Segments) != 2 {
		t.Fatalf("segments = %d, want 2 (whitespace-only event dropped)", len(tr.Segments))
	}
	if tr.Segments[1].Text != "بكم جميعا" {
		t.Errorf("segment text = %q", tr.Segments[1].Text)
	}
	if tr.Segments[1].OffsetMs != 1500 || tr.Segments[1].DurationMs != 2000 {
		t.Errorf("segment timing = %d+%d", tr.Segments[1].OffsetMs, tr.Segments[1].DurationMs)
	}
}

func TestFetchTranscript_FallsBackToFirstTrack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") == "list" {
			fmt.Fprint(w, `<transcript_list><track lang_code="en"/></transcript_list>`)
			return
		}
		fmt.Fprint(w, `{"events":[{"tStartMs":0,"dDurationMs":1000,"segs":[{"utf8":"hello"}]}]}`)
	}))
	defer srv.Close()

	svc := NewTranscriptService()
	svc.baseURL = srv.URL

	tr, err := svc.FetchTranscript(context.Background(), "abc123", "ar")
	if err != nil {
		t.Fatalf("FetchTranscript() error: %v", err)
	}
	if tr.Language == nil || *tr.Language != "en" {
		t.Errorf("language = %v, want en fallback", tr.Language)
	}
}

func TestFetchTranscript_NoTracksIsEmptyNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<transcript_list></transcript_list>`)
	}))
	defer srv.Close()

	svc := NewTranscriptService()
	svc.baseURL = srv.URL

	tr, err := svc.FetchTranscript(context.Background(), "abc123", "ar")
	if err != nil {
		t.Fatalf("FetchTranscript() error: %v", err)
	}
	if len(tr.Segments) != 0 {
		t.Errorf("segments = %d, want empty", len(tr.Segments))
	}
}
