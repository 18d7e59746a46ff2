package service

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/model"
)

const (
	timedTextBaseURL = "https://www.youtube.com"

	// Evidence timestamps from the model are approximate, so alignment uses
	// a tolerance window on both sides of each segment.
	alignToleranceMs = 3000
)

// TranscriptService fetches timed captions for a video and aligns stored
// evidence against them. "No transcript" is an empty result, never an error.
type TranscriptService struct {
	baseURL string
	httpc   *http.Client
}

func NewTranscriptService() *TranscriptService {
	return &TranscriptService{
		baseURL: timedTextBaseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// trackList mirrors the timedtext track listing XML.
type trackList struct {
	Tracks []struct {
		LangCode string `xml:"lang_code,attr"`
	} `xml:"track"`
}

// timedTextDoc mirrors the json3 caption format.
type timedTextDoc struct {
	Events []struct {
		TStartMs    int `json:"tStartMs"`
		DDurationMs int `json:"dDurationMs"`
		Segs        []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// FetchTranscript returns the ordered transcript for a video, preferring
// preferredLang and falling back to whatever track is available.
func (s *TranscriptService) FetchTranscript(ctx context.Context, youtubeVideoID, preferredLang string) (*model.Transcript, error) {
	lang := s.pickLanguage(ctx, youtubeVideoID, preferredLang)
	if lang == "" {
		return &model.Transcript{Segments: []model.TranscriptSegment{}}, nil
	}

	segments, err := s.fetchTrack(ctx, youtubeVideoID, lang)
	if err != nil || len(segments) == 0 {
		return &model.Transcript{Segments: []model.TranscriptSegment{}}, nil
	}

	return &model.Transcript{Segments: segments, Language: &lang}, nil
}

// pickLanguage lists available caption tracks and returns the preferred
// language if present, otherwise the first track, otherwise "".
func (s *TranscriptService) pickLanguage(ctx context.Context, videoID, preferredLang string) string {
	listURL := fmt.Sprintf("%s/api/timedtext?type=list&v=%s", s.baseURL, url.QueryEscape(videoID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return ""
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ""
	}

	var list trackList
	if err := xml.Unmarshal(body, &list); err != nil || len(list.Tracks) == 0 {
		return ""
	}

	for _, t := range list.Tracks {
		if t.LangCode == preferredLang {
			return preferredLang
		}
	}
	return list.Tracks[0].LangCode
}

func (s *TranscriptService) fetchTrack(ctx context.Context, videoID, lang string) ([]model.TranscriptSegment, error) {
	trackURL := fmt.Sprintf("%s/api/timedtext?v=%s&lang=%s&fmt=json3",
		s.baseURL, url.QueryEscape(videoID), url.QueryEscape(lang))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trackURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timedtext status %d", resp.StatusCode)
	}

	var doc timedTextDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, err
	}

	segments := make([]model.TranscriptSegment, 0, len(doc.Events))
	for _, ev := range doc.Events {
		var sb strings.Builder
		for _, seg := range ev.Segs {
			sb.WriteString(seg.UTF8)
		}
		text := strings.TrimSpace(sb.String())
		if text == "" {
			continue
		}
		segments = append(segments, model.TranscriptSegment{
			Text:       text,
			OffsetMs:   ev.TStartMs,
			DurationMs: ev.DDurationMs,
		})
	}
	return segments, nil
}

// AlignEvidence matches evidence items against transcript segments. An item
// matches a segment when its startMs falls within
// [offset−tolerance, offset+duration+tolerance]; untimed evidence never
// matches. Axes are deduplicated per segment.
func (s *TranscriptService) AlignEvidence(segments []model.TranscriptSegment, evidence []model.EvidenceItem) []model.SegmentMatch {
	matches := make([]model.SegmentMatch, 0, len(segments))
	for _, seg := range segments {
		lo := seg.OffsetMs - alignToleranceMs
		hi := seg.OffsetMs + seg.DurationMs + alignToleranceMs

		var matched []model.EvidenceItem
		seen := make(map[model.AxisKey]bool)
		var axes []model.AxisKey
		for _, e := range evidence {
			if e.StartMs == nil {
				continue
			}
			if *e.StartMs < lo || *e.StartMs > hi {
				continue
			}
			matched = append(matched, e)
			if !seen[e.AxisKey] {
				seen[e.AxisKey] = true
				axes = append(axes, e.AxisKey)
			}
		}

		matches = append(matches, model.SegmentMatch{
			Segment:         seg,
			MatchedEvidence: matched,
			MatchedAxes:     axes,
		})
	}
	return matches
}
