package model

import "time"

// AxisKey identifies one of the nine content-safety dimensions.
type AxisKey string

const (
	AxisProfanity       AxisKey = "profanity"
	AxisMusic           AxisKey = "music"
	AxisMixedGender     AxisKey = "mixedGender"
	AxisSexualInnuendo  AxisKey = "sexualInnuendo"
	AxisDrugs           AxisKey = "drugs"
	AxisViolence        AxisKey = "violence"
	AxisMockingReligion AxisKey = "mockingReligion"
	AxisGambling        AxisKey = "gambling"
	AxisSensitiveIdeas  AxisKey = "sensitiveIdeas"
)

// AxisKeys lists every axis in canonical order. All nine must be present
// in a valid AxisScores.
var AxisKeys = []AxisKey{
	AxisProfanity,
	AxisMusic,
	AxisMixedGender,
	AxisSexualInnuendo,
	AxisDrugs,
	AxisViolence,
	AxisMockingReligion,
	AxisGambling,
	AxisSensitiveIdeas,
}

// IsAxisKey reports whether s names a known axis.
func IsAxisKey(s string) bool {
	for _, k := range AxisKeys {
		if string(k) == s {
			return true
		}
	}
	return false
}

// AxisScores maps each axis to an integer severity in [0,10].
type AxisScores map[AxisKey]int

// MaxScore returns the highest severity across all axes.
func (s AxisScores) MaxScore() int {
	max := 0
	for _, k := range AxisKeys {
		if v := s[k]; v > max {
			max = v
		}
	}
	return max
}

// AgeRating is the discrete age classification derived from axis scores,
// ordered from least to most restrictive.
type AgeRating string

const (
	RatingG    AgeRating = "G"
	RatingPG   AgeRating = "PG"
	RatingPG12 AgeRating = "PG12"
	RatingPG15 AgeRating = "PG15"
	RatingR15  AgeRating = "R15"
	RatingR18  AgeRating = "R18"
)

// AgeRatingOrder lists the ratings from least to most restrictive.
var AgeRatingOrder = []AgeRating{RatingG, RatingPG, RatingPG12, RatingPG15, RatingR15, RatingR18}

// Ordinal returns the rating's position in AgeRatingOrder, or -1 if unknown.
func (r AgeRating) Ordinal() int {
	for i, o := range AgeRatingOrder {
		if o == r {
			return i
		}
	}
	return -1
}

// Confidence is the trust level in a rating, driven by the scoring source.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// Client types recorded on scan runs.
const (
	ClientAdminManual = "ADMIN_MANUAL"
	ClientAIGemini    = "AI_GEMINI"
)

// EvidenceItem is a note justifying a single axis score, optionally anchored
// to a time range in the video. Evidence only exists inside a ScanRun.
type EvidenceItem struct {
	AxisKey AxisKey `json:"axisKey"`
	StartMs *int    `json:"startMs,omitempty"`
	EndMs   *int    `json:"endMs,omitempty"`
	Note    string  `json:"note"`
}

// ScanRun is one audit-logged execution of a scoring method against a video.
// Immutable once created, except for the quality-metrics blob.
type ScanRun struct {
	ID             string         `json:"id"`
	VideoID        string         `json:"videoId"`
	ClientType     string         `json:"clientType"`
	QualityMetrics map[string]any `json:"qualityMetrics,omitempty"`
	Evidence       []EvidenceItem `json:"evidence,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// RatingAggregate is the single current rating per video. It always reflects
// the most recent scan; ScanRuns hold the history.
type RatingAggregate struct {
	VideoID         string         `json:"videoId"`
	AgeRating       AgeRating      `json:"ageRating"`
	Confidence      Confidence     `json:"confidence"`
	Scores          AxisScores     `json:"scores"`
	EvidencePreview []EvidenceItem `json:"evidencePreview"`
	ScansCount      int            `json:"scansCount"`
	LastUpdatedAt   time.Time      `json:"lastUpdatedAt"`
}

// ReviewResult summarizes one completed AI review for API consumers.
type ReviewResult struct {
	VideoID        string         `json:"videoId"`
	YouTubeVideoID string         `json:"youtubeVideoId"`
	AgeRating      AgeRating      `json:"ageRating"`
	Confidence     Confidence     `json:"confidence"`
	Scores         AxisScores     `json:"scores"`
	EvidenceCount  int            `json:"evidenceCount"`
	Summary        string         `json:"summary"`
	HadAudio       bool           `json:"hadAudio"`
}

// ManualRatingRequest is the API request body for manual score entry.
type ManualRatingRequest struct {
	Scores   map[string]int `json:"scores"`
	Evidence []EvidenceItem `json:"evidence,omitempty"`
}

// SegmentMatch pairs a transcript segment with the evidence that falls
// within its tolerance window.
type SegmentMatch struct {
	Segment         TranscriptSegment `json:"segment"`
	MatchedEvidence []EvidenceItem    `json:"matchedEvidence"`
	MatchedAxes     []AxisKey         `json:"matchedAxes"`
}

// StatsResponse is the API response for rating distribution statistics.
type StatsResponse struct {
	TotalVideos  int               `json:"totalVideos"`
	RatedVideos  int               `json:"ratedVideos"`
	TotalScans   int               `json:"totalScans"`
	Distribution map[AgeRating]int `json:"distribution"`
}
