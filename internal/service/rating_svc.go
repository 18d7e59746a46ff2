package service

import (
	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/model"
)

const (
	// Minimum axis value for each rating tier (first match wins, top down).
	r18MaxThreshold  = 10
	r15MaxThreshold  = 9
	pg15MaxThreshold = 7
	pg12MaxThreshold = 5
	pgMaxThreshold   = 3

	// sexualInnuendo and mockingReligion escalate to R18 one step earlier
	// than the other axes. Policy asymmetry, intentional.
	strictAxisR18Threshold = 9

	// Repeated consistent scans raise confidence for untyped clients.
	highConfidenceScans   = 3
	mediumConfidenceScans = 1
)

// RatingService derives age ratings and confidence levels from axis scores.
// Pure computation, no I/O.
type RatingService struct{}

func NewRatingService() *RatingService {
	return &RatingService{}
}

// ValidateScores reports whether every one of the nine axes is present with
// a value in [0,10]. Used as a strict admission gate for externally supplied
// scores; the inference client's sanitizer is the lenient counterpart.
func (s *RatingService) ValidateScores(scores model.AxisScores) bool {
	for _, key := range model.AxisKeys {
		v, ok := scores[key]
		if !ok || v < 0 || v > 10 {
			return false
		}
	}
	return true
}

// ComputeAgeRating maps a 9-axis severity vector to a discrete age rating.
// Rules are evaluated in priority order, first match wins.
func (s *RatingService) ComputeAgeRating(scores model.AxisScores) model.AgeRating {
	maxScore := scores.MaxScore()

	if maxScore == r18MaxThreshold ||
		scores[model.AxisSexualInnuendo] >= strictAxisR18Threshold ||
		scores[model.AxisMockingReligion] >= strictAxisR18Threshold {
		return model.RatingR18
	}

	if maxScore == r15MaxThreshold {
		return model.RatingR15
	}

	if maxScore >= pg15MaxThreshold {
		return model.RatingPG15
	}

	if maxScore >= pg12MaxThreshold {
		return model.RatingPG12
	}

	if maxScore >= pgMaxThreshold {
		return model.RatingPG
	}

	return model.RatingG
}

// ComputeConfidence returns the trust level for a rating. Confidence reflects
// the scoring source, not the score values: manual review is always HIGH and
// AI inference always MEDIUM regardless of scan count.
func (s *RatingService) ComputeConfidence(scansCount int, clientType string) model.Confidence {
	if clientType == model.ClientAdminManual {
		return model.ConfidenceHigh
	}
	if clientType == model.ClientAIGemini {
		return model.ConfidenceMedium
	}
	if scansCount >= highConfidenceScans {
		return model.ConfidenceHigh
	}
	if scansCount >= mediumConfidenceScans {
		return model.ConfidenceMedium
	}
	return model.ConfidenceLow
}

// PassesFilter reports whether scores fit under maxRating and none of the
// excluded axes exceeds its ceiling. Gates safe-list style views.
func (s *RatingService) PassesFilter(scores model.AxisScores, maxRating model.AgeRating, excludedAxes map[model.AxisKey]int) bool {
	rating := s.ComputeAgeRating(scores)
	if rating.Ordinal() > maxRating.Ordinal() {
		return false
	}

	for axis, ceiling := range excludedAxes {
		if scores[axis] > ceiling {
			return false
		}
	}

	return true
}

// DefaultScores returns a zeroed score map with every axis present.
func (s *RatingService) DefaultScores() model.AxisScores {
	scores := make(model.AxisScores, len(model.AxisKeys))
	for _, key := range model.AxisKeys {
		scores[key] = 0
	}
	return scores
}
