package middleware

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// Field length limits matching database schema constraints.
const (
	MaxVideoIDLen  = 36  // videos.id UUID
	MaxNoteLen     = 500 // evidence_items.note VARCHAR(500)
	MinScore       = 0
	MaxScore       = 10
)

var (
	// videoIDRe matches internal video IDs: UUIDs, plus bare YouTube IDs
	// for development fixtures.
	videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ErrorResponse is a helper that returns a standard API error response.
func ErrorResponse(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}

// ValidateVideoID checks that a video ID is well-formed.
func ValidateVideoID(id string) (string, string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "videoId is required"
	}
	if len(id) > MaxVideoIDLen {
		return "", "videoId must be at most 36 characters"
	}
	if !videoIDRe.MatchString(id) {
		return "", "videoId contains invalid characters"
	}
	return id, ""
}

// ValidateNote trims and checks an evidence note against schema limits.
func ValidateNote(note string) (string, string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return "", "evidence note must not be empty"
	}
	if len(note) > MaxNoteLen {
		return "", "evidence note must be at most 500 characters"
	}
	return note, ""
}

// ValidateScoreValue checks that a single axis score is in range.
func ValidateScoreValue(v int) bool {
	return v >= MinScore && v <= MaxScore
}
