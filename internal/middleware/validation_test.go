package middleware

import (
	"strings"
	"testing"
)

func TestValidateVideoID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantID  string
		wantErr bool
	}{
		{"valid UUID", "4f6b2f0a-90a1-4c2b-8f9f-0a1b2c3d4e5f", "4f6b2f0a-90a1-4c2b-8f9f-0a1b2c3d4e5f", false},
		{"valid YouTube-style ID", "dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"trims whitespace", "  abc123  ", "abc123", false},
		{"empty", "", "", true},
		{"too long", strings.Repeat("a", 37), "", true},
		{"invalid characters", "abc/../etc", "", true},
		{"sql injection attempt", "abc'; DROP TABLE videos;--", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := ValidateVideoID(tt.input)
			if tt.wantErr && msg == "" {
				t.Errorf("ValidateVideoID(%q) should fail", tt.input)
			}
			if !tt.wantErr && msg != "" {
				t.Errorf("ValidateVideoID(%q) failed: %s", tt.input, msg)
			}
			if got != tt.wantID {
				t.Errorf("ValidateVideoID(%q) = %q, want %q", tt.input, got, tt.wantID)
			}
		})
	}
}

func TestValidateNote(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid note", "profanity at the 2 minute mark", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"exactly 500 chars", strings.Repeat("a", 500), false},
		{"over 500 chars", strings.Repeat("a", 501), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, msg := ValidateNote(tt.input)
			if tt.wantErr && msg == "" {
				t.Errorf("ValidateNote(%q) should fail", tt.input)
			}
			if !tt.wantErr && msg != "" {
				t.Errorf("ValidateNote(%q) failed: %s", tt.input, msg)
			}
		})
	}
}

func TestValidateScoreValue(t *testing.T) {
	for _, v := range []int{0, 5, 10} {
		if !ValidateScoreValue(v) {
			t.Errorf("ValidateScoreValue(%d) = false, want true", v)
		}
	}
	for _, v := range []int{-1, 11, 100} {
		if ValidateScoreValue(v) {
			t.Errorf("ValidateScoreValue(%d) = true, want false", v)
		}
	}
}
