package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	downloadTimeout = 2 * time.Minute
	probeTimeout    = 30 * time.Second
)

// AudioResult is the outcome of a successful audio extraction.
type AudioResult struct {
	Data        []byte
	MimeType    string
	DurationSec *int
	SizeBytes   int
}

// AudioService downloads the best available audio stream for a video by
// shelling out to yt-dlp. Every failure mode (missing binary, timeout,
// non-zero exit, unreadable output) is reported as ErrAudioUnavailable so
// callers can uniformly degrade to text-only review.
type AudioService struct {
	ytdlpPath string
}

func NewAudioService(ytdlpPath string) *AudioService {
	if ytdlpPath == "" {
		ytdlpPath = "yt-dlp"
	}
	return &AudioService{ytdlpPath: ytdlpPath}
}

// ExtractAudio downloads best-audio for the given YouTube video ID into a
// scoped temp directory, reads it back into memory and removes the directory
// on all exit paths.
func (s *AudioService) ExtractAudio(ctx context.Context, youtubeVideoID string) (*AudioResult, error) {
	tempDir, err := os.MkdirTemp("", "yt-audio-")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp dir: %v", ErrAudioUnavailable, err)
	}
	defer os.RemoveAll(tempDir)

	url := "https://www.youtube.com/watch?v=" + youtubeVideoID
	outputTemplate := filepath.Join(tempDir, "audio.%(ext)s")

	dlCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	cmd := exec.CommandContext(dlCtx, s.ytdlpPath,
		"-f", "bestaudio[ext=webm]/bestaudio",
		"--no-playlist",
		"--no-warnings",
		"--quiet",
		"-o", outputTemplate,
		url,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%w: yt-dlp failed for %s: %v (%s)",
			ErrAudioUnavailable, youtubeVideoID, err, truncate(string(out), 120))
	}

	matches, err := filepath.Glob(filepath.Join(tempDir, "audio.*"))
	if err != nil || len(matches) == 0 {
		return nil, fmt.Errorf("%w: no output file for %s", ErrAudioUnavailable, youtubeVideoID)
	}
	filePath := matches[0]

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrAudioUnavailable, filePath, err)
	}

	// Duration probe is best-effort; its failure never fails the extraction.
	duration := s.probeDuration(ctx, url)
	if duration == nil {
		log.Printf("audio: duration probe failed for %s", youtubeVideoID)
	}

	return &AudioResult{
		Data:        data,
		MimeType:    mimeTypeForFile(filePath),
		DurationSec: duration,
		SizeBytes:   len(data),
	}, nil
}

func (s *AudioService) probeDuration(ctx context.Context, url string) *int {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, s.ytdlpPath,
		"--print", "duration",
		"--no-playlist",
		url,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	sec, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil || sec <= 0 {
		return nil
	}
	return &sec
}

func mimeTypeForFile(path string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "m4a", "mp4":
		return "audio/mp4"
	default:
		return "audio/webm"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
