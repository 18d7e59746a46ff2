package service

import (
	"errors"
	"fmt"
)

var (
	// ErrVideoNotFound means the requested video does not exist in the store.
	ErrVideoNotFound = errors.New("video not found")

	// ErrAudioUnavailable means audio could not be obtained for a video.
	// The review pipeline recovers from it by falling back to text-only.
	ErrAudioUnavailable = errors.New("audio unavailable")

	// ErrRateLimited means the inference service refused the request with a
	// 429. Surfaced only after the retry budget is exhausted.
	ErrRateLimited = errors.New("inference service rate limited")

	// ErrInvalidScores means the sanitized model scores failed strict
	// validation. Should be unreachable, guarded defensively.
	ErrInvalidScores = errors.New("invalid axis scores")
)

// InvalidModelOutputError means the model's response could not be parsed as
// the expected JSON document. It carries a truncated snippet of the raw text
// for diagnostics and is never retried.
type InvalidModelOutputError struct {
	Snippet string
}

func (e *InvalidModelOutputError) Error() string {
	return fmt.Sprintf("invalid model output: %s", e.Snippet)
}
