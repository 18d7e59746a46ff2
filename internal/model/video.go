package model

import "time"

// Video represents an imported YouTube video in the database.
type Video struct {
	ID             string    `json:"id"`
	YouTubeVideoID string    `json:"youtubeVideoId"`
	ChannelID      *string   `json:"channelId,omitempty"`
	Title          string    `json:"title"`
	Description    *string   `json:"description,omitempty"`
	DurationSec    *float64  `json:"durationSec,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TranscriptSegment is a single timed utterance from a video transcript.
type TranscriptSegment struct {
	Text       string `json:"text"`
	OffsetMs   int    `json:"offset"`
	DurationMs int    `json:"duration"`
}

// Transcript is the ordered transcript for a video. Segments is empty
// (not an error) when no transcript is available.
type Transcript struct {
	Segments []TranscriptSegment `json:"segments"`
	Language *string             `json:"language,omitempty"`
}
