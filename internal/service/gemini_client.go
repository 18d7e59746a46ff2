package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Abdulrahmanaak/kids-in-minds/kim-go/internal/model"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com"

	// Audio payloads up to this size are embedded inline; larger ones go
	// through the file API and are referenced by URI.
	inlineSizeLimit = 15 * 1024 * 1024

	// 429-only retry budget: 15s, 30s, 60s, ... up to 6 retries.
	maxInferenceRetries = 6
	initialBackoff      = 15 * time.Second

	// How much raw model text to keep when reporting a parse failure.
	snippetLen = 200
)

// ModelReview is the sanitized result of one inference call.
type ModelReview struct {
	Scores   model.AxisScores
	Evidence []model.EvidenceItem
	Summary  string
}

// GeminiClient calls the Gemini REST API for content-safety reviews.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	httpc   *http.Client
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewGeminiClient(apiKey, modelName string) *GeminiClient {
	return &GeminiClient{
		apiKey:  apiKey,
		model:   modelName,
		baseURL: geminiBaseURL,
		httpc:   &http.Client{Timeout: 5 * time.Minute},
		sleep:   sleepCtx,
	}
}

// request/response wire types (only the fields we use).

type geminiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *geminiBlob     `json:"inline_data,omitempty"`
	FileData   *geminiFileData `json:"file_data,omitempty"`
}

type geminiBlob struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiFileData struct {
	MimeType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type geminiRequest struct {
	Contents []struct {
		Parts []geminiPart `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		ResponseMimeType string  `json:"responseMimeType"`
		Temperature      float64 `json:"temperature"`
		MaxOutputTokens  int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// ReviewWithAudio submits the prompt together with the audio track and
// returns the sanitized review.
func (c *GeminiClient) ReviewWithAudio(ctx context.Context, prompt string, audio []byte, mimeType string) (*ModelReview, error) {
	audioPart, err := c.buildAudioPart(ctx, audio, mimeType)
	if err != nil {
		return nil, err
	}
	return c.generateWithRetry(ctx, []geminiPart{*audioPart, {Text: prompt}})
}

// ReviewTextOnly submits a text-only prompt built from the video metadata.
func (c *GeminiClient) ReviewTextOnly(ctx context.Context, prompt string) (*ModelReview, error) {
	return c.generateWithRetry(ctx, []geminiPart{{Text: prompt}})
}

func (c *GeminiClient) buildAudioPart(ctx context.Context, audio []byte, mimeType string) (*geminiPart, error) {
	if len(audio) <= inlineSizeLimit {
		return &geminiPart{InlineData: &geminiBlob{
			MimeType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(audio),
		}}, nil
	}

	uri, err := c.uploadFile(ctx, audio, mimeType)
	if err != nil {
		return nil, err
	}
	return &geminiPart{FileData: &geminiFileData{MimeType: mimeType, FileURI: uri}}, nil
}

// uploadFile pushes a large audio payload through the resumable file API
// and returns the file URI to reference in the generate request.
func (c *GeminiClient) uploadFile(ctx context.Context, data []byte, mimeType string) (string, error) {
	startBody, _ := json.Marshal(map[string]any{
		"file": map[string]string{"display_name": "youtube-audio"},
	})
	startURL := fmt.Sprintf("%s/upload/v1beta/files?key=%s", c.baseURL, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, startURL, bytes.NewReader(startBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.Itoa(len(data)))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("start upload: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("start upload: unexpected status %d", resp.StatusCode)
	}

	uploadURL := resp.Header.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return "", fmt.Errorf("start upload: no upload URL in response")
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("X-Goog-Upload-Command", "upload, finalize")
	req.Header.Set("X-Goog-Upload-Offset", "0")

	resp, err = c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("finalize upload: unexpected status %d", resp.StatusCode)
	}

	var uploaded struct {
		File struct {
			URI string `json:"uri"`
		} `json:"file"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if uploaded.File.URI == "" {
		return "", fmt.Errorf("upload returned empty file URI")
	}
	return uploaded.File.URI, nil
}

// generateWithRetry calls generateContent, retrying with exponential backoff
// on 429 responses only. Any other failure, including a parse failure,
// propagates immediately.
func (c *GeminiClient) generateWithRetry(ctx context.Context, parts []geminiPart) (*ModelReview, error) {
	backoff := initialBackoff
	for attempt := 0; ; attempt++ {
		review, err := c.generate(ctx, parts)
		if err == nil {
			return review, nil
		}
		if !errors.Is(err, ErrRateLimited) || attempt == maxInferenceRetries {
			return nil, err
		}

		log.Printf("gemini: rate limited, retry %d/%d in %s", attempt+1, maxInferenceRetries, backoff)
		if serr := c.sleep(ctx, backoff); serr != nil {
			return nil, serr
		}
		backoff *= 2
	}
}

func (c *GeminiClient) generate(ctx context.Context, parts []geminiPart) (*ModelReview, error) {
	var reqBody geminiRequest
	reqBody.Contents = append(reqBody.Contents, struct {
		Parts []geminiPart `json:"parts"`
	}{Parts: parts})
	reqBody.GenerationConfig.ResponseMimeType = "application/json"
	reqBody.GenerationConfig.Temperature = 0.1
	reqBody.GenerationConfig.MaxOutputTokens = 4096

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gemini request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}
	if len(gr.Candidates) == 0 {
		return nil, &InvalidModelOutputError{Snippet: "no candidates in response"}
	}

	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}

	return parseModelReview(sb.String())
}

// parseModelReview parses the model's raw text into a sanitized ModelReview.
// This is the only boundary where untrusted model output is normalized: the
// parse itself is strict (failure is fatal for the call), the field handling
// is lenient so the pipeline always produces some rating.
func parseModelReview(text string) (*ModelReview, error) {
	cleaned := stripCodeFence(text)

	var doc struct {
		Scores   map[string]any    `json:"scores"`
		Evidence []json.RawMessage `json:"evidence"`
		Summary  any               `json:"summary"`
	}
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, &InvalidModelOutputError{Snippet: truncate(text, snippetLen)}
	}

	// Missing or non-numeric axes coerce to 0; values round and clamp into
	// [0,10]. Never rejected: a bad field must not lose a whole review.
	scores := make(model.AxisScores, len(model.AxisKeys))
	for _, key := range model.AxisKeys {
		v, ok := doc.Scores[string(key)]
		n, numeric := v.(float64)
		if !ok || !numeric {
			scores[key] = 0
			continue
		}
		scores[key] = clampScore(int(math.Round(n)))
	}

	// Keep only evidence with a recognized axis and a non-empty note;
	// anything else is dropped silently.
	var evidence []model.EvidenceItem
	for _, raw := range doc.Evidence {
		var e struct {
			AxisKey             any `json:"axisKey"`
			Note                any `json:"note"`
			ApproximateOffsetMs any `json:"approximateOffsetMs"`
		}
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		axis, _ := e.AxisKey.(string)
		note, _ := e.Note.(string)
		if !model.IsAxisKey(axis) || note == "" {
			continue
		}

		item := model.EvidenceItem{
			AxisKey: model.AxisKey(axis),
			Note:    truncate(note, 500),
		}
		if offset, ok := e.ApproximateOffsetMs.(float64); ok && offset >= 0 {
			ms := int(offset)
			item.StartMs = &ms
		}
		evidence = append(evidence, item)
	}

	summary, _ := doc.Summary.(string)

	return &ModelReview{Scores: scores, Evidence: evidence, Summary: summary}, nil
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// stripCodeFence removes an optional ```json ... ``` wrapper the model
// sometimes adds despite the JSON response mime type.
func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
