package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/saligia28/meetstream/internal/protocol"
	"github.com/saligia28/meetstream/internal/transcript"
)

// Client provides HTTP client functionality for the meeting backend API
type Client struct {
	config     Config
	httpClient *http.Client

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64

	mu sync.RWMutex
}

// Config contains API client configuration
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// Meeting describes one meeting known to the backend
type Meeting struct {
	ID       string   `json:"id"`
	Title    *string  `json:"title"`
	Duration *float64 `json:"duration"`
	Language *string  `json:"language"`
}

// Summary is a meeting summary with its markdown source
type Summary struct {
	Markdown string
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalRequests   uint64  `json:"total_requests"`
	SuccessRequests uint64  `json:"success_requests"`
	FailedRequests  uint64  `json:"failed_requests"`
	SuccessRate     float64 `json:"success_rate"`
	TotalRetries    uint64  `json:"total_retries"`
}

// NewClient creates a new API client
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
	}, nil
}

// Meetings lists the meetings known to the backend.
func (c *Client) Meetings(ctx context.Context) ([]Meeting, error) {
	var meetings []Meeting
	if err := c.getJSON(ctx, "/meetings", &meetings); err != nil {
		return nil, fmt.Errorf("failed to fetch meetings: %w", err)
	}
	return meetings, nil
}

// Transcript fetches the stored transcript for a meeting. Segments carry
// synthesized ids and speaker defaults matching the realtime path.
func (c *Client) Transcript(ctx context.Context, meetingID string) ([]transcript.Segment, error) {
	var raw []protocol.RawSegment
	if err := c.getJSON(ctx, fmt.Sprintf("/meetings/%s/transcript", meetingID), &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch transcript for meeting %s: %w", meetingID, err)
	}

	now := time.Now()
	segments := make([]transcript.Segment, 0, len(raw))
	for i, seg := range raw {
		speaker := fmt.Sprintf("Speaker %d", i+1)
		if seg.Speaker != nil && *seg.Speaker != "" {
			speaker = *seg.Speaker
		}
		end := seg.Start
		if seg.End != nil {
			end = *seg.End
		}
		segments = append(segments, transcript.Segment{
			ID:        fmt.Sprintf("remote-%s-%d-%g", meetingID, i, seg.Start),
			Speaker:   speaker,
			Text:      seg.Text,
			Start:     seg.Start,
			End:       end,
			CreatedAt: now,
		})
	}

	return segments, nil
}

// SaveTranscript stores the accumulated transcript for a meeting, replacing
// any previous one. Used to reconcile the local session result on stop.
func (c *Client) SaveTranscript(ctx context.Context, meetingID string, segments []transcript.Segment) error {
	raw := make([]protocol.RawSegment, 0, len(segments))
	for i := range segments {
		seg := segments[i]
		end, speaker := seg.End, seg.Speaker
		raw = append(raw, protocol.RawSegment{
			Start:   seg.Start,
			End:     &end,
			Text:    seg.Text,
			Speaker: &speaker,
		})
	}

	if err := c.postJSON(ctx, fmt.Sprintf("/meetings/%s/transcript", meetingID), raw, nil); err != nil {
		return fmt.Errorf("failed to save transcript for meeting %s: %w", meetingID, err)
	}
	return nil
}

// Summary fetches the meeting summary as markdown.
func (c *Client) Summary(ctx context.Context, meetingID string) (*Summary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+fmt.Sprintf("/meetings/%s/summary", meetingID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	c.incrementTotalRequests()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.incrementFailedRequests()
		return nil, fmt.Errorf("failed to fetch summary for meeting %s: %w", meetingID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.incrementFailedRequests()
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.incrementFailedRequests()
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
	}

	c.incrementSuccessRequests()
	return &Summary{Markdown: string(body)}, nil
}

// Settings fetches the server-side detection settings.
func (c *Client) Settings(ctx context.Context) (protocol.DetectionConfig, error) {
	cfg := protocol.DefaultDetectionConfig()
	if err := c.getJSON(ctx, "/settings/detection", &cfg); err != nil {
		return cfg, fmt.Errorf("failed to fetch detection settings: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return protocol.DefaultDetectionConfig(), fmt.Errorf("backend returned invalid detection settings: %w", err)
	}
	return cfg, nil
}

// SaveSettings stores the detection settings on the backend.
func (c *Client) SaveSettings(ctx context.Context, cfg protocol.DetectionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := c.postJSON(ctx, "/settings/detection", cfg, nil); err != nil {
		return fmt.Errorf("failed to save detection settings: %w", err)
	}
	return nil
}

// uploadResponse is the backend's answer to a batch transcription.
type uploadResponse struct {
	Highlights []protocol.RawSegment `json:"highlights"`
}

// UploadRecording submits a complete WAV recording for batch transcription
// and returns the resulting segments. Retries with exponential backoff; this
// is the only retrying path in the client, the realtime stream never retries.
func (c *Client) UploadRecording(ctx context.Context, meetingID string, wavData []byte) ([]transcript.Segment, error) {
	c.incrementTotalRequests()

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.incrementTotalRetries()

			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		segments, err := c.doUpload(ctx, meetingID, wavData)
		if err == nil {
			c.incrementSuccessRequests()
			return segments, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	c.incrementFailedRequests()
	return nil, fmt.Errorf("upload failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// doUpload performs a single multipart upload request.
func (c *Client) doUpload(ctx context.Context, meetingID string, wavData []byte) ([]transcript.Segment, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("audio", "recording.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(wavData); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+fmt.Sprintf("/meetings/%s/transcribe", meetingID), &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed uploadResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	now := time.Now()
	segments := make([]transcript.Segment, 0, len(parsed.Highlights))
	for i, seg := range parsed.Highlights {
		speaker := "Speaker"
		if seg.Speaker != nil && *seg.Speaker != "" {
			speaker = *seg.Speaker
		}
		end := seg.Start
		if seg.End != nil {
			end = *seg.End
		}
		segments = append(segments, transcript.Segment{
			ID:        fmt.Sprintf("trans-%d", i),
			Speaker:   speaker,
			Text:      seg.Text,
			Start:     seg.Start,
			End:       end,
			CreatedAt: now,
		})
	}

	return segments, nil
}

const userAgent = "meetstream/1.0"

// getJSON performs a GET request and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	c.incrementTotalRequests()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		c.incrementFailedRequests()
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	if err := c.do(req, out); err != nil {
		c.incrementFailedRequests()
		return err
	}

	c.incrementSuccessRequests()
	return nil
}

// postJSON performs a POST request with a JSON body, optionally decoding the
// response into out.
func (c *Client) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	c.incrementTotalRequests()

	payload, err := json.Marshal(body)
	if err != nil {
		c.incrementFailedRequests()
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.incrementFailedRequests()
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	if err := c.do(req, out); err != nil {
		c.incrementFailedRequests()
		return err
	}

	c.incrementSuccessRequests()
	return nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response JSON: %w", err)
		}
	}
	return nil
}

// isRetryableError determines if an upload error is worth retrying.
func isRetryableError(err error) bool {
	if err == context.DeadlineExceeded {
		return true
	}

	msg := err.Error()

	// 5xx server errors and rate limiting are retryable.
	if strings.Contains(msg, "HTTP error 5") || strings.Contains(msg, "HTTP error 429") {
		return true
	}

	// Network and connection faults are typically transient.
	if strings.Contains(msg, "connection") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "refused") {
		return true
	}

	return false
}

// Statistics methods
func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) incrementTotalRetries() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRetries++
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    c.totalRetries,
	}
}
