package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/pavelanni/assessor/internal/model"
)

// GazeThreshold is the share of away-looking frames above which an answer
// is flagged.
const GazeThreshold = 0.20

// MetricsFromGaze converts frame counts from a gaze detector into metrics.
// Violations grow with the away ratio in tenths, rounded up.
func MetricsFromGaze(awayFrames, processedFrames int) model.CVMetrics {
	if processedFrames <= 0 {
		return model.CVMetrics{}
	}
	ratio := float64(awayFrames) / float64(processedFrames)
	return model.CVMetrics{
		EyeMovementRatio: math.Round(ratio*100) / 100,
		Violations:       int(math.Ceil(ratio * 10)),
		CheatingFlag:     ratio > GazeThreshold,
	}
}

// GazeCounter counts the frames of a video in which the candidate looks
// away from the screen.
type GazeCounter interface {
	CountGaze(ctx context.Context, video model.Video) (away, processed int, err error)
}

// GazeChecker is an IntegrityChecker backed by a GazeCounter.
type GazeChecker struct {
	Counter GazeCounter
}

func (g GazeChecker) Check(ctx context.Context, video model.Video) (model.CVMetrics, error) {
	away, processed, err := g.Counter.CountGaze(ctx, video)
	if err != nil {
		return model.CVMetrics{}, fmt.Errorf("gaze detection: %w", err)
	}
	if away < 0 || processed < 0 || away > processed {
		return model.CVMetrics{}, fmt.Errorf("gaze detection: invalid frame counts %d/%d", away, processed)
	}
	return MetricsFromGaze(away, processed), nil
}

// HTTPGazeCounter posts the raw video to a gaze detection service and reads
// back {"awayFrames": n, "processedFrames": m}.
type HTTPGazeCounter struct {
	URL    string
	Client *http.Client
}

// NewHTTPGazeCounter creates a counter for the service at url.
func NewHTTPGazeCounter(url string, timeout time.Duration) *HTTPGazeCounter {
	return &HTTPGazeCounter{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (h *HTTPGazeCounter) CountGaze(ctx context.Context, video model.Video) (int, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(video.Content))
	if err != nil {
		return 0, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Filename", video.Filename)

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, 0, fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var out struct {
		AwayFrames      *int `json:"awayFrames"`
		ProcessedFrames *int `json:"processedFrames"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, 0, fmt.Errorf("parse response: %w", err)
	}
	if out.AwayFrames == nil || out.ProcessedFrames == nil {
		return 0, 0, fmt.Errorf("response missing frame counts")
	}
	return *out.AwayFrames, *out.ProcessedFrames, nil
}
