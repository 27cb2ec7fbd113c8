// Package client talks to the video analysis service over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pavelanni/assessor/internal/model"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Client calls the analysis service. The session cookie set by the server is
// kept in the client's cookie jar and sent with every request.
type Client struct {
	base       *url.URL
	http       *http.Client
	jar        *cookiejar.Jar
	cookieFile string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient uses a copy of hc for requests. The copy gets the Client's
// own jar; hc itself is never modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		cp := *hc
		c.http = &cp
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithCookieFile loads session cookies from path and makes SaveCookies write them back.
func WithCookieFile(path string) Option {
	return func(c *Client) { c.cookieFile = path }
}

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: 5 * time.Minute},
		jar:  jar,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.Jar = jar
	if c.cookieFile != "" {
		if err := c.loadCookies(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Questions fetches the question catalog and the outcomes already stored for this session.
func (c *Client) Questions(ctx context.Context) (*model.QuestionsResponse, error) {
	var raw struct {
		Questions []struct {
			ID       *int64  `json:"id"`
			Question *string `json:"question"`
		} `json:"questions"`
		CurrentScores []model.ReviewOutcome `json:"current_scores"`
	}
	if err := c.do(ctx, http.MethodGet, "/questions", nil, "", &raw); err != nil {
		return nil, err
	}

	resp := &model.QuestionsResponse{CurrentScores: raw.CurrentScores}
	for i, q := range raw.Questions {
		if q.ID == nil || q.Question == nil {
			return nil, fmt.Errorf("malformed question at position %d: missing id or question", i)
		}
		resp.Questions = append(resp.Questions, model.Question{ID: *q.ID, Text: *q.Question})
	}
	return resp, nil
}

// ProcessVideo uploads one video answer for questionID.
func (c *Client) ProcessVideo(ctx context.Context, questionID int64, video model.Video) (*model.ProcessVideoResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("questionId", strconv.FormatInt(questionID, 10)); err != nil {
		return nil, fmt.Errorf("write questionId field: %w", err)
	}
	name := filepath.Base(video.Filename)
	if name == "." || name == string(filepath.Separator) {
		name = "answer.webm"
	}
	fw, err := mw.CreateFormFile("videoFile", name)
	if err != nil {
		return nil, fmt.Errorf("create videoFile part: %w", err)
	}
	if _, err := fw.Write(video.Content); err != nil {
		return nil, fmt.Errorf("write videoFile part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	var resp model.ProcessVideoResponse
	if err := c.do(ctx, http.MethodPost, "/process_video", &body, mw.FormDataContentType(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CompileSummary asks the server to compile the final summary from its session state.
func (c *Client) CompileSummary(ctx context.Context) (*model.FinalSummary, error) {
	var raw struct {
		FinalPayload *model.FinalSummary `json:"final_payload"`
	}
	if err := c.do(ctx, http.MethodGet, "/compile_summary", nil, "", &raw); err != nil {
		return nil, err
	}
	if raw.FinalPayload == nil {
		return nil, fmt.Errorf("malformed /compile_summary response: missing final_payload")
	}
	return raw.FinalPayload, nil
}

// ResetSession clears the server-held session state.
func (c *Client) ResetSession(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/reset_session", nil, "", nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	slog.Debug("service call", "method", method, "path", path, "status", resp.StatusCode,
		"bytes", len(data), "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		var e model.ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s response: %w", path, err)
	}
	return nil
}
