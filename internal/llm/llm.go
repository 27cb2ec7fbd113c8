package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/pavelanni/assessor/internal/analysis"
	"github.com/pavelanni/assessor/internal/llm/prompts"
	"github.com/pavelanni/assessor/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// ScoreResult is the JSON object the model returns for one transcript.
type ScoreResult struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api      *openai.Client
	model    string
	sttModel string
	prompts  *prompts.Set
	variant  prompts.PromptVariant
	language string
}

// Option configures a Client.
type Option func(*Client)

// WithTranscriptionModel sets the speech-to-text model (default whisper-1).
func WithTranscriptionModel(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.sttModel = name
		}
	}
}

// WithPromptVariant selects the scoring prompt variant.
func WithPromptVariant(v prompts.PromptVariant) Option {
	return func(c *Client) { c.variant = v }
}

// WithLanguage hints the spoken language (ISO-639-1) to the transcriber.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string, set *prompts.Set, opts ...Option) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	c := &Client{
		api:      openai.NewClientWithConfig(config),
		model:    modelName,
		sttModel: openai.Whisper1,
		prompts:  set,
		variant:  prompts.PromptStandard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping checks that the API is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Transcribe sends the video to the transcription endpoint.
func (c *Client) Transcribe(ctx context.Context, video model.Video) (analysis.Transcript, error) {
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.sttModel,
		FilePath: video.Filename,
		Reader:   bytes.NewReader(video.Content),
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: c.language,
	})
	if err != nil {
		return analysis.Transcript{}, fmt.Errorf("transcription API call: %w", err)
	}

	logprobs := make([]float64, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		logprobs = append(logprobs, seg.AvgLogprob)
	}
	text := strings.TrimSpace(resp.Text)
	slog.Debug("transcription done", "file", video.Filename, "segments", len(resp.Segments), "chars", len(text))
	return analysis.Transcript{Text: text, Accuracy: accuracyFromLogprobs(logprobs)}, nil
}

// accuracyFromLogprobs estimates recognition accuracy in percent as the mean
// per-segment token probability.
func accuracyFromLogprobs(logprobs []float64) float64 {
	if len(logprobs) == 0 {
		return 0
	}
	var sum float64
	for _, lp := range logprobs {
		sum += math.Exp(min(lp, 0))
	}
	acc := sum / float64(len(logprobs)) * 100
	return math.Round(acc*100) / 100
}

// Score asks the chat model to score a transcript against the question.
func (c *Client) Score(ctx context.Context, question model.Question, transcript string) (analysis.Score, error) {
	systemPrompt, err := c.prompts.BuildScorePrompt(c.variant, question, transcript)
	if err != nil {
		return analysis.Score{}, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return analysis.Score{}, fmt.Errorf("LLM scoring API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return analysis.Score{}, fmt.Errorf("LLM returned no choices for scoring")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)
	return parseScore(raw)
}

func parseScore(raw string) (analysis.Score, error) {
	var result ScoreResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return analysis.Score{}, fmt.Errorf("parse scoring response: %w (raw: %s)", err, raw)
	}
	score := math.Round(result.Score)
	if score < model.MinScore || score > model.MaxScore {
		return analysis.Score{}, fmt.Errorf("score %v out of range [%d,%d]", result.Score, model.MinScore, model.MaxScore)
	}
	return analysis.Score{Score: int(score), Reason: strings.TrimSpace(result.Reason)}, nil
}
