// Package analysis turns one recorded answer into a scored review outcome
// and aggregates outcomes into the final summary.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/pavelanni/assessor/internal/model"
)

// Transcript is the speech-to-text result for one video.
type Transcript struct {
	Text     string
	Accuracy float64
}

// Score is a rubric score with its justification.
type Score struct {
	Score  int
	Reason string
}

type Transcriber interface {
	Transcribe(ctx context.Context, video model.Video) (Transcript, error)
}

type Scorer interface {
	Score(ctx context.Context, question model.Question, transcript string) (Score, error)
}

type IntegrityChecker interface {
	Check(ctx context.Context, video model.Video) (model.CVMetrics, error)
}

// Analyzer produces a review outcome for one answer.
type Analyzer interface {
	Analyze(ctx context.Context, question model.Question, video model.Video) (model.ReviewOutcome, error)
}

// Pipeline runs transcription, scoring and the integrity check in sequence.
type Pipeline struct {
	Transcriber Transcriber
	Scorer      Scorer
	Integrity   IntegrityChecker
}

func (p *Pipeline) Analyze(ctx context.Context, question model.Question, video model.Video) (model.ReviewOutcome, error) {
	if len(video.Content) == 0 {
		return model.ReviewOutcome{}, errors.New("empty video")
	}
	tr, err := p.Transcriber.Transcribe(ctx, video)
	if err != nil {
		return model.ReviewOutcome{}, fmt.Errorf("transcribe: %w", err)
	}
	sc, err := p.Scorer.Score(ctx, question, tr.Text)
	if err != nil {
		return model.ReviewOutcome{}, fmt.Errorf("score: %w", err)
	}
	checker := p.Integrity
	if checker == nil {
		checker = NoSignal{}
	}
	metrics, err := checker.Check(ctx, video)
	if err != nil {
		return model.ReviewOutcome{}, fmt.Errorf("integrity check: %w", err)
	}

	outcome := model.ReviewOutcome{
		QuestionID:  question.ID,
		Score:       sc.Score,
		Reason:      sc.Reason,
		STTAccuracy: clampAccuracy(tr.Accuracy),
		Transcript:  tr.Text,
		CVMetrics:   metrics,
	}
	outcome = ApplyIntegrity(outcome)
	if err := outcome.Validate(); err != nil {
		return model.ReviewOutcome{}, fmt.Errorf("invalid outcome: %w", err)
	}
	slog.Debug("answer analyzed",
		"question_id", question.ID,
		"score", outcome.Score,
		"stt_accuracy", outcome.STTAccuracy,
		"cheating_flag", metrics.CheatingFlag,
	)
	return outcome, nil
}

// ApplyIntegrity lowers the score of a flagged outcome to at most 2 and
// replaces the reason with an integrity notice.
func ApplyIntegrity(o model.ReviewOutcome) model.ReviewOutcome {
	if !o.CVMetrics.CheatingFlag {
		return o
	}
	o.Score = min(o.Score, 2)
	o.Reason = fmt.Sprintf(
		"INTEGRITY CONCERN DETECTED (CV Analysis): Score lowered due to suspected non-verbal violation (Eye Movement Ratio: %.2f). Human review required.",
		o.CVMetrics.EyeMovementRatio,
	)
	return o
}

func clampAccuracy(a float64) float64 {
	if math.IsNaN(a) {
		return 0
	}
	return math.Max(0, math.Min(100, a))
}

// NoSignal is an integrity checker that never flags anything.
type NoSignal struct{}

func (NoSignal) Check(context.Context, model.Video) (model.CVMetrics, error) {
	return model.CVMetrics{}, nil
}
