package analysis

import (
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/assessor/internal/model"
)

const (
	failBelow       = 0.50
	borderlineBelow = 0.75

	notesPass = "Assessment passed all checks. Transcript analysis confirmed strong performance. No integrity concerns detected."
)

// Summarize aggregates one outcome per question into the final summary.
// Outcomes must cover exactly the given questions.
func Summarize(questions []model.Question, outcomes []model.ReviewOutcome, reviewedAt time.Time) (model.FinalSummary, error) {
	if len(questions) == 0 {
		return model.FinalSummary{}, errors.New("no questions")
	}
	byID := make(map[int64]model.ReviewOutcome, len(outcomes))
	for _, o := range outcomes {
		byID[o.QuestionID] = o
	}
	if len(byID) != len(questions) {
		return model.FinalSummary{}, fmt.Errorf("have %d outcomes for %d questions", len(byID), len(questions))
	}

	perQuestion := make([]model.ReviewOutcome, 0, len(questions))
	var total, violations int
	flagged := false
	for _, q := range questions {
		o, ok := byID[q.ID]
		if !ok {
			return model.FinalSummary{}, fmt.Errorf("no outcome for question %d", q.ID)
		}
		perQuestion = append(perQuestion, o)
		total += o.Score
		violations += o.CVMetrics.Violations
		flagged = flagged || o.CVMetrics.CheatingFlag
	}
	maxScore := model.MaxScore * len(questions)
	ratio := float64(total) / float64(maxScore)

	var decision model.Decision
	var notes string
	switch {
	case ratio < failBelow:
		decision = model.DecisionFail
		notes = fmt.Sprintf("Score below passing threshold (%d/%d). Review transcripts before confirming.", total, maxScore)
	case flagged || ratio < borderlineBelow:
		decision = model.DecisionBorderline
		notes = fmt.Sprintf("Potential Integrity Issue (Violations: %d) and/or low score (%d/%d). Review non-verbal data.", violations, total, maxScore)
	default:
		decision = model.DecisionPass
		notes = notesPass
	}

	return model.FinalSummary{
		PerQuestion:  perQuestion,
		TotalScore:   float64(total),
		MaxScore:     float64(maxScore),
		Decision:     decision,
		OverallNotes: notes,
		ReviewedAt:   reviewedAt.UTC().Format(model.ReviewedAtLayout),
	}, nil
}
