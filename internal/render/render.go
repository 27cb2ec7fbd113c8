// Package render writes read-only terminal views of a review session.
package render

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/session"
)

const maxQuestionWidth = 60

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

func integrity(ctx context.Context, m model.CVMetrics) string {
	if !m.CheatingFlag {
		return i18n.T(ctx, "Clean")
	}
	return i18n.Td(ctx, "Flagged", map[string]any{
		"Violations": m.Violations,
		"Ratio":      strconv.FormatFloat(m.EyeMovementRatio, 'f', 2, 64),
	})
}

func scoreText(score int) string {
	return fmt.Sprintf("%d/%d", score, model.MaxScore)
}

// Progress lists every catalog question with its review status.
func Progress(ctx context.Context, w io.Writer, catalog *session.Catalog, state *session.State) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "#\t%s\t%s\t%s\t%s\n",
		i18n.T(ctx, "Question"), i18n.T(ctx, "Status"), i18n.T(ctx, "Score"), i18n.T(ctx, "Integrity"))
	for _, q := range catalog.Questions() {
		o, ok := state.Get(q.ID)
		if !ok {
			fmt.Fprintf(tw, "%d\t%s\t%s\t-\t-\n", q.ID, truncate(q.Text, maxQuestionWidth), i18n.T(ctx, "NotReviewed"))
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", q.ID, truncate(q.Text, maxQuestionWidth),
			i18n.T(ctx, "Reviewed"), scoreText(o.Score), integrity(ctx, o.CVMetrics))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	reviewed := state.Len()
	fmt.Fprintln(w)
	// The noun agrees with the catalog size, not the reviewed count.
	fmt.Fprintln(w, i18n.Tpd(ctx, "ProgressReviewed", catalog.Len(), map[string]any{"Reviewed": reviewed}))
	if state.CompleteFor(catalog) {
		fmt.Fprintln(w, i18n.T(ctx, "ReadyToCompile"))
	}
	return nil
}

// Outcome shows the result of one review.
func Outcome(ctx context.Context, w io.Writer, o model.ReviewOutcome) error {
	fmt.Fprintln(w, i18n.Td(ctx, "ReviewSaved", map[string]any{"ID": o.QuestionID, "Score": o.Score, "Max": model.MaxScore}))
	tw := newTable(w)
	fmt.Fprintf(tw, "%s:\t%s\n", i18n.T(ctx, "Reason"), o.Reason)
	fmt.Fprintf(tw, "%s:\t%.1f%%\n", i18n.T(ctx, "Accuracy"), o.STTAccuracy)
	fmt.Fprintf(tw, "%s:\t%s\n", i18n.T(ctx, "Integrity"), integrity(ctx, o.CVMetrics))
	if o.Transcript != "" {
		fmt.Fprintf(tw, "%s:\t%s\n", i18n.T(ctx, "Transcript"), truncate(o.Transcript, 200))
	}
	return tw.Flush()
}

// DecisionLabel localizes the known decisions and passes others through.
func DecisionLabel(ctx context.Context, d model.Decision) string {
	switch d {
	case model.DecisionPass:
		return i18n.T(ctx, "DecisionPass")
	case model.DecisionFail:
		return i18n.T(ctx, "DecisionFail")
	case model.DecisionBorderline:
		return i18n.T(ctx, "DecisionBorderline")
	}
	return string(d)
}

// Summary shows a compiled final summary.
func Summary(ctx context.Context, w io.Writer, s *model.FinalSummary) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "#\t%s\t%s\t%s\n", i18n.T(ctx, "Score"), i18n.T(ctx, "Integrity"), i18n.T(ctx, "Reason"))
	for _, o := range s.PerQuestion {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", o.QuestionID, scoreText(o.Score), integrity(ctx, o.CVMetrics), truncate(o.Reason, 80))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	tw = newTable(w)
	fmt.Fprintf(tw, "%s:\t%g/%g\n", i18n.T(ctx, "TotalScore"), s.TotalScore, s.MaxScore)
	fmt.Fprintf(tw, "%s:\t%s\n", i18n.T(ctx, "Decision"), DecisionLabel(ctx, s.Decision))
	if s.ReviewedAt != "" {
		fmt.Fprintf(tw, "%s:\t%s\n", i18n.T(ctx, "ReviewedAt"), s.ReviewedAt)
	}
	if s.OverallNotes != "" {
		fmt.Fprintf(tw, "%s:\t%s\n", i18n.T(ctx, "OverallNotes"), s.OverallNotes)
	}
	return tw.Flush()
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
