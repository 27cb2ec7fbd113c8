package render

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/session"
)

// NoticeText maps a session error to a localized message for the user.
func NoticeText(ctx context.Context, err error) string {
	var (
		unknown    *session.UnknownQuestionError
		failed     *session.AnalysisFailedError
		incomplete *session.IncompleteSessionError
	)
	switch {
	case errors.As(err, &failed):
		return i18n.Td(ctx, "NoticeAnalysisFailed", map[string]any{"ID": failed.QuestionID, "Detail": failed.Detail})
	case errors.As(err, &unknown):
		return i18n.Td(ctx, "NoticeUnknownQuestion", map[string]any{"ID": unknown.QuestionID})
	case errors.As(err, &incomplete):
		return i18n.Td(ctx, "NoticeIncompleteSession", map[string]any{"Missing": joinIDs(incomplete.MissingIDs)})
	case errors.Is(err, session.ErrCatalogUnavailable):
		return i18n.T(ctx, "NoticeCatalogUnavailable")
	case errors.Is(err, session.ErrCompilationUnavailable):
		return i18n.T(ctx, "NoticeCompilationUnavailable")
	case errors.Is(err, session.ErrResetFailed):
		return i18n.T(ctx, "NoticeResetFailed")
	case errors.Is(err, session.ErrResetNotConfirmed):
		return i18n.T(ctx, "NoticeResetNotConfirmed")
	case errors.Is(err, session.ErrSubmissionInFlight):
		return i18n.T(ctx, "NoticeSubmissionInFlight")
	case errors.Is(err, session.ErrEmptyVideo):
		return i18n.T(ctx, "NoticeEmptyVideo")
	}
	return i18n.Td(ctx, "NoticeUnexpected", map[string]any{"Error": err.Error()})
}

// Notice writes the localized message for err.
func Notice(ctx context.Context, w io.Writer, err error) {
	fmt.Fprintln(w, NoticeText(ctx, err))
}
