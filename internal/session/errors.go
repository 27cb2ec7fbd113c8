package session

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCatalogUnavailable means the question catalog could not be loaded.
	// The session cannot proceed without it.
	ErrCatalogUnavailable = errors.New("question catalog unavailable")
	// ErrUnknownQuestion means an id is not part of the catalog.
	ErrUnknownQuestion = errors.New("unknown question")
	// ErrAnalysisFailed means a single video submission failed. The user may retry.
	ErrAnalysisFailed = errors.New("analysis failed")
	// ErrIncompleteSession means not every catalog question has an outcome yet.
	ErrIncompleteSession = errors.New("session incomplete")
	// ErrCompilationUnavailable means the compilation service could not be reached
	// or returned an unusable payload. Safe to retry.
	ErrCompilationUnavailable = errors.New("summary compilation unavailable")
	// ErrResetFailed means the server did not confirm the reset. Local state is kept.
	ErrResetFailed = errors.New("session reset failed")
	// ErrResetNotConfirmed means reset was requested without user confirmation.
	ErrResetNotConfirmed = errors.New("session reset not confirmed")
	// ErrSubmissionInFlight means another submission is still pending.
	ErrSubmissionInFlight = errors.New("another submission is in progress")
	// ErrEmptyVideo means the submitted video has no content.
	ErrEmptyVideo = errors.New("video is empty")
)

// UnknownQuestionError reports an outcome or submission for an id outside the catalog.
type UnknownQuestionError struct {
	QuestionID int64
}

func (e *UnknownQuestionError) Error() string {
	return fmt.Sprintf("%s: id %d", ErrUnknownQuestion, e.QuestionID)
}

func (e *UnknownQuestionError) Unwrap() error { return ErrUnknownQuestion }

// AnalysisFailedError reports a failed submission for one question.
type AnalysisFailedError struct {
	QuestionID int64
	Detail     string
	Err        error
}

func (e *AnalysisFailedError) Error() string {
	return fmt.Sprintf("%s for question %d: %s", ErrAnalysisFailed, e.QuestionID, e.Detail)
}

func (e *AnalysisFailedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAnalysisFailed}
	}
	return []error{ErrAnalysisFailed, e.Err}
}

// IncompleteSessionError lists the catalog questions still missing an outcome.
type IncompleteSessionError struct {
	MissingIDs []int64
}

func (e *IncompleteSessionError) Error() string {
	ids := make([]string, len(e.MissingIDs))
	for i, id := range e.MissingIDs {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("%s: missing questions [%s]", ErrIncompleteSession, strings.Join(ids, ","))
}

func (e *IncompleteSessionError) Unwrap() error { return ErrIncompleteSession }
