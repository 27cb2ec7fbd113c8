package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pavelanni/assessor/internal/model"
)

// AttemptStatus is the state of the latest review attempt for a question.
type AttemptStatus string

const (
	AttemptIdle       AttemptStatus = "idle"
	AttemptSubmitting AttemptStatus = "submitting"
	AttemptSucceeded  AttemptStatus = "succeeded"
	AttemptFailed     AttemptStatus = "failed"
)

// Progress summarizes how many catalog questions have been reviewed.
type Progress struct {
	Reviewed int
	Total    int
	Complete bool
}

// Coordinator submits answers to the analysis service and folds the results
// into State. Only one submission may be pending at a time across the session.
type Coordinator struct {
	catalog *Catalog
	state   *State
	svc     Service

	mu         sync.Mutex
	submitting bool
	attempts   map[int64]AttemptStatus
}

// NewCoordinator creates a Coordinator over catalog and state.
func NewCoordinator(catalog *Catalog, state *State, svc Service) *Coordinator {
	return &Coordinator{
		catalog:  catalog,
		state:    state,
		svc:      svc,
		attempts: make(map[int64]AttemptStatus),
	}
}

// Submit sends one video answer for questionID and applies the resulting
// outcome. On failure State is left unchanged and the question can be
// resubmitted. Resubmitting a reviewed question replaces its outcome.
func (c *Coordinator) Submit(ctx context.Context, questionID int64, video model.Video) (Progress, error) {
	if !c.catalog.Contains(questionID) {
		return c.Progress(), &UnknownQuestionError{QuestionID: questionID}
	}
	if len(video.Content) == 0 {
		return c.Progress(), ErrEmptyVideo
	}
	if err := c.begin(questionID); err != nil {
		return c.Progress(), err
	}

	outcome, err := c.analyze(ctx, questionID, video)
	if err == nil {
		err = c.state.Upsert(outcome)
	}
	if err != nil {
		c.finish(questionID, AttemptFailed)
		slog.Warn("review failed", "question_id", questionID, "error", err)
		return c.Progress(), err
	}

	c.finish(questionID, AttemptSucceeded)
	p := c.Progress()
	slog.Info("review applied",
		"question_id", questionID,
		"score", outcome.Score,
		"reviewed", p.Reviewed,
		"total", p.Total,
	)
	return p, nil
}

func (c *Coordinator) analyze(ctx context.Context, questionID int64, video model.Video) (model.ReviewOutcome, error) {
	resp, err := c.svc.ProcessVideo(ctx, questionID, video)
	if err != nil {
		return model.ReviewOutcome{}, &AnalysisFailedError{QuestionID: questionID, Detail: err.Error(), Err: err}
	}
	if resp == nil {
		return model.ReviewOutcome{}, &AnalysisFailedError{QuestionID: questionID, Detail: "empty response"}
	}
	o := resp.LatestScore
	if o.QuestionID != questionID {
		return model.ReviewOutcome{}, &AnalysisFailedError{
			QuestionID: questionID,
			Detail:     fmt.Sprintf("result is for question %d", o.QuestionID),
		}
	}
	if err := o.Validate(); err != nil {
		return model.ReviewOutcome{}, &AnalysisFailedError{QuestionID: questionID, Detail: "invalid result: " + err.Error(), Err: err}
	}
	slog.Debug("analysis result received", "question_id", questionID, "server_history", len(resp.AssessmentData))
	return o, nil
}

func (c *Coordinator) begin(questionID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting {
		return ErrSubmissionInFlight
	}
	c.submitting = true
	c.attempts[questionID] = AttemptSubmitting
	return nil
}

// acquire takes the submission slot without starting an attempt. Submit
// fails with ErrSubmissionInFlight until release is called.
func (c *Coordinator) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting {
		return ErrSubmissionInFlight
	}
	c.submitting = true
	return nil
}

func (c *Coordinator) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
}

func (c *Coordinator) finish(questionID int64, status AttemptStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	c.attempts[questionID] = status
}

// Attempt returns the status of the latest attempt for questionID.
func (c *Coordinator) Attempt(questionID int64) AttemptStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.attempts[questionID]; ok {
		return s
	}
	return AttemptIdle
}

// Submitting reports whether a submission is pending.
func (c *Coordinator) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// Progress recomputes review progress from State.
func (c *Coordinator) Progress() Progress {
	return Progress{
		Reviewed: c.state.Len(),
		Total:    c.catalog.Len(),
		Complete: c.state.CompleteFor(c.catalog),
	}
}
