// Package session coordinates one candidate's video review session: the
// question catalog, the per-question outcomes, submission of answers to the
// analysis service, completeness gating before compilation, and reset.
//
// The server is authoritative. Local state is a cache that is filled by Load,
// updated by successful submissions and emptied by a confirmed reset.
package session

import (
	"context"

	"github.com/pavelanni/assessor/internal/model"
)

// Service is the external analysis service as seen by the coordinator.
// Implementations carry the session identity themselves; the coordinator
// never inspects it.
type Service interface {
	Questions(ctx context.Context) (*model.QuestionsResponse, error)
	ProcessVideo(ctx context.Context, questionID int64, video model.Video) (*model.ProcessVideoResponse, error)
	CompileSummary(ctx context.Context) (*model.FinalSummary, error)
	ResetSession(ctx context.Context) error
}
