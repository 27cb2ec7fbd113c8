package session

import (
	"context"
	"fmt"
	"log/slog"
)

// ResetController clears the session on the server and then locally.
type ResetController struct {
	state *State
	svc   Service
	coord *Coordinator
}

// NewResetController creates a ResetController. coord may be nil; when set,
// reset is refused while a submission is pending and holds the submission
// slot until it finishes.
func NewResetController(state *State, svc Service, coord *Coordinator) *ResetController {
	return &ResetController{state: state, svc: svc, coord: coord}
}

// Reset destroys every outcome of the session. It requires confirmed to be
// true. Local state is cleared only after the server confirms; on failure it
// is left intact and ErrResetFailed is returned.
func (r *ResetController) Reset(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrResetNotConfirmed
	}
	if r.coord != nil {
		if err := r.coord.acquire(); err != nil {
			return err
		}
		defer r.coord.release()
	}
	if err := r.svc.ResetSession(ctx); err != nil {
		slog.Warn("remote reset failed, keeping local state", "error", err)
		return fmt.Errorf("%w: %w", ErrResetFailed, err)
	}
	r.state.Clear()
	slog.Info("session reset")
	return nil
}
