package session

import (
	"context"

	"github.com/pavelanni/assessor/internal/model"
)

// Session bundles the components of one review session around a single
// State. Rendering code reads from it but never mutates it.
type Session struct {
	Catalog     *Catalog
	State       *State
	Coordinator *Coordinator
	Compiler    *Compiler
	Resetter    *ResetController
}

// Open loads the catalog and the server-held outcomes and wires the
// coordinator, compiler and reset controller around them.
func Open(ctx context.Context, svc Service) (*Session, error) {
	catalog, state, err := Load(ctx, svc)
	if err != nil {
		return nil, err
	}
	coord := NewCoordinator(catalog, state, svc)
	return &Session{
		Catalog:     catalog,
		State:       state,
		Coordinator: coord,
		Compiler:    NewCompiler(catalog, state, svc),
		Resetter:    NewResetController(state, svc, coord),
	}, nil
}

// Submit is a shorthand for s.Coordinator.Submit.
func (s *Session) Submit(ctx context.Context, questionID int64, video model.Video) (Progress, error) {
	return s.Coordinator.Submit(ctx, questionID, video)
}

// Compile is a shorthand for s.Compiler.Compile.
func (s *Session) Compile(ctx context.Context) (*model.FinalSummary, error) {
	return s.Compiler.Compile(ctx)
}

// Reset is a shorthand for s.Resetter.Reset.
func (s *Session) Reset(ctx context.Context, confirmed bool) error {
	return s.Resetter.Reset(ctx, confirmed)
}
