package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pavelanni/assessor/internal/model"
)

// Compiler gates and requests the final summary of a session.
// Totals and the decision come from the server; they are never recomputed here.
type Compiler struct {
	catalog *Catalog
	state   *State
	svc     Service

	mu      sync.Mutex
	latest  *model.FinalSummary
	version uint64
}

// NewCompiler creates a Compiler over catalog and state.
func NewCompiler(catalog *Catalog, state *State, svc Service) *Compiler {
	return &Compiler{catalog: catalog, state: state, svc: svc}
}

// Compile requests the final summary. It fails with *IncompleteSessionError,
// without contacting the server, unless every catalog question is reviewed.
func (c *Compiler) Compile(ctx context.Context) (*model.FinalSummary, error) {
	version := c.state.Version()
	if !c.state.CompleteFor(c.catalog) {
		return nil, &IncompleteSessionError{MissingIDs: c.state.Missing(c.catalog.IDs())}
	}

	summary, err := c.svc.CompileSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompilationUnavailable, err)
	}
	if summary == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrCompilationUnavailable)
	}
	if summary.Decision == "" || strings.TrimSpace(summary.ReviewedAt) == "" {
		return nil, fmt.Errorf("%w: payload without decision or reviewedAt", ErrCompilationUnavailable)
	}

	c.mu.Lock()
	c.latest = summary
	c.version = version
	c.mu.Unlock()
	return summary, nil
}

// Latest returns the last compiled summary, or nil if none was compiled or
// the session changed since.
func (c *Compiler) Latest() *model.FinalSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil || c.version != c.state.Version() {
		return nil
	}
	return c.latest
}

// ExportFileName names the exported summary after the date part of its
// ReviewedAt timestamp, or after now when that is missing or unparsable.
func ExportFileName(summary *model.FinalSummary, now time.Time) string {
	date := now.Format(time.DateOnly)
	if summary != nil {
		if d, _, _ := strings.Cut(strings.TrimSpace(summary.ReviewedAt), " "); d != "" {
			d, _, _ = strings.Cut(d, "T")
			if _, err := time.Parse(time.DateOnly, d); err == nil {
				date = d
			}
		}
	}
	return "final_assessment_payload_" + date + ".json"
}

// WriteExport writes summary as indented JSON followed by a newline.
func WriteExport(w io.Writer, summary *model.FinalSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
