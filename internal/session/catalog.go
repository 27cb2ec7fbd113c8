package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/assessor/internal/model"
)

// Catalog is the immutable, ordered list of questions for a session.
type Catalog struct {
	questions []model.Question
	index     map[int64]int
}

// NewCatalog builds a catalog, rejecting empty lists, duplicate ids and
// questions without an id or text.
func NewCatalog(questions []model.Question) (*Catalog, error) {
	if len(questions) == 0 {
		return nil, errors.New("catalog has no questions")
	}
	c := &Catalog{
		questions: make([]model.Question, len(questions)),
		index:     make(map[int64]int, len(questions)),
	}
	for i, q := range questions {
		if q.ID <= 0 {
			return nil, fmt.Errorf("question at position %d has invalid id %d", i, q.ID)
		}
		if strings.TrimSpace(q.Text) == "" {
			return nil, fmt.Errorf("question %d has no text", q.ID)
		}
		if _, dup := c.index[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %d", q.ID)
		}
		c.index[q.ID] = i
		c.questions[i] = q
	}
	return c, nil
}

// ByID returns the question with the given id.
func (c *Catalog) ByID(id int64) (model.Question, bool) {
	i, ok := c.index[id]
	if !ok {
		return model.Question{}, false
	}
	return c.questions[i], true
}

// Contains reports whether id belongs to the catalog.
func (c *Catalog) Contains(id int64) bool {
	_, ok := c.index[id]
	return ok
}

// Questions returns a copy of the questions in catalog order.
func (c *Catalog) Questions() []model.Question {
	out := make([]model.Question, len(c.questions))
	copy(out, c.questions)
	return out
}

// IDs returns the question ids in catalog order.
func (c *Catalog) IDs() []int64 {
	ids := make([]int64, len(c.questions))
	for i, q := range c.questions {
		ids[i] = q.ID
	}
	return ids
}

// Len returns the number of questions.
func (c *Catalog) Len() int {
	return len(c.questions)
}

// Load fetches the catalog and the server-held outcomes in one call.
// Outcomes for unknown questions or outcomes failing validation are logged
// and dropped; the rest seed a fresh State.
func Load(ctx context.Context, svc Service) (*Catalog, *State, error) {
	resp, err := svc.Questions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	if resp == nil {
		return nil, nil, fmt.Errorf("%w: empty response", ErrCatalogUnavailable)
	}

	catalog, err := NewCatalog(resp.Questions)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	state := NewState(catalog)
	for _, o := range resp.CurrentScores {
		if err := o.Validate(); err != nil {
			slog.Warn("dropping invalid stored outcome", "question_id", o.QuestionID, "error", err)
			continue
		}
		if err := state.Upsert(o); err != nil {
			slog.Warn("dropping stored outcome", "question_id", o.QuestionID, "error", err)
		}
	}
	slog.Debug("session loaded", "questions", catalog.Len(), "reviewed", state.Len())
	return catalog, state, nil
}
