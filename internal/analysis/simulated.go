package analysis

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/pavelanni/assessor/internal/model"
)

const (
	reasonStrong = "Comprehensive and Very Clear Response. Demonstrates strong understanding of concepts."
	reasonBasic  = "Specific Experience with Basic Explanation. Shows reasonable understanding but lacks comprehensive insight."

	longTranscript = 200
)

// Simulated is an offline analyzer for demos. It fakes a transcript,
// scores by transcript length and flags roughly one answer in four.
type Simulated struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated returns a Simulated analyzer. A nil rng uses a random seed.
func NewSimulated(rng *rand.Rand) *Simulated {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Simulated{rng: rng}
}

func (s *Simulated) Transcribe(_ context.Context, video model.Video) (Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := fmt.Sprintf("Simulated transcript of %s (%d bytes of recorded answer).", video.Filename, len(video.Content))
	return Transcript{Text: text, Accuracy: float64(90 + s.rng.IntN(6))}, nil
}

func (s *Simulated) Score(_ context.Context, _ model.Question, transcript string) (Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var score int
	if len(transcript) > longTranscript {
		score = 3 + s.rng.IntN(2)
	} else {
		score = 2 + s.rng.IntN(2)
	}
	reason := reasonBasic
	if score == model.MaxScore {
		reason = reasonStrong
	}
	return Score{Score: score, Reason: reason}, nil
}

func (s *Simulated) Check(context.Context, model.Video) (model.CVMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := model.CVMetrics{
		EyeMovementRatio: math.Round((0.1+s.rng.Float64()*0.3)*100) / 100,
		CheatingFlag:     s.rng.IntN(4) == 0,
	}
	if m.CheatingFlag {
		m.Violations = 1 + s.rng.IntN(3)
	}
	return m, nil
}

// Pipeline returns a Pipeline that uses s for every stage.
func (s *Simulated) Pipeline() *Pipeline {
	return &Pipeline{Transcriber: s, Scorer: s, Integrity: s}
}
