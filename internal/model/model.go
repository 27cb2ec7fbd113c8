package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Score bounds for a single interview answer.
const (
	MinScore = 0
	MaxScore = 4
)

// Question represents an interview question.
type Question struct {
	ID   int64  `json:"id"`
	Text string `json:"question"`
}

// CVMetrics holds the non-verbal integrity metrics for one video answer.
type CVMetrics struct {
	EyeMovementRatio float64 `json:"eyeMovementRatio"`
	Violations       int     `json:"violations"`
	CheatingFlag     bool    `json:"cheatingFlag"`
}

// ReviewOutcome is the analysis result for one submitted video.
// A new outcome for the same question replaces the old one.
type ReviewOutcome struct {
	QuestionID  int64     `json:"questionId"`
	Score       int       `json:"score"`
	Reason      string    `json:"reason"`
	STTAccuracy float64   `json:"sttAccuracy"`
	Transcript  string    `json:"transcript"`
	CVMetrics   CVMetrics `json:"cvMetrics"`
}

// Validate checks the outcome against the data model constraints.
func (o ReviewOutcome) Validate() error {
	var errs []error
	if o.QuestionID <= 0 {
		errs = append(errs, fmt.Errorf("questionId must be positive, got %d", o.QuestionID))
	}
	if o.Score < MinScore || o.Score > MaxScore {
		errs = append(errs, fmt.Errorf("score %d out of range [%d,%d]", o.Score, MinScore, MaxScore))
	}
	if !finite(o.STTAccuracy) || o.STTAccuracy < 0 || o.STTAccuracy > 100 {
		errs = append(errs, fmt.Errorf("sttAccuracy %v out of range [0,100]", o.STTAccuracy))
	}
	if !finite(o.CVMetrics.EyeMovementRatio) || o.CVMetrics.EyeMovementRatio < 0 {
		errs = append(errs, fmt.Errorf("eyeMovementRatio %v must be >= 0", o.CVMetrics.EyeMovementRatio))
	}
	if o.CVMetrics.Violations < 0 {
		errs = append(errs, fmt.Errorf("violations %d must be >= 0", o.CVMetrics.Violations))
	}
	return errors.Join(errs...)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Video is one recorded answer ready for upload.
type Video struct {
	Filename string
	Content  []byte
}

// ServerConfig holds runtime parameters of the analysis service set via CLI flags.
type ServerConfig struct {
	MaxUploadBytes int64
	SessionTTL     time.Duration
	SecureCookies  bool // Set Secure flag on cookies (disable for local dev)
}

// QuestionImport is used for loading questions from JSON.
type QuestionImport struct {
	Text string `json:"text"`
}

type sessionCtxKey struct{}

// ContextWithSessionID stores the assessment session ID in the request context.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, id)
}

// SessionIDFromContext retrieves the assessment session ID from context (empty string if not set).
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionCtxKey{}).(string)
	return id
}
