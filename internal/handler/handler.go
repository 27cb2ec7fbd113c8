package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/assessor/internal/analysis"
	appI18n "github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/model"
)

// DefaultMaxUploadBytes is the upload limit when none is configured.
const DefaultMaxUploadBytes = 50 << 20

var allowedExtensions = map[string]bool{
	"mp4":  true,
	"mov":  true,
	"avi":  true,
	"mkv":  true,
	"webm": true,
}

// QuestionSource provides the interview question catalog. GetQuestion
// returns sql.ErrNoRows for an unknown id.
type QuestionSource interface {
	ListQuestions() ([]model.Question, error)
	GetQuestion(id int64) (model.Question, error)
}

// SessionStore keeps review outcomes per server session. Implemented by
// store.Store and cache.SessionCache.
type SessionStore interface {
	CreateSession(ctx context.Context, id string) error
	SessionExists(ctx context.Context, id string) (bool, error)
	UpsertOutcome(ctx context.Context, sessionID string, o model.ReviewOutcome) error
	ListOutcomes(ctx context.Context, sessionID string) ([]model.ReviewOutcome, error)
	ClearOutcomes(ctx context.Context, sessionID string) error
	PinReviewedAt(ctx context.Context, sessionID string, now time.Time) (time.Time, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	questions QuestionSource
	sessions  SessionStore
	analyzer  analysis.Analyzer
	config    model.ServerConfig
	now       func() time.Time
}

// New creates a new Handler.
func New(q QuestionSource, s SessionStore, a analysis.Analyzer, cfg model.ServerConfig) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{questions: q, sessions: s, analyzer: a, config: cfg, now: time.Now}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealthz)
	r.Group(func(r chi.Router) {
		r.Use(h.sessionMiddleware)
		r.Get("/questions", h.handleQuestions)
		r.Post("/process_video", h.handleProcessVideo)
		r.Get("/compile_summary", h.handleCompileSummary)
		r.Post("/reset_session", h.handleResetSession)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.Error(msg, "error", err, "session_id", model.SessionIDFromContext(r.Context()))
	writeError(w, http.StatusInternalServerError, appI18n.T(r.Context(), "ErrInternal"))
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.questions.ListQuestions()
	if err != nil {
		h.internalError(w, r, "list questions", err)
		return
	}
	outcomes, err := h.sessions.ListOutcomes(r.Context(), model.SessionIDFromContext(r.Context()))
	if err != nil {
		h.internalError(w, r, "list outcomes", err)
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}
	writeJSON(w, http.StatusOK, model.QuestionsResponse{Questions: questions, CurrentScores: outcomes})
}

func allowedFile(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	return allowedExtensions[ext]
}

func (h *Handler) handleProcessVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := model.SessionIDFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				appI18n.Td(ctx, "ErrFileTooLarge", map[string]any{"Limit": h.config.MaxUploadBytes >> 20}))
			return
		}
		writeError(w, http.StatusBadRequest, appI18n.T(ctx, "ErrInvalidFile"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	questionID, err := strconv.ParseInt(r.FormValue("questionId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, appI18n.T(ctx, "ErrInvalidQuestion"))
		return
	}
	question, err := h.questions.GetQuestion(questionID)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusBadRequest, appI18n.T(ctx, "ErrInvalidQuestion"))
		return
	}
	if err != nil {
		h.internalError(w, r, "get question", err)
		return
	}

	file, header, err := r.FormFile("videoFile")
	if err != nil || header.Filename == "" || !allowedFile(header.Filename) {
		writeError(w, http.StatusBadRequest, appI18n.T(ctx, "ErrInvalidFile"))
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		h.internalError(w, r, "read upload", err)
		return
	}
	if len(content) == 0 {
		writeError(w, http.StatusBadRequest, appI18n.T(ctx, "ErrInvalidFile"))
		return
	}

	start := time.Now()
	outcome, err := h.analyzer.Analyze(ctx, question, model.Video{Filename: header.Filename, Content: content})
	if err != nil {
		slog.Error("analysis failed", "error", err, "session_id", sessionID, "question_id", questionID)
		writeError(w, http.StatusBadGateway, appI18n.Td(ctx, "ErrAnalysis", map[string]any{"Detail": err.Error()}))
		return
	}
	if err := h.sessions.UpsertOutcome(ctx, sessionID, outcome); err != nil {
		h.internalError(w, r, "store outcome", err)
		return
	}
	history, err := h.sessions.ListOutcomes(ctx, sessionID)
	if err != nil {
		h.internalError(w, r, "list outcomes", err)
		return
	}

	slog.Info("answer reviewed",
		"session_id", sessionID,
		"question_id", questionID,
		"score", outcome.Score,
		"bytes", len(content),
		"duration", time.Since(start),
	)
	writeJSON(w, http.StatusOK, model.ProcessVideoResponse{AssessmentData: history, LatestScore: outcome})
}

func (h *Handler) handleCompileSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := model.SessionIDFromContext(ctx)

	questions, err := h.questions.ListQuestions()
	if err != nil {
		h.internalError(w, r, "list questions", err)
		return
	}
	outcomes, err := h.sessions.ListOutcomes(ctx, sessionID)
	if err != nil {
		h.internalError(w, r, "list outcomes", err)
		return
	}
	inCatalog := make(map[int64]bool, len(questions))
	for _, q := range questions {
		inCatalog[q.ID] = true
	}
	relevant := make([]model.ReviewOutcome, 0, len(questions))
	for _, o := range outcomes {
		if inCatalog[o.QuestionID] {
			relevant = append(relevant, o)
		}
	}
	// Outcomes are unique per question, so equal counts mean full coverage.
	if len(questions) == 0 || len(relevant) != len(questions) {
		writeError(w, http.StatusBadRequest, appI18n.T(ctx, "ErrIncomplete"))
		return
	}

	reviewedAt, err := h.sessions.PinReviewedAt(ctx, sessionID, h.now())
	if err != nil {
		h.internalError(w, r, "pin reviewed_at", err)
		return
	}
	summary, err := analysis.Summarize(questions, relevant, reviewedAt)
	if err != nil {
		h.internalError(w, r, "summarize", err)
		return
	}
	slog.Info("summary compiled", "session_id", sessionID, "total", summary.TotalScore, "decision", summary.Decision)
	writeJSON(w, http.StatusOK, model.CompileResponse{FinalPayload: summary})
}

func (h *Handler) handleResetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := model.SessionIDFromContext(r.Context())
	if err := h.sessions.ClearOutcomes(r.Context(), sessionID); err != nil {
		h.internalError(w, r, "clear outcomes", err)
		return
	}
	slog.Info("session reset", "session_id", sessionID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
