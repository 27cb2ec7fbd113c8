package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/assessor/internal/client"
	appI18n "github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/session"
	"github.com/pavelanni/assessor/internal/store"
)

type analyzerFunc func(ctx context.Context, q model.Question, v model.Video) (model.ReviewOutcome, error)

func (f analyzerFunc) Analyze(ctx context.Context, q model.Question, v model.Video) (model.ReviewOutcome, error) {
	return f(ctx, q, v)
}

func fixedAnalyzer(score int) analyzerFunc {
	return func(_ context.Context, q model.Question, v model.Video) (model.ReviewOutcome, error) {
		return model.ReviewOutcome{
			QuestionID:  q.ID,
			Score:       score,
			Reason:      "analyzed " + v.Filename,
			STTAccuracy: 92,
			Transcript:  "transcript",
		}, nil
	}
}

func newTestStore(t *testing.T, numQuestions int) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	for i := range numQuestions {
		if _, err := s.InsertQuestion(model.Question{Text: "Question " + string(rune('A'+i))}); err != nil {
			t.Fatalf("InsertQuestion: %v", err)
		}
	}
	return s
}

func newRouter(t *testing.T, s *store.Store, a analyzerFunc, cfg model.ServerConfig) (http.Handler, *Handler) {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	h := New(s, s, a, cfg)
	h.now = func() time.Time { return time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Use(appI18n.Middleware("en"))
	h.Routes(r)
	return r, h
}

func newSessionClient(t *testing.T, router http.Handler) *client.Client {
	t.Helper()
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	c, err := client.New(srv.URL)
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	return c
}

func video(name string) model.Video {
	return model.Video{Filename: name, Content: []byte("recorded answer")}
}

func TestEndToEndReviewSession(t *testing.T) {
	s := newTestStore(t, 5)
	router, _ := newRouter(t, s, fixedAnalyzer(4), model.ServerConfig{})
	c := newSessionClient(t, router)
	ctx := context.Background()

	sess, err := session.Open(ctx, c)
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	ids := sess.Catalog.IDs()
	if len(ids) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(ids))
	}

	for _, id := range ids[:4] {
		if _, err := sess.Submit(ctx, id, video("answer.webm")); err != nil {
			t.Fatalf("Submit %d: %v", id, err)
		}
	}
	var incomplete *session.IncompleteSessionError
	if _, err := sess.Compile(ctx); !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteSessionError, got %v", err)
	}
	if !reflect.DeepEqual(incomplete.MissingIDs, []int64{ids[4]}) {
		t.Errorf("missing = %v, want [%d]", incomplete.MissingIDs, ids[4])
	}

	progress, err := sess.Submit(ctx, ids[4], video("answer.mp4"))
	if err != nil {
		t.Fatalf("Submit last: %v", err)
	}
	if !progress.Complete {
		t.Fatalf("expected complete progress, got %+v", progress)
	}

	first, err := sess.Compile(ctx)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if first.TotalScore != 20 || first.MaxScore != 20 || first.Decision != model.DecisionPass {
		t.Errorf("unexpected summary %+v", first)
	}
	if first.ReviewedAt != "2026-10-14 09:30:00" {
		t.Errorf("reviewedAt = %q", first.ReviewedAt)
	}
	second, err := sess.Compile(ctx)
	if err != nil {
		t.Fatalf("Compile again: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated compile differs:\n%+v\n%+v", first, second)
	}

	// A reload with the same cookie sees the stored outcomes.
	reloaded, err := session.Open(ctx, c)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.State.Len() != 5 {
		t.Errorf("expected 5 outcomes after reload, got %d", reloaded.State.Len())
	}

	if err := sess.Reset(ctx, true); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if sess.State.Len() != 0 {
		t.Errorf("expected empty local state after reset, got %d", sess.State.Len())
	}
	afterReset, err := session.Open(ctx, c)
	if err != nil {
		t.Fatalf("Open after reset: %v", err)
	}
	if afterReset.State.Len() != 0 {
		t.Errorf("expected no server outcomes after reset, got %d", afterReset.State.Len())
	}
}

func TestResubmitReplacesOutcome(t *testing.T) {
	s := newTestStore(t, 2)
	score := 2
	analyzer := func(_ context.Context, q model.Question, _ model.Video) (model.ReviewOutcome, error) {
		return model.ReviewOutcome{QuestionID: q.ID, Score: score, Reason: "r"}, nil
	}
	router, _ := newRouter(t, s, analyzer, model.ServerConfig{})
	c := newSessionClient(t, router)
	ctx := context.Background()

	resp, err := c.ProcessVideo(ctx, 1, video("a.webm"))
	if err != nil {
		t.Fatalf("ProcessVideo: %v", err)
	}
	if len(resp.AssessmentData) != 1 {
		t.Fatalf("expected 1 stored outcome, got %d", len(resp.AssessmentData))
	}
	score = 4
	resp, err = c.ProcessVideo(ctx, 1, video("a.webm"))
	if err != nil {
		t.Fatalf("ProcessVideo again: %v", err)
	}
	if len(resp.AssessmentData) != 1 || resp.AssessmentData[0].Score != 4 {
		t.Errorf("expected a single replaced outcome, got %+v", resp.AssessmentData)
	}
}

func multipartBody(t *testing.T, questionID, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if questionID != "" {
		_ = mw.WriteField("questionId", questionID)
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("videoFile", filename)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = fw.Write(content)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart close: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestProcessVideoValidation(t *testing.T) {
	failing := func(context.Context, model.Question, model.Video) (model.ReviewOutcome, error) {
		return model.ReviewOutcome{}, errors.New("transcription endpoint down")
	}
	tests := []struct {
		name       string
		analyzer   analyzerFunc
		maxUpload  int64
		questionID string
		filename   string
		content    []byte
		wantStatus int
	}{
		{"ok", fixedAnalyzer(3), 0, "1", "answer.webm", []byte("v"), http.StatusOK},
		{"uppercase extension", fixedAnalyzer(3), 0, "1", "ANSWER.MOV", []byte("v"), http.StatusOK},
		{"bad extension", fixedAnalyzer(3), 0, "1", "answer.txt", []byte("v"), http.StatusBadRequest},
		{"no file", fixedAnalyzer(3), 0, "1", "", nil, http.StatusBadRequest},
		{"empty file", fixedAnalyzer(3), 0, "1", "answer.mp4", nil, http.StatusBadRequest},
		{"missing question", fixedAnalyzer(3), 0, "", "answer.mp4", []byte("v"), http.StatusBadRequest},
		{"unknown question", fixedAnalyzer(3), 0, "99", "answer.mp4", []byte("v"), http.StatusBadRequest},
		{"too large", fixedAnalyzer(3), 1024, "1", "answer.mp4", bytes.Repeat([]byte("v"), 8192), http.StatusRequestEntityTooLarge},
		{"analysis failure", failing, 0, "1", "answer.mp4", []byte("v"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, 2)
			router, _ := newRouter(t, s, tt.analyzer, model.ServerConfig{MaxUploadBytes: tt.maxUpload})
			body, contentType := multipartBody(t, tt.questionID, tt.filename, tt.content)
			req := httptest.NewRequest(http.MethodPost, "/process_video", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				var resp model.ErrorResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Error == "" {
					t.Errorf("expected {error} body, got %q (%v)", rec.Body.String(), err)
				}
			}
		})
	}
}

func TestCompileSummaryIncomplete(t *testing.T) {
	s := newTestStore(t, 3)
	router, _ := newRouter(t, s, fixedAnalyzer(4), model.ServerConfig{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/compile_summary", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp model.ErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Error != "Not all questions have been answered" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestCompileRepinsAfterChange(t *testing.T) {
	s := newTestStore(t, 1)
	router, h := newRouter(t, s, fixedAnalyzer(3), model.ServerConfig{})
	c := newSessionClient(t, router)
	ctx := context.Background()

	if _, err := c.ProcessVideo(ctx, 1, video("a.webm")); err != nil {
		t.Fatalf("ProcessVideo: %v", err)
	}
	first, err := c.CompileSummary(ctx)
	if err != nil {
		t.Fatalf("CompileSummary: %v", err)
	}

	h.now = func() time.Time { return time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC) }
	same, _ := c.CompileSummary(ctx)
	if same.ReviewedAt != first.ReviewedAt {
		t.Errorf("unchanged session re-stamped: %q vs %q", same.ReviewedAt, first.ReviewedAt)
	}

	if _, err := c.ProcessVideo(ctx, 1, video("a.webm")); err != nil {
		t.Fatalf("ProcessVideo again: %v", err)
	}
	changed, _ := c.CompileSummary(ctx)
	if changed.ReviewedAt != "2026-10-15 08:00:00" {
		t.Errorf("expected new reviewedAt after change, got %q", changed.ReviewedAt)
	}
}

func TestSessionCookie(t *testing.T) {
	s := newTestStore(t, 1)
	router, _ := newRouter(t, s, fixedAnalyzer(3), model.ServerConfig{SessionTTL: time.Hour})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/questions", nil))
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookieName {
		t.Fatalf("expected session cookie, got %v", cookies)
	}
	if !cookies[0].HttpOnly || cookies[0].MaxAge != 3600 {
		t.Errorf("unexpected cookie attributes %+v", cookies[0])
	}

	req := httptest.NewRequest(http.MethodGet, "/questions", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if len(rec.Result().Cookies()) != 0 {
		t.Error("known session should not get a new cookie")
	}

	req = httptest.NewRequest(http.MethodGet, "/questions", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "forged"})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Result().Cookies(); len(got) != 1 || got[0].Value == "forged" {
		t.Errorf("unknown session should be replaced, got %v", got)
	}
}

func TestHealthzHasNoSession(t *testing.T) {
	s := newTestStore(t, 0)
	router, _ := newRouter(t, s, fixedAnalyzer(3), model.ServerConfig{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("healthz should not create a session")
	}
}

// brokenQuestions fails every question lookup with a storage error.
type brokenQuestions struct{ *store.Store }

func (brokenQuestions) GetQuestion(int64) (model.Question, error) {
	return model.Question{}, errors.New("database is locked")
}

func TestProcessVideoQuestionLookup(t *testing.T) {
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	tests := []struct {
		name       string
		questions  func(s *store.Store) QuestionSource
		questionID string
		wantStatus int
	}{
		{"known", func(s *store.Store) QuestionSource { return s }, "2", http.StatusOK},
		{"unknown", func(s *store.Store) QuestionSource { return s }, "3", http.StatusBadRequest},
		{"storage failure", func(s *store.Store) QuestionSource { return brokenQuestions{s} }, "1", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, 2)
			h := New(tt.questions(s), s, fixedAnalyzer(3), model.ServerConfig{})
			r := chi.NewRouter()
			h.Routes(r)

			body, contentType := multipartBody(t, tt.questionID, "answer.mp4", []byte("v"))
			req := httptest.NewRequest(http.MethodPost, "/process_video", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}
