package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/assessor/internal/analysis"
	"github.com/pavelanni/assessor/internal/handler"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func writeQuestions(t *testing.T, dir, name string, texts ...string) string {
	t.Helper()
	items := make([]model.QuestionImport, len(texts))
	for i, text := range texts {
		items[i] = model.QuestionImport{Text: text}
	}
	data, err := json.Marshal(items)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadQuestionsHashGuard(t *testing.T) {
	db := newTestStore(t)
	dir := t.TempDir()
	path := writeQuestions(t, dir, "q.json", "First?", "Second?")

	if err := loadQuestions(db, []string{path}); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if err := loadQuestions(db, []string{path}); err != nil {
		t.Fatalf("second load: %v", err)
	}
	count, err := db.QuestionCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("count = %d after reloading unchanged file, want 2", count)
	}

	writeQuestions(t, dir, "q.json", "First?", "Second?", "Third?")
	if err := loadQuestions(db, []string{path}); err != nil {
		t.Fatalf("changed load: %v", err)
	}
	if count, _ = db.QuestionCount(); count != 2 {
		t.Errorf("count = %d after changed file, want 2 (changed files are skipped)", count)
	}
}

func TestLoadQuestionsErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path func() string
	}{
		{"missing file", func() string { return filepath.Join(dir, "nope.json") }},
		{"blank question", func() string { return writeQuestions(t, dir, "blank.json", "ok", "  ") }},
		{"bad json", func() string {
			p := filepath.Join(dir, "bad.json")
			os.WriteFile(p, []byte("{"), 0o644)
			return p
		}},
		{"empty catalog", func() string { return writeQuestions(t, dir, "empty.json") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := loadQuestions(newTestStore(t), []string{tt.path()}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBundledQuestions(t *testing.T) {
	db := newTestStore(t)
	if err := loadQuestions(db, []string{"../../questions/interview_en.json"}); err != nil {
		t.Fatalf("loadQuestions: %v", err)
	}
	if count, _ := db.QuestionCount(); count != 5 {
		t.Errorf("count = %d, want 5", count)
	}
}

func newTestServer(t *testing.T, texts ...string) string {
	t.Helper()
	db := newTestStore(t)
	for _, text := range texts {
		if _, err := db.InsertQuestion(model.Question{Text: text}); err != nil {
			t.Fatal(err)
		}
	}
	analyzer := analysis.NewSimulated(rand.New(rand.NewPCG(1, 2))).Pipeline()
	h := handler.New(db, db, analyzer, model.ServerConfig{})
	r := chi.NewRouter()
	h.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := rootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestReviewAndCompile(t *testing.T) {
	url := newTestServer(t, "Explain dropout.", "Describe a CNN.")
	dir := t.TempDir()
	common := []string{"--server", url, "--session-file", filepath.Join(dir, "session.json"), "--log-level", "error"}

	video := filepath.Join(dir, "answer.mp4")
	if err := os.WriteFile(video, []byte("fake video bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, stderr, err := run(t, append([]string{"compile"}, common...)...)
	if !errors.Is(err, errReported) {
		t.Fatalf("compile before review: err = %v, want errReported", err)
	}
	if !strings.Contains(stderr, "1, 2") {
		t.Errorf("incomplete notice %q should list missing questions", stderr)
	}

	for _, id := range []string{"1", "2"} {
		out, stderr, err := run(t, append([]string{"review", id, video}, common...)...)
		if err != nil {
			t.Fatalf("review %s: %v (%s)", id, err, stderr)
		}
		if !strings.Contains(out, "Question "+id+" scored") {
			t.Errorf("review %s output missing score line:\n%s", id, out)
		}
	}

	out, _, err := run(t, append([]string{"status"}, common...)...)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "2 of 2 questions reviewed.") {
		t.Errorf("status output missing progress:\n%s", out)
	}

	exportPath := filepath.Join(dir, "export.json")
	if _, _, err := run(t, append([]string{"compile", "--output", exportPath}, common...)...); err != nil {
		t.Fatalf("compile: %v", err)
	}
	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatal(err)
	}
	var summary model.FinalSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(summary.PerQuestion) != 2 || summary.MaxScore != 8 || summary.ReviewedAt == "" {
		t.Errorf("unexpected summary: %+v", summary)
	}

	if _, _, err := run(t, append([]string{"reset"}, common...)...); !errors.Is(err, errReported) {
		t.Errorf("reset without --yes: err = %v, want errReported", err)
	}
	out, _, err = run(t, append([]string{"reset", "--yes"}, common...)...)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !strings.Contains(out, "Session reset") {
		t.Errorf("reset output = %q", out)
	}
	out, _, _ = run(t, append([]string{"status"}, common...)...)
	if !strings.Contains(out, "0 of 2 questions reviewed.") {
		t.Errorf("status after reset:\n%s", out)
	}
}

func TestReviewRejectsBadArgs(t *testing.T) {
	if _, _, err := run(t, "review", "abc", "video.mp4"); err == nil {
		t.Error("expected error for non-numeric question id")
	}
	if _, _, err := run(t, "review", "1", filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Error("expected error for missing video file")
	}
}
