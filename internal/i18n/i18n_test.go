package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "AppTitle"); got != "Interview Assessor" {
		t.Errorf("T(AppTitle) = %q, want 'Interview Assessor'", got)
	}
	if got := T(ctx, "DecisionPass"); got != "Pass" {
		t.Errorf("T(DecisionPass) = %q, want 'Pass'", got)
	}
}

func TestTranslateIndonesian(t *testing.T) {
	ctx := initLang(t, "id")

	if got := T(ctx, "AppTitle"); got != "Penilai Wawancara" {
		t.Errorf("T(AppTitle) = %q, want 'Penilai Wawancara'", got)
	}
	if got := T(ctx, "NoticeEmptyVideo"); got != "Berkas video kosong." {
		t.Errorf("T(NoticeEmptyVideo) = %q", got)
	}
}

func TestInitRejectsUnsupported(t *testing.T) {
	if err := Init("not a tag!"); err == nil {
		t.Error("expected error for malformed tag")
	}
	if err := Init("ja"); err == nil {
		t.Error("expected error for language without translations")
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "QuestionsAvailable", 1); got != "1 question available." {
		t.Errorf("Tp(QuestionsAvailable, 1) = %q", got)
	}
	if got := Tp(ctx, "QuestionsAvailable", 5); got != "5 questions available." {
		t.Errorf("Tp(QuestionsAvailable, 5) = %q", got)
	}
	tests := []struct {
		reviewed, total int
		want            string
	}{
		{3, 5, "3 of 5 questions reviewed."},
		{1, 2, "1 of 2 questions reviewed."},
		{0, 1, "0 of 1 question reviewed."},
		{1, 1, "1 of 1 question reviewed."},
	}
	for _, tt := range tests {
		got := Tpd(ctx, "ProgressReviewed", tt.total, map[string]any{"Reviewed": tt.reviewed})
		if got != tt.want {
			t.Errorf("ProgressReviewed(%d of %d) = %q, want %q", tt.reviewed, tt.total, got, tt.want)
		}
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "NoticeUnknownQuestion", map[string]any{"ID": 42})
	if got != "Question 42 is not part of this interview." {
		t.Errorf("Td(NoticeUnknownQuestion, ID=42) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestMiddlewareAcceptLanguage(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	var got string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "Question")
	}))

	tests := []struct {
		header string
		want   string
	}{
		{"", "Question"},
		{"id-ID,id;q=0.9", "Pertanyaan"},
		{"fr", "Question"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Accept-Language", tt.header)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
		if got != tt.want {
			t.Errorf("Accept-Language %q: got %q, want %q", tt.header, got, tt.want)
		}
	}
}
