package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/assessor/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

const maxTranscriptRunes = 10000

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

// PromptVariant represents a scoring prompt variant.
type PromptVariant string

const (
	// PromptStrict is a strict scoring variant for certification tracks.
	PromptStrict PromptVariant = "strict"
	// PromptStandard is the default scoring variant.
	PromptStandard PromptVariant = "standard"
	// PromptLenient is a lenient scoring variant for practice interviews.
	PromptLenient PromptVariant = "lenient"
)

var variants = []PromptVariant{PromptStrict, PromptStandard, PromptLenient}

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	for _, pv := range variants {
		if PromptVariant(v) == pv {
			return true
		}
	}
	return false
}

// ScoreData holds template data for scoring prompts.
type ScoreData struct {
	QuestionText string
	MinScore     int
	MaxScore     int
	Transcript   string
}

// Set holds the parsed scoring templates.
type Set struct {
	score map[PromptVariant]*template.Template
}

// Embedded loads the templates compiled into the binary.
func Embedded() (*Set, error) {
	return Load(templateFS)
}

// Load loads templates/score_<variant>.txt for every variant from fsys.
func Load(fsys fs.FS) (*Set, error) {
	s := &Set{score: make(map[PromptVariant]*template.Template, len(variants))}
	for _, v := range variants {
		name := "templates/score_" + string(v) + ".txt"
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read prompt file %s: %w", name, err)
		}
		tmpl, err := template.New(string(v)).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
		}
		s.score[v] = tmpl
	}
	return s, nil
}

// BuildScorePrompt renders the scoring prompt for one transcript.
func (s *Set) BuildScorePrompt(variant PromptVariant, question model.Question, transcript string) (string, error) {
	tmpl, ok := s.score[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}
	data := ScoreData{
		QuestionText: question.Text,
		MinScore:     model.MinScore,
		MaxScore:     model.MaxScore,
		Transcript:   SanitizeTranscript(transcript),
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SanitizeTranscript strips delimiter tags and truncates overly long
// transcripts.
func SanitizeTranscript(transcript string) string {
	transcript = studentAnswerRegex.ReplaceAllString(transcript, "")
	transcript = systemInstructionsRegex.ReplaceAllString(transcript, "")
	transcript = strings.TrimSpace(transcript)

	if transcript == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(transcript) > maxTranscriptRunes {
		runes := []rune(transcript)
		transcript = string(runes[:maxTranscriptRunes]) + "\n\n[Transcript truncated due to length]"
	}
	return transcript
}
