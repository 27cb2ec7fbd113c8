package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/assessor/internal/analysis"
	"github.com/pavelanni/assessor/internal/cache"
	"github.com/pavelanni/assessor/internal/handler"
	appI18n "github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/llm"
	"github.com/pavelanni/assessor/internal/llm/prompts"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/store"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the video analysis service",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":5000", "HTTP listen address")
	f.String("db", "assessor.db", "SQLite database path")
	f.StringSliceP("questions", "q", []string{"questions/interview_en.json"}, "Paths to questions JSON files (repeatable)")
	f.String("analyzer", "simulated", "Answer analyzer (llm, simulated)")
	f.String("llm-url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for LLM")
	f.String("llm-model", "gpt-4o-mini", "Chat model used for rubric scoring")
	f.String("stt-model", "whisper-1", "Speech-to-text model")
	f.String("stt-language", "", "Spoken language hint for transcription (ISO-639-1)")
	f.String("prompt-variant", string(prompts.PromptStandard), "Scoring prompt variant (strict, standard, lenient)")
	f.String("gaze-url", "", "Gaze detection service URL for integrity metrics (empty: no integrity signal)")
	f.Duration("gaze-timeout", 2*time.Minute, "Timeout for one gaze detection call")
	f.String("session-backend", "sqlite", "Where review sessions are kept (sqlite, redis)")
	f.String("redis-addr", "localhost:6379", "Redis address for the redis session backend")
	f.String("redis-password", "", "Redis password")
	f.Int("redis-db", 0, "Redis database number")
	f.Duration("session-ttl", 24*time.Hour, "Idle lifetime of a review session")
	f.Duration("cleanup-interval", time.Hour, "How often expired sqlite sessions are removed")
	f.Int64("max-upload-mb", handler.DefaultMaxUploadBytes>>20, "Maximum video upload size in MiB")
	f.Bool("secure-cookies", false, "Set Secure flag on session cookies")
	f.StringP("lang", "l", "en", "Fallback language for messages (en, id)")
	addLogFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.New(v.GetString("db"), store.WithSessionTTL(v.GetDuration("session-ttl")))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := loadQuestions(db, v.GetStringSlice("questions")); err != nil {
		return fmt.Errorf("load questions: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	analyzer, err := newAnalyzer(ctx, v)
	if err != nil {
		return err
	}

	sessions, closeSessions, err := newSessionStore(ctx, v, db)
	if err != nil {
		return err
	}
	defer closeSessions()

	cfg := model.ServerConfig{
		MaxUploadBytes: v.GetInt64("max-upload-mb") << 20,
		SessionTTL:     v.GetDuration("session-ttl"),
		SecureCookies:  v.GetBool("secure-cookies"),
	}
	h := handler.New(db, sessions, analyzer, cfg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"analyzer", v.GetString("analyzer"),
			"session_backend", v.GetString("session-backend"),
			"lang", lang,
			"max_upload_mb", v.GetInt64("max-upload-mb"),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newAnalyzer(ctx context.Context, v *viper.Viper) (analysis.Analyzer, error) {
	switch kind := strings.ToLower(v.GetString("analyzer")); kind {
	case "simulated":
		slog.Warn("using simulated analyzer; scores are not based on the recorded answers")
		p := analysis.NewSimulated(nil).Pipeline()
		if v.GetString("gaze-url") != "" {
			p.Integrity = integrityChecker(v)
		}
		return p, nil
	case "llm":
		promptVariant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
		if !prompts.IsValidVariant(promptVariant) {
			slog.Warn("invalid prompt-variant, using standard", "variant", promptVariant)
			promptVariant = string(prompts.PromptStandard)
		}
		set, err := prompts.Embedded()
		if err != nil {
			return nil, fmt.Errorf("load prompts: %w", err)
		}
		client := llm.New(
			v.GetString("llm-url"),
			v.GetString("llm-key"),
			v.GetString("llm-model"),
			set,
			llm.WithPromptVariant(prompts.PromptVariant(promptVariant)),
			llm.WithTranscriptionModel(v.GetString("stt-model")),
			llm.WithLanguage(v.GetString("stt-language")),
		)
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
		return &analysis.Pipeline{Transcriber: client, Scorer: client, Integrity: integrityChecker(v)}, nil
	default:
		return nil, fmt.Errorf("unknown analyzer %q (want llm or simulated)", kind)
	}
}

func integrityChecker(v *viper.Viper) analysis.IntegrityChecker {
	url := v.GetString("gaze-url")
	if url == "" {
		return analysis.NoSignal{}
	}
	slog.Info("integrity metrics from gaze detection service", "url", url)
	return analysis.GazeChecker{Counter: analysis.NewHTTPGazeCounter(url, v.GetDuration("gaze-timeout"))}
}

// newSessionStore returns the configured session backend and a function
// that releases it.
func newSessionStore(ctx context.Context, v *viper.Viper, db *store.Store) (handler.SessionStore, func(), error) {
	switch backend := strings.ToLower(v.GetString("session-backend")); backend {
	case "sqlite":
		go cleanupLoop(ctx, db, v.GetDuration("cleanup-interval"))
		return db, func() {}, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     strings.TrimPrefix(v.GetString("redis-addr"), "redis://"),
			Password: v.GetString("redis-password"),
			DB:       v.GetInt("redis-db"),
		})
		sc := cache.NewSessionCache(rdb, v.GetDuration("session-ttl"))
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := sc.Ping(pingCtx); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		slog.Info("connected to redis", "addr", v.GetString("redis-addr"))
		return sc, func() { rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q (want sqlite or redis)", backend)
	}
}

func cleanupLoop(ctx context.Context, db *store.Store, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.CleanupExpiredSessions(ctx)
			if err != nil {
				slog.Error("session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("removed expired sessions", "count", n)
			}
		}
	}
}

func loadQuestions(db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}

		if storedHash == hash {
			slog.Info("questions file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("questions file changed since last import, skipping to keep question ids stable",
				"path", path)
			continue
		}

		var questions []model.QuestionImport
		if err := json.Unmarshal(data, &questions); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		batch := make([]model.Question, 0, len(questions))
		for i, qi := range questions {
			text := strings.TrimSpace(qi.Text)
			if text == "" {
				return fmt.Errorf("%s: question %d has no text", path, i+1)
			}
			batch = append(batch, model.Question{Text: text})
		}
		if err := db.ImportQuestions(path, hash, batch); err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		slog.Info("imported questions", "path", path, "count", len(questions))
	}

	count, err := db.QuestionCount()
	if err != nil {
		return err
	}
	if count == 0 {
		return errors.New("no questions available: pass --questions with at least one questions file")
	}
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
