package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/assessor/internal/client"
	appI18n "github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/render"
	"github.com/pavelanni/assessor/internal/session"
)

// reviewEnv is what every client command works with once the session is open.
type reviewEnv struct {
	ctx     context.Context
	v       *viper.Viper
	client  *client.Client
	session *session.Session
	out     io.Writer
}

func addClientFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("server", "s", "http://localhost:5000", "Analysis service URL")
	f.String("session-file", defaultSessionFile(), "File keeping the session cookie between runs")
	f.StringP("lang", "l", "en", "Language for messages (en, id)")
	f.Duration("timeout", 5*time.Minute, "Per-request timeout")
	addLogFlags(cmd)
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "assessor-session.json"
	}
	return filepath.Join(dir, "assessor", "session.json")
}

// withSession opens the review session and runs fn. Session errors are
// printed as localized notices and reported as errReported.
func withSession(cmd *cobra.Command, fn func(env *reviewEnv) error) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx := appI18n.WithLocalizer(cmd.Context(), appI18n.NewLocalizer(lang))

	c, err := client.New(v.GetString("server"),
		client.WithTimeout(v.GetDuration("timeout")),
		client.WithCookieFile(v.GetString("session-file")),
	)
	if err != nil {
		return err
	}

	env := &reviewEnv{ctx: ctx, v: v, client: c, out: cmd.OutOrStdout()}
	env.session, err = session.Open(ctx, c)
	if err == nil {
		err = fn(env)
	}
	if serr := c.SaveCookies(); serr != nil {
		slog.Warn("could not save session cookie", "error", serr)
	}
	if err != nil {
		render.Notice(ctx, cmd.ErrOrStderr(), err)
		slog.Debug("command failed", "error", err)
		return errReported
	}
	return nil
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the question catalog and review progress of the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(env *reviewEnv) error {
				return render.Progress(env.ctx, env.out, env.session.Catalog, env.session.State)
			})
		},
	}
	addClientFlags(cmd)
	return cmd
}

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review <question-id> <video-file>",
		Short: "Submit a recorded answer for analysis",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			questionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid question id %q", args[0])
			}
			content, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read video: %w", err)
			}
			video := model.Video{Filename: filepath.Base(args[1]), Content: content}

			return withSession(cmd, func(env *reviewEnv) error {
				if _, err := env.session.Submit(env.ctx, questionID, video); err != nil {
					return err
				}
				o, _ := env.session.State.Get(questionID)
				if err := render.Outcome(env.ctx, env.out, o); err != nil {
					return err
				}
				fmt.Fprintln(env.out)
				return render.Progress(env.ctx, env.out, env.session.Catalog, env.session.State)
			})
		},
	}
	addClientFlags(cmd)
	return cmd
}

func compileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile the final assessment once every question is reviewed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(env *reviewEnv) error {
				summary, err := env.session.Compile(env.ctx)
				if err != nil {
					return err
				}
				output := env.v.GetString("output")
				if output == "-" {
					return session.WriteExport(env.out, summary)
				}
				if err := render.Summary(env.ctx, env.out, summary); err != nil {
					return err
				}
				if output == "" {
					output = session.ExportFileName(summary, time.Now())
				}
				if err := writeExportFile(output, summary); err != nil {
					return err
				}
				fmt.Fprintln(env.out, appI18n.Td(env.ctx, "ExportSaved", map[string]any{"Path": output}))
				return nil
			})
		},
	}
	addClientFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "Export file path (\"-\" for stdout; default final_assessment_payload_<date>.json)")
	return cmd
}

func writeExportFile(path string, summary *model.FinalSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	if err := session.WriteExport(f, summary); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func resetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear every score of the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(env *reviewEnv) error {
				if err := env.session.Reset(env.ctx, env.v.GetBool("yes")); err != nil {
					return err
				}
				fmt.Fprintln(env.out, appI18n.T(env.ctx, "ResetDone"))
				return nil
			})
		},
	}
	addClientFlags(cmd)
	cmd.Flags().BoolP("yes", "y", false, "Confirm the reset")
	return cmd
}
