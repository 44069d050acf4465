package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	appcfg "github.com/park285/Cheese-Video-Analyzer/internal/config"
	"github.com/park285/Cheese-Video-Analyzer/internal/msgcat"
	"github.com/park285/Cheese-Video-Analyzer/internal/obslog"
	"github.com/park285/Cheese-Video-Analyzer/internal/presenter"
	"github.com/park285/Cheese-Video-Analyzer/internal/session"
)

// Runner holds the output streams shared by the commands.
type Runner struct {
	stdout io.Writer
	stderr io.Writer
}

func NewRunner(stdout, stderr io.Writer) *Runner {
	return &Runner{stdout: stdout, stderr: stderr}
}

func (r *Runner) Submit(ctx context.Context, cmd *cli.Command) error {
	cfg, err := appcfg.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger := obslog.Named("analyzer")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	ctrl := session.New(d.client, d.streamer, d.store, d.controllerOptions(cfg, logger)...)
	defer ctrl.Close()
	// 시그널을 받으면 구독과 진행 중인 요청을 정리한다
	go func() {
		<-ctx.Done()
		ctrl.Close()
	}()

	formatter := presenter.NewFormatter(d.catalog)
	view := presenter.New(r.stdout, formatter)
	_ = view.Show(ctrl.Snapshot())
	detach := view.Attach(ctrl)
	defer detach()

	in, err := session.FileInput(cmd.Args().First())
	if err != nil {
		return r.userError(formatter, err)
	}
	if _, err := ctrl.Submit(ctx, in); err != nil {
		return r.userError(formatter, err)
	}

	st, err := ctrl.Wait(ctx)
	if err != nil {
		return fmt.Errorf("analysis interrupted: %w", err)
	}
	if st.Status == session.StatusFailed {
		return r.userError(formatter, st.Err)
	}

	if out := cmd.String("out"); out != "" {
		if err := writeFile(out, func(w io.Writer) error { return ctrl.Download(ctx, w) }); err != nil {
			return fmt.Errorf("save game record: %w", err)
		}
		fmt.Fprintln(r.stdout, d.catalog.Text("download.saved", map[string]any{"Path": out}, "Saved "+out))
	}
	if out := cmd.String("preview"); out != "" {
		err := writeFile(out, func(w io.Writer) error { return ctrl.DownloadPreview(ctx, w) })
		switch {
		case errors.Is(err, session.ErrNotReady):
			logger.Warn("preview_unavailable", zap.String("session_id", st.SessionID))
		case err != nil:
			return fmt.Errorf("save preview: %w", err)
		default:
			fmt.Fprintln(r.stdout, d.catalog.Text("download.preview_saved", map[string]any{"Path": out}, "Saved "+out))
		}
	}
	// 아카이브 기록이 끝나기 전에 Close로 취소되지 않도록 기다린다
	if err := ctrl.Flush(ctx); err != nil {
		logger.Warn("archive_flush_interrupted", zap.String("session_id", st.SessionID), zap.Error(err))
	}
	return nil
}

func (r *Runner) userError(f *presenter.Formatter, err error) error {
	var serr *session.Error
	if errors.As(err, &serr) {
		fmt.Fprintln(r.stderr, f.ErrorText(serr))
	}
	return err
}

func (r *Runner) Config(ctx context.Context, cmd *cli.Command) error {
	cfg, err := appcfg.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	rows := []struct{ k, v string }{
		{"ANALYZER_BASE_URL", cfg.BaseURL},
		{"ANALYZER_WS_URL", cfg.WSURL},
		{"STREAM_MODE", cfg.StreamMode},
		{"REQUEST_TIMEOUT", cfg.RequestTimeout.String()},
		{"UPLOAD_TIMEOUT", cfg.UploadTimeout.String()},
		{"MAX_UPLOAD_BYTES", fmt.Sprint(cfg.MaxUploadBytes)},
		{"ARTIFACT_STORE", cfg.ArtifactStore},
		{"ARTIFACT_DIR", cfg.ArtifactDir},
		{"ARTIFACT_TTL", cfg.ArtifactTTL.String()},
		{"REDIS_URL", redact(cfg.RedisURL)},
		{"DATABASE_URL", redact(cfg.DatabaseURL)},
		{"MESSAGES_DIR", cfg.MessagesDir},
		{"PREVIEW_ENABLED", fmt.Sprint(cfg.PreviewEnabled)},
	}
	for _, row := range rows {
		fmt.Fprintf(r.stdout, "%-18s %s\n", row.k, row.v)
	}
	fmt.Fprintf(r.stdout, "%-18s %v\n", "MESSAGES_LOADED", cat.Has("session.idle"))
	return nil
}

func redact(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid>"
	}
	return u.Redacted()
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
