package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/sheethook/api"
	"github.com/aluiziolira/sheethook/archive"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the callback and edit endpoints, watch the workbook and run the archive schedule",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(a.svc, a.registry, cfg.MaxCallbackBytes),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	slog.Info("listening",
		slog.String("addr", cfg.ListenAddr),
		slog.String("workbook", cfg.WorkbookPath),
		slog.String("webhook", a.notifier.URL()),
	)

	if cfg.Watch {
		// The first scan picks up rows entered while the service was down.
		if _, err := a.svc.Scan(ctx); err != nil {
			slog.Warn("initial scan failed", slog.Any("error", err))
		}
		watcher, err := newWorkbookWatcher(a)
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			if stopErr := watcher.Stop(); stopErr != nil {
				slog.Error("stop watcher", slog.Any("error", stopErr))
			}
			return err
		}
		defer func() {
			if err := watcher.Stop(); err != nil {
				slog.Error("stop watcher", slog.Any("error", err))
			}
		}()
	}

	if cfg.ArchiveSchedule != "" {
		scheduler, err := archive.Schedule(cfg.ArchiveSchedule, func() {
			result, err := a.svc.Archive(ctx)
			if err != nil {
				slog.Error("scheduled archive failed", slog.Any("error", err))
				return
			}
			slog.Info("scheduled archive finished",
				slog.Int("archived", result.Archived),
				slog.Int("skipped", result.Skipped),
			)
		})
		if err != nil {
			return err
		}
		defer func() { <-scheduler.Stop().Done() }()
	}

	if cfg.Verbose {
		a.pipe.StartMetricsReporting(30 * time.Second)
	}

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, finishing in-flight events")
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", slog.Any("error", err))
	}
	return nil
}
