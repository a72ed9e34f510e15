package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dataloader/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload server",
	Long: `Serve starts the HTTP loader:

  GET  /            upload form
  POST /api/upload  multipart upload (file, delimiter, columnMapping)
  GET  /healthz     database ping
  GET  /metrics     Prometheus metrics

On SIGINT or SIGTERM the server stops accepting requests, waits for running
uploads up to SERVER_SHUTDOWN_TIMEOUT, then drains the worker pool.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(envFileFlag(cmd), os.Stdout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	server := web.NewServer(a.ingest, a.db, web.Options{
		MaxFileSize:    cfg.Upload.MaxFileSize,
		RequestTimeout: cfg.Server.RequestTimeout,
		TrustedProxies: cfg.Server.TrustedProxies,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Addr())
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()

	limiter := a.ingest.Limiter()
	if active := limiter.Active(); active > 0 {
		slog.Info("waiting for uploads to complete", "active", active)
		if err := limiter.Drain(shutdownCtx); err != nil {
			slog.Warn("uploads did not complete in time", "error", err)
		} else {
			slog.Info("all uploads completed")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}
