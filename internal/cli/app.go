package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/dataloader/internal/config"
	"github.com/JonMunkholm/dataloader/internal/ingest"
	"github.com/JonMunkholm/dataloader/internal/logging"
	"github.com/JonMunkholm/dataloader/internal/metrics"
	"github.com/JonMunkholm/dataloader/internal/store"
	"github.com/JonMunkholm/dataloader/internal/workerpool"
)

// loadConfig reads envFile (values in it win over the environment), loads
// the configuration and installs the default logger writing to logOut.
func loadConfig(envFile string, logOut io.Writer) (*config.Config, error) {
	envErr := godotenv.Overload(envFile)

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logging.Setup(logOut, cfg.Logging.Level, cfg.Logging.Format)

	switch {
	case envErr == nil:
		slog.Info("loaded env file (overwriting existing env vars)", "path", envFile)
	case errors.Is(envErr, fs.ErrNotExist):
		slog.Debug("no env file found, using environment variables", "path", envFile)
	default:
		slog.Warn("env file not loaded", "path", envFile, "error", envErr)
	}
	slog.Debug("configuration loaded", "config", cfg.String())

	return cfg, nil
}

// app holds the long-lived resources shared by every load.
type app struct {
	cfg     *config.Config
	db      *pgxpool.Pool
	workers *workerpool.Pool
	ingest  *ingest.Service
}

// newApp connects to the database and wires the load pipeline.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	method, err := store.ParseLoadMethod(cfg.Upload.LoadMethod)
	if err != nil {
		return nil, err
	}

	db, err := store.Connect(ctx, cfg.Database.URL, store.PoolOptions{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("connected to database",
		"max_conns", cfg.Database.MaxConns,
		"load_method", method,
	)

	workers := workerpool.New(workerpool.Config{
		CoreWorkers: cfg.Workers.Core,
		MaxWorkers:  cfg.Workers.Max,
		QueueSize:   cfg.Workers.QueueSize,
		KeepAlive:   cfg.Workers.KeepAlive,
		Logger:      slog.Default(),
	})
	if err := metrics.RegisterPool(workers); err != nil {
		slog.Warn("worker pool metrics not registered", "error", err)
	}
	sized := workers.Config()
	slog.Info("worker pool started",
		"core", sized.CoreWorkers,
		"max", sized.MaxWorkers,
		"queue", sized.QueueSize,
	)

	st := store.New(db, store.Options{
		ColumnLength: cfg.Upload.ColumnLength,
		Method:       method,
	})

	svc := ingest.NewService(st, st, workers, ingest.Config{
		ChunkSize:       cfg.Upload.ChunkSize,
		CancelOnFailure: cfg.Upload.CancelOnFailure,
		XMLSizeLimit:    cfg.Upload.XLSXXMLSizeLimit,
		MaxConcurrent:   cfg.Upload.MaxConcurrent,
		MaxWait:         cfg.Upload.MaxWaitTime,
	})

	slog.Info("upload admission ready",
		"max_concurrent", svc.Limiter().Capacity(),
		"max_wait", cfg.Upload.MaxWaitTime,
	)

	return &app{cfg: cfg, db: db, workers: workers, ingest: svc}, nil
}

// Close waits for queued load units and releases the database pool.
func (a *app) Close() {
	a.workers.Close()
	a.db.Close()
}

// exitError carries a message that has already been reported to the user.
type exitError struct {
	err error
}

func (e *exitError) Error() string { return fmt.Sprintf("load failed: %v", e.err) }
func (e *exitError) Unwrap() error { return e.err }

// Reported reports whether err has already been printed to the user.
func Reported(err error) bool {
	var e *exitError
	return errors.As(err, &e)
}
