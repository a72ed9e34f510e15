// Package ingest runs one upload through the load pipeline:
//
//	validate → check exists → read header → create table → stream chunks
//	to the worker pool → wait for every chunk → result
//
// Parsing runs on the calling goroutine. Chunks are handed to the pool as
// soon as they fill, and Submit blocks when the pool is saturated, so at
// most pool capacity plus one chunk is held in memory. A failed chunk does
// not undo chunks that already landed.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/dataloader/internal/core"
	"github.com/JonMunkholm/dataloader/internal/logging"
	"github.com/JonMunkholm/dataloader/internal/metrics"
	"github.com/JonMunkholm/dataloader/internal/parser"
)

// Registrar checks for and provisions target tables.
type Registrar interface {
	Exists(ctx context.Context, table string) (bool, error)
	Create(ctx context.Context, table string, columns []string) (created bool, err error)
}

// Loader commits one chunk.
type Loader interface {
	Load(ctx context.Context, table string, columns []string, chunk core.Chunk) error
}

// Submitter runs tasks concurrently. *workerpool.Pool implements it.
type Submitter interface {
	Submit(ctx context.Context, task func()) error
}

// Config tunes the pipeline.
type Config struct {
	ChunkSize       int           // Rows per load unit; 0 means parser.DefaultChunkSize
	CancelOnFailure bool          // Stop dispatching and cancel running units after the first failed chunk
	XMLSizeLimit    int64         // Spreadsheet worksheet size before spilling to disk
	MaxConcurrent   int           // Concurrent uploads
	MaxWait         time.Duration // Wait for an upload slot
}

// Request is one file to ingest.
type Request struct {
	FileName  string
	Body      io.Reader
	Size      int64 // Declared size, informational only
	Delimiter string
	Mapping   core.Mapping
}

// Service runs ingestion requests. It is safe for concurrent use.
type Service struct {
	registrar Registrar
	loader    Loader
	pool      Submitter
	limiter   *Limiter
	cfg       Config
}

// NewService wires a Service. The pool is shared by every request and
// owned by the caller.
func NewService(registrar Registrar, loader Loader, pool Submitter, cfg Config) *Service {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = parser.DefaultChunkSize
	}
	return &Service{
		registrar: registrar,
		loader:    loader,
		pool:      pool,
		limiter:   NewLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		cfg:       cfg,
	}
}

// Limiter exposes upload admission for status reporting and shutdown.
func (s *Service) Limiter() *Limiter {
	return s.limiter
}

// errDispatchStopped ends the chunk stream after a failure when
// CancelOnFailure is set.
var errDispatchStopped = errors.New("dispatch stopped after chunk failure")

// Ingest loads req into its derived table.
//
// The returned Result is never nil. The error is nil for StatusLoaded and
// StatusAlreadyLoaded and equals Result.Err otherwise. Validation problems
// yield StatusRejected; anything that fails once the pipeline is running
// yields StatusFailed.
func (s *Service) Ingest(ctx context.Context, req Request) (*core.Result, error) {
	start := time.Now()
	res := &core.Result{
		LoadID:   uuid.NewString(),
		FileName: req.FileName,
	}
	ctx, log := logging.WithFields(ctx, "load_id", res.LoadID, "file", req.FileName)

	finish := func(err error) (*core.Result, error) {
		res.Elapsed = time.Since(start)
		if err != nil {
			res.Err = err
			if core.KindOf(err) == core.KindValidation || errors.Is(err, ErrTooManyUploads) {
				res.Status = core.StatusRejected
			} else {
				res.Status = core.StatusFailed
			}
		}

		metrics.CounterUploads.WithLabelValues(string(res.Status)).Inc()
		metrics.HistogramUploadDuration.Observe(res.Elapsed.Seconds())

		switch res.Status {
		case core.StatusLoaded:
			log.Info("load finished", "table", res.Table, "rows", res.Rows, "chunks", res.Chunks,
				"bytes", res.BytesRead, "duration_ms", res.Elapsed.Milliseconds())
		case core.StatusAlreadyLoaded:
			log.Info("table already loaded", "table", res.Table)
		default:
			log.Warn("load failed", "table", res.Table, "status", res.Status,
				"code", core.CodeOf(err), "error", err)
		}
		return res, res.Err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		if !errors.Is(err, ErrTooManyUploads) {
			err = fmt.Errorf("wait for upload slot: %w", err)
		}
		return finish(err)
	}
	defer s.limiter.Release()

	// Validate before touching the file or the database.
	if req.Mapping.Len() == 0 {
		return finish(core.Validationf(core.CodeInvalidMapping, "column mapping is empty"))
	}
	format, err := parser.DetectFormat(req.FileName, req.Delimiter)
	if err != nil {
		return finish(err)
	}
	table, err := core.TableName(req.FileName)
	if err != nil {
		return finish(err)
	}
	res.Table = table
	log.Debug("request validated", "table", table, "format", format.String(), "size", req.Size)

	exists, err := s.registrar.Exists(ctx, table)
	if err != nil {
		return finish(err)
	}
	if exists {
		res.Status = core.StatusAlreadyLoaded
		return finish(nil)
	}

	reader, err := parser.Open(format, req.Body, req.Mapping, parser.Options{XMLSizeLimit: s.cfg.XMLSizeLimit})
	if err != nil {
		return finish(err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			log.Warn("close reader", "error", err)
		}
	}()

	resolved := reader.Columns()
	if len(resolved) == 0 {
		return finish(core.Validationf(core.CodeNoMappedColumns,
			"none of the %d mapped columns occur in the file header", req.Mapping.Len()))
	}
	res.Columns = resolved.Targets()
	if len(resolved) < req.Mapping.Len() {
		log.Info("some mapped columns are missing from the file",
			"mapped", req.Mapping.Len(), "present", len(resolved))
	}

	created, err := s.registrar.Create(ctx, table, res.Columns)
	if err != nil {
		return finish(err)
	}
	if !created {
		log.Warn("table created by a concurrent upload", "table", table)
		res.Status = core.StatusAlreadyLoaded
		return finish(nil)
	}
	metrics.CounterTablesCreated.Inc()
	log.Info("table created", "table", table, "columns", len(res.Columns))

	outcomes, parseErr := s.dispatch(ctx, table, res.Columns, reader)
	res.BytesRead = reader.BytesRead()
	metrics.CounterBytesRead.Add(float64(res.BytesRead))

	res.Outcomes = outcomes
	res.Chunks = len(outcomes)
	var firstFailure error
	for _, o := range outcomes {
		if o.Err != nil {
			if firstFailure == nil {
				firstFailure = o.Err
			}
			continue
		}
		res.Rows += o.Rows
	}
	metrics.CounterRowsLoaded.Add(float64(res.Rows))

	if failed := res.Failures(); len(failed) > 0 {
		log.Warn("chunks failed", "failed", len(failed), "chunks", len(outcomes), "rows_committed", res.Rows)
	}

	switch {
	case parseErr != nil:
		return finish(parseErr)
	case firstFailure != nil:
		return finish(firstFailure)
	}

	res.Status = core.StatusLoaded
	return finish(nil)
}

// dispatch streams reader into the pool and waits for every submitted unit.
// It returns the outcomes sorted by chunk index and the error, if any, that
// stopped the stream.
func (s *Service) dispatch(ctx context.Context, table string, columns []string, reader parser.RowReader) ([]core.ChunkOutcome, error) {
	log := logging.FromContext(ctx)

	// Units outlive a dropped request: committed work is not abandoned
	// midway. Only the failure policy cancels them.
	loadCtx, cancelLoads := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelLoads()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []core.ChunkOutcome
		failed   atomic.Bool
	)
	record := func(o core.ChunkOutcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
		if o.Err != nil && s.cfg.CancelOnFailure {
			failed.Store(true)
			cancelLoads()
		}
	}

	_, err := parser.ReadChunks(ctx, reader, s.cfg.ChunkSize, func(chunk core.Chunk) error {
		if failed.Load() {
			return errDispatchStopped
		}

		wg.Add(1)
		submitErr := s.pool.Submit(ctx, func() {
			defer wg.Done()
			record(s.loadChunk(loadCtx, table, columns, chunk))
		})
		if submitErr != nil {
			wg.Done()
			return fmt.Errorf("dispatch chunk %d: %w", chunk.Index, submitErr)
		}
		log.Debug("chunk dispatched", "chunk", chunk.Index, "rows", chunk.Len())
		return nil
	})

	wg.Wait()

	if errors.Is(err, errDispatchStopped) {
		err = nil
	}
	if err != nil {
		log.Warn("stopped reading file", "error", err)
	}

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Index < outcomes[j].Index })
	return outcomes, err
}

func (s *Service) loadChunk(ctx context.Context, table string, columns []string, chunk core.Chunk) (out core.ChunkOutcome) {
	start := time.Now()
	out = core.ChunkOutcome{Index: chunk.Index, Rows: chunk.Len()}

	defer func() {
		if r := recover(); r != nil {
			out.Err = core.LoadError(chunk.Index, fmt.Errorf("panic: %v", r))
		}
		out.Duration = time.Since(start)

		result := "ok"
		if out.Err != nil {
			result = "failed"
			logging.FromContext(ctx).Warn("chunk failed", "chunk", chunk.Index, "rows", chunk.Len(), "error", out.Err)
		}
		metrics.CounterChunks.WithLabelValues(result).Inc()
		metrics.HistogramChunkDuration.Observe(out.Duration.Seconds())
	}()

	err := s.loader.Load(ctx, table, columns, chunk)
	if err != nil && core.KindOf(err) != core.KindLoad {
		err = core.LoadError(chunk.Index, err)
	}
	out.Err = err
	return out
}
