// Package store provisions target tables and bulk-loads chunks into
// PostgreSQL.
//
// Tables are created at most once per name. Create serializes on a
// transaction-scoped advisory lock keyed by the table name, so two uploads
// of the same file race safely: one creates, the other sees the table and
// reports it as already present.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/dataloader/internal/core"
)

// DBTX is the subset of *pgxpool.Pool the store uses.
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// LoadMethod selects how a chunk is written.
type LoadMethod string

const (
	LoadBatch LoadMethod = "batch" // One INSERT per row, pipelined in a single batch
	LoadCopy  LoadMethod = "copy"  // COPY FROM STDIN
)

// ParseLoadMethod validates a configured load method.
func ParseLoadMethod(s string) (LoadMethod, error) {
	switch m := LoadMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case LoadBatch, LoadCopy:
		return m, nil
	case "":
		return LoadBatch, nil
	default:
		return "", fmt.Errorf("unknown load method %q (want batch or copy)", s)
	}
}

// DefaultColumnLength is the VARCHAR width of created columns.
const DefaultColumnLength = 255

// Options configure a Store.
type Options struct {
	ColumnLength int
	Method       LoadMethod
}

// Store implements table registration and chunk loading on PostgreSQL.
type Store struct {
	db           DBTX
	columnLength int
	method       LoadMethod
}

// New returns a Store backed by db.
func New(db DBTX, opts Options) *Store {
	if opts.ColumnLength <= 0 {
		opts.ColumnLength = DefaultColumnLength
	}
	if opts.Method == "" {
		opts.Method = LoadBatch
	}
	return &Store{db: db, columnLength: opts.ColumnLength, method: opts.Method}
}

const existsSQL = `SELECT EXISTS (
	SELECT 1 FROM information_schema.tables
	WHERE table_schema = current_schema() AND table_name = $1
)`

// Exists reports whether table is present in the current schema.
// Every call asks the database.
func (s *Store) Exists(ctx context.Context, table string) (bool, error) {
	exists, err := queryExists(ctx, s.db, table)
	if err != nil {
		return false, core.SchemaError(core.CodeTableLookup, "check table "+table, err)
	}
	return exists, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func queryExists(ctx context.Context, q rowQuerier, table string) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, existsSQL, table).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Create provisions table with one VARCHAR column per name, in order.
//
// It returns created=false without error when the table already exists,
// including when a concurrent upload created it first.
func (s *Store) Create(ctx context.Context, table string, columns []string) (bool, error) {
	if len(columns) == 0 {
		return false, core.SchemaError(core.CodeCreateTable, "create table "+table, fmt.Errorf("no columns"))
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, core.SchemaError(core.CodeCreateTable, "begin create "+table, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", table); err != nil {
		return false, core.SchemaError(core.CodeCreateTable, "lock "+table, err)
	}

	exists, err := queryExists(ctx, tx, table)
	if err != nil {
		return false, core.SchemaError(core.CodeTableLookup, "recheck table "+table, err)
	}
	if exists {
		return false, nil
	}

	if _, err := tx.Exec(ctx, createTableSQL(table, columns, s.columnLength)); err != nil {
		return false, core.SchemaError(core.CodeCreateTable, "create table "+table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, core.SchemaError(core.CodeCreateTable, "commit create "+table, err)
	}
	return true, nil
}

// Load writes every row of chunk into table in one round trip.
// The chunk lands entirely or not at all.
func (s *Store) Load(ctx context.Context, table string, columns []string, chunk core.Chunk) error {
	if chunk.Len() == 0 {
		return nil
	}

	var err error
	if s.method == LoadCopy {
		err = s.copyChunk(ctx, table, columns, chunk)
	} else {
		err = s.batchChunk(ctx, table, columns, chunk)
	}
	if err != nil {
		return core.LoadError(chunk.Index, err)
	}
	return nil
}

func (s *Store) batchChunk(ctx context.Context, table string, columns []string, chunk core.Chunk) error {
	query := insertSQL(table, columns)

	batch := &pgx.Batch{}
	for _, row := range chunk.Rows {
		batch.Queue(query, rowArgs(row)...)
	}

	results := s.db.SendBatch(ctx, batch)
	for i := range chunk.Rows {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := results.Close(); err != nil {
		return fmt.Errorf("complete batch insert: %w", err)
	}
	return nil
}

func (s *Store) copyChunk(ctx context.Context, table string, columns []string, chunk core.Chunk) error {
	src := pgx.CopyFromSlice(len(chunk.Rows), func(i int) ([]any, error) {
		return rowArgs(chunk.Rows[i]), nil
	})

	n, err := s.db.CopyFrom(ctx, pgx.Identifier{table}, columns, src)
	if err != nil {
		return fmt.Errorf("copy rows: %w", err)
	}
	if int(n) != chunk.Len() {
		return fmt.Errorf("copied %d of %d rows", n, chunk.Len())
	}
	return nil
}

func rowArgs(row core.Row) []any {
	args := make([]any, len(row))
	for i, v := range row {
		args[i] = v
	}
	return args
}
