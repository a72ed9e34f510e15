package parser

import (
	"context"
	"errors"
	"io"

	"github.com/JonMunkholm/dataloader/internal/core"
)

// DefaultChunkSize is the number of rows per load unit.
const DefaultChunkSize = 100000

// ctxCheckInterval is how many rows pass between context checks.
const ctxCheckInterval = 1024

// Chunker groups rows into chunks of at most size rows and hands each full
// chunk to emit. Chunk indexes start at 0 and increase by one. Empty chunks
// are never emitted.
type Chunker struct {
	size int
	next int
	rows []core.Row
	emit func(core.Chunk) error
}

// NewChunker returns a Chunker. A size below 1 uses DefaultChunkSize.
func NewChunker(size int, emit func(core.Chunk) error) *Chunker {
	if size < 1 {
		size = DefaultChunkSize
	}
	c := &Chunker{size: size, emit: emit}
	c.reset()
	return c
}

// Add appends a row, emitting a chunk when the bound is reached.
func (c *Chunker) Add(row core.Row) error {
	c.rows = append(c.rows, row)
	if len(c.rows) >= c.size {
		return c.Flush()
	}
	return nil
}

// Flush emits the pending rows as a final, possibly smaller, chunk.
func (c *Chunker) Flush() error {
	if len(c.rows) == 0 {
		return nil
	}
	chunk := core.Chunk{Index: c.next, Rows: c.rows}
	c.next++
	c.reset()
	return c.emit(chunk)
}

func (c *Chunker) reset() {
	c.rows = make([]core.Row, 0, min(c.size, 4096))
}

// ReadChunks drains r through a Chunker of the given size.
// It returns the number of rows read and stops at the first read, emit or
// context error.
func ReadChunks(ctx context.Context, r RowReader, size int, emit func(core.Chunk) error) (int, error) {
	chunker := NewChunker(size, emit)
	rows := 0

	for {
		if rows%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return rows, err
			}
		}

		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rows, err
		}
		rows++

		if err := chunker.Add(row); err != nil {
			return rows, err
		}
	}

	return rows, chunker.Flush()
}
