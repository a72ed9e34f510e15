// Package parser turns an uploaded file into a stream of projected rows.
//
// A file is opened once with [Open], which reads the header, resolves the
// column mapping against it and returns a [RowReader]. Rows are produced one
// at a time; nothing holds more than the current record plus the resolved
// column positions. [ReadChunks] groups the stream into bounded chunks.
package parser

import (
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/dataloader/internal/core"
)

// RowReader yields projected rows in file order.
type RowReader interface {
	// Columns returns the resolved mapping the rows are projected through.
	Columns() core.Resolved

	// Read returns the next row, or io.EOF after the last one. Any other
	// error is a *core.Error of KindParse.
	Read() (core.Row, error)

	// BytesRead reports how many bytes of the upload have been consumed.
	BytesRead() int64

	Close() error
}

// Options tune how files are opened.
type Options struct {
	// XMLSizeLimit is the decompressed worksheet size above which the
	// spreadsheet reader spills to a temp file. Zero uses the library default.
	XMLSizeLimit int64
}

// source yields raw records for one format.
type source interface {
	next() ([]string, error)
	close() error
}

// Open reads the header record of r, resolves m against it and returns a
// reader positioned at the first data record.
//
// The returned reader may resolve to zero columns when none of the mapped
// headers are present; callers decide whether that is an error.
func Open(format Format, r io.Reader, m core.Mapping, opts Options) (RowReader, error) {
	counter := newCountingReader(r)

	var (
		src source
		err error
	)
	switch format.Kind {
	case KindDelimited:
		src = newDelimitedSource(counter, format.Delimiter)
	case KindSpreadsheet:
		src, err = openSpreadsheet(counter, opts)
		if err != nil {
			return nil, err
		}
	default:
		return nil, core.Validationf(core.CodeUnsupportedType, "unsupported format %s", format)
	}

	header, err := src.next()
	if errors.Is(err, io.EOF) {
		_ = src.close()
		return nil, core.ParseError(core.CodeEmptyFile, errors.New("file has no header row"))
	}
	if err != nil {
		_ = src.close()
		return nil, err
	}

	return &rowReader{
		src:      src,
		counter:  counter,
		resolved: m.Resolve(header),
	}, nil
}

type rowReader struct {
	src      source
	counter  *countingReader
	resolved core.Resolved
	rows     int
}

func (r *rowReader) Columns() core.Resolved {
	return r.resolved
}

func (r *rowReader) Read() (core.Row, error) {
	record, err := r.src.next()
	if err != nil {
		return nil, err
	}
	r.rows++
	return r.resolved.Project(record), nil
}

func (r *rowReader) BytesRead() int64 {
	return r.counter.BytesRead()
}

func (r *rowReader) Close() error {
	if err := r.src.close(); err != nil {
		return fmt.Errorf("close reader after %d rows: %w", r.rows, err)
	}
	return nil
}
