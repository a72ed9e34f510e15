package parser

import (
	"encoding/csv"
	"errors"
	"io"

	"github.com/JonMunkholm/dataloader/internal/core"
)

// delimitedSource reads character-separated records. Records may have any
// number of fields; short records are padded during projection.
type delimitedSource struct {
	csv *csv.Reader
}

func newDelimitedSource(r io.Reader, delimiter rune) *delimitedSource {
	cr := csv.NewReader(newTextReader(r))
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return &delimitedSource{csv: cr}
}

func (d *delimitedSource) next() ([]string, error) {
	record, err := d.csv.Read()
	if err == nil {
		return record, nil
	}
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	return nil, core.ParseError(core.CodeMalformedRecord, err)
}

func (d *delimitedSource) close() error {
	return nil
}
