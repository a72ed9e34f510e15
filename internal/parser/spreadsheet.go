package parser

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/dataloader/internal/core"
)

// spreadsheetSource streams the first worksheet of an xlsx workbook.
//
// The zip container needs random access, so the library buffers the upload
// before the shared string table is read. Rows are then pulled forward-only;
// worksheets above the XML size limit are spilled to a temp file instead of
// memory. Cells are placed by their cell reference, so a blank cell between
// two values comes back as "" and keeps later values in their column.
// Blank rows ahead of the header are skipped. After it, a blank row comes
// back empty and is padded by the projection, the way a "," record is in a
// delimited file.
type spreadsheetSource struct {
	file    *excelize.File
	rows    *excelize.Rows
	sheet   string
	row     int
	started bool
}

func openSpreadsheet(r io.Reader, opts Options) (*spreadsheetSource, error) {
	f, err := excelize.OpenReader(r, excelize.Options{
		RawCellValue:      true,
		UnzipXMLSizeLimit: opts.XMLSizeLimit,
	})
	if err != nil {
		return nil, core.ParseError(core.CodeMalformedSpreadsheet, fmt.Errorf("open workbook: %w", err))
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, core.ParseError(core.CodeEmptyFile, errors.New("workbook has no worksheets"))
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, core.ParseError(core.CodeMalformedSpreadsheet, fmt.Errorf("open sheet %s: %w", sheets[0], err))
	}

	return &spreadsheetSource{file: f, rows: rows, sheet: sheets[0]}, nil
}

func (s *spreadsheetSource) next() ([]string, error) {
	for s.rows.Next() {
		s.row++
		cols, err := s.rows.Columns()
		if err != nil {
			return nil, core.ParseError(core.CodeMalformedSpreadsheet, fmt.Errorf("sheet %s row %d: %w", s.sheet, s.row, err))
		}
		if len(cols) == 0 && !s.started {
			continue
		}
		s.started = true
		return cols, nil
	}
	if err := s.rows.Error(); err != nil {
		return nil, core.ParseError(core.CodeMalformedSpreadsheet, fmt.Errorf("sheet %s: %w", s.sheet, err))
	}
	return nil, io.EOF
}

func (s *spreadsheetSource) close() error {
	return errors.Join(s.rows.Close(), s.file.Close())
}
