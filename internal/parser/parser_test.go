package parser

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/dataloader/internal/core"
)

var csvFormat = Format{Kind: KindDelimited, Delimiter: ','}

func mustMapping(t *testing.T, pairs ...string) core.Mapping {
	t.Helper()
	m, err := core.MappingOf(pairs...)
	require.NoError(t, err)
	return m
}

func readAll(t *testing.T, r RowReader) []core.Row {
	t.Helper()
	var rows []core.Row
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
}

// workbook builds an xlsx file whose first sheet holds rows.
func workbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestOpen_DelimitedRoundTrip(t *testing.T) {
	m := mustMapping(t, "id", "id", "name", "full_name")

	r, err := Open(csvFormat, strings.NewReader("id,name\n1,a\n2,b\n"), m, Options{})
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"id", "full_name"}, r.Columns().Targets())
	assert.Equal(t, []core.Row{{"1", "a"}, {"2", "b"}}, readAll(t, r))
	assert.Equal(t, int64(len("id,name\n1,a\n2,b\n")), r.BytesRead())
}

func TestOpen_ProjectsInMappingOrder(t *testing.T) {
	m := mustMapping(t, "c", "third", "a", "first", "missing", "nope")

	r, err := Open(Format{Kind: KindDelimited, Delimiter: '|'}, strings.NewReader("a|b|c\n1|2|3\n4|5\n"), m, Options{})
	require.NoError(t, err)
	defer r.Close()

	assert.Len(t, r.Columns(), 2)
	assert.Equal(t, []core.Row{{"3", "1"}, {"", "4"}}, readAll(t, r))
}

func TestOpen_BOMHeaderMatches(t *testing.T) {
	m := mustMapping(t, "id", "id")
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("id\n7\n")...)

	r, err := Open(csvFormat, bytes.NewReader(input), m, Options{})
	require.NoError(t, err)
	defer r.Close()

	require.Len(t, r.Columns(), 1)
	assert.Equal(t, []core.Row{{"7"}}, readAll(t, r))
}

func TestOpen_QuotedFieldsAndBlankLines(t *testing.T) {
	m := mustMapping(t, "note", "note")
	input := "note\n\"hello, world\"\n\n\"multi\nline\"\n"

	r, err := Open(csvFormat, strings.NewReader(input), m, Options{})
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []core.Row{{"hello, world"}, {"multi\nline"}}, readAll(t, r))
}

func TestOpen_NoMappedHeaders(t *testing.T) {
	m := mustMapping(t, "x", "x")

	r, err := Open(csvFormat, strings.NewReader("a,b\n1,2\n"), m, Options{})
	require.NoError(t, err)
	defer r.Close()

	assert.Empty(t, r.Columns())
}

func TestOpen_EmptyFile(t *testing.T) {
	_, err := Open(csvFormat, strings.NewReader(""), mustMapping(t, "a", "a"), Options{})
	require.Error(t, err)
	assert.Equal(t, core.KindParse, core.KindOf(err))
	assert.Equal(t, core.CodeEmptyFile, core.CodeOf(err))
}

func TestRead_MalformedRecord(t *testing.T) {
	r, err := Open(csvFormat, strings.NewReader("a,b\n1,x\"y\n"), mustMapping(t, "a", "a"), Options{})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Read()
	require.Error(t, err)
	assert.Equal(t, core.KindParse, core.KindOf(err))
	assert.Equal(t, core.CodeMalformedRecord, core.CodeOf(err))
}

func TestOpen_SpreadsheetParity(t *testing.T) {
	m := mustMapping(t, "id", "id", "name", "full_name")

	book := workbook(t,
		[]any{"id", "name"},
		[]any{"1", "a"},
		[]any{"2", "b"},
	)

	xr, err := Open(Format{Kind: KindSpreadsheet}, book, m, Options{})
	require.NoError(t, err)
	defer xr.Close()

	cr, err := Open(csvFormat, strings.NewReader("id,name\n1,a\n2,b\n"), m, Options{})
	require.NoError(t, err)
	defer cr.Close()

	assert.Equal(t, cr.Columns(), xr.Columns())
	assert.Equal(t, readAll(t, cr), readAll(t, xr))
	assert.Positive(t, xr.BytesRead())
}

func TestOpen_SpreadsheetBlankCellKeepsColumn(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellStr("Sheet1", "A1", "a"))
	require.NoError(t, f.SetCellStr("Sheet1", "B1", "b"))
	require.NoError(t, f.SetCellStr("Sheet1", "C1", "c"))
	require.NoError(t, f.SetCellStr("Sheet1", "A2", "1"))
	require.NoError(t, f.SetCellStr("Sheet1", "C2", "3"))
	// Row 3 left empty; row 4 has data again.
	require.NoError(t, f.SetCellStr("Sheet1", "B4", "5"))
	// Rows before the header are ignored.
	require.NoError(t, f.InsertRows("Sheet1", 1, 2))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	r, err := Open(Format{Kind: KindSpreadsheet}, buf, mustMapping(t, "a", "a", "b", "b", "c", "c"), Options{})
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []core.Row{{"1", "", "3"}, {"", "", ""}, {"", "5", ""}}, readAll(t, r))
}

func TestOpen_SpreadsheetBlankRowMatchesDelimited(t *testing.T) {
	m := mustMapping(t, "id", "id", "name", "name")

	book := workbook(t,
		[]any{"id", "name"},
		[]any{"", ""},
		[]any{"1", "2"},
	)
	xr, err := Open(Format{Kind: KindSpreadsheet}, book, m, Options{})
	require.NoError(t, err)
	defer xr.Close()

	cr, err := Open(csvFormat, strings.NewReader("id,name\n,\n1,2\n"), m, Options{})
	require.NoError(t, err)
	defer cr.Close()

	want := []core.Row{{"", ""}, {"1", "2"}}
	assert.Equal(t, want, readAll(t, cr))
	assert.Equal(t, want, readAll(t, xr))
}

func TestOpen_SpreadsheetNumbersAreRaw(t *testing.T) {
	book := workbook(t,
		[]any{"qty", "price"},
		[]any{3, 9.5},
	)

	r, err := Open(Format{Kind: KindSpreadsheet}, book, mustMapping(t, "qty", "qty", "price", "price"), Options{})
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []core.Row{{"3", "9.5"}}, readAll(t, r))
}

func TestOpen_SpreadsheetNotAZip(t *testing.T) {
	_, err := Open(Format{Kind: KindSpreadsheet}, strings.NewReader("id,name\n1,a\n"), mustMapping(t, "id", "id"), Options{})
	require.Error(t, err)
	assert.Equal(t, core.KindParse, core.KindOf(err))
	assert.Equal(t, core.CodeMalformedSpreadsheet, core.CodeOf(err))
}

func TestOpen_SpreadsheetEmptySheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	_, err = Open(Format{Kind: KindSpreadsheet}, buf, mustMapping(t, "id", "id"), Options{})
	assert.Equal(t, core.CodeEmptyFile, core.CodeOf(err))
}
