package parser

import (
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/dataloader/internal/core"
)

// Kind selects the row extraction strategy for a file.
type Kind int

const (
	KindDelimited   Kind = iota + 1 // Character-separated text
	KindSpreadsheet                 // Zipped workbook, first worksheet
)

func (k Kind) String() string {
	switch k {
	case KindDelimited:
		return "delimited"
	case KindSpreadsheet:
		return "spreadsheet"
	default:
		return "unknown"
	}
}

// Format is the tagged variant chosen once per upload. Delimiter is only
// meaningful for KindDelimited.
type Format struct {
	Kind      Kind
	Delimiter rune
}

func (f Format) String() string {
	if f.Kind == KindDelimited {
		return "delimited " + strconv.QuoteRune(f.Delimiter)
	}
	return f.Kind.String()
}

// DefaultDelimiter is used for .txt uploads that supply no delimiter.
const DefaultDelimiter = ','

// DetectFormat picks the format from the file extension (case-insensitive).
//
//	.csv  → delimited by ',' (any supplied delimiter is ignored)
//	.txt  → delimited by the supplied delimiter, ',' when empty
//	.tsv  → delimited by '\t'
//	.xlsx → spreadsheet
//
// Everything else is rejected before any byte of the file is read.
func DetectFormat(fileName, delimiter string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))

	switch ext {
	case "csv":
		return Format{Kind: KindDelimited, Delimiter: ','}, nil
	case "tsv":
		return Format{Kind: KindDelimited, Delimiter: '\t'}, nil
	case "txt":
		d, err := ParseDelimiter(delimiter)
		if err != nil {
			return Format{}, err
		}
		return Format{Kind: KindDelimited, Delimiter: d}, nil
	case "xlsx":
		return Format{Kind: KindSpreadsheet}, nil
	case "":
		return Format{}, core.Validationf(core.CodeUnsupportedType, "unsupported file type: %q has no extension", fileName)
	default:
		return Format{}, core.Validationf(core.CodeUnsupportedType, "unsupported file type: %s", ext)
	}
}

// ParseDelimiter validates a user-supplied delimiter. Empty means ','; the
// literal strings `\t` and "tab" mean a tab character.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return DefaultDelimiter, nil
	case `\t`, "tab", "TAB":
		return '\t', nil
	}

	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) {
		return 0, core.Validationf(core.CodeInvalidDelimiter, "delimiter %q must be a single character", s)
	}
	if !validDelimiter(r) {
		return 0, core.Validationf(core.CodeInvalidDelimiter, "delimiter %q cannot be used", s)
	}
	return r, nil
}

// validDelimiter mirrors the runes encoding/csv refuses as a separator.
func validDelimiter(r rune) bool {
	return r != 0 && r != '"' && r != '\r' && r != '\n' && utf8.ValidRune(r) && r != utf8.RuneError
}
