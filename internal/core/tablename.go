package core

import (
	"path/filepath"
	"strings"
)

// TablePrefix starts every derived table name.
const TablePrefix = "data_"

// TableName derives the target table for an uploaded file name.
//
// The base name (extension included) has every rune outside [A-Za-z0-9]
// replaced by '_' and is prefixed with TablePrefix, so "Q1 sales.csv"
// becomes "data_Q1_sales_csv". Names are cut to MaxIdentifierLength so the
// name we look up is the name PostgreSQL stores.
func TableName(fileName string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(fileName, `\`, "/"))
	if base == "." || base == "/" || strings.TrimSpace(base) == "" {
		return "", Validationf(CodeInvalidFileName, "file name %q is empty", fileName)
	}

	var b strings.Builder
	b.Grow(len(TablePrefix) + len(base))
	b.WriteString(TablePrefix)
	for _, r := range base {
		if isAlnum(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	name := b.String()
	if len(name) > MaxIdentifierLength {
		name = name[:MaxIdentifierLength]
	}
	return name, nil
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
