package store

import (
	"strconv"
	"strings"
)

// quoteIdentifier quotes a PostgreSQL identifier, doubling embedded quotes.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func createTableSQL(table string, columns []string, length int) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(quoteIdentifier(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdentifier(c))
		b.WriteString(" VARCHAR(")
		b.WriteString(strconv.Itoa(length))
		b.WriteString(")")
	}
	b.WriteString(")")
	return b.String()
}

func insertSQL(table string, columns []string) string {
	quoted := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdentifier(c)
		params[i] = "$" + strconv.Itoa(i+1)
	}
	return "INSERT INTO " + quoteIdentifier(table) +
		" (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(params, ", ") + ")"
}
