package core

// mapping.go implements the ordered column mapping and its resolution
// against a file's header row.
//
// Mapping order is significant: it decides the column order of the target
// table. Payloads are decoded token by token so the order the client wrote
// is the order that reaches the schema.

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// MaxIdentifierLength is the longest identifier PostgreSQL keeps without
// truncation.
const MaxIdentifierLength = 63

// Entry maps one source header to one target column.
type Entry struct {
	Source string
	Target string
}

// Mapping is an ordered source header → target column mapping.
// Source headers and target columns are each unique.
type Mapping struct {
	entries []Entry
}

// NewMapping validates entries and returns them as a Mapping.
func NewMapping(entries ...Entry) (Mapping, error) {
	if len(entries) == 0 {
		return Mapping{}, Validationf(CodeInvalidMapping, "column mapping is empty")
	}

	sources := make(map[string]bool, len(entries))
	targets := make(map[string]bool, len(entries))
	out := make([]Entry, 0, len(entries))

	for _, e := range entries {
		target := strings.TrimSpace(e.Target)
		switch {
		case e.Source == "":
			return Mapping{}, Validationf(CodeInvalidMapping, "column mapping has an empty source header")
		case target == "":
			return Mapping{}, Validationf(CodeInvalidMapping, "source header %q maps to an empty column name", e.Source)
		case len(target) > MaxIdentifierLength:
			return Mapping{}, Validationf(CodeInvalidMapping, "column name %q exceeds %d bytes", target, MaxIdentifierLength)
		case strings.ContainsRune(target, 0):
			return Mapping{}, Validationf(CodeInvalidMapping, "column name %q contains a NUL byte", target)
		case sources[e.Source]:
			return Mapping{}, Validationf(CodeDuplicateColumn, "source header %q is mapped twice", e.Source)
		case targets[target]:
			return Mapping{}, Validationf(CodeDuplicateColumn, "column name %q is used twice", target)
		}
		sources[e.Source] = true
		targets[target] = true
		out = append(out, Entry{Source: e.Source, Target: target})
	}

	return Mapping{entries: out}, nil
}

// MappingOf builds a Mapping from alternating source, target arguments.
func MappingOf(pairs ...string) (Mapping, error) {
	if len(pairs)%2 != 0 {
		return Mapping{}, Validationf(CodeInvalidMapping, "odd number of mapping arguments")
	}
	entries := make([]Entry, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		entries = append(entries, Entry{Source: pairs[i], Target: pairs[i+1]})
	}
	return NewMapping(entries...)
}

// ParseMappingJSON decodes a flat JSON object of source header to target
// column, keeping key order.
func ParseMappingJSON(data []byte) (Mapping, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return Mapping{}, invalidMapping(err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Mapping{}, Validationf(CodeInvalidMapping, "column mapping must be a JSON object")
	}

	var entries []Entry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Mapping{}, invalidMapping(err)
		}
		key, _ := keyTok.(string)

		valTok, err := dec.Token()
		if err != nil {
			return Mapping{}, invalidMapping(err)
		}
		val, ok := valTok.(string)
		if !ok {
			return Mapping{}, Validationf(CodeInvalidMapping, "value for %q must be a string", key)
		}
		entries = append(entries, Entry{Source: key, Target: val})
	}

	if _, err := dec.Token(); err != nil {
		return Mapping{}, invalidMapping(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Mapping{}, Validationf(CodeInvalidMapping, "unexpected data after column mapping")
	}

	return NewMapping(entries...)
}

func invalidMapping(err error) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidMapping, Msg: "invalid column mapping", Err: err}
}

// Len returns the number of entries.
func (m Mapping) Len() int {
	return len(m.entries)
}

// Entries returns a copy of the entries in order.
func (m Mapping) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Targets returns every target column in mapping order.
func (m Mapping) Targets() []string {
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Target
	}
	return out
}

// Resolve matches the mapping against a header row.
//
// The result keeps mapping order and contains only entries whose source
// header occurs in the row. When a header repeats, its first position wins.
func (m Mapping) Resolve(header []string) Resolved {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		if _, seen := positions[h]; !seen {
			positions[h] = i
		}
	}

	resolved := make(Resolved, 0, len(m.entries))
	for _, e := range m.entries {
		if pos, ok := positions[e.Source]; ok {
			resolved = append(resolved, ResolvedColumn{Source: e.Source, Position: pos, Target: e.Target})
		}
	}
	return resolved
}
