package core

// Row is one projected record: a text value per resolved column, in
// resolved-mapping order.
type Row []string

// Chunk is a bounded, ordered group of rows dispatched as one load unit.
type Chunk struct {
	Index int // 0-based position in the file
	Rows  []Row
}

// Len returns the number of rows in the chunk.
func (c Chunk) Len() int {
	return len(c.Rows)
}

// ResolvedColumn pairs a mapping entry with the position of its source
// header in the file.
type ResolvedColumn struct {
	Source   string // Header name in the file
	Position int    // 0-based column position in the file
	Target   string // Column name in the target table
}

// Resolved is the ordered subset of a Mapping whose source headers occur in
// a file. Entries absent from the file are dropped, so len(Resolved) may be
// smaller than the mapping.
type Resolved []ResolvedColumn

// Targets returns the target column names in resolved order.
func (r Resolved) Targets() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.Target
	}
	return out
}

// Project picks the resolved positions out of a raw record.
// Positions past the end of a short record yield "".
func (r Resolved) Project(record []string) Row {
	row := make(Row, len(r))
	for i, c := range r {
		if c.Position < len(record) {
			row[i] = record[c.Position]
		}
	}
	return row
}
