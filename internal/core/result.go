package core

import (
	"fmt"
	"time"
)

// Status is the terminal state of one ingestion request.
type Status string

const (
	StatusAlreadyLoaded Status = "already_loaded"
	StatusLoaded        Status = "loaded"
	StatusFailed        Status = "failed"
	StatusRejected      Status = "rejected" // Refused before the pipeline started
)

// ChunkOutcome records what happened to one dispatched chunk.
type ChunkOutcome struct {
	Index    int
	Rows     int
	Duration time.Duration
	Err      error // nil when the chunk landed
}

// Result is the outcome of one ingestion request.
type Result struct {
	LoadID    string
	Status    Status
	Table     string
	FileName  string
	Columns   []string // Target columns in schema order
	Rows      int      // Rows committed
	Chunks    int      // Chunks dispatched
	BytesRead int64
	Elapsed   time.Duration
	Outcomes  []ChunkOutcome // Ordered by chunk index
	Err       error          // Set when Status is StatusFailed or StatusRejected
}

// Failures returns the outcomes that did not land, in chunk order.
func (r *Result) Failures() []ChunkOutcome {
	var out []ChunkOutcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Message renders the human-readable status line.
func (r *Result) Message() string {
	switch r.Status {
	case StatusAlreadyLoaded:
		return "Data already loaded into table " + r.Table
	case StatusLoaded:
		return fmt.Sprintf("Data successfully loaded into table %s in %.2fs", r.Table, r.Elapsed.Seconds())
	case StatusFailed:
		return "Failed to process file: " + errText(r.Err)
	default:
		return "Error: " + errText(r.Err)
	}
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
