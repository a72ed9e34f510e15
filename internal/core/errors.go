package core

// errors.go defines the fault taxonomy shared by every stage of the pipeline.
//
// Every failure that leaves the pipeline is a *Error carrying a Kind (which
// stage rejected the upload) and a stable Code that users can quote to
// support. Callers branch on the kind with KindOf or errors.As instead of
// inspecting message text.

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by the pipeline stage that produced it.
type Kind int

const (
	KindInternal   Kind = iota // Unclassified failure
	KindValidation             // Bad mapping payload, unsupported file, empty resolved mapping
	KindParse                  // Malformed record or spreadsheet markup
	KindSchema                 // Existence check or table creation failed
	KindLoad                   // Bulk insert of a chunk failed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindParse:
		return "parse"
	case KindSchema:
		return "schema"
	case KindLoad:
		return "load"
	default:
		return "internal"
	}
}

// Stable error codes. See error_messages.go for the user-facing text.
const (
	CodeInvalidMapping   = "VAL001"
	CodeDuplicateColumn  = "VAL002"
	CodeUnsupportedType  = "VAL003"
	CodeInvalidDelimiter = "VAL004"
	CodeNoMappedColumns  = "VAL005"
	CodeInvalidFileName  = "VAL006"
	CodeInvalidRequest   = "VAL007"

	CodeMalformedRecord      = "PARSE001"
	CodeMalformedSpreadsheet = "PARSE002"
	CodeEmptyFile            = "PARSE003"

	CodeCreateTable = "SCH001"
	CodeTableLookup = "SCH002"

	CodeChunkLoad = "LOAD001"

	CodeTooManyUploads = "UPL002"
	CodeUnknown        = "ERR000"
)

// Error is the structured error returned by every pipeline stage.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String() + " error"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validationf returns a validation error with the given code.
func Validationf(code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// ParseError wraps a reader failure.
func ParseError(code string, err error) *Error {
	return &Error{Kind: KindParse, Code: code, Msg: "parse file", Err: err}
}

// SchemaError wraps a registrar failure.
func SchemaError(code, msg string, err error) *Error {
	return &Error{Kind: KindSchema, Code: code, Msg: msg, Err: err}
}

// LoadError wraps a chunk insert failure.
func LoadError(chunk int, err error) *Error {
	return &Error{Kind: KindLoad, Code: CodeChunkLoad, Msg: fmt.Sprintf("load chunk %d", chunk), Err: err}
}

// KindOf reports the kind of the first *Error in err's chain.
// Errors that carry no *Error are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf reports the code of the first *Error in err's chain, falling back
// to pattern matching through MapError.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return MapError(err).Code
}
