package core

// Error codes reference.
//
// Every failure the pipeline reports carries a code users can quote to support.
//
// Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid mapping: the column mapping payload could not be read
//	VAL002 - Duplicate column: a source header or target column appears twice
//	VAL003 - Unsupported file: the file extension is not csv, txt, tsv or xlsx
//	VAL004 - Invalid delimiter: the delimiter is not a single usable character
//	VAL005 - No mapped columns: none of the mapped headers occur in the file
//	VAL006 - Invalid file name: no table name can be derived from the file name
//
// Parse Errors (PARSE001-PARSE099)
//
//	PARSE001 - Malformed record in a delimited file
//	PARSE002 - Malformed spreadsheet container or worksheet markup
//	PARSE003 - Empty file: no header row
//
// Schema Errors (SCH001-SCH099)
//
//	SCH001 - Table creation failed
//	SCH002 - Table lookup failed
//
// Load Errors (LOAD001-LOAD099)
//
//	LOAD001 - A chunk could not be inserted
//
// Database Errors (DB001-DB099)
//
// Raw driver errors that escape without a code are classified by SQLSTATE
// class first, then by message pattern:
//
//	DB001 - Duplicate key          (23505, "duplicate key")
//	DB002 - Value too long         (22001, "value too long")
//	DB004 - Connection refused     (08xxx, "connection refused")
//	DB006 - Timeout                (57014, "timeout")
//	DB007 - Deadlock               (40P01, "deadlock")
//
// Upload Errors (UPL001-UPL099)
//
//	UPL002 - System busy: too many uploads in progress
//	UPL004 - Request cancelled
//	UPL005 - Request timed out
//
// Default Error (ERR000)
//
// Fallback when nothing matches. Check the server log for the underlying error.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// codeMessages holds the user-facing text for codes assigned by the pipeline.
var codeMessages = map[string]UserMessage{
	CodeInvalidMapping: {
		Message: "The column mapping could not be read",
		Action:  "Send the mapping as a JSON object of source header to target column",
	},
	CodeDuplicateColumn: {
		Message: "A column appears more than once in the mapping",
		Action:  "Map each source header once and give every target column a unique name",
	},
	CodeUnsupportedType: {
		Message: "This file type is not supported",
		Action:  "Upload a .csv, .txt, .tsv or .xlsx file",
	},
	CodeInvalidDelimiter: {
		Message: "The delimiter is not valid",
		Action:  "Use a single character such as , ; | or a tab",
	},
	CodeNoMappedColumns: {
		Message: "None of the mapped columns were found in the file",
		Action:  "Check that the mapping keys match the header row exactly",
	},
	CodeInvalidFileName: {
		Message: "The file name is not usable",
		Action:  "Rename the file and upload it again",
	},
	CodeInvalidRequest: {
		Message: "The upload request could not be read",
		Action:  "Send a multipart form with a file and a columnMapping field",
	},
	CodeMalformedRecord: {
		Message: "The file contains a malformed record",
		Action:  "Check quoting and delimiters around the reported line",
	},
	CodeMalformedSpreadsheet: {
		Message: "The spreadsheet could not be read",
		Action:  "Re-save the workbook as .xlsx and try again",
	},
	CodeEmptyFile: {
		Message: "The uploaded file is empty",
		Action:  "Upload a file with a header row",
	},
	CodeCreateTable: {
		Message: "The target table could not be created",
		Action:  "Check the target column names and try again",
	},
	CodeTableLookup: {
		Message: "Unable to check whether the table exists",
		Action:  "Please try again in a few moments",
	},
	CodeChunkLoad: {
		Message: "Some rows could not be stored",
		Action:  "The table may be partially loaded; review it before uploading again",
	},
	CodeTooManyUploads: {
		Message: "System is busy processing other uploads",
		Action:  "Please wait a moment and try again",
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// The first matching pattern wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	{
		pattern: "duplicate key",
		msg:     UserMessage{Message: "A record with this key already exists", Action: "Review the data for duplicates", Code: "DB001"},
	},
	{
		pattern: "value too long",
		msg:     UserMessage{Message: "A value is longer than the column allows", Action: "Shorten the value or widen the column", Code: "DB002"},
	},
	{
		pattern: "connection refused",
		msg:     UserMessage{Message: "Unable to connect to database", Action: "Please try again in a few moments", Code: "DB004"},
	},
	{
		pattern: "deadlock",
		msg:     UserMessage{Message: "Database was busy with conflicting operations", Action: "Please try again", Code: "DB007"},
	},
	{
		pattern: "too many concurrent uploads",
		msg:     UserMessage{Message: "System is busy processing other uploads", Action: "Please wait a moment and try again", Code: CodeTooManyUploads},
	},
	{
		pattern: "context canceled",
		msg:     UserMessage{Message: "Request was cancelled", Action: "Please try again", Code: "UPL004"},
	},
	{
		pattern: "context deadline exceeded",
		msg:     UserMessage{Message: "Request timed out", Action: "Try a smaller file or check your connection", Code: "UPL005"},
	},
	{
		pattern: "timeout",
		msg:     UserMessage{Message: "Operation timed out", Action: "Try a smaller file or try again later", Code: "DB006"},
	},
}

// sqlStateMessages classifies PostgreSQL errors by SQLSTATE.
var sqlStateMessages = map[string]string{
	"23505": "DB001",
	"22001": "DB002",
	"57014": "DB006",
	"40P01": "DB007",
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    CodeUnknown,
}

// MapError converts an error to a user-friendly message.
//
// A coded *Error resolves through its code. Otherwise a PostgreSQL error is
// classified by SQLSTATE, and finally the message text is matched against
// known patterns. Unknown errors map to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		if msg, ok := codeMessages[e.Code]; ok {
			msg.Code = e.Code
			return msg
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if code, ok := sqlStateMessages[pgErr.Code]; ok {
			return patternByCode(code)
		}
		if strings.HasPrefix(pgErr.Code, "08") {
			return patternByCode("DB004")
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

func patternByCode(code string) UserMessage {
	for _, ep := range errorPatterns {
		if ep.msg.Code == code {
			return ep.msg
		}
	}
	return defaultMessage
}

// IsUserFacing reports whether err maps to a known user message.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != CodeUnknown
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
