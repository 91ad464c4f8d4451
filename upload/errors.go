package upload

import (
	"errors"
	"net/http"
)

// Limit violation codes reported in Error.Code.
const (
	CodePartCount      = "LIMIT_PART_COUNT"
	CodeFileSize       = "LIMIT_FILE_SIZE"
	CodeFileCount      = "LIMIT_FILE_COUNT"
	CodeFieldValue     = "LIMIT_FIELD_VALUE"
	CodeFieldCount     = "LIMIT_FIELD_COUNT"
	CodeUnexpectedFile = "LIMIT_UNEXPECTED_FILE"
)

var codeMessages = map[string]string{
	CodePartCount:      "Too many parts",
	CodeFileSize:       "File too large",
	CodeFileCount:      "Too many files",
	CodeFieldValue:     "Field value too long",
	CodeFieldCount:     "Too many fields",
	CodeUnexpectedFile: "Unexpected field",
}

var (
	// ErrNoStorage is returned by New when Config.Storage is nil.
	ErrNoStorage = errors.New("upload: storage must not be nil")

	// ErrInvalidMaxCount is returned when a field accepts fewer than one
	// file.
	ErrInvalidMaxCount = errors.New("upload: max count must be greater than zero")

	errFileTooLarge = errors.New("upload: file too large")
)

// Error is a limit violation raised while reading a multipart body. It maps
// to 400 Bad Request.
type Error struct {
	Code  string
	Field string
}

func (e *Error) Error() string {
	msg, ok := codeMessages[e.Code]
	if !ok {
		msg = e.Code
	}

	if e.Field != "" {
		return msg + ": " + e.Field
	}

	return msg
}

// StatusCode reports 400 Bad Request.
func (e *Error) StatusCode() int {
	return http.StatusBadRequest
}

func limitError(code, field string) *Error {
	return &Error{Code: code, Field: field}
}
