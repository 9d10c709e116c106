// Package emd models electron-microscopy datasets as a typed node tree and
// populates it from EMD containers or legacy instrument files (SER, DM3,
// TIFF).
package emd

import (
	"errors"
	"fmt"
	"io"
)

// Code classifies errors at the file-format boundary.
type Code int

const (
	CodeNone Code = iota
	CodeUnrecognizedFileType
	CodeFileOpenFailed
	CodeInvalidOperation
	CodeFileIncomplete
	CodeInvalidDataFormat
	CodeInvalidDataType
	CodeUnknown
)

var codeNames = [...]string{
	CodeNone:                 "none",
	CodeUnrecognizedFileType: "unrecognized file type",
	CodeFileOpenFailed:       "file open failed",
	CodeInvalidOperation:     "invalid operation",
	CodeFileIncomplete:       "file incomplete",
	CodeInvalidDataFormat:    "invalid data format",
	CodeInvalidDataType:      "invalid data type",
	CodeUnknown:              "unknown error",
}

func (c Code) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error is a classified failure. Errors match each other under errors.Is
// when their codes are equal, so callers can test against the Err* code
// sentinels below.
type Error struct {
	Code Code
	Op   string // operation, e.g. "ser", "dm3", "load"
	Path string // file or node path, may be empty
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code && t.Op == "" && t.Path == "" && t.Err == nil
}

// Code sentinels for errors.Is.
var (
	ErrUnrecognizedFileType = &Error{Code: CodeUnrecognizedFileType}
	ErrFileOpenFailed       = &Error{Code: CodeFileOpenFailed}
	ErrInvalidOperation     = &Error{Code: CodeInvalidOperation}
	ErrFileIncomplete       = &Error{Code: CodeFileIncomplete}
	ErrInvalidDataFormat    = &Error{Code: CodeInvalidDataFormat}
	ErrInvalidDataType      = &Error{Code: CodeInvalidDataType}
	ErrUnknown              = &Error{Code: CodeUnknown}
)

// Common errors
var (
	ErrCapacity         = errors.New("dataset exceeds memory limit")
	ErrNotLoaded        = errors.New("dataset is not loaded")
	ErrUnassignedAxes   = errors.New("horizontal and vertical axes must both be assigned")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrArrayAttribute   = errors.New("array attributes cannot be reassigned")
	ErrInvalidDataSpace = errors.New("invalid data space")
	ErrNotContiguous    = errors.New("frame is not contiguous")
	ErrProtectedNode    = errors.New("node cannot be deleted")
)

func newError(code Code, op, path string, err error) *Error {
	return &Error{Code: code, Op: op, Path: path, Err: err}
}

// CodeOf maps err to a Code. nil is CodeNone, truncated input is
// CodeFileIncomplete and unclassified errors are CodeUnknown.
func CodeOf(err error) Code {
	if err == nil {
		return CodeNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return CodeFileIncomplete
	}
	return CodeUnknown
}
