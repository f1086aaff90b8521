package model

import "errors"

var (
	ErrAccessDenied      = errors.New("access denied")
	ErrNotFound          = errors.New("not found")
	ErrNotAFile          = errors.New("not a file")
	ErrNotADirectory     = errors.New("not a directory")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotTexFile        = errors.New("not a .tex file")
	ErrViewerUnavailable = errors.New("viewer unavailable")
)

const (
	CompileFailed      = "COMPILATION_FAILED"
	CompileTimeout     = "COMPILATION_TIMEOUT"
	CompileToolMissing = "COMPILATION_TOOL_MISSING"
)

// CompileError reports a LaTeX compilation that did not produce a PDF.
type CompileError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CompileError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}

func (e *CompileError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ErrorCode maps err to the stable code reported to agents and browsers.
func ErrorCode(err error) string {
	var ce *CompileError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ce):
		return ce.Code
	case errors.Is(err, ErrAccessDenied):
		return "ACCESS_DENIED"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrNotAFile):
		return "NOT_A_FILE"
	case errors.Is(err, ErrNotADirectory):
		return "NOT_A_DIRECTORY"
	case errors.Is(err, ErrNotTexFile), errors.Is(err, ErrInvalidArgument):
		return "INVALID_ARGUMENT"
	case errors.Is(err, ErrViewerUnavailable):
		return "VIEWER_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}
