package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/petal-labs/ghostmcp/ghost"
)

// ErrUnknownTool is returned for calls naming a tool that is not registered.
var ErrUnknownTool = errors.New("tool: unknown tool")

// Error kinds reported to observers in addition to ghost.ErrorKind values.
const (
	KindLocalValidation = "local_validation"
	KindUnknownTool     = "unknown_tool"
	KindInternal        = "internal"
)

// ValidationError is a local argument or precondition failure. It is raised
// before any backend write and is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func missingField(field string) *ValidationError {
	return invalidf(field, "Missing required field: %s", field)
}

// ErrorText renders err as the caller-facing message, without the envelope.
func ErrorText(err error) string {
	if err == nil {
		return ""
	}

	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Message
	}
	if errors.Is(err, ErrUnknownTool) {
		return "Unknown tool: " + strings.TrimPrefix(err.Error(), ErrUnknownTool.Error()+": ")
	}
	if ghostErr, ok := ghost.ErrorFrom(err); ok {
		return ghostErrorText(ghostErr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Server error: request timed out. Please try again later."
	}
	return err.Error()
}

func ghostErrorText(err *ghost.Error) string {
	msg := err.Message
	switch err.Kind {
	case ghost.KindBadRequest:
		return "Invalid request: " + msg
	case ghost.KindUnauthorized:
		return "Authentication failed: " + msg
	case ghost.KindForbidden:
		return "Permission denied: " + msg
	case ghost.KindNotFound:
		return "Resource not found: " + msg
	case ghost.KindConflict:
		return "Conflict: " + msg
	case ghost.KindValidation:
		return "Validation error: " + msg
	case ghost.KindRateLimited:
		return fmt.Sprintf("Rate limit exceeded. Please try again in %d seconds.", err.RetryAfter)
	case ghost.KindServerError:
		return fmt.Sprintf("Server error: %s. Please try again later.", strings.TrimSuffix(msg, "."))
	default:
		return "Ghost API error: " + msg
	}
}

// ErrorKind classifies err for logs, metrics, and the audit trail.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var validation *ValidationError
	switch {
	case errors.As(err, &validation):
		return KindLocalValidation
	case errors.Is(err, ErrUnknownTool):
		return KindUnknownTool
	}
	if kind := ghost.KindOf(err); kind != "" {
		return string(kind)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return string(ghost.KindServerError)
	}
	return KindInternal
}
