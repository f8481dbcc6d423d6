package ghost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ErrorKind is the closed set of classified backend failure kinds.
type ErrorKind string

const (
	KindBadRequest   ErrorKind = "bad_request"
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindValidation   ErrorKind = "validation_failed"
	KindRateLimited  ErrorKind = "rate_limited"
	KindServerError  ErrorKind = "server_error"
	KindUnknown      ErrorKind = "unknown"
)

// DefaultRetryAfter is the retry hint, in seconds, used when a rate-limited
// response carries no usable Retry-After value.
const DefaultRetryAfter = 60

// APIErrorDetail is one entry of a Ghost error response body.
type APIErrorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Context any    `json:"context,omitempty"`
	Type    string `json:"type,omitempty"`
}

type errorBody struct {
	Errors          []APIErrorDetail `json:"errors"`
	RetryAfter      json.Number      `json:"retryAfter,omitempty"`
	RetryAfterSnake json.Number      `json:"retry_after,omitempty"`
}

// Error is a classified backend failure. It is created once, at the boundary
// where a backend call fails, and never mutated afterwards.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	// RetryAfter is the backend's retry hint in seconds (RateLimited only).
	RetryAfter int
	Details    []APIErrorDetail
	Cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("ghost: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ghost: %s: %s", e.Kind, e.Message)
}

// Unwrap exposes the transport-level cause, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// KindForStatus maps an HTTP status code to an error kind.
func KindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusBadRequest:
		return KindBadRequest
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindServerError
	default:
		return KindUnknown
	}
}

// Classify turns a failed HTTP exchange into an *Error. The message comes from
// the first structured error entry in body, falling back to fallback.
func Classify(status int, header http.Header, body []byte, fallback string) *Error {
	out := &Error{
		Kind:       KindForStatus(status),
		StatusCode: status,
		Message:    strings.TrimSpace(fallback),
	}

	var parsed errorBody
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		out.Details = parsed.Errors
		if len(parsed.Errors) > 0 {
			if msg := strings.TrimSpace(parsed.Errors[0].Message); msg != "" {
				out.Message = msg
			}
		}
	}
	if out.Message == "" {
		out.Message = http.StatusText(status)
	}
	if out.Message == "" {
		out.Message = fmt.Sprintf("request failed with status %d", status)
	}

	if out.Kind == KindRateLimited {
		out.RetryAfter = retryAfterSeconds(header, parsed)
	}
	return out
}

func retryAfterSeconds(header http.Header, body errorBody) int {
	candidates := []string{
		header.Get("Retry-After"),
		body.RetryAfter.String(),
		body.RetryAfterSnake.String(),
	}
	for _, raw := range candidates {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if seconds, err := strconv.Atoi(raw); err == nil && seconds >= 0 {
			return seconds
		}
		if seconds, err := strconv.ParseFloat(raw, 64); err == nil && seconds >= 0 {
			return int(seconds)
		}
	}
	return DefaultRetryAfter
}

// transportError classifies a failure that never produced an HTTP response,
// such as a dial error or an expired per-call deadline.
func transportError(err error) *Error {
	if existing, ok := ErrorFrom(err); ok {
		return existing
	}
	msg := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "request timed out"
	}
	return &Error{
		Kind:    KindServerError,
		Message: msg,
		Cause:   err,
	}
}

// ErrorFrom extracts a classified error from an error chain.
func ErrorFrom(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var ghostErr *Error
	if errors.As(err, &ghostErr) && ghostErr != nil {
		return ghostErr, true
	}
	return nil, false
}

// KindOf returns the classified kind of err, or "" when err is not a backend
// error.
func KindOf(err error) ErrorKind {
	if ghostErr, ok := ErrorFrom(err); ok {
		return ghostErr.Kind
	}
	return ""
}

func notFound(entity string) *Error {
	return &Error{
		Kind:       KindNotFound,
		StatusCode: http.StatusNotFound,
		Message:    entity + " not found",
	}
}
