package cli

import "fmt"

// Process exit codes.
const (
	exitSuccess = 0
	exitRuntime = 1
	exitUsage   = 2
	exitConfig  = 3
)

// ExitError pairs a failure with the process exit code main should use.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitError formats like fmt.Errorf, so %w keeps the cause reachable.
func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...)}
}
