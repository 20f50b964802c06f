package classifier

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common conditions.
var (
	// ErrClassifierFailed is returned when a classifier could not produce a label.
	ErrClassifierFailed = errors.New("classifier: classification failed")

	// ErrNoClassifier is returned when no classifier is configured.
	ErrNoClassifier = errors.New("classifier: no classifier configured")

	// ErrClosed is returned after an async classifier has been closed.
	ErrClosed = errors.New("classifier: closed")
)

// ProcessError describes a classifier process that failed to start or exited
// with a non-zero status.
type ProcessError struct {
	// Command is the program and its arguments.
	Command []string

	// ExitCode is the process exit status, or -1 if it never ran to completion.
	ExitCode int

	// Stderr is the trimmed standard error output.
	Stderr string

	// Err is the underlying exec or context error.
	Err error
}

// Error implements the error interface.
func (e *ProcessError) Error() string {
	cmd := strings.Join(e.Command, " ")
	if e.Stderr != "" {
		return fmt.Sprintf("classifier: %q exited with status %d: %s", cmd, e.ExitCode, e.Stderr)
	}
	if e.ExitCode >= 0 {
		return fmt.Sprintf("classifier: %q exited with status %d", cmd, e.ExitCode)
	}
	return fmt.Sprintf("classifier: %q: %v", cmd, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProcessError) Unwrap() error {
	return e.Err
}

// Is reports ProcessError as a classification failure.
func (e *ProcessError) Is(target error) bool {
	return target == ErrClassifierFailed
}

// HTTPError is a non-2xx response from a classifier service.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("classifier: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("classifier: HTTP %d: %s", e.StatusCode, e.Body)
}

// Is reports HTTPError as a classification failure.
func (e *HTTPError) Is(target error) bool {
	return target == ErrClassifierFailed
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *HTTPError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// ChainError aggregates errors from all classifiers in a chain.
type ChainError struct {
	Errors []error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	if len(e.Errors) == 0 {
		return "classifier chain: no errors recorded"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("classifier chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("classifier chain: all %d classifiers failed, last error: %v",
		len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns the last error in the chain.
func (e *ChainError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}
