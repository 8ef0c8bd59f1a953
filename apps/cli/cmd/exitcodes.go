package cmd

import (
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/abdul-hamid-achik/hitwire/packages/transport"
)

// Exit codes for hitwire CLI
const (
	// ExitSuccess indicates the request succeeded and all assertions passed
	ExitSuccess = 0

	// ExitAssertionFailure indicates an assertion or bench threshold failed
	ExitAssertionFailure = 1

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError carries the process exit code for a failed command. A nil err
// means the failure was already reported.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitUsageError
}

// reported reports whether err only carries an exit code for a failure the
// formatter already printed.
func reported(err error) bool {
	var ee *exitError
	return errors.As(err, &ee) && ee.err == nil
}

// requestExitCode classifies an error returned by http.Client.Request.
func requestExitCode(err error) int {
	switch {
	case errors.Is(err, transport.ErrMissingHost),
		errors.Is(err, transport.ErrMissingPort),
		errors.Is(err, http.ErrInvalidHeader),
		errors.Is(err, http.ErrInvalidMethod):
		return ExitUsageError
	default:
		return ExitNetworkError
	}
}
