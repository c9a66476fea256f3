// SPDX-License-Identifier: MPL-2.0

package cmd

import "fmt"

// Exit codes of the adhd binary.
const (
	// ExitOK means the run succeeded.
	ExitOK = 0
	// ExitFatal means the run stopped on a fatal error.
	ExitFatal = 1
	// ExitFailures means the run completed but some modules failed.
	ExitFailures = 2
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// formattedError replaces the message of err while keeping its chain.
type formattedError struct {
	msg string
	err error
}

func (e *formattedError) Error() string { return e.msg }

func (e *formattedError) Unwrap() error { return e.err }

func completedWithFailures(format string, args ...any) *ExitError {
	return &ExitError{Code: ExitFailures, Err: fmt.Errorf(format, args...)}
}
