// SPDX-License-Identifier: MPL-2.0

// Package runtime executes module actions (init and refresh scripts).
//
// Two runtimes are provided: NativeRunner starts the script as a child
// process, VirtualRunner interprets shell scripts in-process with
// mvdan.cc/sh. Both capture stdout and stderr and enforce a timeout.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"
)

// Runtime modes.
const (
	ModeNative  Mode = "native"
	ModeVirtual Mode = "virtual"
)

// Environment variables exported to every action.
const (
	EnvProjectRoot = "ADHD_PROJECT_ROOT"
	EnvModuleDir   = "ADHD_MODULE_DIR"
	EnvModuleName  = "ADHD_MODULE_NAME"
)

var (
	// ErrActionTimeout is returned when an action exceeds its timeout.
	ErrActionTimeout = errors.New("action timed out")
	// ErrInvalidMode is the sentinel error wrapped by InvalidModeError.
	ErrInvalidMode = errors.New("invalid runtime mode")
)

type (
	// Mode selects how actions are executed.
	Mode string

	// InvalidModeError is returned when a Mode value is not recognized.
	InvalidModeError struct {
		Value Mode
	}

	// Action is one script to execute.
	Action struct {
		// Name identifies the action in logs, usually the module name.
		Name string
		// Script is the path of the script to run.
		Script string
		// Dir is the working directory, normally the project root.
		Dir string
		// ModuleDir is exported to the script as ADHD_MODULE_DIR.
		ModuleDir string
		// Timeout bounds the run. Zero means no bound.
		Timeout time.Duration
		// Env holds extra environment variables.
		Env map[string]string
	}

	// Result contains the outcome of an action.
	Result struct {
		// ExitCode is the script's exit status.
		ExitCode int
		// Output is the captured stdout.
		Output string
		// ErrOutput is the captured stderr.
		ErrOutput string
		// Error is set when the script could not be run to completion.
		Error error
		// Duration is the wall time of the run.
		Duration time.Duration
	}

	// Runner executes actions.
	Runner interface {
		Run(ctx context.Context, action Action) *Result
	}
)

// Error implements the error interface.
func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("invalid runtime mode %q (must be %q or %q)", e.Value, ModeNative, ModeVirtual)
}

// Unwrap returns ErrInvalidMode so callers can use errors.Is for programmatic detection.
func (e *InvalidModeError) Unwrap() error { return ErrInvalidMode }

// Validate returns nil if the mode is known.
func (m Mode) Validate() error {
	switch m {
	case ModeNative, ModeVirtual:
		return nil
	default:
		return &InvalidModeError{Value: m}
	}
}

// String returns the string representation of the Mode.
func (m Mode) String() string { return string(m) }

// Success reports whether the action ran and exited with status zero.
func (r *Result) Success() bool {
	return r.Error == nil && r.ExitCode == 0
}

// New returns the runner for mode. interpreter only applies to native mode;
// an empty value selects the interpreter by script extension.
func New(mode Mode, interpreter string) (Runner, error) {
	switch mode {
	case ModeNative, "":
		return &NativeRunner{Interpreter: interpreter}, nil
	case ModeVirtual:
		return &VirtualRunner{}, nil
	default:
		return nil, &InvalidModeError{Value: mode}
	}
}

// withTimeout derives the context an action runs under.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// timeoutError converts a deadline expiry of the action context into
// ErrActionTimeout. It returns nil for any other state.
func timeoutError(parent, actionCtx context.Context, d time.Duration) error {
	if parent.Err() == nil && errors.Is(actionCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrActionTimeout, d)
	}
	return nil
}

// environ returns the process environment with the action variables
// appended in a stable order.
func environ(a Action) []string {
	env := os.Environ()

	extra := map[string]string{}
	if a.Dir != "" {
		extra[EnvProjectRoot] = a.Dir
	}
	if a.ModuleDir != "" {
		extra[EnvModuleDir] = a.ModuleDir
	}
	if a.Name != "" {
		extra[EnvModuleName] = a.Name
	}
	for k, v := range a.Env {
		extra[k] = v
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
