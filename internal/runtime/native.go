// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"mvdan.cc/sh/v3/shell"
)

// waitDelay bounds how long Wait blocks on output pipes held open by
// grandchildren after the script itself was killed.
const waitDelay = 2 * time.Second

// NativeRunner runs scripts as child processes.
type NativeRunner struct {
	// Interpreter is a command line the script path is appended to,
	// e.g. "python3 -u". Empty selects one by extension.
	Interpreter string
}

// Run executes the action's script with no arguments and waits for it.
func (r *NativeRunner) Run(ctx context.Context, a Action) *Result {
	argv, err := r.command(a.Script)
	if err != nil {
		return &Result{ExitCode: 1, Error: err}
	}

	runCtx, cancel := withTimeout(ctx, a.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = a.Dir
	cmd.Env = environ(a)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err = cmd.Run()
	result := &Result{
		Output:    stdout.String(),
		ErrOutput: stderr.String(),
		Duration:  time.Since(start),
	}

	if terr := timeoutError(ctx, runCtx, a.Timeout); terr != nil {
		result.ExitCode = -1
		result.Error = terr
		return result
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			result.ExitCode = exitErr.ExitCode()
			return result
		}
		result.ExitCode = 1
		result.Error = fmt.Errorf("failed to execute %s: %w", a.Script, err)
	}
	return result
}

// command builds the argv for script.
func (r *NativeRunner) command(script string) ([]string, error) {
	interp := strings.TrimSpace(r.Interpreter)
	if interp == "" {
		interp = InterpreterFor(script)
	}
	if interp == "" {
		return []string{script}, nil
	}

	fields, err := shell.Fields(interp, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid interpreter %q: %w", interp, err)
	}
	if len(fields) == 0 {
		return []string{script}, nil
	}
	return append(fields, script), nil
}

// InterpreterFor returns the interpreter conventionally used for a script
// extension, or "" when the script should be executed directly.
func InterpreterFor(script string) string {
	switch strings.ToLower(filepath.Ext(script)) {
	case ".py":
		return "python3"
	case ".sh":
		return "sh"
	case ".bash":
		return "bash"
	default:
		return ""
	}
}
