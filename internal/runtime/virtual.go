// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// VirtualRunner interprets POSIX shell scripts in-process.
// External commands invoked by the script still run on the host.
type VirtualRunner struct{}

// Run parses and interprets the action's script.
func (r *VirtualRunner) Run(ctx context.Context, a Action) *Result {
	f, err := os.Open(a.Script)
	if err != nil {
		return &Result{ExitCode: 1, Error: fmt.Errorf("failed to open script: %w", err)}
	}
	defer func() { _ = f.Close() }()

	prog, err := syntax.NewParser().Parse(f, filepath.Base(a.Script))
	if err != nil {
		return &Result{ExitCode: 1, Error: fmt.Errorf("failed to parse script: %w", err)}
	}

	var stdout, stderr bytes.Buffer
	runner, err := interp.New(
		interp.Dir(a.Dir),
		interp.Env(expand.ListEnviron(environ(a)...)),
		interp.StdIO(nil, &stdout, &stderr),
	)
	if err != nil {
		return &Result{ExitCode: 1, Error: fmt.Errorf("failed to create interpreter: %w", err)}
	}

	runCtx, cancel := withTimeout(ctx, a.Timeout)
	defer cancel()

	start := time.Now()
	err = runner.Run(runCtx, prog)
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
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			result.ExitCode = int(exitStatus)
		} else {
			result.ExitCode = 1
			result.Error = err
		}
	}
	return result
}
