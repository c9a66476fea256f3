// SPDX-License-Identifier: MPL-2.0

// Package refresh runs the refresh actions of modules already in the
// project tree.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adhd-framework/adhd/internal/ctxlog"
	"github.com/adhd-framework/adhd/internal/metrics"
	"github.com/adhd-framework/adhd/internal/registry"
	"github.com/adhd-framework/adhd/internal/runtime"
	"github.com/adhd-framework/adhd/pkg/manifest"
)

var (
	// ErrModuleNotFound is returned when no module has the requested name.
	ErrModuleNotFound = errors.New("module not found")
	// ErrNoRefreshScript is returned when the named module has no refresh action.
	ErrNoRefreshScript = errors.New("module has no refresh action")
	// ErrRefresh is the sentinel error wrapped by ActionError.
	ErrRefresh = errors.New("refresh action failed")
)

type (
	// ActionError reports a failed refresh action.
	ActionError struct {
		Name     string
		ExitCode int
		Stderr   string
		Err      error
	}

	// Failure is one failed module in a Summary.
	Failure struct {
		Name string
		Err  error
	}

	// Summary is the outcome of a refresh run.
	Summary struct {
		Succeeded []string
		Failed    []Failure
		// Skipped lists modules without a refresh action.
		Skipped []string
	}

	// Refresher runs refresh actions.
	Refresher struct {
		Layout  registry.Layout
		Runner  runtime.Runner
		Timeout time.Duration
		// Metrics, when set, counts refresh results and times the phase.
		Metrics *metrics.Recorder
	}
)

// Error implements the error interface.
func (e *ActionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("refresh action of %s failed: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("refresh action of %s failed: exit status %d", e.Name, e.ExitCode)
}

// Unwrap returns both the sentinel and the underlying cause.
func (e *ActionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRefresh}
	}
	return []error{ErrRefresh, e.Err}
}

// OK reports whether no refresh action failed.
func (s *Summary) OK() bool { return len(s.Failed) == 0 }

func (s *Summary) String() string {
	total := len(s.Succeeded) + len(s.Failed)
	return fmt.Sprintf("%d/%d refreshed", len(s.Succeeded), total)
}

// RefreshAll runs the refresh action of every module in the project, in
// path order. A failing module does not stop the others.
func (r *Refresher) RefreshAll(ctx context.Context) (*Summary, error) {
	if r.Metrics != nil {
		defer r.Metrics.Since(metrics.PhaseRefresh, time.Now())
	}

	modules, err := registry.Scan(ctx, r.Layout)
	if err != nil {
		return nil, err
	}

	s := &Summary{}
	for _, m := range registry.Sorted(modules) {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		if !m.HasRefresh {
			s.Skipped = append(s.Skipped, m.Name)
			continue
		}
		if err := r.run(ctx, m); err != nil {
			s.Failed = append(s.Failed, Failure{Name: m.Name, Err: err})
			continue
		}
		s.Succeeded = append(s.Succeeded, m.Name)
	}

	ctxlog.FromContext(ctx).Info("refresh summary", "result", s.String())
	return s, nil
}

// RefreshModule runs the refresh action of the module called name.
func (r *Refresher) RefreshModule(ctx context.Context, name string) error {
	if r.Metrics != nil {
		defer r.Metrics.Since(metrics.PhaseRefresh, time.Now())
	}

	modules, err := registry.Scan(ctx, r.Layout)
	if err != nil {
		return err
	}
	m, ok := registry.FindByName(modules, name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}
	if !m.HasRefresh {
		return fmt.Errorf("%w: %s", ErrNoRefreshScript, m.Name)
	}
	return r.run(ctx, m)
}

func (r *Refresher) run(ctx context.Context, m manifest.ModuleInfo) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("refreshing module", "module", m.Name, "path", m.Path)

	res := r.Runner.Run(ctx, runtime.Action{
		Name:      m.Name,
		Script:    r.Layout.RefreshScriptPath(m.Path),
		Dir:       r.Layout.Root,
		ModuleDir: r.Layout.Abs(m.Path),
		Timeout:   r.Timeout,
	})
	if r.Metrics != nil {
		r.Metrics.Refreshed(res.Success())
	}
	if res.Output != "" {
		logger.Debug("refresh output", "module", m.Name, "stdout", res.Output)
	}
	if !res.Success() {
		err := &ActionError{Name: m.Name, ExitCode: res.ExitCode, Stderr: res.ErrOutput, Err: res.Error}
		logger.Error("refresh failed", "module", m.Name, "error", err)
		return err
	}
	return nil
}
