// SPDX-License-Identifier: MPL-2.0

// Package initializer runs module init actions in dependency order.
//
// Each module's requirements are initialized before the module itself.
// A module whose dependency fails is marked failed without running, while
// unrelated modules keep going. Cycles are detected on the chain of modules
// currently being initialized and reported rather than followed.
package initializer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adhd-framework/adhd/internal/ctxlog"
	"github.com/adhd-framework/adhd/internal/dag"
	"github.com/adhd-framework/adhd/internal/registry"
	"github.com/adhd-framework/adhd/internal/runtime"
	"github.com/adhd-framework/adhd/pkg/manifest"
	"github.com/adhd-framework/adhd/pkg/source"
)

var (
	// ErrInit is the sentinel error wrapped by InitError.
	ErrInit = errors.New("module initialization failed")
	// ErrDependencyFailed is the sentinel error wrapped by DependencyError.
	ErrDependencyFailed = errors.New("dependency failed")
)

type (
	// InitError reports a failed init action.
	InitError struct {
		Path     string
		Name     string
		ExitCode int
		Stdout   string
		Stderr   string
		Err      error
	}

	// DependencyError marks a module that was not initialized because one
	// of its requirements failed or formed a cycle.
	DependencyError struct {
		Path       string
		Dependency string
		Err        error
	}

	// Failure is one failed module in a Summary.
	Failure struct {
		Path string
		Name string
		Err  error
	}

	// MissingDependency is a requirement that matched no placed module.
	MissingDependency struct {
		Module string
		URL    source.URL
	}

	// Summary is the outcome of a run.
	Summary struct {
		Total     int
		Succeeded int
		Failed    []Failure
		Cycles    []*dag.CycleError
		Missing   []MissingDependency
		// Order lists modules in the order their initialization completed.
		Order []string
	}

	// Initializer tracks module states across one run.
	Initializer struct {
		Layout registry.Layout
		// Modules is the registry snapshot; modules absent from it are read
		// from disk on demand.
		Modules  map[string]manifest.ModuleInfo
		Resolver *Resolver
		Runner   runtime.Runner
		// Timeout bounds each init action. Zero means no bound.
		Timeout time.Duration

		states  map[string]State
		summary Summary
	}

	frame struct {
		path string
		info manifest.ModuleInfo
		next int
	}
)

// Error implements the error interface.
func (e *InitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("init action of %s failed: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("init action of %s failed: exit status %d", e.Name, e.ExitCode)
}

// Unwrap returns both the sentinel and the underlying cause.
func (e *InitError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInit}
	}
	return []error{ErrInit, e.Err}
}

// Error implements the error interface.
func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency %s of %s failed: %v", e.Dependency, e.Path, e.Err)
}

// Unwrap returns both the sentinel and the underlying cause.
func (e *DependencyError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDependencyFailed}
	}
	return []error{ErrDependencyFailed, e.Err}
}

// String renders the success ratio, e.g. "2/3 succeeded".
func (s *Summary) String() string {
	return fmt.Sprintf("%d/%d succeeded", s.Succeeded, s.Total)
}

// OK reports whether every module succeeded.
func (s *Summary) OK() bool {
	return s.Succeeded == s.Total && len(s.Failed) == 0
}

// FailedNames returns the names of the failed modules.
func (s *Summary) FailedNames() []string {
	out := make([]string, 0, len(s.Failed))
	for _, f := range s.Failed {
		out = append(out, f.Name)
	}
	return out
}

// New creates an Initializer for one run.
func New(layout registry.Layout, modules map[string]manifest.ModuleInfo, resolver *Resolver, runner runtime.Runner) *Initializer {
	if resolver == nil {
		resolver = NewResolver(nil)
	}
	return &Initializer{
		Layout:   layout,
		Modules:  modules,
		Resolver: resolver,
		Runner:   runner,
		states:   make(map[string]State),
	}
}

// State returns the current state of a module.
func (in *Initializer) State(path string) State {
	return in.states[filepath.Clean(path)]
}

// Run initializes every module in paths, in order. It returns early only
// when ctx is canceled.
func (in *Initializer) Run(ctx context.Context, paths []string) (*Summary, error) {
	logger := ctxlog.FromContext(ctx)

	seen := make(map[string]bool, len(paths))
	var driver []string
	for _, p := range paths {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			driver = append(driver, p)
		}
	}
	in.summary.Total = len(driver)

	for _, p := range driver {
		if in.states[p] != Unvisited {
			continue
		}
		if _, err := in.Initialize(ctx, p); err != nil {
			return in.finish(driver), err
		}
	}

	s := in.finish(driver)
	logger.Info("initialization summary", "result", s.String(), "failed", s.FailedNames())
	return s, nil
}

func (in *Initializer) finish(driver []string) *Summary {
	in.summary.Succeeded = 0
	for _, p := range driver {
		if in.states[p] == Done {
			in.summary.Succeeded++
		}
	}
	s := in.summary
	return &s
}

// Initialize brings the module at path, and everything it requires, to
// the done state. It reports whether the module ended up done. The only
// error returned is ctx's; frames still open at that point are reset to
// unvisited.
func (in *Initializer) Initialize(ctx context.Context, path string) (bool, error) {
	if in.states == nil {
		in.states = make(map[string]State)
	}
	path = filepath.Clean(path)
	switch in.states[path] {
	case Done:
		return true, nil
	case Failed:
		return false, nil
	}

	logger := ctxlog.FromContext(ctx)

	var stack []*frame
	// failedDep is set when the frame just popped failed; the new top of
	// the stack fails because of it.
	var failedDep *frame
	var failedErr error
	result := false

	push := func(p string) {
		f, err := in.enter(ctx, p)
		if err != nil {
			in.fail(ctx, p, manifest.Default(p).Name, err)
			failedDep, failedErr, result = &frame{path: p, info: manifest.Default(p)}, err, false
			return
		}
		stack = append(stack, f)
	}
	pop := func(ok bool) {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		result = ok
		if !ok {
			failedDep = top
		}
	}

	push(path)
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			for _, f := range stack {
				in.states[f.path] = Unvisited
			}
			return false, err
		}

		top := stack[len(stack)-1]

		if failedDep != nil {
			cause := failedErr
			if cause == nil {
				cause = fmt.Errorf("%s failed", failedDep.info.Name)
			}
			in.fail(ctx, top.path, top.info.Name, &DependencyError{Path: top.path, Dependency: failedDep.path, Err: cause})
			failedDep, failedErr = nil, nil
			pop(false)
			continue
		}

		if top.next < len(top.info.Requirements) {
			req := top.info.Requirements[top.next]
			top.next++

			dep, ok := in.Resolver.Resolve(req)
			if !ok {
				in.summary.Missing = append(in.summary.Missing, MissingDependency{Module: top.path, URL: req})
				logger.Warn("dependency not found among placed modules", "module", top.info.Name, "requirement", req)
				continue
			}
			dep = filepath.Clean(dep)

			switch in.states[dep] {
			case Done:
				continue
			case Failed:
				failedDep = &frame{path: dep, info: in.infoFor(ctx, dep)}
				continue
			case InChain:
				cycle := in.cycle(stack, dep)
				in.summary.Cycles = append(in.summary.Cycles, cycle)
				logger.Error("circular dependency", "cycle", strings.Join(cycle.Cycle, " -> "))
				failedDep, failedErr = &frame{path: dep, info: in.infoFor(ctx, dep)}, cycle
				continue
			default:
				logger.Debug("initializing dependency first", "module", top.info.Name, "dependency", dep)
				push(dep)
				continue
			}
		}

		pop(in.runInit(ctx, top))
	}

	return result, nil
}

// enter marks path as part of the active chain.
func (in *Initializer) enter(ctx context.Context, path string) (*frame, error) {
	info, ok := in.Modules[path]
	if !ok {
		var err error
		info, err = registry.ReadOne(ctx, in.Layout, path)
		if err != nil {
			return nil, err
		}
	}
	in.states[path] = InChain
	ctxlog.FromContext(ctx).Info("initializing module", "module", info.Name, "path", path, "type", info.Type)
	return &frame{path: path, info: info}, nil
}

func (in *Initializer) infoFor(ctx context.Context, path string) manifest.ModuleInfo {
	if info, ok := in.Modules[path]; ok {
		return info
	}
	if info, err := registry.ReadOne(ctx, in.Layout, path); err == nil {
		return info
	}
	return manifest.Default(path)
}

func (in *Initializer) fail(ctx context.Context, path, name string, err error) {
	in.states[path] = Failed
	in.summary.Failed = append(in.summary.Failed, Failure{Path: path, Name: name, Err: err})
	ctxlog.FromContext(ctx).Error("module failed", "module", name, "path", path, "error", err)
}

// cycle builds the diagnostic for a dependency on dep, which is already on
// the active chain: the chain from dep's first occurrence, closed by dep.
func (in *Initializer) cycle(stack []*frame, dep string) *dag.CycleError {
	start := 0
	for i, f := range stack {
		if f.path == dep {
			start = i
			break
		}
	}
	names := make([]string, 0, len(stack)-start+1)
	for _, f := range stack[start:] {
		names = append(names, f.info.Name)
	}
	names = append(names, stack[start].info.Name)
	return &dag.CycleError{Cycle: names}
}

// runInit runs the init action of a module whose requirements are all done.
func (in *Initializer) runInit(ctx context.Context, f *frame) bool {
	logger := ctxlog.FromContext(ctx)

	if !f.info.HasInit {
		in.states[f.path] = Done
		in.summary.Order = append(in.summary.Order, f.path)
		logger.Info("no initialization needed", "module", f.info.Name)
		return true
	}

	res := in.Runner.Run(ctx, runtime.Action{
		Name:      f.info.Name,
		Script:    in.Layout.InitScriptPath(f.path),
		Dir:       in.Layout.Root,
		ModuleDir: in.Layout.Abs(f.path),
		Timeout:   in.Timeout,
	})
	if res.Output != "" {
		logger.Debug("init output", "module", f.info.Name, "stdout", res.Output)
	}

	if !res.Success() {
		in.fail(ctx, f.path, f.info.Name, &InitError{
			Path:     f.path,
			Name:     f.info.Name,
			ExitCode: res.ExitCode,
			Stdout:   res.Output,
			Stderr:   res.ErrOutput,
			Err:      res.Error,
		})
		return false
	}

	in.states[f.path] = Done
	in.summary.Order = append(in.summary.Order, f.path)
	logger.Info("module initialized", "module", f.info.Name, "duration", res.Duration)
	return true
}
