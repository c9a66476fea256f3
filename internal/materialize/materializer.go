// SPDX-License-Identifier: MPL-2.0

// Package materialize places discovered modules into the project tree.
//
// For each discovered source the materializer decides whether to clone it,
// keep the copy already on disk, or replace that copy with a newer one.
// Every clone lands in a staging directory first and is copied into place
// only once it is complete.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adhd-framework/adhd/internal/ctxlog"
	"github.com/adhd-framework/adhd/internal/discovery"
	"github.com/adhd-framework/adhd/internal/registry"
	"github.com/adhd-framework/adhd/pkg/manifest"
	"github.com/adhd-framework/adhd/pkg/source"
)

// Placement actions.
const (
	ActionCloned   Action = "cloned"
	ActionKept     Action = "kept"
	ActionReplaced Action = "replaced"
	ActionFailed   Action = "failed"
)

const (
	// DefaultStagingDir is the staging directory name under the project root.
	DefaultStagingDir = "clone_temp"
	// DefaultCategory receives modules whose manifest declares no folder_path.
	DefaultCategory = "plugins"
	// DefaultCloneTimeout bounds a single clone.
	DefaultCloneTimeout = 5 * time.Minute
)

var (
	// ErrClone is the sentinel error wrapped by CloneError.
	ErrClone = errors.New("clone failed")
	// ErrInvalidTarget is returned when a module would be placed outside the project.
	ErrInvalidTarget = errors.New("invalid module target path")
)

type (
	// Action is what the materializer did with one source.
	Action string

	// CloneError reports a failed clone, copy or removal for one source.
	CloneError struct {
		URL  source.URL
		Path string
		Err  error
	}

	// Outcome records the decision taken for one source.
	Outcome struct {
		URL    source.URL
		Path   string
		Action Action
		// Existing is the version found on disk, empty when nothing was there.
		Existing manifest.Version
		// Incoming is the version announced by the source's manifest.
		Incoming manifest.Version
		Err      error
	}

	// Counts tallies outcomes by action.
	Counts struct {
		Cloned   int `toml:"cloned"`
		Kept     int `toml:"kept"`
		Replaced int `toml:"replaced"`
		Failed   int `toml:"failed"`
	}

	// Result is the outcome of a materialization batch.
	Result struct {
		Paths    *PathMap
		Outcomes []Outcome
		Counts   Counts
	}

	// Materializer places discovered modules into the project tree.
	Materializer struct {
		Layout registry.Layout
		Cloner Cloner
		// DefaultCategory receives modules without folder_path.
		DefaultCategory string
		// StagingDir holds in-progress clones. Relative paths are resolved
		// against the project root.
		StagingDir string
		// Force replaces every existing module regardless of version.
		Force bool
		// Exclude lists doublestar patterns not copied from the staging clone.
		Exclude []string
		// CloneTimeout bounds each clone. Zero means no bound.
		CloneTimeout time.Duration
	}
)

// Error implements the error interface.
func (e *CloneError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to materialize %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("failed to materialize %s into %s: %v", e.URL, e.Path, e.Err)
}

// Unwrap returns both the sentinel and the underlying cause.
func (e *CloneError) Unwrap() []error { return []error{ErrClone, e.Err} }

// Materialize places every entry of the crawl, in discovery order. A failure
// for one source never stops the batch; only context cancellation returns an
// error, together with the partial result.
func (m *Materializer) Materialize(ctx context.Context, crawl *discovery.Result) (*Result, error) {
	res := &Result{Paths: NewPathMap()}
	if crawl == nil {
		return res, nil
	}

	for _, entry := range crawl.Entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		o := m.place(ctx, entry)
		res.Outcomes = append(res.Outcomes, o)
		switch o.Action {
		case ActionCloned:
			res.Counts.Cloned++
		case ActionKept:
			res.Counts.Kept++
		case ActionReplaced:
			res.Counts.Replaced++
		case ActionFailed:
			res.Counts.Failed++
		}
		if o.Action != ActionFailed {
			res.Paths.Set(o.URL, o.Path)
		}
	}
	return res, nil
}

// Target returns the project-relative directory a source is placed in.
func (m *Materializer) Target(entry discovery.Entry) (string, error) {
	folder := ""
	if entry.Manifest != nil {
		folder = entry.Manifest.FolderPath
	}
	if folder == "" {
		name := source.RepoName(entry.URL)
		if name == "" {
			return "", fmt.Errorf("%w: cannot derive a directory name from %q", ErrInvalidTarget, entry.URL)
		}
		category := m.DefaultCategory
		if category == "" {
			category = DefaultCategory
		}
		folder = filepath.Join(category, name)
	}

	clean := filepath.Clean(filepath.FromSlash(folder))
	if filepath.IsAbs(clean) || clean == "." || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q must be a relative path inside the project", ErrInvalidTarget, folder)
	}
	return clean, nil
}

// Cleanup removes the staging directory.
func (m *Materializer) Cleanup() error {
	return os.RemoveAll(m.stagingDir())
}

func (m *Materializer) place(ctx context.Context, entry discovery.Entry) Outcome {
	logger := ctxlog.FromContext(ctx)
	o := Outcome{URL: entry.URL, Incoming: manifest.DefaultVersion}
	if entry.Manifest != nil {
		o.Incoming = entry.Manifest.Version
	}

	target, err := m.Target(entry)
	if err != nil {
		o.Action = ActionFailed
		o.Err = &CloneError{URL: entry.URL, Err: err}
		logger.Error("cannot place module", "url", entry.URL, "error", err)
		return o
	}
	o.Path = target
	abs := m.Layout.Abs(target)

	if !dirExists(abs) {
		if err := m.install(ctx, entry.URL, abs, false); err != nil {
			o.Action = ActionFailed
			o.Err = &CloneError{URL: entry.URL, Path: target, Err: err}
			logger.Error("clone failed", "url", entry.URL, "path", target, "error", err)
			return o
		}
		o.Action = ActionCloned
		logger.Info("cloned module", "url", entry.URL, "path", target, "version", o.Incoming)
		return o
	}

	existing, err := registry.ReadOne(ctx, m.Layout, target)
	if err != nil {
		existing = manifest.Default(target)
	}
	o.Existing = existing.Version

	if !m.Force && !o.Incoming.NewerThan(existing.Version) {
		o.Action = ActionKept
		logger.Info("keeping existing module", "path", target,
			"existing", existing.Version, "incoming", o.Incoming)
		return o
	}

	if err := m.install(ctx, entry.URL, abs, true); err != nil {
		o.Action = ActionFailed
		o.Err = &CloneError{URL: entry.URL, Path: target, Err: err}
		logger.Error("replacement failed", "url", entry.URL, "path", target, "error", err)
		return o
	}
	o.Action = ActionReplaced
	logger.Info("replaced module", "path", target, "from", existing.Version, "to", o.Incoming, "forced", m.Force)
	return o
}

// install clones u into a fresh staging directory and copies the result to
// abs. With replace set, the existing directory is removed once the clone
// has succeeded.
func (m *Materializer) install(ctx context.Context, u source.URL, abs string, replace bool) error {
	staging := m.stagingDir()
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	stage, err := os.MkdirTemp(staging, source.RepoName(u)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(stage) }()

	cloneCtx := ctx
	if m.CloneTimeout > 0 {
		var cancel context.CancelFunc
		cloneCtx, cancel = context.WithTimeout(ctx, m.CloneTimeout)
		defer cancel()
	}
	if err := m.Cloner.Clone(cloneCtx, u, stage); err != nil {
		if errors.Is(cloneCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("clone timed out after %s: %w", m.CloneTimeout, err)
		}
		return err
	}

	if replace {
		if err := os.RemoveAll(abs); err != nil {
			return fmt.Errorf("failed to remove existing module: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := copyTree(ctx, stage, abs, m.Exclude); err != nil {
		_ = os.RemoveAll(abs)
		return fmt.Errorf("failed to move module into place: %w", err)
	}
	return nil
}

func (m *Materializer) stagingDir() string {
	dir := m.StagingDir
	if dir == "" {
		dir = DefaultStagingDir
	}
	return m.Layout.Abs(dir)
}

func dirExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
