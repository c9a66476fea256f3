// SPDX-License-Identifier: MPL-2.0

// Package project bootstraps a project tree: it reads the root manifest,
// discovers every transitively required module, places them in the tree
// and initializes them in dependency order.
package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/adhd-framework/adhd/internal/config"
	"github.com/adhd-framework/adhd/internal/ctxlog"
	"github.com/adhd-framework/adhd/internal/discovery"
	"github.com/adhd-framework/adhd/internal/initializer"
	"github.com/adhd-framework/adhd/internal/issue"
	"github.com/adhd-framework/adhd/internal/materialize"
	"github.com/adhd-framework/adhd/internal/metrics"
	"github.com/adhd-framework/adhd/internal/registry"
	"github.com/adhd-framework/adhd/internal/runtime"
	"github.com/adhd-framework/adhd/pkg/manifest"
)

// ErrRootManifest is wrapped by every error that stops a run before any
// module is processed.
var ErrRootManifest = errors.New("root manifest unavailable")

type (
	// Options are the per-run inputs.
	Options struct {
		// Root is the project root directory.
		Root string
		// RootManifest is the root manifest path, relative to Root unless
		// absolute. Empty means the configured manifest file name.
		RootManifest string
		// CloneDir overrides the configured staging directory.
		CloneDir string
		// Force replaces every existing module regardless of version.
		Force bool
		// ReportPath, when set, receives the run report as TOML.
		ReportPath string
		// MetricsPath, when set, receives the run metrics as a Prometheus textfile.
		MetricsPath string
	}

	// Dependencies are the injection points of a Bootstrapper. Nil fields
	// are replaced with production defaults built from the configuration.
	Dependencies struct {
		Fetcher discovery.Fetcher
		Cloner  materialize.Cloner
		Runner  runtime.Runner
		Metrics *metrics.Recorder
	}

	// Bootstrapper runs the whole pipeline for one project.
	Bootstrapper struct {
		Config  *config.Config
		Options Options
		Layout  registry.Layout

		fetcher discovery.Fetcher
		cloner  materialize.Cloner
		runner  runtime.Runner
		metrics *metrics.Recorder
	}
)

// LayoutFor derives the project layout from the configuration.
func LayoutFor(cfg *config.Config, root string) registry.Layout {
	l := registry.DefaultLayout(root)
	if len(cfg.Layout.Categories) > 0 {
		l.Categories = append([]string(nil), cfg.Layout.Categories...)
	}
	if cfg.Layout.ManifestFile != "" {
		l.ManifestFile = cfg.Layout.ManifestFile
	}
	if cfg.Layout.InitScript != "" {
		l.InitScript = cfg.Layout.InitScript
	}
	if cfg.Layout.RefreshScript != "" {
		l.RefreshScript = cfg.Layout.RefreshScript
	}
	return l
}

// NewRunner builds the action runner selected by the configuration.
func NewRunner(cfg *config.Config) (runtime.Runner, error) {
	return runtime.New(runtime.Mode(cfg.Runtime.Mode), cfg.Runtime.Interpreter)
}

// New creates a Bootstrapper.
func New(cfg *config.Config, opts Options, deps Dependencies) (*Bootstrapper, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if opts.Root == "" {
		opts.Root = "."
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	opts.Root = root
	layout := LayoutFor(cfg, root)

	if deps.Fetcher == nil {
		deps.Fetcher = discovery.SourceFetcher{
			Remote: discovery.NewHTTPFetcher(
				discovery.WithRef(cfg.Discovery.Ref),
				discovery.WithTimeout(cfg.Discovery.FetchTimeout),
				discovery.WithURLTemplate(cfg.Discovery.URLTemplate),
				discovery.WithManifestFile(layout.ManifestFile),
				discovery.WithMaxBytes(cfg.Discovery.MaxManifestBytes),
			),
			Local: discovery.LocalFetcher{ManifestFile: layout.ManifestFile},
		}
	}
	if deps.Cloner == nil {
		deps.Cloner = materialize.SourceCloner{
			Remote: materialize.NewGitCloner(cfg.Materialize.Shallow, cfg.Discovery.Ref),
			Local:  materialize.DirCloner{},
		}
	}
	if deps.Runner == nil {
		deps.Runner, err = NewRunner(cfg)
		if err != nil {
			return nil, err
		}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	return &Bootstrapper{
		Config:  cfg,
		Options: opts,
		Layout:  layout,
		fetcher: deps.Fetcher,
		cloner:  deps.Cloner,
		runner:  deps.Runner,
		metrics: deps.Metrics,
	}, nil
}

// Metrics returns the recorder of the run.
func (b *Bootstrapper) Metrics() *metrics.Recorder { return b.metrics }

// RootManifestPath returns the absolute path of the root manifest.
func (b *Bootstrapper) RootManifestPath() string {
	p := b.Options.RootManifest
	if p == "" {
		p = b.Layout.ManifestFile
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(b.Options.Root, p)
}

// LoadRoot reads the root manifest. Every failure is fatal for the run and
// carries an issue describing how to fix it.
func (b *Bootstrapper) LoadRoot() (manifest.Root, error) {
	path := b.RootManifestPath()
	root, err := manifest.ReadRoot(path)
	if err == nil {
		return root, nil
	}

	ec := issue.NewErrorContext().
		WithOperation("read root manifest").
		WithResource(path).
		Wrap(fmt.Errorf("%w: %w", ErrRootManifest, err))
	if errors.Is(err, fs.ErrNotExist) {
		return manifest.Root{}, ec.
			WithIssue(issue.RootManifestNotFoundId).
			WithSuggestion("Create " + filepath.Base(path) + " listing the modules to install").
			BuildError()
	}
	return manifest.Root{}, ec.
		WithIssue(issue.RootManifestInvalidId).
		WithSuggestion("Check the YAML syntax of the manifest").
		BuildError()
}

// Bootstrap runs the pipeline. Only a root manifest problem, a failure to
// create the category directories or cancellation return an error; every
// other failure is recorded in the report and the run continues.
func (b *Bootstrapper) Bootstrap(ctx context.Context) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	started := time.Now()
	report := &Report{Root: b.Options.Root, StartedAt: started}

	root, err := b.LoadRoot()
	if err != nil {
		return nil, err
	}
	logger.Info("root manifest loaded", "path", b.RootManifestPath(), "modules", len(root.Modules))

	if err := b.Layout.EnsureCategories(); err != nil {
		return nil, err
	}

	// discovery
	crawler := &discovery.Crawler{Fetcher: b.fetcher, Concurrency: b.Config.Discovery.Concurrency}
	phase := time.Now()
	crawl, err := crawler.Crawl(ctx, root.Modules)
	b.metrics.ObservePhase(metrics.PhaseDiscovery, time.Since(phase))
	report.addCrawl(crawl)
	b.recordCrawl(crawl)
	if err != nil {
		return b.finish(ctx, report, started), err
	}

	// materialization
	m := &materialize.Materializer{
		Layout:          b.Layout,
		Cloner:          b.cloner,
		DefaultCategory: b.Config.Layout.DefaultCategory,
		StagingDir:      b.stagingDir(),
		Force:           b.Options.Force,
		Exclude:         b.Config.Materialize.Exclude,
		CloneTimeout:    b.Config.Materialize.CloneTimeout,
	}
	defer func() {
		if cerr := m.Cleanup(); cerr != nil {
			logger.Warn("failed to remove staging directory", "error", cerr)
		}
	}()

	phase = time.Now()
	placed, err := m.Materialize(ctx, crawl)
	b.metrics.ObservePhase(metrics.PhaseMaterialize, time.Since(phase))
	report.addPlacement(placed)
	for _, o := range placed.Outcomes {
		b.metrics.Placement(string(o.Action))
	}
	if err != nil {
		return b.finish(ctx, report, started), err
	}

	// initialization
	modules, err := registry.Scan(ctx, b.Layout)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return b.finish(ctx, report, started), nil
	}

	in := initializer.New(b.Layout, modules, initializer.NewResolver(placed.Paths), b.runner)
	in.Timeout = b.Config.Runtime.Timeout

	phase = time.Now()
	summary, err := in.Run(ctx, placed.Paths.Paths())
	b.metrics.ObservePhase(metrics.PhaseInitialize, time.Since(phase))
	report.addSummary(summary)
	b.recordSummary(summary)

	return b.finish(ctx, report, started), err
}

func (b *Bootstrapper) stagingDir() string {
	if b.Options.CloneDir != "" {
		return b.Options.CloneDir
	}
	return b.Config.Materialize.CloneDir
}

func (b *Bootstrapper) recordCrawl(crawl *discovery.Result) {
	if crawl == nil {
		return
	}
	for _, e := range crawl.Entries {
		b.metrics.SourceVisited(e.Err == nil)
	}
	b.metrics.SetLevels(crawl.Levels)
}

func (b *Bootstrapper) recordSummary(s *initializer.Summary) {
	if s == nil {
		return
	}
	for range s.Succeeded {
		b.metrics.Initialized(true)
	}
	for range s.Failed {
		b.metrics.Initialized(false)
	}
	b.metrics.Cycles(len(s.Cycles))
	b.metrics.Missing(len(s.Missing))
}

// finish stamps the duration and writes the requested artifacts. Write
// failures are logged and added to the report.
func (b *Bootstrapper) finish(ctx context.Context, r *Report, started time.Time) *Report {
	logger := ctxlog.FromContext(ctx)
	r.Duration = time.Since(started).Round(time.Millisecond).String()

	if p := b.Options.ReportPath; p != "" {
		if err := r.WriteFile(b.abs(p)); err != nil {
			logger.Warn("failed to write run report", "error", err)
			r.Errors = append(r.Errors, err.Error())
		}
	}
	if p := b.Options.MetricsPath; p != "" {
		if err := b.metrics.WriteTextfile(b.abs(p)); err != nil {
			logger.Warn("failed to write metrics", "error", err)
			r.Errors = append(r.Errors, err.Error())
		}
	}

	if len(r.Errors) > 0 {
		logger.Warn("run finished with errors", "count", len(r.Errors), "errors", strings.Join(r.Errors, "; "))
	}
	return r
}

func (b *Bootstrapper) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(b.Options.Root, p)
}
