// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/adhd-framework/adhd/internal/config"
	"github.com/adhd-framework/adhd/internal/initializer"
	"github.com/adhd-framework/adhd/internal/issue"
	"github.com/adhd-framework/adhd/internal/project"

	"github.com/spf13/cobra"
)

// errAborted is returned when the user declines a force reinstall.
var errAborted = errors.New("aborted by user")

type initOptions struct {
	manifest    string
	cloneDir    string
	force       bool
	yes         bool
	reportPath  string
	metricsPath string
}

func newInitCommand(app *App) *cobra.Command {
	var opts initOptions

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Install and initialize every module of the project",
		Long: `Install and initialize every module of the project.

The root manifest lists the modules of the project. Each module may
require further modules; all of them are downloaded, placed into their
category directory and initialized after the modules they require.

An installed module is replaced only when the incoming version is newer,
unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, app, opts)
		},
	}

	flags := initCmd.Flags()
	flags.StringVarP(&opts.manifest, "manifest", "c", "", "root manifest path (default is init.yaml in the project root)")
	flags.StringVar(&opts.cloneDir, "clone-dir", "", "staging directory for downloads (default is clone_temp)")
	flags.BoolVarP(&opts.force, "force", "f", false, "replace installed modules regardless of version")
	flags.BoolVarP(&opts.yes, "yes", "y", false, "do not ask for confirmation")
	flags.StringVar(&opts.reportPath, "report", "", "write the run report as TOML to this file")
	flags.StringVar(&opts.metricsPath, "metrics-file", "", "write run metrics in Prometheus text format to this file")

	return initCmd
}

func runInit(cmd *cobra.Command, app *App, opts initOptions) error {
	ctx := cmd.Context()
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return app.fatal(err, config.ColorSchemeAuto)
	}

	if opts.force && !opts.yes {
		ok, err := app.Confirm(
			"Replace every installed module?",
			"Modules are downloaded again and replace the installed copies regardless of version.",
		)
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
	}

	root, err := app.projectRoot()
	if err != nil {
		return err
	}
	b, err := project.New(cfg, project.Options{
		Root:         root,
		RootManifest: opts.manifest,
		CloneDir:     opts.cloneDir,
		Force:        opts.force,
		ReportPath:   opts.reportPath,
		MetricsPath:  opts.metricsPath,
	}, project.Dependencies{})
	if err != nil {
		return app.fatal(err, cfg.UI.ColorScheme)
	}

	report, err := b.Bootstrap(ctx)
	if err != nil {
		return app.fatal(err, cfg.UI.ColorScheme)
	}

	printReport(app.stdout, report)
	if report.OK() {
		return nil
	}

	if report.Materialize.Counts.Failed > 0 {
		app.renderIssueID(issue.Get(issue.CloneFailedId), cfg.UI.ColorScheme)
	}
	if len(report.Initialize.Cycles) > 0 {
		app.renderIssueID(issue.Get(issue.DependencyCycleId), cfg.UI.ColorScheme)
	}
	if initActionFailed(report) {
		app.renderIssueID(issue.Get(issue.InitActionFailedId), cfg.UI.ColorScheme)
	}
	return completedWithFailures("%d error(s) during bootstrap, initialization %s", len(report.Errors), report.Initialize.Result)
}

// initActionFailed reports whether an init script of the run failed, as
// opposed to modules failed by a cycle or a failed dependency.
func initActionFailed(r *project.Report) bool {
	if r.Summary == nil {
		return false
	}
	for _, f := range r.Summary.Failed {
		var initErr *initializer.InitError
		if errors.As(f.Err, &initErr) {
			return true
		}
	}
	return false
}

// printReport writes the end-of-run summary.
func printReport(w io.Writer, r *project.Report) {
	fmt.Fprintln(w, TitleStyle.Render("Discovery"))
	fmt.Fprintf(w, "  %d source(s) in %d level(s)\n", r.Discovery.Sources, r.Discovery.Levels)
	for _, u := range r.Discovery.Unavailable {
		fmt.Fprintf(w, "  %s %s\n", WarningStyle.Render("no manifest:"), u)
	}

	fmt.Fprintln(w, TitleStyle.Render("Materialize"))
	for _, m := range r.Materialize.Modules {
		line := fmt.Sprintf("  %s %s", actionStyle(m.Action).Width(9).Render(m.Action), ModuleStyle.Render(m.Path))
		if m.Existing != "" {
			line += SubtitleStyle.Render(fmt.Sprintf(" (%s -> %s)", m.Existing, m.Incoming))
		}
		fmt.Fprintln(w, line)
	}
	c := r.Materialize.Counts
	fmt.Fprintf(w, "  cloned %d, kept %d, replaced %d, failed %d\n", c.Cloned, c.Kept, c.Replaced, c.Failed)

	fmt.Fprintln(w, TitleStyle.Render("Initialize"))
	for _, p := range r.Initialize.Order {
		fmt.Fprintf(w, "  %s %s\n", SuccessStyle.Render("ok"), ModuleStyle.Render(p))
	}
	for _, name := range r.Initialize.Failed {
		fmt.Fprintf(w, "  %s %s\n", ErrorStyle.Render("failed"), ModuleStyle.Render(name))
	}
	for _, c := range r.Initialize.Cycles {
		fmt.Fprintf(w, "  %s %s\n", ErrorStyle.Render("cycle"), c)
	}
	for _, m := range r.Initialize.Missing {
		fmt.Fprintf(w, "  %s %s\n", WarningStyle.Render("missing"), m)
	}
	fmt.Fprintf(w, "  %s\n", r.Initialize.Result)

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, ErrorStyle.Render("Errors"))
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
}
