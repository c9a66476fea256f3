// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/adhd-framework/adhd/internal/config"
	"github.com/adhd-framework/adhd/internal/issue"
	"github.com/adhd-framework/adhd/internal/metrics"
	"github.com/adhd-framework/adhd/internal/project"
	"github.com/adhd-framework/adhd/internal/refresh"

	"github.com/spf13/cobra"
)

func newRefreshCommand(app *App) *cobra.Command {
	var module, metricsPath string

	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run the refresh action of installed modules",
		Long: `Run the refresh action of installed modules.

Without --module every module that has a refresh action is refreshed,
in path order. A failing module does not stop the others.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := app.loadConfig(ctx)
			if err != nil {
				return app.fatal(err, config.ColorSchemeAuto)
			}
			r, err := newRefresher(app, cfg)
			if err != nil {
				return app.fatal(err, cfg.UI.ColorScheme)
			}

			if metricsPath != "" {
				r.Metrics = metrics.New()
				defer writeMetrics(app, r.Metrics, metricsPath)
			}

			if module != "" {
				return refreshOne(cmd, app, cfg, r, module)
			}

			summary, err := r.RefreshAll(ctx)
			if err != nil {
				return app.fatal(err, cfg.UI.ColorScheme)
			}
			for _, name := range summary.Succeeded {
				fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("refreshed"), ModuleStyle.Render(name))
			}
			for _, name := range summary.Skipped {
				fmt.Fprintf(app.stdout, "%s %s\n", SubtitleStyle.Render("skipped"), ModuleStyle.Render(name))
			}
			for _, f := range summary.Failed {
				fmt.Fprintf(app.stdout, "%s %s: %v\n", ErrorStyle.Render("failed"), ModuleStyle.Render(f.Name), f.Err)
			}
			fmt.Fprintln(app.stdout, summary.String())

			if !summary.OK() {
				app.renderIssueID(issue.Get(issue.RefreshActionFailedId), cfg.UI.ColorScheme)
				return completedWithFailures("refresh %s", summary.String())
			}
			return nil
		},
	}

	refreshCmd.Flags().StringVarP(&module, "module", "m", "", "refresh only the module with this name")
	refreshCmd.Flags().StringVar(&metricsPath, "metrics-file", "", "write run metrics in Prometheus text format to this file")

	return refreshCmd
}

func newRefresher(app *App, cfg *config.Config) (*refresh.Refresher, error) {
	root, err := app.projectRoot()
	if err != nil {
		return nil, err
	}
	runner, err := project.NewRunner(cfg)
	if err != nil {
		return nil, err
	}
	return &refresh.Refresher{
		Layout:  project.LayoutFor(cfg, root),
		Runner:  runner,
		Timeout: cfg.Runtime.Timeout,
	}, nil
}

func refreshOne(cmd *cobra.Command, app *App, cfg *config.Config, r *refresh.Refresher, name string) error {
	err := r.RefreshModule(cmd.Context(), name)
	switch {
	case err == nil:
		fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("refreshed"), ModuleStyle.Render(name))
		return nil
	case errors.Is(err, refresh.ErrModuleNotFound):
		return app.fatal(moduleNotFound(name, err), cfg.UI.ColorScheme)
	case errors.Is(err, refresh.ErrRefresh):
		app.renderIssueID(issue.Get(issue.RefreshActionFailedId), cfg.UI.ColorScheme)
		return &ExitError{Code: ExitFailures, Err: err}
	default:
		return app.fatal(err, cfg.UI.ColorScheme)
	}
}

// writeMetrics writes the recorder to path relative to the project root.
// A write failure is logged and does not change the exit code.
func writeMetrics(app *App, rec *metrics.Recorder, path string) {
	if !filepath.IsAbs(path) {
		if root, err := app.projectRoot(); err == nil {
			path = filepath.Join(root, path)
		}
	}
	if err := rec.WriteTextfile(path); err != nil {
		app.logger.Warn("failed to write metrics", "error", err)
	}
}

// moduleNotFound wraps a failed module lookup into an actionable error.
func moduleNotFound(name string, err error) error {
	return issue.NewErrorContext().
		WithOperation("find module").
		WithResource(name).
		WithIssue(issue.ModuleNotFoundId).
		WithSuggestion("Run 'adhd list' to see the installed modules").
		Wrap(err).
		BuildError()
}
