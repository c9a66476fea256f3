// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/adhd-framework/adhd/internal/config"
	"github.com/adhd-framework/adhd/internal/dag"
	"github.com/adhd-framework/adhd/internal/initializer"
	"github.com/adhd-framework/adhd/internal/issue"
	"github.com/adhd-framework/adhd/internal/materialize"
	"github.com/adhd-framework/adhd/internal/project"
	"github.com/adhd-framework/adhd/internal/registry"
	"github.com/adhd-framework/adhd/pkg/manifest"
	"github.com/adhd-framework/adhd/pkg/source"

	"github.com/spf13/cobra"
)

type missingRequirement struct {
	module string
	url    source.URL
}

func newGraphCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Show the initialization order of installed modules",
		Long: `Show the initialization order of installed modules.

Requirements are matched to installed modules by repository name. A
requirement that matches no installed module is listed as missing; a
dependency cycle is reported and makes the command fail.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := app.loadConfig(ctx)
			if err != nil {
				return app.fatal(err, config.ColorSchemeAuto)
			}
			root, err := app.projectRoot()
			if err != nil {
				return err
			}
			modules, err := registry.Scan(ctx, project.LayoutFor(cfg, root))
			if err != nil {
				return app.fatal(err, cfg.UI.ColorScheme)
			}

			g, missing := dependencyGraph(registry.Sorted(modules))
			for _, m := range missing {
				fmt.Fprintf(app.stdout, "%s %s requires %s\n", WarningStyle.Render("missing"), ModuleStyle.Render(m.module), m.url)
			}

			order, err := g.TopologicalSort()
			var cycleErr *dag.CycleError
			if errors.As(err, &cycleErr) {
				fmt.Fprintf(app.stdout, "%s %s\n", ErrorStyle.Render("cycle"), cycleErr.Error())
				app.renderIssueID(issue.Get(issue.DependencyCycleId), cfg.UI.ColorScheme)
				return &ExitError{Code: ExitFailures, Err: err}
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(app.stdout, TitleStyle.Render("Initialization order"))
			for i, path := range order {
				fmt.Fprintf(app.stdout, "%3d. %s\n", i+1, ModuleStyle.Render(path))
			}
			return nil
		},
	}
}

// localResolver indexes installed modules by name, so requirements resolve
// through the repository-name fallback.
func localResolver(modules []manifest.ModuleInfo) *initializer.Resolver {
	paths := materialize.NewPathMap()
	for _, m := range modules {
		paths.Set(source.URL(m.Name), m.Path)
	}
	return initializer.NewResolver(paths)
}

// dependencyGraph links every module after the modules it requires.
func dependencyGraph(modules []manifest.ModuleInfo) (*dag.Graph, []missingRequirement) {
	resolver := localResolver(modules)
	g := dag.New()
	var missing []missingRequirement
	for _, m := range modules {
		g.AddNode(m.Path)
		for _, req := range m.Requirements {
			dep, ok := resolver.Resolve(req)
			if !ok {
				missing = append(missing, missingRequirement{module: m.Path, url: req})
				continue
			}
			g.AddEdge(dep, m.Path)
		}
	}
	return g, missing
}
