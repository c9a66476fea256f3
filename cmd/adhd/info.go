// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/adhd-framework/adhd/internal/config"
	"github.com/adhd-framework/adhd/internal/project"
	"github.com/adhd-framework/adhd/internal/registry"

	"github.com/spf13/cobra"
)

func newInfoCommand(app *App) *cobra.Command {
	var module string

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show details of an installed module",
		Args:  cobra.NoArgs,
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
			m, ok := registry.FindByName(modules, module)
			if !ok {
				return app.fatal(moduleNotFound(module, registry.ErrModuleNotFound), cfg.UI.ColorScheme)
			}

			w := app.stdout
			key := func(k string) string { return ModuleStyle.Render(k) }
			fmt.Fprintln(w, TitleStyle.Render(m.Name))
			fmt.Fprintf(w, "%s: %s\n", key("path"), m.Path)
			fmt.Fprintf(w, "%s: %s\n", key("version"), m.Version)
			if m.Type != "" {
				fmt.Fprintf(w, "%s: %s\n", key("type"), m.Type)
			}
			if m.Description != "" {
				fmt.Fprintf(w, "%s: %s\n", key("description"), m.Description)
			}
			fmt.Fprintf(w, "%s: %s\n", key("actions"), capabilities(m))

			if len(m.Requirements) == 0 {
				return nil
			}
			resolver := localResolver(registry.Sorted(modules))
			fmt.Fprintf(w, "%s:\n", key("requirements"))
			for _, req := range m.Requirements {
				if path, ok := resolver.Resolve(req); ok {
					fmt.Fprintf(w, "  - %s %s\n", req, SuccessStyle.Render("-> "+path))
					continue
				}
				fmt.Fprintf(w, "  - %s %s\n", req, WarningStyle.Render("(not installed)"))
			}
			return nil
		},
	}

	infoCmd.Flags().StringVarP(&module, "module", "m", "", "module name")
	_ = infoCmd.MarkFlagRequired("module")

	return infoCmd
}
