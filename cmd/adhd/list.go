// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/adhd-framework/adhd/internal/config"
	"github.com/adhd-framework/adhd/internal/project"
	"github.com/adhd-framework/adhd/internal/registry"
	"github.com/adhd-framework/adhd/pkg/manifest"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func newListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed modules",
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
			if len(modules) == 0 {
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("No modules installed. Run 'adhd init' first."))
				return nil
			}
			fmt.Fprintln(app.stdout, moduleTable(registry.Sorted(modules)))
			return nil
		},
	}
}

func moduleTable(modules []manifest.ModuleInfo) string {
	rows := make([][]string, 0, len(modules))
	for _, m := range modules {
		rows = append(rows, []string{m.Name, m.Path, string(m.Version), m.Type, capabilities(m)})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtitleStyle).
		Headers("NAME", "PATH", "VERSION", "TYPE", "ACTIONS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		}).
		String()
}

// capabilities lists the actions a module provides.
func capabilities(m manifest.ModuleInfo) string {
	features := m.Features()
	if len(features) == 0 {
		return "-"
	}
	return strings.Join(features, ",")
}
