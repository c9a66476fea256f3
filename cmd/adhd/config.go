// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adhd-framework/adhd/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `adhd config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage adhd configuration",
		Long: `Manage adhd configuration.

Configuration is read from, in order of precedence:
  - the file given with --config
  - adhd.cue in the project root
  - config.cue in the user configuration directory
    (Linux: ~/.config/adhd, macOS: ~/Library/Application Support/adhd,
    Windows: %APPDATA%\adhd)

Every key can be overridden with an ADHD_ environment variable, for
example ADHD_RUNTIME_MODE=virtual.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fatal(err, config.ColorSchemeAuto)
			}
			showConfig(app, cfg)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fatal(err, config.ColorSchemeAuto)
			}
			if cfg.Source != "" {
				fmt.Fprintln(app.stdout, cfg.Source)
				return nil
			}
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s %s\n",
				filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt),
				SubtitleStyle.Render("(not created, using defaults)"))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.CreateDefaultConfig("")
			if err != nil {
				return fmt.Errorf("failed to create config: %w", err)
			}
			fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("Configuration file:"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fatal(err, config.ColorSchemeAuto)
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(app *App, cfg *config.Config) {
	w := app.stdout
	key := func(k string) string { return ModuleStyle.Render(k) }
	val := func(v any) string {
		switch v := v.(type) {
		case []string:
			if len(v) == 0 {
				return SubtitleStyle.Render("(none)")
			}
			return SuccessStyle.Render(strings.Join(v, ", "))
		case time.Duration:
			return SuccessStyle.Render(v.String())
		case string:
			if v == "" {
				return SubtitleStyle.Render(`""`)
			}
		}
		return SuccessStyle.Render(fmt.Sprint(v))
	}

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if cfg.Source != "" {
		fmt.Fprintf(w, "%s: %s\n", key("Config file"), cfg.Source)
	} else {
		fmt.Fprintf(w, "%s: %s\n", key("Config file"), SubtitleStyle.Render("(using defaults)"))
	}

	sections := []struct {
		name   string
		fields [][2]any
	}{
		{"layout", [][2]any{
			{"categories", cfg.Layout.Categories},
			{"default_category", cfg.Layout.DefaultCategory},
			{"manifest_file", cfg.Layout.ManifestFile},
			{"init_script", cfg.Layout.InitScript},
			{"refresh_script", cfg.Layout.RefreshScript},
		}},
		{"discovery", [][2]any{
			{"ref", cfg.Discovery.Ref},
			{"url_template", cfg.Discovery.URLTemplate},
			{"concurrency", cfg.Discovery.Concurrency},
			{"fetch_timeout", cfg.Discovery.FetchTimeout},
			{"max_manifest_bytes", cfg.Discovery.MaxManifestBytes},
		}},
		{"materialize", [][2]any{
			{"clone_dir", cfg.Materialize.CloneDir},
			{"shallow", cfg.Materialize.Shallow},
			{"clone_timeout", cfg.Materialize.CloneTimeout},
			{"exclude", cfg.Materialize.Exclude},
		}},
		{"runtime", [][2]any{
			{"mode", string(cfg.Runtime.Mode)},
			{"interpreter", cfg.Runtime.Interpreter},
			{"timeout", cfg.Runtime.Timeout},
		}},
		{"ui", [][2]any{
			{"verbose", cfg.UI.Verbose},
			{"color_scheme", string(cfg.UI.ColorScheme)},
		}},
	}
	for _, s := range sections {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s:\n", key(s.name))
		for _, f := range s.fields {
			fmt.Fprintf(w, "  %s: %s\n", f[0], val(f[1]))
		}
	}
}
