// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the adhd command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "adhd",
		Short: "Bootstrap ADHD framework projects",
		Long: TitleStyle.Render("adhd") + SubtitleStyle.Render(" - Bootstrap ADHD framework projects") + `

adhd reads the root manifest (init.yaml) of a project, discovers every
module it transitively requires, places them into the managers, utils and
plugins directories and runs their init actions in dependency order.

` + SubtitleStyle.Render("Examples:") + `
  adhd init                 Install and initialize every module
  adhd init --force         Reinstall every module
  adhd refresh -m logger    Run the refresh action of one module
  adhd list                 List installed modules
  adhd graph                Show the initialization order`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(app.withLogger(cmd.Context()))
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	flags.StringVar(&app.flags.configPath, "config", "", "config file (default is $HOME/.config/adhd/config.cue)")
	flags.StringVarP(&app.flags.projectDir, "project", "C", "", "project root directory (default is the working directory)")

	rootCmd.AddCommand(
		newInitCommand(app),
		newRefreshCommand(app),
		newListCommand(app),
		newInfoCommand(app),
		newGraphCommand(app),
		newConfigCommand(app),
	)

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process with the command's exit code.
func Execute() {
	app := NewApp(Dependencies{})
	slog.SetDefault(app.Logger())

	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(ExitFatal)
	}
}
