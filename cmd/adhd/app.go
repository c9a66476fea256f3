// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adhd-framework/adhd/internal/config"
	"github.com/adhd-framework/adhd/internal/ctxlog"
	"github.com/adhd-framework/adhd/internal/issue"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
)

type (
	// App wires CLI services and shared dependencies. All Cobra command
	// handlers receive an App reference.
	App struct {
		Config  config.Provider
		Confirm ConfirmFunc

		stdout io.Writer
		stderr io.Writer
		logger *log.Logger
		flags  globalFlags
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config  config.Provider
		Confirm ConfirmFunc
		Stdout  io.Writer
		Stderr  io.Writer
	}

	// ConfirmFunc asks the user a yes/no question.
	ConfirmFunc func(title, description string) (bool, error)

	globalFlags struct {
		verbose    bool
		configPath string
		projectDir string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Confirm == nil {
		deps.Confirm = huhConfirm
	}

	return &App{
		Config:  deps.Config,
		Confirm: deps.Confirm,
		stdout:  deps.Stdout,
		stderr:  deps.Stderr,
		logger: log.NewWithOptions(deps.Stderr, log.Options{
			Prefix: "adhd",
			Level:  log.InfoLevel,
		}),
	}
}

// Logger returns the slog logger backed by the CLI's charm handler.
func (a *App) Logger() *slog.Logger {
	return slog.New(a.logger)
}

// withLogger applies the verbosity flag and attaches the logger to ctx.
func (a *App) withLogger(ctx context.Context) context.Context {
	if a.flags.verbose {
		a.logger.SetLevel(log.DebugLevel)
	}
	return ctxlog.WithLogger(ctx, a.Logger())
}

// projectRoot returns the absolute project root selected by --project.
func (a *App) projectRoot() (string, error) {
	dir := a.flags.projectDir
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve project root: %w", err)
	}
	return abs, nil
}

// loadConfig loads the tool configuration for the selected project. A load
// failure is fatal and carries the configuration issue.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	root, err := a.projectRoot()
	if err != nil {
		return nil, err
	}
	cfg, err := a.Config.Load(ctx, config.LoadOptions{
		ConfigFilePath: a.flags.configPath,
		BaseDir:        root,
	})
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return nil, err
	}
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(a.flags.configPath).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Run 'adhd config dump' to see a valid configuration").
			Wrap(err).
			BuildError()
	}
	if cfg.UI.Verbose {
		a.logger.SetLevel(log.DebugLevel)
	}
	return cfg, nil
}

// glamourStyle maps the configured color scheme to a glamour style name.
func glamourStyle(scheme config.ColorScheme) string {
	switch scheme {
	case config.ColorSchemeDark, config.ColorSchemeLight:
		return string(scheme)
	default:
		return "auto"
	}
}

// renderIssue prints the catalog entry attached to err, if any.
func (a *App) renderIssue(err error, scheme config.ColorScheme) {
	a.renderIssueID(issue.IssueOf(err), scheme)
}

func (a *App) renderIssueID(entry *issue.Issue, scheme config.ColorScheme) {
	if entry == nil {
		return
	}
	rendered, err := entry.Render(glamourStyle(scheme))
	if err != nil {
		return
	}
	fmt.Fprint(a.stderr, rendered)
}

// fatal renders the issue attached to err and returns the error the
// command should fail with.
func (a *App) fatal(err error, scheme config.ColorScheme) error {
	a.renderIssue(err, scheme)
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return &ExitError{Code: ExitFatal, Err: &formattedError{msg: ae.Format(a.flags.verbose), err: err}}
	}
	return &ExitError{Code: ExitFatal, Err: err}
}

// huhConfirm asks a yes/no question on the terminal. An aborted prompt
// counts as "no".
func huhConfirm(title, description string) (bool, error) {
	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Yes").
			Negative("No").
			Value(&ok),
	)).
		WithTheme(huh.ThemeCharm()).
		WithAccessible(os.Getenv("ACCESSIBLE") != "")

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}
