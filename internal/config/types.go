// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/adhd-framework/adhd/internal/materialize"
)

const (
	// RuntimeNative runs module actions as host processes.
	RuntimeNative RuntimeMode = "native"
	// RuntimeVirtual interprets shell actions with the embedded mvdan/sh interpreter.
	RuntimeVirtual RuntimeMode = "virtual"

	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidConfigRuntimeMode is returned when a RuntimeMode value is not recognized.
	ErrInvalidConfigRuntimeMode = errors.New("invalid runtime mode")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidLayout is returned for unusable layout settings.
	ErrInvalidLayout = errors.New("invalid layout")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// RuntimeMode selects how init and refresh actions execute.
	RuntimeMode string

	// InvalidConfigRuntimeModeError wraps ErrInvalidConfigRuntimeMode.
	InvalidConfigRuntimeModeError struct {
		Value RuntimeMode
	}

	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError wraps ErrInvalidColorScheme.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidConfigError collects every field error of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		Layout      LayoutConfig      `json:"layout" mapstructure:"layout"`
		Discovery   DiscoveryConfig   `json:"discovery" mapstructure:"discovery"`
		Materialize MaterializeConfig `json:"materialize" mapstructure:"materialize"`
		Runtime     RuntimeConfig     `json:"runtime" mapstructure:"runtime"`
		UI          UIConfig          `json:"ui" mapstructure:"ui"`

		// Source is the file the configuration was read from, empty when
		// only defaults and the environment apply.
		Source string `json:"-" mapstructure:"-"`
	}

	// LayoutConfig names the directories and files of a project tree.
	LayoutConfig struct {
		Categories      []string `json:"categories" mapstructure:"categories"`
		DefaultCategory string   `json:"default_category" mapstructure:"default_category"`
		ManifestFile    string   `json:"manifest_file" mapstructure:"manifest_file"`
		InitScript      string   `json:"init_script" mapstructure:"init_script"`
		RefreshScript   string   `json:"refresh_script" mapstructure:"refresh_script"`
	}

	// DiscoveryConfig tunes manifest fetching.
	DiscoveryConfig struct {
		// Ref is the branch manifests are fetched from and clones check out.
		// HEAD follows the default branch of each repository.
		Ref string `json:"ref" mapstructure:"ref"`
		// URLTemplate derives raw-content URLs for non-GitHub hosts.
		URLTemplate      string        `json:"url_template" mapstructure:"url_template"`
		Concurrency      int           `json:"concurrency" mapstructure:"concurrency"`
		FetchTimeout     time.Duration `json:"fetch_timeout" mapstructure:"fetch_timeout"`
		MaxManifestBytes int64         `json:"max_manifest_bytes" mapstructure:"max_manifest_bytes"`
	}

	// MaterializeConfig tunes cloning and placement.
	MaterializeConfig struct {
		CloneDir     string        `json:"clone_dir" mapstructure:"clone_dir"`
		Shallow      bool          `json:"shallow" mapstructure:"shallow"`
		CloneTimeout time.Duration `json:"clone_timeout" mapstructure:"clone_timeout"`
		// Exclude lists doublestar patterns left out when a clone is placed.
		Exclude []string `json:"exclude" mapstructure:"exclude"`
	}

	// RuntimeConfig selects the action runner.
	RuntimeConfig struct {
		Mode RuntimeMode `json:"mode" mapstructure:"mode"`
		// Interpreter overrides extension-based interpreter selection in native mode.
		Interpreter string        `json:"interpreter" mapstructure:"interpreter"`
		Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		Verbose     bool        `json:"verbose" mapstructure:"verbose"`
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Layout: LayoutConfig{
			Categories:      []string{"managers", "utils", "plugins"},
			DefaultCategory: "plugins",
			ManifestFile:    "init.yaml",
			InitScript:      "__init__.py",
			RefreshScript:   "refresh.py",
		},
		Discovery: DiscoveryConfig{
			Ref:              "HEAD",
			Concurrency:      4,
			FetchTimeout:     30 * time.Second,
			MaxManifestBytes: 1 << 20,
		},
		Materialize: MaterializeConfig{
			CloneDir:     "clone_temp",
			Shallow:      true,
			CloneTimeout: 5 * time.Minute,
			Exclude:      []string{},
		},
		Runtime: RuntimeConfig{
			Mode:    RuntimeNative,
			Timeout: 10 * time.Minute,
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}

// IsValid returns whether the Config has valid fields. It checks what the
// schema cannot see, such as values set through the environment.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Runtime.Mode.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Layout.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if err := materialize.ValidatePatterns(c.Materialize.Exclude); err != nil {
		errs = append(errs, fmt.Errorf("materialize.exclude: %w", err))
	}
	if c.Discovery.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("discovery.concurrency must be at least 1, got %d", c.Discovery.Concurrency))
	}
	for name, d := range map[string]time.Duration{
		"discovery.fetch_timeout":   c.Discovery.FetchTimeout,
		"materialize.clone_timeout": c.Materialize.CloneTimeout,
		"runtime.timeout":           c.Runtime.Timeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %s", name, d))
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// IsValid reports whether the layout names a usable tree.
func (l LayoutConfig) IsValid() (bool, []error) {
	var errs []error
	if len(l.Categories) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one category is required", ErrInvalidLayout))
	}
	for _, c := range l.Categories {
		if strings.TrimSpace(c) == "" || strings.ContainsAny(c, `/\`) {
			errs = append(errs, fmt.Errorf("%w: category %q must be a plain directory name", ErrInvalidLayout, c))
		}
	}
	if l.DefaultCategory != "" && !slices.Contains(l.Categories, l.DefaultCategory) {
		errs = append(errs, fmt.Errorf("%w: default category %q is not one of %v", ErrInvalidLayout, l.DefaultCategory, l.Categories))
	}
	for name, v := range map[string]string{"manifest_file": l.ManifestFile, "init_script": l.InitScript, "refresh_script": l.RefreshScript} {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%w: %s must not be empty", ErrInvalidLayout, name))
		}
	}
	return len(errs) == 0, errs
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	slices.Sort(msgs)
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig and the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// String returns the string representation of the RuntimeMode.
func (m RuntimeMode) String() string { return string(m) }

// IsValid returns whether the RuntimeMode is a known mode.
func (m RuntimeMode) IsValid() (bool, []error) {
	switch m {
	case RuntimeNative, RuntimeVirtual:
		return true, nil
	default:
		return false, []error{&InvalidConfigRuntimeModeError{Value: m}}
	}
}

// Error implements the error interface.
func (e *InvalidConfigRuntimeModeError) Error() string {
	return fmt.Sprintf("invalid runtime mode %q (valid: native, virtual)", e.Value)
}

// Unwrap returns ErrInvalidConfigRuntimeMode for errors.Is() compatibility.
func (e *InvalidConfigRuntimeModeError) Unwrap() error { return ErrInvalidConfigRuntimeMode }

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is a known scheme.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// Error implements the error interface.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns ErrInvalidColorScheme for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }
