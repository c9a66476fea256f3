// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/adhd-framework/adhd/internal/cueutil"
	"github.com/adhd-framework/adhd/internal/issue"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "adhd"
	// ConfigFileName is the name of the user config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// ProjectFileName is the per-project config file, looked up in the project root.
	ProjectFileName = "adhd.cue"
	// EnvPrefix prefixes environment overrides.
	EnvPrefix = "ADHD"
)

//go:embed config_schema.cue
var configSchema []byte

// ConfigDir returns the adhd configuration directory: %APPDATA%\adhd on
// Windows, ~/Library/Application Support/adhd on macOS and
// $XDG_CONFIG_HOME/adhd (default ~/.config/adhd) elsewhere.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string
	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions performs option-driven config loading.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := resolvePath(opts)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Use 'adhd config dump' to see the default configuration").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Source = path

	if valid, errs := cfg.IsValid(); !valid {
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Check ADHD_* environment variables for typos").
			Wrap(errs[0]).
			BuildError()
	}

	return &cfg, nil
}

// resolvePath picks the config file to read, or "" when there is none.
func resolvePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'adhd config init' to create a configuration file").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	if opts.BaseDir != "" {
		if p := filepath.Join(opts.BaseDir, ProjectFileName); fileExists(p) {
			return p, nil
		}
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	if p := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt); fileExists(p) {
		return p, nil
	}
	return "", nil
}

func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("layout.categories", d.Layout.Categories)
	v.SetDefault("layout.default_category", d.Layout.DefaultCategory)
	v.SetDefault("layout.manifest_file", d.Layout.ManifestFile)
	v.SetDefault("layout.init_script", d.Layout.InitScript)
	v.SetDefault("layout.refresh_script", d.Layout.RefreshScript)
	v.SetDefault("discovery.ref", d.Discovery.Ref)
	v.SetDefault("discovery.url_template", d.Discovery.URLTemplate)
	v.SetDefault("discovery.concurrency", d.Discovery.Concurrency)
	v.SetDefault("discovery.fetch_timeout", d.Discovery.FetchTimeout)
	v.SetDefault("discovery.max_manifest_bytes", d.Discovery.MaxManifestBytes)
	v.SetDefault("materialize.clone_dir", d.Materialize.CloneDir)
	v.SetDefault("materialize.shallow", d.Materialize.Shallow)
	v.SetDefault("materialize.clone_timeout", d.Materialize.CloneTimeout)
	v.SetDefault("materialize.exclude", d.Materialize.Exclude)
	v.SetDefault("runtime.mode", string(d.Runtime.Mode))
	v.SetDefault("runtime.interpreter", d.Runtime.Interpreter)
	v.SetDefault("runtime.timeout", d.Runtime.Timeout)
	v.SetDefault("ui.verbose", d.UI.Verbose)
	v.SetDefault("ui.color_scheme", string(d.UI.ColorScheme))
}

// loadCUEIntoViper validates a CUE file against #Config and merges it
// into v. Fields stay optional, so the document is decoded to a map and
// defaults fill the gaps.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	res, err := cueutil.ParseAndDecode[map[string]any](configSchema, data, "#Config",
		cueutil.WithFilename(path),
		cueutil.WithConcrete(false),
	)
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(*res.Value); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default configuration to config.cue in
// dir (the user config directory when empty) unless the file exists. It
// returns the file path.
func CreateDefaultConfig(dir string) (string, error) {
	dir, err := configDirWithOverride(dir)
	if err != nil {
		return "", err
	}
	cfgPath := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(cfgPath) {
		return cfgPath, nil
	}
	return cfgPath, Save(DefaultConfig(), cfgPath)
}

// Save writes cfg to path as CUE.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateCUE renders cfg as a CUE document accepted by the schema.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// adhd configuration file\n\n")

	sb.WriteString("layout: {\n")
	fmt.Fprintf(&sb, "\tcategories: %s\n", cueList(cfg.Layout.Categories))
	fmt.Fprintf(&sb, "\tdefault_category: %q\n", cfg.Layout.DefaultCategory)
	fmt.Fprintf(&sb, "\tmanifest_file: %q\n", cfg.Layout.ManifestFile)
	fmt.Fprintf(&sb, "\tinit_script: %q\n", cfg.Layout.InitScript)
	fmt.Fprintf(&sb, "\trefresh_script: %q\n", cfg.Layout.RefreshScript)
	sb.WriteString("}\n")

	sb.WriteString("\ndiscovery: {\n")
	fmt.Fprintf(&sb, "\tref: %q\n", cfg.Discovery.Ref)
	if cfg.Discovery.URLTemplate != "" {
		fmt.Fprintf(&sb, "\turl_template: %q\n", cfg.Discovery.URLTemplate)
	}
	fmt.Fprintf(&sb, "\tconcurrency: %d\n", cfg.Discovery.Concurrency)
	fmt.Fprintf(&sb, "\tfetch_timeout: %q\n", duration(cfg.Discovery.FetchTimeout))
	fmt.Fprintf(&sb, "\tmax_manifest_bytes: %d\n", cfg.Discovery.MaxManifestBytes)
	sb.WriteString("}\n")

	sb.WriteString("\nmaterialize: {\n")
	fmt.Fprintf(&sb, "\tclone_dir: %q\n", cfg.Materialize.CloneDir)
	fmt.Fprintf(&sb, "\tshallow: %v\n", cfg.Materialize.Shallow)
	fmt.Fprintf(&sb, "\tclone_timeout: %q\n", duration(cfg.Materialize.CloneTimeout))
	fmt.Fprintf(&sb, "\texclude: %s\n", cueList(cfg.Materialize.Exclude))
	sb.WriteString("}\n")

	sb.WriteString("\nruntime: {\n")
	fmt.Fprintf(&sb, "\tmode: %q\n", cfg.Runtime.Mode)
	if cfg.Runtime.Interpreter != "" {
		fmt.Fprintf(&sb, "\tinterpreter: %q\n", cfg.Runtime.Interpreter)
	}
	fmt.Fprintf(&sb, "\ttimeout: %q\n", duration(cfg.Runtime.Timeout))
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	sb.WriteString("}\n")

	return sb.String()
}

func cueList(items []string) string {
	quoted := make([]string, 0, len(items))
	for _, it := range items {
		quoted = append(quoted, fmt.Sprintf("%q", it))
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// duration renders d in a form the schema accepts; zero becomes "0s".
func duration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return d.String()
}
