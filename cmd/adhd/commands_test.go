// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adhd-framework/adhd/internal/config"
	"github.com/adhd-framework/adhd/internal/dag"
	"github.com/adhd-framework/adhd/internal/project"
	"github.com/adhd-framework/adhd/internal/registry"
	"github.com/adhd-framework/adhd/internal/testutil"
)

type harness struct {
	root       string
	sources    string
	configPath string

	stdout  bytes.Buffer
	stderr  bytes.Buffer
	answer  bool
	prompts int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Layout.InitScript = testutil.InitScript
	cfg.Layout.RefreshScript = testutil.RefreshScript
	cfg.Runtime.Mode = config.RuntimeVirtual

	h := &harness{root: t.TempDir(), sources: t.TempDir()}
	h.configPath = filepath.Join(t.TempDir(), "config.cue")
	if err := config.Save(cfg, h.configPath); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return h
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	h.stdout.Reset()
	h.stderr.Reset()

	app := NewApp(Dependencies{
		Stdout: &h.stdout,
		Stderr: &h.stderr,
		Confirm: func(string, string) (bool, error) {
			h.prompts++
			return h.answer, nil
		},
	})
	root := NewRootCommand(app)
	root.SetArgs(append([]string{"--config", h.configPath, "--project", h.root}, args...))
	root.SetOut(&h.stdout)
	root.SetErr(&h.stderr)
	return root.ExecuteContext(context.Background())
}

// source writes a local module source and returns its URL.
func (h *harness) source(t *testing.T, name, version, init string, requires ...string) string {
	t.Helper()
	return testutil.WriteModule(t, h.sources, testutil.Module{
		Dir:      name,
		Manifest: testutil.ManifestYAML(version, "", requires...),
		Init:     init,
	})
}

// installed writes a module directly into the project tree.
func (h *harness) installed(t *testing.T, path string, m testutil.Module) {
	t.Helper()
	m.Dir = path
	testutil.WriteModule(t, h.root, m)
}

func (h *harness) rootManifest(t *testing.T, modules ...string) {
	t.Helper()
	testutil.MustWriteFile(t, filepath.Join(h.root, "init.yaml"), testutil.RootYAML(modules...))
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %T: %v", err, err)
	}
	return exitErr.Code
}

func TestInit_EndToEnd(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	lib := h.source(t, "lib", "1.0.0", "exit 0\n")
	app := h.source(t, "app", "1.0.0", "exit 0\n", lib)
	h.rootManifest(t, app)

	if err := h.run(t, "init"); err != nil {
		t.Fatalf("init: %v\nstderr: %s", err, h.stderr.String())
	}

	out := h.stdout.String()
	for _, want := range []string{"2 source(s) in 2 level(s)", "cloned 2, kept 0", "2/2 succeeded", "plugins/lib", "plugins/app"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	for _, p := range []string{"plugins/lib", "plugins/app"} {
		if !testutil.Exists(filepath.Join(h.root, filepath.FromSlash(p), "init.yaml")) {
			t.Errorf("%s was not installed", p)
		}
	}
}

func TestInit_ReportAndMetricsFiles(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.rootManifest(t, h.source(t, "solo", "1.0.0", ""))

	reportPath := filepath.Join(t.TempDir(), "report.toml")
	metricsPath := filepath.Join(t.TempDir(), "adhd.prom")
	if err := h.run(t, "init", "--report", reportPath, "--metrics-file", metricsPath); err != nil {
		t.Fatalf("init: %v", err)
	}

	report, err := project.ReadReport(reportPath)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if report.Materialize.Counts.Cloned != 1 || report.Initialize.Result != "1/1 succeeded" {
		t.Errorf("unexpected report: %+v", report)
	}
	if !strings.Contains(testutil.MustReadFile(t, metricsPath), "adhd_materialize_placements_total") {
		t.Error("metrics file is missing placement counters")
	}
}

func TestInit_PartialFailureExitsWithTwo(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.rootManifest(t, h.source(t, "good", "1.0.0", "exit 0\n"), h.source(t, "broken", "1.0.0", "exit 3\n"))

	err := h.run(t, "init")
	if code := exitCode(t, err); code != ExitFailures {
		t.Fatalf("exit code = %d, want %d (err: %v)", code, ExitFailures, err)
	}
	if !strings.Contains(h.stdout.String(), "1/2 succeeded") {
		t.Errorf("summary missing from output:\n%s", h.stdout.String())
	}
	if !strings.Contains(h.stderr.String(), "initialization failed") {
		t.Errorf("init failure guidance missing from stderr:\n%s", h.stderr.String())
	}
}

func TestInit_CycleWithoutFailedScript(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	b := filepath.Join(h.sources, "b")
	a := h.source(t, "a", "1.0.0", "exit 0\n", b)
	h.source(t, "b", "1.0.0", "exit 0\n", a)
	h.rootManifest(t, a)

	err := h.run(t, "init")
	if code := exitCode(t, err); code != ExitFailures {
		t.Fatalf("exit code = %d, want %d (err: %v)", code, ExitFailures, err)
	}
	if !strings.Contains(h.stderr.String(), "Circular dependency detected") {
		t.Errorf("cycle guidance missing from stderr:\n%s", h.stderr.String())
	}
	if strings.Contains(h.stderr.String(), "Module initialization failed") {
		t.Errorf("init action guidance shown although no script failed:\n%s", h.stderr.String())
	}
}

func TestInit_MissingRootManifest(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	err := h.run(t, "init")
	if code := exitCode(t, err); code != ExitFatal {
		t.Fatalf("exit code = %d, want %d", code, ExitFatal)
	}
	if !errors.Is(err, project.ErrRootManifest) {
		t.Errorf("expected ErrRootManifest in chain, got %v", err)
	}
	if !strings.Contains(h.stderr.String(), "No root manifest found") {
		t.Errorf("issue guidance missing from stderr:\n%s", h.stderr.String())
	}
}

func TestInit_ForceAsksForConfirmation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.rootManifest(t, h.source(t, "solo", "1.0.0", ""))
	if err := h.run(t, "init"); err != nil {
		t.Fatalf("first init: %v", err)
	}

	h.answer = false
	if err := h.run(t, "init", "--force"); !errors.Is(err, errAborted) {
		t.Fatalf("declined force: err = %v, want errAborted", err)
	}
	if h.prompts != 1 {
		t.Fatalf("prompts = %d, want 1", h.prompts)
	}

	if err := h.run(t, "init", "-f", "-y"); err != nil {
		t.Fatalf("init --force --yes: %v", err)
	}
	if h.prompts != 1 {
		t.Errorf("--yes must not prompt, prompts = %d", h.prompts)
	}
	if !strings.Contains(h.stdout.String(), "replaced 1") {
		t.Errorf("expected a replacement:\n%s", h.stdout.String())
	}
}

func TestInit_InvalidConfig(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	testutil.MustWriteFile(t, h.configPath, "runtime: mode: \"container\"\n")

	err := h.run(t, "init")
	if code := exitCode(t, err); code != ExitFatal {
		t.Fatalf("exit code = %d, want %d (err: %v)", code, ExitFatal, err)
	}
}

func TestList(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	if err := h.run(t, "list"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(h.stdout.String(), "No modules installed") {
		t.Errorf("unexpected output for empty project:\n%s", h.stdout.String())
	}

	h.installed(t, "managers/logger", testutil.Module{Manifest: "version: 2.1.0\ntype: manager\n", Init: "exit 0\n"})
	h.installed(t, "plugins/web", testutil.Module{Manifest: "version: 0.3.0\n", Refresh: "exit 0\n"})

	if err := h.run(t, "list"); err != nil {
		t.Fatalf("list: %v", err)
	}
	out := h.stdout.String()
	for _, want := range []string{"NAME", "logger", "managers/logger", "2.1.0", "manager", "init", "web", "refresh"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "managers/logger") > strings.Index(out, "plugins/web") {
		t.Errorf("modules should be listed in path order:\n%s", out)
	}
}

func TestInfo(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.installed(t, "utils/cache", testutil.Module{Manifest: "version: 1.4.0\ndescription: key value cache\n"})
	h.installed(t, "plugins/web", testutil.Module{
		Manifest: testutil.ManifestYAML("0.3.0", "", "https://github.com/org/cache", "https://github.com/org/ghost"),
	})

	if err := h.run(t, "info", "-m", "web"); err != nil {
		t.Fatalf("info: %v", err)
	}
	out := h.stdout.String()
	for _, want := range []string{"plugins/web", "0.3.0", "-> utils/cache", "https://github.com/org/ghost (not installed)"} {
		if !strings.Contains(out, want) {
			t.Errorf("info output missing %q:\n%s", want, out)
		}
	}

	if err := h.run(t, "info", "--module", "CACHE"); err != nil {
		t.Fatalf("info is case-insensitive: %v", err)
	}
	if !strings.Contains(h.stdout.String(), "key value cache") {
		t.Errorf("description missing:\n%s", h.stdout.String())
	}

	err := h.run(t, "info", "-m", "nope")
	if code := exitCode(t, err); code != ExitFatal {
		t.Fatalf("exit code = %d, want %d", code, ExitFatal)
	}
	if !errors.Is(err, registry.ErrModuleNotFound) {
		t.Errorf("expected ErrModuleNotFound, got %v", err)
	}
}

func TestGraph(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.installed(t, "managers/logger", testutil.Module{Manifest: testutil.ManifestYAML("1.0.0", "")})
	h.installed(t, "utils/config", testutil.Module{Manifest: testutil.ManifestYAML("1.0.0", "", "https://github.com/org/logger")})
	h.installed(t, "plugins/web", testutil.Module{
		Manifest: testutil.ManifestYAML("1.0.0", "", "https://github.com/org/config", "https://github.com/org/metrics"),
	})

	if err := h.run(t, "graph"); err != nil {
		t.Fatalf("graph: %v", err)
	}
	out := h.stdout.String()
	logger := strings.Index(out, "1. managers/logger")
	cfg := strings.Index(out, "utils/config")
	web := strings.LastIndex(out, "plugins/web")
	if logger < 0 || cfg < logger || web < cfg {
		t.Errorf("unexpected order:\n%s", out)
	}
	if !strings.Contains(out, "missing plugins/web requires https://github.com/org/metrics") {
		t.Errorf("missing requirement not reported:\n%s", out)
	}
}

func TestGraph_Cycle(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.installed(t, "plugins/a", testutil.Module{Manifest: testutil.ManifestYAML("1.0.0", "", "https://github.com/org/b")})
	h.installed(t, "plugins/b", testutil.Module{Manifest: testutil.ManifestYAML("1.0.0", "", "https://github.com/org/a")})

	err := h.run(t, "graph")
	if code := exitCode(t, err); code != ExitFailures {
		t.Fatalf("exit code = %d, want %d", code, ExitFailures)
	}
	if !errors.Is(err, dag.ErrCycle) {
		t.Errorf("expected ErrCycle, got %v", err)
	}
	if !strings.Contains(h.stdout.String(), "dependency cycle detected") {
		t.Errorf("cycle not reported:\n%s", h.stdout.String())
	}
}

func TestRefresh(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.installed(t, "managers/logger", testutil.Module{Manifest: "version: 1.0.0\n", Refresh: "exit 0\n"})
	h.installed(t, "utils/cache", testutil.Module{Manifest: "version: 1.0.0\n", Refresh: "exit 5\n"})
	h.installed(t, "plugins/web", testutil.Module{Manifest: "version: 1.0.0\n"})

	err := h.run(t, "refresh")
	if code := exitCode(t, err); code != ExitFailures {
		t.Fatalf("exit code = %d, want %d (err: %v)", code, ExitFailures, err)
	}
	out := h.stdout.String()
	for _, want := range []string{"refreshed logger", "skipped web", "failed cache", "1/2 refreshed"} {
		if !strings.Contains(out, want) {
			t.Errorf("refresh output missing %q:\n%s", want, out)
		}
	}

	if err := h.run(t, "refresh", "-m", "logger"); err != nil {
		t.Errorf("refresh -m logger: %v", err)
	}
	if code := exitCode(t, h.run(t, "refresh", "-m", "cache")); code != ExitFailures {
		t.Errorf("refresh -m cache exit code = %d, want %d", code, ExitFailures)
	}
	if code := exitCode(t, h.run(t, "refresh", "-m", "nope")); code != ExitFatal {
		t.Errorf("refresh -m nope exit code = %d, want %d", code, ExitFatal)
	}
}

func TestRefresh_MetricsFile(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.installed(t, "managers/logger", testutil.Module{Manifest: "version: 1.0.0\n", Refresh: "exit 0\n"})
	h.installed(t, "utils/cache", testutil.Module{Manifest: "version: 1.0.0\n", Refresh: "exit 5\n"})

	metricsPath := filepath.Join(t.TempDir(), "refresh.prom")
	if code := exitCode(t, h.run(t, "refresh", "--metrics-file", metricsPath)); code != ExitFailures {
		t.Fatalf("exit code = %d, want %d", code, ExitFailures)
	}

	prom := testutil.MustReadFile(t, metricsPath)
	for _, want := range []string{
		`adhd_refresh_modules_total{result="succeeded"} 1`,
		`adhd_refresh_modules_total{result="failed"} 1`,
		`adhd_phase_duration_seconds_count{phase="refresh"} 1`,
	} {
		if !strings.Contains(prom, want) {
			t.Errorf("metrics missing %q:\n%s", want, prom)
		}
	}
}

func TestConfigCommands(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	if err := h.run(t, "config", "path"); err != nil {
		t.Fatalf("config path: %v", err)
	}
	if strings.TrimSpace(h.stdout.String()) != h.configPath {
		t.Errorf("config path = %q, want %q", h.stdout.String(), h.configPath)
	}

	if err := h.run(t, "config", "show"); err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"Current Configuration", h.configPath, "mode: virtual", "init_script: init.sh"} {
		if !strings.Contains(h.stdout.String(), want) {
			t.Errorf("config show missing %q:\n%s", want, h.stdout.String())
		}
	}

	if err := h.run(t, "config", "dump"); err != nil {
		t.Fatalf("config dump: %v", err)
	}
	if !strings.Contains(h.stdout.String(), `mode: "virtual"`) {
		t.Errorf("config dump is not CUE:\n%s", h.stdout.String())
	}
}

func TestConfigInit(t *testing.T) {
	// Not parallel: mutates the package-level config directory override.
	dir := t.TempDir()
	config.SetConfigDirOverride(dir)
	t.Cleanup(config.Reset)

	var stdout bytes.Buffer
	root := NewRootCommand(NewApp(Dependencies{Stdout: &stdout, Stderr: &bytes.Buffer{}}))
	root.SetArgs([]string{"config", "init"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("config init: %v", err)
	}

	want := filepath.Join(dir, "config.cue")
	if !testutil.Exists(want) {
		t.Fatalf("%s was not created", want)
	}
	if !strings.Contains(stdout.String(), want) {
		t.Errorf("output should name the file:\n%s", stdout.String())
	}
}
