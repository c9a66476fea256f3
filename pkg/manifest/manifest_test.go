// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/adhd-framework/adhd/pkg/source"
)

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "\n", "~\n", "# only a comment\n"} {
		doc, err := Parse([]byte(in))
		if err != nil {
			t.Fatalf("Parse(%q): unexpected error: %v", in, err)
		}
		if len(doc.Keys()) != 0 {
			t.Errorf("Parse(%q): expected no keys, got %v", in, doc.Keys())
		}
	}
}

func TestParse_NotMapping(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("- a\n- b\n"))
	if !errors.Is(err, ErrNotMapping) {
		t.Fatalf("expected ErrNotMapping, got %v", err)
	}
	if !errors.Is(err, ErrInvalidManifest) {
		t.Errorf("expected ErrInvalidManifest, got %v", err)
	}
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("version: [1, 2\n"))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
}

func TestFromDocument(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(`
type: manager
version: 1.10
description: Logs things
folder_path: managers/logger_manager
requirement:
  - https://github.com/org/Config.git
  - https://github.com/org/config
  - https://github.com/org/cache
  - 42
  - [nested]
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	info := FromDocument("managers/logger_manager", doc)

	if info.Name != "logger_manager" {
		t.Errorf("Name = %q, want logger_manager", info.Name)
	}
	if info.Version != "1.10" {
		t.Errorf("Version = %q, want 1.10 (scalar text must be preserved)", info.Version)
	}
	if info.Type != "manager" || info.Description != "Logs things" {
		t.Errorf("unexpected type/description: %q %q", info.Type, info.Description)
	}
	if info.FolderPath != "managers/logger_manager" {
		t.Errorf("FolderPath = %q", info.FolderPath)
	}

	want := []source.URL{"https://github.com/org/Config.git", "https://github.com/org/cache", "42"}
	if !slices.Equal(info.Requirements, want) {
		t.Errorf("Requirements = %v, want %v", info.Requirements, want)
	}
}

func TestFromDocument_RequirementForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want []source.URL
	}{
		{"absent", "type: util\n", []source.URL{}},
		{"single string", "requirement: https://h/o/a\n", []source.URL{"https://h/o/a"}},
		{"null", "requirement:\n", []source.URL{}},
		{"empty list", "requirement: []\n", []source.URL{}},
		{"mapping ignored", "requirement: {a: b}\n", []source.URL{}},
		{
			name: "plural alias appended",
			yaml: "requirement: https://h/o/a\nrequirements: [https://h/o/b, https://h/o/A.git]\n",
			want: []source.URL{"https://h/o/a", "https://h/o/b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			got := FromDocument("plugins/x", doc).Requirements
			if got == nil {
				t.Fatal("Requirements must never be nil")
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Requirements = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromDocument_VersionFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		yaml string
		want Version
	}{
		{"type: x\n", DefaultVersion},
		{"version:\n", DefaultVersion},
		{"version: [1, 2]\n", DefaultVersion},
		{"version: \"\"\n", DefaultVersion},
		{"version: v2.1.0\n", "v2.1.0"},
		{"version: 3\n", "3"},
	}

	for _, tt := range tests {
		doc, err := Parse([]byte(tt.yaml))
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.yaml, err)
		}
		if got := FromDocument("utils/x", doc).Version; got != tt.want {
			t.Errorf("Version for %q = %q, want %q", tt.yaml, got, tt.want)
		}
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()

	info := Default("plugins/renderer/")
	if info.Name != "renderer" {
		t.Errorf("Name = %q, want renderer", info.Name)
	}
	if info.Version != DefaultVersion {
		t.Errorf("Version = %q, want %q", info.Version, DefaultVersion)
	}
	if info.Requirements == nil || len(info.Requirements) != 0 {
		t.Errorf("expected empty non-nil requirements, got %#v", info.Requirements)
	}
	if info.HasInit || info.HasRefresh || info.HasConfig {
		t.Error("default info must not claim capabilities")
	}
}

func TestModuleInfoFeatures(t *testing.T) {
	t.Parallel()

	info := ModuleInfo{HasInit: true, HasConfig: true}
	if got := info.Features(); !slices.Equal(got, []string{"init", "config"}) {
		t.Errorf("Features() = %v", got)
	}
	if got := (ModuleInfo{}).Features(); len(got) != 0 {
		t.Errorf("expected no features, got %v", got)
	}
}

func TestModuleInfoRequires(t *testing.T) {
	t.Parallel()

	info := ModuleInfo{Requirements: []source.URL{"https://host/Org/Repo.git"}}
	if !info.Requires("https://host/org/repo") {
		t.Error("expected normalized requirement match")
	}
	if info.Requires("https://host/org/other") {
		t.Error("unexpected match")
	}
}

func TestDocumentMap(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte("a: 1\nb: [x, y]\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m, err := doc.Map()
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if m["a"] != 1 {
		t.Errorf("a = %#v, want 1", m["a"])
	}
	if list, ok := m["b"].([]any); !ok || len(list) != 2 {
		t.Errorf("b = %#v", m["b"])
	}
}

func TestParseRoot(t *testing.T) {
	t.Parallel()

	root, err := ParseRoot([]byte(`
self-template-repo: https://github.com/adhd/framework
modules:
  - https://github.com/org/X
  - "  "
  - https://github.com/org/Y.git
`))
	if err != nil {
		t.Fatalf("ParseRoot: %v", err)
	}
	want := []source.URL{"https://github.com/org/X", "https://github.com/org/Y.git"}
	if !slices.Equal(root.Modules, want) {
		t.Errorf("Modules = %v, want %v", root.Modules, want)
	}
	if root.SelfTemplateRepo != "https://github.com/adhd/framework" {
		t.Errorf("SelfTemplateRepo = %q", root.SelfTemplateRepo)
	}
}

func TestReadRoot_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := ReadRoot(filepath.Join(dir, "missing.yaml"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}

	bad := filepath.Join(dir, "init.yaml")
	if err := os.WriteFile(bad, []byte("just a string\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = ReadRoot(bad)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if perr.Source != bad {
		t.Errorf("Source = %q, want %q", perr.Source, bad)
	}
}
