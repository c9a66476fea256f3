// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

// Module describes a module directory to lay out on disk.
type Module struct {
	// Dir is the directory, relative to the fixture root.
	Dir string
	// Manifest is written to init.yaml when non-empty.
	Manifest string
	// Init is written to init.sh when non-empty.
	Init string
	// Refresh is written to refresh.sh when non-empty.
	Refresh string
	// Files are extra files keyed by path relative to Dir.
	Files map[string]string
}

// Shell script names used by fixtures. Tests configure layouts with these
// so that the virtual shell runtime can execute them.
const (
	InitScript    = "init.sh"
	RefreshScript = "refresh.sh"
)

// WriteModule lays out m under root and returns its absolute directory.
func WriteModule(t testing.TB, root string, m Module) string {
	t.Helper()
	dir := filepath.Join(root, filepath.FromSlash(m.Dir))
	MustMkdirAll(t, dir, 0o755)

	if m.Manifest != "" {
		MustWriteFile(t, filepath.Join(dir, "init.yaml"), m.Manifest)
	}
	if m.Init != "" {
		MustWriteFile(t, filepath.Join(dir, InitScript), m.Init)
	}
	if m.Refresh != "" {
		MustWriteFile(t, filepath.Join(dir, RefreshScript), m.Refresh)
	}
	for name, data := range m.Files {
		MustWriteFile(t, filepath.Join(dir, filepath.FromSlash(name)), data)
	}
	return dir
}

// ManifestYAML renders a module manifest.
func ManifestYAML(version, folderPath string, requirements ...string) string {
	var b strings.Builder
	if version != "" {
		fmt.Fprintf(&b, "version: %q\n", version)
	}
	if folderPath != "" {
		fmt.Fprintf(&b, "folder_path: %s\n", folderPath)
	}
	if len(requirements) > 0 {
		b.WriteString("requirement:\n")
		for _, r := range requirements {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
	}
	if b.Len() == 0 {
		b.WriteString("type: module\n")
	}
	return b.String()
}

// RootYAML renders a root manifest listing modules.
func RootYAML(modules ...string) string {
	var b strings.Builder
	b.WriteString("modules:\n")
	if len(modules) == 0 {
		return "modules: []\n"
	}
	for _, m := range modules {
		fmt.Fprintf(&b, "  - %s\n", m)
	}
	return b.String()
}
