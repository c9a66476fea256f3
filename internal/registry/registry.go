// SPDX-License-Identifier: MPL-2.0

// Package registry derives module metadata from the project tree.
//
// A project keeps its modules in a fixed set of category directories
// (managers, utils, plugins by default), one subdirectory per module.
// The registry holds no state: every Scan or ReadOne re-reads the disk.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/adhd-framework/adhd/internal/ctxlog"
	"github.com/adhd-framework/adhd/pkg/manifest"
)

// Default layout values.
const (
	DefaultInitScript    = "__init__.py"
	DefaultRefreshScript = "refresh.py"
)

// DefaultCategories are the category directories scanned for modules.
var DefaultCategories = []string{"managers", "utils", "plugins"}

// ErrModuleNotFound is returned when a module directory does not exist.
var ErrModuleNotFound = errors.New("module not found")

// Layout describes where modules live and which files mark their capabilities.
type Layout struct {
	// Root is the project root directory. Module paths are relative to it.
	Root          string
	Categories    []string
	ManifestFile  string
	InitScript    string
	RefreshScript string
}

// DefaultLayout returns the standard layout rooted at root.
func DefaultLayout(root string) Layout {
	return Layout{
		Root:          root,
		Categories:    append([]string(nil), DefaultCategories...),
		ManifestFile:  manifest.FileName,
		InitScript:    DefaultInitScript,
		RefreshScript: DefaultRefreshScript,
	}
}

// Abs returns the absolute location of a project-relative module path.
func (l Layout) Abs(modulePath string) string {
	if filepath.IsAbs(modulePath) {
		return modulePath
	}
	return filepath.Join(l.Root, filepath.FromSlash(modulePath))
}

// InitScriptPath returns the init script location of a module.
func (l Layout) InitScriptPath(modulePath string) string {
	return filepath.Join(l.Abs(modulePath), l.InitScript)
}

// RefreshScriptPath returns the refresh script location of a module.
func (l Layout) RefreshScriptPath(modulePath string) string {
	return filepath.Join(l.Abs(modulePath), l.RefreshScript)
}

// EnsureCategories creates every missing category directory.
func (l Layout) EnsureCategories() error {
	for _, c := range l.Categories {
		if err := os.MkdirAll(filepath.Join(l.Root, c), 0o755); err != nil {
			return fmt.Errorf("failed to create category directory %s: %w", c, err)
		}
	}
	return nil
}

// Scan reads every module in every category directory. Missing category
// directories are skipped. Keys are project-relative module paths.
func Scan(ctx context.Context, layout Layout) (map[string]manifest.ModuleInfo, error) {
	modules := make(map[string]manifest.ModuleInfo)

	for _, category := range layout.Categories {
		entries, err := os.ReadDir(filepath.Join(layout.Root, category))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read category %s: %w", category, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			p := filepath.Join(category, entry.Name())
			info, err := ReadOne(ctx, layout, p)
			if err != nil {
				return nil, err
			}
			modules[p] = info
		}
	}

	return modules, nil
}

// ReadOne derives the metadata of the module at modulePath. A manifest that
// cannot be read or parsed is logged and replaced by defaults; only a
// missing module directory is an error.
func ReadOne(ctx context.Context, layout Layout, modulePath string) (manifest.ModuleInfo, error) {
	dir := layout.Abs(modulePath)
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		return manifest.ModuleInfo{}, fmt.Errorf("%w: %s", ErrModuleNotFound, modulePath)
	}

	info := manifest.Default(modulePath)
	manifestPath := filepath.Join(dir, layout.ManifestFile)
	if fileExists(manifestPath) {
		info.HasConfig = true
		doc, err := manifest.ReadFile(manifestPath)
		if err != nil {
			ctxlog.FromContext(ctx).Warn("ignoring unreadable module manifest",
				"module", modulePath, "error", err)
		} else {
			info = manifest.FromDocument(modulePath, doc)
			info.HasConfig = true
		}
	}

	info.HasInit = fileExists(filepath.Join(dir, layout.InitScript))
	info.HasRefresh = fileExists(filepath.Join(dir, layout.RefreshScript))
	return info, nil
}

// Sorted returns the modules ordered by path.
func Sorted(modules map[string]manifest.ModuleInfo) []manifest.ModuleInfo {
	out := make([]manifest.ModuleInfo, 0, len(modules))
	for _, m := range modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// FindByName returns the module named name. Names are compared exactly
// first, then case-insensitively.
func FindByName(modules map[string]manifest.ModuleInfo, name string) (manifest.ModuleInfo, bool) {
	sorted := Sorted(modules)
	for _, m := range sorted {
		if m.Name == name {
			return m, true
		}
	}
	for _, m := range sorted {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return manifest.ModuleInfo{}, false
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
