// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/adhd-framework/adhd/pkg/source"
)

// Manifest field names.
const (
	FieldModules          = "modules"
	FieldSelfTemplateRepo = "self-template-repo"
	FieldFolderPath       = "folder_path"
	FieldType             = "type"
	FieldVersion          = "version"
	FieldDescription      = "description"
	FieldRequirement      = "requirement"
	// FieldRequirements is accepted as an alias of FieldRequirement.
	FieldRequirements = "requirements"
)

// ModuleInfo is the metadata of one module, derived from its manifest and
// its directory contents. It is re-derived on every read and never mutated.
type ModuleInfo struct {
	// Path identifies the module: a project-relative directory once placed,
	// or a symbolic identity (the repository name) before placement.
	Path        string
	Name        string
	Version     Version
	Type        string
	Description string
	// FolderPath is the declared placement path, empty when undeclared.
	FolderPath   string
	Requirements []source.URL

	HasInit    bool
	HasRefresh bool
	HasConfig  bool
}

// FromDocument derives module metadata from a parsed manifest.
// Capability flags are left false; they depend on the module directory.
func FromDocument(modulePath string, doc Document) ModuleInfo {
	info := Default(modulePath)

	if v, ok := doc.Scalar(FieldVersion); ok && strings.TrimSpace(v) != "" {
		info.Version = Version(strings.TrimSpace(v))
	}
	info.Type = doc.String(FieldType)
	info.Description = doc.String(FieldDescription)
	info.FolderPath = strings.TrimSpace(doc.String(FieldFolderPath))

	raw := append(doc.Strings(FieldRequirement), doc.Strings(FieldRequirements)...)
	info.Requirements = dedupe(raw)
	return info
}

// Default returns the metadata assumed for a module without a manifest.
func Default(modulePath string) ModuleInfo {
	return ModuleInfo{
		Path:         modulePath,
		Name:         baseName(modulePath),
		Version:      DefaultVersion,
		Requirements: []source.URL{},
	}
}

// Features lists the capabilities the module provides.
func (m ModuleInfo) Features() []string {
	var out []string
	if m.HasInit {
		out = append(out, "init")
	}
	if m.HasRefresh {
		out = append(out, "refresh")
	}
	if m.HasConfig {
		out = append(out, "config")
	}
	return out
}

// Requires reports whether the module lists u among its requirements.
func (m ModuleInfo) Requires(u source.URL) bool {
	k := u.Key()
	for _, r := range m.Requirements {
		if r.Key() == k {
			return true
		}
	}
	return false
}

func dedupe(raw []string) []source.URL {
	out := make([]source.URL, 0, len(raw))
	seen := make(map[source.Key]bool, len(raw))
	for _, s := range raw {
		u := source.URL(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		k := u.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, u)
	}
	return out
}

func baseName(p string) string {
	p = strings.TrimRight(filepath.ToSlash(p), "/")
	if p == "" {
		return ""
	}
	return path.Base(p)
}
