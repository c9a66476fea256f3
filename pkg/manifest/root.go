// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"strings"

	"github.com/adhd-framework/adhd/pkg/source"
)

// Root is the project's top-level manifest.
type Root struct {
	// Modules are the root module sources, in declaration order.
	Modules []source.URL
	// SelfTemplateRepo names the framework template repository. The
	// bootstrap itself does not use it.
	SelfTemplateRepo source.URL
}

// RootFromDocument reads the root-manifest fields of a document.
func RootFromDocument(doc Document) Root {
	r := Root{
		SelfTemplateRepo: source.URL(strings.TrimSpace(doc.String(FieldSelfTemplateRepo))),
	}
	for _, m := range doc.Strings(FieldModules) {
		if u := source.URL(strings.TrimSpace(m)); u != "" {
			r.Modules = append(r.Modules, u)
		}
	}
	return r
}

// ParseRoot decodes a root manifest.
func ParseRoot(data []byte) (Root, error) {
	doc, err := Parse(data)
	if err != nil {
		return Root{}, err
	}
	return RootFromDocument(doc), nil
}

// ReadRoot reads and decodes the root manifest at path.
func ReadRoot(path string) (Root, error) {
	doc, err := ReadFile(path)
	if err != nil {
		return Root{}, err
	}
	return RootFromDocument(doc), nil
}
