// SPDX-License-Identifier: MPL-2.0

// Package manifest reads module manifests (init.yaml) and derives the
// metadata every other component works from.
//
// A manifest is a YAML mapping. Fields are read leniently: unknown keys are
// ignored, wrongly-typed values fall back to defaults, and only a document
// that is not a mapping at all is rejected.
package manifest

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileName is the default manifest file name inside a module directory.
const FileName = "init.yaml"

const nullTag = "!!null"

var (
	// ErrInvalidManifest is the sentinel error wrapped by ParseError.
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrNotMapping is returned when the top level of a manifest is not a mapping.
	ErrNotMapping = errors.New("manifest top level must be a mapping")
)

type (
	// Document is a parsed manifest. Values keep their original scalar text,
	// so `version: 1.10` stays "1.10" rather than becoming a float.
	Document struct {
		fields map[string]*yaml.Node
		keys   []string
	}

	// ParseError is returned when manifest bytes cannot be parsed.
	ParseError struct {
		Source string
		Err    error
	}
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("invalid manifest: %v", e.Err)
	}
	return fmt.Sprintf("invalid manifest %s: %v", e.Source, e.Err)
}

// Unwrap returns both the sentinel and the underlying cause.
func (e *ParseError) Unwrap() []error { return []error{ErrInvalidManifest, e.Err} }

// Parse decodes manifest bytes. An empty document yields an empty Document.
func Parse(data []byte) (Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Document{}, &ParseError{Err: err}
	}

	doc := Document{fields: map[string]*yaml.Node{}}
	if root.Kind == 0 || len(root.Content) == 0 {
		return doc, nil
	}

	top := resolveAlias(root.Content[0])
	if top.Kind == yaml.ScalarNode && top.ShortTag() == nullTag {
		return doc, nil
	}
	if top.Kind != yaml.MappingNode {
		return Document{}, &ParseError{Err: ErrNotMapping}
	}

	for i := 0; i+1 < len(top.Content); i += 2 {
		key := top.Content[i].Value
		if _, dup := doc.fields[key]; !dup {
			doc.keys = append(doc.keys, key)
		}
		doc.fields[key] = resolveAlias(top.Content[i+1])
	}
	return doc, nil
}

// ReadFile reads and parses the manifest at path. A missing file is returned
// unwrapped so callers can test it with errors.Is(err, fs.ErrNotExist).
func ReadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	doc, err := Parse(data)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Source = path
		}
		return Document{}, err
	}
	return doc, nil
}

// Keys returns the top-level keys in document order.
func (d Document) Keys() []string {
	return append([]string(nil), d.keys...)
}

// Scalar returns the text of a non-null scalar value.
func (d Document) Scalar(key string) (string, bool) {
	n, ok := d.fields[key]
	if !ok || n.Kind != yaml.ScalarNode || n.ShortTag() == nullTag {
		return "", false
	}
	return n.Value, true
}

// String returns a scalar value or the empty string.
func (d Document) String(key string) string {
	s, _ := d.Scalar(key)
	return s
}

// Strings returns a value that may be written either as a single scalar or
// as a sequence of scalars. Empty strings, nulls and nested collections are
// skipped.
func (d Document) Strings(key string) []string {
	n, ok := d.fields[key]
	if !ok {
		return nil
	}

	switch n.Kind {
	case yaml.ScalarNode:
		if n.ShortTag() == nullTag || n.Value == "" {
			return nil
		}
		return []string{n.Value}
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			item = resolveAlias(item)
			if item.Kind != yaml.ScalarNode || item.ShortTag() == nullTag || item.Value == "" {
				continue
			}
			out = append(out, item.Value)
		}
		return out
	default:
		return nil
	}
}

// Map decodes the document into a generic nested structure.
func (d Document) Map() (map[string]any, error) {
	out := make(map[string]any, len(d.fields))
	for _, key := range d.keys {
		var v any
		if err := d.fields[key].Decode(&v); err != nil {
			return nil, fmt.Errorf("failed to decode manifest key %q: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}
