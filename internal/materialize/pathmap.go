// SPDX-License-Identifier: MPL-2.0

package materialize

import "github.com/adhd-framework/adhd/pkg/source"

// PathMap maps module sources to their project-relative directories,
// remembering insertion order.
type PathMap struct {
	urls  []source.URL
	paths map[source.URL]string
}

// NewPathMap returns an empty map.
func NewPathMap() *PathMap {
	return &PathMap{paths: make(map[source.URL]string)}
}

// Set records the directory of u. Re-setting keeps the original position.
func (p *PathMap) Set(u source.URL, path string) {
	if _, ok := p.paths[u]; !ok {
		p.urls = append(p.urls, u)
	}
	p.paths[u] = path
}

// Get returns the directory recorded for exactly u.
func (p *PathMap) Get(u source.URL) (string, bool) {
	if p == nil {
		return "", false
	}
	path, ok := p.paths[u]
	return path, ok
}

// Len returns the number of sources.
func (p *PathMap) Len() int {
	if p == nil {
		return 0
	}
	return len(p.urls)
}

// URLs returns the sources in insertion order.
func (p *PathMap) URLs() []source.URL {
	if p == nil {
		return nil
	}
	return append([]source.URL(nil), p.urls...)
}

// Paths returns the distinct directories in insertion order.
func (p *PathMap) Paths() []string {
	if p == nil {
		return nil
	}
	seen := make(map[string]bool, len(p.urls))
	out := make([]string, 0, len(p.urls))
	for _, u := range p.urls {
		path := p.paths[u]
		if seen[path] {
			continue
		}
		seen[path] = true
		out = append(out, path)
	}
	return out
}
