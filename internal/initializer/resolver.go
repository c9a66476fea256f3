// SPDX-License-Identifier: MPL-2.0

package initializer

import (
	"strings"

	"github.com/adhd-framework/adhd/pkg/source"
)

type (
	// Mapping is an ordered source-to-directory map, as produced by the
	// materializer.
	Mapping interface {
		URLs() []source.URL
		Get(u source.URL) (string, bool)
	}

	// Resolver maps requirement URLs to module directories.
	Resolver struct {
		exact map[source.URL]string
		byKey map[source.Key]string
		names []namedPath
	}

	namedPath struct {
		name string
		path string
	}
)

// NewResolver indexes m. Earlier entries win when two sources share a key
// or a repository name.
func NewResolver(m Mapping) *Resolver {
	r := &Resolver{
		exact: make(map[source.URL]string),
		byKey: make(map[source.Key]string),
	}
	if m == nil {
		return r
	}
	for _, u := range m.URLs() {
		path, ok := m.Get(u)
		if !ok {
			continue
		}
		r.exact[u] = path
		if _, dup := r.byKey[u.Key()]; !dup {
			r.byKey[u.Key()] = path
		}
		r.names = append(r.names, namedPath{name: strings.ToLower(source.RepoName(u)), path: path})
	}
	return r
}

// Resolve finds the directory of a requirement: by exact URL, then by
// normalized URL, then by case-insensitive repository name.
func (r *Resolver) Resolve(u source.URL) (string, bool) {
	if path, ok := r.exact[u]; ok {
		return path, true
	}
	if path, ok := r.byKey[u.Key()]; ok {
		return path, true
	}
	name := strings.ToLower(source.RepoName(u))
	if name == "" {
		return "", false
	}
	for _, np := range r.names {
		if np.name == name {
			return np.path, true
		}
	}
	return "", false
}
