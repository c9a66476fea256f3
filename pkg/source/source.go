// SPDX-License-Identifier: MPL-2.0

// Package source defines the identity of a module source location.
//
// A source is whatever string a manifest names in `modules` or `requirement`:
// an HTTPS or SSH git URL, an scp-like `git@host:org/repo.git` address, or a
// local directory (absolute path or file:// URL). Two spellings of the same
// repository must compare equal, so every component that keys on a source
// goes through Normalize.
package source

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

const (
	// KindRemote marks a source fetched over the network.
	KindRemote Kind = iota
	// KindLocal marks a source that is a directory on the local filesystem.
	KindLocal
)

const (
	githubHost    = "github.com"
	githubRawHost = "raw.githubusercontent.com"

	// DefaultURLTemplate is used to derive manifest URLs for non-GitHub hosts.
	// It matches the raw file endpoint of GitLab and Gitea.
	DefaultURLTemplate = "{scheme}://{host}/{path}/raw/{ref}/{file}"
)

var (
	// ErrEmptyURL is returned when a source string is empty.
	ErrEmptyURL = errors.New("empty source URL")
	// ErrUnsupportedURL is the sentinel error wrapped by UnsupportedURLError.
	ErrUnsupportedURL = errors.New("unsupported source URL")
)

type (
	// URL is a module source location exactly as written in a manifest.
	URL string

	// Key is the canonical identity of a URL. Two URLs with equal keys
	// refer to the same module.
	Key string

	// Kind distinguishes remote from local sources.
	Kind int

	// UnsupportedURLError is returned when a source cannot be mapped to a
	// raw manifest location.
	UnsupportedURLError struct {
		Value  URL
		Reason string
	}
)

// Error implements the error interface.
func (e *UnsupportedURLError) Error() string {
	return fmt.Sprintf("unsupported source URL %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrUnsupportedURL so callers can use errors.Is for programmatic detection.
func (e *UnsupportedURLError) Unwrap() error { return ErrUnsupportedURL }

// String returns the string representation of the URL.
func (u URL) String() string { return string(u) }

// Key returns the canonical identity of the URL.
func (u URL) Key() Key { return Normalize(u) }

// Kind reports whether the URL points at a local directory or a remote repository.
func (u URL) Kind() Kind {
	s := strings.TrimSpace(string(u))
	switch {
	case strings.HasPrefix(s, "file://"):
		return KindLocal
	case strings.HasPrefix(s, "./"), strings.HasPrefix(s, "../"):
		return KindLocal
	case filepath.IsAbs(s):
		return KindLocal
	default:
		return KindRemote
	}
}

// LocalPath returns the filesystem path of a local source.
func (u URL) LocalPath() string {
	s := strings.TrimSpace(string(u))
	if rest, ok := strings.CutPrefix(s, "file://"); ok {
		return filepath.FromSlash(rest)
	}
	return s
}

// String returns the string representation of the Kind.
func (k Kind) String() string {
	if k == KindLocal {
		return "local"
	}
	return "remote"
}

// Normalize maps a URL to its canonical key: surrounding whitespace and one
// trailing slash are removed, the result is lower-cased, and a single
// trailing ".git" suffix is stripped.
func Normalize(u URL) Key {
	s := strings.TrimSpace(string(u))
	s = strings.TrimSuffix(s, "/")
	s = strings.ToLower(s)
	s = strings.TrimSuffix(s, ".git")
	return Key(s)
}

// Equal reports whether two URLs identify the same module.
func Equal(a, b URL) bool {
	return Normalize(a) == Normalize(b)
}

// RepoName returns the final path segment of the URL with any ".git" suffix
// removed. Case is preserved.
func RepoName(u URL) string {
	s := strings.TrimSpace(string(u))
	s = strings.TrimRight(s, `/\`)
	s = trimGitSuffix(s)

	// scp-like addresses (git@host:org/repo) have no slash before the repo
	// path when the repo sits at the host root.
	if i := strings.LastIndexAny(s, `/\:`); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// trimGitSuffix removes a ".git" suffix in any letter case.
func trimGitSuffix(s string) string {
	const suffix = ".git"
	if len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		return s[:len(s)-len(suffix)]
	}
	return s
}

// RawManifestURL derives the address of a repository's manifest file on the
// given ref. GitHub sources map to raw.githubusercontent.com; every other
// host is expanded through template (DefaultURLTemplate when empty).
//
// Template placeholders: {scheme} {host} {path} {owner} {repo} {ref} {file}.
func RawManifestURL(u URL, ref, file, template string) (string, error) {
	if strings.TrimSpace(string(u)) == "" {
		return "", ErrEmptyURL
	}
	if u.Kind() == KindLocal {
		return "", &UnsupportedURLError{Value: u, Reason: "local sources have no remote manifest"}
	}

	scheme, host, repoPath, err := splitRemote(u)
	if err != nil {
		return "", err
	}

	segments := strings.Split(repoPath, "/")
	owner := segments[0]
	repo := segments[len(segments)-1]

	if strings.EqualFold(host, githubHost) {
		if len(segments) != 2 {
			return "", &UnsupportedURLError{Value: u, Reason: "GitHub sources must be of the form owner/repo"}
		}
		return fmt.Sprintf("https://%s/%s/%s/%s/%s", githubRawHost, owner, repo, ref, file), nil
	}

	if template == "" {
		template = DefaultURLTemplate
	}
	r := strings.NewReplacer(
		"{scheme}", scheme,
		"{host}", host,
		"{path}", repoPath,
		"{owner}", owner,
		"{repo}", repo,
		"{ref}", ref,
		"{file}", file,
	)
	return r.Replace(template), nil
}

// IsGitHub reports whether the URL is hosted on github.com.
func IsGitHub(u URL) bool {
	_, host, _, err := splitRemote(u)
	return err == nil && strings.EqualFold(host, githubHost)
}

// splitRemote breaks a remote URL into scheme, host and repository path
// (without leading/trailing slashes and without ".git").
func splitRemote(u URL) (scheme, host, repoPath string, err error) {
	s := strings.TrimSpace(string(u))

	if rest, ok := strings.CutPrefix(s, "git@"); ok && !strings.Contains(s, "://") {
		h, p, found := strings.Cut(rest, ":")
		if !found || h == "" || p == "" {
			return "", "", "", &UnsupportedURLError{Value: u, Reason: "malformed scp-like address"}
		}
		return "https", h, cleanRepoPath(p), nil
	}

	parsed, perr := url.Parse(s)
	if perr != nil {
		return "", "", "", &UnsupportedURLError{Value: u, Reason: perr.Error()}
	}

	switch parsed.Scheme {
	case "http", "https":
		scheme = parsed.Scheme
	case "ssh", "git":
		scheme = "https"
	default:
		return "", "", "", &UnsupportedURLError{Value: u, Reason: "scheme must be http, https, ssh or git"}
	}

	if parsed.Host == "" {
		return "", "", "", &UnsupportedURLError{Value: u, Reason: "missing host"}
	}
	repoPath = cleanRepoPath(parsed.Path)
	if repoPath == "" {
		return "", "", "", &UnsupportedURLError{Value: u, Reason: "missing repository path"}
	}

	host = parsed.Host
	if parsed.Scheme == "ssh" || parsed.Scheme == "git" {
		// Drop the ssh port; raw files are served over https.
		host = parsed.Hostname()
	}
	return scheme, host, repoPath, nil
}

func cleanRepoPath(p string) string {
	p = strings.Trim(p, "/")
	return trimGitSuffix(p)
}
