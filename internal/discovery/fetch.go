// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/adhd-framework/adhd/pkg/manifest"
	"github.com/adhd-framework/adhd/pkg/source"
)

const (
	// DefaultRef is the ref manifests are read from. Raw-file hosts resolve
	// HEAD to the default branch of the repository.
	DefaultRef = "HEAD"

	// DefaultFetchTimeout bounds a single manifest request.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultMaxManifestBytes is the upper bound on a manifest body (1 MiB).
	DefaultMaxManifestBytes = 1 << 20

	defaultUserAgent = "adhd"
)

// ErrManifestUnavailable is the sentinel error wrapped by FetchError.
var ErrManifestUnavailable = errors.New("manifest unavailable")

type (
	// Fetcher retrieves the raw manifest bytes of a source.
	Fetcher interface {
		Fetch(ctx context.Context, u source.URL) ([]byte, error)
	}

	// FetchError reports why a source's manifest could not be obtained.
	// The crawl treats it as "no manifest" and moves on.
	FetchError struct {
		URL        source.URL
		Location   string // resolved manifest location, when known
		StatusCode int    // HTTP status, zero when the request did not complete
		Err        error
	}

	// HTTPFetcher reads manifests from a hosting provider's raw file endpoint.
	HTTPFetcher struct {
		httpClient   *http.Client
		timeout      time.Duration
		ref          string
		manifestFile string
		urlTemplate  string
		token        string
		userAgent    string
		maxBytes     int64
	}

	// HTTPOption configures an HTTPFetcher during construction.
	HTTPOption func(*HTTPFetcher)

	// LocalFetcher reads manifests of local directory sources.
	LocalFetcher struct {
		ManifestFile string
	}

	// SourceFetcher dispatches to Remote or Local by source kind.
	SourceFetcher struct {
		Remote Fetcher
		Local  Fetcher
	}
)

// Error implements the error interface.
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("manifest unavailable for %s", e.URL)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": unexpected status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns both the sentinel and the underlying cause.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrManifestUnavailable}
	}
	return []error{ErrManifestUnavailable, e.Err}
}

// WithHTTPClient sets a custom HTTP client, useful for tests or proxy configurations.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		f.httpClient = c
	}
}

// WithTimeout bounds each manifest request. Zero disables the bound.
func WithTimeout(d time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		f.timeout = d
	}
}

// WithRef sets the branch or tag manifests are read from.
func WithRef(ref string) HTTPOption {
	return func(f *HTTPFetcher) {
		if ref != "" {
			f.ref = ref
		}
	}
}

// WithManifestFile sets the manifest file name.
func WithManifestFile(name string) HTTPOption {
	return func(f *HTTPFetcher) {
		if name != "" {
			f.manifestFile = name
		}
	}
}

// WithURLTemplate sets the raw-file URL template for non-GitHub hosts.
func WithURLTemplate(tmpl string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.urlTemplate = tmpl
	}
}

// WithToken sets a GitHub token sent with requests for GitHub sources.
func WithToken(token string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.token = token
	}
}

// WithMaxBytes caps the accepted manifest size.
func WithMaxBytes(n int64) HTTPOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// NewHTTPFetcher creates an HTTPFetcher. Defaults: ref "HEAD", manifest
// "init.yaml", 30s timeout, 1 MiB size limit, token from GITHUB_TOKEN.
func NewHTTPFetcher(opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		httpClient:   http.DefaultClient,
		timeout:      DefaultFetchTimeout,
		ref:          DefaultRef,
		manifestFile: manifest.FileName,
		token:        os.Getenv("GITHUB_TOKEN"),
		userAgent:    defaultUserAgent,
		maxBytes:     DefaultMaxManifestBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the manifest of u.
func (f *HTTPFetcher) Fetch(ctx context.Context, u source.URL) ([]byte, error) {
	location, err := source.RawManifestURL(u, f.ref, f.manifestFile, f.urlTemplate)
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, http.NoBody)
	if err != nil {
		return nil, &FetchError{URL: u, Location: location, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	if f.token != "" && source.IsGitHub(u) {
		req.Header.Set("Authorization", "token "+f.token)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: u, Location: location, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: u, Location: location, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &FetchError{URL: u, Location: location, Err: err}
	}
	if int64(len(data)) > f.maxBytes {
		return nil, &FetchError{URL: u, Location: location, Err: fmt.Errorf("manifest exceeds %d bytes", f.maxBytes)}
	}
	return data, nil
}

// Fetch reads the manifest file of a local directory source.
func (f LocalFetcher) Fetch(_ context.Context, u source.URL) ([]byte, error) {
	name := f.ManifestFile
	if name == "" {
		name = manifest.FileName
	}
	location := filepath.Join(u.LocalPath(), name)
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, &FetchError{URL: u, Location: location, Err: err}
	}
	return data, nil
}

// Fetch routes u to the fetcher for its kind.
func (f SourceFetcher) Fetch(ctx context.Context, u source.URL) ([]byte, error) {
	next := f.Remote
	if u.Kind() == source.KindLocal {
		next = f.Local
	}
	if next == nil {
		return nil, &FetchError{URL: u, Err: fmt.Errorf("no fetcher for %s sources", u.Kind())}
	}
	return next.Fetch(ctx, u)
}
