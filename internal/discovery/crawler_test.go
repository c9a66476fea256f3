// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adhd-framework/adhd/pkg/source"
)

// mapFetcher serves manifests from memory, keyed by normalized URL.
type mapFetcher struct {
	manifests map[source.Key]string
	delay     map[source.Key]time.Duration

	mu    sync.Mutex
	calls []source.URL
}

func newMapFetcher(manifests map[string]string) *mapFetcher {
	f := &mapFetcher{manifests: map[source.Key]string{}, delay: map[source.Key]time.Duration{}}
	for u, m := range manifests {
		f.manifests[source.Normalize(source.URL(u))] = m
	}
	return f
}

func (f *mapFetcher) Fetch(ctx context.Context, u source.URL) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, u)
	f.mu.Unlock()

	if d := f.delay[u.Key()]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m, ok := f.manifests[u.Key()]
	if !ok {
		return nil, &FetchError{URL: u, StatusCode: 404}
	}
	return []byte(m), nil
}

func (f *mapFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestCrawl_TwoLevels(t *testing.T) {
	t.Parallel()

	f := newMapFetcher(map[string]string{
		"https://host/org/X": "version: 1.0.0\nrequirement: https://host/org/Y\n",
		"https://host/org/Y": "version: 1.0.0\n",
	})
	c := &Crawler{Fetcher: f}

	res, err := c.Crawl(context.Background(), []source.URL{"https://host/org/X", "https://host/org/Y"})
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if res.Levels != 2 {
		t.Errorf("Levels = %d, want 2", res.Levels)
	}
	if got := res.URLs(); !slices.Equal(got, []source.URL{"https://host/org/X", "https://host/org/Y"}) {
		t.Errorf("URLs = %v", got)
	}
	if f.callCount() != 2 {
		t.Errorf("expected each source fetched once, got %d fetches", f.callCount())
	}
}

func TestCrawl_CycleTerminates(t *testing.T) {
	t.Parallel()

	f := newMapFetcher(map[string]string{
		"https://host/org/A": "requirement: https://host/org/B.git\n",
		"https://host/org/B": "requirement: https://HOST/org/a\n",
	})
	res, err := (&Crawler{Fetcher: f}).Crawl(context.Background(), []source.URL{"https://host/org/A"})
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if got := res.URLs(); !slices.Equal(got, []source.URL{"https://host/org/A", "https://host/org/B.git"}) {
		t.Errorf("URLs = %v, want exactly A and B", got)
	}
	if f.callCount() != 2 {
		t.Errorf("fetches = %d, want 2", f.callCount())
	}
}

func TestCrawl_TransitiveLevelsAndReferrer(t *testing.T) {
	t.Parallel()

	f := newMapFetcher(map[string]string{
		"https://host/org/app":    "requirement: [https://host/org/logger, https://host/org/cache]\n",
		"https://host/org/logger": "requirement: https://host/org/config\n",
		"https://host/org/cache":  "requirement: https://host/org/config\n",
		"https://host/org/config": "version: 0.2.0\n",
	})
	res, err := (&Crawler{Fetcher: f, Concurrency: 1}).Crawl(context.Background(), []source.URL{"https://host/org/app"})
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	want := []source.URL{
		"https://host/org/app",
		"https://host/org/logger",
		"https://host/org/cache",
		"https://host/org/config",
	}
	if got := res.URLs(); !slices.Equal(got, want) {
		t.Fatalf("URLs = %v, want %v", got, want)
	}

	cfg, ok := res.Lookup("https://host/org/Config.git")
	if !ok {
		t.Fatal("Lookup(config) failed")
	}
	if cfg.Level != 2 || cfg.Referrer != "https://host/org/logger" {
		t.Errorf("config entry = level %d referrer %q", cfg.Level, cfg.Referrer)
	}
	if cfg.Manifest == nil || cfg.Manifest.Version != "0.2.0" {
		t.Errorf("config manifest = %+v", cfg.Manifest)
	}
	if cfg.Manifest.Path != "config" {
		t.Errorf("manifest path = %q, want repository name", cfg.Manifest.Path)
	}
}

func TestCrawl_FetchFailureDegrades(t *testing.T) {
	t.Parallel()

	f := newMapFetcher(map[string]string{
		"https://host/org/app": "requirement: [https://host/org/gone, https://host/org/bad, https://host/org/ok]\n",
		"https://host/org/bad": "- not a mapping\n",
		"https://host/org/ok":  "version: 1.0.0\n",
	})
	res, err := (&Crawler{Fetcher: f}).Crawl(context.Background(), []source.URL{"https://host/org/app"})
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(res.Entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(res.Entries))
	}

	failures := res.Failures()
	if len(failures) != 2 {
		t.Fatalf("failures = %d, want 2", len(failures))
	}
	for _, e := range failures {
		if e.Manifest != nil {
			t.Errorf("%s: failed entry must have no manifest", e.URL)
		}
		if !errors.Is(e.Err, ErrManifestUnavailable) {
			t.Errorf("%s: expected ErrManifestUnavailable, got %v", e.URL, e.Err)
		}
	}
}

func TestCrawl_DuplicateRoots(t *testing.T) {
	t.Parallel()

	f := newMapFetcher(map[string]string{"https://host/org/x": "type: x\n"})
	res, err := (&Crawler{Fetcher: f}).Crawl(context.Background(),
		[]source.URL{"https://host/org/x", "https://host/Org/X.git", "https://host/org/x/"})
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(res.Entries) != 1 || f.callCount() != 1 {
		t.Errorf("entries = %d, fetches = %d, want 1 and 1", len(res.Entries), f.callCount())
	}
}

func TestCrawl_DeterministicUnderConcurrency(t *testing.T) {
	t.Parallel()

	manifests := map[string]string{
		"https://host/org/root": "requirement: [https://host/org/a, https://host/org/b, https://host/org/c, https://host/org/d]\n",
		"https://host/org/a":    "requirement: https://host/org/z\n",
		"https://host/org/b":    "requirement: https://host/org/y\n",
		"https://host/org/c":    "type: c\n",
		"https://host/org/d":    "requirement: https://host/org/x\n",
		"https://host/org/x":    "type: x\n",
		"https://host/org/y":    "type: y\n",
		"https://host/org/z":    "type: z\n",
	}
	f := newMapFetcher(manifests)
	// The first dependency finishes last.
	f.delay[source.Normalize("https://host/org/a")] = 30 * time.Millisecond

	res, err := (&Crawler{Fetcher: f, Concurrency: 4}).Crawl(context.Background(), []source.URL{"https://host/org/root"})
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	want := []source.URL{
		"https://host/org/root",
		"https://host/org/a", "https://host/org/b", "https://host/org/c", "https://host/org/d",
		"https://host/org/z", "https://host/org/y", "https://host/org/x",
	}
	if got := res.URLs(); !slices.Equal(got, want) {
		t.Errorf("URLs = %v, want %v", got, want)
	}
}

func TestCrawl_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newMapFetcher(map[string]string{"https://host/org/x": "type: x\n"})
	res, err := (&Crawler{Fetcher: f}).Crawl(ctx, []source.URL{"https://host/org/x"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res == nil || len(res.Entries) != 0 {
		t.Errorf("expected empty partial result, got %+v", res)
	}
}

func TestCrawl_ConcurrencyLimit(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	fetcher := fetcherFunc(func(ctx context.Context, u source.URL) ([]byte, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return []byte("type: x\n"), nil
	})

	roots := []source.URL{"https://h/o/1", "https://h/o/2", "https://h/o/3", "https://h/o/4", "https://h/o/5", "https://h/o/6"}
	if _, err := (&Crawler{Fetcher: fetcher, Concurrency: 2}).Crawl(context.Background(), roots); err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

type fetcherFunc func(context.Context, source.URL) ([]byte, error)

func (f fetcherFunc) Fetch(ctx context.Context, u source.URL) ([]byte, error) { return f(ctx, u) }
