// SPDX-License-Identifier: MPL-2.0

// Package discovery finds the transitive closure of module sources by
// reading each source's manifest and following its requirements,
// breadth-first.
package discovery

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/adhd-framework/adhd/internal/ctxlog"
	"github.com/adhd-framework/adhd/pkg/manifest"
	"github.com/adhd-framework/adhd/pkg/source"
)

// DefaultConcurrency is the number of manifests fetched in parallel within a level.
const DefaultConcurrency = 4

type (
	// Crawler walks the requirement graph level by level.
	Crawler struct {
		Fetcher     Fetcher
		Concurrency int
	}

	// Entry is one discovered source.
	Entry struct {
		URL source.URL
		Key source.Key
		// Level is the zero-based crawl level the source was fetched in.
		Level int
		// Referrer is the source whose manifest first named this one; empty for roots.
		Referrer source.URL
		// Manifest is nil when the manifest could not be fetched or parsed.
		Manifest *manifest.ModuleInfo
		// Err explains a missing manifest.
		Err error
	}

	// Result is the outcome of a crawl, in discovery order.
	Result struct {
		Entries []Entry
		// Levels is the number of levels the crawl ran.
		Levels int

		index map[source.Key]int
	}

	pending struct {
		url      source.URL
		referrer source.URL
	}

	fetched struct {
		info *manifest.ModuleInfo
		err  error
	}
)

// NewResult builds a Result from entries already in discovery order.
// Later duplicates of a key are dropped.
func NewResult(entries ...Entry) *Result {
	r := &Result{index: make(map[source.Key]int)}
	for _, e := range entries {
		if e.Key == "" {
			e.Key = e.URL.Key()
		}
		if _, dup := r.index[e.Key]; dup {
			continue
		}
		r.add(e)
		r.Levels = max(r.Levels, e.Level+1)
	}
	return r
}

// Lookup returns the entry for a source, matched by normalized key.
func (r *Result) Lookup(u source.URL) (Entry, bool) {
	if r == nil || r.index == nil {
		return Entry{}, false
	}
	i, ok := r.index[u.Key()]
	if !ok {
		return Entry{}, false
	}
	return r.Entries[i], true
}

// URLs returns every discovered source in discovery order.
func (r *Result) URLs() []source.URL {
	out := make([]source.URL, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, e.URL)
	}
	return out
}

// Failures returns the entries whose manifest could not be obtained.
func (r *Result) Failures() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Err != nil {
			out = append(out, e)
		}
	}
	return out
}

func (r *Result) add(e Entry) {
	if r.index == nil {
		r.index = make(map[source.Key]int)
	}
	r.index[e.Key] = len(r.Entries)
	r.Entries = append(r.Entries, e)
}

// Crawl discovers every source reachable from roots. A source whose manifest
// cannot be fetched or parsed is recorded without a manifest and the crawl
// continues. The only error returned is a context error, together with the
// partial result.
func (c *Crawler) Crawl(ctx context.Context, roots []source.URL) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	res := &Result{index: make(map[source.Key]int)}

	frontier := make([]pending, 0, len(roots))
	for _, u := range roots {
		frontier = append(frontier, pending{url: u})
	}

	for level := 0; len(frontier) > 0; level++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		// Sources already discovered, or repeated within this level, are skipped.
		batch := make([]pending, 0, len(frontier))
		inBatch := make(map[source.Key]bool, len(frontier))
		for _, p := range frontier {
			k := p.url.Key()
			if _, seen := res.index[k]; seen || inBatch[k] {
				continue
			}
			inBatch[k] = true
			batch = append(batch, p)
		}
		res.Levels = level + 1
		logger.Info("discovering dependencies", "level", level+1, "sources", len(batch))

		results, err := c.fetchLevel(ctx, batch)
		if err != nil {
			return res, err
		}

		// Merge in batch order so the outcome does not depend on fetch timing.
		var next []pending
		queued := make(map[source.Key]bool)
		for i, p := range batch {
			entry := Entry{
				URL:      p.url,
				Key:      p.url.Key(),
				Level:    level,
				Referrer: p.referrer,
				Manifest: results[i].info,
				Err:      results[i].err,
			}
			res.add(entry)

			if entry.Err != nil {
				logger.Warn("no manifest for source", "url", p.url, "error", entry.Err)
				continue
			}
			for _, req := range entry.Manifest.Requirements {
				k := req.Key()
				if _, seen := res.index[k]; seen || queued[k] {
					continue
				}
				queued[k] = true
				next = append(next, pending{url: req, referrer: p.url})
				logger.Debug("found dependency", "url", req, "required_by", p.url)
			}
		}
		frontier = next
	}

	logger.Info("discovery complete", "sources", len(res.Entries), "levels", res.Levels)
	return res, nil
}

func (c *Crawler) fetchLevel(ctx context.Context, batch []pending) ([]fetched, error) {
	results := make([]fetched, len(batch))
	if len(batch) == 0 {
		return results, nil
	}

	limit := c.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, p := range batch {
		g.Go(func() error {
			results[i] = c.fetchOne(ctx, p.url)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Crawler) fetchOne(ctx context.Context, u source.URL) fetched {
	data, err := c.Fetcher.Fetch(ctx, u)
	if err != nil {
		var ferr *FetchError
		if !errors.As(err, &ferr) {
			err = &FetchError{URL: u, Err: err}
		}
		return fetched{err: err}
	}

	doc, err := manifest.Parse(data)
	if err != nil {
		return fetched{err: &FetchError{URL: u, Err: err}}
	}
	info := manifest.FromDocument(source.RepoName(u), doc)
	return fetched{info: &info}
}
