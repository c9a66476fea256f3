// SPDX-License-Identifier: MPL-2.0

package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/adhd-framework/adhd/internal/discovery"
	"github.com/adhd-framework/adhd/internal/initializer"
	"github.com/adhd-framework/adhd/internal/materialize"
)

type (
	// Report is the end-of-run ledger.
	Report struct {
		Root        string            `toml:"root"`
		StartedAt   time.Time         `toml:"started_at"`
		Duration    string            `toml:"duration"`
		Discovery   DiscoveryReport   `toml:"discovery"`
		Materialize MaterializeReport `toml:"materialize"`
		Initialize  InitializeReport  `toml:"initialize"`
		// Errors lists every non-fatal error of the run.
		Errors []string `toml:"errors"`

		Crawl     *discovery.Result    `toml:"-"`
		Placement *materialize.Result  `toml:"-"`
		Summary   *initializer.Summary `toml:"-"`
	}

	// DiscoveryReport summarizes the crawl.
	DiscoveryReport struct {
		Sources     int      `toml:"sources"`
		Levels      int      `toml:"levels"`
		Unavailable []string `toml:"unavailable"`
	}

	// MaterializeReport summarizes placement.
	MaterializeReport struct {
		Counts  materialize.Counts `toml:"counts"`
		Modules []PlacementReport  `toml:"modules"`
	}

	// PlacementReport is one placement outcome.
	PlacementReport struct {
		URL      string `toml:"url"`
		Path     string `toml:"path"`
		Action   string `toml:"action"`
		Existing string `toml:"existing,omitempty"`
		Incoming string `toml:"incoming,omitempty"`
	}

	// InitializeReport summarizes initialization.
	InitializeReport struct {
		Result    string   `toml:"result"`
		Total     int      `toml:"total"`
		Succeeded int      `toml:"succeeded"`
		Order     []string `toml:"order"`
		Failed    []string `toml:"failed"`
		Cycles    []string `toml:"cycles"`
		Missing   []string `toml:"missing"`
	}
)

// OK reports whether the run finished without any error.
func (r *Report) OK() bool {
	return len(r.Errors) == 0
}

// Encode renders the report as TOML.
func (r *Report) Encode() ([]byte, error) {
	data, err := toml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return data, nil
}

// WriteFile writes the TOML report to path.
func (r *Report) WriteFile(path string) error {
	data, err := r.Encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ReadReport decodes a report written by WriteFile.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", path, err)
	}
	return &r, nil
}

func (r *Report) addCrawl(crawl *discovery.Result) {
	if crawl == nil {
		return
	}
	r.Crawl = crawl
	r.Discovery.Sources = len(crawl.Entries)
	r.Discovery.Levels = crawl.Levels
	for _, d := range crawl.Diagnostics() {
		r.Discovery.Unavailable = append(r.Discovery.Unavailable, string(d.URL))
		r.Errors = append(r.Errors, "discovery: "+d.String())
	}
}

func (r *Report) addPlacement(res *materialize.Result) {
	if res == nil {
		return
	}
	r.Placement = res
	r.Materialize.Counts = res.Counts
	for _, o := range res.Outcomes {
		r.Materialize.Modules = append(r.Materialize.Modules, PlacementReport{
			URL:      string(o.URL),
			Path:     filepath.ToSlash(o.Path),
			Action:   string(o.Action),
			Existing: string(o.Existing),
			Incoming: string(o.Incoming),
		})
		if o.Err != nil {
			r.Errors = append(r.Errors, "materialize: "+o.Err.Error())
		}
	}
}

func (r *Report) addSummary(s *initializer.Summary) {
	if s == nil {
		return
	}
	r.Summary = s
	r.Initialize.Result = s.String()
	r.Initialize.Total = s.Total
	r.Initialize.Succeeded = s.Succeeded
	for _, p := range s.Order {
		r.Initialize.Order = append(r.Initialize.Order, filepath.ToSlash(p))
	}
	r.Initialize.Failed = s.FailedNames()
	for _, c := range s.Cycles {
		r.Initialize.Cycles = append(r.Initialize.Cycles, strings.Join(c.Cycle, " -> "))
		r.Errors = append(r.Errors, "initialize: "+c.Error())
	}
	for _, m := range s.Missing {
		r.Initialize.Missing = append(r.Initialize.Missing, fmt.Sprintf("%s requires %s", filepath.ToSlash(m.Module), m.URL))
	}
	for _, f := range s.Failed {
		r.Errors = append(r.Errors, "initialize: "+f.Err.Error())
	}
}
