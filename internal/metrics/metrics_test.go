// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	internaltestutil "github.com/adhd-framework/adhd/internal/testutil"
)

func TestRecorder_Counters(t *testing.T) {
	t.Parallel()

	r := New()
	r.SourceVisited(true)
	r.SourceVisited(true)
	r.SourceVisited(false)
	r.SetLevels(2)
	r.Placement("cloned")
	r.Placement("kept")
	r.Placement("kept")
	r.Initialized(true)
	r.Initialized(false)
	r.Cycles(1)
	r.Missing(3)
	r.Refreshed(true)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"fetched sources", r.sourcesTotal.WithLabelValues("fetched"), 2},
		{"unavailable sources", r.sourcesTotal.WithLabelValues("unavailable"), 1},
		{"levels", r.levels, 2},
		{"cloned", r.placements.WithLabelValues("cloned"), 1},
		{"kept", r.placements.WithLabelValues("kept"), 2},
		{"init succeeded", r.initResults.WithLabelValues("succeeded"), 1},
		{"init failed", r.initResults.WithLabelValues("failed"), 1},
		{"cycles", r.cyclesTotal, 1},
		{"missing", r.missingTotal, 3},
		{"refresh succeeded", r.refreshResults.WithLabelValues("succeeded"), 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRecorder_PhaseDuration(t *testing.T) {
	t.Parallel()

	r := New(WithBuckets([]float64{1, 10}))
	r.ObservePhase(PhaseDiscovery, 500*time.Millisecond)
	r.Since(PhaseInitialize, time.Now())

	if n := testutil.CollectAndCount(r.phaseDuration); n != 2 {
		t.Errorf("phase series = %d, want 2", n)
	}
}

func TestRecorder_NamespaceAndLabels(t *testing.T) {
	t.Parallel()

	r := New(WithNamespace("boot"), WithConstLabels(prometheus.Labels{"project": "demo"}))
	r.Cycles(2)

	expected := `
# HELP boot_initialize_cycles_total Dependency cycles detected
# TYPE boot_initialize_cycles_total counter
boot_initialize_cycles_total{project="demo"} 2
`
	if err := testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected), "boot_initialize_cycles_total"); err != nil {
		t.Error(err)
	}
}

func TestRecorder_WriteTextfile(t *testing.T) {
	t.Parallel()

	r := New()
	r.Placement("replaced")

	path := filepath.Join(t.TempDir(), "adhd.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data := internaltestutil.MustReadFile(t, path)
	if !strings.Contains(data, `adhd_materialize_placements_total{action="replaced"} 1`) {
		t.Errorf("textfile missing placement counter:\n%s", data)
	}

	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom")); err == nil {
		t.Error("expected error for a missing directory")
	}
}
