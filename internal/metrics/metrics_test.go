package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestFormatUptime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"zero", 0, "0s"},
		{"seconds", 42 * time.Second, "42s"},
		{"minutes", 5*time.Minute + 10*time.Second, "5min"},
		{"hours and minutes", 2*time.Hour + 3*time.Minute, "2h 3min"},
		{"days skip zero hours", 24*time.Hour + 3*time.Minute, "1d 3min"},
		{"all parts", 50*time.Hour + 30*time.Minute, "2d 2h 30min"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := FormatUptime(tt.d); got != tt.want {
				t.Errorf("FormatUptime(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	m := New(clock)

	s := m.Snapshot()
	if s.TotalQueries != 0 || s.AverageLatency != 0 || s.LastQueryAgo != "" {
		t.Fatalf("fresh snapshot = %+v, want zero counters", s)
	}

	m.RecordQuery("tips", 2*time.Second)
	m.RecordQuery("buscar", 4*time.Second)
	m.RecordError("tips")
	clock.Advance(90 * time.Second)

	s = m.Snapshot()
	if s.TotalQueries != 2 {
		t.Errorf("TotalQueries = %d, want 2", s.TotalQueries)
	}
	if s.AverageLatency != 3*time.Second {
		t.Errorf("AverageLatency = %v, want 3s", s.AverageLatency)
	}
	if s.Errors != 1 {
		t.Errorf("Errors = %d, want 1", s.Errors)
	}
	if s.UptimeText != "1min" || s.LastQueryAgo != "1min" {
		t.Errorf("uptime %q, last query %q, want 1min for both", s.UptimeText, s.LastQueryAgo)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.RecordQuery("tips", time.Second)
	m.RecordError("tips")
	m.CacheHit()
	m.CacheMiss()
	m.RecordRetrievalDegraded()
	m.RecordGenerationFallback()
	m.RecordRerankFallback()
	m.RecordRateLimited()
	m.RecordChunksIngested("live", 3)

	if s := m.Snapshot(); s.TotalQueries != 0 {
		t.Errorf("nil Snapshot().TotalQueries = %d, want 0", s.TotalQueries)
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	t.Parallel()

	m := New(clockwork.NewFakeClock())
	m.RecordQuery("tips", time.Second)
	m.CacheHit()
	m.RecordChunksIngested("export", 7)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`tipsai_queries_total{command="tips"} 1`,
		`tipsai_cache_lookups_total{result="hit"} 1`,
		`tipsai_chunks_ingested_total{source="export"} 7`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
