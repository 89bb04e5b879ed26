// Package metrics holds the Prometheus instruments of the bot and the
// in-process counters behind the /health command.
package metrics

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tipsai"

// Metrics groups all Prometheus instruments used by the bot. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry
	clock    clockwork.Clock
	start    time.Time

	Queries            *prometheus.CounterVec
	QueryLatency       prometheus.Histogram
	Errors             *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
	RetrievalDegraded  prometheus.Counter
	GenerationFallback prometheus.Counter
	RerankFallback     prometheus.Counter
	RateLimited        prometheus.Counter
	ChunksIngested     *prometheus.CounterVec

	mu           sync.Mutex
	totalQueries int
	totalLatency time.Duration
	errorCount   int
	lastQuery    time.Time
}

// Snapshot is the state reported by /health and /healthz.
type Snapshot struct {
	Uptime         time.Duration `json:"-"`
	UptimeText     string        `json:"uptime"`
	TotalQueries   int           `json:"total_queries"`
	AverageLatency time.Duration `json:"-"`
	AverageSeconds float64       `json:"avg_latency_seconds"`
	Errors         int           `json:"errors"`
	LastQueryAgo   string        `json:"last_query_ago,omitempty"`
}

// New creates the instruments on a private registry.
func New(clock clockwork.Clock) *Metrics {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		clock:    clock,
		start:    clock.Now(),
		Queries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Answered queries by command.",
		}, []string{"command"}),
		QueryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_latency_seconds",
			Help:      "End-to-end latency of answered queries.",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 8, 13, 20, 30},
		}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Failed queries by command.",
		}, []string{"command"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by result.",
		}, []string{"result"}),
		RetrievalDegraded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_degraded_total",
			Help:      "Answers generated without retrieval because the store failed.",
		}),
		GenerationFallback: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_fallback_total",
			Help:      "Generations retried on the fallback model.",
		}),
		RerankFallback: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rerank_fallback_total",
			Help:      "Reranks that kept the original order.",
		}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests denied by the rate limiter.",
		}),
		ChunksIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_ingested_total",
			Help:      "Chunks upserted by source.",
		}, []string{"source"}),
	}
}

// RecordQuery records a successful query and its latency.
func (m *Metrics) RecordQuery(command string, d time.Duration) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(command).Inc()
	m.QueryLatency.Observe(d.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalQueries++
	m.totalLatency += d
	m.lastQuery = m.clock.Now()
}

// RecordError records a failed query.
func (m *Metrics) RecordError(command string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(command).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount++
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheLookups.WithLabelValues("hit").Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheLookups.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) RecordRetrievalDegraded() {
	if m != nil {
		m.RetrievalDegraded.Inc()
	}
}

func (m *Metrics) RecordGenerationFallback() {
	if m != nil {
		m.GenerationFallback.Inc()
	}
}

func (m *Metrics) RecordRerankFallback() {
	if m != nil {
		m.RerankFallback.Inc()
	}
}

func (m *Metrics) RecordRateLimited() {
	if m != nil {
		m.RateLimited.Inc()
	}
}

// RecordChunksIngested adds n upserted chunks for source.
func (m *Metrics) RecordChunksIngested(source string, n int) {
	if m != nil && n > 0 {
		m.ChunksIngested.WithLabelValues(source).Add(float64(n))
	}
}

// Snapshot returns the current health counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{UptimeText: FormatUptime(0)}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	s := Snapshot{
		Uptime:       now.Sub(m.start),
		TotalQueries: m.totalQueries,
		Errors:       m.errorCount,
	}
	s.UptimeText = FormatUptime(s.Uptime)
	if m.totalQueries > 0 {
		s.AverageLatency = m.totalLatency / time.Duration(m.totalQueries)
		s.AverageSeconds = s.AverageLatency.Seconds()
	}
	if !m.lastQuery.IsZero() {
		s.LastQueryAgo = FormatUptime(now.Sub(m.lastQuery))
	}
	return s
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// FormatUptime renders d with its non-zero day, hour and minute parts,
// e.g. "1d 3min", or in seconds when shorter than a minute.
func FormatUptime(d time.Duration) string {
	total := int(d.Seconds())
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dmin", minutes))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%ds", total%60)
	}
	return strings.Join(parts, " ")
}
