// Package metrics exposes Prometheus collectors for the sheets connector.
//
// # Overview
//
// Every scan touches four stages: credential acquisition, the HTTP fetch,
// response parsing and row production. Each stage has a collector here:
//
//	metrics.ScansTotal.WithLabelValues(metrics.StatusSuccess).Inc()
//	metrics.RowsProduced.Add(float64(n))
//
//	timer := metrics.NewTimer("fetch")
//	body, err := fetch()
//	metrics.FetchDuration.Observe(timer.Stop().Seconds())
//
// All collectors are registered with the default Prometheus registry on
// package load, so a process only has to mount promhttp.Handler() to export
// them.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values shared by the collectors.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"

	OutcomeSuccess   = "success"
	OutcomeRetry     = "retry"
	OutcomePermanent = "permanent"
)

const namespace = "sheets"

var (
	// ScansTotal counts finished scans.
	// Labels: status (success/failure)
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Total number of scans, by final status",
		},
		[]string{"status"},
	)

	// RowsProduced counts rows handed to the host.
	RowsProduced = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Total number of rows produced by scans",
		},
	)

	// FetchAttempts counts individual HTTP attempts.
	// Labels: outcome (success/retry/permanent)
	FetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Total number of HTTP fetch attempts, by outcome",
		},
		[]string{"outcome"},
	)

	// FetchDuration tracks the wall time of a whole fetch, retries included.
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of spreadsheet fetches including retries",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// TokenAcquisitions counts credential exchanges.
	// Labels: status (success/failure)
	TokenAcquisitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_acquisitions_total",
			Help:      "Total number of service account token exchanges",
		},
		[]string{"status"},
	)
)

// Status maps an error to a status label value.
func Status(err error) string {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures the duration of one operation.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the name the timer was created with.
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// LatencyTracker keeps a bounded ring of recent durations for percentile
// queries. Safe for concurrent use.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
}

// NewLatencyTracker creates a tracker holding at most maxSize samples.
func NewLatencyTracker(maxSize int) *LatencyTracker {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &LatencyTracker{samples: make([]time.Duration, maxSize)}
}

// Record adds a sample, overwriting the oldest once the ring is full.
func (l *LatencyTracker) Record(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.samples[l.next] = d
	l.next = (l.next + 1) % len(l.samples)
	if l.next == 0 {
		l.full = true
	}
}

// Count returns the number of samples held.
func (l *LatencyTracker) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.countLocked()
}

func (l *LatencyTracker) countLocked() int {
	if l.full {
		return len(l.samples)
	}
	return l.next
}

// Percentile returns the sample at percentile p (0-100), or zero when empty.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.Lock()
	n := l.countLocked()
	sorted := make([]time.Duration, n)
	copy(sorted, l.samples[:n])
	l.mu.Unlock()

	if n == 0 {
		return 0
	}
	insertionSort(sorted)

	idx := int(float64(n-1) * p / 100)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// Average returns the mean of the held samples.
func (l *LatencyTracker) Average() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.countLocked()
	if n == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range l.samples[:n] {
		total += d
	}
	return total / time.Duration(n)
}

// insertionSort is enough for the small rings used here.
func insertionSort(d []time.Duration) {
	for i := 1; i < len(d); i++ {
		for j := i; j > 0 && d[j] < d[j-1]; j-- {
			d[j], d[j-1] = d[j-1], d[j]
		}
	}
}
