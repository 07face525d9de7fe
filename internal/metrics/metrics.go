// Package metrics exposes Prometheus counters for integrity scans and repairs.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	violationsTotal *prometheus.CounterVec
	fixesTotal      *prometheus.CounterVec
	failedChecks    *prometheus.CounterVec
	scansTotal      *prometheus.CounterVec
	indexRebuilds   *prometheus.CounterVec
	operationsTotal *prometheus.CounterVec

	scanDuration *prometheus.HistogramVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		violationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "facecheck",
			Name:      "violations_detected_total",
			Help:      "Total number of invariant violations detected by scans.",
		}, []string{"issue_type"}),
		fixesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "facecheck",
			Name:      "fix_rows_total",
			Help:      "Total number of rows touched by fixes.",
		}, []string{"issue_type", "result"}),
		failedChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "facecheck",
			Name:      "failed_checks_total",
			Help:      "Total number of checks that could not be evaluated.",
		}, []string{"issue_type"}),
		scansTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "facecheck",
			Name:      "scans_total",
			Help:      "Total number of integrity scans by status.",
		}, []string{"status"}),
		indexRebuilds: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "facecheck",
			Name:      "index_rebuilds_total",
			Help:      "Total number of similarity index rebuilds.",
		}, []string{"result"}),
		operationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "facecheck",
			Name:      "operations_total",
			Help:      "Total number of operator actions (merge, delete, audit...).",
		}, []string{"operation", "result"}),
		scanDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "facecheck",
			Name:      "scan_duration_seconds",
			Help:      "Latency distribution for integrity scans.",
			Buckets: []float64{
				0.05, 0.1, 0.25, 0.5,
				1, 2.5, 5, 10,
				30, 60, 120, 300,
			},
		}, []string{"status"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

// RecordScan records a finished scan with its per-type counts and failed checks.
func RecordScan(status string, duration time.Duration, counts map[string]int, failed []string) {
	m := getMetrics()
	m.scansTotal.WithLabelValues(status).Inc()
	m.scanDuration.WithLabelValues(status).Observe(duration.Seconds())
	for issueType, n := range counts {
		if n > 0 {
			m.violationsTotal.WithLabelValues(issueType).Add(float64(n))
		}
	}
	for _, issueType := range failed {
		m.failedChecks.WithLabelValues(issueType).Inc()
	}
}

// RecordFix records the rows a fix changed and the rows it could not change.
func RecordFix(issueType string, fixed, failed int) {
	m := getMetrics()
	if fixed > 0 {
		m.fixesTotal.WithLabelValues(issueType, "fixed").Add(float64(fixed))
	}
	if failed > 0 {
		m.fixesTotal.WithLabelValues(issueType, "failed").Add(float64(failed))
	}
}

// RecordIndexRebuild records one index rebuild attempt.
func RecordIndexRebuild(ok bool) {
	getMetrics().indexRebuilds.WithLabelValues(resultLabel(ok)).Inc()
}

// RecordOperation records one operator action.
func RecordOperation(operation string, err error) {
	getMetrics().operationsTotal.WithLabelValues(operation, resultLabel(err == nil)).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
