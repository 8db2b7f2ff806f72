package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/shift-ledger-api/internal/models"
)

// MetricsService owns the Prometheus registry for HTTP traffic, workflow
// transitions, the auto-approval sweep and background delivery.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheLookups    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	sweeps          *prometheus.CounterVec
	sweepDuration   prometheus.Observer
	sweepAffected   prometheus.Counter
	sweepSkipped    prometheus.Counter
	lastSweep       prometheus.Gauge
	payouts         *prometheus.CounterVec
	notifications   *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers all collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by outcome",
	}, []string{"result"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timecard_transitions_total",
		Help: "Timecard status transitions",
	}, []string{"from", "to"})

	sweeps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auto_approval_sweeps_total",
		Help: "Auto-approval sweeps by outcome",
	}, []string{"result"})

	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "auto_approval_sweep_duration_seconds",
		Help:    "Duration of auto-approval sweeps",
		Buckets: prometheus.DefBuckets,
	})

	sweepAffected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auto_approval_affected_total",
		Help: "Timecards moved to AUTO_APPROVED by the sweep",
	})

	sweepSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auto_approval_skipped_total",
		Help: "Overdue timecards another writer reached first",
	})

	lastSweep := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "auto_approval_last_success_timestamp_seconds",
		Help: "Unix time of the last successful sweep",
	})

	payouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payouts_total",
		Help: "Payout attempts by outcome",
	}, []string{"result"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Timecard notifications by outcome",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHitRatio, cacheLookups,
		transitions, sweeps, sweepDuration, sweepAffected, sweepSkipped, lastSweep, payouts, notifications, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheHitRatio:   cacheHitRatio,
		cacheLookups:    cacheLookups,
		transitions:     transitions,
		sweeps:          sweeps,
		sweepDuration:   sweepDuration,
		sweepAffected:   sweepAffected,
		sweepSkipped:    sweepSkipped,
		lastSweep:       lastSweep,
		payouts:         payouts,
		notifications:   notifications,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry, mostly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveTransition counts a committed status change. An empty from means creation.
func (m *MetricsService) ObserveTransition(from, to models.TimecardStatus) {
	if m == nil {
		return
	}
	label := string(from)
	if label == "" {
		label = "NONE"
	}
	m.transitions.WithLabelValues(label, string(to)).Inc()
}

// ObserveSweep records one auto-approval pass.
func (m *MetricsService) ObserveSweep(affected, skipped int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
	if err != nil {
		m.sweeps.WithLabelValues("failed").Inc()
		return
	}
	m.sweeps.WithLabelValues("succeeded").Inc()
	m.sweepAffected.Add(float64(affected))
	m.sweepSkipped.Add(float64(skipped))
	m.lastSweep.SetToCurrentTime()
}

// ObservePayout counts payout outcomes: settled, failed, skipped or dropped.
func (m *MetricsService) ObservePayout(result string) {
	if m == nil {
		return
	}
	m.payouts.WithLabelValues(result).Inc()
}

// ObserveNotification counts notification outcomes: published, failed or dropped.
func (m *MetricsService) ObserveNotification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}
