package observability

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"gymdir/internal/domain"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gymdir", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gymdir", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gymdir", Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gymdir", Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gymdir", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
	Approvals = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gymdir", Name: "approvals_total", Help: "Candidate approvals by gym action and outcome."},
		[]string{"action", "outcome"}, // outcome: applied|dry_run|conflict|not_found|invalid|error
	)
	ApprovalLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gymdir", Name: "approval_duration_seconds",
			Help:    "Approval transaction duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	EquipmentActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gymdir", Name: "equipment_actions_total", Help: "Applied equipment plan entries."},
		[]string{"action"}, // insert|merge|skip
	)
	Classifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gymdir", Name: "classifications_total", Help: "Batch classifier verdicts."},
		[]string{"verdict"},
	)
	IngestEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gymdir", Name: "ingest_events_total", Help: "Feed items by ingestion outcome."},
		[]string{"outcome"}, // created|known|invalid|error
	)
)

// Serve exposes reg on a side port; an empty addr disables it.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency, CacheEvents,
		Approvals, ApprovalLatency, EquipmentActions, Classifications, IngestEvents)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveApproval(action, outcome string, dur time.Duration) {
	if action == "" {
		action = "none"
	}
	Approvals.WithLabelValues(action, outcome).Inc()
	ApprovalLatency.Observe(dur.Seconds())
}

func ObserveEquipment(action string, n int) {
	if n > 0 {
		EquipmentActions.WithLabelValues(action).Add(float64(n))
	}
}

func ObserveClassification(verdict string, n int) {
	if n > 0 {
		Classifications.WithLabelValues(verdict).Add(float64(n))
	}
}

func ObserveIngest(outcome string) { IngestEvents.WithLabelValues(outcome).Inc() }

// LabelErr maps an error onto a low-cardinality label.
func LabelErr(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidPayload):
		return "invalid"
	case errors.Is(err, domain.ErrInfrastructure):
		return "infrastructure"
	}
	return fmt.Sprintf("%T", err)
}
