package observability

import (
	"fmt"
	"github.com/rs/zerolog/log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "staylist"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
	WizardTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "wizard_transitions_total", Help: "Step navigation requests."},
		[]string{"step", "outcome"}, // outcome: moved|blocked|stay
	)
	AutosaveEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "wizard_autosave_total", Help: "Autosave ticks by outcome."},
		[]string{"outcome"}, // outcome: saved|unchanged|skipped|failed
	)
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "wizard_submissions_total", Help: "Listing submissions."},
		[]string{"mode", "outcome"}, // mode: create|update
	)
	PhotoIngests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "wizard_photo_ingests_total", Help: "Photos added by source and outcome."},
		[]string{"source", "outcome"}, // source: upload|url
	)
	GateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "wizard_gate_decisions_total", Help: "Auth gate results."},
		[]string{"outcome"}, // outcome: allowed|expired|denied|cancelled
	)
	ActiveWizards = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "wizard_sessions_active", Help: "Open wizard sessions."},
	)
)

// Serve exposes /metrics on addr in the background. Empty addr disables it.
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
		WizardTransitions, AutosaveEvents, Submissions, PhotoIngests, GateDecisions, ActiveWizards)
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

func ObserveTransition(step, outcome string) { WizardTransitions.WithLabelValues(step, outcome).Inc() }
func ObserveAutosave(outcome string)         { AutosaveEvents.WithLabelValues(outcome).Inc() }
func ObserveSubmit(mode, outcome string)     { Submissions.WithLabelValues(mode, outcome).Inc() }
func ObservePhoto(source, outcome string)    { PhotoIngests.WithLabelValues(source, outcome).Inc() }
func ObserveGate(outcome string)             { GateDecisions.WithLabelValues(outcome).Inc() }

func LabelErr(err error) string {
	if err == nil {
		return "none"
	}
	return fmt.Sprintf("%T", err)
}
