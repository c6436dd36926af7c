package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	alertsResolved  *prometheus.CounterVec
	trialsExpired   prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetgrid_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleetgrid_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	alertsResolved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetgrid_compliance_alerts_resolved_total",
		Help: "Compliance alerts resolved, by resolution kind.",
	}, []string{"kind"})
	trialsExpired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fleetgrid_trials_expired_total",
		Help: "Trials transitioned to expired by sweep or on-read evaluation.",
	})
	registry.MustRegister(requests, duration, alertsResolved, trialsExpired)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		alertsResolved:  alertsResolved,
		trialsExpired:   trialsExpired,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveAlertResolved counts a resolved compliance alert.
func (m *Metrics) ObserveAlertResolved(kind string) {
	if m == nil {
		return
	}
	m.alertsResolved.WithLabelValues(kind).Inc()
}

// ObserveTrialExpired counts an expired trial transition.
func (m *Metrics) ObserveTrialExpired() {
	if m == nil {
		return
	}
	m.trialsExpired.Inc()
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)

		route := chi.RouteContext(r.Context())
		pattern := r.URL.Path
		if route != nil {
			if p := route.RoutePattern(); p != "" {
				pattern = p
			}
		}
		m.requestsTotal.WithLabelValues(pattern, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(pattern).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
