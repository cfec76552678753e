package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	catchmentRuns *prometheus.CounterVec
	unmatched     prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "genet",
			Name:      "http_requests_total",
			Help:      "Number of http requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "genet",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of http requests by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		catchmentRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "genet",
			Name:      "catchment_searches_total",
			Help:      "Number of catchment searches by outcome.",
		}, []string{"outcome"}),
		unmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "genet",
			Name:      "catchment_unmatched_points_total",
			Help:      "Number of points left without a link by catchment searches.",
		}),
	}
	reg.MustRegister(m.httpRequests, m.httpDuration, m.catchmentRuns, m.unmatched)
	return m
}

// PromeHttpMiddleware records request count and latency labelled by the chi route pattern, so
// ids in the path do not blow up label cardinality.
func PromeHttpMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}

func (m *Metrics) observeCatchment(outcome string, unmatched int) {
	if m == nil {
		return
	}
	m.catchmentRuns.WithLabelValues(outcome).Inc()
	m.unmatched.Add(float64(unmatched))
}
