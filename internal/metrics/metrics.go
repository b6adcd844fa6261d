package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the blog's collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "blog",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blog",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blog",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "route"})

	postsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "blog",
		Name:      "posts_created_total",
		Help:      "Posts created.",
	})

	postsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "blog",
		Name:      "posts_deleted_total",
		Help:      "Posts deleted.",
	})

	comments = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "blog",
		Name:      "comments_total",
		Help:      "Comments added.",
	})

	reactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blog",
		Name:      "reactions_total",
		Help:      "Reaction toggles by kind and resulting state.",
	}, []string{"kind", "result"})

	reports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blog",
		Name:      "reports_total",
		Help:      "Reports filed by theme.",
	}, []string{"theme"})

	logins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blog",
		Name:      "logins_total",
		Help:      "Login attempts by result.",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		postsCreated,
		postsDeleted,
		comments,
		reactions,
		reports,
		logins,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler records request counts and latency per chi route
// pattern, so /posts/1 and /posts/2 share one series.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

func PostCreated() { postsCreated.Inc() }
func PostDeleted() { postsDeleted.Inc() }
func CommentAdded() { comments.Inc() }
func ReportFiled(theme string) { reports.WithLabelValues(theme).Inc() }
func Login(result string) { logins.WithLabelValues(result).Inc() }
func Reaction(kind, result string) { reactions.WithLabelValues(kind, result).Inc() }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
