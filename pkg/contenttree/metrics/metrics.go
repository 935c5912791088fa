// Package metrics exposes Prometheus instrumentation for the content tree:
// lifecycle event counters, store operation latencies and HTTP request metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tendant/content-tree/pkg/contenttree"
)

const namespace = "contenttree"

// Recorder holds every collector, registered on one Registerer.
type Recorder struct {
	Events              *prometheus.CounterVec
	DescendantsDeleted  prometheus.Counter
	StoreOperations     *prometheus.CounterVec
	StoreDuration       *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		Events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "events_total",
				Help:      "Total number of content lifecycle events",
			},
			[]string{"event"},
		),
		DescendantsDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "descendants_deleted_total",
				Help:      "Total number of descendants soft-deleted by cascading deletes",
			},
		),
		StoreOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Total number of document store operations",
			},
			[]string{"store", "op", "status"},
		),
		StoreDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operation_duration_seconds",
				Help:      "Document store operation duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"store", "op"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
	}
}

// EventSink returns a contenttree.EventSink that counts lifecycle events.
func (r *Recorder) EventSink() contenttree.EventSink {
	return &eventSink{r: r}
}

type eventSink struct {
	r *Recorder
}

func (s *eventSink) ContentCreated(ctx context.Context, content *contenttree.Content) error {
	s.r.Events.WithLabelValues("created").Inc()
	return nil
}

func (s *eventSink) ContentUpdated(ctx context.Context, content *contenttree.Content) error {
	s.r.Events.WithLabelValues("updated").Inc()
	return nil
}

func (s *eventSink) ContentPublished(ctx context.Context, published *contenttree.PublishedContent) error {
	s.r.Events.WithLabelValues("published").Inc()
	return nil
}

func (s *eventSink) ContentDeleted(ctx context.Context, content *contenttree.Content, descendants int64) error {
	s.r.Events.WithLabelValues("deleted").Inc()
	s.r.DescendantsDeleted.Add(float64(descendants))
	return nil
}

// Middleware records request counts and latencies per chi route pattern.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		route := "unmatched"
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		r.HTTPRequestsTotal.WithLabelValues(req.Method, route, strconv.Itoa(status)).Inc()
		r.HTTPRequestDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
	})
}
