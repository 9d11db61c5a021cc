package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/blackmichael/novelle/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	feedPages      *prometheus.CounterVec
	interactions   *prometheus.CounterVec
	sequenceValues *prometheus.CounterVec
}

// New registers the collectors on r. The gatherer g backs Handler; pass the
// same registry for both, or prometheus.DefaultRegisterer and
// prometheus.DefaultGatherer.
func New(r prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	f := promauto.With(r)
	return &Metrics{
		gatherer: g,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "novelle_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "novelle_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		feedPages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "novelle_feed_pages_total",
			Help: "Feed pages served, by outcome",
		}, []string{"outcome"}),
		interactions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "novelle_interactions_total",
			Help: "Completed interaction toggles by kind and action",
		}, []string{"kind", "action"}),
		sequenceValues: f.NewCounterVec(prometheus.CounterOpts{
			Name: "novelle_sequence_values_total",
			Help: "Sequence values requested, by sequence name and outcome",
		}, []string{"sequence", "outcome"}),
	}
}

// Handler serves the gathered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served request. route is the mux pattern, not the
// raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// FeedPage records the outcome of one feed request.
func (m *Metrics) FeedPage(err error) {
	m.feedPages.WithLabelValues(outcome(err)).Inc()
}

// Notify counts interaction toggles. It implements domain.InteractionNotifier.
func (m *Metrics) Notify(_ context.Context, event domain.InteractionEvent) error {
	m.interactions.WithLabelValues(string(event.Kind), string(event.Action)).Inc()
	return nil
}

// Sequencer wraps next so every NextValue call is counted.
func (m *Metrics) Sequencer(next domain.Sequencer) domain.Sequencer {
	return &countingSequencer{next: next, values: m.sequenceValues}
}

type countingSequencer struct {
	next   domain.Sequencer
	values *prometheus.CounterVec
}

func (s *countingSequencer) NextValue(ctx context.Context, name string, startAt int64) (int64, error) {
	v, err := s.next.NextValue(ctx, name, startAt)
	s.values.WithLabelValues(name, outcome(err)).Inc()
	return v, err
}

func (s *countingSequencer) Ensure(ctx context.Context, name string, startAt int64) error {
	return s.next.Ensure(ctx, name, startAt)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrSequenceUnavailable), errors.Is(err, domain.ErrFeedUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
