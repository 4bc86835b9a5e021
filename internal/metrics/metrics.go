package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "easel"

// Metrics holds the collectors for the feed and engagement layer. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	likeOutcomes     *prometheus.CounterVec
	telemetryEvents  *prometheus.CounterVec
	telemetryBatches *prometheus.CounterVec
	feedPages        *prometheus.CounterVec
	likeAnimations   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		likeOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engagement",
				Name:      "like_toggles_total",
				Help:      "Like toggles by outcome.",
			},
			[]string{"outcome"},
		),
		telemetryEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "telemetry",
				Name:      "events_recorded_total",
				Help:      "Telemetry events enqueued by kind.",
			},
			[]string{"kind"},
		),
		telemetryBatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "telemetry",
				Name:      "batches_total",
				Help:      "Telemetry flushes by result.",
			},
			[]string{"result"},
		),
		feedPages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "feed",
				Name:      "page_loads_total",
				Help:      "Feed page loads by result.",
			},
			[]string{"result"},
		),
		likeAnimations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gesture",
				Name:      "like_animations_total",
				Help:      "Double-tap like animations started.",
			},
		),
	}
	m.Registry.MustRegister(m.likeOutcomes, m.telemetryEvents, m.telemetryBatches, m.feedPages, m.likeAnimations)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) LikeOutcome(outcome string) {
	if m == nil {
		return
	}
	m.likeOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TelemetryEvent(kind string) {
	if m == nil {
		return
	}
	m.telemetryEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) TelemetryBatch(result string) {
	if m == nil {
		return
	}
	m.telemetryBatches.WithLabelValues(result).Inc()
}

func (m *Metrics) FeedPage(result string) {
	if m == nil {
		return
	}
	m.feedPages.WithLabelValues(result).Inc()
}

func (m *Metrics) LikeAnimation() {
	if m == nil {
		return
	}
	m.likeAnimations.Inc()
}
