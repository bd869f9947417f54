package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/warden/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "warden"

// Metrics holds the collectors of all drivers in a process.
type Metrics struct {
	registry *prometheus.Registry

	starts    *prometheus.CounterVec
	restarts  *prometheus.CounterVec
	exits     *prometheus.CounterVec
	responses *prometheus.CounterVec
	routed    *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	workerUp  *prometheus.GaugeVec
}

// Option configures Metrics.
type Option func(*options)

type options struct {
	runtime bool
}

// WithRuntimeCollectors also exports Go runtime and process metrics.
func WithRuntimeCollectors() Option {
	return func(o *options) {
		o.runtime = true
	}
}

// NewMetrics creates collectors registered on a private registry.
func NewMetrics(opts ...Option) *Metrics {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		starts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_starts_total",
			Help:      "Total number of worker processes launched.",
		}, []string{"driver"}),
		restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restarts_total",
			Help:      "Total number of worker launches after the first.",
		}, []string{"driver"}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_exits_total",
			Help:      "Total number of worker exits, by outcome.",
		}, []string{"driver", "outcome"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Total number of responses dispatched, by kind.",
		}, []string{"driver", "kind"}),
		routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_routed_total",
			Help:      "Total number of signals enqueued for a worker.",
		}, []string{"driver"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_dropped_total",
			Help:      "Total number of signals addressed to a driver that could not be enqueued.",
		}, []string{"driver"}),
		workerUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_up",
			Help:      "Whether the current worker process is alive (1) or not (0).",
		}, []string{"driver"}),
	}

	m.registry.MustRegister(m.starts, m.restarts, m.exits, m.responses, m.routed, m.dropped, m.workerUp)
	if o.runtime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnKickstart: func(_ context.Context, e *domain.ProcessEvent) {
			if e.Err != nil {
				return
			}
			m.starts.WithLabelValues(e.Driver).Inc()
			if e.Generation > 1 {
				m.restarts.WithLabelValues(e.Driver).Inc()
			}
			m.workerUp.WithLabelValues(e.Driver).Set(1)
		},
		OnExit: func(_ context.Context, e *domain.ProcessEvent) {
			outcome := "clean"
			if e.Err != nil {
				outcome = "error"
			}
			m.exits.WithLabelValues(e.Driver, outcome).Inc()
			m.workerUp.WithLabelValues(e.Driver).Set(0)
		},
		OnResponse: func(_ context.Context, e *domain.ResponseEvent) {
			m.responses.WithLabelValues(e.Driver, e.Response.Kind.String()).Inc()
		},
		OnSignal: func(_ context.Context, e *domain.SignalEvent) {
			m.routed.WithLabelValues(e.Driver).Inc()
		},
		OnDropped: func(_ context.Context, e *domain.SignalEvent) {
			m.dropped.WithLabelValues(e.Driver).Inc()
		},
	}
}
