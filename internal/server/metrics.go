package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/conneroisu/whiteboard/internal/app"
	"github.com/conneroisu/whiteboard/internal/events"
	"github.com/conneroisu/whiteboard/internal/history"
)

type Metrics struct {
	SessionsActive   prometheus.Gauge
	ModulesStarted   prometheus.Counter
	ModulesStopped   prometheus.Counter
	Broadcasts       prometheus.Counter
	Navigations      prometheus.Counter
	RouteDispatch    prometheus.Histogram
	FramesReceived   *prometheus.CounterVec
	ReloadsTriggered prometheus.Counter
}

// NewMetrics registers the dev server metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "whiteboard_sessions_active",
			Help: "Number of connected page sessions",
		}),
		ModulesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "whiteboard_modules_started_total",
			Help: "Total number of module instances started",
		}),
		ModulesStopped: factory.NewCounter(prometheus.CounterOpts{
			Name: "whiteboard_modules_stopped_total",
			Help: "Total number of module instances stopped",
		}),
		Broadcasts: factory.NewCounter(prometheus.CounterOpts{
			Name: "whiteboard_broadcasts_total",
			Help: "Total number of completed broadcasts",
		}),
		Navigations: factory.NewCounter(prometheus.CounterOpts{
			Name: "whiteboard_navigations_total",
			Help: "Total number of URL changes made by the router",
		}),
		RouteDispatch: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "whiteboard_route_dispatch_duration_seconds",
			Help:    "Time spent in route handlers",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "whiteboard_frames_received_total",
			Help: "Total number of websocket frames received, by type",
		}, []string{"type"}),
		ReloadsTriggered: factory.NewCounter(prometheus.CounterOpts{
			Name: "whiteboard_reloads_total",
			Help: "Total number of reloads sent after file changes",
		}),
	}
}

// Observe counts a's lifecycle, broadcast and router events.
func (m *Metrics) Observe(a *app.Application) {
	a.On(app.EventModuleStart, count(m.ModulesStarted))
	a.On(app.EventModuleStop, count(m.ModulesStopped))
	a.On(app.EventBroadcast, count(m.Broadcasts))
	a.Router().On(history.EventNavigate, count(m.Navigations))
	a.Router().On(history.EventRoute, events.NewListener(func(ev events.Event) error {
		if re, ok := ev.Data.(history.RouteEvent); ok {
			m.RouteDispatch.Observe(re.Duration.Seconds())
		}
		return nil
	}))
}

func count(c prometheus.Counter) *events.Listener {
	return events.NewListener(func(events.Event) error {
		c.Inc()
		return nil
	})
}
