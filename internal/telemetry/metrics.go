package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stackctl"

// Metrics collects the engine counters, registered on a private registry so
// runs embedded in other processes never collide with a global one.
type Metrics struct {
	registry *prometheus.Registry

	APICalls         *prometheus.CounterVec
	APIRetries       prometheus.Counter
	APIFailures      prometheus.Counter
	TeardownWarnings prometheus.Counter
	RunDuration      prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		APICalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_calls_total",
			Help:      "Cloud CLI commands issued, labeled by command.",
		}, []string{"command"}),
		APIRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_retries_total",
			Help:      "Cloud CLI attempts that had to be retried.",
		}),
		APIFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_failures_total",
			Help:      "Cloud CLI commands that failed after all retries.",
		}),
		TeardownWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "teardown_warnings_total",
			Help:      "Teardown operations that failed and were skipped.",
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall clock duration of the last completed run.",
		}),
	}

	m.registry.MustRegister(m.APICalls, m.APIRetries, m.APIFailures, m.TeardownWarnings, m.RunDuration)

	return m
}

// Handler exposes the registry for the --metrics-listen endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
