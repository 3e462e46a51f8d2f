package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the risk service.
type Metrics struct {
	SimulationsTotal   *prometheus.CounterVec // labels: outcome={success,invalid}
	SimulationDuration prometheus.Histogram
	SimulationSize     prometheus.Histogram
	DataWarnings       *prometheus.CounterVec // labels: kind={missing_data,negative_baseline}

	// Session table metrics.
	SessionLoaded      prometheus.Gauge
	SessionLoads       *prometheus.CounterVec // labels: outcome={success,error}
	SessionLoadSeconds prometheus.Histogram

	// Remote provider metrics.
	RemoteRequests *prometheus.CounterVec   // labels: table={weather,disasters}, outcome={success,error}
	RemoteCache    *prometheus.CounterVec   // labels: table={weather,disasters}, result={hit,miss}
	RemoteDuration *prometheus.HistogramVec // labels: table={weather,disasters}

	// Result publishing metrics.
	ReportsPublished prometheus.Counter
	PublishErrors    prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// build as many as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SimulationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecorisk",
			Name:      "simulations_total",
			Help:      "Simulation requests by outcome.",
		}, []string{"outcome"}),
		SimulationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ecorisk",
			Name:      "simulation_duration_seconds",
			Help:      "Duration of a complete simulation request.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		SimulationSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ecorisk",
			Name:      "simulation_iterations",
			Help:      "Iterations requested per simulation.",
			Buckets:   []float64{100, 500, 1000, 2500, 5000, 10000, 50000, 100000},
		}),
		DataWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecorisk",
			Name:      "data_warnings_total",
			Help:      "Data-quality fallbacks applied, by kind.",
		}, []string{"kind"}),
		SessionLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ecorisk",
			Name:      "session_loaded",
			Help:      "1 once weather and disaster tables are loaded.",
		}),
		SessionLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecorisk",
			Name:      "session_loads_total",
			Help:      "Table loads by outcome.",
		}, []string{"outcome"}),
		SessionLoadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ecorisk",
			Name:      "session_load_duration_seconds",
			Help:      "Duration of loading both tables from the provider.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		RemoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecorisk",
			Name:      "remote_requests_total",
			Help:      "Remote table requests by table and outcome.",
		}, []string{"table", "outcome"}),
		RemoteCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecorisk",
			Name:      "remote_cache_total",
			Help:      "Remote table cache lookups by table and result.",
		}, []string{"table", "result"}),
		RemoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ecorisk",
			Name:      "remote_request_duration_seconds",
			Help:      "Remote table request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"table"}),
		ReportsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecorisk",
			Name:      "reports_published_total",
			Help:      "Simulation reports written to the results topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecorisk",
			Name:      "publish_errors_total",
			Help:      "Simulation reports that failed to publish.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SimulationsTotal,
		m.SimulationDuration,
		m.SimulationSize,
		m.DataWarnings,
		m.SessionLoaded,
		m.SessionLoads,
		m.SessionLoadSeconds,
		m.RemoteRequests,
		m.RemoteCache,
		m.RemoteDuration,
		m.ReportsPublished,
		m.PublishErrors,
	}
}
