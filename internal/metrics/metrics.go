// Package metrics records per-run pipeline metrics in a private Prometheus
// registry that can be dumped in the textfile collector format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "availmap"

type RunMetrics struct {
	registry      *prometheus.Registry
	stageDuration *prometheus.GaugeVec
	observations  prometheus.Counter
	zones         prometheus.Gauge
	carHours      prometheus.Gauge
	lastSuccess   prometheus.Gauge
}

func NewRunMetrics() (*RunMetrics, error) {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each pipeline stage.",
		}, []string{"stage"}),
		observations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_total",
			Help:      "Observations loaded.",
		}),
		zones: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "zones",
			Help:      "Zones produced by the clustering stage.",
		}),
		carHours: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "car_hours",
			Help:      "Total car-hours across all zones.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}

	for _, c := range []prometheus.Collector{m.stageDuration, m.observations, m.zones, m.carHours, m.lastSuccess} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *RunMetrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Set(d.Seconds())
}

func (m *RunMetrics) AddObservations(n int) {
	m.observations.Add(float64(n))
}

func (m *RunMetrics) SetZones(n int, carHours float64) {
	m.zones.Set(float64(n))
	m.carHours.Set(carHours)
}

func (m *RunMetrics) MarkSuccess(t time.Time) {
	m.lastSuccess.Set(float64(t.Unix()))
}

func (m *RunMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteToTextfile writes the registry to path for node_exporter's textfile collector.
func (m *RunMetrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
