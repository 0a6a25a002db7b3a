package pipeline

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
)

// Metrics counts extraction runs by source and terminal status.
type Metrics struct {
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
}

// NewMetrics builds the extraction metrics and registers them on reg. A nil
// registerer keeps them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "takeoff_extractions_total",
				Help: "Extraction runs by source and terminal status",
			},
			[]string{"source", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "takeoff_extraction_duration_seconds",
				Help: "Wall time of extraction runs",
				// 100ms up to ~7 minutes
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 13),
			},
			[]string{"source"},
		),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.runsTotal, m.runDuration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register extraction metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observe(source constants.ExtractionSource, status constants.ExtractionStatus, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(string(source), string(status)).Inc()
	m.runDuration.WithLabelValues(string(source)).Observe(elapsed.Seconds())
}
