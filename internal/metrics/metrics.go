package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeOK labels successful evaluations.
	OutcomeOK = "ok"
	// OutcomeInvalid labels evaluations rejected for bad input.
	OutcomeInvalid = "invalid"
	// OutcomeError labels evaluations that failed for other reasons.
	OutcomeError = "error"
)

var (
	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sigmachart",
			Name:      "evaluations_total",
			Help:      "Total number of process evaluations handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	renderSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sigmachart",
			Name:      "render_seconds",
			Help:      "Chart rendering latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)
)

// Register attaches sigmachart collectors to the supplied Prometheus
// registerer. Already-registered collectors are tolerated so tests can
// register repeatedly.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		evaluationsTotal,
		renderSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveEvaluation counts an evaluation by outcome label.
func ObserveEvaluation(outcome string) {
	switch outcome {
	case OutcomeOK, OutcomeInvalid, OutcomeError:
	default:
		outcome = OutcomeError
	}
	evaluationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRender records how long one chart render took.
func ObserveRender(duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	renderSeconds.Observe(duration.Seconds())
}
