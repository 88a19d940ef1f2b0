package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "angzarr_dispatch_total",
			Help: "Total number of component dispatch operations, by outcome.",
		},
		[]string{"component", "kind", "outcome"},
	)

	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "angzarr_dispatch_duration_seconds",
			Help:    "Duration of component dispatch operations.",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"component", "kind"},
	)
)

// Outcome labels recorded against dispatchTotal.
const (
	OutcomeSuccess       = "success"
	OutcomeRejected      = "rejected"
	OutcomeInvalidArg    = "invalid_argument"
	OutcomeUnsupported   = "unsupported"
	OutcomeInternalError = "internal"
)

// RecordDispatch records one completed dispatch operation's outcome and
// duration for a component instance.
func RecordDispatch(component, kind, outcome string, duration time.Duration) {
	dispatchTotal.WithLabelValues(component, kind, outcome).Inc()
	dispatchDuration.WithLabelValues(component, kind).Observe(duration.Seconds())
}

// Timer starts a stopwatch for one dispatch operation; call Stop with the
// operation's outcome once it completes.
type Timer struct {
	component string
	kind      string
	start     time.Time
}

// NewTimer starts timing a dispatch operation for component/kind.
func NewTimer(component, kind string) *Timer {
	return &Timer{component: component, kind: kind, start: time.Now()}
}

// Stop records the elapsed duration under outcome.
func (t *Timer) Stop(outcome string) {
	RecordDispatch(t.component, t.kind, outcome, time.Since(t.start))
}
