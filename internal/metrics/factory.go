package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	factoryOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "factory",
		Name:      "operations_total",
		Help:      "Count of factory operations.",
	}, []string{"mode", "operation", "status"})
	factoryOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "factory",
		Name:      "operation_duration_seconds",
		Help:      "Duration of factory operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"mode", "operation", "status"})
)

// Factory tracks affiliate provisioning and credit purchases.
type Factory struct {
	mode string
}

func NewFactory(mode string) *Factory {
	if mode == "" {
		mode = "unknown"
	}
	return &Factory{mode: mode}
}

func (m Factory) Observe(operation string, err error, started time.Time) {
	s := status(err)
	factoryOperationsTotal.WithLabelValues(m.mode, operation, s).Inc()
	factoryOperationDuration.WithLabelValues(m.mode, operation, s).Observe(time.Since(started).Seconds())
}
