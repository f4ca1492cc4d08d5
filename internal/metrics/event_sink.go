package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventSinkFlushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "event_sink",
		Name:      "flush_total",
		Help:      "Count of event batch flushes.",
	}, []string{"status"})
	eventSinkFlushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "event_sink",
		Name:      "flush_duration_seconds",
		Help:      "Duration of event batch flushes.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})
	eventSinkBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "event_sink",
		Name:      "batch_size",
		Help:      "Number of events per flushed batch.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1..2048
	})
	eventSinkDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "event_sink",
		Name:      "dropped_total",
		Help:      "Events that could not be encoded or queued.",
	})
)

// EventSink tracks the ledger-to-ClickHouse event writer.
type EventSink struct{}

func NewEventSink() *EventSink {
	return &EventSink{}
}

func (m EventSink) ObserveFlush(err error, size int, started time.Time) {
	s := status(err)
	eventSinkFlushTotal.WithLabelValues(s).Inc()
	eventSinkFlushDuration.WithLabelValues(s).Observe(time.Since(started).Seconds())
	if err == nil {
		eventSinkBatchSize.Observe(float64(size))
	}
}

func (m EventSink) ObserveDropped() {
	eventSinkDroppedTotal.Inc()
}
