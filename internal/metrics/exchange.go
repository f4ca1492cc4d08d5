package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	exchangeSwapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "exchange",
		Name:      "swaps_total",
		Help:      "Count of AMM swaps by direction.",
	}, []string{"direction", "status"})
	exchangeSwapDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "exchange",
		Name:      "swap_duration_seconds",
		Help:      "Duration of AMM swaps.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"direction", "status"})
)

type Exchange struct{}

func NewExchange() *Exchange {
	return &Exchange{}
}

func (m Exchange) ObserveSwap(direction string, err error, started time.Time) {
	s := status(err)
	exchangeSwapsTotal.WithLabelValues(direction, s).Inc()
	exchangeSwapDuration.WithLabelValues(direction, s).Observe(time.Since(started).Seconds())
}
