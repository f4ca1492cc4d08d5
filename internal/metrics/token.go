package metrics

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goodnatureofminers/reach-engine/internal/model"
)

var (
	tokenTransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "token",
		Name:      "transfers_total",
		Help:      "Count of token transfers by kind.",
	}, []string{"kind", "status"})
	tokenTransferDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "token",
		Name:      "transfer_duration_seconds",
		Help:      "Duration of token transfers, including fee liquidation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind", "status"})
	tokenFeesCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "token",
		Name:      "fees_collected_tokens_total",
		Help:      "Transfer fees collected, in whole tokens.",
	}, []string{"kind"})
	tokenLiquidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "token",
		Name:      "liquidations_total",
		Help:      "Count of fee liquidation attempts.",
	}, []string{"status"})
	tokenLiquidationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "token",
		Name:      "liquidation_duration_seconds",
		Help:      "Duration of fee liquidation swaps.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})
)

type Token struct{}

func NewToken() *Token {
	return &Token{}
}

func (m Token) ObserveTransfer(kind model.TransferKind, err error, started time.Time) {
	s := status(err)
	tokenTransfersTotal.WithLabelValues(string(kind), s).Inc()
	tokenTransferDuration.WithLabelValues(string(kind), s).Observe(time.Since(started).Seconds())
}

func (m Token) ObserveFee(kind model.TransferKind, amount *uint256.Int) {
	tokenFeesCollected.WithLabelValues(string(kind)).Add(model.UnitsFloat(amount))
}

// ObserveLiquidation counts failures too; a failed liquidation never fails the transfer.
func (m Token) ObserveLiquidation(err error, started time.Time) {
	s := status(err)
	tokenLiquidationsTotal.WithLabelValues(s).Inc()
	tokenLiquidationDuration.WithLabelValues(s).Observe(time.Since(started).Seconds())
}
