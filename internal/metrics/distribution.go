package metrics

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goodnatureofminers/reach-engine/internal/model"
)

var (
	distributionOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "distribution",
		Name:      "operations_total",
		Help:      "Count of distribution operations.",
	}, []string{"kind", "operation", "status"})
	distributionOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "distribution",
		Name:      "operation_duration_seconds",
		Help:      "Duration of distribution operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind", "operation", "status"})
	distributionPoolBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "distribution",
		Name:      "pool_balance",
		Help:      "Pool balances per instance, in whole tokens.",
	}, []string{"instance", "pool"})
	distributionCommitmentVersion = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "distribution",
		Name:      "commitment_version",
		Help:      "Current commitment version per instance.",
	}, []string{"instance"})
)

type Distribution struct {
	kind model.InstanceKind
}

func NewDistribution(kind model.InstanceKind) *Distribution {
	if kind == "" {
		kind = "unknown"
	}
	return &Distribution{kind: kind}
}

func (m Distribution) Observe(operation string, err error, started time.Time) {
	s := status(err)
	distributionOperationsTotal.WithLabelValues(string(m.kind), operation, s).Inc()
	distributionOperationDuration.WithLabelValues(string(m.kind), operation, s).Observe(time.Since(started).Seconds())
}

// Pools publishes pool gauges refreshed by the keeper.
type Pools struct{}

func NewPools() *Pools {
	return &Pools{}
}

// Set publishes a snapshot of an instance's pools and commitment version.
func (Pools) Set(instance common.Address, pools model.PoolSet, version uint64) {
	label := instance.Hex()
	distributionPoolBalance.WithLabelValues(label, "leaderboard").Set(model.UnitsFloat(pools.Leaderboard))
	distributionPoolBalance.WithLabelValues(label, "global").Set(model.UnitsFloat(pools.Global))
	distributionPoolBalance.WithLabelValues(label, "reserve").Set(model.UnitsFloat(pools.Reserve))
	distributionCommitmentVersion.WithLabelValues(label).Set(float64(version))
}
