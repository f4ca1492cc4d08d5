package engine

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/goodnatureofminers/reach-engine/internal/distribution"
	"github.com/goodnatureofminers/reach-engine/internal/exchange"
	"github.com/goodnatureofminers/reach-engine/internal/factory"
	"github.com/goodnatureofminers/reach-engine/internal/model"
	"github.com/goodnatureofminers/reach-engine/internal/token"
)

type (
	PoolGauge interface {
		Set(instance common.Address, pools model.PoolSet, version uint64)
	}

	// Metrics bundles the recorders handed to each deployed contract.
	Metrics struct {
		Token     token.Metrics
		Exchange  exchange.Metrics
		Main      distribution.Metrics
		Affiliate distribution.Metrics
		Factory   factory.Metrics
		Pools     PoolGauge
	}
)
