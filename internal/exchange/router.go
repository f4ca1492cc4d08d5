// Package exchange is a constant-product native/asset market with a
// router surface shaped like the one the distribution and token contracts
// call on a real network.
package exchange

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/goodnatureofminers/reach-engine/internal/chain"
)

// Router is the swap surface used by the rest of the engine.
type Router interface {
	chain.Contract
	WrappedNative() common.Address
	CreatePair(token common.Address) (common.Address, error)
	GetAmountsOut(amountIn *uint256.Int, path []common.Address) ([]*uint256.Int, error)
	SwapExactNativeForTokens(
		caller common.Address,
		value, minOut *uint256.Int,
		path []common.Address,
		to common.Address,
		deadline uint64,
	) ([]*uint256.Int, error)
	SwapExactTokensForNativeSupportingFeeOnTransferTokens(
		caller common.Address,
		amountIn, minOut *uint256.Int,
		path []common.Address,
		to common.Address,
		deadline uint64,
	) error
	AddLiquidityNative(
		caller, token common.Address,
		amountToken, value *uint256.Int,
		deadline uint64,
	) error
}

// Metrics records swap outcomes.
type Metrics interface {
	ObserveSwap(direction string, err error, started time.Time)
}
