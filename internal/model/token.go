package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TransferKind classifies an asset transfer for taxation.
type TransferKind string

var (
	// TransferBuy is a transfer out of a liquidity pair.
	TransferBuy TransferKind = "buy"
	// TransferSell is a transfer into a liquidity pair.
	TransferSell TransferKind = "sell"
	// TransferPlain is any other transfer.
	TransferPlain TransferKind = "transfer"
)

// TaxState is the fee configuration and accumulator of the asset contract.
type TaxState struct {
	BuyFeeBps            uint64
	SellFeeBps           uint64
	Accumulated          *uint256.Int
	Treasury             common.Address
	LiquidationThreshold *uint256.Int
}

// AntiSnipeState bounds buys for a window after trading activation.
type AntiSnipeState struct {
	LaunchTime    time.Time
	Window        time.Duration
	MaxTxBps      uint64
	MaxWalletBps  uint64
	LimitsRemoved bool
}

// ActiveAt reports whether the caps apply at now.
func (s AntiSnipeState) ActiveAt(now time.Time) bool {
	if s.LimitsRemoved || s.LaunchTime.IsZero() {
		return false
	}
	return now.Before(s.LaunchTime.Add(s.Window))
}
