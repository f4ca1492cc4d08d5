package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Event is a notification emitted by a contract. Events reach subscribers only
// once the operation that emitted them has committed.
type Event interface {
	EventName() string
}

// DistributionPublished is emitted when a new commitment version goes live.
type DistributionPublished struct {
	Root             common.Hash  `json:"root"`
	Version          uint64       `json:"version"`
	FundedSettlement *uint256.Int `json:"fundedSettlement"`
	FundedAsset      *uint256.Int `json:"fundedAsset"`
}

// RewardsClaimed is emitted for every successful claim.
type RewardsClaimed struct {
	Account    common.Address `json:"account"`
	Version    uint64         `json:"version"`
	Settlement *uint256.Int   `json:"settlement"`
	Asset      *uint256.Int   `json:"asset"`
}

// ClaimingToggled is emitted when claiming is paused or resumed.
type ClaimingToggled struct {
	Paused bool `json:"paused"`
}

// MissionCreated is emitted when a mission funds the pools.
type MissionCreated struct {
	ID      string         `json:"id"`
	Amount  *uint256.Int   `json:"amount"`
	Creator common.Address `json:"creator"`
}

// EthSwapped is emitted by the manual settlement-to-asset conversion.
type EthSwapped struct {
	AmountIn  *uint256.Int `json:"amountIn"`
	AmountOut *uint256.Int `json:"amountOut"`
	Forwarded *uint256.Int `json:"forwarded"`
}

// EthAllocationReserved is emitted for every settlement reservation.
type EthAllocationReserved struct {
	Account common.Address `json:"account"`
	Amount  *uint256.Int   `json:"amount"`
}

// GlobalPoolForwarded is emitted when global pool surplus moves to the parent instance.
type GlobalPoolForwarded struct {
	Parent common.Address `json:"parent"`
	Amount *uint256.Int   `json:"amount"`
}

// AffiliateDistributionCreated is emitted by the factory for every new instance.
type AffiliateDistributionCreated struct {
	Instance common.Address `json:"instance"`
	Owner    common.Address `json:"owner"`
}

// TopUp is emitted when credits are purchased.
type TopUp struct {
	Account common.Address `json:"account"`
	Credits uint64         `json:"credits"`
	Cost    *uint256.Int   `json:"cost"`
}

// Transfer is the standard fungible asset transfer notification.
type Transfer struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Value *uint256.Int   `json:"value"`
}

// Approval is the standard allowance notification.
type Approval struct {
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
	Value   *uint256.Int   `json:"value"`
}

// FeesCollected is emitted when a taxed transfer credits the token contract.
type FeesCollected struct {
	From  common.Address `json:"from"`
	Kind  TransferKind   `json:"kind"`
	Value *uint256.Int   `json:"value"`
}

// TaxLiquidated is emitted when accumulated tax was sold and sent to the treasury.
type TaxLiquidated struct {
	AssetIn       *uint256.Int   `json:"assetIn"`
	SettlementOut *uint256.Int   `json:"settlementOut"`
	Treasury      common.Address `json:"treasury"`
}

// LiquidationSkipped is emitted when an attempted liquidation was rolled back.
type LiquidationSkipped struct {
	Reason string `json:"reason"`
}

// TradingActivated is emitted once, when the trading gate opens.
type TradingActivated struct {
	At time.Time `json:"at"`
}

// LimitsRemoved is emitted when anti-snipe caps are disabled early.
type LimitsRemoved struct{}

// TaxesUpdated is emitted when buy or sell rates change.
type TaxesUpdated struct {
	BuyFeeBps  uint64 `json:"buyFeeBps"`
	SellFeeBps uint64 `json:"sellFeeBps"`
}

// AirdropClaimed is emitted by the vesting airdrop.
type AirdropClaimed struct {
	Account common.Address `json:"account"`
	Amount  *uint256.Int   `json:"amount"`
	Lost    *uint256.Int   `json:"lost"`
	Week    uint64         `json:"week"`
}

// OwnershipTransferStarted is emitted when the owner offers an instance.
type OwnershipTransferStarted struct {
	Previous common.Address `json:"previous"`
	Owner    common.Address `json:"owner"`
}

// OwnershipTransferred is emitted when an instance changes hands.
type OwnershipTransferred struct {
	Previous common.Address `json:"previous"`
	Owner    common.Address `json:"owner"`
}

// AdminUpdated is emitted when an admin is added or removed.
type AdminUpdated struct {
	Admin   common.Address `json:"admin"`
	Enabled bool           `json:"enabled"`
}

func (DistributionPublished) EventName() string        { return "DistributionPublished" }
func (RewardsClaimed) EventName() string               { return "RewardsClaimed" }
func (ClaimingToggled) EventName() string              { return "ClaimingToggled" }
func (MissionCreated) EventName() string               { return "MissionCreated" }
func (EthSwapped) EventName() string                   { return "EthSwapped" }
func (EthAllocationReserved) EventName() string        { return "EthAllocationReserved" }
func (GlobalPoolForwarded) EventName() string          { return "GlobalPoolForwarded" }
func (AffiliateDistributionCreated) EventName() string { return "AffiliateDistributionCreated" }
func (TopUp) EventName() string                        { return "TopUp" }
func (Transfer) EventName() string                     { return "Transfer" }
func (Approval) EventName() string                     { return "Approval" }
func (FeesCollected) EventName() string                { return "FeesCollected" }
func (TaxLiquidated) EventName() string                { return "TaxLiquidated" }
func (LiquidationSkipped) EventName() string           { return "LiquidationSkipped" }
func (TradingActivated) EventName() string             { return "TradingActivated" }
func (LimitsRemoved) EventName() string                { return "LimitsRemoved" }
func (TaxesUpdated) EventName() string                 { return "TaxesUpdated" }
func (AirdropClaimed) EventName() string               { return "AirdropClaimed" }
func (OwnershipTransferStarted) EventName() string     { return "OwnershipTransferStarted" }
func (OwnershipTransferred) EventName() string         { return "OwnershipTransferred" }
func (AdminUpdated) EventName() string                 { return "AdminUpdated" }
