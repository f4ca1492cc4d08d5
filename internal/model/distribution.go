// Package model defines domain models shared by the reward distribution engine.
package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// InstanceKind tells the main distribution apart from factory-provisioned affiliates.
type InstanceKind string

var (
	// MainInstance is the single escalation target for affiliate surplus.
	MainInstance InstanceKind = "main"
	// AffiliateInstance is an instance provisioned by the factory.
	AffiliateInstance InstanceKind = "affiliate"
)

// Recipient is one row of a commitment version.
type Recipient struct {
	Account    common.Address
	Settlement *uint256.Int
	Asset      *uint256.Int
}

// Allocation is a single-amount entitlement used by the vesting airdrop.
type Allocation struct {
	Account common.Address
	Amount  *uint256.Int
}

// Commitment is a published Merkle root together with the balances backing it.
type Commitment struct {
	Root             common.Hash
	Version          uint64
	FundedSettlement *uint256.Int
	FundedAsset      *uint256.Int
	PublishedAt      time.Time
}

// ClaimRecord is the claim history of one account on one distribution instance.
type ClaimRecord struct {
	LastClaimedVersion   uint64
	CumulativeSettlement *uint256.Int
	CumulativeAsset      *uint256.Int
}

// Mission is a funding event. Missions are never modified or deleted.
type Mission struct {
	ID               string
	FundedSettlement *uint256.Int
	CreatedAt        time.Time
	Creator          common.Address
}

// PoolSet holds the named running balances of a distribution instance.
// Leaderboard and Global are asset units, Reserve is settlement currency.
type PoolSet struct {
	Leaderboard *uint256.Int
	Global      *uint256.Int
	Reserve     *uint256.Int
}

// Split is the per-instance percentage split applied to mission funding.
// Whatever is left after both bands stays in the contract as reserve.
type Split struct {
	LeaderboardBps uint64 `yaml:"leaderboard_bps" json:"leaderboardBps"`
	GlobalBps      uint64 `yaml:"global_bps" json:"globalBps"`
}

// SwapBps is the share of funding converted to the asset.
func (s Split) SwapBps() uint64 {
	return s.LeaderboardBps + s.GlobalBps
}

// ReserveBps is the share of funding kept as settlement currency.
func (s Split) ReserveBps() uint64 {
	if s.SwapBps() >= 10_000 {
		return 0
	}
	return 10_000 - s.SwapBps()
}
