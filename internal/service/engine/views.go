package engine

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/goodnatureofminers/reach-engine/internal/distribution"
	"github.com/goodnatureofminers/reach-engine/internal/model"
	"github.com/goodnatureofminers/reach-engine/internal/token"
)

// Amounts in views are decimal strings in whole units.

type TokenView struct {
	Address              common.Address `json:"address"`
	Name                 string         `json:"name"`
	Symbol               string         `json:"symbol"`
	TotalSupply          string         `json:"totalSupply"`
	Pair                 common.Address `json:"pair"`
	Treasury             common.Address `json:"treasury"`
	TradingEnabled       bool           `json:"tradingEnabled"`
	BuyFeeBps            uint64         `json:"buyFeeBps"`
	SellFeeBps           uint64         `json:"sellFeeBps"`
	Accumulated          string         `json:"accumulatedFees"`
	LiquidationThreshold string         `json:"liquidationThreshold"`
	AntiSnipeActive      bool           `json:"antiSnipeActive"`
}

type PoolsView struct {
	Leaderboard string `json:"leaderboard"`
	Global      string `json:"global"`
	Reserve     string `json:"reserve"`
}

type CommitmentView struct {
	Root             common.Hash `json:"root"`
	Version          uint64      `json:"version"`
	FundedSettlement string      `json:"fundedSettlement"`
	FundedAsset      string      `json:"fundedAsset"`
	PublishedAt      time.Time   `json:"publishedAt"`
}

type DistributionView struct {
	Address    common.Address     `json:"address"`
	Kind       model.InstanceKind `json:"kind"`
	Owner      common.Address     `json:"owner"`
	Parent     common.Address     `json:"parent,omitempty"`
	Paused     bool               `json:"paused"`
	Split      model.Split        `json:"split"`
	Pools      PoolsView          `json:"pools"`
	Commitment *CommitmentView    `json:"commitment,omitempty"`
	Missions   int                `json:"missions"`
	Settlement string             `json:"settlementBalance"`
	Asset      string             `json:"assetBalance"`
	// MinEthAllocation is the smallest accepted settlement reservation.
	MinEthAllocation string `json:"minEthAllocation"`
}

type ClaimView struct {
	Account            common.Address `json:"account"`
	LastClaimedVersion uint64         `json:"lastClaimedVersion"`
	ClaimedThisVersion bool           `json:"claimedThisVersion"`
	TotalSettlement    string         `json:"totalSettlement"`
	TotalAsset         string         `json:"totalAsset"`
}

func tokenView(t *token.Token, now time.Time) TokenView {
	tax := t.TaxState()
	return TokenView{
		Address:              t.Address(),
		Name:                 t.Name(),
		Symbol:               t.Symbol(),
		TotalSupply:          model.FormatUnits(t.TotalSupply()),
		Pair:                 t.PairAddress(),
		Treasury:             tax.Treasury,
		TradingEnabled:       t.TradingEnabled(),
		BuyFeeBps:            tax.BuyFeeBps,
		SellFeeBps:           tax.SellFeeBps,
		Accumulated:          model.FormatUnits(tax.Accumulated),
		LiquidationThreshold: model.FormatUnits(tax.LiquidationThreshold),
		AntiSnipeActive:      t.AntiSnipeState().ActiveAt(now),
	}
}

func (e *Engine) distributionView(d *distribution.Distribution) DistributionView {
	pools := d.Pools()
	v := DistributionView{
		Address: d.Address(),
		Kind:    d.Kind(),
		Owner:   d.Owner(),
		Parent:  d.Parent(),
		Paused:  d.Paused(),
		Split:   d.Split(),
		Pools: PoolsView{
			Leaderboard: model.FormatUnits(pools.Leaderboard),
			Global:      model.FormatUnits(pools.Global),
			Reserve:     model.FormatUnits(pools.Reserve),
		},
		Missions:   len(d.Missions()),
		Settlement: model.FormatUnits(e.ledger.NativeBalance(d.Address())),
		Asset:      model.FormatUnits(e.token.BalanceOf(d.Address())),

		MinEthAllocation: model.FormatUnits(d.MinEthAllocation()),
	}
	if c, ok := d.Commitment(); ok {
		v.Commitment = &CommitmentView{
			Root:             c.Root,
			Version:          c.Version,
			FundedSettlement: model.FormatUnits(c.FundedSettlement),
			FundedAsset:      model.FormatUnits(c.FundedAsset),
			PublishedAt:      c.PublishedAt,
		}
	}
	return v
}
