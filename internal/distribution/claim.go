package distribution

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/reach-engine/internal/merkle"
	"github.com/goodnatureofminers/reach-engine/internal/model"
	"github.com/goodnatureofminers/reach-engine/pkg/safe"
)

func (d *Distribution) CurrentVersion() uint64 {
	return d.published.Get().Version
}

func (d *Distribution) MerkleRoot() common.Hash {
	return d.published.Get().Root
}

// Commitment returns the live commitment and false before the first publish.
func (d *Distribution) Commitment() (model.Commitment, bool) {
	c := d.published.Get()
	return c, c.Version > 0
}

func (d *Distribution) LastClaimedVersion(account common.Address) uint64 {
	return d.records.Get(account).LastClaimedVersion
}

func (d *Distribution) ClaimRecord(account common.Address) model.ClaimRecord {
	r := d.records.Get(account)
	if r.CumulativeSettlement == nil {
		r.CumulativeSettlement = new(uint256.Int)
	}
	if r.CumulativeAsset == nil {
		r.CumulativeAsset = new(uint256.Int)
	}
	return r
}

// ClaimedThisVersion returns what has been paid against the live commitment.
func (d *Distribution) ClaimedThisVersion() (settlement, asset *uint256.Int) {
	return d.claimedSettlement.Get().Clone(), d.claimedAsset.Get().Clone()
}

// TotalClaimed returns lifetime payouts across all versions.
func (d *Distribution) TotalClaimed() (settlement, asset *uint256.Int) {
	return d.totalSettlement.Get().Clone(), d.totalAsset.Get().Clone()
}

// Publish makes root the live commitment. The instance must already hold at
// least the funded amounts. Publishing the same root again still starts a new version.
func (d *Distribution) Publish(caller common.Address, root common.Hash, fundedSettlement, fundedAsset *uint256.Int) (err error) {
	defer func(started time.Time) { d.observe("publish", started, err) }(time.Now())

	return d.ledger.Atomic(func() error {
		if err := d.roles.OnlyOwner(caller); err != nil {
			return err
		}
		if native := d.ledger.NativeBalance(d.address); native.Lt(fundedSettlement) {
			return fmt.Errorf("holding %s, need %s: %w", native.Dec(), fundedSettlement.Dec(), ErrInsufficientSettlement)
		}
		asset, err := d.asset()
		if err != nil {
			return err
		}
		if held := asset.BalanceOf(d.address); held.Lt(fundedAsset) {
			return fmt.Errorf("holding %s, need %s: %w", held.Dec(), fundedAsset.Dec(), ErrInsufficientAsset)
		}

		c := model.Commitment{
			Root:             root,
			Version:          d.published.Get().Version + 1,
			FundedSettlement: fundedSettlement.Clone(),
			FundedAsset:      fundedAsset.Clone(),
			PublishedAt:      d.ledger.Now(),
		}
		d.published.Set(c)
		d.claimedSettlement.Set(new(uint256.Int))
		d.claimedAsset.Set(new(uint256.Int))
		d.ledger.Emit(d.address, model.DistributionPublished{
			Root:             root,
			Version:          c.Version,
			FundedSettlement: fundedSettlement.Clone(),
			FundedAsset:      fundedAsset.Clone(),
		})
		d.logger.Info("distribution published",
			zap.Stringer("root", root),
			zap.Uint64("version", c.Version),
			zap.String("settlement", fundedSettlement.Dec()),
			zap.String("asset", fundedAsset.Dec()))
		return nil
	})
}

// Claim pays caller's entitlement under the live commitment. The claim is
// recorded before any value leaves the instance, and re-entry while a claim
// is paying out is rejected.
func (d *Distribution) Claim(caller common.Address, proof []common.Hash, settlement, asset *uint256.Int) (err error) {
	defer func(started time.Time) { d.observe("claim", started, err) }(time.Now())

	release, err := d.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	return d.ledger.Atomic(func() error {
		if d.paused.Get() {
			return ErrClaimingPaused
		}
		c := d.published.Get()
		if c.Version == 0 {
			return ErrNoCommitment
		}
		record := d.ClaimRecord(caller)
		if record.LastClaimedVersion >= c.Version {
			return fmt.Errorf("%s already claimed version %d: %w", caller, c.Version, ErrAlreadyClaimed)
		}
		if !merkle.Verify(proof, c.Root, merkle.Leaf(caller, settlement, asset)) {
			return ErrInvalidProof
		}

		paidSettlement, err := safe.Add(d.claimedSettlement.Get(), settlement)
		if err != nil {
			return err
		}
		paidAsset, err := safe.Add(d.claimedAsset.Get(), asset)
		if err != nil {
			return err
		}
		if paidSettlement.Gt(c.FundedSettlement) || paidAsset.Gt(c.FundedAsset) {
			return fmt.Errorf("version %d: %w", c.Version, ErrExceedsFunding)
		}

		cumulativeSettlement, err := safe.Add(record.CumulativeSettlement, settlement)
		if err != nil {
			return err
		}
		cumulativeAsset, err := safe.Add(record.CumulativeAsset, asset)
		if err != nil {
			return err
		}
		d.records.Set(caller, model.ClaimRecord{
			LastClaimedVersion:   c.Version,
			CumulativeSettlement: cumulativeSettlement,
			CumulativeAsset:      cumulativeAsset,
		})
		d.claimedSettlement.Set(paidSettlement)
		d.claimedAsset.Set(paidAsset)
		d.totalSettlement.Set(new(uint256.Int).Add(d.totalSettlement.Get(), settlement))
		d.totalAsset.Set(new(uint256.Int).Add(d.totalAsset.Get(), asset))
		d.ledger.Emit(d.address, model.RewardsClaimed{
			Account:    caller,
			Version:    c.Version,
			Settlement: settlement.Clone(),
			Asset:      asset.Clone(),
		})

		if !asset.IsZero() {
			token, err := d.asset()
			if err != nil {
				return err
			}
			if err := token.Transfer(d.address, caller, asset); err != nil {
				return fmt.Errorf("transfer asset: %w", err)
			}
		}
		if !settlement.IsZero() {
			if err := d.ledger.TransferNative(d.address, caller, settlement); err != nil {
				return fmt.Errorf("pay settlement: %w", err)
			}
		}
		return nil
	})
}
