package distribution

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/reach-engine/internal/model"
	"github.com/goodnatureofminers/reach-engine/pkg/safe"
)

func (d *Distribution) Pools() model.PoolSet {
	return model.PoolSet{
		Leaderboard: d.leaderboard.Get().Clone(),
		Global:      d.global.Get().Clone(),
		Reserve:     d.reserve.Get().Clone(),
	}
}

func (d *Distribution) Mission(id string) (model.Mission, bool) {
	return d.missions.Lookup(id)
}

// Missions returns every mission in creation order.
func (d *Distribution) Missions() []model.Mission {
	ids := d.missionOrder.All()
	out := make([]model.Mission, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.missions.Get(id))
	}
	return out
}

// CreateMission funds the pools with value paid by caller. The leaderboard
// and global bands are bought in a single swap and the received asset is
// shared between them pro rata; the rest stays as settlement reserve.
func (d *Distribution) CreateMission(caller common.Address, value *uint256.Int, id string, amount *uint256.Int) (err error) {
	defer func(started time.Time) { d.observe("create_mission", started, err) }(time.Now())

	release, err := d.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	return d.ledger.Atomic(func() error {
		if !value.Eq(amount) {
			return fmt.Errorf("sent %s, declared %s: %w", value.Dec(), amount.Dec(), ErrAmountMismatch)
		}
		if id == "" {
			return ErrInvalidMissionID
		}
		if _, ok := d.missions.Lookup(id); ok {
			return fmt.Errorf("mission %q: %w", id, ErrMissionExists)
		}
		if err := d.ledger.TransferNative(caller, d.address, value); err != nil {
			return fmt.Errorf("collect funding: %w", err)
		}
		if err := d.carryForward(); err != nil {
			return err
		}

		leaderboardIn, err := safe.Bps(amount, d.split.LeaderboardBps)
		if err != nil {
			return err
		}
		globalIn, err := safe.Bps(amount, d.split.GlobalBps)
		if err != nil {
			return err
		}
		swapIn := new(uint256.Int).Add(leaderboardIn, globalIn)
		reserveIn := new(uint256.Int).Sub(amount, swapIn)

		if !swapIn.IsZero() {
			received, err := d.buyAsset(swapIn, new(uint256.Int), d.SwapDeadline())
			if err != nil {
				return err
			}
			leaderboardOut, err := safe.MulDiv(received, leaderboardIn, swapIn)
			if err != nil {
				return err
			}
			globalOut := new(uint256.Int).Sub(received, leaderboardOut)
			d.leaderboard.Set(new(uint256.Int).Add(d.leaderboard.Get(), leaderboardOut))
			d.global.Set(new(uint256.Int).Add(d.global.Get(), globalOut))
		}
		d.reserve.Set(new(uint256.Int).Add(d.reserve.Get(), reserveIn))

		d.missions.Set(id, model.Mission{
			ID:               id,
			FundedSettlement: amount.Clone(),
			CreatedAt:        d.ledger.Now(),
			Creator:          caller,
		})
		d.missionOrder.Append(id)
		d.ledger.Emit(d.address, model.MissionCreated{ID: id, Amount: amount.Clone(), Creator: caller})
		d.logger.Info("mission created",
			zap.String("mission", id),
			zap.String("amount", amount.Dec()),
			zap.Stringer("creator", caller))
		return nil
	})
}

// carryForward moves global pool surplus above the threshold to the parent.
func (d *Distribution) carryForward() error {
	if d.parent == (common.Address{}) || d.threshold.IsZero() {
		return nil
	}
	global := d.global.Get()
	if !global.Gt(d.threshold) {
		return nil
	}
	excess := new(uint256.Int).Sub(global, d.threshold)
	token, err := d.asset()
	if err != nil {
		return err
	}
	d.global.Set(d.threshold.Clone())
	if err := token.Transfer(d.address, d.parent, excess); err != nil {
		return fmt.Errorf("forward global surplus: %w", err)
	}
	d.ledger.Emit(d.address, model.GlobalPoolForwarded{Parent: d.parent, Amount: excess})
	d.logger.Info("global surplus forwarded", zap.Stringer("parent", d.parent), zap.String("amount", excess.Dec()))
	return nil
}

// buyAsset swaps settlement currency for the asset and returns what the
// instance actually received, which is net of any transfer tax.
func (d *Distribution) buyAsset(amountIn, minOut *uint256.Int, deadline uint64) (*uint256.Int, error) {
	token, err := d.asset()
	if err != nil {
		return nil, err
	}
	before := token.BalanceOf(d.address)
	path := []common.Address{d.router.WrappedNative(), token.Address()}
	if _, err := d.router.SwapExactNativeForTokens(d.address, amountIn, minOut, path, d.address, deadline); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSwapFailed, err)
	}
	return safe.Sub(token.BalanceOf(d.address), before)
}

// SwapDeadline is the configured swap deadline measured from the current block.
func (d *Distribution) SwapDeadline() uint64 {
	return d.ledger.Timestamp() + uint64(d.deadline/time.Second)
}

// SwapEth converts held settlement currency into the asset for the global
// pool, forwarding the configured share to the parent as settlement first.
// deadline is a ledger timestamp; a stale one fails with ErrSwapFailed.
func (d *Distribution) SwapEth(caller common.Address, amountIn, minOut *uint256.Int, deadline uint64) (err error) {
	defer func(started time.Time) { d.observe("swap_eth", started, err) }(time.Now())

	release, err := d.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	return d.ledger.Atomic(func() error {
		if err := d.roles.OnlyOwner(caller); err != nil {
			return err
		}
		forwarded := new(uint256.Int)
		if d.parent != (common.Address{}) && d.forward > 0 {
			if forwarded, err = safe.Bps(amountIn, d.forward); err != nil {
				return err
			}
		}
		swapIn := new(uint256.Int).Sub(amountIn, forwarded)

		reserve := d.reserve.Get()
		d.reserve.Set(new(uint256.Int).Sub(reserve, safe.Min(reserve, amountIn)))

		if !forwarded.IsZero() {
			if err := d.ledger.TransferNative(d.address, d.parent, forwarded); err != nil {
				return fmt.Errorf("forward to parent: %w", err)
			}
		}
		received := new(uint256.Int)
		if !swapIn.IsZero() {
			if received, err = d.buyAsset(swapIn, new(uint256.Int), deadline); err != nil {
				return err
			}
		}
		if received.Lt(minOut) {
			return fmt.Errorf("received %s, want at least %s: %w", received.Dec(), minOut.Dec(), ErrSlippageExceeded)
		}
		d.global.Set(new(uint256.Int).Add(d.global.Get(), received))
		d.ledger.Emit(d.address, model.EthSwapped{AmountIn: amountIn.Clone(), AmountOut: received, Forwarded: forwarded})
		return nil
	})
}
