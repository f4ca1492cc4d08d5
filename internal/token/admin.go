package token

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/reach-engine/internal/chain"
	"github.com/goodnatureofminers/reach-engine/internal/model"
)

// liquidate sells the contract's fee balance once it reaches the threshold
// and forwards the proceeds to the treasury. A failed liquidation is rolled
// back on its own and never fails the transfer that triggered it.
func (t *Token) liquidate() {
	threshold := t.threshold.Get()
	balance := t.BalanceOf(t.address)
	if threshold.IsZero() || balance.Lt(threshold) || t.primaryPair.Get() == (common.Address{}) {
		return
	}

	started := time.Now()
	t.swapping = true
	err := func() error {
		defer func() { t.swapping = false }()
		return t.ledger.Atomic(func() error {
			return t.swapToTreasury(balance)
		})
	}()
	t.metrics.ObserveLiquidation(err, started)
	if err != nil {
		t.logger.Warn("fee liquidation skipped", zap.String("amount", balance.Dec()), zap.Error(err))
		t.ledger.Emit(t.address, model.LiquidationSkipped{Reason: err.Error()})
	}
}

func (t *Token) swapToTreasury(amount *uint256.Int) error {
	if err := t.approve(t.address, t.router.Address(), amount); err != nil {
		return err
	}
	before := t.ledger.NativeBalance(t.address)
	path := []common.Address{t.address, t.router.WrappedNative()}
	err := t.router.SwapExactTokensForNativeSupportingFeeOnTransferTokens(
		t.address, amount, new(uint256.Int), path, t.address, t.ledger.Timestamp(),
	)
	if err != nil {
		return fmt.Errorf("swap fees: %w", err)
	}
	proceeds := new(uint256.Int).Sub(t.ledger.NativeBalance(t.address), before)
	treasury := t.treasury.Get()
	if err := t.ledger.TransferNative(t.address, treasury, proceeds); err != nil {
		return fmt.Errorf("pay treasury: %w", err)
	}
	t.ledger.Emit(t.address, model.TaxLiquidated{AssetIn: amount.Clone(), SettlementOut: proceeds, Treasury: treasury})
	t.logger.Info("fees liquidated", zap.String("asset_in", amount.Dec()), zap.String("settlement_out", proceeds.Dec()))
	return nil
}

func (t *Token) ownerOnly(caller common.Address, fn func() error) error {
	return t.ledger.Atomic(func() error {
		if err := t.roles.OnlyOwner(caller); err != nil {
			return err
		}
		return fn()
	})
}

// ActivateTrading opens the gate and starts the anti-snipe window. It can happen once.
func (t *Token) ActivateTrading(caller common.Address) error {
	return t.ownerOnly(caller, func() error {
		if t.tradingEnabled.Get() {
			return ErrAlreadyActive
		}
		now := t.ledger.Now()
		t.tradingEnabled.Set(true)
		t.launchTime.Set(now)
		t.ledger.Emit(t.address, model.TradingActivated{At: now})
		t.logger.Info("trading activated", zap.Time("at", now), zap.Duration("anti_snipe_window", t.window))
		return nil
	})
}

// RemoveLimits disables the anti-snipe caps for good.
func (t *Token) RemoveLimits(caller common.Address) error {
	return t.ownerOnly(caller, func() error {
		t.limitsRemoved.Set(true)
		t.ledger.Emit(t.address, model.LimitsRemoved{})
		return nil
	})
}

func (t *Token) UpdateTaxes(caller common.Address, buyBps, sellBps uint64) error {
	return t.ownerOnly(caller, func() error {
		if buyBps > t.maxFeeBps || sellBps > t.maxFeeBps {
			return fmt.Errorf("fees %d/%d above %d bps: %w", buyBps, sellBps, t.maxFeeBps, ErrInvalidFee)
		}
		t.buyFeeBps.Set(buyBps)
		t.sellFeeBps.Set(sellBps)
		t.ledger.Emit(t.address, model.TaxesUpdated{BuyFeeBps: buyBps, SellFeeBps: sellBps})
		return nil
	})
}

func (t *Token) SetTreasury(caller, treasury common.Address) error {
	return t.ownerOnly(caller, func() error {
		if treasury == (common.Address{}) {
			return chain.ErrZeroAddress
		}
		t.treasury.Set(treasury)
		return nil
	})
}

// SetLiquidationThreshold changes the balance that triggers liquidation. Zero disables it.
func (t *Token) SetLiquidationThreshold(caller common.Address, threshold *uint256.Int) error {
	return t.ownerOnly(caller, func() error {
		t.threshold.Set(threshold.Clone())
		return nil
	})
}

// SetPair marks addr as a market pair. The primary pair cannot be unset.
func (t *Token) SetPair(caller, pair common.Address, enabled bool) error {
	return t.ownerOnly(caller, func() error {
		if pair == (common.Address{}) {
			return chain.ErrZeroAddress
		}
		if !enabled && pair == t.primaryPair.Get() {
			return fmt.Errorf("primary pair %s cannot be removed: %w", pair, chain.ErrUnauthorized)
		}
		t.pairs.Set(pair, enabled)
		return nil
	})
}

func (t *Token) SetFeeExempt(caller, account common.Address, exempt bool) error {
	return t.ownerOnly(caller, func() error {
		if account == t.address && !exempt {
			return fmt.Errorf("token contract must stay exempt: %w", chain.ErrUnauthorized)
		}
		t.feeExempt.Set(account, exempt)
		return nil
	})
}

// RescueERC20Tokens sends the contract's whole balance of asset to the owner.
// Passing the token's own address rescues accumulated fees.
func (t *Token) RescueERC20Tokens(caller, asset common.Address) error {
	return t.ownerOnly(caller, func() error {
		owner := t.roles.Owner()
		if asset == t.address {
			return t.transfer(t.address, owner, t.BalanceOf(t.address))
		}
		other, ok := t.ledger.LookupERC20(asset)
		if !ok {
			return fmt.Errorf("%s: %w", asset, ErrNotAToken)
		}
		return other.Transfer(t.address, owner, other.BalanceOf(t.address))
	})
}

// ForceSend pushes the contract's native balance to the treasury.
func (t *Token) ForceSend(caller common.Address) error {
	return t.ownerOnly(caller, func() error {
		balance := t.ledger.NativeBalance(t.address)
		if balance.IsZero() {
			return nil
		}
		return t.ledger.TransferNative(t.address, t.treasury.Get(), balance)
	})
}
