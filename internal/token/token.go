// Package token implements the taxed fungible asset: a standard transfer
// surface with buy/sell fees on pair transfers, automatic liquidation of
// collected fees to the treasury, a one-way trading gate and anti-snipe
// limits for the launch window.
package token

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/reach-engine/internal/chain"
	"github.com/goodnatureofminers/reach-engine/internal/exchange"
	"github.com/goodnatureofminers/reach-engine/internal/model"
	"github.com/goodnatureofminers/reach-engine/pkg/safe"
)

var (
	ErrTradingNotActive      = chain.NewError(chain.KindState, "TradingNotActive")
	ErrAlreadyActive         = chain.NewError(chain.KindState, "TradingAlreadyActive")
	ErrMaxTransaction        = chain.NewError(chain.KindValidation, "MaxTransactionExceeded")
	ErrMaxWallet             = chain.NewError(chain.KindValidation, "MaxWalletExceeded")
	ErrInvalidFee            = chain.NewError(chain.KindValidation, "InvalidFee")
	ErrInsufficientAllowance = chain.NewError(chain.KindState, "InsufficientAllowance")
	ErrNotAToken             = chain.NewError(chain.KindValidation, "NotAToken")
)

// Metrics records token activity.
type Metrics interface {
	ObserveTransfer(kind model.TransferKind, err error, started time.Time)
	ObserveFee(kind model.TransferKind, amount *uint256.Int)
	ObserveLiquidation(err error, started time.Time)
}

// Config is the deployment configuration of the asset.
type Config struct {
	Name                 string
	Symbol               string
	TotalSupply          *uint256.Int
	Owner                common.Address
	Treasury             common.Address
	BuyFeeBps            uint64
	SellFeeBps           uint64
	MaxFeeBps            uint64
	LiquidationThreshold *uint256.Int
	AntiSnipeWindow      time.Duration
	MaxTxBps             uint64
	MaxWalletBps         uint64
}

func (c Config) validate() error {
	switch {
	case c.Owner == (common.Address{}), c.Treasury == (common.Address{}):
		return chain.ErrZeroAddress
	case c.TotalSupply == nil || c.TotalSupply.IsZero():
		return fmt.Errorf("total supply must be positive")
	case c.MaxFeeBps > safe.BasisPoints:
		return fmt.Errorf("max fee %d bps: %w", c.MaxFeeBps, ErrInvalidFee)
	case c.BuyFeeBps > c.MaxFeeBps, c.SellFeeBps > c.MaxFeeBps:
		return fmt.Errorf("fees %d/%d above %d bps: %w", c.BuyFeeBps, c.SellFeeBps, c.MaxFeeBps, ErrInvalidFee)
	case c.MaxTxBps > safe.BasisPoints, c.MaxWalletBps > safe.BasisPoints:
		return fmt.Errorf("anti-snipe limits above %d bps", safe.BasisPoints)
	}
	return nil
}

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// Token is the taxed asset contract.
type Token struct {
	ledger  *chain.Ledger
	address common.Address
	roles   *chain.Roles
	router  exchange.Router
	metrics Metrics
	logger  *zap.Logger

	name        string
	symbol      string
	totalSupply *uint256.Int
	maxFeeBps   uint64
	window      time.Duration
	maxTxBps    uint64
	maxWallet   uint64

	balances       *chain.Map[common.Address, *uint256.Int]
	allowances     *chain.Map[allowanceKey, *uint256.Int]
	pairs          *chain.Map[common.Address, bool]
	feeExempt      *chain.Map[common.Address, bool]
	primaryPair    *chain.Value[common.Address]
	tradingEnabled *chain.Value[bool]
	launchTime     *chain.Value[time.Time]
	limitsRemoved  *chain.Value[bool]
	buyFeeBps      *chain.Value[uint64]
	sellFeeBps     *chain.Value[uint64]
	treasury       *chain.Value[common.Address]
	threshold      *chain.Value[*uint256.Int]

	swapping bool
}

// New deploys the token from cfg.Owner, mints the whole supply to the owner
// and creates the primary pair on router.
func New(ledger *chain.Ledger, cfg Config, router exchange.Router, metrics Metrics, logger *zap.Logger) (*Token, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	threshold := cfg.LiquidationThreshold
	if threshold == nil {
		threshold = new(uint256.Int)
	}

	var t *Token
	err := ledger.Atomic(func() error {
		addr := ledger.NextAddress(cfg.Owner)
		t = &Token{
			ledger:      ledger,
			address:     addr,
			roles:       chain.NewRoles(ledger, addr, cfg.Owner),
			router:      router,
			metrics:     metrics,
			logger:      logger.Named("token").With(zap.Stringer("token", addr)),
			name:        cfg.Name,
			symbol:      cfg.Symbol,
			totalSupply: cfg.TotalSupply.Clone(),
			maxFeeBps:   cfg.MaxFeeBps,
			window:      cfg.AntiSnipeWindow,
			maxTxBps:    cfg.MaxTxBps,
			maxWallet:   cfg.MaxWalletBps,

			balances:       chain.NewMap[common.Address, *uint256.Int](ledger),
			allowances:     chain.NewMap[allowanceKey, *uint256.Int](ledger),
			pairs:          chain.NewMap[common.Address, bool](ledger),
			feeExempt:      chain.NewMap[common.Address, bool](ledger),
			primaryPair:    chain.NewValue(ledger, common.Address{}),
			tradingEnabled: chain.NewValue(ledger, false),
			launchTime:     chain.NewValue(ledger, time.Time{}),
			limitsRemoved:  chain.NewValue(ledger, false),
			buyFeeBps:      chain.NewValue(ledger, cfg.BuyFeeBps),
			sellFeeBps:     chain.NewValue(ledger, cfg.SellFeeBps),
			treasury:       chain.NewValue(ledger, cfg.Treasury),
			threshold:      chain.NewValue(ledger, threshold.Clone()),
		}
		if err := ledger.Register(t); err != nil {
			return err
		}
		t.feeExempt.Set(cfg.Owner, true)
		t.feeExempt.Set(addr, true)
		t.balances.Set(cfg.Owner, cfg.TotalSupply.Clone())
		ledger.Emit(addr, model.Transfer{To: cfg.Owner, Value: cfg.TotalSupply.Clone()})

		pair, err := router.CreatePair(addr)
		if err != nil {
			return fmt.Errorf("create pair: %w", err)
		}
		t.pairs.Set(pair, true)
		t.primaryPair.Set(pair)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Token) Address() common.Address { return t.address }
func (t *Token) Name() string            { return t.name }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Decimals() uint8         { return uint8(model.Decimals) }
func (t *Token) Owner() common.Address   { return t.roles.Owner() }
func (t *Token) Roles() *chain.Roles     { return t.roles }

func (t *Token) TotalSupply() *uint256.Int {
	return t.totalSupply.Clone()
}

func (t *Token) BalanceOf(account common.Address) *uint256.Int {
	if v := t.balances.Get(account); v != nil {
		return v.Clone()
	}
	return new(uint256.Int)
}

func (t *Token) Allowance(owner, spender common.Address) *uint256.Int {
	if v := t.allowances.Get(allowanceKey{owner, spender}); v != nil {
		return v.Clone()
	}
	return new(uint256.Int)
}

func (t *Token) TradingEnabled() bool            { return t.tradingEnabled.Get() }
func (t *Token) PairAddress() common.Address     { return t.primaryPair.Get() }
func (t *Token) TreasuryAddress() common.Address { return t.treasury.Get() }
func (t *Token) IsPair(addr common.Address) bool { return t.pairs.Get(addr) }

// IsFeeExempt reports whether transfers touching account skip fees, limits and the trading gate.
func (t *Token) IsFeeExempt(account common.Address) bool {
	return t.feeExempt.Get(account)
}

func (t *Token) TaxState() model.TaxState {
	return model.TaxState{
		BuyFeeBps:            t.buyFeeBps.Get(),
		SellFeeBps:           t.sellFeeBps.Get(),
		Accumulated:          t.BalanceOf(t.address),
		Treasury:             t.treasury.Get(),
		LiquidationThreshold: t.threshold.Get().Clone(),
	}
}

func (t *Token) AntiSnipeState() model.AntiSnipeState {
	return model.AntiSnipeState{
		LaunchTime:    t.launchTime.Get(),
		Window:        t.window,
		MaxTxBps:      t.maxTxBps,
		MaxWalletBps:  t.maxWallet,
		LimitsRemoved: t.limitsRemoved.Get(),
	}
}

// ReceiveNative accepts liquidation proceeds and direct payments.
func (t *Token) ReceiveNative(common.Address, *uint256.Int) error { return nil }

func (t *Token) Approve(caller, spender common.Address, amount *uint256.Int) error {
	return t.ledger.Atomic(func() error {
		return t.approve(caller, spender, amount)
	})
}

func (t *Token) approve(owner, spender common.Address, amount *uint256.Int) error {
	if spender == (common.Address{}) || owner == (common.Address{}) {
		return chain.ErrZeroAddress
	}
	t.allowances.Set(allowanceKey{owner, spender}, amount.Clone())
	t.ledger.Emit(t.address, model.Approval{Owner: owner, Spender: spender, Value: amount.Clone()})
	return nil
}

func (t *Token) Transfer(caller, to common.Address, amount *uint256.Int) (err error) {
	kind := t.classify(caller, to)
	defer func(started time.Time) {
		t.metrics.ObserveTransfer(kind, err, started)
	}(time.Now())

	return t.ledger.Atomic(func() error {
		return t.transfer(caller, to, amount)
	})
}

// TransferFrom spends spender's allowance. An allowance of 2^256-1 is never decreased.
func (t *Token) TransferFrom(spender, from, to common.Address, amount *uint256.Int) (err error) {
	kind := t.classify(from, to)
	defer func(started time.Time) {
		t.metrics.ObserveTransfer(kind, err, started)
	}(time.Now())

	return t.ledger.Atomic(func() error {
		allowed := t.Allowance(from, spender)
		if allowed.Lt(amount) {
			return fmt.Errorf("allowance %s below %s: %w", allowed.Dec(), amount.Dec(), ErrInsufficientAllowance)
		}
		if !allowed.Eq(maxUint256) {
			t.allowances.Set(allowanceKey{from, spender}, allowed.Sub(allowed, amount))
		}
		return t.transfer(from, to, amount)
	})
}

var maxUint256 = new(uint256.Int).SetAllOne()

func (t *Token) classify(from, to common.Address) model.TransferKind {
	switch {
	case t.pairs.Get(from):
		return model.TransferBuy
	case t.pairs.Get(to):
		return model.TransferSell
	default:
		return model.TransferPlain
	}
}

func (t *Token) transfer(from, to common.Address, amount *uint256.Int) error {
	if from == (common.Address{}) || to == (common.Address{}) {
		return chain.ErrZeroAddress
	}
	balance := t.BalanceOf(from)
	if balance.Lt(amount) {
		return fmt.Errorf("balance %s below %s: %w", balance.Dec(), amount.Dec(), chain.ErrInsufficientBalance)
	}

	// Only an exempt sender may move the asset before launch. Exemption on
	// either side still skips fees and limits.
	if !t.tradingEnabled.Get() && !t.feeExempt.Get(from) {
		return ErrTradingNotActive
	}
	exempt := t.feeExempt.Get(from) || t.feeExempt.Get(to)

	kind := t.classify(from, to)
	if kind != model.TransferBuy && !exempt && !t.swapping {
		t.liquidate()
	}

	fee := new(uint256.Int)
	if !exempt && !t.swapping {
		var err error
		switch kind {
		case model.TransferBuy:
			fee, err = safe.Bps(amount, t.buyFeeBps.Get())
		case model.TransferSell:
			fee, err = safe.Bps(amount, t.sellFeeBps.Get())
		}
		if err != nil {
			return err
		}
	}
	net := new(uint256.Int).Sub(amount, fee)

	if kind == model.TransferBuy && !exempt && t.AntiSnipeState().ActiveAt(t.ledger.Now()) {
		if err := t.checkLimits(to, amount, net); err != nil {
			return err
		}
	}

	t.balances.Set(from, new(uint256.Int).Sub(t.BalanceOf(from), amount))
	t.balances.Set(to, new(uint256.Int).Add(t.BalanceOf(to), net))
	t.ledger.Emit(t.address, model.Transfer{From: from, To: to, Value: net})

	if !fee.IsZero() {
		t.balances.Set(t.address, new(uint256.Int).Add(t.BalanceOf(t.address), fee))
		t.ledger.Emit(t.address, model.Transfer{From: from, To: t.address, Value: fee.Clone()})
		t.ledger.Emit(t.address, model.FeesCollected{From: from, Kind: kind, Value: fee.Clone()})
		t.metrics.ObserveFee(kind, fee)
	}
	return nil
}

// checkLimits caps the gross buy size and the buyer's balance after the fee.
func (t *Token) checkLimits(to common.Address, amount, received *uint256.Int) error {
	maxTx, err := safe.Bps(t.totalSupply, t.maxTxBps)
	if err != nil {
		return err
	}
	if amount.Gt(maxTx) {
		return fmt.Errorf("amount %s above %s: %w", amount.Dec(), maxTx.Dec(), ErrMaxTransaction)
	}
	maxWallet, err := safe.Bps(t.totalSupply, t.maxWallet)
	if err != nil {
		return err
	}
	after, err := safe.Add(t.BalanceOf(to), received)
	if err != nil {
		return err
	}
	if after.Gt(maxWallet) {
		return fmt.Errorf("balance %s above %s: %w", after.Dec(), maxWallet.Dec(), ErrMaxWallet)
	}
	return nil
}
