// Package engine bootstraps a sandbox deployment and serialises access to it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/reach-engine/internal/chain"
	"github.com/goodnatureofminers/reach-engine/internal/clock"
	"github.com/goodnatureofminers/reach-engine/internal/config"
	"github.com/goodnatureofminers/reach-engine/internal/distribution"
	"github.com/goodnatureofminers/reach-engine/internal/exchange"
	"github.com/goodnatureofminers/reach-engine/internal/factory"
	"github.com/goodnatureofminers/reach-engine/internal/merkle"
	"github.com/goodnatureofminers/reach-engine/internal/model"
	"github.com/goodnatureofminers/reach-engine/internal/token"
)

var (
	ErrUnknownDistribution = errors.New("unknown distribution")
	ErrNoCommitmentFile    = errors.New("no commitment file for distribution")
)

// State is the deployed contract set. It is only valid inside Do.
type State struct {
	Ledger  *chain.Ledger
	AMM     *exchange.AMM
	Token   *token.Token
	Main    *distribution.Distribution
	Factory *factory.Factory
	Owner   common.Address
}

// Engine owns one ledger. Every method takes the engine lock.
type Engine struct {
	mu          sync.Mutex
	cfg         *config.Config
	clock       clockwork.Clock
	metrics     Metrics
	logger      *zap.Logger
	ledger      *chain.Ledger
	amm         *exchange.AMM
	token       *token.Token
	main        *distribution.Distribution
	factory     *factory.Factory
	commitments map[common.Address]*merkle.CommitmentFile
}

// New deploys the exchange, asset, main distribution and factory described by cfg.
func New(cfg *config.Config, clk clockwork.Clock, metrics Metrics, logger *zap.Logger, sinks ...chain.LogSink) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:         cfg,
		clock:       clk,
		metrics:     metrics,
		logger:      logger.Named("engine"),
		ledger:      chain.NewLedger(clk, logger),
		commitments: make(map[common.Address]*merkle.CommitmentFile),
	}
	for _, s := range sinks {
		e.ledger.Subscribe(s)
	}
	if err := e.bootstrap(); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return e, nil
}

func (e *Engine) bootstrap() error {
	cfg := e.cfg
	owner := cfg.Owner
	l := e.ledger

	l.Fund(owner, cfg.Exchange.OwnerNative.Units())
	for _, a := range cfg.Accounts {
		l.Fund(a.Address, a.Native.Units())
	}

	amm, err := exchange.NewAMM(l, owner, e.metrics.Exchange, e.logger)
	if err != nil {
		return err
	}
	tok, err := token.New(l, token.Config{
		Name:                 cfg.Token.Name,
		Symbol:               cfg.Token.Symbol,
		TotalSupply:          cfg.Token.TotalSupply.Units(),
		Owner:                owner,
		Treasury:             cfg.Token.Treasury,
		BuyFeeBps:            cfg.Token.BuyFeeBps,
		SellFeeBps:           cfg.Token.SellFeeBps,
		MaxFeeBps:            cfg.Token.MaxFeeBps,
		LiquidationThreshold: cfg.Token.LiquidationThreshold.Units(),
		AntiSnipeWindow:      cfg.Token.AntiSnipe.Window,
		MaxTxBps:             cfg.Token.AntiSnipe.MaxTxBps,
		MaxWalletBps:         cfg.Token.AntiSnipe.MaxWalletBps,
	}, amm, e.metrics.Token, e.logger)
	if err != nil {
		return err
	}

	if liq := cfg.Exchange.LiquidityToken.Units(); !liq.IsZero() {
		if err := tok.Approve(owner, amm.Address(), liq); err != nil {
			return err
		}
		if err := amm.AddLiquidityNative(owner, tok.Address(), liq, cfg.Exchange.LiquidityNative.Units(), l.Timestamp()); err != nil {
			return fmt.Errorf("seed liquidity: %w", err)
		}
	}

	dcfg := cfg.Distribution
	main, err := distribution.New(l, owner, distribution.Config{
		Owner:                 owner,
		Kind:                  model.MainInstance,
		Token:                 tok.Address(),
		Router:                amm,
		Split:                 dcfg.Main.Split(),
		CarryForwardThreshold: dcfg.Main.CarryForwardThreshold.Units(),
		ForwardBps:            dcfg.Main.ForwardBps,
		SwapDeadline:          dcfg.SwapDeadline,
		MinEthAllocation:      dcfg.MinEthAllocation.Units(),
	}, e.metrics.Main, e.logger)
	if err != nil {
		return err
	}

	fac, err := factory.New(l, factory.Config{
		Owner:       owner,
		Token:       tok.Address(),
		Main:        main.Address(),
		Mode:        cfg.Factory.Mode,
		Signer:      cfg.Factory.Signer,
		CreditPrice: cfg.Factory.CreditPrice.Units(),
		Template: distribution.Config{
			Router:                amm,
			Split:                 dcfg.Affiliate.Split(),
			CarryForwardThreshold: dcfg.Affiliate.CarryForwardThreshold.Units(),
			ForwardBps:            dcfg.Affiliate.ForwardBps,
			SwapDeadline:          dcfg.SwapDeadline,
			MinEthAllocation:      dcfg.MinEthAllocation.Units(),
		},
	}, e.metrics.Factory, e.metrics.Affiliate, e.logger)
	if err != nil {
		return err
	}

	for _, a := range cfg.Accounts {
		if amount := a.Tokens.Units(); !amount.IsZero() {
			if err := tok.Transfer(owner, a.Address, amount); err != nil {
				return fmt.Errorf("fund %s: %w", a.Address, err)
			}
		}
	}
	if cfg.Token.ActivateTrading {
		if err := tok.ActivateTrading(owner); err != nil {
			return err
		}
	}

	e.amm, e.token, e.main, e.factory = amm, tok, main, fac
	e.logger.Info("sandbox deployed",
		zap.Stringer("token", tok.Address()),
		zap.Stringer("pair", tok.PairAddress()),
		zap.Stringer("main", main.Address()),
		zap.Stringer("factory", fac.Address()),
		zap.String("mode", string(fac.Mode())))
	return nil
}

// Do runs fn with exclusive access to the deployment.
func (e *Engine) Do(fn func(s *State) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.state())
}

func (e *Engine) state() *State {
	return &State{
		Ledger:  e.ledger,
		AMM:     e.amm,
		Token:   e.token,
		Main:    e.main,
		Factory: e.factory,
		Owner:   e.cfg.Owner,
	}
}

// Subscribe adds a sink for committed logs.
func (e *Engine) Subscribe(sink chain.LogSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ledger.Subscribe(sink)
}

func (e *Engine) lookup(addr common.Address) (*distribution.Distribution, bool) {
	if addr == e.main.Address() {
		return e.main, true
	}
	return e.factory.Distribution(addr)
}

func (e *Engine) instances() []*distribution.Distribution {
	out := []*distribution.Distribution{e.main}
	for _, a := range e.factory.Instances() {
		if d, ok := e.factory.Distribution(a.Instance); ok {
			out = append(out, d)
		}
	}
	return out
}

// Publish verifies a commitment file and makes it live on instance. With
// fund set, the owner first tops the instance up to the file's totals.
func (e *Engine) Publish(caller, instance common.Address, file *merkle.CommitmentFile, fund bool) error {
	if err := file.Verify(); err != nil {
		return err
	}
	settlement, asset, err := file.Totals()
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.lookup(instance)
	if !ok {
		return fmt.Errorf("%s: %w", instance, ErrUnknownDistribution)
	}
	err = e.ledger.Atomic(func() error {
		if fund {
			if err := e.topUp(caller, d.Address(), settlement, asset); err != nil {
				return err
			}
		}
		return d.Publish(caller, file.Root, settlement, asset)
	})
	if err != nil {
		return err
	}
	e.commitments[instance] = file
	return nil
}

func (e *Engine) topUp(from, to common.Address, settlement, asset *uint256.Int) error {
	if held := e.ledger.NativeBalance(to); held.Lt(settlement) {
		if err := e.ledger.TransferNative(from, to, new(uint256.Int).Sub(settlement, held)); err != nil {
			return fmt.Errorf("fund settlement: %w", err)
		}
	}
	if held := e.token.BalanceOf(to); held.Lt(asset) {
		if err := e.token.Transfer(from, to, new(uint256.Int).Sub(asset, held)); err != nil {
			return fmt.Errorf("fund asset: %w", err)
		}
	}
	return nil
}

func (e *Engine) Token() TokenView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return tokenView(e.token, e.ledger.Now())
}

func (e *Engine) Distributions() []DistributionView {
	e.mu.Lock()
	defer e.mu.Unlock()
	ds := e.instances()
	out := make([]DistributionView, 0, len(ds))
	for _, d := range ds {
		out = append(out, e.distributionView(d))
	}
	return out
}

func (e *Engine) Distribution(addr common.Address) (DistributionView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.lookup(addr)
	if !ok {
		return DistributionView{}, fmt.Errorf("%s: %w", addr, ErrUnknownDistribution)
	}
	return e.distributionView(d), nil
}

func (e *Engine) Claim(addr, account common.Address) (ClaimView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.lookup(addr)
	if !ok {
		return ClaimView{}, fmt.Errorf("%s: %w", addr, ErrUnknownDistribution)
	}
	r := d.ClaimRecord(account)
	claimed := false
	if c, ok := d.Commitment(); ok {
		claimed = r.LastClaimedVersion == c.Version
	}
	return ClaimView{
		Account:            account,
		LastClaimedVersion: r.LastClaimedVersion,
		ClaimedThisVersion: claimed,
		TotalSettlement:    model.FormatUnits(r.CumulativeSettlement),
		TotalAsset:         model.FormatUnits(r.CumulativeAsset),
	}, nil
}

// Proof returns account's entry in the last file published through Publish.
func (e *Engine) Proof(addr, account common.Address) (merkle.ProofEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.lookup(addr); !ok {
		return merkle.ProofEntry{}, fmt.Errorf("%s: %w", addr, ErrUnknownDistribution)
	}
	file, ok := e.commitments[addr]
	if !ok {
		return merkle.ProofEntry{}, fmt.Errorf("%s: %w", addr, ErrNoCommitmentFile)
	}
	entry, ok := file.Lookup(account)
	if !ok {
		return merkle.ProofEntry{}, fmt.Errorf("%s: %w", account, merkle.ErrNotFound)
	}
	return entry, nil
}

func (e *Engine) Credits(account common.Address) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.factory.Credits(account)
}

// RefreshGauges publishes every instance's pools.
func (e *Engine) RefreshGauges(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, d := range e.instances() {
		e.metrics.Pools.Set(d.Address(), d.Pools(), d.CurrentVersion())
	}
	return nil
}

// RunKeeper refreshes gauges on the configured interval until ctx is done.
func (e *Engine) RunKeeper(ctx context.Context) error {
	err := clock.Every(ctx, e.clock, e.cfg.Keeper.Interval, e.RefreshGauges, func(err error) {
		e.logger.Warn("keeper tick failed", zap.Error(err))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
