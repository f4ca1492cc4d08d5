package token

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/reach-engine/internal/chain"
	"github.com/goodnatureofminers/reach-engine/internal/exchange"
	"github.com/goodnatureofminers/reach-engine/internal/model"
)

var (
	owner    = common.HexToAddress("0x000000000000000000000000000000000000a0a0")
	treasury = common.HexToAddress("0x000000000000000000000000000000000000feed")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type nopMetrics struct{}

func (nopMetrics) ObserveTransfer(model.TransferKind, error, time.Time) {}
func (nopMetrics) ObserveFee(model.TransferKind, *uint256.Int)          {}
func (nopMetrics) ObserveLiquidation(error, time.Time)                  {}
func (nopMetrics) ObserveSwap(string, error, time.Time)                 {}

type logRecorder struct {
	logs []chain.Log
}

func (r *logRecorder) Consume(logs []chain.Log) {
	r.logs = append(r.logs, logs...)
}

func (r *logRecorder) count(name string) int {
	n := 0
	for _, l := range r.logs {
		if l.Event.EventName() == name {
			n++
		}
	}
	return n
}

func units(s string) *uint256.Int {
	return model.MustParseUnits(s)
}

type fixture struct {
	clock  *clockwork.FakeClock
	ledger *chain.Ledger
	amm    *exchange.AMM
	token  *Token
	logs   *logRecorder
}

func defaultConfig() Config {
	return Config{
		Name:                 "Reach",
		Symbol:               "REACH",
		TotalSupply:          units("1000000"),
		Owner:                owner,
		Treasury:             treasury,
		BuyFeeBps:            500,
		SellFeeBps:           500,
		MaxFeeBps:            2500,
		LiquidationThreshold: units("100000"),
		AntiSnipeWindow:      10 * time.Minute,
		MaxTxBps:             200,
		MaxWalletBps:         200,
	}
}

// newFixture deploys the token with 500k tokens against 100 native units of liquidity.
func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ledger := chain.NewLedger(clock, zap.NewNop())
	logs := &logRecorder{}
	ledger.Subscribe(logs)
	ledger.Fund(owner, units("1000"))
	ledger.Fund(alice, units("100"))
	ledger.Fund(bob, units("100"))

	amm, err := exchange.NewAMM(ledger, owner, nopMetrics{}, zap.NewNop())
	require.NoError(t, err)
	tok, err := New(ledger, cfg, amm, nopMetrics{}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, tok.Approve(owner, amm.Address(), units("500000")))
	require.NoError(t, amm.AddLiquidityNative(owner, tok.Address(), units("500000"), units("100"), deadline(ledger)))

	return &fixture{clock: clock, ledger: ledger, amm: amm, token: tok, logs: logs}
}

func deadline(l *chain.Ledger) uint64 {
	return l.Timestamp() + 600
}

func (f *fixture) buy(t *testing.T, who common.Address, value *uint256.Int) (*uint256.Int, error) {
	t.Helper()
	path := []common.Address{f.amm.WrappedNative(), f.token.Address()}
	amounts, err := f.amm.SwapExactNativeForTokens(who, value, new(uint256.Int), path, who, deadline(f.ledger))
	if err != nil {
		return nil, err
	}
	return amounts[1], nil
}

func (f *fixture) quoteBuy(t *testing.T, value *uint256.Int) *uint256.Int {
	t.Helper()
	path := []common.Address{f.amm.WrappedNative(), f.token.Address()}
	amounts, err := f.amm.GetAmountsOut(value, path)
	require.NoError(t, err)
	return amounts[1]
}

func (f *fixture) sell(who common.Address, amount *uint256.Int) error {
	if err := f.token.Approve(who, f.amm.Address(), amount); err != nil {
		return err
	}
	path := []common.Address{f.token.Address(), f.amm.WrappedNative()}
	return f.amm.SwapExactTokensForNativeSupportingFeeOnTransferTokens(who, amount, new(uint256.Int), path, who, deadline(f.ledger))
}

func bps(amount *uint256.Int, b uint64) *uint256.Int {
	out := new(uint256.Int).Mul(amount, uint256.NewInt(b))
	return out.Div(out, uint256.NewInt(10_000))
}

type rejectingTreasury struct {
	addr common.Address
}

func (r rejectingTreasury) Address() common.Address { return r.addr }

func (r rejectingTreasury) ReceiveNative(common.Address, *uint256.Int) error {
	return chain.NewError(chain.KindExternalCall, "Rejected")
}
