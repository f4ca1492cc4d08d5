package factory

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/reach-engine/internal/chain"
	"github.com/goodnatureofminers/reach-engine/internal/distribution"
	"github.com/goodnatureofminers/reach-engine/internal/exchange"
	"github.com/goodnatureofminers/reach-engine/internal/model"
	"github.com/goodnatureofminers/reach-engine/internal/token"
)

var (
	owner    = common.HexToAddress("0x000000000000000000000000000000000000a0a0")
	treasury = common.HexToAddress("0x000000000000000000000000000000000000feed")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type nopMetrics struct{}

func (nopMetrics) Observe(string, error, time.Time)                     {}
func (nopMetrics) ObserveTransfer(model.TransferKind, error, time.Time) {}
func (nopMetrics) ObserveFee(model.TransferKind, *uint256.Int)          {}
func (nopMetrics) ObserveLiquidation(error, time.Time)                  {}
func (nopMetrics) ObserveSwap(string, error, time.Time)                 {}

type countingMetrics struct {
	calls map[string]int
	fails map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{calls: map[string]int{}, fails: map[string]int{}}
}

func (m *countingMetrics) Observe(operation string, err error, _ time.Time) {
	m.calls[operation]++
	if err != nil {
		m.fails[operation]++
	}
}

type logRecorder struct {
	logs []chain.Log
}

func (r *logRecorder) Consume(logs []chain.Log) {
	r.logs = append(r.logs, logs...)
}

func (r *logRecorder) find(name string) []model.Event {
	var out []model.Event
	for _, l := range r.logs {
		if l.Event.EventName() == name {
			out = append(out, l.Event)
		}
	}
	return out
}

func units(s string) *uint256.Int {
	return model.MustParseUnits(s)
}

type fixture struct {
	ledger  *chain.Ledger
	token   *token.Token
	main    *distribution.Distribution
	logs    *logRecorder
	metrics *countingMetrics
	amm     *exchange.AMM
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ledger := chain.NewLedger(clock, zap.NewNop())
	logs := &logRecorder{}
	ledger.Subscribe(logs)
	ledger.Fund(owner, units("1000"))

	amm, err := exchange.NewAMM(ledger, owner, nopMetrics{}, zap.NewNop())
	require.NoError(t, err)
	tok, err := token.New(ledger, token.Config{
		Name:        "Reach",
		Symbol:      "REACH",
		TotalSupply: units("10000000"),
		Owner:       owner,
		Treasury:    treasury,
		MaxFeeBps:   2500,
	}, amm, nopMetrics{}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, tok.Approve(owner, amm.Address(), units("1000000")))
	require.NoError(t, amm.AddLiquidityNative(owner, tok.Address(), units("1000000"), units("100"), ledger.Timestamp()))
	require.NoError(t, tok.ActivateTrading(owner))
	require.NoError(t, tok.Transfer(owner, alice, units("10000")))

	main, err := distribution.New(ledger, owner, distribution.Config{
		Owner:  owner,
		Kind:   model.MainInstance,
		Token:  tok.Address(),
		Router: amm,
	}, nopMetrics{}, zap.NewNop())
	require.NoError(t, err)

	return &fixture{ledger: ledger, token: tok, main: main, logs: logs, metrics: newCountingMetrics(), amm: amm}
}

func (f *fixture) config(mode model.AuthorizationMode, signer common.Address) Config {
	return Config{
		Owner:       owner,
		Token:       f.token.Address(),
		Main:        f.main.Address(),
		Mode:        mode,
		Signer:      signer,
		CreditPrice: units("100"),
		Template: distribution.Config{
			Router:                f.amm,
			Split:                 model.Split{LeaderboardBps: 5500, GlobalBps: 2500},
			CarryForwardThreshold: units("50000"),
			SwapDeadline:          5 * time.Minute,
		},
	}
}

func (f *fixture) deploy(t *testing.T, cfg Config) *Factory {
	t.Helper()
	fac, err := New(f.ledger, cfg, f.metrics, nopMetrics{}, zap.NewNop())
	require.NoError(t, err)
	return fac
}
