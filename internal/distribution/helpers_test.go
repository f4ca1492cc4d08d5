package distribution

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
	"github.com/goodnatureofminers/reach-engine/internal/merkle"
	"github.com/goodnatureofminers/reach-engine/internal/model"
	"github.com/goodnatureofminers/reach-engine/internal/token"
)

var (
	owner    = common.HexToAddress("0x000000000000000000000000000000000000a0a0")
	treasury = common.HexToAddress("0x000000000000000000000000000000000000feed")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol    = common.HexToAddress("0x00000000000000000000000000000000000ca201")
)

type nopMetrics struct{}

func (nopMetrics) Observe(string, error, time.Time)                     {}
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
	clock  *clockwork.FakeClock
	ledger *chain.Ledger
	amm    *exchange.AMM
	token  *token.Token
	logs   *logRecorder
}

// newFixture deploys a tradable asset with 1M tokens against 100 native units.
// buyFeeBps applies to everything bought from the pair.
func newFixture(t *testing.T, buyFeeBps uint64, activate bool) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ledger := chain.NewLedger(clock, zap.NewNop())
	logs := &logRecorder{}
	ledger.Subscribe(logs)
	ledger.Fund(owner, units("10000"))
	ledger.Fund(alice, units("100"))

	amm, err := exchange.NewAMM(ledger, owner, nopMetrics{}, zap.NewNop())
	require.NoError(t, err)
	tok, err := token.New(ledger, token.Config{
		Name:        "Reach",
		Symbol:      "REACH",
		TotalSupply: units("10000000"),
		Owner:       owner,
		Treasury:    treasury,
		BuyFeeBps:   buyFeeBps,
		SellFeeBps:  buyFeeBps,
		MaxFeeBps:   2500,
	}, amm, nopMetrics{}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, tok.Approve(owner, amm.Address(), units("1000000")))
	require.NoError(t, amm.AddLiquidityNative(owner, tok.Address(), units("1000000"), units("100"), ledger.Timestamp()))
	if activate {
		require.NoError(t, tok.ActivateTrading(owner))
	}
	return &fixture{clock: clock, ledger: ledger, amm: amm, token: tok, logs: logs}
}

func (f *fixture) config(split model.Split) Config {
	return Config{
		Owner:        owner,
		Kind:         model.AffiliateInstance,
		Token:        f.token.Address(),
		Router:       f.amm,
		Split:        split,
		SwapDeadline: 5 * time.Minute,
	}
}

func (f *fixture) deploy(t *testing.T, cfg Config) *Distribution {
	t.Helper()
	d, err := New(f.ledger, owner, cfg, nopMetrics{}, zap.NewNop())
	require.NoError(t, err)
	return d
}

// fund moves settlement and asset into d as the owner.
func (f *fixture) fund(t *testing.T, d *Distribution, settlement, asset *uint256.Int) {
	t.Helper()
	require.NoError(t, f.ledger.TransferNative(owner, d.Address(), settlement))
	require.NoError(t, f.token.Transfer(owner, d.Address(), asset))
}

func (f *fixture) quoteBuy(t *testing.T, value *uint256.Int) *uint256.Int {
	t.Helper()
	amounts, err := f.amm.GetAmountsOut(value, []common.Address{f.amm.WrappedNative(), f.token.Address()})
	require.NoError(t, err)
	return amounts[1]
}

type claimSet struct {
	gen        *merkle.Generator
	recipients map[common.Address]model.Recipient
	settlement *uint256.Int
	asset      *uint256.Int
}

func newClaimSet(t *testing.T, rs ...model.Recipient) claimSet {
	t.Helper()
	gen, err := merkle.NewGenerator(rs)
	require.NoError(t, err)
	cs := claimSet{gen: gen, recipients: map[common.Address]model.Recipient{}, settlement: new(uint256.Int), asset: new(uint256.Int)}
	for _, r := range rs {
		cs.recipients[r.Account] = r
		cs.settlement.Add(cs.settlement, r.Settlement)
		cs.asset.Add(cs.asset, r.Asset)
	}
	return cs
}

func (cs claimSet) proof(t *testing.T, account common.Address) []common.Hash {
	t.Helper()
	p, err := cs.gen.Proof(account)
	require.NoError(t, err)
	return p
}

func (cs claimSet) claim(t *testing.T, d *Distribution, account common.Address) error {
	t.Helper()
	r := cs.recipients[account]
	return d.Claim(account, cs.proof(t, account), r.Settlement, r.Asset)
}

func threeRecipients() []model.Recipient {
	return []model.Recipient{
		{Account: alice, Settlement: units("1"), Asset: units("100")},
		{Account: bob, Settlement: units("2"), Asset: units("200")},
		{Account: carol, Settlement: units("3"), Asset: units("300")},
	}
}

// payee is a contract recipient whose ReceiveNative behaviour is scripted.
type payee struct {
	addr    common.Address
	onPay   func() error
	invoked int
}

func (p *payee) Address() common.Address { return p.addr }

func (p *payee) ReceiveNative(common.Address, *uint256.Int) error {
	p.invoked++
	if p.onPay != nil {
		return p.onPay()
	}
	return nil
}
