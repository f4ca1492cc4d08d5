package chain

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/reach-engine/internal/model"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type collector struct {
	logs []Log
}

func (c *collector) Consume(logs []Log) {
	c.logs = append(c.logs, logs...)
}

type receiver struct {
	addr   common.Address
	reject error
	got    *uint256.Int
}

func (r *receiver) Address() common.Address { return r.addr }

func (r *receiver) ReceiveNative(_ common.Address, amount *uint256.Int) error {
	if r.reject != nil {
		return r.reject
	}
	r.got = amount
	return nil
}

type plain struct{ addr common.Address }

func (p plain) Address() common.Address { return p.addr }

func newTestLedger() *Ledger {
	return NewLedger(clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0)), zap.NewNop())
}

func TestLedger_AtomicRollsBackEveryWrite(t *testing.T) {
	l := newTestLedger()
	sink := &collector{}
	l.Subscribe(sink)

	m := NewMap[string, int](l)
	v := NewValue(l, 1)
	list := NewList[string](l)
	m.Set("kept", 1)

	errBoom := errors.New("boom")
	err := l.Atomic(func() error {
		m.Set("kept", 2)
		m.Set("new", 3)
		m.Delete("kept")
		v.Set(10)
		list.Append("x")
		l.Fund(alice, uint256.NewInt(5))
		l.Emit(alice, model.ClaimingToggled{Paused: true})
		return errBoom
	})

	require.ErrorIs(t, err, errBoom)
	require.Equal(t, 1, m.Get("kept"))
	_, ok := m.Lookup("new")
	require.False(t, ok)
	require.Equal(t, 1, v.Get())
	require.Zero(t, list.Len())
	require.True(t, l.NativeBalance(alice).IsZero())
	require.Empty(t, sink.logs)
}

func TestLedger_NestedFailureKeepsOuterWrites(t *testing.T) {
	l := newTestLedger()
	sink := &collector{}
	l.Subscribe(sink)
	v := NewValue(l, 0)

	err := l.Atomic(func() error {
		v.Set(1)
		l.Emit(alice, model.ClaimingToggled{Paused: true})
		inner := l.Atomic(func() error {
			v.Set(2)
			l.Emit(alice, model.ClaimingToggled{Paused: false})
			return errors.New("inner")
		})
		require.Error(t, inner)
		require.Empty(t, sink.logs, "logs must wait for the outermost commit")
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 1, v.Get())
	require.Len(t, sink.logs, 1)
	require.Equal(t, uint64(1), sink.logs[0].Seq)
	require.Equal(t, model.ClaimingToggled{Paused: true}, sink.logs[0].Event)
}

func TestLedger_AtomicPanicReverts(t *testing.T) {
	l := newTestLedger()
	v := NewValue(l, "before")

	require.Panics(t, func() {
		_ = l.Atomic(func() error {
			v.Set("after")
			panic("unexpected")
		})
	})
	require.Equal(t, "before", v.Get())
	require.False(t, l.InAtomic())
}

func TestLedger_TransferNative(t *testing.T) {
	contract := common.HexToAddress("0x00000000000000000000000000000000000c0de0")

	tests := []struct {
		name        string
		prepare     func(l *Ledger) *receiver
		to          common.Address
		amount      uint64
		wantErr     error
		wantFrom    uint64
		wantTo      uint64
		wantReceipt bool
	}{
		{
			name:     "wallet to wallet",
			prepare:  func(l *Ledger) *receiver { return nil },
			to:       bob,
			amount:   40,
			wantFrom: 60,
			wantTo:   40,
		},
		{
			name:     "insufficient balance",
			prepare:  func(l *Ledger) *receiver { return nil },
			to:       bob,
			amount:   101,
			wantErr:  ErrInsufficientBalance,
			wantFrom: 100,
		},
		{
			name: "accepting contract",
			prepare: func(l *Ledger) *receiver {
				r := &receiver{addr: contract}
				require.NoError(t, l.Register(r))
				return r
			},
			to:          contract,
			amount:      10,
			wantFrom:    90,
			wantTo:      10,
			wantReceipt: true,
		},
		{
			name: "rejecting contract",
			prepare: func(l *Ledger) *receiver {
				r := &receiver{addr: contract, reject: errors.New("no thanks")}
				require.NoError(t, l.Register(r))
				return r
			},
			to:       contract,
			amount:   10,
			wantErr:  ErrPaymentFailed,
			wantFrom: 100,
		},
		{
			name: "contract without receiver",
			prepare: func(l *Ledger) *receiver {
				require.NoError(t, l.Register(plain{addr: contract}))
				return nil
			},
			to:       contract,
			amount:   10,
			wantErr:  ErrPaymentFailed,
			wantFrom: 100,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger()
			l.Fund(alice, uint256.NewInt(100))
			r := tt.prepare(l)

			err := l.TransferNative(alice, tt.to, uint256.NewInt(tt.amount))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("TransferNative() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := l.NativeBalance(alice).Uint64(); got != tt.wantFrom {
				t.Errorf("sender balance = %d, want %d", got, tt.wantFrom)
			}
			if got := l.NativeBalance(tt.to).Uint64(); got != tt.wantTo {
				t.Errorf("receiver balance = %d, want %d", got, tt.wantTo)
			}
			if tt.wantReceipt && (r == nil || r.got == nil) {
				t.Errorf("receiver was not notified")
			}
		})
	}
}

func TestLedger_Registry(t *testing.T) {
	l := newTestLedger()

	first := l.NextAddress(alice)
	second := l.NextAddress(alice)
	require.NotEqual(t, first, second)

	require.NoError(t, l.Register(plain{addr: first}))
	require.ErrorIs(t, l.Register(plain{addr: first}), ErrAlreadyRegistered)
	require.ErrorIs(t, l.Register(plain{}), ErrZeroAddress)

	_, ok := l.Lookup(first)
	require.True(t, ok)
	_, ok = l.LookupERC20(first)
	require.False(t, ok)
}

func TestKindOf(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), ErrReentrancy)
	if got := KindOf(wrapped); got != KindReentrancy {
		t.Errorf("KindOf() = %v, want %v", got, KindReentrancy)
	}
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf() = %v, want %v", got, KindUnknown)
	}
}
