// Package chain is the in-process execution model shared by every contract:
// native balances, a contract registry, a block clock and an undo journal
// that makes each operation all-or-nothing.
package chain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/reach-engine/internal/model"
)

// Contract is anything deployed at a ledger address.
type Contract interface {
	Address() common.Address
}

// Receiver is implemented by contracts that accept native currency.
// Returning an error rejects the payment and reverts the sender's operation.
type Receiver interface {
	ReceiveNative(from common.Address, amount *uint256.Int) error
}

// ERC20 is the fungible asset surface other contracts rely on.
type ERC20 interface {
	Contract
	TotalSupply() *uint256.Int
	BalanceOf(account common.Address) *uint256.Int
	Allowance(owner, spender common.Address) *uint256.Int
	Transfer(caller, to common.Address, amount *uint256.Int) error
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) error
	Approve(caller, spender common.Address, amount *uint256.Int) error
}

// Log is a committed event.
type Log struct {
	Seq       uint64
	Contract  common.Address
	Timestamp time.Time
	Event     model.Event
}

// LogSink receives logs after the outermost Atomic call commits.
type LogSink interface {
	Consume(logs []Log)
}

// Ledger is not safe for concurrent use.
type Ledger struct {
	clock  clockwork.Clock
	logger *zap.Logger

	balances  *Map[common.Address, *uint256.Int]
	nonces    *Map[common.Address, uint64]
	contracts *Map[common.Address, Contract]

	journal []func()
	depth   int
	pending []Log
	seq     uint64
	sinks   []LogSink
}

func NewLedger(clock clockwork.Clock, logger *zap.Logger) *Ledger {
	l := &Ledger{
		clock:  clock,
		logger: logger.Named("ledger"),
	}
	l.balances = NewMap[common.Address, *uint256.Int](l)
	l.nonces = NewMap[common.Address, uint64](l)
	l.contracts = NewMap[common.Address, Contract](l)
	return l
}

// Now returns the current block time.
func (l *Ledger) Now() time.Time {
	return l.clock.Now()
}

// Timestamp returns the current block time in unix seconds.
func (l *Ledger) Timestamp() uint64 {
	ts := l.clock.Now().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (l *Ledger) Clock() clockwork.Clock {
	return l.clock
}

// Subscribe registers a sink for committed logs.
func (l *Ledger) Subscribe(sink LogSink) {
	l.sinks = append(l.sinks, sink)
}

// Atomic runs fn so that either all of its writes and logs take effect or
// none do. Calls nest; logs are released when the outermost call commits.
// A panic inside fn is re-raised after the writes are undone.
func (l *Ledger) Atomic(fn func() error) (err error) {
	mark := len(l.journal)
	logMark := len(l.pending)
	l.depth++

	defer func() {
		r := recover()
		l.depth--
		if r != nil {
			l.rollback(mark, logMark)
			panic(r)
		}
		if err != nil {
			l.logger.Debug("atomic call reverted",
				zap.Int("writes", len(l.journal)-mark),
				zap.Error(err))
			l.rollback(mark, logMark)
			return
		}
		if l.depth == 0 {
			l.commit()
		}
	}()

	return fn()
}

// InAtomic reports whether a call is currently executing inside Atomic.
func (l *Ledger) InAtomic() bool {
	return l.depth > 0
}

func (l *Ledger) record(undo func()) {
	if l.depth == 0 {
		return
	}
	l.journal = append(l.journal, undo)
}

func (l *Ledger) rollback(mark, logMark int) {
	for i := len(l.journal) - 1; i >= mark; i-- {
		l.journal[i]()
		l.journal[i] = nil
	}
	l.journal = l.journal[:mark]
	for i := logMark; i < len(l.pending); i++ {
		l.pending[i] = Log{}
	}
	l.pending = l.pending[:logMark]
}

func (l *Ledger) commit() {
	l.journal = l.journal[:0]
	if len(l.pending) == 0 {
		return
	}
	logs := l.pending
	l.pending = nil
	for i := range logs {
		l.seq++
		logs[i].Seq = l.seq
	}
	for _, sink := range l.sinks {
		sink.Consume(logs)
	}
}

// Emit queues an event from contract. Outside Atomic it is delivered at once.
func (l *Ledger) Emit(contract common.Address, event model.Event) {
	l.pending = append(l.pending, Log{
		Contract:  contract,
		Timestamp: l.clock.Now(),
		Event:     event,
	})
	if l.depth == 0 {
		l.commit()
	}
}

// NextAddress derives the address of the next contract created by deployer.
func (l *Ledger) NextAddress(deployer common.Address) common.Address {
	nonce := l.nonces.Get(deployer)
	l.nonces.Set(deployer, nonce+1)
	return crypto.CreateAddress(deployer, nonce)
}

// Register makes c reachable at its address.
func (l *Ledger) Register(c Contract) error {
	addr := c.Address()
	if addr == (common.Address{}) {
		return ErrZeroAddress
	}
	if _, ok := l.contracts.Lookup(addr); ok {
		return fmt.Errorf("register %s: %w", addr, ErrAlreadyRegistered)
	}
	l.contracts.Set(addr, c)
	return nil
}

// Lookup returns the contract deployed at addr.
func (l *Ledger) Lookup(addr common.Address) (Contract, bool) {
	return l.contracts.Lookup(addr)
}

// LookupERC20 returns the contract at addr if it implements the asset surface.
func (l *Ledger) LookupERC20(addr common.Address) (ERC20, bool) {
	c, ok := l.contracts.Lookup(addr)
	if !ok {
		return nil, false
	}
	token, ok := c.(ERC20)
	return token, ok
}

// NativeBalance returns a copy of the native balance of addr.
func (l *Ledger) NativeBalance(addr common.Address) *uint256.Int {
	if v := l.balances.Get(addr); v != nil {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}

// Fund mints native currency to addr. Used for genesis allocations and tests.
func (l *Ledger) Fund(addr common.Address, amount *uint256.Int) {
	l.balances.Set(addr, new(uint256.Int).Add(l.NativeBalance(addr), amount))
}

// TransferNative moves native currency and, if to is a registered contract,
// lets it accept or reject the payment. Contracts that do not implement
// Receiver reject every payment.
func (l *Ledger) TransferNative(from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	return l.Atomic(func() error {
		bal := l.NativeBalance(from)
		if bal.Lt(amount) {
			return fmt.Errorf("transfer %s from %s: %w", amount.Dec(), from, ErrInsufficientBalance)
		}
		l.balances.Set(from, bal.Sub(bal, amount))
		l.balances.Set(to, new(uint256.Int).Add(l.NativeBalance(to), amount))

		c, ok := l.contracts.Lookup(to)
		if !ok {
			return nil
		}
		r, ok := c.(Receiver)
		if !ok {
			return fmt.Errorf("%s does not accept native currency: %w", to, ErrPaymentFailed)
		}
		if err := r.ReceiveNative(from, amount); err != nil {
			return fmt.Errorf("%w: %w", ErrPaymentFailed, err)
		}
		return nil
	})
}
