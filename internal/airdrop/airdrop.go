// Package airdrop implements a Merkle-gated, linearly vesting token airdrop.
// A recipient may claim once; whatever has not vested at that moment is
// forfeited to the owner.
package airdrop

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/reach-engine/internal/chain"
	"github.com/goodnatureofminers/reach-engine/internal/merkle"
	"github.com/goodnatureofminers/reach-engine/internal/model"
)

const (
	Week         = 7 * 24 * time.Hour
	VestingWeeks = 30
	GraceWeeks   = 4
)

var (
	ErrAlreadyClaimed = chain.NewError(chain.KindState, "AirdropAlreadyClaimed")
	ErrInvalidProof   = chain.NewError(chain.KindValidation, "InvalidMerkleProof")
	ErrNothingToClaim = chain.NewError(chain.KindValidation, "NothingToClaim")
	ErrNotAToken      = chain.NewError(chain.KindValidation, "NotAToken")
)

// Airdrop holds the asset for a fixed allocation root.
type Airdrop struct {
	ledger  *chain.Ledger
	address common.Address
	roles   *chain.Roles
	root    common.Hash
	token   common.Address
	start   time.Time
	logger  *zap.Logger

	claimed *chain.Map[common.Address, bool]
	lost    *chain.Value[*uint256.Int]
}

// New deploys an airdrop whose vesting clock starts now.
func New(ledger *chain.Ledger, owner common.Address, root common.Hash, token common.Address, logger *zap.Logger) (*Airdrop, error) {
	if owner == (common.Address{}) || token == (common.Address{}) {
		return nil, chain.ErrZeroAddress
	}
	if _, ok := ledger.LookupERC20(token); !ok {
		return nil, fmt.Errorf("%s: %w", token, ErrNotAToken)
	}

	var a *Airdrop
	err := ledger.Atomic(func() error {
		addr := ledger.NextAddress(owner)
		a = &Airdrop{
			ledger:  ledger,
			address: addr,
			roles:   chain.NewRoles(ledger, addr, owner),
			root:    root,
			token:   token,
			start:   ledger.Now(),
			logger:  logger.Named("airdrop").With(zap.Stringer("airdrop", addr)),
			claimed: chain.NewMap[common.Address, bool](ledger),
			lost:    chain.NewValue(ledger, new(uint256.Int)),
		}
		return ledger.Register(a)
	})
	if err != nil {
		return nil, fmt.Errorf("deploy airdrop: %w", err)
	}
	return a, nil
}

func (a *Airdrop) Address() common.Address { return a.address }
func (a *Airdrop) Owner() common.Address   { return a.roles.Owner() }
func (a *Airdrop) Root() common.Hash       { return a.root }
func (a *Airdrop) Start() time.Time        { return a.start }

func (a *Airdrop) Claimed(account common.Address) bool { return a.claimed.Get(account) }

// LostAirdrop is the forfeited amount not yet withdrawn.
func (a *Airdrop) LostAirdrop() *uint256.Int { return a.lost.Get().Clone() }

// CurrentWeek is the 1-based vesting week, capped at VestingWeeks.
func (a *Airdrop) CurrentWeek() uint64 {
	elapsed := a.ledger.Now().Sub(a.start)
	if elapsed < 0 {
		elapsed = 0
	}
	week := uint64(elapsed/Week) + 1
	if week > VestingWeeks {
		week = VestingWeeks
	}
	return week
}

// CalculateAmount returns the vested part of total and the week used.
func (a *Airdrop) CalculateAmount(total *uint256.Int) (*uint256.Int, uint64) {
	week := a.CurrentWeek()
	vested, _ := new(uint256.Int).MulDivOverflow(total, uint256.NewInt(week), uint256.NewInt(VestingWeeks))
	return vested, week
}

// Claim pays the vested part of account's allocation and forfeits the rest.
func (a *Airdrop) Claim(account common.Address, proof []common.Hash, total *uint256.Int) error {
	return a.ledger.Atomic(func() error {
		if a.claimed.Get(account) {
			return fmt.Errorf("%s: %w", account, ErrAlreadyClaimed)
		}
		if total == nil || total.IsZero() {
			return ErrNothingToClaim
		}
		if !merkle.Verify(proof, a.root, merkle.Leaf(account, total)) {
			return ErrInvalidProof
		}

		amount, week := a.CalculateAmount(total)
		lost := new(uint256.Int).Sub(total, amount)
		a.claimed.Set(account, true)
		a.lost.Set(new(uint256.Int).Add(a.lost.Get(), lost))

		token, err := a.asset()
		if err != nil {
			return err
		}
		if err := token.Transfer(a.address, account, amount); err != nil {
			return fmt.Errorf("pay airdrop: %w", err)
		}
		a.ledger.Emit(a.address, model.AirdropClaimed{Account: account, Amount: amount, Lost: lost, Week: week})
		a.logger.Info("airdrop claimed",
			zap.Stringer("account", account),
			zap.String("amount", amount.Dec()),
			zap.Uint64("week", week))
		return nil
	})
}

// WithdrawLostTokens sends forfeited tokens to the owner. Once the grace
// period after vesting has passed it sweeps the whole balance.
func (a *Airdrop) WithdrawLostTokens(caller common.Address) error {
	return a.ledger.Atomic(func() error {
		if err := a.roles.OnlyOwner(caller); err != nil {
			return err
		}
		token, err := a.asset()
		if err != nil {
			return err
		}
		amount := a.lost.Get()
		if !a.ledger.Now().Before(a.start.Add((VestingWeeks + GraceWeeks) * Week)) {
			amount = token.BalanceOf(a.address)
		}
		a.lost.Set(new(uint256.Int))
		if amount.IsZero() {
			return nil
		}
		return token.Transfer(a.address, a.roles.Owner(), amount)
	})
}

func (a *Airdrop) TransferOwnership(caller, owner common.Address) error {
	return a.roles.TransferOwnership(caller, owner)
}

func (a *Airdrop) AcceptOwnership(caller common.Address) error {
	return a.roles.AcceptOwnership(caller)
}

func (a *Airdrop) asset() (chain.ERC20, error) {
	t, ok := a.ledger.LookupERC20(a.token)
	if !ok {
		return nil, fmt.Errorf("%s: %w", a.token, ErrNotAToken)
	}
	return t, nil
}
