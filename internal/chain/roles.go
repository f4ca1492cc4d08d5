package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/goodnatureofminers/reach-engine/internal/model"
)

// Roles is the single-owner plus admin-set access model of a contract.
// Ownership moves in two steps, offer then accept, and is never renounced.
type Roles struct {
	ledger   *Ledger
	contract common.Address
	owner    *Value[common.Address]
	pending  *Value[common.Address]
	admins   *Map[common.Address, bool]
}

func NewRoles(l *Ledger, contract, owner common.Address) *Roles {
	return &Roles{
		ledger:   l,
		contract: contract,
		owner:    NewValue(l, owner),
		pending:  NewValue(l, common.Address{}),
		admins:   NewMap[common.Address, bool](l),
	}
}

func (r *Roles) Owner() common.Address {
	return r.owner.Get()
}

// PendingOwner is the account that may accept ownership, or the zero address.
func (r *Roles) PendingOwner() common.Address {
	return r.pending.Get()
}

// IsAdmin reports whether account may run admin operations. The owner always can.
func (r *Roles) IsAdmin(account common.Address) bool {
	return account == r.owner.Get() || r.admins.Get(account)
}

func (r *Roles) OnlyOwner(caller common.Address) error {
	if caller != r.owner.Get() {
		return fmt.Errorf("caller %s is not the owner: %w", caller, ErrUnauthorized)
	}
	return nil
}

func (r *Roles) OnlyAdmin(caller common.Address) error {
	if !r.IsAdmin(caller) {
		return fmt.Errorf("caller %s is not an admin: %w", caller, ErrUnauthorized)
	}
	return nil
}

func (r *Roles) AddAdmin(caller, admin common.Address) error {
	return r.setAdmin(caller, admin, true)
}

func (r *Roles) RemoveAdmin(caller, admin common.Address) error {
	return r.setAdmin(caller, admin, false)
}

func (r *Roles) setAdmin(caller, admin common.Address, enabled bool) error {
	return r.ledger.Atomic(func() error {
		if err := r.OnlyOwner(caller); err != nil {
			return err
		}
		if admin == (common.Address{}) {
			return ErrZeroAddress
		}
		if enabled {
			r.admins.Set(admin, true)
		} else {
			r.admins.Delete(admin)
		}
		r.ledger.Emit(r.contract, model.AdminUpdated{Admin: admin, Enabled: enabled})
		return nil
	})
}

// TransferOwnership offers the contract to newOwner. The current owner keeps
// every right until newOwner accepts; a later offer replaces this one.
func (r *Roles) TransferOwnership(caller, newOwner common.Address) error {
	return r.ledger.Atomic(func() error {
		if err := r.OnlyOwner(caller); err != nil {
			return err
		}
		if newOwner == (common.Address{}) {
			return ErrZeroAddress
		}
		r.pending.Set(newOwner)
		r.ledger.Emit(r.contract, model.OwnershipTransferStarted{Previous: r.owner.Get(), Owner: newOwner})
		return nil
	})
}

// AcceptOwnership completes a transfer. Only the pending owner may call it.
func (r *Roles) AcceptOwnership(caller common.Address) error {
	return r.ledger.Atomic(func() error {
		pending := r.pending.Get()
		if pending == (common.Address{}) || caller != pending {
			return fmt.Errorf("caller %s is not the pending owner: %w", caller, ErrUnauthorized)
		}
		prev := r.owner.Get()
		r.owner.Set(pending)
		r.pending.Set(common.Address{})
		r.ledger.Emit(r.contract, model.OwnershipTransferred{Previous: prev, Owner: pending})
		return nil
	})
}

// Guard rejects nested entry into the operations it protects.
// It is not journaled.
type Guard struct {
	entered bool
}

// Enter marks the guard busy. Call the returned release when done.
func (g *Guard) Enter() (func(), error) {
	if g.entered {
		return nil, ErrReentrancy
	}
	g.entered = true
	return func() { g.entered = false }, nil
}
