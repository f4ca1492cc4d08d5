package distribution

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/reach-engine/internal/model"
)

func (d *Distribution) MinEthAllocation() *uint256.Int {
	return d.minAllocation.Get().Clone()
}

// Reservation is the settlement currency account has reserved so far.
func (d *Distribution) Reservation(account common.Address) *uint256.Int {
	if v := d.reservations.Get(account); v != nil {
		return v.Clone()
	}
	return new(uint256.Int)
}

// ReserveEthAllocation takes value from caller into the reserve pool and
// records it against caller. Each payment must reach the minimum allocation.
func (d *Distribution) ReserveEthAllocation(caller common.Address, value *uint256.Int) (err error) {
	defer func(started time.Time) { d.observe("reserve_eth_allocation", started, err) }(time.Now())

	release, err := d.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	return d.ledger.Atomic(func() error {
		if floor := d.minAllocation.Get(); value.Lt(floor) {
			return fmt.Errorf("sent %s, minimum %s: %w", value.Dec(), floor.Dec(), ErrInsufficientAllocation)
		}
		if err := d.ledger.TransferNative(caller, d.address, value); err != nil {
			return fmt.Errorf("collect allocation: %w", err)
		}
		total := new(uint256.Int).Add(d.Reservation(caller), value)
		d.reservations.Set(caller, total)
		d.reserve.Set(new(uint256.Int).Add(d.reserve.Get(), value))
		d.ledger.Emit(d.address, model.EthAllocationReserved{Account: caller, Amount: value.Clone()})
		d.logger.Info("eth allocation reserved",
			zap.Stringer("account", caller),
			zap.String("amount", value.Dec()),
			zap.String("total", total.Dec()))
		return nil
	})
}

// SetMinEthAllocation changes the smallest accepted reservation. Zero is rejected.
func (d *Distribution) SetMinEthAllocation(caller common.Address, floor *uint256.Int) error {
	return d.ledger.Atomic(func() error {
		if err := d.roles.OnlyOwner(caller); err != nil {
			return err
		}
		if floor == nil || floor.IsZero() {
			return fmt.Errorf("min eth allocation: %w", ErrInsufficientAllocation)
		}
		d.minAllocation.Set(floor.Clone())
		return nil
	})
}
