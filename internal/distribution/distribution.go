// Package distribution implements a reward distribution instance: mission
// funding split into leaderboard, global and reserve pools, and versioned
// Merkle commitments that recipients claim against.
package distribution

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
	ErrNoCommitment           = chain.NewError(chain.KindState, "NoCommitment")
	ErrAlreadyClaimed         = chain.NewError(chain.KindState, "AlreadyClaimed")
	ErrInvalidProof           = chain.NewError(chain.KindProof, "InvalidProof")
	ErrClaimingPaused         = chain.NewError(chain.KindState, "ClaimingPaused")
	ErrExceedsFunding         = chain.NewError(chain.KindInvariant, "ExceedsFunding")
	ErrInsufficientSettlement = chain.NewError(chain.KindState, "InsufficientSettlementBalance")
	ErrInsufficientAsset      = chain.NewError(chain.KindState, "InsufficientAssetBalance")
	ErrAmountMismatch         = chain.NewError(chain.KindValidation, "AmountMismatch")
	ErrInvalidMissionID       = chain.NewError(chain.KindValidation, "InvalidMissionId")
	ErrMissionExists          = chain.NewError(chain.KindState, "MissionExists")
	ErrSwapFailed             = chain.NewError(chain.KindExternalCall, "SwapFailed")
	ErrSlippageExceeded       = chain.NewError(chain.KindExternalCall, "SlippageExceeded")
	ErrInvalidTokenAddress    = chain.NewError(chain.KindValidation, "InvalidTokenAddress")
	ErrNotAToken              = chain.NewError(chain.KindValidation, "NotAToken")
	ErrInvalidSplit           = chain.NewError(chain.KindValidation, "InvalidSplit")
	ErrInsufficientAllocation = chain.NewError(chain.KindValidation, "InsufficientEthAllocation")
)

// DefaultMinEthAllocation is the smallest reservation accepted when the
// config leaves it unset.
var DefaultMinEthAllocation = model.MustParseUnits("0.01")

// Metrics records the outcome of distribution operations.
type Metrics interface {
	Observe(operation string, err error, started time.Time)
}

// Config is the per-instance deployment configuration.
type Config struct {
	Owner  common.Address
	Kind   model.InstanceKind
	Token  common.Address
	Router exchange.Router
	Split  model.Split
	// Parent receives global pool surplus and the forwarded share of SwapEth.
	Parent                common.Address
	CarryForwardThreshold *uint256.Int
	ForwardBps            uint64
	SwapDeadline          time.Duration
	MinEthAllocation      *uint256.Int
}

func (c Config) Validate() error {
	if c.Owner == (common.Address{}) || c.Token == (common.Address{}) {
		return chain.ErrZeroAddress
	}
	if c.Router == nil {
		return fmt.Errorf("router is required")
	}
	if c.Split.SwapBps() > safe.BasisPoints {
		return fmt.Errorf("split %d+%d bps: %w", c.Split.LeaderboardBps, c.Split.GlobalBps, ErrInvalidSplit)
	}
	if c.ForwardBps > safe.BasisPoints {
		return fmt.Errorf("forward %d bps: %w", c.ForwardBps, ErrInvalidSplit)
	}
	if c.MinEthAllocation != nil && c.MinEthAllocation.IsZero() {
		return fmt.Errorf("min eth allocation: %w", ErrInsufficientAllocation)
	}
	return nil
}

// Distribution is one distribution instance.
type Distribution struct {
	ledger  *chain.Ledger
	address common.Address
	roles   *chain.Roles
	guard   chain.Guard
	metrics Metrics
	logger  *zap.Logger

	kind      model.InstanceKind
	router    exchange.Router
	split     model.Split
	parent    common.Address
	threshold *uint256.Int
	forward   uint64
	deadline  time.Duration

	token     *chain.Value[common.Address]
	paused    *chain.Value[bool]
	published *chain.Value[model.Commitment]
	// per-version payouts, reset on publish
	claimedSettlement *chain.Value[*uint256.Int]
	claimedAsset      *chain.Value[*uint256.Int]
	totalSettlement   *chain.Value[*uint256.Int]
	totalAsset        *chain.Value[*uint256.Int]
	records           *chain.Map[common.Address, model.ClaimRecord]

	missions     *chain.Map[string, model.Mission]
	missionOrder *chain.List[string]
	leaderboard  *chain.Value[*uint256.Int]
	global       *chain.Value[*uint256.Int]
	reserve      *chain.Value[*uint256.Int]

	minAllocation *chain.Value[*uint256.Int]
	reservations  *chain.Map[common.Address, *uint256.Int]
}

// New deploys an instance from deployer and registers it on the ledger.
func New(ledger *chain.Ledger, deployer common.Address, cfg Config, metrics Metrics, logger *zap.Logger) (*Distribution, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	threshold := cfg.CarryForwardThreshold
	if threshold == nil {
		threshold = new(uint256.Int)
	}
	minAllocation := cfg.MinEthAllocation
	if minAllocation == nil {
		minAllocation = DefaultMinEthAllocation
	}
	kind := cfg.Kind
	if kind == "" {
		kind = model.MainInstance
	}

	var d *Distribution
	err := ledger.Atomic(func() error {
		addr := ledger.NextAddress(deployer)
		d = &Distribution{
			ledger:  ledger,
			address: addr,
			roles:   chain.NewRoles(ledger, addr, cfg.Owner),
			metrics: metrics,
			logger: logger.Named("distribution").With(
				zap.Stringer("instance", addr),
				zap.String("kind", string(kind)),
			),
			kind:      kind,
			router:    cfg.Router,
			split:     cfg.Split,
			parent:    cfg.Parent,
			threshold: threshold.Clone(),
			forward:   cfg.ForwardBps,
			deadline:  cfg.SwapDeadline,

			token:             chain.NewValue(ledger, cfg.Token),
			paused:            chain.NewValue(ledger, false),
			published:         chain.NewValue(ledger, model.Commitment{}),
			claimedSettlement: chain.NewValue(ledger, new(uint256.Int)),
			claimedAsset:      chain.NewValue(ledger, new(uint256.Int)),
			totalSettlement:   chain.NewValue(ledger, new(uint256.Int)),
			totalAsset:        chain.NewValue(ledger, new(uint256.Int)),
			records:           chain.NewMap[common.Address, model.ClaimRecord](ledger),
			missions:          chain.NewMap[string, model.Mission](ledger),
			missionOrder:      chain.NewList[string](ledger),
			leaderboard:       chain.NewValue(ledger, new(uint256.Int)),
			global:            chain.NewValue(ledger, new(uint256.Int)),
			reserve:           chain.NewValue(ledger, new(uint256.Int)),
			minAllocation:     chain.NewValue(ledger, minAllocation.Clone()),
			reservations:      chain.NewMap[common.Address, *uint256.Int](ledger),
		}
		return ledger.Register(d)
	})
	if err != nil {
		return nil, fmt.Errorf("deploy distribution: %w", err)
	}
	return d, nil
}

func (d *Distribution) Address() common.Address  { return d.address }
func (d *Distribution) Kind() model.InstanceKind { return d.kind }
func (d *Distribution) Owner() common.Address    { return d.roles.Owner() }
func (d *Distribution) Roles() *chain.Roles      { return d.roles }
func (d *Distribution) Parent() common.Address   { return d.parent }
func (d *Distribution) Split() model.Split       { return d.split }
func (d *Distribution) Token() common.Address    { return d.token.Get() }
func (d *Distribution) Paused() bool             { return d.paused.Get() }

// ReceiveNative accepts settlement currency from any sender.
func (d *Distribution) ReceiveNative(common.Address, *uint256.Int) error { return nil }

func (d *Distribution) asset() (chain.ERC20, error) {
	addr := d.token.Get()
	t, ok := d.ledger.LookupERC20(addr)
	if !ok {
		return nil, fmt.Errorf("%s: %w", addr, ErrNotAToken)
	}
	return t, nil
}

func (d *Distribution) observe(operation string, started time.Time, err error) {
	d.metrics.Observe(operation, err, started)
	if err != nil {
		d.logger.Debug("operation failed", zap.String("operation", operation), zap.Error(err))
	}
}

// TogglePaused flips the claiming pause flag. Admins and the owner may call it.
func (d *Distribution) TogglePaused(caller common.Address) (err error) {
	defer func(started time.Time) { d.observe("toggle_paused", started, err) }(time.Now())

	return d.ledger.Atomic(func() error {
		if err := d.roles.OnlyAdmin(caller); err != nil {
			return err
		}
		paused := !d.paused.Get()
		d.paused.Set(paused)
		d.ledger.Emit(d.address, model.ClaimingToggled{Paused: paused})
		d.logger.Info("claiming toggled", zap.Bool("paused", paused), zap.Stringer("by", caller))
		return nil
	})
}

func (d *Distribution) AddAdmin(caller, admin common.Address) error {
	return d.roles.AddAdmin(caller, admin)
}

func (d *Distribution) RemoveAdmin(caller, admin common.Address) error {
	return d.roles.RemoveAdmin(caller, admin)
}

func (d *Distribution) IsAdmin(account common.Address) bool {
	return d.roles.IsAdmin(account)
}

// SetToken rebinds the asset after probing that addr answers the token surface.
func (d *Distribution) SetToken(caller, addr common.Address) error {
	return d.ledger.Atomic(func() error {
		if err := d.roles.OnlyOwner(caller); err != nil {
			return err
		}
		if addr == (common.Address{}) {
			return ErrInvalidTokenAddress
		}
		t, ok := d.ledger.LookupERC20(addr)
		if !ok || t.TotalSupply() == nil {
			return fmt.Errorf("%s: %w", addr, ErrNotAToken)
		}
		d.token.Set(addr)
		return nil
	})
}

// Withdraw sends settlement currency held by the instance to the owner.
// The reserve pool shrinks by at most the withdrawn amount.
func (d *Distribution) Withdraw(caller common.Address, amount *uint256.Int) (err error) {
	defer func(started time.Time) { d.observe("withdraw", started, err) }(time.Now())

	release, err := d.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	return d.ledger.Atomic(func() error {
		if err := d.roles.OnlyOwner(caller); err != nil {
			return err
		}
		reserve := d.reserve.Get()
		d.reserve.Set(new(uint256.Int).Sub(reserve, safe.Min(reserve, amount)))
		return d.ledger.TransferNative(d.address, caller, amount)
	})
}
