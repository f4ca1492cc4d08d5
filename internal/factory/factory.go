// Package factory provisions affiliate distribution instances behind a
// pluggable authorization strategy and sells the credits that pay for them.
package factory

import (
	"fmt"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/reach-engine/internal/chain"
	"github.com/goodnatureofminers/reach-engine/internal/distribution"
	"github.com/goodnatureofminers/reach-engine/internal/model"
)

var (
	ErrInsufficientCredits = chain.NewError(chain.KindState, "InsufficientCredits")
	ErrInvalidSignature    = chain.NewError(chain.KindAuthorization, "InvalidSignature")
	ErrNonceUsed           = chain.NewError(chain.KindAuthorization, "NonceAlreadyUsed")
	ErrInvalidPrice        = chain.NewError(chain.KindValidation, "InvalidPrice")
	ErrInvalidCredits      = chain.NewError(chain.KindValidation, "InvalidCredits")
	ErrInvalidTokenAddress = chain.NewError(chain.KindValidation, "InvalidTokenAddress")
	ErrNotAToken           = chain.NewError(chain.KindValidation, "NotAToken")
	ErrUnsupportedMode     = chain.NewError(chain.KindState, "UnsupportedAuthorizationMode")
)

// Metrics records factory operations.
type Metrics interface {
	Observe(operation string, err error, started time.Time)
}

// Config configures the factory and the instances it provisions.
type Config struct {
	Owner       common.Address
	Token       common.Address
	Main        common.Address
	Mode        model.AuthorizationMode
	Signer      common.Address
	CreditPrice *uint256.Int
	// Template supplies router, split, threshold, forward share and swap
	// deadline for every affiliate. Owner, kind, token and parent are set per instance.
	Template distribution.Config
}

// Factory is the affiliate provisioning contract.
type Factory struct {
	ledger       *chain.Ledger
	address      common.Address
	roles        *chain.Roles
	strategy     AuthorizationStrategy
	template     distribution.Config
	main         common.Address
	metrics      Metrics
	distMetrics  distribution.Metrics
	logger       *zap.Logger
	token        *chain.Value[common.Address]
	creditPrice  *chain.Value[*uint256.Int]
	credits      *chain.Map[common.Address, uint64]
	instances    *chain.List[model.Affiliate]
	distribution *chain.Map[common.Address, *distribution.Distribution]
}

func New(
	ledger *chain.Ledger,
	cfg Config,
	metrics Metrics,
	distMetrics distribution.Metrics,
	logger *zap.Logger,
) (*Factory, error) {
	if cfg.Owner == (common.Address{}) || cfg.Token == (common.Address{}) {
		return nil, chain.ErrZeroAddress
	}
	price := cfg.CreditPrice
	if price == nil {
		price = new(uint256.Int)
	}

	var f *Factory
	err := ledger.Atomic(func() error {
		addr := ledger.NextAddress(cfg.Owner)
		credits := chain.NewMap[common.Address, uint64](ledger)
		var strategy AuthorizationStrategy
		switch cfg.Mode {
		case model.CreditAuthorization, "":
			strategy = NewCreditBased(credits)
		case model.SignatureAuthorization:
			if cfg.Signer == (common.Address{}) {
				return fmt.Errorf("signer: %w", chain.ErrZeroAddress)
			}
			strategy = NewSignatureBased(ledger, cfg.Signer)
		default:
			return fmt.Errorf("mode %q: %w", cfg.Mode, ErrUnsupportedMode)
		}

		f = &Factory{
			ledger:       ledger,
			address:      addr,
			roles:        chain.NewRoles(ledger, addr, cfg.Owner),
			strategy:     strategy,
			template:     cfg.Template,
			main:         cfg.Main,
			metrics:      metrics,
			distMetrics:  distMetrics,
			logger:       logger.Named("factory").With(zap.Stringer("factory", addr)),
			token:        chain.NewValue(ledger, cfg.Token),
			creditPrice:  chain.NewValue(ledger, price.Clone()),
			credits:      credits,
			instances:    chain.NewList[model.Affiliate](ledger),
			distribution: chain.NewMap[common.Address, *distribution.Distribution](ledger),
		}
		return ledger.Register(f)
	})
	if err != nil {
		return nil, fmt.Errorf("deploy factory: %w", err)
	}
	return f, nil
}

func (f *Factory) Address() common.Address               { return f.address }
func (f *Factory) Owner() common.Address                 { return f.roles.Owner() }
func (f *Factory) Roles() *chain.Roles                   { return f.roles }
func (f *Factory) Mode() model.AuthorizationMode         { return f.strategy.Mode() }
func (f *Factory) Token() common.Address                 { return f.token.Get() }
func (f *Factory) CreditPrice() *uint256.Int             { return f.creditPrice.Get().Clone() }
func (f *Factory) Credits(account common.Address) uint64 { return f.credits.Get(account) }

// ReceiveNative accepts settlement currency; WithdrawETH sweeps it.
func (f *Factory) ReceiveNative(common.Address, *uint256.Int) error { return nil }

// Instances lists every provisioned instance in creation order.
func (f *Factory) Instances() []model.Affiliate {
	return f.instances.All()
}

func (f *Factory) InstancesOf(owner common.Address) []model.Affiliate {
	var out []model.Affiliate
	for _, a := range f.instances.All() {
		if a.Owner == owner {
			out = append(out, a)
		}
	}
	return out
}

// Distribution returns a provisioned instance by address.
func (f *Factory) Distribution(addr common.Address) (*distribution.Distribution, bool) {
	return f.distribution.Lookup(addr)
}

// DeployAffiliateDistribution provisions an instance owned by owner. The
// factory owner skips authorization.
func (f *Factory) DeployAffiliateDistribution(caller, owner common.Address, auth Authorization) (instance common.Address, err error) {
	defer func(started time.Time) { f.observe("deploy_affiliate", started, err) }(time.Now())

	err = f.ledger.Atomic(func() error {
		if owner == (common.Address{}) {
			return chain.ErrZeroAddress
		}
		if caller != f.roles.Owner() {
			if err := f.strategy.AuthorizeDeploy(caller, auth); err != nil {
				return err
			}
		}

		cfg := f.template
		cfg.Owner = owner
		cfg.Kind = model.AffiliateInstance
		cfg.Token = f.token.Get()
		cfg.Parent = f.main
		d, err := distribution.New(f.ledger, f.address, cfg, f.distMetrics, f.logger)
		if err != nil {
			return err
		}
		instance = d.Address()
		f.distribution.Set(instance, d)
		f.instances.Append(model.Affiliate{Instance: instance, Owner: owner})
		f.ledger.Emit(f.address, model.AffiliateDistributionCreated{Instance: instance, Owner: owner})
		f.logger.Info("affiliate distribution created",
			zap.Stringer("instance", instance),
			zap.Stringer("owner", owner),
			zap.Stringer("requester", caller))
		return nil
	})
	if err != nil {
		return common.Address{}, err
	}
	return instance, nil
}

// TopUp sells credits to caller for credits*price of the asset. Only the
// credit strategy sells them.
func (f *Factory) TopUp(caller common.Address, credits uint64, auth Authorization) (err error) {
	defer func(started time.Time) { f.observe("top_up", started, err) }(time.Now())

	return f.ledger.Atomic(func() error {
		if err := f.strategy.AuthorizeTopUp(caller, auth); err != nil {
			return err
		}
		price := f.creditPrice.Get()
		if price.IsZero() {
			return ErrInvalidPrice
		}
		if credits == 0 {
			return ErrInvalidCredits
		}
		cost, overflow := model.TotalCost(credits, price)
		if overflow {
			return fmt.Errorf("cost of %d credits: %w", credits, ErrInvalidCredits)
		}
		balance := f.credits.Get(caller)
		if balance > math.MaxUint64-credits {
			return fmt.Errorf("credit balance overflow: %w", ErrInvalidCredits)
		}
		token, err := f.asset()
		if err != nil {
			return err
		}
		if err := token.TransferFrom(f.address, caller, f.address, cost); err != nil {
			return fmt.Errorf("collect payment: %w", err)
		}
		f.credits.Set(caller, balance+credits)
		f.ledger.Emit(f.address, model.TopUp{Account: caller, Credits: credits, Cost: cost})
		return nil
	})
}

func (f *Factory) asset() (chain.ERC20, error) {
	addr := f.token.Get()
	t, ok := f.ledger.LookupERC20(addr)
	if !ok {
		return nil, fmt.Errorf("%s: %w", addr, ErrNotAToken)
	}
	return t, nil
}

func (f *Factory) observe(operation string, started time.Time, err error) {
	f.metrics.Observe(operation, err, started)
	if err != nil {
		f.logger.Debug("operation failed", zap.String("operation", operation), zap.Error(err))
	}
}

func (f *Factory) ownerOnly(caller common.Address, fn func() error) error {
	return f.ledger.Atomic(func() error {
		if err := f.roles.OnlyOwner(caller); err != nil {
			return err
		}
		return fn()
	})
}

// SetToken rebinds the payment asset after a capability probe.
func (f *Factory) SetToken(caller, addr common.Address) error {
	return f.ownerOnly(caller, func() error {
		if addr == (common.Address{}) {
			return ErrInvalidTokenAddress
		}
		t, ok := f.ledger.LookupERC20(addr)
		if !ok || t.TotalSupply() == nil {
			return fmt.Errorf("%s: %w", addr, ErrNotAToken)
		}
		f.token.Set(addr)
		return nil
	})
}

func (f *Factory) SetCreditPrice(caller common.Address, price *uint256.Int) error {
	return f.ownerOnly(caller, func() error {
		f.creditPrice.Set(price.Clone())
		return nil
	})
}

// SetSigner replaces the trusted key of a signature-based factory.
func (f *Factory) SetSigner(caller, signer common.Address) error {
	return f.ownerOnly(caller, func() error {
		s, ok := f.strategy.(*SignatureBased)
		if !ok {
			return ErrUnsupportedMode
		}
		if signer == (common.Address{}) {
			return chain.ErrZeroAddress
		}
		s.signer.Set(signer)
		return nil
	})
}

// WithdrawETH sends the factory's settlement balance to the owner.
func (f *Factory) WithdrawETH(caller common.Address) error {
	return f.ownerOnly(caller, func() error {
		balance := f.ledger.NativeBalance(f.address)
		if balance.IsZero() {
			return nil
		}
		return f.ledger.TransferNative(f.address, f.roles.Owner(), balance)
	})
}

// WithdrawTokens sends the factory's asset balance to the owner.
func (f *Factory) WithdrawTokens(caller common.Address) error {
	return f.ownerOnly(caller, func() error {
		token, err := f.asset()
		if err != nil {
			return err
		}
		balance := token.BalanceOf(f.address)
		if balance.IsZero() {
			return nil
		}
		return token.Transfer(f.address, f.roles.Owner(), balance)
	})
}
