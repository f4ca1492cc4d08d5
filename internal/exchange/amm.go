package exchange

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/reach-engine/internal/chain"
	"github.com/goodnatureofminers/reach-engine/pkg/safe"
)

var (
	ErrExpired               = chain.NewError(chain.KindValidation, "Expired")
	ErrInvalidPath           = chain.NewError(chain.KindValidation, "InvalidPath")
	ErrPairExists            = chain.NewError(chain.KindState, "PairExists")
	ErrPairNotFound          = chain.NewError(chain.KindState, "PairNotFound")
	ErrInsufficientLiquidity = chain.NewError(chain.KindState, "InsufficientLiquidity")
	ErrInsufficientOutput    = chain.NewError(chain.KindValidation, "InsufficientOutputAmount")
	ErrInsufficientInput     = chain.NewError(chain.KindValidation, "InsufficientInputAmount")
)

const (
	feeNumerator   = 997
	feeDenominator = 1000
)

// Pair holds native and asset reserves for one token. Its asset balance
// lives on the token contract, its native balance on the ledger.
type Pair struct {
	address       common.Address
	token         common.Address
	reserveNative *chain.Value[*uint256.Int]
	reserveToken  *chain.Value[*uint256.Int]
}

func (p *Pair) Address() common.Address { return p.address }

// ReceiveNative accepts every payment; reserves are synced by the router.
func (p *Pair) ReceiveNative(common.Address, *uint256.Int) error { return nil }

// Reserves returns copies of the native and asset reserves.
func (p *Pair) Reserves() (native, token *uint256.Int) {
	return p.reserveNative.Get().Clone(), p.reserveToken.Get().Clone()
}

// AMM implements Router with one pair per token.
type AMM struct {
	ledger  *chain.Ledger
	address common.Address
	wrapped common.Address
	pairs   *chain.Map[common.Address, *Pair]
	metrics Metrics
	logger  *zap.Logger
}

// NewAMM deploys the router from deployer.
func NewAMM(ledger *chain.Ledger, deployer common.Address, metrics Metrics, logger *zap.Logger) (*AMM, error) {
	a := &AMM{
		ledger:  ledger,
		address: ledger.NextAddress(deployer),
		pairs:   chain.NewMap[common.Address, *Pair](ledger),
		metrics: metrics,
	}
	a.wrapped = ledger.NextAddress(a.address)
	a.logger = logger.Named("amm").With(zap.Stringer("router", a.address))
	if err := ledger.Register(a); err != nil {
		return nil, fmt.Errorf("register router: %w", err)
	}
	return a, nil
}

func (a *AMM) Address() common.Address       { return a.address }
func (a *AMM) WrappedNative() common.Address { return a.wrapped }

// ReceiveNative accepts refunds and stray payments.
func (a *AMM) ReceiveNative(common.Address, *uint256.Int) error { return nil }

// Pair returns the pair of token.
func (a *AMM) Pair(token common.Address) (*Pair, bool) {
	return a.pairs.Lookup(token)
}

func (a *AMM) CreatePair(token common.Address) (common.Address, error) {
	var addr common.Address
	err := a.ledger.Atomic(func() error {
		if token == (common.Address{}) {
			return chain.ErrZeroAddress
		}
		if _, ok := a.pairs.Lookup(token); ok {
			return fmt.Errorf("pair for %s: %w", token, ErrPairExists)
		}
		p := &Pair{
			address:       a.ledger.NextAddress(a.address),
			token:         token,
			reserveNative: chain.NewValue(a.ledger, new(uint256.Int)),
			reserveToken:  chain.NewValue(a.ledger, new(uint256.Int)),
		}
		if err := a.ledger.Register(p); err != nil {
			return err
		}
		a.pairs.Set(token, p)
		addr = p.address
		return nil
	})
	if err != nil {
		return common.Address{}, err
	}
	a.logger.Debug("pair created", zap.Stringer("token", token), zap.Stringer("pair", addr))
	return addr, nil
}

// AmountOut applies the 0.3% fee and the constant-product invariant.
func AmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountIn.IsZero() {
		return nil, ErrInsufficientInput
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	inWithFee, err := safe.Mul(amountIn, uint256.NewInt(feeNumerator))
	if err != nil {
		return nil, err
	}
	scaledReserve, err := safe.Mul(reserveIn, uint256.NewInt(feeDenominator))
	if err != nil {
		return nil, err
	}
	denominator, err := safe.Add(scaledReserve, inWithFee)
	if err != nil {
		return nil, err
	}
	return safe.MulDiv(inWithFee, reserveOut, denominator)
}

func (a *AMM) GetAmountsOut(amountIn *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	p, buy, err := a.resolve(path)
	if err != nil {
		return nil, err
	}
	reserveIn, reserveOut := p.reserveToken.Get(), p.reserveNative.Get()
	if buy {
		reserveIn, reserveOut = reserveOut, reserveIn
	}
	out, err := AmountOut(amountIn, reserveIn, reserveOut)
	if err != nil {
		return nil, err
	}
	return []*uint256.Int{amountIn.Clone(), out}, nil
}

// resolve maps a two-hop path to its pair; buy is true for native to asset.
func (a *AMM) resolve(path []common.Address) (*Pair, bool, error) {
	if len(path) != 2 {
		return nil, false, ErrInvalidPath
	}
	var token common.Address
	var buy bool
	switch {
	case path[0] == a.wrapped && path[1] != a.wrapped:
		token, buy = path[1], true
	case path[1] == a.wrapped && path[0] != a.wrapped:
		token = path[0]
	default:
		return nil, false, ErrInvalidPath
	}
	p, ok := a.pairs.Lookup(token)
	if !ok {
		return nil, false, fmt.Errorf("%s: %w", token, ErrPairNotFound)
	}
	return p, buy, nil
}

func (a *AMM) token(p *Pair) (chain.ERC20, error) {
	t, ok := a.ledger.LookupERC20(p.token)
	if !ok {
		return nil, fmt.Errorf("%s is not a token: %w", p.token, ErrPairNotFound)
	}
	return t, nil
}

func (a *AMM) sync(p *Pair, token chain.ERC20) {
	p.reserveNative.Set(a.ledger.NativeBalance(p.address))
	p.reserveToken.Set(token.BalanceOf(p.address))
}

func (a *AMM) checkDeadline(deadline uint64) error {
	if now := a.ledger.Timestamp(); deadline < now {
		return fmt.Errorf("deadline %d before %d: %w", deadline, now, ErrExpired)
	}
	return nil
}

func (a *AMM) SwapExactNativeForTokens(
	caller common.Address,
	value, minOut *uint256.Int,
	path []common.Address,
	to common.Address,
	deadline uint64,
) (amounts []*uint256.Int, err error) {
	defer func(started time.Time) {
		a.metrics.ObserveSwap("buy", err, started)
	}(time.Now())

	err = a.ledger.Atomic(func() error {
		if err := a.checkDeadline(deadline); err != nil {
			return err
		}
		p, buy, err := a.resolve(path)
		if err != nil {
			return err
		}
		if !buy {
			return ErrInvalidPath
		}
		token, err := a.token(p)
		if err != nil {
			return err
		}
		out, err := AmountOut(value, p.reserveNative.Get(), p.reserveToken.Get())
		if err != nil {
			return err
		}
		if out.Lt(minOut) {
			return fmt.Errorf("out %s below %s: %w", out.Dec(), minOut.Dec(), ErrInsufficientOutput)
		}
		if err := a.ledger.TransferNative(caller, p.address, value); err != nil {
			return fmt.Errorf("pay pair: %w", err)
		}
		if err := token.Transfer(p.address, to, out); err != nil {
			return fmt.Errorf("deliver tokens: %w", err)
		}
		a.sync(p, token)
		amounts = []*uint256.Int{value.Clone(), out}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return amounts, nil
}

// SwapExactTokensForNativeSupportingFeeOnTransferTokens prices the swap on
// what the pair actually received, so taxed transfers are handled.
func (a *AMM) SwapExactTokensForNativeSupportingFeeOnTransferTokens(
	caller common.Address,
	amountIn, minOut *uint256.Int,
	path []common.Address,
	to common.Address,
	deadline uint64,
) (err error) {
	defer func(started time.Time) {
		a.metrics.ObserveSwap("sell", err, started)
	}(time.Now())

	return a.ledger.Atomic(func() error {
		if err := a.checkDeadline(deadline); err != nil {
			return err
		}
		p, buy, err := a.resolve(path)
		if err != nil {
			return err
		}
		if buy {
			return ErrInvalidPath
		}
		token, err := a.token(p)
		if err != nil {
			return err
		}
		if err := token.TransferFrom(a.address, caller, p.address, amountIn); err != nil {
			return fmt.Errorf("pull tokens: %w", err)
		}
		// Read reserves after the transfer: a taxed token may have swapped through this pair meanwhile.
		received, err := safe.Sub(token.BalanceOf(p.address), p.reserveToken.Get())
		if err != nil {
			return err
		}
		out, err := AmountOut(received, p.reserveToken.Get(), p.reserveNative.Get())
		if err != nil {
			return err
		}
		if out.Lt(minOut) {
			return fmt.Errorf("out %s below %s: %w", out.Dec(), minOut.Dec(), ErrInsufficientOutput)
		}
		if err := a.ledger.TransferNative(p.address, to, out); err != nil {
			return fmt.Errorf("pay out: %w", err)
		}
		a.sync(p, token)
		return nil
	})
}

// AddLiquidityNative deposits both sides at the caller's ratio. Liquidity
// shares are not tracked.
func (a *AMM) AddLiquidityNative(
	caller, tokenAddr common.Address,
	amountToken, value *uint256.Int,
	deadline uint64,
) error {
	return a.ledger.Atomic(func() error {
		if err := a.checkDeadline(deadline); err != nil {
			return err
		}
		p, ok := a.pairs.Lookup(tokenAddr)
		if !ok {
			return fmt.Errorf("%s: %w", tokenAddr, ErrPairNotFound)
		}
		token, err := a.token(p)
		if err != nil {
			return err
		}
		if err := token.TransferFrom(a.address, caller, p.address, amountToken); err != nil {
			return fmt.Errorf("pull tokens: %w", err)
		}
		if err := a.ledger.TransferNative(caller, p.address, value); err != nil {
			return fmt.Errorf("pull native: %w", err)
		}
		a.sync(p, token)
		a.logger.Info("liquidity added",
			zap.Stringer("token", tokenAddr),
			zap.String("token_amount", amountToken.Dec()),
			zap.String("native_amount", value.Dec()))
		return nil
	})
}
