// Package config loads sandbox deployment parameters from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/goodnatureofminers/reach-engine/internal/model"
	"github.com/goodnatureofminers/reach-engine/pkg/safe"
)

var ErrInvalid = errors.New("invalid config")

// Amount is a decimal token amount written in whole units, e.g. "0.2".
type Amount struct {
	dec   decimal.Decimal
	units *uint256.Int
}

func MustAmount(s string) Amount {
	var a Amount
	if err := a.set(s); err != nil {
		panic(err)
	}
	return a
}

func (a *Amount) set(s string) error {
	units, err := model.ParseUnits(s)
	if err != nil {
		return err
	}
	a.dec = decimal.RequireFromString(s)
	a.units = units
	return nil
}

func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: amount must be a scalar", node.Line)
	}
	if err := a.set(node.Value); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	return nil
}

func (a Amount) MarshalYAML() (any, error) {
	return a.dec.String(), nil
}

// Units returns the amount in 18-decimal base units. Unset amounts are zero.
func (a Amount) Units() *uint256.Int {
	if a.units == nil {
		return new(uint256.Int)
	}
	return a.units.Clone()
}

func (a Amount) String() string { return a.dec.String() }

type Config struct {
	Owner        common.Address `yaml:"owner"`
	Token        Token          `yaml:"token"`
	Exchange     Exchange       `yaml:"exchange"`
	Distribution Distribution   `yaml:"distribution"`
	Factory      Factory        `yaml:"factory"`
	Accounts     []Account      `yaml:"accounts"`
	Keeper       Keeper         `yaml:"keeper"`
	// Commitment optionally names a commitment file published to the main
	// distribution at bootstrap.
	Commitment string `yaml:"commitment"`
}

type Token struct {
	Name                 string         `yaml:"name"`
	Symbol               string         `yaml:"symbol"`
	TotalSupply          Amount         `yaml:"total_supply"`
	Treasury             common.Address `yaml:"treasury"`
	BuyFeeBps            uint64         `yaml:"buy_fee_bps"`
	SellFeeBps           uint64         `yaml:"sell_fee_bps"`
	MaxFeeBps            uint64         `yaml:"max_fee_bps"`
	LiquidationThreshold Amount         `yaml:"liquidation_threshold"`
	AntiSnipe            AntiSnipe      `yaml:"anti_snipe"`
	ActivateTrading      bool           `yaml:"activate_trading"`
}

type AntiSnipe struct {
	Window       time.Duration `yaml:"window"`
	MaxTxBps     uint64        `yaml:"max_tx_bps"`
	MaxWalletBps uint64        `yaml:"max_wallet_bps"`
}

// Exchange seeds the constant-product pool the asset trades against.
type Exchange struct {
	OwnerNative     Amount `yaml:"owner_native"`
	LiquidityToken  Amount `yaml:"liquidity_token"`
	LiquidityNative Amount `yaml:"liquidity_native"`
}

type Distribution struct {
	SwapDeadline     time.Duration `yaml:"swap_deadline"`
	MinEthAllocation Amount        `yaml:"min_eth_allocation"`
	Main             Instance      `yaml:"main"`
	Affiliate        Instance      `yaml:"affiliate"`
}

type Instance struct {
	LeaderboardBps        uint64 `yaml:"leaderboard_bps"`
	GlobalBps             uint64 `yaml:"global_bps"`
	CarryForwardThreshold Amount `yaml:"carry_forward_threshold"`
	ForwardBps            uint64 `yaml:"forward_bps"`
}

func (i Instance) Split() model.Split {
	return model.Split{LeaderboardBps: i.LeaderboardBps, GlobalBps: i.GlobalBps}
}

type Factory struct {
	Mode        model.AuthorizationMode `yaml:"mode"`
	Signer      common.Address          `yaml:"signer"`
	CreditPrice Amount                  `yaml:"credit_price"`
}

// Account is funded at bootstrap.
type Account struct {
	Address common.Address `yaml:"address"`
	Native  Amount         `yaml:"native"`
	Tokens  Amount         `yaml:"tokens"`
}

type Keeper struct {
	Interval time.Duration `yaml:"interval"`
}

// Load reads and validates a YAML config file. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the values used for keys a file leaves out.
func Default() *Config {
	return &Config{
		Token: Token{
			Name:                 "Reach",
			Symbol:               "REACH",
			TotalSupply:          MustAmount("100000000"),
			MaxFeeBps:            2500,
			LiquidationThreshold: MustAmount("50000"),
		},
		Distribution: Distribution{
			SwapDeadline:     5 * time.Minute,
			MinEthAllocation: MustAmount("0.01"),
			Affiliate: Instance{
				LeaderboardBps:        5500,
				GlobalBps:             2500,
				CarryForwardThreshold: MustAmount("50000"),
			},
		},
		Factory: Factory{
			Mode:        model.CreditAuthorization,
			CreditPrice: MustAmount("100"),
		},
		Keeper: Keeper{Interval: 15 * time.Second},
	}
}

// Validate rejects out-of-range basis points, splits over 100% and a
// zero credit price.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Owner != (common.Address{}), "owner is required")
	check(c.Token.Treasury != (common.Address{}), "token.treasury is required")
	check(!c.Token.TotalSupply.Units().IsZero(), "token.total_supply must be positive")
	check(c.Token.MaxFeeBps <= safe.BasisPoints, "token.max_fee_bps %d above %d", c.Token.MaxFeeBps, safe.BasisPoints)
	check(c.Token.BuyFeeBps <= c.Token.MaxFeeBps, "token.buy_fee_bps %d above max %d", c.Token.BuyFeeBps, c.Token.MaxFeeBps)
	check(c.Token.SellFeeBps <= c.Token.MaxFeeBps, "token.sell_fee_bps %d above max %d", c.Token.SellFeeBps, c.Token.MaxFeeBps)
	check(c.Token.AntiSnipe.MaxTxBps <= safe.BasisPoints, "token.anti_snipe.max_tx_bps %d above %d", c.Token.AntiSnipe.MaxTxBps, safe.BasisPoints)
	check(c.Token.AntiSnipe.MaxWalletBps <= safe.BasisPoints, "token.anti_snipe.max_wallet_bps %d above %d", c.Token.AntiSnipe.MaxWalletBps, safe.BasisPoints)

	for _, inst := range []struct {
		name string
		Instance
	}{{"main", c.Distribution.Main}, {"affiliate", c.Distribution.Affiliate}} {
		check(inst.Split().SwapBps() <= safe.BasisPoints, "distribution.%s split %d+%d above %d", inst.name, inst.LeaderboardBps, inst.GlobalBps, safe.BasisPoints)
		check(inst.ForwardBps <= safe.BasisPoints, "distribution.%s.forward_bps %d above %d", inst.name, inst.ForwardBps, safe.BasisPoints)
	}

	check(!c.Distribution.MinEthAllocation.Units().IsZero(), "distribution.min_eth_allocation must be positive")

	switch c.Factory.Mode {
	case model.CreditAuthorization:
		check(!c.Factory.CreditPrice.Units().IsZero(), "factory.credit_price must be positive")
	case model.SignatureAuthorization:
		check(c.Factory.Signer != (common.Address{}), "factory.signer is required in signature mode")
	default:
		check(false, "factory.mode %q is not supported", c.Factory.Mode)
	}

	check(!c.Exchange.LiquidityToken.Units().Gt(c.Token.TotalSupply.Units()), "exchange.liquidity_token exceeds total supply")
	check(c.Keeper.Interval > 0, "keeper.interval must be positive")

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
