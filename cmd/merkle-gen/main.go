package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/reach-engine/internal/merkle"
	"github.com/goodnatureofminers/reach-engine/internal/model"
)

type options struct {
	Input   string `long:"input" env:"MERKLE_GEN_INPUT" description:"recipients JSON file" required:"true"`
	Output  string `long:"output" env:"MERKLE_GEN_OUTPUT" description:"commitment file to write" default:"commitment.json"`
	Single  bool   `long:"single" env:"MERKLE_GEN_SINGLE" description:"single-amount leaves for the vesting airdrop"`
	Workers int    `long:"workers" env:"MERKLE_GEN_WORKERS" description:"proof workers, 0 uses GOMAXPROCS"`
}

// recipient is one input row. Amounts are decimals in whole units.
type recipient struct {
	Address    common.Address  `json:"address"`
	Settlement decimal.Decimal `json:"settlement"`
	Asset      decimal.Decimal `json:"asset"`
	Amount     decimal.Decimal `json:"amount"`
}

func main() {
	opts := options{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env", zap.Error(err))
	}
	if _, err := flags.ParseArgs(&opts, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	if err := run(ctx, opts, logger); err != nil {
		logger.Fatal("merkle generation failed", zap.Error(err))
	}
}

func run(ctx context.Context, opts options, logger *zap.Logger) error {
	rows, err := readRecipients(opts.Input)
	if err != nil {
		return err
	}

	var g *merkle.Generator
	if opts.Single {
		allocations := make([]model.Allocation, 0, len(rows))
		for _, r := range rows {
			amount, err := model.ParseUnits(r.Amount.String())
			if err != nil {
				return fmt.Errorf("%s amount: %w", r.Address, err)
			}
			allocations = append(allocations, model.Allocation{Account: r.Address, Amount: amount})
		}
		g, err = merkle.NewAllocationGenerator(allocations)
	} else {
		recipients := make([]model.Recipient, 0, len(rows))
		for _, r := range rows {
			settlement, err := model.ParseUnits(r.Settlement.String())
			if err != nil {
				return fmt.Errorf("%s settlement: %w", r.Address, err)
			}
			asset, err := model.ParseUnits(r.Asset.String())
			if err != nil {
				return fmt.Errorf("%s asset: %w", r.Address, err)
			}
			recipients = append(recipients, model.Recipient{Account: r.Address, Settlement: settlement, Asset: asset})
		}
		g, err = merkle.NewGenerator(recipients)
	}
	if err != nil {
		return err
	}

	file, err := g.Commitment(ctx, opts.Workers)
	if err != nil {
		return err
	}
	if err := merkle.WriteCommitmentFile(opts.Output, file); err != nil {
		return err
	}

	fields := []zap.Field{
		zap.Stringer("root", file.Root),
		zap.Int("recipients", len(file.Proofs)),
		zap.String("output", opts.Output),
	}
	if !opts.Single {
		settlement, asset, err := file.Totals()
		if err != nil {
			return err
		}
		fields = append(fields,
			zap.String("settlement_total", model.FormatUnits(settlement)),
			zap.String("asset_total", model.FormatUnits(asset)))
	}
	logger.Info("commitment written", fields...)
	fmt.Println(file.Root.Hex())
	return nil
}

func readRecipients(path string) ([]recipient, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipients: %w", err)
	}
	var rows []recipient
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode recipients %s: %w", path, err)
	}
	return rows, nil
}
