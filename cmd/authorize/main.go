package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/reach-engine/internal/factory"
)

type options struct {
	Key       string `long:"key" env:"AUTHORIZE_SIGNER_KEY" description:"hex secp256k1 private key of the factory signer" required:"true"`
	Requester string `long:"requester" env:"AUTHORIZE_REQUESTER" description:"account the authorization is issued to" required:"true"`
	Nonce     uint64 `long:"nonce" env:"AUTHORIZE_NONCE" description:"per-requester nonce" required:"true"`
}

func main() {
	opts := options{}

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

	sig, signer, err := sign(opts)
	if err != nil {
		logger.Fatal("authorization failed", zap.Error(err))
	}
	logger.Info("authorization signed",
		zap.String("signer", signer.Hex()),
		zap.String("requester", opts.Requester),
		zap.Uint64("nonce", opts.Nonce))
	fmt.Println(hexutil.Encode(sig))
}

func sign(opts options) ([]byte, common.Address, error) {
	if !common.IsHexAddress(opts.Requester) {
		return nil, common.Address{}, fmt.Errorf("requester %q is not an address", opts.Requester)
	}
	raw, err := hexutil.Decode("0x" + strings.TrimPrefix(opts.Key, "0x"))
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("decode key: %w", err)
	}
	if len(raw) != 32 {
		return nil, common.Address{}, fmt.Errorf("key is %d bytes, want 32", len(raw))
	}
	key, pub := btcec.PrivKeyFromBytes(raw)
	sig, err := factory.SignAuthorization(key, common.HexToAddress(opts.Requester), opts.Nonce)
	if err != nil {
		return nil, common.Address{}, err
	}
	return sig, factory.PubkeyToAddress(pub), nil
}
