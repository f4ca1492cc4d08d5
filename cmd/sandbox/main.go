package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/reach-engine/internal/chain"
	"github.com/goodnatureofminers/reach-engine/internal/config"
	"github.com/goodnatureofminers/reach-engine/internal/merkle"
	"github.com/goodnatureofminers/reach-engine/internal/metrics"
	"github.com/goodnatureofminers/reach-engine/internal/model"
	"github.com/goodnatureofminers/reach-engine/internal/repository/clickhouse"
	"github.com/goodnatureofminers/reach-engine/internal/service/engine"
	"github.com/goodnatureofminers/reach-engine/internal/service/eventsink"
	"github.com/goodnatureofminers/reach-engine/internal/transport"
)

type options struct {
	Config        string `long:"config" env:"REACH_SANDBOX_CONFIG" description:"path to the YAML deployment config" default:"configs/sandbox.yaml"`
	Addr          string `long:"addr" env:"REACH_SANDBOX_ADDR" description:"HTTP API address" default:":8001"`
	ClickhouseDSN string `long:"clickhouse-dsn" env:"REACH_SANDBOX_CLICKHOUSE_DSN" description:"ClickHouse DSN for the event sink; empty disables it"`
	Commitment    string `long:"commitment" env:"REACH_SANDBOX_COMMITMENT" description:"commitment file published to the main distribution, overrides the config"`
	LogJSON       bool   `long:"log-json" env:"REACH_SANDBOX_LOG_JSON" description:"production JSON logging"`
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
	if opts.LogJSON {
		prod, err := zap.NewProduction()
		if err != nil {
			logger.Fatal("can't initialize production logger", zap.Error(err))
		}
		_ = logger.Sync()
		logger = prod
	}

	if err := run(ctx, opts, logger); err != nil {
		logger.Fatal("sandbox failed", zap.Error(err))
	}
}

func run(ctx context.Context, opts options, logger *zap.Logger) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}
	if opts.Commitment != "" {
		cfg.Commitment = opts.Commitment
	}
	clk := clockwork.NewRealClock()

	var sinks []chain.LogSink
	if opts.ClickhouseDSN != "" {
		repo, err := clickhouse.NewRepository(opts.ClickhouseDSN, metrics.NewClickhouseRepository())
		if err != nil {
			return fmt.Errorf("init repository: %w", err)
		}
		defer func() {
			if err := repo.Close(); err != nil {
				logger.Warn("close repository", zap.Error(err))
			}
		}()
		writer := eventsink.NewWriter(repo, metrics.NewEventSink(), clk, logger.Named("eventsink"))
		if err := writer.Start(ctx); err != nil {
			return err
		}
		defer writer.Stop()
		sinks = append(sinks, writer)
	}

	e, err := engine.New(cfg, clk, engine.Metrics{
		Token:     metrics.NewToken(),
		Exchange:  metrics.NewExchange(),
		Main:      metrics.NewDistribution(model.MainInstance),
		Affiliate: metrics.NewDistribution(model.AffiliateInstance),
		Factory:   metrics.NewFactory(string(cfg.Factory.Mode)),
		Pools:     metrics.NewPools(),
	}, logger, sinks...)
	if err != nil {
		return err
	}

	if cfg.Commitment != "" {
		if err := publish(e, cfg, logger); err != nil {
			return err
		}
	}

	go func() {
		if err := e.RunKeeper(ctx); err != nil {
			logger.Error("keeper stopped", zap.Error(err))
		}
	}()

	return serve(ctx, opts.Addr, transport.NewHandler(e, metrics.NewHTTP(), logger).Router(), logger)
}

func publish(e *engine.Engine, cfg *config.Config, logger *zap.Logger) error {
	file, err := merkle.ReadCommitmentFile(cfg.Commitment)
	if err != nil {
		return err
	}
	main := e.Distributions()[0].Address
	if err := e.Publish(cfg.Owner, main, file, true); err != nil {
		return fmt.Errorf("publish %s: %w", cfg.Commitment, err)
	}
	logger.Info("commitment published",
		zap.Stringer("distribution", main),
		zap.Stringer("root", file.Root),
		zap.Int("recipients", len(file.Proofs)))
	return nil
}

func serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down the http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shutdown http server", zap.Error(err))
		}
	}()

	logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
