// Package main runs the deposit service: the HTTP API, the confirmation
// poller and the scheduled stale-movement reconciler, over either PostgreSQL
// or in-memory storage.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"stablevault/internal/chain"
	"stablevault/internal/deposit"
	"stablevault/internal/domain"
	"stablevault/internal/httpapi"
	"stablevault/internal/storage"
	"stablevault/internal/storage/memory"
	"stablevault/internal/storage/migrations"
	pgstore "stablevault/internal/storage/postgres"
)

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	// Parse flags (env vars as defaults)
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("RPC_ENDPOINT"), "EVM JSON-RPC endpoint of the wallet provider")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	tokenAddress := flag.String("token-address", os.Getenv("TOKEN_ADDRESS"), "Deposit token contract address")
	tokenSymbol := flag.String("token-symbol", envOr("TOKEN_SYMBOL", "USDC"), "Deposit token symbol")
	tokenDecimals := flag.Int("token-decimals", envOrInt("TOKEN_DECIMALS", 6), "Deposit token decimal count")
	chainName := flag.String("chain", envOr("CHAIN", "base"), "Chain name recorded on movements")
	reconcileSchedule := flag.String("reconcile-schedule", envOr("RECONCILE_SCHEDULE", "@every 5m"), "Cron schedule for the stale-movement reconciler")
	staleAfter := flag.Duration("stale-after", 5*time.Minute, "Age before a pending movement counts as stale")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	if *debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	if *rpcEndpoint == "" {
		logger.Fatal().Msg("--rpc-endpoint is required")
	}
	if !domain.IsHexAddress(*tokenAddress) {
		logger.Fatal().Str("token_address", *tokenAddress).Msg("--token-address must be a hex contract address")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal().Msg("--postgres-dsn is required unless --use-memory is set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		investments storage.InvestmentStore
		movements   storage.MovementStore
	)
	if *useMemory {
		logger.Info().Msg("using in-memory storage")
		investments = memory.NewInvestmentStore()
		movements = memory.NewMovementStore()
	} else {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
		}
		defer pool.Close()
		if err := migrations.RunPostgres(ctx, pool.Pool); err != nil {
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}
		logger.Info().Msg("connected to PostgreSQL")
		investments = pgstore.NewInvestmentStore(pool)
		movements = pgstore.NewMovementStore(pool)
	}

	gateway := chain.NewHTTPClient(*rpcEndpoint)
	token := domain.Token{
		Symbol:   *tokenSymbol,
		Address:  *tokenAddress,
		Decimals: int32(*tokenDecimals),
		Chain:    *chainName,
	}

	poller := deposit.NewConfirmationPoller(deposit.PollerOptions{
		Gateway:   gateway,
		Movements: movements,
		Logger:    logger,
	})
	orchestrator := deposit.New(deposit.Options{
		InvestmentStore: investments,
		MovementStore:   movements,
		Merger:          deposit.NewMergeResolver(investments, logger),
		Strategy: deposit.NewStrategySelector(deposit.StrategyOptions{
			Gateway:   gateway,
			Allowance: deposit.NewAllowanceInspector(gateway, logger),
			Logger:    logger,
		}),
		Poller: poller,
		Token:  token,
		Logger: logger,
	})

	reconciler := deposit.NewReconciler(movements, poller, *staleAfter, logger)
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(*reconcileSchedule, func() {
		if _, err := reconciler.Sweep(ctx); err != nil {
			logger.Error().Err(err).Msg("reconciler sweep failed")
		}
	}); err != nil {
		logger.Fatal().Err(err).Str("schedule", *reconcileSchedule).Msg("invalid reconcile schedule")
	}
	scheduler.Start()

	server := httpapi.New(httpapi.Config{
		Addr:         *listenAddr,
		Log:          logger,
		Orchestrator: orchestrator,
		Investments:  investments,
		Movements:    movements,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	logger.Info().
		Str("addr", *listenAddr).
		Str("token", token.Symbol).
		Str("chain", token.Chain).
		Msg("deposit service started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("HTTP server stopped")
	}

	cancel()
	<-scheduler.Stop().Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown failed")
	}

	// Let in-flight confirmation watches finish their current poll cycles.
	poller.Wait()
	logger.Info().Msg("stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
