package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"autotrader/internal/api"
	"autotrader/internal/events"
	"autotrader/internal/market"
	"autotrader/internal/monitor"
	"autotrader/internal/order"
	"autotrader/internal/session"
	"autotrader/internal/strategy"
	"autotrader/internal/venue"
	"autotrader/pkg/config"
	"autotrader/pkg/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(cfg)
	log.Info().Str("port", cfg.Port).Msg("🚀 autotrader starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core services
	bus := events.NewBus()
	metrics := monitor.NewMetrics()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("db init failed")
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatal().Err(err).Msg("db migrations failed")
	}
	store := database.Queries()

	// Market data
	var provider market.Provider
	if cfg.UseMockFeed {
		provider = market.NewMockProvider(50_000, 0.002, true)
		log.Info().Msg("using mock market feed")
	} else {
		provider = market.NewRESTProvider(cfg.MarketURL, "1m")
		log.Info().Str("url", cfg.MarketURL).Msg("using REST market feed")
	}

	// Venues. The paper manager registers simulated venues under the same
	// names so paper sessions route identically to live ones.
	simCfg := venue.SimConfig{
		FeeRate:      cfg.SimFeeRate,
		SlippageBps:  cfg.SimSlippageBps,
		LatencyMinMs: cfg.SimLatencyMinMs,
		LatencyMaxMs: cfg.SimLatencyMaxMs,
	}
	venues := venue.NewManager()
	paper := venue.NewManager()
	for _, name := range []string{"binance", "kraken", "alpaca"} {
		live := venue.NewSim(name, simCfg)
		live.Deposit("USDT", cfg.SimInitialBalance)
		live.Deposit("USD", cfg.SimInitialBalance)
		venues.Register(live)

		sim := venue.NewSim(name, simCfg)
		sim.Deposit("USDT", cfg.SimInitialBalance)
		sim.Deposit("USD", cfg.SimInitialBalance)
		paper.Register(sim)
	}

	// Routing
	policy := order.DefaultPolicy()
	policy.MaterialityThreshold = cfg.MaterialityThreshold
	policy.SplitFraction = cfg.SplitFraction
	pool := order.NewPool(cfg.WorkerPoolSize)
	guard := order.NewGuard(venues,
		order.WithVenueTimeout(cfg.VenueTimeout),
		order.WithBalanceTTL(cfg.BalanceTTL))
	router := order.NewRouter(policy, guard, pool)

	paperGuard := order.NewGuard(paper,
		order.WithVenueTimeout(cfg.VenueTimeout),
		order.WithBalanceTTL(cfg.BalanceTTL))
	paperRouter := order.NewRouter(policy, paperGuard, pool)

	// Strategy policy
	strategyPolicy := strategy.DefaultPolicy()
	if cfg.PolicyPath != "" {
		strategyPolicy, err = strategy.LoadPolicy(cfg.PolicyPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.PolicyPath).Msg("strategy policy load failed")
		}
	}
	evaluators, err := strategyPolicy.Build()
	if err != nil {
		log.Fatal().Err(err).Msg("strategy policy invalid")
	}
	log.Info().Int("evaluators", len(evaluators)).Msg("strategy policy built")

	// Orchestrator
	sessCfg := session.DefaultConfig()
	sessCfg.TickInterval = cfg.TickInterval
	sessCfg.StopLossPct = cfg.StopLossPct
	sessCfg.TakeProfitPct = cfg.TakeProfitPct
	if len(cfg.Instruments) > 0 {
		sessCfg.Instrument = cfg.Instruments[0]
	}
	orch := session.NewOrchestrator(ctx, sessCfg, session.Deps{
		Store:       store,
		Gate:        session.AllowAll{},
		Provider:    provider,
		Router:      router,
		PaperRouter: paperRouter,
		Evaluators:  evaluators,
		Bus:         bus,
		Metrics:     metrics,
	})

	// Force-close sessions orphaned by a previous process before the API
	// starts taking requests.
	if _, err := session.Reconcile(ctx, store); err != nil {
		log.Fatal().Err(err).Msg("startup reconciliation failed")
	}

	server := api.NewServer(orch, bus, api.SystemMeta{
		UseMockFeed: cfg.UseMockFeed,
		Instruments: cfg.Instruments,
		Venues:      venues.Venues(),
		Version:     "1.0.0",
	})

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Router,
	}
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("✅ api listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("api server failed")
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("🛑 shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("api shutdown failed")
	}
	orch.StopAll(shutdownCtx, "shutdown")
	cancel()
	log.Info().Msg("bye")
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
