// Agent Arena - Simulated prediction-market trading competition
//
// A fixed roster of AI agent personas autonomously analyze prediction
// markets, place paper bets with confidence-weighted sizing, track open
// positions against live prices, and settle when markets resolve.
//
// Pipeline:
// 1. Market refresher mirrors the venue catalog into the cache
// 2. Analysis cycles assign fresh markets to agents and open positions
// 3. Odds tracker marks open positions to market
// 4. Position manager runs the stochastic exit policy
// 5. Resolved markets settle every prediction through the ledger
package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/agentarena/internal/agents"
	"github.com/web3guy0/agentarena/internal/analyst"
	"github.com/web3guy0/agentarena/internal/bot"
	"github.com/web3guy0/agentarena/internal/config"
	"github.com/web3guy0/agentarena/internal/database"
	"github.com/web3guy0/agentarena/internal/feed"
	"github.com/web3guy0/agentarena/internal/ledger"
	"github.com/web3guy0/agentarena/internal/markets"
	"github.com/web3guy0/agentarena/internal/positions"
	"github.com/web3guy0/agentarena/internal/tracker"
)

const version = "1.0.0"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	roster := agents.Roster()

	log.Info().
		Str("version", version).
		Int("agents", len(roster)).
		Str("bankroll", cfg.InitialBalance.StringFixed(0)).
		Msg("🏟️ Agent Arena starting...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ====== CORE COMPONENTS ======

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	lg := ledger.New(db, cfg.InitialBalance, cfg.BankruptcyFloor)
	if err := lg.InitializeAgents(roster); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize agent balances")
	}

	store := positions.NewStore(db, lg)
	cache := markets.NewCache(db, store)
	feedClient := feed.NewClient(cfg.GammaAPIURL)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	exitPolicy := positions.NewExitPolicy(rng)
	sizing := ledger.SizingPolicy{
		ConfidenceFloor: cfg.ConfidenceFloor,
		MinBet:          cfg.MinBet,
		MaxBet:          cfg.MaxBet,
		MaxBalancePct:   cfg.MaxBalancePct,
		BankruptcyFloor: cfg.BankruptcyFloor,
	}
	analyzer := analyst.NewHeuristicAnalyzer(rng)
	orchestrator := analyst.NewOrchestrator(cache, lg, store, analyzer, sizing, roster, cfg.MarketsPerCycle)

	// ====== TRACKING LOOPS ======

	trackers := map[string]*tracker.Tracker{
		"odds":       tracker.NewOddsTracker(store, feedClient, cfg.OddsInterval, cfg.CycleTimeout),
		"positions":  tracker.NewPositionManager(store, exitPolicy, cfg.PositionInterval, cfg.CycleTimeout),
		"refresh":    tracker.NewMarketRefresher(feedClient, cache, 100, cfg.RefreshInterval, cfg.CycleTimeout),
		"integrated": tracker.NewIntegratedTracker(store, feedClient, exitPolicy, cfg.IntegratedInterval, cfg.CycleTimeout),
		"analysis":   tracker.NewAnalysisTracker(orchestrator, cfg.IntegratedInterval, cfg.CycleTimeout),
	}
	for name, t := range trackers {
		// The integrated tracker subsumes odds+positions; it stays manual by
		// default and is started from the admin surface when wanted.
		if name == "integrated" {
			continue
		}
		t.Start(ctx)
	}

	// Optional live odds push ahead of HTTP polling
	var stream *feed.Stream
	if cfg.WSEnabled {
		stream = feed.NewStream(cfg.WSURL)
		stream.SetOddsCallback(func(marketID string, odds positions.Odds) {
			if _, err := store.UpdateMarketOdds(marketID, odds, time.Now()); err != nil {
				log.Error().Err(err).Str("market", marketID).Msg("Streamed odds update failed")
			}
		})
		if err := stream.Connect(); err != nil {
			log.Warn().Err(err).Msg("⚠️ Odds stream unavailable, HTTP polling only")
			stream = nil
		}
	}

	// ====== TELEGRAM ADMIN BOT ======

	var adminBot *bot.Bot
	if cfg.TelegramToken != "" {
		adminBot, err = bot.New(cfg, db, lg, store, cache, trackers)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
		}
		adminBot.Start()
	} else {
		log.Warn().Msg("⚠️ No TELEGRAM_BOT_TOKEN - admin surface disabled")
	}

	// ====== STARTUP COMPLETE ======
	log.Info().Msg("✅ All systems online")
	log.Info().Msg("")
	log.Info().Msg("╔══════════════════════════════════════════╗")
	log.Info().Msg("║        AGENT ARENA COMPETITION LIVE      ║")
	log.Info().Msg("║                                          ║")
	log.Info().Msg("║  → Agents analyze fresh markets          ║")
	log.Info().Msg("║  → Paper bets sized by confidence        ║")
	log.Info().Msg("║  → Positions marked to live odds         ║")
	log.Info().Msg("║  → Resolutions settle the bankrolls      ║")
	log.Info().Msg("╚══════════════════════════════════════════╝")
	log.Info().Msg("")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("🛑 Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("🛑 Context cancelled")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down...")

	if adminBot != nil {
		adminBot.Stop()
	}
	if stream != nil {
		stream.Stop()
	}
	for _, t := range trackers {
		if t.Running() {
			t.Stop()
		}
	}

	log.Info().Msg("👋 Goodbye!")
}
