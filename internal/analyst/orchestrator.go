package analyst

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/agentarena/internal/agents"
	"github.com/web3guy0/agentarena/internal/database"
	"github.com/web3guy0/agentarena/internal/ledger"
	"github.com/web3guy0/agentarena/internal/markets"
	"github.com/web3guy0/agentarena/internal/positions"
)

// Orchestrator assigns fresh markets to agents, runs analysis, sizes the
// stake and opens positions. One agent's or market's failure never aborts
// the cycle — most declines are routine.
type Orchestrator struct {
	cache    *markets.Cache
	ledger   *ledger.Ledger
	store    *positions.Store
	analyzer Analyzer
	sizing   ledger.SizingPolicy
	roster   []agents.Agent

	marketsPerCycle int

	mu        sync.Mutex
	nextAgent int // round-robin cursor over the roster
}

// NewOrchestrator wires the analysis pipeline.
func NewOrchestrator(cache *markets.Cache, lg *ledger.Ledger, store *positions.Store,
	analyzer Analyzer, sizing ledger.SizingPolicy, roster []agents.Agent, marketsPerCycle int) *Orchestrator {
	return &Orchestrator{
		cache:           cache,
		ledger:          lg,
		store:           store,
		analyzer:        analyzer,
		sizing:          sizing,
		roster:          roster,
		marketsPerCycle: marketsPerCycle,
	}
}

// RunCycle analyzes one batch of fresh markets. Returns the number of
// positions opened.
func (o *Orchestrator) RunCycle(ctx context.Context) (int, error) {
	fresh, err := o.cache.FreshMarkets(o.marketsPerCycle)
	if err != nil {
		return 0, err
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	placed := 0
	for _, market := range fresh {
		if ctx.Err() != nil {
			return placed, ctx.Err()
		}

		agent := o.pickAgent()
		if o.placeBet(ctx, agent, market) {
			placed++
		}

		// The gate only avoids redundant analysis; agents still self-check
		// via HasAgentPredicted before betting.
		if err := o.cache.MarkAnalyzed(market.ID); err != nil {
			log.Error().Err(err).Str("market", market.ID).Msg("Mark analyzed failed")
		}
	}

	if placed > 0 {
		log.Info().Int("placed", placed).Int("markets", len(fresh)).Msg("🧠 Analysis cycle complete")
	}
	return placed, nil
}

func (o *Orchestrator) pickAgent() agents.Agent {
	o.mu.Lock()
	defer o.mu.Unlock()
	agent := o.roster[o.nextAgent%len(o.roster)]
	o.nextAgent++
	return agent
}

// placeBet runs the full decision pipeline for one agent on one market.
// Returns true when a position was opened.
func (o *Orchestrator) placeBet(ctx context.Context, agent agents.Agent, market database.CachedMarket) bool {
	already, err := o.store.HasAgentPredicted(agent.ID, market.ID)
	if err != nil {
		log.Error().Err(err).Str("agent", agent.ID).Str("market", market.ID).Msg("Duplicate check failed")
		return false
	}
	if already {
		log.Debug().Str("agent", agent.ID).Str("market", market.ID).Msg("Agent already bet this market")
		return false
	}

	verdict, err := o.analyzer.Analyze(ctx, agent, market)
	if err != nil {
		log.Error().Err(err).Str("agent", agent.ID).Str("market", market.ID).Msg("Analysis failed")
		return false
	}

	// A zero-priced side cannot form a position; decline before any cash moves.
	entry := positions.Odds{YesPrice: market.YesPrice, NoPrice: market.NoPrice}
	if entry.Side(verdict.Prediction).LessThanOrEqual(decimal.Zero) {
		log.Debug().
			Str("agent", agent.ID).
			Str("market", market.ID).
			Str("side", verdict.Prediction).
			Msg("No entry price on the chosen side")
		return false
	}

	balance, err := o.ledger.Balance(agent.ID)
	if err != nil {
		log.Error().Err(err).Str("agent", agent.ID).Msg("Balance read failed")
		return false
	}

	base := o.sizing.CalculateBetAmount(verdict.Confidence, balance.CurrentBalance)
	if base.IsZero() {
		log.Debug().
			Str("agent", agent.ID).
			Float64("confidence", verdict.Confidence).
			Msg("Sizing declined the bet")
		return false
	}
	stake := o.sizing.AdjustForPsychology(base, balance)

	if !o.ledger.PlaceBet(agent.ID, stake) {
		return false
	}

	_, created, err := o.store.SavePrediction(positions.NewPosition{
		AgentID:        agent.ID,
		AgentName:      agent.Name,
		MarketID:       market.ID,
		MarketQuestion: market.Question,
		Prediction:     verdict.Prediction,
		Confidence:     verdict.Confidence,
		Reasoning:      verdict.Reasoning,
		ResearchCost:   verdict.ResearchCost,
		BetAmount:      stake,
		Entry:          entry,
	})
	if err != nil || !created {
		// The stake already left the balance; this only happens when two
		// placements race the duplicate check. Put the cash back.
		log.Error().Err(err).
			Str("agent", agent.ID).
			Str("market", market.ID).
			Msg("Stake debited but position was refused, refunding")
		if rerr := o.ledger.RefundBet(agent.ID, stake); rerr != nil {
			log.Error().Err(rerr).Str("agent", agent.ID).Msg("Stake refund failed")
		}
		return false
	}
	return true
}
