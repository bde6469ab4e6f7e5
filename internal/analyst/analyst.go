// Package analyst turns markets into betting decisions for each agent
// persona and drives sizing and position creation.
package analyst

import (
	"context"
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/agentarena/internal/agents"
	"github.com/web3guy0/agentarena/internal/database"
	"github.com/web3guy0/agentarena/internal/positions"
)

// Verdict is a finished analysis: which side, how sure, and why.
type Verdict struct {
	Prediction   string  // positions.SideYes or positions.SideNo
	Confidence   float64 // 0..1
	Reasoning    string
	ResearchCost decimal.Decimal
}

// Analyzer produces a verdict for one agent on one market. Implementations
// are black boxes to the orchestrator; the LLM-backed one plugs in here.
type Analyzer interface {
	Analyze(ctx context.Context, agent agents.Agent, market database.CachedMarket) (Verdict, error)
}

// HeuristicAnalyzer is the built-in analyzer: persona-flavored reads of the
// market's own prices, with seeded noise so runs are reproducible in tests.
type HeuristicAnalyzer struct {
	rng *rand.Rand
}

// NewHeuristicAnalyzer creates the default analyzer over the given RNG.
func NewHeuristicAnalyzer(rng *rand.Rand) *HeuristicAnalyzer {
	return &HeuristicAnalyzer{rng: rng}
}

// Analyze picks a side from the market's prices, flavored by the persona:
// contrarians fade the favorite, degens chase the longshot, everyone else
// leans with the crowd. Confidence scales with how lopsided the prices are.
func (h *HeuristicAnalyzer) Analyze(_ context.Context, agent agents.Agent, market database.CachedMarket) (Verdict, error) {
	yes, _ := market.YesPrice.Float64()
	edge := yes - 0.5 // positive means the crowd leans YES

	side := positions.SideYes
	if edge < 0 {
		side = positions.SideNo
	}

	confidence := 0.5 + absFloat(edge)*0.6 + h.rng.Float64()*0.15

	switch agent.ID {
	case "contrarian":
		side = oppositeSide(side)
		confidence -= 0.05
	case "degen":
		// Longshot hunter: bet the cheap side and feel great about it.
		if market.YesPrice.LessThan(market.NoPrice) {
			side = positions.SideYes
		} else {
			side = positions.SideNo
		}
		confidence += 0.1
	case "steady":
		confidence -= 0.08
	}

	if confidence > 0.98 {
		confidence = 0.98
	}
	if confidence < 0 {
		confidence = 0
	}

	return Verdict{
		Prediction:   side,
		Confidence:   confidence,
		Reasoning:    agent.Name + " (" + agent.Style + ") reads the market at " + market.YesPrice.StringFixed(2) + " YES",
		ResearchCost: decimal.Zero,
	}, nil
}

func oppositeSide(side string) string {
	if side == positions.SideYes {
		return positions.SideNo
	}
	return positions.SideYes
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
