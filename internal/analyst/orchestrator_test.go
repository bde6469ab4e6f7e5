package analyst_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/agentarena/internal/agents"
	"github.com/web3guy0/agentarena/internal/analyst"
	"github.com/web3guy0/agentarena/internal/database"
	"github.com/web3guy0/agentarena/internal/ledger"
	"github.com/web3guy0/agentarena/internal/markets"
	"github.com/web3guy0/agentarena/internal/positions"
)

func newTestRand() *rand.Rand {
	return rand.New(rand.NewSource(7))
}

// stubAnalyzer returns the same verdict for every market.
type stubAnalyzer struct {
	verdict analyst.Verdict
	err     error
}

func (s stubAnalyzer) Analyze(_ context.Context, _ agents.Agent, _ database.CachedMarket) (analyst.Verdict, error) {
	return s.verdict, s.err
}

type arena struct {
	cache *markets.Cache
	lg    *ledger.Ledger
	store *positions.Store
}

func newArena(t *testing.T) arena {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	lg := ledger.New(db, decimal.NewFromInt(1000), decimal.NewFromInt(10))
	require.NoError(t, lg.InitializeAgents(agents.Roster()))
	store := positions.NewStore(db, lg)
	return arena{cache: markets.NewCache(db, store), lg: lg, store: store}
}

func (a arena) seedMarkets(t *testing.T, ids ...string) {
	t.Helper()
	var fresh []markets.Incoming
	for _, id := range ids {
		fresh = append(fresh, markets.Incoming{
			ID:       id,
			Question: "Will it happen?",
			YesPrice: decimal.RequireFromString("0.40"),
			NoPrice:  decimal.RequireFromString("0.60"),
			Volume:   decimal.NewFromInt(1000),
			EndDate:  time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
			Active:   true,
		})
	}
	_, err := a.cache.UpsertMarkets(fresh, "gamma")
	require.NoError(t, err)
}

func defaultOrch(a arena, az analyst.Analyzer, roster []agents.Agent) *analyst.Orchestrator {
	sizing := ledger.DefaultSizing(decimal.NewFromInt(10))
	return analyst.NewOrchestrator(a.cache, a.lg, a.store, az, sizing, roster, 5)
}

func TestRunCyclePlacesBets(t *testing.T) {
	a := newArena(t)
	a.seedMarkets(t, "mkt-1", "mkt-2")

	az := stubAnalyzer{verdict: analyst.Verdict{Prediction: positions.SideYes, Confidence: 0.9}}
	orch := defaultOrch(a, az, agents.Roster())

	placed, err := orch.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, placed)

	open, err := a.store.OpenPositions("")
	require.NoError(t, err)
	require.Len(t, open, 2)

	// Round-robin: two different agents, each debited $4 (0.9 band on $1000).
	require.NotEqual(t, open[0].AgentID, open[1].AgentID)
	for _, pos := range open {
		require.True(t, pos.BetAmount.Equal(decimal.NewFromInt(4)), "got %s", pos.BetAmount)
		bal, err := a.lg.Balance(pos.AgentID)
		require.NoError(t, err)
		require.True(t, bal.CurrentBalance.Equal(decimal.NewFromInt(996)))
	}

	// Markets consumed: a second cycle finds nothing fresh.
	placed, err = orch.RunCycle(context.Background())
	require.NoError(t, err)
	require.Zero(t, placed)
}

func TestRunCycleRefusesZeroPricedSide(t *testing.T) {
	a := newArena(t)

	// A dead-certain market quotes the losing side at exactly zero; the venue
	// feed passes that through. Betting it must not move any cash.
	_, err := a.cache.UpsertMarkets([]markets.Incoming{{
		ID:       "mkt-1",
		Question: "Will it happen?",
		YesPrice: decimal.Zero,
		NoPrice:  decimal.NewFromInt(1),
		Volume:   decimal.NewFromInt(1000),
		Active:   true,
	}}, "gamma")
	require.NoError(t, err)

	roster := []agents.Agent{{ID: "oracle", Name: "The Oracle"}}
	az := stubAnalyzer{verdict: analyst.Verdict{Prediction: positions.SideYes, Confidence: 0.9}}
	orch := defaultOrch(a, az, roster)

	placed, err := orch.RunCycle(context.Background())
	require.NoError(t, err)
	require.Zero(t, placed)

	open, err := a.store.OpenPositions("")
	require.NoError(t, err)
	require.Empty(t, open)

	bal, err := a.lg.Balance("oracle")
	require.NoError(t, err)
	require.True(t, bal.CurrentBalance.Equal(decimal.NewFromInt(1000)), "got %s", bal.CurrentBalance)
	require.True(t, bal.TotalWagered.Equal(decimal.Zero))
	require.Equal(t, 0, bal.PredictionCount)
}

func TestRunCycleSkipsLowConfidence(t *testing.T) {
	a := newArena(t)
	a.seedMarkets(t, "mkt-1")

	az := stubAnalyzer{verdict: analyst.Verdict{Prediction: positions.SideYes, Confidence: 0.50}}
	orch := defaultOrch(a, az, agents.Roster())

	placed, err := orch.RunCycle(context.Background())
	require.NoError(t, err)
	require.Zero(t, placed)

	// The market still gets consumed so the cycle never respins on it.
	fresh, err := a.cache.FreshMarkets(10)
	require.NoError(t, err)
	require.Empty(t, fresh)
}

func TestRunCycleSkipsDuplicateBets(t *testing.T) {
	a := newArena(t)
	a.seedMarkets(t, "mkt-1")

	roster := []agents.Agent{{ID: "oracle", Name: "The Oracle"}}
	az := stubAnalyzer{verdict: analyst.Verdict{Prediction: positions.SideYes, Confidence: 0.9}}
	orch := defaultOrch(a, az, roster)

	// The agent already holds a bet on this market.
	require.True(t, a.lg.PlaceBet("oracle", decimal.NewFromInt(4)))
	_, created, err := a.store.SavePrediction(positions.NewPosition{
		AgentID:    "oracle",
		MarketID:   "mkt-1",
		Prediction: positions.SideYes,
		BetAmount:  decimal.NewFromInt(4),
		Entry:      positions.Odds{YesPrice: decimal.RequireFromString("0.40"), NoPrice: decimal.RequireFromString("0.60")},
	})
	require.NoError(t, err)
	require.True(t, created)

	placed, err := orch.RunCycle(context.Background())
	require.NoError(t, err)
	require.Zero(t, placed)

	bal, err := a.lg.Balance("oracle")
	require.NoError(t, err)
	require.True(t, bal.CurrentBalance.Equal(decimal.NewFromInt(996)))
}

func TestRunCycleSurvivesAnalyzerFailure(t *testing.T) {
	a := newArena(t)
	a.seedMarkets(t, "mkt-1", "mkt-2")

	az := stubAnalyzer{err: errors.New("model overloaded")}
	orch := defaultOrch(a, az, agents.Roster())

	placed, err := orch.RunCycle(context.Background())
	require.NoError(t, err)
	require.Zero(t, placed)

	fresh, err := a.cache.FreshMarkets(10)
	require.NoError(t, err)
	require.Empty(t, fresh)
}

func TestHeuristicAnalyzerPersonas(t *testing.T) {
	market := database.CachedMarket{
		ID:       "mkt-1",
		Question: "Will it happen?",
		YesPrice: decimal.RequireFromString("0.80"),
		NoPrice:  decimal.RequireFromString("0.20"),
	}
	az := analyst.NewHeuristicAnalyzer(newTestRand())

	quant, ok := agents.ByID("quant")
	require.True(t, ok)
	v, err := az.Analyze(context.Background(), quant, market)
	require.NoError(t, err)
	require.Equal(t, positions.SideYes, v.Prediction)
	require.Greater(t, v.Confidence, 0.5)
	require.LessOrEqual(t, v.Confidence, 0.98)

	contrarian, ok := agents.ByID("contrarian")
	require.True(t, ok)
	v, err = az.Analyze(context.Background(), contrarian, market)
	require.NoError(t, err)
	require.Equal(t, positions.SideNo, v.Prediction)

	degen, ok := agents.ByID("degen")
	require.True(t, ok)
	v, err = az.Analyze(context.Background(), degen, market)
	require.NoError(t, err)
	require.Equal(t, positions.SideNo, v.Prediction) // chases the cheap side
}
