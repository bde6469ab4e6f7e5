package positions

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/agentarena/internal/database"
)

// ExitPolicy decides stochastically whether an open position should be
// liquidated this cycle. It stands in for other market participants and
// behavioral noise, not a deterministic trading rule. The RNG is injected so
// tests can pin a seed.
type ExitPolicy struct {
	ProfitTakePnLPct decimal.Decimal // take profits above this pnl %
	ProfitTakeProb   float64
	StopLossPnLPct   decimal.Decimal // cut losses below this pnl %
	StopLossProb     float64
	RandomExitBase   float64 // baseline random exit probability
	RandomExitPerHr  float64 // added per hour of position age
	RandomExitMax    float64

	rng *rand.Rand
}

// NewExitPolicy returns the standard policy over the given RNG.
func NewExitPolicy(rng *rand.Rand) *ExitPolicy {
	return &ExitPolicy{
		ProfitTakePnLPct: decimal.NewFromInt(30),
		ProfitTakeProb:   0.15,
		StopLossPnLPct:   decimal.NewFromInt(-50),
		StopLossProb:     0.08,
		RandomExitBase:   0.02,
		RandomExitPerHr:  0.001,
		RandomExitMax:    0.05,
		rng:              rng,
	}
}

// Evaluate draws at most one exit per position per cycle; the first matching
// reason wins: profit-taking, then stop-loss, then random exit.
func (p *ExitPolicy) Evaluate(pos *database.AgentPrediction, now time.Time) (reason string, exit bool) {
	if pos.BetAmount.LessThanOrEqual(decimal.Zero) {
		return "", false
	}

	pnlPct := pos.UnrealizedPnL.Div(pos.BetAmount).Mul(decimal.NewFromInt(100))
	ageHours := now.Sub(pos.CreatedAt).Hours()

	if pnlPct.GreaterThan(p.ProfitTakePnLPct) && p.rng.Float64() < p.ProfitTakeProb {
		return ReasonProfitTaking, true
	}

	if pnlPct.LessThan(p.StopLossPnLPct) && p.rng.Float64() < p.StopLossProb {
		return ReasonStopLoss, true
	}

	randomProb := p.RandomExitBase + ageHours*p.RandomExitPerHr
	if randomProb > p.RandomExitMax {
		randomProb = p.RandomExitMax
	}
	if p.rng.Float64() < randomProb {
		return ReasonRandomExit, true
	}
	return "", false
}
