package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/web3guy0/agentarena/internal/database"
)

// SizingPolicy maps confidence and bankroll to a stake. Pure functions, no
// storage access.
type SizingPolicy struct {
	ConfidenceFloor float64         // below this, no bet
	MinBet          decimal.Decimal // smallest stake ever placed
	MaxBet          decimal.Decimal // hard dollar cap on a single stake
	MaxBalancePct   decimal.Decimal // bet ceiling as fraction of balance
	BankruptcyFloor decimal.Decimal // balance must never be sized below this
}

// DefaultSizing returns the competition's standard policy.
func DefaultSizing(bankruptcyFloor decimal.Decimal) SizingPolicy {
	return SizingPolicy{
		ConfidenceFloor: 0.55,
		MinBet:          decimal.NewFromInt(1),
		MaxBet:          decimal.NewFromInt(5),
		MaxBalancePct:   decimal.NewFromFloat(0.05),
		BankruptcyFloor: bankruptcyFloor,
	}
}

// CalculateBetAmount sizes a stake from confidence and current balance.
// Confidence below the floor returns zero. Otherwise the stake is a
// confidence-banded fraction of min(MaxBet, MaxBalancePct of balance),
// floored at MinBet and capped so the balance stays above the bankruptcy
// floor. Non-decreasing in confidence for a fixed balance.
func (p SizingPolicy) CalculateBetAmount(confidence float64, balance decimal.Decimal) decimal.Decimal {
	if confidence < p.ConfidenceFloor {
		return decimal.Zero
	}

	headroom := balance.Sub(p.BankruptcyFloor)
	if headroom.LessThan(p.MinBet) {
		return decimal.Zero
	}

	ceiling := balance.Mul(p.MaxBalancePct)
	if ceiling.GreaterThan(p.MaxBet) {
		ceiling = p.MaxBet
	}

	var ratio decimal.Decimal
	switch {
	case confidence >= 0.85:
		ratio = decimal.NewFromFloat(0.8)
	case confidence >= 0.75:
		ratio = decimal.NewFromFloat(0.6)
	case confidence >= 0.65:
		ratio = decimal.NewFromFloat(0.4)
	default:
		ratio = decimal.NewFromFloat(0.2)
	}

	bet := ceiling.Mul(ratio)
	if bet.LessThan(p.MinBet) {
		bet = p.MinBet
	}
	if bet.GreaterThan(headroom) {
		bet = headroom
	}
	return bet
}

// AdjustForPsychology scales a base stake by the agent's recent form: hot
// streaks press up, cold streaks and deep drawdowns pull back. Result is
// clamped to [MinBet, MaxBet].
func (p SizingPolicy) AdjustForPsychology(base decimal.Decimal, balance *database.AgentBalance) decimal.Decimal {
	if base.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	factor := decimal.NewFromInt(1)
	if balance.CurrentStreak >= 3 {
		factor = factor.Mul(decimal.NewFromFloat(1.2))
	} else if balance.CurrentStreak <= -3 {
		factor = factor.Mul(decimal.NewFromFloat(0.8))
	}
	if balance.ROI.LessThan(decimal.NewFromInt(-20)) {
		factor = factor.Mul(decimal.NewFromFloat(0.7))
	} else if balance.ROI.GreaterThan(decimal.NewFromInt(20)) {
		factor = factor.Mul(decimal.NewFromFloat(1.1))
	}

	adjusted := base.Mul(factor)
	if adjusted.LessThan(p.MinBet) {
		return p.MinBet
	}
	if adjusted.GreaterThan(p.MaxBet) {
		return p.MaxBet
	}
	return adjusted
}
