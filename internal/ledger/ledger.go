// Package ledger owns agent bankrolls. PlaceBet and ResolveBet are the only
// legal balance mutators; everything else reads.
package ledger

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/agentarena/internal/agents"
	"github.com/web3guy0/agentarena/internal/database"
)

// Ledger tracks each agent's cash, aggregates and streaks.
type Ledger struct {
	db             *database.Database
	initialBalance decimal.Decimal
	floor          decimal.Decimal // bankruptcy floor: no new bets at or below this
}

// New creates a ledger over the given store.
func New(db *database.Database, initialBalance, bankruptcyFloor decimal.Decimal) *Ledger {
	return &Ledger{
		db:             db,
		initialBalance: initialBalance,
		floor:          bankruptcyFloor,
	}
}

// InitializeAgents creates a balance record per roster agent if none exists.
// Safe to call on every startup.
func (l *Ledger) InitializeAgents(roster []agents.Agent) error {
	for _, agent := range roster {
		balance := &database.AgentBalance{
			AgentID:        agent.ID,
			AgentName:      agent.Name,
			CurrentBalance: l.initialBalance,
			InitialBalance: l.initialBalance,
		}
		if err := l.db.CreateBalanceIfAbsent(balance); err != nil {
			return fmt.Errorf("ledger: initialize %s: %w", agent.ID, err)
		}
	}
	log.Info().Int("agents", len(roster)).Str("bankroll", l.initialBalance.StringFixed(2)).Msg("💰 Agent balances ready")
	return nil
}

// PlaceBet debits a stake from the agent's balance. Returns false when the
// bet is refused (non-positive amount, insufficient balance, or balance at
// the bankruptcy floor). Declines are routine, so they log and return rather
// than error.
func (l *Ledger) PlaceBet(agentID string, amount decimal.Decimal) bool {
	ok, err := l.db.DebitForBet(agentID, amount, l.floor)
	if err != nil {
		log.Error().Err(err).Str("agent", agentID).Msg("Bet debit failed")
		return false
	}
	if !ok {
		log.Debug().
			Str("agent", agentID).
			Str("amount", amount.StringFixed(2)).
			Msg("Bet refused: insufficient balance or at bankruptcy floor")
	}
	return ok
}

// RefundBet reverses a debit whose position never materialized: the stake
// returns to the balance and the wager bookkeeping is unwound.
func (l *Ledger) RefundBet(agentID string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	if err := l.db.CreditRefund(agentID, amount); err != nil {
		return fmt.Errorf("ledger: refund %s: %w", agentID, err)
	}
	log.Warn().
		Str("agent", agentID).
		Str("amount", amount.StringFixed(2)).
		Msg("💸 Stake refunded")
	return nil
}

// ResolveBet applies a bet outcome. A win credits payout to cash and
// winnings; a loss only books betAmount to losses — the stake already left
// the balance at placement. Also maintains win rate, ROI, streak and
// biggest win/loss.
//
// The update is a read-modify-write, not a conditional UPDATE like the debit
// path: settlements for one agent arrive from the single-threaded tracker
// cycles, so concurrent credits would be last-writer-wins. Keep settlement
// callers serialized per agent.
func (l *Ledger) ResolveBet(agentID string, betAmount decimal.Decimal, isWin bool, payout decimal.Decimal) error {
	balance, err := l.db.GetBalance(agentID)
	if err != nil {
		return fmt.Errorf("ledger: resolve for %s: %w", agentID, err)
	}

	if isWin {
		balance.CurrentBalance = balance.CurrentBalance.Add(payout)
		balance.TotalWinnings = balance.TotalWinnings.Add(payout)
		balance.WinCount++
		if balance.CurrentStreak >= 0 {
			balance.CurrentStreak++
		} else {
			balance.CurrentStreak = 1
		}
		netGain := payout.Sub(betAmount)
		if netGain.GreaterThan(balance.BiggestWin) {
			balance.BiggestWin = netGain
		}
	} else {
		balance.TotalLosses = balance.TotalLosses.Add(betAmount)
		balance.LossCount++
		if balance.CurrentStreak <= 0 {
			balance.CurrentStreak--
		} else {
			balance.CurrentStreak = -1
		}
		if betAmount.GreaterThan(balance.BiggestLoss) {
			balance.BiggestLoss = betAmount
		}
	}

	settled := balance.WinCount + balance.LossCount
	if settled > 0 {
		balance.WinRate = decimal.NewFromInt(int64(balance.WinCount)).
			Div(decimal.NewFromInt(int64(settled))).
			Mul(decimal.NewFromInt(100))
	}
	if balance.TotalWagered.IsPositive() {
		balance.ROI = balance.TotalWinnings.Sub(balance.TotalWagered).
			Div(balance.TotalWagered).
			Mul(decimal.NewFromInt(100))
	}

	if err := l.db.SaveBalance(balance); err != nil {
		return fmt.Errorf("ledger: save balance for %s: %w", agentID, err)
	}

	log.Info().
		Str("agent", agentID).
		Bool("win", isWin).
		Str("payout", payout.StringFixed(2)).
		Str("balance", balance.CurrentBalance.StringFixed(2)).
		Int("streak", balance.CurrentStreak).
		Msg("🏦 Bet settled")
	return nil
}

// Balance returns the agent's current bankroll record.
func (l *Ledger) Balance(agentID string) (*database.AgentBalance, error) {
	return l.db.GetBalance(agentID)
}

// Leaderboard returns all agents ordered by balance, richest first.
func (l *Ledger) Leaderboard() ([]database.AgentBalance, error) {
	return l.db.GetAllBalances()
}

// ResetAgent puts an agent back to its initial bankroll (admin operation).
func (l *Ledger) ResetAgent(agentID string) error {
	if err := l.db.ResetBalance(agentID); err != nil {
		return fmt.Errorf("ledger: reset %s: %w", agentID, err)
	}
	log.Info().Str("agent", agentID).Msg("🔄 Agent bankroll reset")
	return nil
}
