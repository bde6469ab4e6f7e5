// Package positions owns bet records and their lifecycle:
// OPEN -> CLOSED_MANUAL or CLOSED_RESOLVED, both terminal.
package positions

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/agentarena/internal/database"
	"github.com/web3guy0/agentarena/internal/ledger"
)

// Position states
const (
	StatusOpen           = "OPEN"
	StatusClosedManual   = "CLOSED_MANUAL"
	StatusClosedResolved = "CLOSED_RESOLVED"
)

// Bet sides
const (
	SideYes = "YES"
	SideNo  = "NO"
)

// Close reasons
const (
	ReasonProfitTaking   = "PROFIT_TAKING"
	ReasonStopLoss       = "STOP_LOSS"
	ReasonMarketResolved = "MARKET_RESOLVED"
	ReasonRandomExit     = "RANDOM_EXIT"
)

// Odds is a yes/no price snapshot.
type Odds struct {
	YesPrice decimal.Decimal
	NoPrice  decimal.Decimal
}

// Side returns the price of the given side.
func (o Odds) Side(side string) decimal.Decimal {
	if side == SideYes {
		return o.YesPrice
	}
	return o.NoPrice
}

// NewPosition carries a fully-formed decision into the store.
type NewPosition struct {
	AgentID        string
	AgentName      string
	MarketID       string
	MarketQuestion string
	Prediction     string // SideYes or SideNo
	Confidence     float64
	Reasoning      string
	ResearchCost   decimal.Decimal
	BetAmount      decimal.Decimal
	Entry          Odds
}

// Store is the position store. Settlement credits flow through the ledger;
// the store never touches balances directly.
type Store struct {
	db     *database.Database
	ledger *ledger.Ledger
}

// NewStore creates a position store.
func NewStore(db *database.Database, lg *ledger.Ledger) *Store {
	return &Store{db: db, ledger: lg}
}

// SavePrediction creates an OPEN position. Returns created=false without an
// error when the agent already has an open position on the market or the
// entry price of the chosen side is zero — both routine declines.
func (s *Store) SavePrediction(np NewPosition) (*database.AgentPrediction, bool, error) {
	entryPrice := np.Entry.Side(np.Prediction)
	if entryPrice.LessThanOrEqual(decimal.Zero) {
		log.Warn().Str("market", np.MarketID).Str("side", np.Prediction).Msg("Refusing bet at zero entry price")
		return nil, false, nil
	}

	// Best-effort duplicate guard; the orchestrator checks too, this catches
	// what slips between its check and our write.
	open, err := s.db.CountOpenForPair(np.AgentID, np.MarketID)
	if err != nil {
		return nil, false, fmt.Errorf("positions: duplicate check: %w", err)
	}
	if open > 0 {
		log.Warn().Str("agent", np.AgentID).Str("market", np.MarketID).Msg("Duplicate open position refused")
		return nil, false, nil
	}

	now := time.Now()
	pred := &database.AgentPrediction{
		ID:             uuid.NewString(),
		AgentID:        np.AgentID,
		AgentName:      np.AgentName,
		MarketID:       np.MarketID,
		MarketQuestion: np.MarketQuestion,
		Prediction:     np.Prediction,
		Confidence:     np.Confidence,
		Reasoning:      np.Reasoning,
		ResearchCost:   np.ResearchCost,
		BetAmount:      np.BetAmount,
		EntryYesPrice:  np.Entry.YesPrice,
		EntryNoPrice:   np.Entry.NoPrice,
		// Winning shares redeem at $1, so the entry-implied payout is
		// stake / entry price. This is what settlement pays on a win.
		ExpectedPayout:  np.BetAmount.Div(entryPrice),
		PositionStatus:  StatusOpen,
		CurrentYesPrice: np.Entry.YesPrice,
		CurrentNoPrice:  np.Entry.NoPrice,
		OddsUpdatedAt:   now,
		UnrealizedPnL:   decimal.Zero,
	}

	if err := s.db.CreatePrediction(pred); err != nil {
		return nil, false, fmt.Errorf("positions: create: %w", err)
	}

	log.Info().
		Str("agent", np.AgentID).
		Str("market", np.MarketID).
		Str("side", np.Prediction).
		Str("stake", np.BetAmount.StringFixed(2)).
		Str("entry", entryPrice.StringFixed(3)).
		Msg("🎲 Position opened")
	return pred, true, nil
}

// UpdateMarketOdds marks every OPEN position on the market to the new odds.
// Constant-shares model: shares bought at entry are revalued at the current
// price of the same side. Display-only — settlement uses the entry-implied
// payout. Per-record write failures are logged and skipped so one bad row
// cannot stall the rest of the batch. Returns the number of updated records.
func (s *Store) UpdateMarketOdds(marketID string, odds Odds, at time.Time) (int, error) {
	open, err := s.db.GetOpenPositions(marketID)
	if err != nil {
		return 0, fmt.Errorf("positions: load open for %s: %w", marketID, err)
	}

	updated := 0
	for i := range open {
		pos := &open[i]
		entryPrice := Odds{YesPrice: pos.EntryYesPrice, NoPrice: pos.EntryNoPrice}.Side(pos.Prediction)
		if entryPrice.LessThanOrEqual(decimal.Zero) {
			continue
		}
		shares := pos.BetAmount.Div(entryPrice)
		currentValue := shares.Mul(odds.Side(pos.Prediction))

		pos.CurrentYesPrice = odds.YesPrice
		pos.CurrentNoPrice = odds.NoPrice
		pos.OddsUpdatedAt = at
		pos.UnrealizedPnL = currentValue.Sub(pos.BetAmount)

		if err := s.db.SavePrediction(pos); err != nil {
			log.Error().Err(err).Str("id", pos.ID).Msg("Mark-to-market write failed")
			continue
		}
		updated++
	}

	if updated > 0 {
		log.Debug().Str("market", marketID).Int("positions", updated).Msg("📈 Marked to market")
	}
	return updated, nil
}

// ClosePosition exits an OPEN position at its last marked price. The mark
// crystallizes into ProfitLoss, and the ledger is credited with
// bet + max(pnl, 0). Non-open or already-resolved records are a warned no-op.
func (s *Store) ClosePosition(id, reason string) (bool, error) {
	pos, err := s.db.GetPrediction(id)
	if err != nil {
		return false, fmt.Errorf("positions: load %s: %w", id, err)
	}
	if pos.PositionStatus != StatusOpen {
		log.Warn().Str("id", id).Str("status", pos.PositionStatus).Msg("Close refused: position not open")
		return false, nil
	}
	if pos.Resolved {
		log.Warn().Str("id", id).Msg("Close refused: position already resolved")
		return false, nil
	}

	now := time.Now()
	pos.ClosePrice = Odds{YesPrice: pos.CurrentYesPrice, NoPrice: pos.CurrentNoPrice}.Side(pos.Prediction)
	pos.CloseReason = reason
	pos.ClosedAt = &now
	if reason == ReasonMarketResolved {
		pos.PositionStatus = StatusClosedResolved
	} else {
		pos.PositionStatus = StatusClosedManual
	}
	pos.ProfitLoss = pos.UnrealizedPnL
	pos.ActualPayout = pos.BetAmount.Add(pos.ProfitLoss)

	if err := s.db.SavePrediction(pos); err != nil {
		return false, fmt.Errorf("positions: close %s: %w", id, err)
	}

	payout := pos.BetAmount
	if pos.ProfitLoss.IsPositive() {
		payout = pos.BetAmount.Add(pos.ProfitLoss)
	}
	if err := s.ledger.ResolveBet(pos.AgentID, pos.BetAmount, pos.ProfitLoss.IsPositive(), payout); err != nil {
		log.Error().Err(err).Str("id", id).Msg("Ledger credit after close failed")
	}

	log.Info().
		Str("agent", pos.AgentID).
		Str("market", pos.MarketID).
		Str("reason", reason).
		Str("pnl", pos.ProfitLoss.StringFixed(2)).
		Msg("🔒 Position closed")
	return true, nil
}

// ResolvePrediction settles a position against the market's true outcome.
// Correct bets pay the stored entry-implied payout regardless of the final
// price; incorrect bets pay nothing. Already-resolved records are a warned
// no-op, so a double call cannot double-credit the ledger. Records that were
// already closed manually only get their outcome metadata filled in — their
// cash settled at close time.
func (s *Store) ResolvePrediction(id, outcome string, finalPrice decimal.Decimal) (bool, error) {
	pos, err := s.db.GetPrediction(id)
	if err != nil {
		return false, fmt.Errorf("positions: load %s: %w", id, err)
	}
	if pos.Resolved {
		log.Warn().Str("id", id).Msg("Resolve refused: already resolved")
		return false, nil
	}

	now := time.Now()
	pos.Correct = pos.Prediction == outcome
	pos.Outcome = outcome
	pos.Resolved = true
	pos.ResolvedAt = &now

	if pos.PositionStatus != StatusOpen {
		// Settled at close time already; record the outcome only.
		if err := s.db.SavePrediction(pos); err != nil {
			return false, fmt.Errorf("positions: mark outcome %s: %w", id, err)
		}
		log.Debug().Str("id", id).Bool("correct", pos.Correct).Msg("Outcome recorded on closed position")
		return true, nil
	}

	if pos.Correct {
		pos.ActualPayout = pos.ExpectedPayout
		pos.ProfitLoss = pos.ActualPayout.Sub(pos.BetAmount)
	} else {
		pos.ActualPayout = decimal.Zero
		pos.ProfitLoss = pos.BetAmount.Neg()
	}
	pos.PositionStatus = StatusClosedResolved
	pos.CloseReason = ReasonMarketResolved
	pos.ClosePrice = finalPrice
	pos.ClosedAt = &now

	if err := s.db.SavePrediction(pos); err != nil {
		return false, fmt.Errorf("positions: resolve %s: %w", id, err)
	}

	if err := s.ledger.ResolveBet(pos.AgentID, pos.BetAmount, pos.Correct, pos.ActualPayout); err != nil {
		log.Error().Err(err).Str("id", id).Msg("Ledger credit after resolution failed")
	}

	log.Info().
		Str("agent", pos.AgentID).
		Str("market", pos.MarketID).
		Str("outcome", outcome).
		Bool("correct", pos.Correct).
		Str("pnl", pos.ProfitLoss.StringFixed(2)).
		Msg("🏁 Position resolved")
	return true, nil
}

// ManagePositions runs the stochastic exit policy over every OPEN position
// and closes the hits. Returns the number of positions closed. One position's
// failure never aborts the sweep.
func (s *Store) ManagePositions(policy *ExitPolicy, now time.Time) (int, error) {
	open, err := s.db.GetOpenPositions("")
	if err != nil {
		return 0, fmt.Errorf("positions: load open: %w", err)
	}

	closed := 0
	for i := range open {
		pos := &open[i]
		reason, exit := policy.Evaluate(pos, now)
		if !exit {
			continue
		}
		ok, err := s.ClosePosition(pos.ID, reason)
		if err != nil {
			log.Error().Err(err).Str("id", pos.ID).Msg("Exit close failed")
			continue
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}

// Query surfaces

func (s *Store) ByAgent(agentID string) ([]database.AgentPrediction, error) {
	return s.db.GetPredictionsByAgent(agentID)
}

func (s *Store) ByMarket(marketID string) ([]database.AgentPrediction, error) {
	return s.db.GetPredictionsByMarket(marketID)
}

// OpenPositions returns OPEN positions; empty marketID means all markets.
func (s *Store) OpenPositions(marketID string) ([]database.AgentPrediction, error) {
	return s.db.GetOpenPositions(marketID)
}

// Unresolved returns predictions on a market whose outcome is not yet
// recorded, including manually-closed ones.
func (s *Store) Unresolved(marketID string) ([]database.AgentPrediction, error) {
	return s.db.GetUnresolvedPredictions(marketID)
}

// HasAgentPredicted reports whether the agent already bet on the market.
func (s *Store) HasAgentPredicted(agentID, marketID string) (bool, error) {
	return s.db.HasAgentPredicted(agentID, marketID)
}

// MarketsWithOpenPositions lists market ids that need mark-to-market updates.
func (s *Store) MarketsWithOpenPositions() ([]string, error) {
	return s.db.MarketsWithOpenPositions()
}

// ClearAll deletes every prediction (admin reset).
func (s *Store) ClearAll() error {
	return s.db.DeleteAllPredictions()
}
