// Package markets owns the catalog of tradable markets and fires settlement
// when a market flips to resolved.
package markets

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/agentarena/internal/database"
	"github.com/web3guy0/agentarena/internal/positions"
)

// Dirty-check thresholds: smaller deltas are noise and skipped to bound write
// volume and keep downstream mark-to-market from thrashing.
var (
	priceEpsilon      = decimal.NewFromFloat(0.001)
	volumeMinDelta    = decimal.NewFromInt(100)
	volumePctDelta    = decimal.NewFromFloat(0.01)
	liquidityMinDelta = decimal.NewFromInt(50)
	liquidityPctDelta = decimal.NewFromFloat(0.05)
)

// Incoming is a normalized market row from the venue refresh.
type Incoming struct {
	ID          string
	Question    string
	Description string
	YesPrice    decimal.Decimal
	NoPrice     decimal.Decimal
	Volume      decimal.Decimal
	Volume24hr  decimal.Decimal
	Liquidity   decimal.Decimal
	EndDate     time.Time
	Active      bool
	Resolved    bool
	Archived    bool
}

// UpsertResult summarizes one refresh batch.
type UpsertResult struct {
	Added         int
	Updated       int
	Skipped       int
	NewlyResolved []string
}

// Cache is the market catalog plus the automatic settlement path.
type Cache struct {
	db    *database.Database
	store *positions.Store
}

// NewCache creates a market cache wired to the position store for settlement.
func NewCache(db *database.Database, store *positions.Store) *Cache {
	return &Cache{db: db, store: store}
}

// UpsertMarkets merges a fresh venue snapshot into the cache. Unchanged rows
// are skipped via thresholded comparison. A market whose resolved flag flips
// false -> true is settled after the batch: every one of its predictions gets
// an inferred outcome, and open positions pay out through the ledger.
func (c *Cache) UpsertMarkets(fresh []Incoming, source string) (UpsertResult, error) {
	var result UpsertResult

	for _, in := range fresh {
		existing, err := c.db.GetCachedMarket(in.ID)
		if err != nil {
			if !database.IsNotFound(err) {
				log.Error().Err(err).Str("market", in.ID).Msg("Market lookup failed")
				continue
			}
			market := &database.CachedMarket{
				ID:          in.ID,
				Question:    in.Question,
				Description: in.Description,
				YesPrice:    in.YesPrice,
				NoPrice:     in.NoPrice,
				Volume:      in.Volume,
				Volume24hr:  in.Volume24hr,
				Liquidity:   in.Liquidity,
				EndDate:     in.EndDate,
				Active:      in.Active,
				Resolved:    in.Resolved,
				Archived:    in.Archived,
				Source:      source,
			}
			if err := c.db.CreateCachedMarket(market); err != nil {
				log.Error().Err(err).Str("market", in.ID).Msg("Market insert failed")
				continue
			}
			result.Added++
			continue
		}

		if !c.isDirty(existing, in) {
			result.Skipped++
			continue
		}

		if !existing.Resolved && in.Resolved {
			result.NewlyResolved = append(result.NewlyResolved, in.ID)
		}

		existing.Question = in.Question
		existing.Description = in.Description
		existing.YesPrice = in.YesPrice
		existing.NoPrice = in.NoPrice
		existing.Volume = in.Volume
		existing.Volume24hr = in.Volume24hr
		existing.Liquidity = in.Liquidity
		existing.EndDate = in.EndDate
		existing.Active = in.Active
		existing.Resolved = in.Resolved
		existing.Archived = in.Archived
		existing.Source = source

		if err := c.db.SaveCachedMarket(existing); err != nil {
			log.Error().Err(err).Str("market", in.ID).Msg("Market update failed")
			continue
		}
		result.Updated++
	}

	// Settle after the batch write so readers never observe a resolved market
	// with unsettled positions for longer than one refresh.
	for _, marketID := range result.NewlyResolved {
		if _, err := c.SettleMarket(marketID); err != nil {
			log.Error().Err(err).Str("market", marketID).Msg("Settlement failed")
		}
	}

	if result.Added+result.Updated > 0 {
		log.Debug().
			Int("added", result.Added).
			Int("updated", result.Updated).
			Int("skipped", result.Skipped).
			Str("source", source).
			Msg("🗃️ Market cache refreshed")
	}
	return result, nil
}

// isDirty applies the thresholded comparison between stored and incoming.
func (c *Cache) isDirty(old *database.CachedMarket, in Incoming) bool {
	if old.YesPrice.Sub(in.YesPrice).Abs().GreaterThan(priceEpsilon) {
		return true
	}
	if old.NoPrice.Sub(in.NoPrice).Abs().GreaterThan(priceEpsilon) {
		return true
	}
	if exceedsDelta(old.Volume, in.Volume, volumePctDelta, volumeMinDelta) {
		return true
	}
	if exceedsDelta(old.Volume24hr, in.Volume24hr, volumePctDelta, volumeMinDelta) {
		return true
	}
	if exceedsDelta(old.Liquidity, in.Liquidity, liquidityPctDelta, liquidityMinDelta) {
		return true
	}
	if old.Active != in.Active || old.Resolved != in.Resolved || old.Archived != in.Archived {
		return true
	}
	if old.Question != in.Question || old.Description != in.Description {
		return true
	}
	if !old.EndDate.Equal(in.EndDate) {
		return true
	}
	return false
}

// exceedsDelta reports whether new moved from old by more than
// max(pct of old, floor).
func exceedsDelta(old, new, pct, floor decimal.Decimal) bool {
	threshold := old.Abs().Mul(pct)
	if threshold.LessThan(floor) {
		threshold = floor
	}
	return old.Sub(new).Abs().GreaterThan(threshold)
}

// SettleMarket infers the market's outcome from its final prices and resolves
// every unresolved prediction on it. Ambiguous prices settle nothing — a
// conservative no-op is preferred over a coin flip. Returns the number of
// records resolved.
func (c *Cache) SettleMarket(marketID string) (int, error) {
	market, err := c.db.GetCachedMarket(marketID)
	if err != nil {
		return 0, fmt.Errorf("markets: load %s: %w", marketID, err)
	}

	outcome := DetermineMarketOutcome(market.YesPrice, market.NoPrice)
	if outcome == "" {
		log.Warn().
			Str("market", marketID).
			Str("yes", market.YesPrice.StringFixed(3)).
			Str("no", market.NoPrice.StringFixed(3)).
			Msg("⚖️ Ambiguous outcome, leaving predictions unresolved")
		return 0, nil
	}

	return c.settleWithOutcome(market, outcome)
}

// ResolveManually settles a market with an explicit outcome, skipping
// inference (admin override). Marks the market resolved first.
func (c *Cache) ResolveManually(marketID, outcome string) (int, error) {
	if outcome != positions.SideYes && outcome != positions.SideNo {
		return 0, fmt.Errorf("markets: invalid outcome %q", outcome)
	}
	market, err := c.db.GetCachedMarket(marketID)
	if err != nil {
		return 0, fmt.Errorf("markets: load %s: %w", marketID, err)
	}
	if !market.Resolved {
		market.Resolved = true
		market.Active = false
		if err := c.db.SaveCachedMarket(market); err != nil {
			return 0, fmt.Errorf("markets: mark resolved %s: %w", marketID, err)
		}
	}
	return c.settleWithOutcome(market, outcome)
}

func (c *Cache) settleWithOutcome(market *database.CachedMarket, outcome string) (int, error) {
	unresolved, err := c.store.Unresolved(market.ID)
	if err != nil {
		return 0, fmt.Errorf("markets: unresolved for %s: %w", market.ID, err)
	}

	finalPrice := market.YesPrice
	if outcome == positions.SideNo {
		finalPrice = market.NoPrice
	}

	settled := 0
	for _, pred := range unresolved {
		ok, err := c.store.ResolvePrediction(pred.ID, outcome, finalPrice)
		if err != nil {
			log.Error().Err(err).Str("id", pred.ID).Msg("Prediction resolution failed")
			continue
		}
		if ok {
			settled++
		}
	}

	log.Info().
		Str("market", market.ID).
		Str("outcome", outcome).
		Int("settled", settled).
		Msg("🏛️ Market settled")
	return settled, nil
}

// GetMarket returns one cached market, or nil when unknown.
func (c *Cache) GetMarket(id string) (*database.CachedMarket, error) {
	market, err := c.db.GetCachedMarket(id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return market, nil
}

// FreshMarkets returns active unanalyzed markets for the orchestrator.
func (c *Cache) FreshMarkets(limit int) ([]database.CachedMarket, error) {
	return c.db.GetFreshMarkets(limit)
}

// MarkAnalyzed flips the analyzed gate on a market.
func (c *Cache) MarkAnalyzed(id string) error {
	return c.db.MarkAnalyzed(id)
}

// ResetAnalyzedFlags clears every analyzed gate (admin reset).
func (c *Cache) ResetAnalyzedFlags() error {
	return c.db.ResetAnalyzedFlags()
}
