package tracker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/agentarena/internal/analyst"
	"github.com/web3guy0/agentarena/internal/feed"
	"github.com/web3guy0/agentarena/internal/markets"
	"github.com/web3guy0/agentarena/internal/positions"
)

// NewOddsTracker marks every market with open positions to its latest odds.
// Feed failures degrade to neutral odds inside the client, so the cycle
// never aborts on a dead feed.
func NewOddsTracker(store *positions.Store, client *feed.Client, interval, timeout time.Duration) *Tracker {
	var t *Tracker
	t = New("odds", interval, timeout, func(ctx context.Context) error {
		ids, err := store.MarketsWithOpenPositions()
		if err != nil {
			return err
		}
		for _, marketID := range ids {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			odds := client.FetchOdds(ctx, marketID)
			if _, err := store.UpdateMarketOdds(marketID, odds, t.Now()); err != nil {
				log.Error().Err(err).Str("market", marketID).Msg("Odds update failed")
			}
		}
		return nil
	})
	return t
}

// NewPositionManager sweeps open positions through the stochastic exit
// policy.
func NewPositionManager(store *positions.Store, policy *positions.ExitPolicy, interval, timeout time.Duration) *Tracker {
	var t *Tracker
	t = New("positions", interval, timeout, func(ctx context.Context) error {
		closed, err := store.ManagePositions(policy, t.Now())
		if err != nil {
			return err
		}
		if closed > 0 {
			log.Info().Int("closed", closed).Msg("🚪 Exit sweep closed positions")
		}
		return nil
	})
	return t
}

// NewMarketRefresher pulls the venue's market list into the cache. Settlement
// of newly-resolved markets happens inside the upsert.
func NewMarketRefresher(client *feed.Client, cache *markets.Cache, batchSize int, interval, timeout time.Duration) *Tracker {
	return New("refresh", interval, timeout, func(ctx context.Context) error {
		fresh, err := client.FetchMarkets(ctx, batchSize)
		if err != nil {
			return err
		}
		_, err = cache.UpsertMarkets(fresh, "gamma")
		return err
	})
}

// NewIntegratedTracker combines odds refresh and exit evaluation in one
// cycle. The odds update completes and commits before the exit sweep reads
// the marks — ordering matters, the sweep prices exits off those marks.
func NewIntegratedTracker(store *positions.Store, client *feed.Client, policy *positions.ExitPolicy, interval, timeout time.Duration) *Tracker {
	var t *Tracker
	t = New("integrated", interval, timeout, func(ctx context.Context) error {
		ids, err := store.MarketsWithOpenPositions()
		if err != nil {
			return err
		}
		for _, marketID := range ids {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			odds := client.FetchOdds(ctx, marketID)
			if _, err := store.UpdateMarketOdds(marketID, odds, t.Now()); err != nil {
				log.Error().Err(err).Str("market", marketID).Msg("Odds update failed")
			}
		}

		closed, err := store.ManagePositions(policy, t.Now())
		if err != nil {
			return err
		}
		if closed > 0 {
			log.Info().Int("closed", closed).Msg("🚪 Integrated sweep closed positions")
		}
		return nil
	})
	return t
}

// NewAnalysisTracker drives the orchestrator's bet-placement cycles.
func NewAnalysisTracker(orch *analyst.Orchestrator, interval, timeout time.Duration) *Tracker {
	return New("analysis", interval, timeout, func(ctx context.Context) error {
		_, err := orch.RunCycle(ctx)
		return err
	})
}
