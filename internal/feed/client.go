// Package feed adapts the venue's market-data API into odds the arena can
// trade against. Fetches are best-effort: a dead feed degrades to neutral
// 50/50 odds instead of stalling the tracking loops.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/agentarena/internal/markets"
	"github.com/web3guy0/agentarena/internal/positions"
)

// Client fetches markets and prices over the gamma-style HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a feed client with a fixed network timeout so a wedged
// venue can never block a tracking cycle.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// gammaMarket is the venue's market shape. Prices arrive as a JSON-encoded
// string array inside the JSON document.
type gammaMarket struct {
	ID            string `json:"id"`
	Question      string `json:"question"`
	Description   string `json:"description"`
	OutcomePrices string `json:"outcomePrices"`
	Volume        string `json:"volume"`
	Volume24hr    string `json:"volume24hr"`
	Liquidity     string `json:"liquidity"`
	EndDate       string `json:"endDate"`
	Active        bool   `json:"active"`
	Closed        bool   `json:"closed"`
	Archived      bool   `json:"archived"`
}

// FetchOdds returns the current yes/no prices for a market. It never fails:
// any transport, decode or shape problem falls back to neutral 0.5/0.5 odds,
// because a stale neutral mark beats halting mark-to-market for everything
// else in the cycle.
func (c *Client) FetchOdds(ctx context.Context, marketID string) positions.Odds {
	neutral := positions.Odds{
		YesPrice: decimal.NewFromFloat(0.5),
		NoPrice:  decimal.NewFromFloat(0.5),
	}

	url := fmt.Sprintf("%s/markets/%s", c.baseURL, marketID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Debug().Err(err).Str("market", marketID).Msg("Odds request build failed, using neutral")
		return neutral
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("market", marketID).Msg("Odds fetch failed, using neutral")
		return neutral
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Debug().Int("status", resp.StatusCode).Str("market", marketID).Msg("Odds fetch non-200, using neutral")
		return neutral
	}

	var gm gammaMarket
	if err := json.NewDecoder(resp.Body).Decode(&gm); err != nil {
		log.Debug().Err(err).Str("market", marketID).Msg("Odds parse failed, using neutral")
		return neutral
	}

	odds, ok := parseOutcomePrices(gm.OutcomePrices)
	if !ok {
		return neutral
	}
	return odds
}

// FetchMarkets pulls the active market list for the cache refresher.
func (c *Client) FetchMarkets(ctx context.Context, limit int) ([]markets.Incoming, error) {
	url := fmt.Sprintf("%s/markets?active=true&archived=false&limit=%d&order=volume&ascending=false", c.baseURL, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: fetch markets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed: fetch markets: status %d", resp.StatusCode)
	}

	var raw []gammaMarket
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("feed: parse markets: %w", err)
	}

	incoming := make([]markets.Incoming, 0, len(raw))
	for _, gm := range raw {
		odds, ok := parseOutcomePrices(gm.OutcomePrices)
		if !ok {
			continue
		}
		in := markets.Incoming{
			ID:          gm.ID,
			Question:    gm.Question,
			Description: gm.Description,
			YesPrice:    odds.YesPrice,
			NoPrice:     odds.NoPrice,
			Volume:      parseDecimal(gm.Volume),
			Volume24hr:  parseDecimal(gm.Volume24hr),
			Liquidity:   parseDecimal(gm.Liquidity),
			Active:      gm.Active && !gm.Closed,
			Resolved:    gm.Closed,
			Archived:    gm.Archived,
		}
		if t, err := time.Parse(time.RFC3339, gm.EndDate); err == nil {
			in.EndDate = t
		}
		incoming = append(incoming, in)
	}
	return incoming, nil
}

// parseOutcomePrices decodes the venue's nested price array. The no price is
// derived as the yes complement when the venue omits it; both are clamped to
// [0, 1].
func parseOutcomePrices(raw string) (positions.Odds, bool) {
	var prices []string
	if err := json.Unmarshal([]byte(raw), &prices); err != nil || len(prices) == 0 {
		return positions.Odds{}, false
	}

	yes := clampPrice(parseDecimal(prices[0]))
	var no decimal.Decimal
	if len(prices) > 1 {
		no = clampPrice(parseDecimal(prices[1]))
	} else {
		no = decimal.NewFromInt(1).Sub(yes)
	}
	return positions.Odds{YesPrice: yes, NoPrice: no}, true
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func clampPrice(d decimal.Decimal) decimal.Decimal {
	if d.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	if d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return d
}
