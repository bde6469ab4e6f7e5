package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/agentarena/internal/positions"
)

func TestFetchOddsParsesPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/markets/mkt-1", r.URL.Path)
		w.Write([]byte(`{"id":"mkt-1","question":"Will it happen?","outcomePrices":"[\"0.65\", \"0.35\"]"}`))
	}))
	defer srv.Close()

	odds := NewClient(srv.URL).FetchOdds(context.Background(), "mkt-1")
	require.True(t, odds.YesPrice.Equal(decimal.RequireFromString("0.65")))
	require.True(t, odds.NoPrice.Equal(decimal.RequireFromString("0.35")))
}

func TestFetchOddsNeutralFallbacks(t *testing.T) {
	neutral := positions.Odds{
		YesPrice: decimal.RequireFromString("0.5"),
		NoPrice:  decimal.RequireFromString("0.5"),
	}
	assertNeutral := func(t *testing.T, odds positions.Odds) {
		t.Helper()
		require.True(t, odds.YesPrice.Equal(neutral.YesPrice))
		require.True(t, odds.NoPrice.Equal(neutral.NoPrice))
	}

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()
		assertNeutral(t, NewClient(srv.URL).FetchOdds(context.Background(), "mkt-1"))
	})

	t.Run("garbage body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer srv.Close()
		assertNeutral(t, NewClient(srv.URL).FetchOdds(context.Background(), "mkt-1"))
	})

	t.Run("unreachable host", func(t *testing.T) {
		assertNeutral(t, NewClient("http://127.0.0.1:1").FetchOdds(context.Background(), "mkt-1"))
	})

	t.Run("empty price array", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"mkt-1","outcomePrices":"[]"}`))
		}))
		defer srv.Close()
		assertNeutral(t, NewClient(srv.URL).FetchOdds(context.Background(), "mkt-1"))
	})
}

func TestFetchMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/markets", r.URL.Path)
		require.Equal(t, "25", r.URL.Query().Get("limit"))
		w.Write([]byte(`[
			{"id":"mkt-1","question":"Will it happen?","outcomePrices":"[\"0.40\",\"0.60\"]",
			 "volume":"50000","volume24hr":"2000","liquidity":"8000",
			 "endDate":"2026-12-31T00:00:00Z","active":true,"closed":false,"archived":false},
			{"id":"mkt-2","question":"Done deal?","outcomePrices":"[\"0.97\",\"0.03\"]",
			 "volume":"900","active":false,"closed":true,"archived":false},
			{"id":"mkt-3","question":"Broken prices","outcomePrices":"oops","active":true}
		]`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL).FetchMarkets(context.Background(), 25)
	require.NoError(t, err)
	// The unparseable market drops out rather than poisoning the batch.
	require.Len(t, got, 2)

	require.Equal(t, "mkt-1", got[0].ID)
	require.True(t, got[0].YesPrice.Equal(decimal.RequireFromString("0.40")))
	require.True(t, got[0].Volume.Equal(decimal.NewFromInt(50000)))
	require.True(t, got[0].Active)
	require.False(t, got[0].Resolved)
	require.Equal(t, 2026, got[0].EndDate.Year())

	require.Equal(t, "mkt-2", got[1].ID)
	require.False(t, got[1].Active)
	require.True(t, got[1].Resolved)
}

func TestFetchMarketsErrorsOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).FetchMarkets(context.Background(), 10)
	require.Error(t, err)
}

func TestParseOutcomePrices(t *testing.T) {
	odds, ok := parseOutcomePrices(`["0.72", "0.28"]`)
	require.True(t, ok)
	require.True(t, odds.YesPrice.Equal(decimal.RequireFromString("0.72")))
	require.True(t, odds.NoPrice.Equal(decimal.RequireFromString("0.28")))

	// Single price: no side derived as the complement.
	odds, ok = parseOutcomePrices(`["0.30"]`)
	require.True(t, ok)
	require.True(t, odds.NoPrice.Equal(decimal.RequireFromString("0.7")))

	// Out-of-range prices clamp into [0, 1].
	odds, ok = parseOutcomePrices(`["1.7", "-0.2"]`)
	require.True(t, ok)
	require.True(t, odds.YesPrice.Equal(decimal.NewFromInt(1)))
	require.True(t, odds.NoPrice.Equal(decimal.Zero))

	_, ok = parseOutcomePrices("not json")
	require.False(t, ok)
	_, ok = parseOutcomePrices("[]")
	require.False(t, ok)
}
