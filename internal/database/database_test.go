package database_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/agentarena/internal/database"
)

func newDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	return db
}

func seedBalance(t *testing.T, db *database.Database, agentID string, balance int64) {
	t.Helper()
	require.NoError(t, db.CreateBalanceIfAbsent(&database.AgentBalance{
		AgentID:        agentID,
		AgentName:      agentID,
		CurrentBalance: decimal.NewFromInt(balance),
		InitialBalance: decimal.NewFromInt(balance),
	}))
}

func TestDebitForBet(t *testing.T) {
	db := newDB(t)
	seedBalance(t, db, "oracle", 100)
	floor := decimal.NewFromInt(10)

	ok, err := db.DebitForBet("oracle", decimal.NewFromInt(30), floor)
	require.NoError(t, err)
	require.True(t, ok)

	bal, err := db.GetBalance("oracle")
	require.NoError(t, err)
	require.True(t, bal.CurrentBalance.Equal(decimal.NewFromInt(70)))
	require.True(t, bal.TotalWagered.Equal(decimal.NewFromInt(30)))
	require.Equal(t, 1, bal.PredictionCount)
}

func TestDebitForBetRefusals(t *testing.T) {
	db := newDB(t)
	seedBalance(t, db, "oracle", 100)
	floor := decimal.NewFromInt(10)

	cases := []struct {
		name   string
		agent  string
		amount decimal.Decimal
	}{
		{"zero amount", "oracle", decimal.Zero},
		{"negative amount", "oracle", decimal.NewFromInt(-5)},
		{"more than balance", "oracle", decimal.NewFromInt(200)},
		{"unknown agent", "ghost", decimal.NewFromInt(1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := db.DebitForBet(tc.agent, tc.amount, floor)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}

	bal, err := db.GetBalance("oracle")
	require.NoError(t, err)
	require.True(t, bal.CurrentBalance.Equal(decimal.NewFromInt(100)))
	require.Equal(t, 0, bal.PredictionCount)
}

func TestDebitForBetAtFloor(t *testing.T) {
	db := newDB(t)
	seedBalance(t, db, "oracle", 10)

	// Balance equals the floor: the condition requires strictly above.
	ok, err := db.DebitForBet("oracle", decimal.NewFromInt(1), decimal.NewFromInt(10))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCreateBalanceIfAbsentKeepsExisting(t *testing.T) {
	db := newDB(t)
	seedBalance(t, db, "oracle", 100)

	ok, err := db.DebitForBet("oracle", decimal.NewFromInt(40), decimal.NewFromInt(10))
	require.NoError(t, err)
	require.True(t, ok)

	seedBalance(t, db, "oracle", 100)
	bal, err := db.GetBalance("oracle")
	require.NoError(t, err)
	require.True(t, bal.CurrentBalance.Equal(decimal.NewFromInt(60)))
}

func TestIsNotFound(t *testing.T) {
	db := newDB(t)

	_, err := db.GetBalance("nobody")
	require.Error(t, err)
	require.True(t, database.IsNotFound(err))

	_, err = db.GetCachedMarket("nothing")
	require.Error(t, err)
	require.True(t, database.IsNotFound(err))
}
