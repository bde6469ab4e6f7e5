package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/agentarena/internal/database"
	"github.com/web3guy0/agentarena/internal/ledger"
)

func TestCalculateBetAmountBands(t *testing.T) {
	policy := ledger.DefaultSizing(decimal.NewFromInt(10))
	balance := decimal.NewFromInt(1000) // ceiling = min(5, 50) = 5

	cases := []struct {
		confidence float64
		want       string
	}{
		{0.54, "0"},
		{0.55, "1"}, // 5*0.2 = 1
		{0.60, "1"},
		{0.65, "2"}, // 5*0.4
		{0.75, "3"}, // 5*0.6
		{0.85, "4"}, // 5*0.8
		{0.99, "4"},
	}
	for _, tc := range cases {
		got := policy.CalculateBetAmount(tc.confidence, balance)
		require.True(t, got.Equal(decimal.RequireFromString(tc.want)),
			"confidence %.2f: want %s got %s", tc.confidence, tc.want, got)
	}
}

func TestCalculateBetAmountMonotonicInConfidence(t *testing.T) {
	policy := ledger.DefaultSizing(decimal.NewFromInt(10))
	balance := decimal.NewFromInt(500)

	prev := decimal.Zero
	for c := 0.50; c <= 0.98; c += 0.01 {
		bet := policy.CalculateBetAmount(c, balance)
		require.True(t, bet.GreaterThanOrEqual(prev), "bet shrank at confidence %.2f", c)
		prev = bet
	}
}

func TestCalculateBetAmountSmallBankroll(t *testing.T) {
	policy := ledger.DefaultSizing(decimal.NewFromInt(10))

	// $40 balance: ceiling = 40*0.05 = 2, band 0.8 -> 1.6
	got := policy.CalculateBetAmount(0.90, decimal.NewFromInt(40))
	require.True(t, got.Equal(decimal.RequireFromString("1.6")), "got %s", got)

	// Band output below MinBet gets floored to $1.
	got = policy.CalculateBetAmount(0.56, decimal.NewFromInt(40))
	require.True(t, got.Equal(decimal.NewFromInt(1)), "got %s", got)
}

func TestCalculateBetAmountRespectsFloor(t *testing.T) {
	policy := ledger.DefaultSizing(decimal.NewFromInt(10))

	// Headroom below MinBet: no bet at all.
	require.True(t, policy.CalculateBetAmount(0.90, decimal.NewFromInt(10)).IsZero())
	require.True(t, policy.CalculateBetAmount(0.90, decimal.RequireFromString("10.5")).IsZero())

	// $11.50 balance: headroom $1.50 caps the floored bet.
	got := policy.CalculateBetAmount(0.90, decimal.RequireFromString("11.5"))
	require.True(t, got.Equal(decimal.NewFromInt(1)), "got %s", got)
}

func TestAdjustForPsychology(t *testing.T) {
	policy := ledger.DefaultSizing(decimal.NewFromInt(10))
	base := decimal.NewFromInt(3)

	neutral := &database.AgentBalance{}
	require.True(t, policy.AdjustForPsychology(base, neutral).Equal(base))

	hot := &database.AgentBalance{CurrentStreak: 3}
	require.True(t, policy.AdjustForPsychology(base, hot).Equal(decimal.RequireFromString("3.6")))

	cold := &database.AgentBalance{CurrentStreak: -3}
	require.True(t, policy.AdjustForPsychology(base, cold).Equal(decimal.RequireFromString("2.4")))

	drawdown := &database.AgentBalance{ROI: decimal.NewFromInt(-30)}
	require.True(t, policy.AdjustForPsychology(base, drawdown).Equal(decimal.RequireFromString("2.1")))

	// Hot streak and big ROI together still clamp at MaxBet.
	flying := &database.AgentBalance{CurrentStreak: 5, ROI: decimal.NewFromInt(40)}
	require.True(t, policy.AdjustForPsychology(decimal.NewFromInt(4), flying).Equal(decimal.NewFromInt(5)))

	// Cold and underwater never drops below MinBet.
	wrecked := &database.AgentBalance{CurrentStreak: -6, ROI: decimal.NewFromInt(-50)}
	require.True(t, policy.AdjustForPsychology(decimal.NewFromInt(1), wrecked).Equal(decimal.NewFromInt(1)))

	require.True(t, policy.AdjustForPsychology(decimal.Zero, neutral).IsZero())
}
