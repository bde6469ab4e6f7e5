package markets

import (
	"github.com/shopspring/decimal"

	"github.com/web3guy0/agentarena/internal/positions"
)

var (
	outcomeHigh = decimal.NewFromFloat(0.9)
	outcomeLow  = decimal.NewFromFloat(0.1)
)

// DetermineMarketOutcome infers YES/NO from final prices: a side past 0.9
// with the other below 0.1 is decisive; otherwise the higher-priced side
// wins by majority. Tied prices are indeterminate and return "".
func DetermineMarketOutcome(yesPrice, noPrice decimal.Decimal) string {
	switch {
	case yesPrice.GreaterThan(outcomeHigh) && noPrice.LessThan(outcomeLow):
		return positions.SideYes
	case noPrice.GreaterThan(outcomeHigh) && yesPrice.LessThan(outcomeLow):
		return positions.SideNo
	case yesPrice.GreaterThan(noPrice):
		return positions.SideYes
	case noPrice.GreaterThan(yesPrice):
		return positions.SideNo
	default:
		return ""
	}
}
