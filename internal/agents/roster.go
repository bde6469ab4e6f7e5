// Package agents defines the fixed roster of competing AI personas.
package agents

// Agent is one competitor in the arena.
type Agent struct {
	ID    string
	Name  string
	Style string // short description fed to the analyst
}

// Roster returns the fixed competition lineup.
func Roster() []Agent {
	return []Agent{
		{ID: "oracle", Name: "The Oracle", Style: "patient value hunter, only bets with strong conviction"},
		{ID: "degen", Name: "Degen Dave", Style: "momentum chaser, loves longshots and fast flips"},
		{ID: "quant", Name: "Quantessa", Style: "price-driven, trusts the market's own probabilities"},
		{ID: "contrarian", Name: "Fade King", Style: "fades the crowd whenever a side looks overbought"},
		{ID: "newsjunkie", Name: "Wire Rat", Style: "reacts to fresh markets before others notice them"},
		{ID: "steady", Name: "Slow Eddy", Style: "small consistent bets, hates drawdowns"},
	}
}

// ByID returns the roster entry for an agent id.
func ByID(id string) (Agent, bool) {
	for _, a := range Roster() {
		if a.ID == id {
			return a, true
		}
	}
	return Agent{}, false
}
