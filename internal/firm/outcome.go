package firm

import "fmt"

// Outcome is the discrete summary of a day's results. Higher is better, and
// the value doubles as the policy reward.
type Outcome int

const (
	OutcomeNoSales        Outcome = 0 // Nothing sold
	OutcomeLeftover       Outcome = 1 // Sold something, stock left over
	OutcomeSoldOutLoss    Outcome = 2 // Sold out, profit <= 0
	OutcomeProfitDown     Outcome = 3 // Sold out, profitable, profit fell
	OutcomeProfitSteadyUp Outcome = 4 // Sold out, profitable, profit held or rose
)

// NumOutcomes is the size of the policy's state space.
const NumOutcomes = 5

// Classify maps a day's figures to an outcome. The first matching rule wins.
func Classify(nSold, leftover int, profit, prevProfit float64) (Outcome, error) {
	switch {
	case nSold == 0:
		return OutcomeNoSales, nil
	case nSold > 0 && leftover > 0:
		return OutcomeLeftover, nil
	case nSold > 0 && profit <= 0:
		return OutcomeSoldOutLoss, nil
	case nSold > 0 && profit-prevProfit < 0:
		return OutcomeProfitDown, nil
	case nSold > 0:
		return OutcomeProfitSteadyUp, nil
	}
	return 0, fmt.Errorf("%w: n_sold=%d leftover=%d profit=%v prev_profit=%v",
		ErrUnclassifiedOutcome, nSold, leftover, profit, prevProfit)
}

// Reward scores a state being entered.
func Reward(state int) float64 {
	return float64(state)
}

// Action adjusts the supply target and optionally the profit margin.
type Action struct {
	Supply       int
	ProfitMargin float64
}

// NumActions is the size of the policy's action space.
const NumActions = 6

// Actions lists the moves available from every state, indexed by action id.
func (p Params) Actions() [NumActions]Action {
	s, m := p.SupplyIncrement, p.ProfitIncrement
	return [NumActions]Action{
		{Supply: s},
		{Supply: -s},
		{Supply: s, ProfitMargin: m},
		{Supply: s, ProfitMargin: -m},
		{Supply: -s, ProfitMargin: m},
		{Supply: -s, ProfitMargin: -m},
	}
}

// StatesActions is the policy's state/action table: every action from every outcome.
func StatesActions() map[int][]int {
	ids := make([]int, NumActions)
	for i := range ids {
		ids[i] = i
	}
	out := make(map[int][]int, NumOutcomes)
	for s := 0; s < NumOutcomes; s++ {
		out[s] = ids
	}
	return out
}
