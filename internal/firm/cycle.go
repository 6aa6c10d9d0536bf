package firm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
)

// SetProductionTarget runs the start of a firm's day: it scores yesterday,
// lets the policy adjust supply and margin, resets the daily figures, plans
// workforce and equipment against the world averages, and lays off surplus
// workers immediately. It returns the open vacancies and the wage to offer;
// filling them is left to the hiring round that drives the labor market.
func (f *Firm) SetProductionTarget(ctx context.Context, world World) (vacancies int, wage float64, err error) {
	f.mu.Lock()

	// Assess yesterday against the day before.
	dayBefore := f.state.PrevProfit
	f.state.PrevProfit = f.state.Profit
	f.state.Leftover = f.state.Supply

	outcome, err := Classify(f.state.NSold, f.state.Leftover, f.state.Profit, dayBefore)
	if err != nil {
		f.mu.Unlock()
		return 0, 0, fmt.Errorf("firm %s: %w", f.id, err)
	}

	id := f.policy.ChooseAction(int(outcome))
	actions := f.params.Actions()
	if id < 0 || id >= len(actions) {
		f.mu.Unlock()
		return 0, 0, fmt.Errorf("firm %s: policy chose unknown action %d", f.id, id)
	}
	action := actions[id]
	f.state.DesiredSupply = max(1, f.state.DesiredSupply+action.Supply)
	f.state.ProfitMargin += action.ProfitMargin

	// Supply and unused materials expire; daily figures reset.
	f.state.Supply = 0
	f.state.Materials = 0
	f.state.NSold = 0
	f.state.Revenue = 0
	f.state.Costs = 0

	requiredLabor := float64(f.state.DesiredSupply) * f.params.LaborCostPerGood
	headcount := len(f.workers)
	equipment := f.state.Equipment
	f.mu.Unlock()

	plan := f.AssessAssets(requiredLabor, world.MeanWage, world.MeanEquipmentPrice)
	plan.Workers = max(plan.Workers, 0)

	f.mu.Lock()
	f.state.WorkerChange = plan.Workers - headcount
	f.state.DesiredEquipment = equipment + max(0, plan.Equipment-equipment)
	slog.Debug("production target",
		"firm", f.id,
		"outcome", outcome,
		"action", id,
		"desired_supply", f.state.DesiredSupply,
		"profit_margin", f.state.ProfitMargin,
		"workers", plan.Workers,
		"wage", plan.Wage,
		"equipment", plan.Equipment,
	)

	for f.state.WorkerChange < 0 {
		if len(f.workers) == 0 {
			// Someone else took the rest of the roster while we were firing.
			f.state.WorkerChange = 0
			break
		}
		w := f.workers[f.rng.Intn(len(f.workers))]
		f.mu.Unlock()
		if err := f.Fire(ctx, w); err != nil {
			return 0, 0, fmt.Errorf("firm %s: lay off: %w", f.id, err)
		}
		f.mu.Lock()
		f.state.WorkerChange++
	}
	vacancies = f.state.WorkerChange
	f.mu.Unlock()

	return vacancies, plan.Wage, nil
}

// Produce makes as much of the desired supply as capacity allows, pays the
// roster's wages, and prices each unit at cost plus margin.
func (f *Firm) Produce(ctx context.Context) (supply int, price float64, err error) {
	f.mu.Lock()
	f.state.Supply = max(0, min(f.state.DesiredSupply, f.capacity()))
	roster := append([]Worker(nil), f.workers...)
	f.mu.Unlock()

	var wages float64
	for _, w := range roster {
		wage, err := w.Wage(ctx)
		if err != nil {
			return 0, 0, fmt.Errorf("firm %s: wage of %s: %w", f.id, w.ID(), err)
		}
		wages += wage
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pay(wages)
	costPerUnit := f.state.Costs / float64(max(f.state.Supply, 1))
	f.state.Price = math.Max(0, costPerUnit+f.state.ProfitMargin)
	return f.state.Supply, f.state.Price, nil
}

// Sell fills up to quantity units of demand from today's supply.
func (f *Firm) Sell(quantity int) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := max(0, min(f.state.Supply, quantity))
	revenue := f.state.Price * float64(n)
	f.state.Supply -= n
	f.state.NSold += n
	f.state.Revenue += revenue
	f.state.Cash += revenue
	f.state.Profit = f.state.Revenue - f.state.Costs
	return n
}
