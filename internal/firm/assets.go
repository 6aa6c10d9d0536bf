package firm

import (
	"log/slog"
	"math"
	"sort"

	"github.com/talgya/firmsim/internal/optimize"
)

// snapTolerance absorbs the solver's overshoot past an integer optimum
// before the plan is rounded up.
const snapTolerance = 1e-3

// Plan is the target workforce, wage offer and equipment count.
type Plan struct {
	Workers   int
	Wage      float64
	Equipment int
}

// AssessAssets finds the cheapest mix of workers, wage and equipment that
// provides requiredLabor, never offering more than one wage increment below
// the going rate and never less than zero. The rounded plan always meets the
// labor requirement.
func (f *Firm) AssessAssets(requiredLabor, meanWage, meanEquipPrice float64) Plan {
	p := f.params
	wageFloor := math.Max(0, meanWage-p.WageIncrement)
	price := math.Max(0, meanEquipPrice)

	labor := func(x []float64) float64 {
		nw, ne := x[0], x[2]
		return nw*p.LaborPerWorker + math.Min(nw*p.LaborPerEquipment, ne*p.LaborPerEquipment)
	}
	problem := optimize.Problem{
		// Bounded below by zero; the constraints price any excursion.
		Objective: func(x []float64) float64 {
			return math.Max(0, x[0])*math.Max(wageFloor, x[1]) + math.Max(0, x[2])*price
		},
		Constraints: []optimize.Constraint{
			func(x []float64) float64 { return labor(x) - requiredLabor },
			func(x []float64) float64 { return x[0] },
			func(x []float64) float64 { return x[1] - wageFloor },
			func(x []float64) float64 { return x[2] },
		},
		X0:      f.initialGuess(requiredLabor, wageFloor),
		MaxIter: f.maxIter,
	}

	res, err := f.planner.Minimize(problem)
	x := res.X
	if len(x) != 3 {
		slog.Warn("asset optimizer failed, using initial guess", "firm", f.id, "error", err)
		x = problem.X0
	} else if err != nil || !res.Feasible {
		slog.Debug("asset optimizer inexact",
			"firm", f.id,
			"error", err,
			"feasible", res.Feasible,
			"iterations", res.Iterations,
			"cost", res.F,
		)
	}

	plan := Plan{
		Workers:   ceilInt(x[0] - snapTolerance),
		Wage:      math.Ceil(x[1] - snapTolerance),
		Equipment: ceilInt(x[2] - snapTolerance),
	}
	if plan.Equipment < 0 {
		plan.Equipment = 0
	}
	// Max also turns a rounded -0 into +0.
	plan.Wage = math.Max(math.Ceil(wageFloor), plan.Wage)
	if math.IsNaN(plan.Wage) {
		plan.Wage = math.Ceil(wageFloor)
	}
	return trimPlan(p, repairPlan(p, plan, requiredLabor), requiredLabor)
}

// initialGuess staffs the requirement with workers only at the wage floor.
func (f *Firm) initialGuess(requiredLabor, wageFloor float64) []float64 {
	workers := 1.0
	if f.params.LaborPerWorker > 0 {
		workers = math.Max(1, requiredLabor/f.params.LaborPerWorker)
	}
	return []float64{workers, math.Max(0, wageFloor), 0}
}

// repairPlan adds the fewest workers needed for the rounded plan to cover
// requiredLabor. A negative worker count from the solver is replaced here,
// but callers still clamp before acting on the plan.
func repairPlan(p Params, plan Plan, requiredLabor float64) Plan {
	if plan.Workers >= 0 && p.TotalLabor(plan.Workers, plan.Equipment) >= requiredLabor {
		return plan
	}

	paired := p.LaborPerWorker + p.LaborPerEquipment
	var need int
	switch {
	case float64(plan.Equipment)*paired >= requiredLabor:
		// Enough equipment; staff it.
		need = ceilInt(requiredLabor / paired)
	case p.LaborPerWorker > 0:
		need = ceilInt((requiredLabor - float64(plan.Equipment)*p.LaborPerEquipment) / p.LaborPerWorker)
	default:
		// Workers only produce labor through equipment: add pairs.
		need = ceilInt(requiredLabor / paired)
		plan.Equipment = max(plan.Equipment, need)
	}
	plan.Workers = max(plan.Workers, need)
	return plan
}

// trimPlan drops workers the equipment does not need, then equipment the
// remaining workers cannot operate or do not need. The plan must already
// cover requiredLabor.
func trimPlan(p Params, plan Plan, requiredLabor float64) Plan {
	if plan.Workers < 0 || p.TotalLabor(plan.Workers, plan.Equipment) < requiredLabor {
		return plan
	}
	plan.Workers = sort.Search(plan.Workers, func(n int) bool {
		return p.TotalLabor(n, plan.Equipment) >= requiredLabor
	})
	plan.Equipment = sort.Search(plan.Equipment, func(n int) bool {
		return p.TotalLabor(plan.Workers, n) >= requiredLabor
	})
	return plan
}

func ceilInt(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	if math.IsInf(v, 0) || math.Abs(v) > math.MaxInt32 {
		if v < 0 {
			return -math.MaxInt32
		}
		return math.MaxInt32
	}
	return int(math.Ceil(v))
}
