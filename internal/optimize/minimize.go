// Package optimize provides a generic constrained minimizer: an objective,
// inequality constraints of the form g(x) >= 0, an initial guess and an
// iteration budget in, a real-valued solution vector out.
package optimize

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/optimize"
)

// Constraint is an inequality constraint satisfied when it returns a value >= 0.
type Constraint func(x []float64) float64

// Problem describes a bounded-iteration constrained minimization.
type Problem struct {
	Objective   func(x []float64) float64
	Constraints []Constraint
	X0          []float64
	MaxIter     int
}

// Result is the best point found.
type Result struct {
	X          []float64
	F          float64 // Objective value at X (without penalty)
	Iterations int
	Feasible   bool
}

// Minimizer solves constrained problems. Implementations may return a
// non-nil Result alongside an error when the search stopped early.
type Minimizer interface {
	Minimize(p Problem) (Result, error)
}

// ErrInvalidProblem is returned for problems without an objective or guess.
var ErrInvalidProblem = errors.New("invalid problem")

// DefaultPenaltyWeight scales squared constraint violations.
const DefaultPenaltyWeight = 1e4

// PenaltyNelderMead folds the constraints into a quadratic penalty and runs
// gonum's Nelder–Mead simplex search on the result.
type PenaltyNelderMead struct {
	Weight float64 // Penalty per squared unit of violation; 0 means DefaultPenaltyWeight
}

// Minimize implements Minimizer.
func (m PenaltyNelderMead) Minimize(p Problem) (Result, error) {
	if p.Objective == nil || len(p.X0) == 0 {
		return Result{}, ErrInvalidProblem
	}
	weight := m.Weight
	if weight <= 0 {
		weight = DefaultPenaltyWeight
	}

	penalized := func(x []float64) float64 {
		v := p.Objective(x)
		for _, c := range p.Constraints {
			if g := c(x); g < 0 {
				v += weight * g * g
			}
		}
		return v
	}

	settings := &optimize.Settings{}
	if p.MaxIter > 0 {
		settings.MajorIterations = p.MaxIter
	}

	x0 := make([]float64, len(p.X0))
	copy(x0, p.X0)

	res, err := optimize.Minimize(optimize.Problem{Func: penalized}, x0, settings, &optimize.NelderMead{})
	if res == nil {
		return Result{}, fmt.Errorf("nelder-mead: %w", err)
	}

	out := Result{
		X:          res.X,
		F:          p.Objective(res.X),
		Iterations: res.MajorIterations,
		Feasible:   Satisfies(p.Constraints, res.X, 0),
	}
	if err != nil {
		return out, fmt.Errorf("nelder-mead: %w", err)
	}
	return out, nil
}

// Satisfies reports whether x meets every constraint within tolerance tol.
func Satisfies(cs []Constraint, x []float64, tol float64) bool {
	for _, c := range cs {
		if c(x) < -tol {
			return false
		}
	}
	return true
}
