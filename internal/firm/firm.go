// Package firm implements a single firm's daily decision core: the labor and
// capacity model, the outcome classifier feeding an adaptive pricing/supply
// policy, the asset planner, and the hiring, firing and purchasing protocol
// it runs against other agents.
//
// A firm's record is guarded by a mutex that is never held across a call to
// another agent. Those calls are the points where other agents may act on
// shared resources (workers, suppliers) before the firm resumes.
package firm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/talgya/firmsim/internal/entropy"
	"github.com/talgya/firmsim/internal/optimize"
)

var (
	// ErrUnclassifiedOutcome means the firm's end-of-day figures matched no
	// outcome rule. It signals corrupted state and aborts the step.
	ErrUnclassifiedOutcome = errors.New("unclassified outcome")
	// ErrNoMaterials is returned when a labor-only firm is asked to buy materials.
	ErrNoMaterials = errors.New("firm does not use materials")
)

// Worker is an employable agent. Every method is a request to that agent.
type Worker interface {
	ID() string
	Employer(ctx context.Context) (Employer, error)
	Wage(ctx context.Context) (float64, error)
	Hire(ctx context.Context, employer Employer, wage float64) error
	Quit(ctx context.Context) error
}

// Employer is anything that can be told to let a worker go.
type Employer interface {
	ID() string
	Fire(ctx context.Context, w Worker) error
}

// Supplier sells a single good.
type Supplier interface {
	Quote(ctx context.Context) (price float64, supply int, err error)
	// Sell hands over up to qty units and reports how many were sold.
	Sell(ctx context.Context, qty int) (int, error)
}

// Policy picks one of the firm's actions for the state just entered.
type Policy interface {
	ChooseAction(state int) int
}

// World is the read-only market snapshot for one step.
type World struct {
	MeanWage           float64 `json:"mean_wage"`
	MeanEquipmentPrice float64 `json:"mean_equipment_price"`
}

// Params are the firm's fixed cost and behaviour parameters.
type Params struct {
	LaborCostPerGood    float64 `yaml:"labor_cost_per_good" json:"labor_cost_per_good"`
	MaterialCostPerGood int     `yaml:"material_cost_per_good" json:"material_cost_per_good"`
	LaborPerEquipment   float64 `yaml:"labor_per_equipment" json:"labor_per_equipment"`
	LaborPerWorker      float64 `yaml:"labor_per_worker" json:"labor_per_worker"`
	SupplyIncrement     int     `yaml:"supply_increment" json:"supply_increment"`
	ProfitIncrement     float64 `yaml:"profit_increment" json:"profit_increment"`
	WageIncrement       float64 `yaml:"wage_increment" json:"wage_increment"`
}

// Validate rejects parameter sets the decision core cannot work with.
func (p Params) Validate() error {
	switch {
	case p.LaborCostPerGood <= 0:
		return fmt.Errorf("labor_cost_per_good must be positive, got %v", p.LaborCostPerGood)
	case p.MaterialCostPerGood < 0:
		return fmt.Errorf("material_cost_per_good must be non-negative, got %d", p.MaterialCostPerGood)
	case p.LaborPerWorker < 0 || p.LaborPerEquipment < 0:
		return fmt.Errorf("labor per worker/equipment must be non-negative")
	case p.LaborPerWorker+p.LaborPerEquipment <= 0:
		return fmt.Errorf("workers and equipment produce no labor")
	case p.SupplyIncrement < 0 || p.ProfitIncrement < 0 || p.WageIncrement < 0:
		return fmt.Errorf("increments must be non-negative")
	}
	return nil
}

// State is the firm's mutable record.
type State struct {
	Cash             float64 `json:"cash"`
	Revenue          float64 `json:"revenue"`
	Costs            float64 `json:"costs"`
	Price            float64 `json:"price"`
	Profit           float64 `json:"profit"`
	PrevProfit       float64 `json:"prev_profit"`
	DesiredSupply    int     `json:"desired_supply"`
	DesiredEquipment int     `json:"desired_equipment"`
	WorkerChange     int     `json:"worker_change"` // >0 vacancies, <0 must fire
	Leftover         int     `json:"leftover"`      // Unsold supply from the previous day
	Supply           int     `json:"supply"`
	NSold            int     `json:"n_sold"`
	ProfitMargin     float64 `json:"profit_margin"`
	Equipment        int     `json:"equipment"`
	Materials        int     `json:"materials"`
}

// InitialState is the record a new firm starts with.
func InitialState() State {
	return State{
		DesiredSupply: 1,
		Cash:          50000,
		ProfitMargin:  1,
	}
}

// Kind selects a production technology preset.
type Kind string

const (
	KindConsumerGood     Kind = "consumer_good"
	KindCapitalEquipment Kind = "capital_equipment"
	KindRawMaterial      Kind = "raw_material"
)

// Technology returns the capacity model for the kind.
func (k Kind) Technology() (Technology, error) {
	switch k {
	case KindConsumerGood, KindCapitalEquipment:
		return MaterialBound{}, nil
	case KindRawMaterial:
		return LaborOnly{}, nil
	default:
		return nil, fmt.Errorf("unknown firm kind %q", k)
	}
}

// Firm is one producer agent.
type Firm struct {
	id     string
	kind   Kind
	params Params
	tech   Technology

	policy  Policy
	planner optimize.Minimizer
	maxIter int
	rng     entropy.Source

	// self is handed to workers as their employer. Defaults to the firm.
	self Employer

	mu      sync.Mutex
	state   State
	workers []Worker
}

// Option configures a Firm.
type Option func(*Firm)

// WithPlanner replaces the asset optimizer.
func WithPlanner(m optimize.Minimizer, maxIter int) Option {
	return func(f *Firm) {
		f.planner = m
		if maxIter > 0 {
			f.maxIter = maxIter
		}
	}
}

// WithRand sets the source used for random applicant and layoff choices.
func WithRand(rng entropy.Source) Option {
	return func(f *Firm) { f.rng = rng }
}

// WithState overrides the initial record.
func WithState(s State) Option {
	return func(f *Firm) { f.state = s }
}

// DefaultMaxIter bounds the asset optimizer.
const DefaultMaxIter = 200

// New creates a firm of the given kind.
func New(id string, kind Kind, params Params, policy Policy, opts ...Option) (*Firm, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("firm %s: %w", id, err)
	}
	tech, err := kind.Technology()
	if err != nil {
		return nil, fmt.Errorf("firm %s: %w", id, err)
	}
	if tech.UsesMaterials() && params.MaterialCostPerGood <= 0 {
		return nil, fmt.Errorf("firm %s: %s requires a positive material_cost_per_good", id, kind)
	}
	if policy == nil {
		return nil, fmt.Errorf("firm %s: nil policy", id)
	}

	f := &Firm{
		id:      id,
		kind:    kind,
		params:  params,
		tech:    tech,
		policy:  policy,
		planner: optimize.PenaltyNelderMead{},
		maxIter: DefaultMaxIter,
		rng:     entropy.Crypto{},
		state:   InitialState(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.self = f
	return f, nil
}

// ID returns the firm's identity.
func (f *Firm) ID() string { return f.id }

// Kind returns the firm's technology preset.
func (f *Firm) Kind() Kind { return f.kind }

// Params returns the firm's parameters.
func (f *Firm) Params() Params { return f.params }

// UsesMaterials reports whether production consumes materials.
func (f *Firm) UsesMaterials() bool { return f.tech.UsesMaterials() }

// BindEmployer sets the employer reference handed to hired workers, typically
// a message-based endpoint that forwards Fire requests back to this firm.
func (f *Firm) BindEmployer(e Employer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.self = e
}

// Snapshot copies the current record.
func (f *Firm) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Restore replaces the record, e.g. from a checkpoint.
func (f *Firm) Restore(s State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}

// Workers returns a copy of the roster.
func (f *Firm) Workers() []Worker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Worker(nil), f.workers...)
}

// Headcount returns the roster size.
func (f *Firm) Headcount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.workers)
}

// Employs reports whether w is on the roster.
func (f *Firm) Employs(w Worker) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.indexOf(w.ID()) >= 0
}

// Forget drops w from the roster without telling it, for a worker that has
// already moved to another employer. It reports whether w was listed.
func (f *Firm) Forget(w Worker) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexOf(w.ID())
	if i < 0 {
		return false
	}
	f.workers = append(f.workers[:i], f.workers[i+1:]...)
	return true
}

// indexOf requires f.mu.
func (f *Firm) indexOf(id string) int {
	for i, w := range f.workers {
		if w.ID() == id {
			return i
		}
	}
	return -1
}

// pay requires f.mu.
func (f *Firm) pay(cost float64) {
	f.state.Cash -= cost
	f.state.Costs += cost
	f.state.Profit = f.state.Revenue - f.state.Costs
}
