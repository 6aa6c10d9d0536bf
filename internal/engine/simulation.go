// Simulation ties the firms, the labor pool and the suppliers together and
// runs the daily cycle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/firmsim/internal/config"
	"github.com/talgya/firmsim/internal/firm"
	"github.com/talgya/firmsim/internal/learn"
	"github.com/talgya/firmsim/internal/market"
)

// Simulation holds every agent in the economy.
type Simulation struct {
	Firms     []*firm.Firm
	Policies  map[string]*learn.QLearner // firm ID → policy
	Workers   []market.WorkerRef
	Materials market.SupplierRef
	Equipment market.SupplierRef
	Demand    *DemandField

	cfg config.Config

	mu      sync.RWMutex
	lastDay uint64
	stats   SimStats
	reports map[string]FirmReport
}

// SimStats tracks aggregate economy statistics for the last completed day.
type SimStats struct {
	Day                uint64  `json:"day"`
	MeanWage           float64 `json:"mean_wage"`
	MeanEquipmentPrice float64 `json:"mean_equipment_price"`
	Employed           int     `json:"employed"`
	Unemployed         int     `json:"unemployed"`
	TotalSupply        int     `json:"total_supply"`
	TotalSold          int     `json:"total_sold"`
	TotalDemand        int     `json:"total_demand"`
	TotalCash          float64 `json:"total_cash"`
	TotalProfit        float64 `json:"total_profit"`
	Stalled            int     `json:"stalled"`        // Firms that skipped the day
	MaterialsSold      int     `json:"materials_sold"` // Supplier totals to date
	EquipmentSold      int     `json:"equipment_sold"`
}

// FirmReport is one firm's day.
type FirmReport struct {
	ID        string     `json:"id"`
	Kind      firm.Kind  `json:"kind"`
	Headcount int        `json:"headcount"`
	Vacancies int        `json:"vacancies"`
	Wage      float64    `json:"wage"` // Last offered wage
	Demand    int        `json:"demand"`
	Stalled   bool       `json:"stalled,omitempty"`
	State     firm.State `json:"state"`
}

// dayPlan is the scratch record for one firm while a day runs.
type dayPlan struct {
	f         *firm.Firm
	slot      int
	stalled   bool
	vacancies int
	wage      float64
	demand    int
}

// LastDay returns the most recently completed day.
func (s *Simulation) LastDay() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastDay
}

// Stats returns the aggregate statistics of the last completed day.
func (s *Simulation) Stats() SimStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Reports returns the per-firm reports of the last completed day, by firm ID.
func (s *Simulation) Reports() []FirmReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FirmReport, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetLastDay seeds the day counter from a checkpoint.
func (s *Simulation) SetLastDay(day uint64) {
	s.mu.Lock()
	s.lastDay = day
	s.mu.Unlock()
}

// World measures the averages firms plan against: the mean wage of employed
// workers (the reservation wage while nobody works) and the equipment price.
func (s *Simulation) World(ctx context.Context) (firm.World, error) {
	statuses, err := s.workerStatuses(ctx)
	if err != nil {
		return firm.World{}, err
	}
	w := firm.World{MeanWage: s.cfg.Workers.ReservationWage}
	var total float64
	var employed int
	for _, st := range statuses {
		if st.Employer != "" {
			total += st.Wage
			employed++
		}
	}
	if employed > 0 {
		w.MeanWage = total / float64(employed)
	}
	price, _, err := s.Equipment.Quote(ctx)
	if err != nil {
		return firm.World{}, fmt.Errorf("equipment quote: %w", err)
	}
	w.MeanEquipmentPrice = price
	return w, nil
}

// TickDay runs one day for every firm: set targets, hire, buy equipment and
// materials, produce, and sell against the day's demand. Firms act
// concurrently within each phase and phases run in order.
func (s *Simulation) TickDay(ctx context.Context, day uint64) error {
	if err := s.restock(ctx); err != nil {
		return err
	}
	world, err := s.World(ctx)
	if err != nil {
		return err
	}

	plans := make([]*dayPlan, len(s.Firms))
	for i, f := range s.Firms {
		plans[i] = &dayPlan{f: f, slot: i}
	}

	if err := s.eachFirm(ctx, plans, func(ctx context.Context, p *dayPlan) error {
		vacancies, wage, err := p.f.SetProductionTarget(ctx, world)
		if errors.Is(err, firm.ErrUnclassifiedOutcome) {
			// A corrupt record stalls the firm, not the economy.
			slog.Error("firm stalled", "firm", p.f.ID(), "day", day, "error", err)
			p.stalled = true
			return nil
		}
		p.vacancies, p.wage = vacancies, wage
		return err
	}); err != nil {
		return fmt.Errorf("production targets: %w", err)
	}

	if err := s.hiringRounds(ctx, plans); err != nil {
		return fmt.Errorf("hiring: %w", err)
	}
	if err := s.reconcileRosters(ctx); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	if err := s.eachFirm(ctx, plans, func(ctx context.Context, p *dayPlan) error {
		if _, _, err := p.f.PurchaseEquipment(ctx, s.Equipment); err != nil {
			return err
		}
		if p.f.UsesMaterials() {
			if _, _, err := p.f.PurchaseMaterials(ctx, s.Materials); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("purchasing: %w", err)
	}

	if err := s.eachFirm(ctx, plans, func(ctx context.Context, p *dayPlan) error {
		_, price, err := p.f.Produce(ctx)
		if err != nil {
			return err
		}
		p.demand = s.Demand.Quantity(day, p.slot, price)
		p.f.Sell(p.demand)
		return nil
	}); err != nil {
		return fmt.Errorf("production: %w", err)
	}

	return s.report(ctx, day, world, plans)
}

// eachFirm runs fn for every firm that has not stalled today, concurrently.
func (s *Simulation) eachFirm(ctx context.Context, plans []*dayPlan, fn func(context.Context, *dayPlan) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range plans {
		p := p
		if p.stalled {
			continue
		}
		g.Go(func() error {
			if err := fn(gctx, p); err != nil {
				return fmt.Errorf("firm %s: %w", p.f.ID(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// hiringRounds lets firms with vacancies recruit, raising their offer between
// rounds while positions stay open.
func (s *Simulation) hiringRounds(ctx context.Context, plans []*dayPlan) error {
	for round := 0; round < s.cfg.HiringRounds; round++ {
		round := round
		open := false
		for _, p := range plans {
			if !p.stalled && p.vacancies > 0 {
				open = true
				break
			}
		}
		if !open {
			return nil
		}

		statuses, err := s.workerStatuses(ctx)
		if err != nil {
			return err
		}
		if err := s.eachFirm(ctx, plans, func(ctx context.Context, p *dayPlan) error {
			if p.vacancies <= 0 {
				return nil
			}
			hired, remaining, next, err := p.f.Hire(ctx, s.applicants(statuses, p), p.wage)
			if err != nil {
				return err
			}
			if len(hired) > 0 {
				slog.Debug("hired", "firm", p.f.ID(), "count", len(hired), "wage", p.wage, "round", round)
			}
			p.vacancies, p.wage = remaining, next
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// reconcileRosters drops roster entries for workers who report a different
// employer. Two firms hiring the same applicant at once both list it, and
// the worker keeps only the later hire.
func (s *Simulation) reconcileRosters(ctx context.Context) error {
	statuses, err := s.workerStatuses(ctx)
	if err != nil {
		return err
	}
	employer := make(map[string]string, len(statuses))
	for _, st := range statuses {
		employer[st.ID] = st.Employer
	}
	for _, f := range s.Firms {
		for _, w := range f.Workers() {
			if e, ok := employer[w.ID()]; ok && e != f.ID() && f.Forget(w) {
				slog.Warn("roster reconciled", "firm", f.ID(), "worker", w.ID(), "employer", e)
			}
		}
	}
	return nil
}

// applicants is the pool a firm recruits from: the unemployed, plus workers
// elsewhere who earn less than the firm offers.
func (s *Simulation) applicants(statuses []market.WorkerStatus, p *dayPlan) []firm.Worker {
	var pool []firm.Worker
	for i, st := range statuses {
		switch {
		case st.Employer == "":
			pool = append(pool, s.Workers[i])
		case st.Employer != p.f.ID() && st.Wage < p.wage:
			pool = append(pool, s.Workers[i])
		}
	}
	return pool
}

func (s *Simulation) workerStatuses(ctx context.Context) ([]market.WorkerStatus, error) {
	out := make([]market.WorkerStatus, len(s.Workers))
	for i, w := range s.Workers {
		st, err := w.Status(ctx)
		if err != nil {
			return nil, fmt.Errorf("worker %s: %w", w.ID(), err)
		}
		out[i] = st
	}
	return out, nil
}

func (s *Simulation) restock(ctx context.Context) error {
	m, e := s.cfg.Suppliers.Materials, s.cfg.Suppliers.Equipment
	if err := s.Materials.Restock(ctx, m.DailyRestock, m.Price); err != nil {
		return fmt.Errorf("restock materials: %w", err)
	}
	if err := s.Equipment.Restock(ctx, e.DailyRestock, e.Price); err != nil {
		return fmt.Errorf("restock equipment: %w", err)
	}
	return nil
}

func (s *Simulation) report(ctx context.Context, day uint64, world firm.World, plans []*dayPlan) error {
	stats := SimStats{
		Day:                day,
		MeanWage:           world.MeanWage,
		MeanEquipmentPrice: world.MeanEquipmentPrice,
	}
	reports := make(map[string]FirmReport, len(plans))
	for _, p := range plans {
		st := p.f.Snapshot()
		reports[p.f.ID()] = FirmReport{
			ID:        p.f.ID(),
			Kind:      p.f.Kind(),
			Headcount: p.f.Headcount(),
			Vacancies: p.vacancies,
			Wage:      p.wage,
			Demand:    p.demand,
			Stalled:   p.stalled,
			State:     st,
		}
		if p.stalled {
			stats.Stalled++
		}
		stats.Employed += p.f.Headcount()
		stats.TotalSupply += st.Supply + st.NSold
		stats.TotalSold += st.NSold
		stats.TotalDemand += p.demand
		stats.TotalCash += st.Cash
		stats.TotalProfit += st.Profit
	}
	stats.Unemployed = max(0, len(s.Workers)-stats.Employed)

	materials, err := s.Materials.Status(ctx)
	if err != nil {
		return fmt.Errorf("materials status: %w", err)
	}
	equipment, err := s.Equipment.Status(ctx)
	if err != nil {
		return fmt.Errorf("equipment status: %w", err)
	}
	stats.MaterialsSold, stats.EquipmentSold = materials.Sold, equipment.Sold

	s.mu.Lock()
	s.lastDay = day
	s.stats = stats
	s.reports = reports
	s.mu.Unlock()

	slog.Info("daily report",
		"day", day,
		"time", SimTime(day),
		"employed", stats.Employed,
		"unemployed", stats.Unemployed,
		"mean_wage", fmt.Sprintf("%.2f", stats.MeanWage),
		"supply", stats.TotalSupply,
		"sold", stats.TotalSold,
		"demand", stats.TotalDemand,
		"total_cash", fmt.Sprintf("%.2f", stats.TotalCash),
		"total_profit", fmt.Sprintf("%.2f", stats.TotalProfit),
		"stalled", stats.Stalled,
		"materials_sold", stats.MaterialsSold,
		"equipment_sold", stats.EquipmentSold,
	)
	return ctx.Err()
}

// Shutdown lays off every firm's workers.
func (s *Simulation) Shutdown(ctx context.Context) error {
	var errs []error
	for _, f := range s.Firms {
		if err := f.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
