package firm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
)

// Fire removes w from the roster and tells it it has been let go. Firing a
// worker who is not on the roster does nothing.
func (f *Firm) Fire(ctx context.Context, w Worker) error {
	f.mu.Lock()
	i := f.indexOf(w.ID())
	if i < 0 {
		f.mu.Unlock()
		return nil
	}
	f.workers = append(f.workers[:i], f.workers[i+1:]...)
	f.mu.Unlock()

	if err := w.Quit(ctx); err != nil {
		return fmt.Errorf("fire %s: %w", w.ID(), err)
	}
	return nil
}

// Hire fills open vacancies from applicants at the offered wage. A worker
// employed elsewhere is fired by its employer before joining, so the
// employment relation is handed over rather than shared. Applicants already
// on this roster are passed over. If vacancies remain once applicants run
// out, the returned wage is raised by one increment for the next round.
//
// Checking an applicant's employer and instructing the hire are separate
// requests. Another firm can claim the worker in between, in which case both
// rosters list it until one of them fires it.
func (f *Firm) Hire(ctx context.Context, applicants []Worker, wage float64) (hired []Worker, remaining int, nextWage float64, err error) {
	pool := append([]Worker(nil), applicants...)

	for {
		f.mu.Lock()
		vacancies := f.state.WorkerChange
		self := f.self
		if vacancies <= 0 || len(pool) == 0 {
			f.mu.Unlock()
			break
		}
		i := f.rng.Intn(len(pool))
		w := pool[i]
		pool = append(pool[:i], pool[i+1:]...)
		onRoster := f.indexOf(w.ID()) >= 0
		f.mu.Unlock()

		if onRoster {
			continue
		}

		employer, err := w.Employer(ctx)
		if err != nil {
			return hired, vacancies, wage, fmt.Errorf("hire: query employer of %s: %w", w.ID(), err)
		}
		if employer != nil && employer.ID() != f.id {
			if err := employer.Fire(ctx, w); err != nil {
				return hired, vacancies, wage, fmt.Errorf("hire: %s firing %s: %w", employer.ID(), w.ID(), err)
			}
		}
		if err := w.Hire(ctx, self, wage); err != nil {
			return hired, vacancies, wage, fmt.Errorf("hire %s: %w", w.ID(), err)
		}

		f.mu.Lock()
		if f.indexOf(w.ID()) < 0 {
			f.workers = append(f.workers, w)
		}
		f.state.WorkerChange--
		f.mu.Unlock()

		hired = append(hired, w)
		slog.Debug("hired worker", "firm", f.id, "worker", w.ID(), "wage", wage)
	}

	f.mu.Lock()
	remaining = f.state.WorkerChange
	f.mu.Unlock()

	nextWage = wage
	if remaining > 0 {
		nextWage += f.params.WageIncrement
	}
	return hired, remaining, nextWage, nil
}

// Shutdown lets every worker go. Calling it again finds an empty roster and
// sends nothing.
func (f *Firm) Shutdown(ctx context.Context) error {
	for _, w := range f.Workers() {
		if err := f.Fire(ctx, w); err != nil {
			return fmt.Errorf("shutdown %s: %w", f.id, err)
		}
	}
	return nil
}

// PurchaseEquipment buys toward the desired equipment count. It returns the
// units still missing and the units bought.
func (f *Firm) PurchaseEquipment(ctx context.Context, s Supplier) (shortfall, purchased int, err error) {
	price, supply, err := s.Quote(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("purchase equipment: quote: %w", err)
	}

	f.mu.Lock()
	qty := f.affordable(f.state.DesiredEquipment-f.state.Equipment, price, supply)
	f.mu.Unlock()

	sold, err := s.Sell(ctx, qty)
	if err != nil {
		return 0, 0, fmt.Errorf("purchase equipment: sell %d: %w", qty, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Equipment += sold
	f.pay(float64(sold) * price)
	return f.state.DesiredEquipment - f.state.Equipment, sold, nil
}

// PurchaseMaterials first trims the supply target to what the roster could
// make with the desired equipment, then buys the materials that target needs.
// It returns the materials still missing and the units bought.
func (f *Firm) PurchaseMaterials(ctx context.Context, s Supplier) (shortfall, purchased int, err error) {
	if !f.tech.UsesMaterials() {
		return 0, 0, ErrNoMaterials
	}

	price, supply, err := s.Quote(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("purchase materials: quote: %w", err)
	}

	f.mu.Lock()
	capacity := f.params.LaborCapacity(f.params.TotalLabor(len(f.workers), f.state.DesiredEquipment))
	f.state.DesiredSupply = min(capacity, f.state.DesiredSupply)
	required := f.params.MaterialCostPerGood * f.state.DesiredSupply
	qty := f.affordable(required-f.state.Materials, price, supply)
	f.mu.Unlock()

	sold, err := s.Sell(ctx, qty)
	if err != nil {
		return 0, 0, fmt.Errorf("purchase materials: sell %d: %w", qty, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Materials += sold
	f.pay(float64(sold) * price)
	return required - f.state.Materials, sold, nil
}

// affordable is how many of the missing units to buy given cash, price and
// the supplier's stock. Requires f.mu.
func (f *Firm) affordable(missing int, price float64, supply int) int {
	var n int
	total := float64(missing) * price
	if total == 0 {
		n = max(0, missing)
	} else {
		budget := math.Max(0, math.Min(f.state.Cash, total))
		if price > 0 {
			n = int(math.Floor(budget / price))
		}
	}
	return max(0, min(supply, n))
}
