package firm

import (
	"context"
	"sync"

	"github.com/talgya/firmsim/internal/entropy"
)

type fakeWorker struct {
	id string

	mu       sync.Mutex
	employer Employer
	wage     float64
	quits    int
	hires    int
}

func newWorker(id string) *fakeWorker { return &fakeWorker{id: id} }

func (w *fakeWorker) ID() string { return w.id }

func (w *fakeWorker) Employer(ctx context.Context) (Employer, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.employer, nil
}

func (w *fakeWorker) Wage(ctx context.Context) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.wage, nil
}

func (w *fakeWorker) Hire(ctx context.Context, e Employer, wage float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.employer, w.wage = e, wage
	w.hires++
	return nil
}

func (w *fakeWorker) Quit(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.employer, w.wage = nil, 0
	w.quits++
	return nil
}

func (w *fakeWorker) quitCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.quits
}

type fakeSupplier struct {
	price  float64
	supply int
	sold   int
}

func (s *fakeSupplier) Quote(ctx context.Context) (float64, int, error) {
	return s.price, s.supply, nil
}

func (s *fakeSupplier) Sell(ctx context.Context, qty int) (int, error) {
	n := min(qty, s.supply)
	s.supply -= n
	s.sold += n
	return n, nil
}

// fixedPolicy always picks the same action and records the states it saw.
type fixedPolicy struct {
	action int
	seen   []int
}

func (p *fixedPolicy) ChooseAction(state int) int {
	p.seen = append(p.seen, state)
	return p.action
}

func unitParams() Params {
	return Params{
		LaborCostPerGood:    1,
		MaterialCostPerGood: 1,
		LaborPerEquipment:   1,
		LaborPerWorker:      1,
		SupplyIncrement:     1,
		ProfitIncrement:     1,
		WageIncrement:       1,
	}
}

func newTestFirm(id string, kind Kind, params Params, opts ...Option) *Firm {
	opts = append([]Option{WithRand(entropy.NewSeeded(1))}, opts...)
	f, err := New(id, kind, params, &fixedPolicy{}, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

func workers(n int, prefix string) []Worker {
	out := make([]Worker, n)
	for i := range out {
		out[i] = newWorker(prefix + string(rune('a'+i)))
	}
	return out
}
