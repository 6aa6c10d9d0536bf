package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/talgya/firmsim/internal/actor"
	"github.com/talgya/firmsim/internal/config"
	"github.com/talgya/firmsim/internal/firm"
)

func TestSimTime(t *testing.T) {
	cases := map[uint64]string{
		0:   "Day 0, Year 1",
		1:   "Day 1, Year 1",
		360: "Day 360, Year 1",
		361: "Day 1, Year 2",
	}
	for day, want := range cases {
		if got := SimTime(day); got != want {
			t.Fatalf("SimTime(%d) = %q, want %q", day, got, want)
		}
	}
}

func TestEngineRunsMaxDays(t *testing.T) {
	e := NewEngine()
	e.Interval = 0
	e.MaxDays = 3
	var seen []uint64
	e.OnDay = func(_ context.Context, day uint64) error {
		seen = append(seen, day)
		return nil
	}
	if err := e.Run(testContext(t)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if e.Day != 3 || len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Fatalf("expected days 1..3, got day=%d seen=%v", e.Day, seen)
	}
	if e.Running() {
		t.Fatalf("expected engine stopped")
	}
}

func TestEngineStopsOnDayError(t *testing.T) {
	boom := errors.New("boom")
	e := NewEngine()
	e.Interval = 0
	e.OnDay = func(_ context.Context, day uint64) error {
		if day == 2 {
			return boom
		}
		return nil
	}
	err := e.Run(testContext(t))
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if e.Day != 1 {
		t.Fatalf("expected the failed day not to count, got day %d", e.Day)
	}
}

func TestEngineHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext(t))
	e := NewEngine()
	e.Interval = time.Millisecond
	e.OnDay = func(_ context.Context, day uint64) error {
		if day == 5 {
			cancel()
		}
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("engine did not stop after cancel")
	}
	if e.Day != 5 {
		t.Fatalf("expected to stop at day 5, got %d", e.Day)
	}
}

func TestDemandFieldBoundsAndPriceResponse(t *testing.T) {
	cfg := config.DemandConfig{Base: 10, Amplitude: 0.5, Scale: 0.1, ReferencePrice: 20, Elasticity: 1}
	d := NewDemandField(7, cfg)
	for day := uint64(1); day <= 200; day++ {
		for slot := 0; slot < 3; slot++ {
			l := d.Level(day, slot)
			if l < 5-1e-9 || l > 15+1e-9 {
				t.Fatalf("level %v outside [5,15] on day %d slot %d", l, day, slot)
			}
		}
	}
	cheap := d.Quantity(10, 0, 10)
	dear := d.Quantity(10, 0, 40)
	if cheap < dear {
		t.Fatalf("expected demand to fall with price, got %d at 10 and %d at 40", cheap, dear)
	}
	if q := d.Quantity(10, 0, 0); q < 0 {
		t.Fatalf("expected non-negative demand, got %d", q)
	}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Seed = 99
	cfg.Workers.Count = 20
	return cfg
}

func buildSim(t *testing.T, cfg config.Config) (*Simulation, *actor.System) {
	t.Helper()
	sys := actor.NewSystem()
	t.Cleanup(sys.Shutdown)
	s, err := Build(cfg, sys)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return s, sys
}

func TestBuildSpawnsEconomy(t *testing.T) {
	cfg := testConfig()
	s, sys := buildSim(t, cfg)

	if len(s.Firms) != 3 || len(s.Workers) != 20 || len(s.Policies) != 3 {
		t.Fatalf("unexpected economy: %d firms, %d workers, %d policies", len(s.Firms), len(s.Workers), len(s.Policies))
	}
	// Workers, two suppliers and one employer endpoint per firm.
	if got := sys.Len(); got != 20+2+3 {
		t.Fatalf("expected 25 actors, got %d", got)
	}
	ids := make(map[string]bool, len(s.Workers))
	for _, w := range s.Workers {
		if !strings.HasPrefix(w.ID(), "worker-") || ids[w.ID()] {
			t.Fatalf("expected distinct generated worker ids, got %q", w.ID())
		}
		ids[w.ID()] = true
	}
	if _, ok := s.Firm("quarry"); !ok {
		t.Fatalf("expected to find quarry")
	}
	if _, ok := s.Firm("nobody"); ok {
		t.Fatalf("unexpected firm")
	}
}

func TestTickDayKeepsRostersConsistent(t *testing.T) {
	s, _ := buildSim(t, testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	for day := uint64(1); day <= 5; day++ {
		if err := s.TickDay(ctx, day); err != nil {
			t.Fatalf("day %d: %v", day, err)
		}
	}
	if s.LastDay() != 5 || s.Stats().Day != 5 {
		t.Fatalf("expected day 5 recorded, got %d / %d", s.LastDay(), s.Stats().Day)
	}

	// Every worker's employer has it on the roster, and nobody is on two.
	claimed := map[string]string{}
	for _, f := range s.Firms {
		for _, w := range f.Workers() {
			if other, dup := claimed[w.ID()]; dup {
				t.Fatalf("worker %s on both %s and %s", w.ID(), other, f.ID())
			}
			claimed[w.ID()] = f.ID()
		}
	}
	for _, w := range s.Workers {
		st, err := w.Status(ctx)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if st.Employer != claimed[st.ID] {
			t.Fatalf("worker %s reports employer %q, roster says %q", st.ID, st.Employer, claimed[st.ID])
		}
	}

	stats := s.Stats()
	if stats.Employed+stats.Unemployed != len(s.Workers) {
		t.Fatalf("employment does not add up: %+v", stats)
	}
	if stats.TotalSold > stats.TotalSupply {
		t.Fatalf("sold more than supplied: %+v", stats)
	}
	if q, err := s.Materials.Status(ctx); err != nil || q.Sold != stats.MaterialsSold {
		t.Fatalf("expected materials sold %d in stats, supplier reports %+v (%v)", stats.MaterialsSold, q, err)
	}
	if q, err := s.Equipment.Status(ctx); err != nil || q.Sold != stats.EquipmentSold {
		t.Fatalf("expected equipment sold %d in stats, supplier reports %+v (%v)", stats.EquipmentSold, q, err)
	}
	for _, r := range s.Reports() {
		if r.State.Supply < 0 || r.State.NSold < 0 || r.State.DesiredSupply < 1 {
			t.Fatalf("implausible report for %s: %+v", r.ID, r.State)
		}
	}
}

func TestCorruptFirmStallsAlone(t *testing.T) {
	s, _ := buildSim(t, testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	bad, _ := s.Firm("bakery")
	st := bad.Snapshot()
	st.NSold = -1
	bad.Restore(st)

	if err := s.TickDay(ctx, 1); err != nil {
		t.Fatalf("expected the day to complete, got %v", err)
	}
	if s.Stats().Stalled != 1 {
		t.Fatalf("expected one stalled firm, got %+v", s.Stats())
	}
	for _, r := range s.Reports() {
		if r.Stalled != (r.ID == "bakery") {
			t.Fatalf("unexpected stall flag on %s: %v", r.ID, r.Stalled)
		}
	}
}

func TestWorldFallsBackToReservationWage(t *testing.T) {
	cfg := testConfig()
	s, _ := buildSim(t, cfg)
	ctx := testContext(t)

	w, err := s.World(ctx)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	if w.MeanWage != cfg.Workers.ReservationWage || w.MeanEquipmentPrice != cfg.Suppliers.Equipment.Price {
		t.Fatalf("unexpected world %+v", w)
	}

	// One worker employed at 30 sets the mean.
	f, _ := s.Firm("quarry")
	st := f.Snapshot()
	st.WorkerChange = 1
	f.Restore(st)
	if _, _, _, err := f.Hire(ctx, []firm.Worker{s.Workers[0]}, 30); err != nil {
		t.Fatalf("hire: %v", err)
	}
	if w, _ = s.World(ctx); w.MeanWage != 30 {
		t.Fatalf("expected mean wage 30, got %v", w.MeanWage)
	}
}
