package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/firmsim/internal/actor"
	"github.com/talgya/firmsim/internal/config"
	"github.com/talgya/firmsim/internal/entropy"
	"github.com/talgya/firmsim/internal/firm"
	"github.com/talgya/firmsim/internal/learn"
	"github.com/talgya/firmsim/internal/market"
	"github.com/talgya/firmsim/internal/optimize"
)

// Build spawns the economy described by cfg on sys: the worker pool, both
// suppliers, and every firm with its policy and employer endpoint.
func Build(cfg config.Config, sys *actor.System) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	s := &Simulation{
		Policies: make(map[string]*learn.QLearner, len(cfg.Firms)),
		Demand:   NewDemandField(cfg.Seed, cfg.Demand),
		cfg:      cfg,
	}

	for i := 0; i < cfg.Workers.Count; i++ {
		w, err := market.SpawnWorker(sys, "")
		if err != nil {
			return nil, err
		}
		s.Workers = append(s.Workers, w)
	}

	var err error
	m, e := cfg.Suppliers.Materials, cfg.Suppliers.Equipment
	if s.Materials, err = market.SpawnSupplier(sys, "materials", m.Price, m.InitialStock); err != nil {
		return nil, err
	}
	if s.Equipment, err = market.SpawnSupplier(sys, "equipment", e.Price, e.InitialStock); err != nil {
		return nil, err
	}

	planner := optimize.PenaltyNelderMead{Weight: cfg.Optimizer.PenaltyWeight}
	for i, fc := range cfg.Firms {
		// Each firm draws from its own stream.
		var policySeed, firmSeed int64
		if cfg.Seed != 0 {
			policySeed = cfg.Seed + int64(i+1)*7919
			firmSeed = policySeed + 1
		}
		policy, err := learn.NewQLearner(firm.StatesActions(), firm.Reward, cfg.Learner, entropy.FromSeed(policySeed))
		if err != nil {
			return nil, fmt.Errorf("firm %s: %w", fc.Name, err)
		}
		st := firm.InitialState()
		if fc.Cash > 0 {
			st.Cash = fc.Cash
		}
		f, err := firm.New(fc.Name, fc.Kind, fc.Params, policy,
			firm.WithPlanner(planner, cfg.Optimizer.MaxIterations),
			firm.WithRand(entropy.FromSeed(firmSeed)),
			firm.WithState(st),
		)
		if err != nil {
			return nil, err
		}
		if _, err := market.SpawnEmployer(sys, f); err != nil {
			return nil, err
		}
		s.Firms = append(s.Firms, f)
		s.Policies[f.ID()] = policy
	}

	slog.Info("economy built",
		"firms", len(s.Firms),
		"workers", len(s.Workers),
		"seed", cfg.Seed,
	)
	return s, nil
}

// Firm returns the firm with the given ID.
func (s *Simulation) Firm(id string) (*firm.Firm, bool) {
	for _, f := range s.Firms {
		if f.ID() == id {
			return f, true
		}
	}
	return nil, false
}
