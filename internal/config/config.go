// Package config loads simulation settings from YAML. Values missing from the
// file keep their defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/firmsim/internal/firm"
	"github.com/talgya/firmsim/internal/learn"
)

type Config struct {
	Seed         int64         `yaml:"seed"`
	Days         uint64        `yaml:"days"` // 0 runs until stopped
	TickInterval time.Duration `yaml:"tick_interval"`
	DBPath       string        `yaml:"db_path"`
	APIPort      int           `yaml:"api_port"` // 0 disables the HTTP API

	Actors       ActorConfig     `yaml:"actors"`
	Workers      WorkerConfig    `yaml:"workers"`
	HiringRounds int             `yaml:"hiring_rounds"`
	Learner      learn.Config    `yaml:"learner"`
	Optimizer    OptimizerConfig `yaml:"optimizer"`
	Suppliers    SuppliersConfig `yaml:"suppliers"`
	Demand       DemandConfig    `yaml:"demand"`
	Firms        []FirmConfig    `yaml:"firms"`
}

type ActorConfig struct {
	InboxSize int `yaml:"inbox_size"` // Mailbox buffer per agent
}

type WorkerConfig struct {
	Count int `yaml:"count"`
	// ReservationWage stands in for the mean wage while nobody is employed.
	ReservationWage float64 `yaml:"reservation_wage"`
}

type OptimizerConfig struct {
	MaxIterations int     `yaml:"max_iterations"`
	PenaltyWeight float64 `yaml:"penalty_weight"`
}

type SupplierConfig struct {
	Price        float64 `yaml:"price"`
	InitialStock int     `yaml:"initial_stock"`
	DailyRestock int     `yaml:"daily_restock"`
}

type SuppliersConfig struct {
	Materials SupplierConfig `yaml:"materials"`
	Equipment SupplierConfig `yaml:"equipment"`
}

type DemandConfig struct {
	Base           float64 `yaml:"base"`      // Mean units demanded per firm per day
	Amplitude      float64 `yaml:"amplitude"` // Relative swing, 0..1
	Scale          float64 `yaml:"scale"`     // Noise frequency per day
	ReferencePrice float64 `yaml:"reference_price"`
	Elasticity     float64 `yaml:"elasticity"`
}

type FirmConfig struct {
	Name   string      `yaml:"name"`
	Kind   firm.Kind   `yaml:"kind"`
	Cash   float64     `yaml:"cash"` // 0 keeps the default opening balance
	Params firm.Params `yaml:"params"`
}

// Default returns a small three-firm economy.
func Default() Config {
	params := firm.Params{
		LaborCostPerGood:    1,
		MaterialCostPerGood: 1,
		LaborPerEquipment:   2,
		LaborPerWorker:      1,
		SupplyIncrement:     1,
		ProfitIncrement:     1,
		WageIncrement:       1,
	}
	return Config{
		Seed:         42,
		TickInterval: time.Second,
		DBPath:       "data/firmsim.db",
		APIPort:      8080,
		Actors:       ActorConfig{InboxSize: 100},
		Workers:      WorkerConfig{Count: 60, ReservationWage: 10},
		HiringRounds: 2,
		Learner:      learn.DefaultConfig(),
		Optimizer:    OptimizerConfig{MaxIterations: firm.DefaultMaxIter},
		Suppliers: SuppliersConfig{
			Materials: SupplierConfig{Price: 2, InitialStock: 200, DailyRestock: 100},
			Equipment: SupplierConfig{Price: 40, InitialStock: 20, DailyRestock: 2},
		},
		Demand: DemandConfig{Base: 10, Amplitude: 0.4, Scale: 0.1, ReferencePrice: 20, Elasticity: 0.5},
		Firms: []FirmConfig{
			{Name: "bakery", Kind: firm.KindConsumerGood, Params: params},
			{Name: "toolworks", Kind: firm.KindCapitalEquipment, Params: params},
			{Name: "quarry", Kind: firm.KindRawMaterial, Params: params},
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings the simulation cannot run without.
func (c Config) Validate() error {
	var errs []error
	if c.Workers.Count < 0 {
		errs = append(errs, fmt.Errorf("workers.count must be non-negative"))
	}
	if c.Workers.ReservationWage < 0 {
		errs = append(errs, fmt.Errorf("workers.reservation_wage must be non-negative"))
	}
	if c.Actors.InboxSize < 1 {
		errs = append(errs, fmt.Errorf("actors.inbox_size must be at least 1"))
	}
	if c.HiringRounds < 1 {
		errs = append(errs, fmt.Errorf("hiring_rounds must be at least 1"))
	}
	if c.Learner.Explore < 0 || c.Learner.Explore > 1 {
		errs = append(errs, fmt.Errorf("learner.explore must be within [0,1]"))
	}
	if c.Learner.LearningRate < 0 || c.Learner.LearningRate > 1 {
		errs = append(errs, fmt.Errorf("learner.learning_rate must be within [0,1]"))
	}
	if c.Optimizer.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("optimizer.max_iterations must be at least 1"))
	}
	if c.Suppliers.Materials.Price < 0 || c.Suppliers.Equipment.Price < 0 {
		errs = append(errs, fmt.Errorf("supplier prices must be non-negative"))
	}
	if c.Demand.Base < 0 || c.Demand.Amplitude < 0 || c.Demand.Amplitude > 1 {
		errs = append(errs, fmt.Errorf("demand.base must be non-negative and demand.amplitude within [0,1]"))
	}
	if len(c.Firms) == 0 {
		errs = append(errs, fmt.Errorf("at least one firm is required"))
	}
	seen := make(map[string]bool, len(c.Firms))
	for i, f := range c.Firms {
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("firms[%d]: name is required", i))
		} else if seen[f.Name] {
			errs = append(errs, fmt.Errorf("firms[%d]: duplicate name %q", i, f.Name))
		}
		seen[f.Name] = true
		if _, err := f.Kind.Technology(); err != nil {
			errs = append(errs, fmt.Errorf("firms[%d]: %w", i, err))
		}
		if err := f.Params.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("firms[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
