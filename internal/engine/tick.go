// Package engine provides the day-based simulation loop.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

const DaysPerYear = 360

// Engine drives the simulation forward one day at a time.
type Engine struct {
	Day      uint64        // Last completed day (monotonic, never resets)
	Speed    float64       // Multiplier: 1.0 = real-time, 0 = paused
	Interval time.Duration // Wall-clock length of one day at speed 1
	MaxDays  uint64        // Stop after this many days in this run; 0 = unbounded

	// OnDay runs the daily cycle. A returned error stops the loop.
	OnDay func(ctx context.Context, day uint64) error

	running atomic.Bool
}

// NewEngine creates a simulation engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Speed:    1.0,
		Interval: time.Second,
	}
}

// Run advances days until ctx is cancelled, Stop is called, MaxDays is
// reached or OnDay fails. It returns the OnDay error, if any.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "day", e.Day, "speed", e.Speed)

	var ran uint64
	for e.running.Load() && ctx.Err() == nil {
		if e.MaxDays > 0 && ran >= e.MaxDays {
			break
		}
		if e.Speed <= 0 {
			// Paused.
			if !sleepCtx(ctx, 100*time.Millisecond) {
				break
			}
			continue
		}

		start := time.Now()
		if err := e.step(ctx); err != nil {
			slog.Error("simulation engine halted", "day", e.Day, "error", err)
			return err
		}
		if ctx.Err() != nil {
			break
		}
		ran++

		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / e.Speed)
		if elapsed < target && !sleepCtx(ctx, target-elapsed) {
			break
		}
	}

	slog.Info("simulation engine stopped", "day", e.Day)
	return nil
}

// Stop halts the loop after the current day.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// Running reports whether Run is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

func (e *Engine) step(ctx context.Context) error {
	day := e.Day + 1
	if e.OnDay != nil {
		if err := e.OnDay(ctx, day); err != nil {
			if ctx.Err() != nil {
				// Cancelled mid-day; the day does not count.
				return nil
			}
			return fmt.Errorf("day %d: %w", day, err)
		}
	}
	e.Day = day
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// SimTime returns a human-readable date for a day number.
func SimTime(day uint64) string {
	if day == 0 {
		return "Day 0, Year 1"
	}
	d := day - 1
	return fmt.Sprintf("Day %d, Year %d", d%DaysPerYear+1, d/DaysPerYear+1)
}
