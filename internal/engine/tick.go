// Package engine drives allocation cycles: supply arrives, every pop sifts
// and commits its property, and the results are recorded.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultCyclesPerSeason is how many allocation cycles make one season.
const DefaultCyclesPerSeason = 12

// Engine drives the simulation forward one cycle at a time.
type Engine struct {
	Cycle           uint64        // Last cycle started (monotonic)
	Interval        time.Duration // Pause between cycles; 0 runs flat out
	CyclesPerSeason uint64

	// Callbacks, populated during setup.
	OnCycle  func(ctx context.Context, cycle uint64) error // Every cycle
	OnSeason func(cycle uint64)                            // First cycle of each season
}

// NewEngine creates an engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		CyclesPerSeason: DefaultCyclesPerSeason,
	}
}

// Run advances until ctx is cancelled, a callback fails, or maxCycles cycles
// have run (0 means no limit). Cancellation is a clean stop.
func (e *Engine) Run(ctx context.Context, maxCycles uint64) error {
	slog.Info("cycle engine started", "cycle", e.Cycle, "interval", e.Interval)
	var ran uint64

	for maxCycles == 0 || ran < maxCycles {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()

		if err := e.step(ctx); err != nil {
			return fmt.Errorf("cycle %d: %w", e.Cycle, err)
		}
		ran++

		if e.Interval <= 0 {
			continue
		}
		wait := e.Interval - time.Since(start)
		if wait <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
	}

	slog.Info("cycle engine stopped", "cycle", e.Cycle, "ran", ran)
	return nil
}

// step advances the simulation by one cycle.
func (e *Engine) step(ctx context.Context) error {
	e.Cycle++

	if e.CyclesPerSeason > 0 && (e.Cycle-1)%e.CyclesPerSeason == 0 && e.OnSeason != nil {
		e.OnSeason(e.Cycle)
	}
	if e.OnCycle != nil {
		return e.OnCycle(ctx, e.Cycle)
	}
	return nil
}

// SeasonOf returns the season a cycle falls in.
func SeasonOf(cycle, perSeason uint64) Season {
	if perSeason == 0 || cycle == 0 {
		return SeasonSpring
	}
	return Season(((cycle - 1) / perSeason) % 4)
}

// CycleTime returns a human-readable time for a cycle number.
func CycleTime(cycle, perSeason uint64) string {
	if perSeason == 0 {
		return fmt.Sprintf("Cycle %d", cycle)
	}
	var idx uint64
	if cycle > 0 {
		idx = cycle - 1
	}
	seasons := idx / perSeason
	year := seasons/4 + 1
	return fmt.Sprintf("%s Cycle %d, Year %d", SeasonOf(cycle, perSeason), idx%perSeason+1, year)
}
