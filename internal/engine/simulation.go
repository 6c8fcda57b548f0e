package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/mini-economy/internal/agents"
	"github.com/talgya/mini-economy/internal/catalog"
)

// Recorder stores the outcome of each cycle.
type Recorder interface {
	RecordCycle(ctx context.Context, cycle uint64, pops []*agents.Pop, reports []agents.CycleReport) error
}

// Simulation holds every pop and runs their allocation cycles.
type Simulation struct {
	Catalog  *catalog.Catalog
	Pops     []*agents.Pop
	PopIndex map[agents.PopID]*agents.Pop
	Supply   *Supply
	Events   []Event // Recent events, trimmed to maxEvents
	Metrics  *Metrics
	Recorder Recorder

	// Pops run in parallel; they share only the read-only catalog.
	Parallelism int

	CyclesPerSeason uint64
	CurrentSeason   Season
	LastCycle       uint64

	// Reports from the most recent cycle, in pop order.
	LastReports []agents.CycleReport

	Stats SimStats

	// Guards the fields above that readers outside the engine goroutine
	// see through Snapshot.
	mu sync.RWMutex
}

// Event is a notable occurrence in the economy.
type Event struct {
	Cycle       uint64 `json:"cycle"`
	Description string `json:"description"`
	Category    string `json:"category"` // "season", "shortfall"
}

const maxEvents = 1000

// SimStats tracks aggregate statistics of the last cycle.
type SimStats struct {
	Pops             int     `json:"pops"`
	Members          float64 `json:"members"`
	AvgHealth        float64 `json:"avg_health"`
	TotalValue       float64 `json:"total_value"`
	Supplied         float64 `json:"supplied"`
	ProductsResidual float64 `json:"products_residual"`
	WantsResidual    float64 `json:"wants_residual"`
}

// NewSimulation creates a Simulation over a catalog and its pops.
func NewSimulation(cat *catalog.Catalog, pops []*agents.Pop, supply *Supply) *Simulation {
	index := make(map[agents.PopID]*agents.Pop, len(pops))
	for _, p := range pops {
		index[p.ID] = p
	}
	return &Simulation{
		Catalog:         cat,
		Pops:            pops,
		PopIndex:        index,
		Supply:          supply,
		Parallelism:     1,
		CyclesPerSeason: DefaultCyclesPerSeason,
	}
}

// Attach wires the simulation into an engine.
func (s *Simulation) Attach(e *Engine) {
	e.CyclesPerSeason = s.CyclesPerSeason
	e.OnSeason = s.processSeason
	e.OnCycle = s.RunCycle
}

// EmitEvent appends an event, dropping the oldest past maxEvents.
func (s *Simulation) EmitEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit(ev)
}

func (s *Simulation) emit(ev Event) {
	s.Events = append(s.Events, ev)
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
}

// Restore seeds the last-cycle view from pops loaded from storage, so
// snapshots and metrics show the saved results until the next cycle runs.
func (s *Simulation) Restore(cycle uint64) {
	reports := make([]agents.CycleReport, 0, len(s.Pops))
	for _, p := range s.Pops {
		if p.Cycles > 0 {
			reports = append(reports, p.Report())
		}
	}

	s.mu.Lock()
	s.LastCycle = cycle
	s.CurrentSeason = SeasonOf(cycle, s.CyclesPerSeason)
	s.LastReports = reports
	s.updateStats(reports, 0)
	s.mu.Unlock()

	for _, r := range reports {
		s.Metrics.Observe(r)
	}
}

// RunCycle delivers supply and runs one allocation cycle for every pop.
func (s *Simulation) RunCycle(ctx context.Context, cycle uint64) error {
	start := time.Now()
	season := SeasonOf(cycle, s.CyclesPerSeason)
	s.mu.Lock()
	s.LastCycle = cycle
	s.CurrentSeason = season
	s.mu.Unlock()

	var supplied float64
	if s.Supply != nil {
		for _, p := range s.Pops {
			supplied += s.Supply.Deliver(p, cycle, season)
		}
	}

	reports := make([]agents.CycleReport, len(s.Pops))
	g, gctx := errgroup.WithContext(ctx)
	if s.Parallelism > 0 {
		g.SetLimit(s.Parallelism)
	}
	for i, p := range s.Pops {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := p.RunCycle()
			if err != nil {
				return err
			}
			r.Cycle = cycle
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	s.LastReports = reports
	s.updateStats(reports, supplied)
	for _, r := range reports {
		s.Metrics.Observe(r)
		if short := r.Residual.ProductTotal() + r.Residual.WantTotal(); short > 0 {
			s.emit(Event{
				Cycle:       cycle,
				Description: fmt.Sprintf("%s fell %s short of its projection", r.PopName, humanize.CommafWithDigits(short, 2)),
				Category:    "shortfall",
			})
		}
	}
	stats := s.Stats
	s.mu.Unlock()
	if s.Metrics != nil {
		s.Metrics.Cycles.Inc()
		s.Metrics.Supplied.Add(supplied)
		s.Metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}

	if s.Recorder != nil {
		if err := s.Recorder.RecordCycle(ctx, cycle, s.Pops, reports); err != nil {
			return fmt.Errorf("record: %w", err)
		}
	}

	slog.Info("cycle report",
		"cycle", cycle,
		"time", CycleTime(cycle, s.CyclesPerSeason),
		"pops", stats.Pops,
		"members", humanize.CommafWithDigits(stats.Members, 0),
		"supplied", humanize.CommafWithDigits(stats.Supplied, 2),
		"avg_health", fmt.Sprintf("%.3f", stats.AvgHealth),
		"value", humanize.CommafWithDigits(stats.TotalValue, 2),
		"residual_products", stats.ProductsResidual,
		"residual_wants", stats.WantsResidual,
		"elapsed", time.Since(start),
	)
	for _, r := range reports {
		slog.Debug("pop cycle",
			"cycle", cycle,
			"pop", r.PopName,
			"full_tier", r.FullTier,
			"value", humanize.CommafWithDigits(r.Value, 2),
			"health", fmt.Sprintf("%.3f", r.Health),
		)
	}
	return nil
}

func (s *Simulation) updateStats(reports []agents.CycleReport, supplied float64) {
	stats := SimStats{Pops: len(s.Pops), Supplied: supplied}
	for _, p := range s.Pops {
		stats.Members += p.Size
	}
	var health float64
	for _, r := range reports {
		health += r.Health
		stats.TotalValue += r.Value
		stats.ProductsResidual += r.Residual.ProductTotal()
		stats.WantsResidual += r.Residual.WantTotal()
	}
	if len(reports) > 0 {
		stats.AvgHealth = health / float64(len(reports))
	}
	s.Stats = stats
}

// Snapshot is a consistent copy of what the last cycle produced.
type Snapshot struct {
	Cycle   uint64               `json:"cycle"`
	Time    string               `json:"time"`
	Season  string               `json:"season"`
	Stats   SimStats             `json:"stats"`
	Reports []agents.CycleReport `json:"reports"`
	Events  []Event              `json:"events,omitempty"`
}

// Snapshot copies the latest cycle state and up to events recent events.
// It is safe to call while the engine runs.
func (s *Simulation) Snapshot(events int) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Cycle:   s.LastCycle,
		Time:    CycleTime(s.LastCycle, s.CyclesPerSeason),
		Season:  s.CurrentSeason.String(),
		Stats:   s.Stats,
		Reports: append([]agents.CycleReport(nil), s.LastReports...),
	}
	if events > 0 {
		from := len(s.Events) - events
		if from < 0 {
			from = 0
		}
		snap.Events = append([]Event(nil), s.Events[from:]...)
	}
	return snap
}
