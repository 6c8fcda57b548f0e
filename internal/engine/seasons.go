package engine

import (
	"log/slog"

	"github.com/talgya/mini-economy/internal/catalog"
)

// Season is a quarter of the supply year.
type Season uint8

const (
	SeasonSpring Season = iota
	SeasonSummer
	SeasonAutumn
	SeasonWinter
)

func (s Season) String() string {
	switch s {
	case SeasonSpring:
		return "Spring"
	case SeasonSummer:
		return "Summer"
	case SeasonAutumn:
		return "Autumn"
	case SeasonWinter:
		return "Winter"
	default:
		return "Unknown"
	}
}

// SeasonalSupplyMod scales how much of a product category arrives in a season.
func SeasonalSupplyMod(season Season, category string) float64 {
	// Food is scarce in winter and plentiful after harvest. Fuel is cut ahead
	// of winter.
	switch season {
	case SeasonWinter:
		switch category {
		case catalog.CategoryFood:
			return 0.6
		case catalog.CategoryFuel:
			return 0.8
		case catalog.CategoryMaterial:
			return 0.7
		default:
			return 0.9
		}
	case SeasonSpring:
		switch category {
		case catalog.CategoryFood:
			return 0.8
		case catalog.CategoryClothing:
			return 1.1
		default:
			return 1.0
		}
	case SeasonSummer:
		switch category {
		case catalog.CategoryFood:
			return 1.1
		case catalog.CategoryMaterial:
			return 1.2
		case catalog.CategoryFuel:
			return 0.9
		default:
			return 1.0
		}
	case SeasonAutumn:
		switch category {
		case catalog.CategoryFood:
			return 1.5 // Harvest
		case catalog.CategoryFuel:
			return 1.3
		default:
			return 1.0
		}
	}
	return 1.0
}

// processSeason records a season change.
func (s *Simulation) processSeason(cycle uint64) {
	season := SeasonOf(cycle, s.CyclesPerSeason)
	s.mu.Lock()
	s.CurrentSeason = season
	s.mu.Unlock()

	slog.Info("season change",
		"cycle", cycle,
		"time", CycleTime(cycle, s.CyclesPerSeason),
		"season", season,
		"pops", len(s.Pops),
	)
	s.EmitEvent(Event{
		Cycle:       cycle,
		Description: season.String() + " begins",
		Category:    "season",
	})
}
