package agents

import (
	"fmt"

	"github.com/talgya/mini-economy/internal/catalog"
	"github.com/talgya/mini-economy/internal/economy"
)

// PopID is a unique identifier for a pop.
type PopID uint64

// Pop is a group of identical members acting as one economic actor: one
// ledger, one desire set.
type Pop struct {
	ID   PopID   `json:"id"`
	Name string  `json:"name"`
	Size float64 `json:"size"` // Members; desire amounts scale with it

	// Definitions instantiated into Desires, by name.
	Definitions []string `json:"definitions"`

	Property *economy.Property `json:"-"`
	Desires  *Desires          `json:"-"`

	Cycles uint64 `json:"cycles"` // Completed allocation cycles
}

// CycleReport summarises one allocation cycle of a pop.
type CycleReport struct {
	Pop     PopID  `json:"pop"`
	PopName string `json:"pop_name"`
	Cycle   uint64 `json:"cycle"`

	FullTier          int                           `json:"full_tier"`
	Value             float64                       `json:"value"`
	Health            float64                       `json:"health"`
	Imbalance         float64                       `json:"imbalance"`
	ProductsSatisfied map[catalog.ProductID]float64 `json:"products_satisfied"`
	WantsSatisfied    map[catalog.WantID]float64    `json:"wants_satisfied"`
	Residual          Residual                      `json:"residual"`
}

// NewPop creates a pop with an empty ledger and desire set.
func NewPop(id PopID, name string, size float64, cat *catalog.Catalog) *Pop {
	prop := economy.NewProperty()
	return &Pop{
		ID:       id,
		Name:     name,
		Size:     size,
		Property: prop,
		Desires:  NewDesires(cat, prop),
	}
}

// Instantiate adds the desires of each definition, scaled by pop size.
// Definitions that repeat a desire are consolidated into it.
func (p *Pop) Instantiate(defs ...Definition) error {
	for _, def := range defs {
		desires, err := def.Build(p.Size)
		if err != nil {
			return err
		}
		for _, d := range desires {
			if err := p.Desires.AddDesire(d); err != nil {
				return fmt.Errorf("pop %s definition %s: %w", p.Name, def.Name, err)
			}
		}
		p.Definitions = append(p.Definitions, def.Name)
	}
	return nil
}

// RunCycle resets last cycle's claims, sifts the ledger and commits the
// result. The report carries the residual rather than an error when stock
// fell short.
func (p *Pop) RunCycle() (CycleReport, error) {
	report := CycleReport{Pop: p.ID, PopName: p.Name, Cycle: p.Cycles + 1}

	p.Property.ResetCycle()
	if err := p.Desires.ResetSatisfaction(); err != nil {
		return report, err
	}
	proj, err := p.Desires.Sift()
	if err != nil {
		return report, fmt.Errorf("pop %s sift: %w", p.Name, err)
	}
	res, err := p.Desires.Satisfy(proj)
	if err != nil {
		return report, fmt.Errorf("pop %s satisfy: %w", p.Name, err)
	}
	p.Cycles++

	report = p.Report()
	report.Residual = res
	return report, nil
}

// Report summarises the pop's satisfaction as it stands after its last
// cycle. For a pop restored from storage this is the saved cycle's result.
func (p *Pop) Report() CycleReport {
	return CycleReport{
		Pop:               p.ID,
		PopName:           p.Name,
		Cycle:             p.Cycles,
		FullTier:          p.Desires.FullTier(),
		Value:             p.Desires.SatisfactionValue(),
		Health:            p.Desires.Health(),
		Imbalance:         p.Desires.Imbalance(),
		ProductsSatisfied: copyMap(p.Desires.ProductsSatisfied),
		WantsSatisfied:    copyMap(p.Desires.WantsSatisfied),
	}
}

func copyMap[K comparable](m map[K]float64) map[K]float64 {
	out := make(map[K]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
