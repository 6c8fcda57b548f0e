package agents

import (
	"fmt"
	"strings"

	"github.com/talgya/mini-economy/internal/catalog"
	"github.com/talgya/mini-economy/internal/desire"
)

// Layer is a band of the desire hierarchy. Each layer starts at a fixed
// tier; lower layers are satisfied first because they sit on lower tiers.
type Layer uint8

const (
	LayerSurvival  Layer = iota // Food, water, shelter, warmth
	LayerSafety                 // Tools, reserves, security
	LayerBelonging              // Community goods
	LayerEsteem                 // Luxury, status
	LayerPurpose                // Open-ended wants
)

// LayerSpan is the number of tiers in one layer.
const LayerSpan = 20

// BaseTier returns the first tier of the layer.
func (l Layer) BaseTier() int {
	return int(l) * LayerSpan
}

func (l Layer) String() string {
	switch l {
	case LayerSurvival:
		return "survival"
	case LayerSafety:
		return "safety"
	case LayerBelonging:
		return "belonging"
	case LayerEsteem:
		return "esteem"
	case LayerPurpose:
		return "purpose"
	default:
		return "unknown"
	}
}

// ParseLayer reads a layer name as written in config files.
func ParseLayer(s string) (Layer, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "survival":
		return LayerSurvival, nil
	case "safety":
		return LayerSafety, nil
	case "belonging":
		return LayerBelonging, nil
	case "esteem":
		return LayerEsteem, nil
	case "purpose":
		return LayerPurpose, nil
	}
	return 0, fmt.Errorf("unknown layer %q", s)
}

// DesireDef is one line of a definition: a per-member desire for a product
// or a want. Tiers are relative to the layer's base tier.
type DesireDef struct {
	Product  catalog.ProductID `yaml:"product,omitempty"`
	Want     catalog.WantID    `yaml:"want,omitempty"`
	Amount   float64           `yaml:"amount"`
	Layer    string            `yaml:"layer,omitempty"`
	Tier     int               `yaml:"tier"`
	Step     int               `yaml:"step,omitempty"`
	EndTier  *int              `yaml:"end_tier,omitempty"`
	Consumed bool              `yaml:"consumed,omitempty"`
}

// Definition is a named set of desires shared by every pop of a species,
// culture or firm.
type Definition struct {
	Name    string      `yaml:"name"`
	Kind    string      `yaml:"kind"` // species, culture, firm
	Desires []DesireDef `yaml:"desires"`
}

// Build turns the definition into desires for a group of size members.
func (def Definition) Build(size float64) ([]*desire.Desire, error) {
	out := make([]*desire.Desire, 0, len(def.Desires))
	for i, dd := range def.Desires {
		d, err := dd.build(size)
		if err != nil {
			return nil, fmt.Errorf("definition %s desire %d: %w", def.Name, i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (dd DesireDef) build(size float64) (*desire.Desire, error) {
	layer, err := ParseLayer(dd.Layer)
	if err != nil {
		return nil, err
	}
	if (dd.Product == "") == (dd.Want == "") {
		return nil, fmt.Errorf("exactly one of product or want: %w", desire.ErrInvalidPattern)
	}

	p := desire.Pattern{
		Amount:    dd.Amount * size,
		StartTier: layer.BaseTier() + dd.Tier,
		Step:      dd.Step,
	}
	if dd.EndTier != nil {
		end := layer.BaseTier() + *dd.EndTier
		p.EndTier = &end
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if dd.Product != "" {
		return desire.NewNeed(dd.Product, p, dd.Consumed), nil
	}
	return desire.NewWant(dd.Want, p), nil
}
