package engine

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/mini-economy/internal/agents"
	"github.com/talgya/mini-economy/internal/catalog"
	"github.com/talgya/mini-economy/internal/phi"
)

// Supply generates the product quantity each pop receives per cycle:
// base supply × pop size × seasonal modifier × noise. Noise is smooth over
// cycles and differs between products and pops.
type Supply struct {
	cat    *catalog.Catalog
	noise  map[catalog.ProductID]opensimplex.Noise
	Spread float64 // Noise amplitude around 1.0, 0 disables noise
}

// NewSupply seeds one noise field per product.
func NewSupply(cat *catalog.Catalog, seed int64) *Supply {
	s := &Supply{
		cat:    cat,
		noise:  make(map[catalog.ProductID]opensimplex.Noise),
		Spread: phi.Matter,
	}
	for i, id := range cat.ProductIDs() {
		s.noise[id] = opensimplex.NewNormalized(seed + int64(i))
	}
	return s
}

// Amount is how much of product a pop of the given size receives in a cycle.
func (s *Supply) Amount(product catalog.ProductID, pop agents.PopID, size float64, cycle uint64, season Season) float64 {
	p, ok := s.cat.Product(product)
	if !ok || p.BaseSupply <= 0 {
		return 0
	}
	qty := p.BaseSupply * size * SeasonalSupplyMod(season, p.Category)

	if n, ok := s.noise[product]; ok && s.Spread > 0 {
		v := octaveNoise(n, float64(cycle), float64(pop), 3, 0.15, 0.5) // 0..1
		qty *= 1 + s.Spread*(v-0.5)*2
	}
	if qty < 0 {
		return 0
	}
	return qty
}

// Deliver adds one cycle of supply to a pop's property and returns the total
// quantity delivered.
func (s *Supply) Deliver(pop *agents.Pop, cycle uint64, season Season) float64 {
	var total float64
	for _, id := range s.cat.ProductIDs() {
		qty := s.Amount(id, pop.ID, pop.Size, cycle, season)
		if qty <= 0 {
			continue
		}
		pop.Property.AddQuantity(id, qty)
		total += qty
	}
	return total
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
