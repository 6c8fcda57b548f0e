// Package economy provides an actor's product ledger and the resolver that
// works out which products can produce a want, and how.
package economy

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/talgya/mini-economy/internal/catalog"
)

// ErrInsufficient is returned when a reservation asks for more than is free.
var ErrInsufficient = errors.New("insufficient quantity")

// epsilon absorbs float drift on quantity comparisons.
const epsilon = 1e-9

// Ledger is the only mutation surface the commit phase uses.
type Ledger interface {
	// GetQuantity returns the quantity free for use this cycle.
	GetQuantity(product catalog.ProductID) float64
	// AddQuantity changes the owned total. A negative delta is recorded as consumption.
	AddQuantity(product catalog.ProductID, delta float64)
	// Reserve holds qty of the free quantity for the rest of the cycle.
	Reserve(product catalog.ProductID, qty float64) error
}

// Holding is one product line of the ledger.
type Holding struct {
	Total    float64 `json:"total"`    // Quantity owned
	Reserved float64 `json:"reserved"` // Held this cycle, including what was then consumed
	Consumed float64 `json:"consumed"` // Destroyed this cycle
}

// Available is the quantity neither held nor already spent this cycle.
func (h Holding) Available() float64 {
	v := h.Total - (h.Reserved - h.Consumed)
	if v < 0 {
		return 0
	}
	return v
}

// Property is an actor's product ledger.
type Property struct {
	holdings map[catalog.ProductID]*Holding
}

// NewProperty creates an empty ledger.
func NewProperty() *Property {
	return &Property{holdings: make(map[catalog.ProductID]*Holding)}
}

func (p *Property) holding(id catalog.ProductID) *Holding {
	h, ok := p.holdings[id]
	if !ok {
		h = &Holding{}
		p.holdings[id] = h
	}
	return h
}

// Holding returns a copy of the ledger line for a product.
func (p *Property) Holding(id catalog.ProductID) Holding {
	if h, ok := p.holdings[id]; ok {
		return *h
	}
	return Holding{}
}

// SetHolding replaces a ledger line, used when restoring saved state.
func (p *Property) SetHolding(id catalog.ProductID, h Holding) {
	cp := h
	p.holdings[id] = &cp
}

// GetQuantity implements Ledger.
func (p *Property) GetQuantity(id catalog.ProductID) float64 {
	return p.Holding(id).Available()
}

// AddQuantity implements Ledger. Removals are clamped to what is owned and
// count as consumed up to the quantity still held in reserve.
func (p *Property) AddQuantity(id catalog.ProductID, delta float64) {
	h := p.holding(id)
	if delta >= 0 {
		h.Total += delta
		return
	}
	remove := math.Min(-delta, h.Total)
	h.Total -= remove
	h.Consumed += math.Min(remove, math.Max(0, h.Reserved-h.Consumed))
}

// Reserve implements Ledger.
func (p *Property) Reserve(id catalog.ProductID, qty float64) error {
	if qty <= 0 {
		return nil
	}
	h := p.holding(id)
	if avail := h.Available(); qty > avail+epsilon {
		return fmt.Errorf("reserve %g %s, %g available: %w", qty, id, avail, ErrInsufficient)
	}
	h.Reserved += qty
	return nil
}

// ResetCycle releases all reservations and clears the consumption tally.
func (p *Property) ResetCycle() {
	for _, h := range p.holdings {
		h.Reserved = 0
		h.Consumed = 0
	}
}

// Products returns the ids with a ledger line, sorted.
func (p *Property) Products() []catalog.ProductID {
	ids := make([]catalog.ProductID, 0, len(p.holdings))
	for id := range p.holdings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
