package agents

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/mini-economy/internal/catalog"
	"github.com/talgya/mini-economy/internal/desire"
	"github.com/talgya/mini-economy/internal/economy"
)

// Residual is projected satisfaction the commit could not deliver. It is an
// ordinary outcome, not an error: the caller can retry next cycle.
type Residual struct {
	Products map[catalog.ProductID]float64 `json:"products,omitempty"`
	Wants    map[catalog.WantID]float64    `json:"wants,omitempty"`
}

// ProductTotal sums the product shortfall.
func (r Residual) ProductTotal() float64 {
	var total float64
	for _, q := range r.Products {
		total += q
	}
	return total
}

// WantTotal sums the want shortfall.
func (r Residual) WantTotal() float64 {
	var total float64
	for _, q := range r.Wants {
		total += q
	}
	return total
}

// Satisfy commits a projection: SatisfyProducts, then SatisfyWants.
func (ds *Desires) Satisfy(p *Projection) (Residual, error) {
	res := Residual{}
	products, err := ds.SatisfyProducts(p)
	if err != nil {
		return res, err
	}
	res.Products = products
	wants, err := ds.satisfyWants(p)
	if err != nil {
		return res, err
	}
	res.Wants = wants
	return res, nil
}

func (ds *Desires) checkCommit(p *Projection) error {
	if p == nil || p.owner != ds {
		return ErrStaleProjection
	}
	if ds.active != p || ds.generation != p.generation || ds.state == StateIdle || ds.state == StateClassified {
		return ErrStaleProjection
	}
	return nil
}

func (ds *Desires) finishCommit(p *Projection) {
	ds.state = StateCommitted
	if p.productsCommitted && p.wantsCommitted {
		ds.active = nil
	}
}

// SatisfyProducts commits the need claims of p to the ledger: consumed needs
// remove product, the others reserve it. It returns any per-product shortfall.
func (ds *Desires) SatisfyProducts(p *Projection) (map[catalog.ProductID]float64, error) {
	if err := ds.checkCommit(p); err != nil {
		return nil, err
	}
	if p.productsCommitted {
		return nil, fmt.Errorf("products already committed: %w", ErrStaleProjection)
	}
	p.productsCommitted = true
	defer ds.finishCommit(p)

	short := make(map[catalog.ProductID]float64)
	for _, product := range ds.DesiredProducts {
		needs := ds.NeedsFor(product)
		var consumed, held float64
		for _, d := range needs {
			q := p.needClaims[d]
			if d.IsConsumed {
				consumed += q
			} else {
				held += q
			}
		}
		want := consumed + held
		if want <= 0 {
			continue
		}

		got := math.Min(want, ds.AllProperty.GetQuantity(product))
		if err := ds.AllProperty.Reserve(product, got); err != nil {
			return short, fmt.Errorf("satisfy %s: %w", product, err)
		}
		if missing := want - got; missing > desire.Epsilon {
			short[product] = missing
			ds.ProductsSatisfied[product] -= missing
			p.unwindProduct(product, missing)
			consumed = 0
			for _, d := range needs {
				if d.IsConsumed {
					consumed += p.needClaims[d]
				}
			}
		}
		if consumed > 0 {
			ds.AllProperty.AddQuantity(product, -consumed)
		}
		for _, d := range needs {
			if !d.IsConsumed {
				d.Reserved += p.needClaims[d]
			}
		}
	}
	return short, nil
}

// unwindProduct takes qty of product satisfaction back, latest claim and
// so highest tier first.
func (p *Projection) unwindProduct(product catalog.ProductID, qty float64) {
	log := p.productLog[product]
	for i := len(log) - 1; i >= 0 && qty > desire.Epsilon; i-- {
		f := &log[i]
		take := math.Min(f.qty, qty)
		f.desire.Satisfaction -= take
		f.qty -= take
		p.needClaims[f.desire] -= take
		qty -= take
	}
}

// SatisfyWants runs the draws chosen by SiftWants against the ledger and the
// unclaimed want pool, and returns the total want quantity projected but not
// delivered.
func (ds *Desires) SatisfyWants(p *Projection) (float64, error) {
	short, err := ds.satisfyWants(p)
	if err != nil {
		return 0, err
	}
	return Residual{Wants: short}.WantTotal(), nil
}

func (ds *Desires) satisfyWants(p *Projection) (map[catalog.WantID]float64, error) {
	if err := ds.checkCommit(p); err != nil {
		return nil, err
	}
	if p.wantsCommitted {
		return nil, fmt.Errorf("wants already committed: %w", ErrStaleProjection)
	}
	p.wantsCommitted = true
	defer ds.finishCommit(p)

	short := make(map[catalog.WantID]float64)
	for _, wd := range p.draws {
		c := wd.contribution
		got, err := ds.resolver.Commit(c, ds.AllProperty, ds.UnclaimedWants)
		if err != nil {
			if errors.Is(err, economy.ErrInsufficient) {
				got = 0
			} else {
				return short, fmt.Errorf("satisfy %s from %s %s: %w", c.Want, c.Source.Kind, c.Source.Product, err)
			}
		}

		if c.Source.Kind == economy.SourceOwnership || c.Source.Kind == economy.SourceUse {
			ds.reserveFeeds(wd, got)
		}
		if missing := c.Yield - got; missing > desire.Epsilon {
			short[c.Want] += missing
			ds.WantsSatisfied[c.Want] -= missing
		}
	}
	// Shortfalls come off the highest tiers of the want, whichever source
	// fell short.
	for want, q := range short {
		p.unwindWant(want, q)
	}
	return short, nil
}

// reserveFeeds records on each desire the want quantity held by kept goods.
func (ds *Desires) reserveFeeds(wd *wantDraw, delivered float64) {
	for _, f := range wd.feeds {
		q := math.Min(f.qty, delivered)
		f.desire.Reserved += q
		delivered -= q
	}
}

// unwindWant removes qty of want satisfaction, latest feed first.
func (p *Projection) unwindWant(want catalog.WantID, qty float64) {
	log := p.wantLog[want]
	for i := len(log) - 1; i >= 0 && qty > desire.Epsilon; i-- {
		f := &log[i]
		take := math.Min(f.qty, qty)
		f.desire.Satisfaction -= take
		f.qty -= take
		qty -= take
	}
}
