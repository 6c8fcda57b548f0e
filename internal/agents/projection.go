package agents

import (
	"fmt"
	"math"

	"github.com/talgya/mini-economy/internal/catalog"
	"github.com/talgya/mini-economy/internal/desire"
	"github.com/talgya/mini-economy/internal/economy"
)

// Projection is the result of the Sift phase. It holds a scratch copy of the
// ledger's free stock and the claims and draws made against it. Only
// Desires.BeginProjection creates one, and Satisfy accepts only the current
// uncommitted one.
type Projection struct {
	owner      *Desires
	generation uint64

	products map[catalog.ProductID]float64
	wants    map[catalog.WantID]float64

	// Values at projection start, restored if the projection is discarded.
	baseSatisfaction map[*desire.Desire]float64
	baseProducts     map[catalog.ProductID]float64
	baseWants        map[catalog.WantID]float64

	needClaims map[*desire.Desire]float64
	draws      []*wantDraw
	drawIndex  map[drawKey]*wantDraw

	// Claims per product and want in walk order, lowest tier first.
	productLog map[catalog.ProductID][]feed
	wantLog    map[catalog.WantID][]feed

	productsCommitted bool
	wantsCommitted    bool
}

type drawKey struct {
	kind    economy.SourceKind
	product catalog.ProductID
	want    catalog.WantID
}

type feed struct {
	desire *desire.Desire
	qty    float64
}

// wantDraw is every planned draw from one source for one want.
type wantDraw struct {
	contribution economy.Contribution
	feeds        []feed
}

// BeginProjection opens a new projection over the current ledger. An open,
// uncommitted projection is discarded first and its satisfaction undone.
func (ds *Desires) BeginProjection() *Projection {
	if ds.state == StateProjected && ds.active != nil {
		ds.active.restore()
	}
	ds.generation++

	p := &Projection{
		owner:            ds,
		generation:       ds.generation,
		products:         make(map[catalog.ProductID]float64),
		wants:            make(map[catalog.WantID]float64, len(ds.UnclaimedWants)),
		baseSatisfaction: make(map[*desire.Desire]float64),
		baseProducts:     make(map[catalog.ProductID]float64, len(ds.ProductsSatisfied)),
		baseWants:        make(map[catalog.WantID]float64, len(ds.WantsSatisfied)),
		needClaims:       make(map[*desire.Desire]float64),
		drawIndex:        make(map[drawKey]*wantDraw),
		productLog:       make(map[catalog.ProductID][]feed),
		wantLog:          make(map[catalog.WantID][]feed),
	}
	for _, id := range ds.cat.ProductIDs() {
		p.products[id] = ds.AllProperty.GetQuantity(id)
	}
	for id, q := range ds.UnclaimedWants {
		p.wants[id] = q
	}
	for _, d := range ds.All() {
		p.baseSatisfaction[d] = d.Satisfaction
	}
	for id, q := range ds.ProductsSatisfied {
		p.baseProducts[id] = q
	}
	for id, q := range ds.WantsSatisfied {
		p.baseWants[id] = q
	}

	ds.active = p
	ds.state = StateProjected
	return p
}

// Sift opens a projection and runs SiftProducts then SiftWants.
func (ds *Desires) Sift() (*Projection, error) {
	p := ds.BeginProjection()
	if err := p.SiftProducts(); err != nil {
		return nil, err
	}
	if err := p.SiftWants(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Projection) restore() {
	for d, sat := range p.baseSatisfaction {
		d.Satisfaction = sat
	}
	for id, q := range p.baseProducts {
		p.owner.ProductsSatisfied[id] = q
	}
	for id, q := range p.baseWants {
		p.owner.WantsSatisfied[id] = q
	}
}

// open reports whether the projection may still be sifted or committed.
func (p *Projection) open() error {
	ds := p.owner
	if ds.active != p || ds.generation != p.generation || ds.state != StateProjected {
		return ErrStaleProjection
	}
	if p.productsCommitted || p.wantsCommitted {
		return fmt.Errorf("sift after commit: %w", ErrStaleProjection)
	}
	return nil
}

// Available returns the scratch quantity of a product still unclaimed.
func (p *Projection) Available(id catalog.ProductID) float64 {
	return p.products[id]
}

// SiftProduct hands availableQty of product to its need desires in tier
// order, bounded desires ahead of unbounded ones at the same tier, and
// returns the quantity assigned. It stops as soon as the quantity runs out.
func (p *Projection) SiftProduct(product catalog.ProductID, availableQty float64) (float64, error) {
	if err := p.open(); err != nil {
		return 0, err
	}
	ds := p.owner
	remaining := availableQty
	var assigned float64

	w := desire.NewWalker(ds.NeedsFor(product))
	for remaining > desire.Epsilon {
		d, tier, ok := w.Next()
		if !ok {
			break
		}
		open, err := d.UnsatisfiedAtTier(tier)
		if err != nil {
			return assigned, err
		}
		take := math.Min(open, remaining)
		if take <= 0 {
			continue
		}
		d.Satisfaction += take
		p.needClaims[d] += take
		p.productLog[product] = append(p.productLog[product], feed{desire: d, qty: take})
		remaining -= take
		assigned += take
	}

	ds.ProductsSatisfied[product] += assigned
	p.products[product] = math.Max(0, p.products[product]-assigned)
	return assigned, nil
}

// SiftProducts sifts every desired product against its free stock.
func (p *Projection) SiftProducts() error {
	for _, id := range p.owner.DesiredProducts {
		if _, err := p.SiftProduct(id, p.products[id]); err != nil {
			return fmt.Errorf("sift %s: %w", id, err)
		}
	}
	return nil
}

// SiftWants projects, for every desired want, how much can be produced from
// unclaimed want units and from owned, used or consumed products, and hands
// it to the want desires in tier order. Stock left over by SiftProducts is
// the ceiling; nothing is drawn twice.
func (p *Projection) SiftWants() error {
	if err := p.open(); err != nil {
		return err
	}
	ds := p.owner
	for _, want := range ds.DesiredWants {
		sources, err := ds.resolver.Sources(want)
		if err != nil {
			return fmt.Errorf("sift %s: %w", want, err)
		}
		sources = append([]economy.Source{{Kind: economy.SourceUnclaimed}}, sources...)

		w := desire.NewWalker(ds.WantsFor(want))
		for {
			d, tier, ok := w.Next()
			if !ok {
				break
			}
			need, err := d.UnsatisfiedAtTier(tier)
			if err != nil {
				return err
			}
			if need <= desire.Epsilon {
				continue
			}
			got := p.drawWant(want, sources, need, d)
			d.Satisfaction += got
			ds.WantsSatisfied[want] += got
			if got < need-desire.Epsilon {
				break // every source is dry
			}
		}
	}
	return nil
}

// drawWant takes up to need of want from the sources in order.
func (p *Projection) drawWant(want catalog.WantID, sources []economy.Source, need float64, d *desire.Desire) float64 {
	resolver := p.owner.resolver
	var got float64
	for _, src := range sources {
		left := need - got
		if left <= desire.Epsilon {
			break
		}
		c := resolver.Plan(src, want, left, p.products, p.wants)
		if !c.Drains() {
			continue
		}
		c.ApplyTo(p.products, p.wants)
		p.record(c, d)
		got += c.Yield
	}
	return got
}

func (p *Projection) record(c economy.Contribution, d *desire.Desire) {
	k := drawKey{kind: c.Source.Kind, product: c.Source.Product, want: c.Want}
	wd, ok := p.drawIndex[k]
	if !ok {
		wd = &wantDraw{contribution: c}
		p.drawIndex[k] = wd
		p.draws = append(p.draws, wd)
	} else {
		wd.contribution.Merge(c)
	}
	if n := len(wd.feeds); n > 0 && wd.feeds[n-1].desire == d {
		wd.feeds[n-1].qty += c.Yield
	} else {
		wd.feeds = append(wd.feeds, feed{desire: d, qty: c.Yield})
	}
	p.wantLog[c.Want] = append(p.wantLog[c.Want], feed{desire: d, qty: c.Yield})
}

// ProjectedWant is the quantity of a want projected from each source kind.
func (p *Projection) ProjectedWant(want catalog.WantID) map[economy.SourceKind]float64 {
	out := make(map[economy.SourceKind]float64)
	for _, wd := range p.draws {
		if wd.contribution.Want == want {
			out[wd.contribution.Source.Kind] += wd.contribution.Yield
		}
	}
	return out
}
