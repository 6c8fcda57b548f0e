package economy

import (
	"fmt"
	"math"

	"github.com/talgya/mini-economy/internal/catalog"
)

// SourceKind is how a contribution to a want is obtained.
type SourceKind uint8

const (
	SourceUnclaimed   SourceKind = iota // Want units already produced and unassigned
	SourceOwnership                     // Owning the product yields the want
	SourceUse                           // The product's use process yields it; product kept
	SourceConsumption                   // The product's consumption process yields it; product destroyed
)

func (k SourceKind) String() string {
	switch k {
	case SourceUnclaimed:
		return "unclaimed"
	case SourceOwnership:
		return "ownership"
	case SourceUse:
		return "use"
	case SourceConsumption:
		return "consumption"
	default:
		return "unknown"
	}
}

// Source is one way of producing a want.
type Source struct {
	Kind    SourceKind
	Product catalog.ProductID
	Process *catalog.Process // nil for unclaimed and ownership
	Yield   float64          // want per product unit (ownership) or per iteration (processes)
}

// Contribution is a planned draw from a Source. Planning never touches a
// ledger; committing replays it against one.
type Contribution struct {
	Source Source
	Want   catalog.WantID
	Yield  float64 // quantity of Want delivered

	Units      float64 // product units held (ownership)
	Iterations float64 // process iterations (use, consumption)

	// Process side effects, excluding the Yield itself.
	ProductDelta map[catalog.ProductID]float64
	ProductUsed  map[catalog.ProductID]float64
	WantDelta    map[catalog.WantID]float64
}

// Merge folds a later draw from the same source into c.
func (c *Contribution) Merge(o Contribution) {
	c.Yield += o.Yield
	c.Units += o.Units
	c.Iterations += o.Iterations
	c.ProductDelta = addMaps(c.ProductDelta, o.ProductDelta)
	c.ProductUsed = addMaps(c.ProductUsed, o.ProductUsed)
	c.WantDelta = addMaps(c.WantDelta, o.WantDelta)
}

// ApplyTo updates scratch stock as if the contribution had run.
func (c Contribution) ApplyTo(products map[catalog.ProductID]float64, wants map[catalog.WantID]float64) {
	switch c.Source.Kind {
	case SourceUnclaimed:
		wants[c.Want] -= c.Yield
	case SourceOwnership:
		products[c.Source.Product] -= c.Units
	default:
		for id, q := range c.ProductUsed {
			products[id] -= q
		}
		for id, q := range c.ProductDelta {
			products[id] += q
		}
		for id, q := range c.WantDelta {
			wants[id] += q
		}
	}
}

// Drains reports whether applying c leaves less of something in stock.
// Sift skips draws that do not drain, so a walk over an infinite desire
// always ends.
func (c Contribution) Drains() bool {
	if c.Yield <= epsilon {
		return false
	}
	switch c.Source.Kind {
	case SourceUnclaimed:
		return true
	case SourceOwnership:
		return c.Units > epsilon
	}
	for _, q := range c.ProductUsed {
		if q > epsilon {
			return true
		}
	}
	for _, q := range c.ProductDelta {
		if q < -epsilon {
			return true
		}
	}
	for _, q := range c.WantDelta {
		if q < -epsilon {
			return true
		}
	}
	return false
}

func addMaps[K comparable](dst, src map[K]float64) map[K]float64 {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[K]float64, len(src))
	}
	for k, v := range src {
		dst[k] += v
	}
	return dst
}

// Resolver discovers and evaluates the products that can produce a want.
// It only reads the catalog, so one Resolver may serve many actors.
type Resolver struct {
	cat *catalog.Catalog
}

// NewResolver creates a resolver over a catalog.
func NewResolver(cat *catalog.Catalog) *Resolver {
	return &Resolver{cat: cat}
}

// Sources lists the product relations for a want in draw order: ownership,
// then use, then consumption.
func (r *Resolver) Sources(want catalog.WantID) ([]Source, error) {
	w, ok := r.cat.Want(want)
	if !ok {
		return nil, fmt.Errorf("want %s: %w", want, catalog.ErrUnknownWant)
	}

	var out []Source
	for _, pid := range w.OwnershipSources {
		p, _ := r.cat.Product(pid)
		out = append(out, Source{Kind: SourceOwnership, Product: pid, Yield: p.Wants[want]})
	}
	for _, pid := range w.UseSources {
		src, err := r.processSource(SourceUse, pid, want)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	for _, pid := range w.ConsumptionSources {
		src, err := r.processSource(SourceConsumption, pid, want)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

func (r *Resolver) processSource(kind SourceKind, pid catalog.ProductID, want catalog.WantID) (Source, error) {
	p, ok := r.cat.Product(pid)
	if !ok {
		return Source{}, fmt.Errorf("product %s: %w", pid, catalog.ErrUnknownProduct)
	}
	procID := p.UseProcess
	if kind == SourceConsumption {
		procID = p.ConsumptionProcess
	}
	proc, ok := r.cat.Process(procID)
	if !ok {
		return Source{}, fmt.Errorf("product %s: %s process %q missing: %w", pid, kind, procID, catalog.ErrInconsistent)
	}
	yield := proc.WantOutput(want)
	if yield <= 0 {
		return Source{}, fmt.Errorf("product %s: %s process %s does not output %s: %w", pid, kind, proc.ID, want, catalog.ErrInconsistent)
	}
	return Source{Kind: kind, Product: pid, Process: proc, Yield: yield}, nil
}

// Plan works out how much of need the source can deliver against the given
// scratch stock. It is pure and idempotent: the maps are only read.
func (r *Resolver) Plan(src Source, want catalog.WantID, need float64, products map[catalog.ProductID]float64, wants map[catalog.WantID]float64) Contribution {
	c := Contribution{Source: src, Want: want}
	if need <= 0 {
		return c
	}

	switch src.Kind {
	case SourceUnclaimed:
		c.Yield = math.Max(0, math.Min(need, wants[want]))
	case SourceOwnership:
		units := math.Max(0, math.Min(products[src.Product], need/src.Yield))
		c.Units = units
		c.Yield = units * src.Yield
	case SourceUse, SourceConsumption:
		res := src.Process.Run(need/src.Yield, products, wants)
		if res.Completed <= 0 {
			return c
		}
		c.Iterations = res.Completed
		c.Yield = res.Completed * src.Yield
		res.WantDelta[want] -= c.Yield
		c.ProductDelta = dropZero(res.ProductDelta)
		c.ProductUsed = dropZero(res.ProductUsed)
		c.WantDelta = dropZero(res.WantDelta)
	}
	return c
}

func dropZero[K comparable](m map[K]float64) map[K]float64 {
	for k, v := range m {
		if math.Abs(v) < epsilon {
			delete(m, k)
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// ProjectedWantOutput is the most of want that ownedQty of product can
// yield on its own through its best relation. A unit is only ever drawn
// once, so the relations are not summed. Calling it changes nothing.
func (r *Resolver) ProjectedWantOutput(want catalog.WantID, product catalog.ProductID, ownedQty float64) (float64, error) {
	sources, err := r.Sources(want)
	if err != nil {
		return 0, err
	}
	stock := map[catalog.ProductID]float64{product: ownedQty}
	var best float64
	for _, src := range sources {
		if src.Product != product {
			continue
		}
		c := r.Plan(src, want, math.Inf(1), stock, nil)
		best = math.Max(best, c.Yield)
	}
	return best, nil
}

// Commit replays a planned contribution against the real ledger and the
// actor's unclaimed want pool. It returns the quantity of the want actually
// delivered, which is short of c.Yield only if the ledger changed since
// planning. By-product wants go to unclaimed.
func (r *Resolver) Commit(c Contribution, ledger Ledger, unclaimed map[catalog.WantID]float64) (float64, error) {
	if c.Yield <= 0 {
		return 0, nil
	}

	switch c.Source.Kind {
	case SourceUnclaimed:
		got := math.Min(c.Yield, math.Max(0, unclaimed[c.Want]))
		unclaimed[c.Want] -= got
		if unclaimed[c.Want] < epsilon {
			delete(unclaimed, c.Want)
		}
		return got, nil

	case SourceOwnership:
		units := math.Min(c.Units, ledger.GetQuantity(c.Source.Product))
		if err := ledger.Reserve(c.Source.Product, units); err != nil {
			return 0, fmt.Errorf("ownership of %s: %w", c.Source.Product, err)
		}
		return units * c.Source.Yield, nil
	}

	proc := c.Source.Process
	stock := make(map[catalog.ProductID]float64, len(proc.Inputs)+len(proc.Capital))
	for _, part := range proc.Inputs {
		if part.Product != "" {
			stock[part.Product] = ledger.GetQuantity(part.Product)
		}
	}
	for _, part := range proc.Capital {
		stock[part.Product] = ledger.GetQuantity(part.Product)
	}
	res := proc.Run(c.Iterations, stock, unclaimed)

	for id, q := range res.ProductUsed {
		if err := ledger.Reserve(id, q); err != nil {
			return 0, fmt.Errorf("%s capital %s: %w", proc.ID, id, err)
		}
	}
	for id, q := range res.ProductDelta {
		if q >= 0 {
			continue
		}
		if err := ledger.Reserve(id, -q); err != nil {
			return 0, fmt.Errorf("%s input %s: %w", proc.ID, id, err)
		}
		ledger.AddQuantity(id, q)
	}
	for id, q := range res.ProductDelta {
		if q > 0 {
			ledger.AddQuantity(id, q)
		}
	}

	delivered := res.Completed * c.Source.Yield
	res.WantDelta[c.Want] -= delivered
	for id, q := range res.WantDelta {
		unclaimed[id] += q
		if unclaimed[id] < epsilon {
			delete(unclaimed, id)
		}
	}
	return delivered, nil
}
