// Package agents holds the economic actors of the simulation and the Desires
// aggregate that decides, tier by tier, how an actor's property satisfies its
// needs and wants.
//
// One allocation cycle is Classify (AddDesire) → Project (Sift) → Commit
// (Satisfy). Projection never writes to the product ledger; commit is the
// only step that does.
package agents

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/mini-economy/internal/catalog"
	"github.com/talgya/mini-economy/internal/desire"
	"github.com/talgya/mini-economy/internal/economy"
	"github.com/talgya/mini-economy/internal/phi"
)

var (
	// ErrCycleInProgress rejects reclassification while a projection is open.
	ErrCycleInProgress = errors.New("allocation cycle in progress")
	// ErrStaleProjection rejects a projection that is not the current one or
	// has already been committed.
	ErrStaleProjection = errors.New("stale projection")
	// ErrIncompatibleDesire rejects merging desires with different repetition.
	ErrIncompatibleDesire = errors.New("incompatible desire for existing key")
)

// CycleState is where an actor is in its allocation cycle.
type CycleState uint8

const (
	StateIdle       CycleState = iota
	StateClassified            // Desires added, nothing projected
	StateProjected             // Sift has run; commit pending
	StateCommitted             // Satisfy has run
)

func (s CycleState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateClassified:
		return "classified"
	case StateProjected:
		return "projected"
	case StateCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// TierDesireEquivalence is TierRatio^(tierA-tierB): how many units at tierA
// weigh the same as one unit at tierB.
func TierDesireEquivalence(tierA, tierB int) float64 {
	return math.Pow(phi.TierRatio, float64(tierA-tierB))
}

type desireKey struct {
	kind   desire.Kind
	target string
	start  int
}

func keyOf(d *desire.Desire) desireKey {
	return desireKey{kind: d.Kind, target: d.Target(), start: d.StartTier}
}

// Desires is the full desire set of one actor.
type Desires struct {
	Needs          []*desire.Desire
	Wants          []*desire.Desire
	StretchedNeeds []*desire.Desire
	StretchedWants []*desire.Desire
	InfiniteNeeds  []*desire.Desire
	InfiniteWants  []*desire.Desire

	DesiredProducts []catalog.ProductID
	DesiredWants    []catalog.WantID

	ProductsSatisfied map[catalog.ProductID]float64
	WantsSatisfied    map[catalog.WantID]float64

	// Targets hold the total sought; -1 means unbounded.
	ProductTargets map[catalog.ProductID]float64
	WantTargets    map[catalog.WantID]float64

	AllProperty    economy.Ledger
	UnclaimedWants map[catalog.WantID]float64

	cat      *catalog.Catalog
	resolver *economy.Resolver
	index    map[desireKey]*desire.Desire

	state      CycleState
	generation uint64
	active     *Projection
}

// NewDesires creates an empty desire set reading from cat and committing to ledger.
func NewDesires(cat *catalog.Catalog, ledger economy.Ledger) *Desires {
	return &Desires{
		ProductsSatisfied: make(map[catalog.ProductID]float64),
		WantsSatisfied:    make(map[catalog.WantID]float64),
		ProductTargets:    make(map[catalog.ProductID]float64),
		WantTargets:       make(map[catalog.WantID]float64),
		AllProperty:       ledger,
		UnclaimedWants:    make(map[catalog.WantID]float64),
		cat:               cat,
		resolver:          economy.NewResolver(cat),
		index:             make(map[desireKey]*desire.Desire),
	}
}

// State returns the current cycle state.
func (ds *Desires) State() CycleState {
	return ds.state
}

// AddDesire registers d, or folds its Amount into an existing desire with the
// same target and start tier.
func (ds *Desires) AddDesire(d *desire.Desire) error {
	if ds.state == StateProjected {
		return ErrCycleInProgress
	}
	if err := d.Validate(); err != nil {
		return err
	}
	switch d.Kind {
	case desire.KindNeed:
		if _, ok := ds.cat.Product(d.Product); !ok {
			return fmt.Errorf("need %s: %w", d.Product, catalog.ErrUnknownProduct)
		}
	case desire.KindWant:
		if _, ok := ds.cat.Want(d.Want); !ok {
			return fmt.Errorf("want %s: %w", d.Want, catalog.ErrUnknownWant)
		}
	}

	k := keyOf(d)
	if existing, ok := ds.index[k]; ok {
		if existing.Step != d.Step || !sameEnd(existing.EndTier, d.EndTier) {
			return fmt.Errorf("%s: %w", d, ErrIncompatibleDesire)
		}
		existing.Amount += d.Amount
		ds.recomputeTarget(d)
		ds.state = StateClassified
		return nil
	}

	ds.index[k] = d
	switch d.Kind {
	case desire.KindNeed:
		ds.Needs = append(ds.Needs, d)
		if d.IsStretched() {
			ds.StretchedNeeds = append(ds.StretchedNeeds, d)
		}
		if d.IsInfinite() {
			ds.InfiniteNeeds = append(ds.InfiniteNeeds, d)
		}
		if _, ok := ds.ProductsSatisfied[d.Product]; !ok {
			ds.DesiredProducts = append(ds.DesiredProducts, d.Product)
			ds.ProductsSatisfied[d.Product] = 0
		}
	case desire.KindWant:
		ds.Wants = append(ds.Wants, d)
		if d.IsStretched() {
			ds.StretchedWants = append(ds.StretchedWants, d)
		}
		if d.IsInfinite() {
			ds.InfiniteWants = append(ds.InfiniteWants, d)
		}
		if _, ok := ds.WantsSatisfied[d.Want]; !ok {
			ds.DesiredWants = append(ds.DesiredWants, d.Want)
			ds.WantsSatisfied[d.Want] = 0
		}
	}
	ds.recomputeTarget(d)
	ds.state = StateClassified
	return nil
}

func sameEnd(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// recomputeTarget sums TotalDesire over every desire sharing d's target.
func (ds *Desires) recomputeTarget(d *desire.Desire) {
	var total float64
	for _, o := range ds.desiresFor(d.Kind, d.Target()) {
		if o.IsInfinite() {
			total = -1
			break
		}
		total += o.TotalDesire()
	}
	if d.Kind == desire.KindNeed {
		ds.ProductTargets[d.Product] = total
	} else {
		ds.WantTargets[d.Want] = total
	}
}

// desiresFor returns the desires for one product or want, bounded first and
// then unbounded, each group in registration order.
func (ds *Desires) desiresFor(kind desire.Kind, target string) []*desire.Desire {
	all := ds.Needs
	if kind == desire.KindWant {
		all = ds.Wants
	}
	var bounded, infinite []*desire.Desire
	for _, d := range all {
		if d.Target() != target {
			continue
		}
		if d.IsInfinite() {
			infinite = append(infinite, d)
		} else {
			bounded = append(bounded, d)
		}
	}
	return append(bounded, infinite...)
}

// NeedsFor returns the need desires for a product in sift order.
func (ds *Desires) NeedsFor(product catalog.ProductID) []*desire.Desire {
	return ds.desiresFor(desire.KindNeed, string(product))
}

// WantsFor returns the want desires for a want in sift order.
func (ds *Desires) WantsFor(want catalog.WantID) []*desire.Desire {
	return ds.desiresFor(desire.KindWant, string(want))
}

// All returns needs followed by wants.
func (ds *Desires) All() []*desire.Desire {
	out := make([]*desire.Desire, 0, len(ds.Needs)+len(ds.Wants))
	out = append(out, ds.Needs...)
	return append(out, ds.Wants...)
}

// ResetSatisfaction starts a fresh cycle: satisfaction, reservations and
// running totals go back to zero. Unclaimed wants carry over.
func (ds *Desires) ResetSatisfaction() error {
	if ds.state == StateProjected {
		return ErrCycleInProgress
	}
	for _, d := range ds.All() {
		d.Satisfaction = 0
		d.Reserved = 0
	}
	for id := range ds.ProductsSatisfied {
		ds.ProductsSatisfied[id] = 0
	}
	for id := range ds.WantsSatisfied {
		ds.WantsSatisfied[id] = 0
	}
	ds.state = StateIdle
	return nil
}

// FullTier is the highest tier at which every occurrence of every desire up
// to and including it is fully satisfied. With no desires it is
// desire.Exhausted; when the first occurrence is short it is one below it.
func (ds *Desires) FullTier() int {
	all := ds.All()
	if len(all) == 0 {
		return desire.Exhausted
	}
	w := desire.NewWalker(all)
	last := desire.Exhausted
	for {
		d, tier, ok := w.Next()
		if !ok {
			return last
		}
		sat, _ := d.SatisfiedAtTier(tier)
		if sat < d.Amount-desire.Epsilon {
			return tier - 1
		}
		last = tier
	}
}

// SatisfactionValue weighs every satisfied quantity by how much its tier is
// worth relative to tier 0.
func (ds *Desires) SatisfactionValue() float64 {
	var value float64
	for _, d := range ds.All() {
		for tier := d.StartTier; tier != desire.Exhausted; tier = d.GetNextTier(tier) {
			sat, _ := d.SatisfiedAtTier(tier)
			if sat <= 0 {
				break
			}
			value += sat * TierDesireEquivalence(0, tier)
		}
	}
	return value
}

// satisfactionField reads satisfied quantity against bounded targets.
type satisfactionField struct{ ds *Desires }

func (f satisfactionField) ChargingPressure() float64 {
	var total float64
	for _, d := range f.ds.All() {
		if !d.IsInfinite() {
			total += d.Satisfaction
		}
	}
	return total
}

func (f satisfactionField) DischargingPressure() float64 {
	var total float64
	for _, d := range f.ds.All() {
		if !d.IsInfinite() {
			total += d.TotalDesire()
		}
	}
	return total
}

// Health is phi.HealthRatio of satisfied quantity against bounded demand.
func (ds *Desires) Health() float64 {
	return phi.HealthRatio(satisfactionField{ds})
}

// Imbalance is the bounded demand left unsatisfied, as a quantity.
func (ds *Desires) Imbalance() float64 {
	return phi.NullPoint(satisfactionField{ds})
}
