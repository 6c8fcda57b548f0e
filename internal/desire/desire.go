// Package desire implements a single prioritized demand pattern and the tier
// walk that merges many of them into one priority order.
//
// A desire asks for Amount of something at StartTier and, when Step > 0,
// again every Step tiers up to EndTier (or forever when EndTier is unset).
// Lower tiers are more urgent. Satisfaction always fills occurrences from the
// lowest tier upward, one Amount at a time.
package desire

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/mini-economy/internal/catalog"
)

// Exhausted is returned by GetNextTier when a desire has no further occurrence.
const Exhausted = math.MinInt32

// ErrInvalidTier reports a query at a tier the desire does not occupy.
// Callers derive tiers from the walk, so this is always a caller bug.
var ErrInvalidTier = errors.New("tier is not an occurrence of the desire")

// ErrInvalidPattern reports a pattern that breaks the desire invariants.
var ErrInvalidPattern = errors.New("invalid desire pattern")

// Pattern is the tier-arithmetic payload shared by needs and wants.
type Pattern struct {
	Amount    float64 `json:"amount" yaml:"amount"`
	StartTier int     `json:"start_tier" yaml:"start_tier"`
	Step      int     `json:"step,omitempty" yaml:"step,omitempty"`
	EndTier   *int    `json:"end_tier,omitempty" yaml:"end_tier,omitempty"`
}

// Single is a desire that occurs once, at tier.
func Single(amount float64, tier int) Pattern {
	return Pattern{Amount: amount, StartTier: tier}
}

// Stretched repeats every step tiers from start to end inclusive.
func Stretched(amount float64, start, step, end int) Pattern {
	return Pattern{Amount: amount, StartTier: start, Step: step, EndTier: &end}
}

// Infinite repeats every step tiers from start without bound.
func Infinite(amount float64, start, step int) Pattern {
	return Pattern{Amount: amount, StartTier: start, Step: step}
}

// Validate checks the pattern invariants.
func (p Pattern) Validate() error {
	if !(p.Amount > 0) {
		return fmt.Errorf("amount %v must be positive: %w", p.Amount, ErrInvalidPattern)
	}
	if p.StartTier <= Exhausted {
		return fmt.Errorf("start tier %d collides with the exhausted marker: %w", p.StartTier, ErrInvalidPattern)
	}
	if p.Step < 0 {
		return fmt.Errorf("step %d must not be negative: %w", p.Step, ErrInvalidPattern)
	}
	if p.Step == 0 && p.EndTier != nil {
		return fmt.Errorf("single-occurrence desire cannot have an end tier: %w", ErrInvalidPattern)
	}
	if p.EndTier != nil && *p.EndTier < p.StartTier {
		return fmt.Errorf("end tier %d before start tier %d: %w", *p.EndTier, p.StartTier, ErrInvalidPattern)
	}
	return nil
}

// Steps is the number of occurrences, or -1 when EndTier is unset.
func (p Pattern) Steps() int {
	if p.EndTier == nil {
		return -1
	}
	if p.Step == 0 {
		return 1
	}
	return (*p.EndTier-p.StartTier)/p.Step + 1
}

// IsStretched reports whether the desire repeats.
func (p Pattern) IsStretched() bool {
	return p.Step > 0
}

// IsInfinite reports whether the desire repeats without bound.
func (p Pattern) IsInfinite() bool {
	return p.Step > 0 && p.EndTier == nil
}

// occurrences is Steps with a single desire counted as 1.
func (p Pattern) occurrences() int {
	if p.Step == 0 {
		return 1
	}
	return p.Steps()
}

// StepsOnTier reports whether tier is one of the desire's occurrences.
func (p Pattern) StepsOnTier(tier int) bool {
	if tier < p.StartTier {
		return false
	}
	if p.EndTier != nil && tier > *p.EndTier {
		return false
	}
	if p.Step == 0 {
		return tier == p.StartTier
	}
	return (tier-p.StartTier)%p.Step == 0
}

// TotalDesireAtTier is the cumulative quantity asked for by all occurrences
// at or below tier.
func (p Pattern) TotalDesireAtTier(tier int) float64 {
	effective := tier
	if p.EndTier != nil && *p.EndTier < effective {
		effective = *p.EndTier
	}
	if effective < p.StartTier {
		return 0
	}
	if p.Step == 0 {
		return p.Amount
	}
	return float64((effective-p.StartTier)/p.Step+1) * p.Amount
}

// TotalDesire is the quantity over every occurrence, or -1 when infinite.
func (p Pattern) TotalDesire() float64 {
	if p.IsInfinite() {
		return -1
	}
	return float64(p.occurrences()) * p.Amount
}

// GetNextTier returns the smallest occurrence strictly above tier, or
// Exhausted when there is none.
func (p Pattern) GetNextTier(tier int) int {
	if tier < p.StartTier {
		return p.StartTier
	}
	if p.Step == 0 {
		return Exhausted
	}
	next := p.StartTier + ((tier-p.StartTier)/p.Step+1)*p.Step
	if p.EndTier != nil && next > *p.EndTier {
		return Exhausted
	}
	return next
}

// LastTier is the final occurrence, or Exhausted for infinite desires.
func (p Pattern) LastTier() int {
	if p.IsInfinite() {
		return Exhausted
	}
	return p.StartTier + (p.occurrences()-1)*p.Step
}

// occurrenceIndex is the zero-based position of tier in the sequence.
// tier must satisfy StepsOnTier.
func (p Pattern) occurrenceIndex(tier int) int {
	if p.Step == 0 {
		return 0
	}
	return (tier - p.StartTier) / p.Step
}

// Kind discriminates what a desire is for.
type Kind uint8

const (
	KindNeed Kind = iota // A concrete product.
	KindWant             // An abstract want.
)

func (k Kind) String() string {
	switch k {
	case KindNeed:
		return "need"
	case KindWant:
		return "want"
	default:
		return "unknown"
	}
}

// Desire binds a pattern to exactly one product (KindNeed) or want (KindWant)
// and carries the running satisfaction for the current cycle.
type Desire struct {
	Pattern

	Kind    Kind              `json:"kind"`
	Product catalog.ProductID `json:"product,omitempty"`
	Want    catalog.WantID    `json:"want,omitempty"`

	// Reserved is quantity held back to keep producing the effect.
	Reserved float64 `json:"reserved"`
	// Satisfaction is the quantity satisfied so far, filled bottom-up.
	Satisfaction float64 `json:"satisfaction"`
	// IsConsumed means satisfying the desire destroys the product.
	IsConsumed bool `json:"is_consumed"`
}

// NewNeed creates a desire for a product.
func NewNeed(product catalog.ProductID, p Pattern, consumed bool) *Desire {
	return &Desire{Pattern: p, Kind: KindNeed, Product: product, IsConsumed: consumed}
}

// NewWant creates a desire for a want.
func NewWant(want catalog.WantID, p Pattern) *Desire {
	return &Desire{Pattern: p, Kind: KindWant, Want: want}
}

// Validate checks the pattern and that exactly one target is named.
func (d *Desire) Validate() error {
	if err := d.Pattern.Validate(); err != nil {
		return err
	}
	switch d.Kind {
	case KindNeed:
		if d.Product == "" || d.Want != "" {
			return fmt.Errorf("need must name exactly one product: %w", ErrInvalidPattern)
		}
	case KindWant:
		if d.Want == "" || d.Product != "" {
			return fmt.Errorf("want must name exactly one want: %w", ErrInvalidPattern)
		}
	default:
		return fmt.Errorf("unknown desire kind %d: %w", d.Kind, ErrInvalidPattern)
	}
	if d.Satisfaction < 0 {
		return fmt.Errorf("negative satisfaction %v: %w", d.Satisfaction, ErrInvalidPattern)
	}
	return nil
}

// Target returns the product or want id as a string, for logs and keys.
func (d *Desire) Target() string {
	if d.Kind == KindNeed {
		return string(d.Product)
	}
	return string(d.Want)
}

// TotalSatisfaction is Satisfaction measured in occurrences.
func (d *Desire) TotalSatisfaction() float64 {
	return d.Satisfaction / d.Amount
}

// SatisfiedAtTier returns how much of the running Satisfaction lands on the
// occurrence at tier.
func (d *Desire) SatisfiedAtTier(tier int) (float64, error) {
	if !d.StepsOnTier(tier) {
		return 0, fmt.Errorf("%s %s tier %d: %w", d.Kind, d.Target(), tier, ErrInvalidTier)
	}
	before := float64(d.occurrenceIndex(tier)) * d.Amount
	sat := d.Satisfaction - before
	if sat < 0 {
		return 0, nil
	}
	if sat > d.Amount {
		return d.Amount, nil
	}
	return sat, nil
}

// UnsatisfiedAtTier is what the occurrence at tier still asks for.
func (d *Desire) UnsatisfiedAtTier(tier int) (float64, error) {
	sat, err := d.SatisfiedAtTier(tier)
	if err != nil {
		return 0, err
	}
	return d.Amount - sat, nil
}

// IsFullySatisfied reports whether a bounded desire has nothing left to ask.
// Infinite desires are never fully satisfied.
func (d *Desire) IsFullySatisfied() bool {
	total := d.TotalDesire()
	if total < 0 {
		return false
	}
	return d.Satisfaction >= total-Epsilon
}

// Epsilon absorbs float drift when comparing quantities.
const Epsilon = 1e-9

func (d *Desire) String() string {
	end := "inf"
	if d.EndTier != nil {
		end = fmt.Sprint(*d.EndTier)
	}
	if d.Step == 0 {
		end = fmt.Sprint(d.StartTier)
	}
	return fmt.Sprintf("%s(%s x%g tiers %d..%s/%d)", d.Kind, d.Target(), d.Amount, d.StartTier, end, d.Step)
}
