package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-economy/internal/catalog"
	"github.com/talgya/mini-economy/internal/desire"
	"github.com/talgya/mini-economy/internal/economy"
)

func grainCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(
		[]catalog.Product{{ID: "grain", Category: catalog.CategoryFood}, {ID: "salt"}},
		[]catalog.Want{{ID: "rest"}},
		nil,
	)
	require.NoError(t, err)
	return c
}

func TestTierDesireEquivalence(t *testing.T) {
	assert.Equal(t, 1.0, TierDesireEquivalence(7, 7))
	for _, pair := range [][2]int{{0, 3}, {5, -2}, {10, 1}} {
		a, b := pair[0], pair[1]
		assert.InDelta(t, 1/TierDesireEquivalence(b, a), TierDesireEquivalence(a, b), 1e-12)
	}
	assert.Greater(t, TierDesireEquivalence(1, 0), 1.0)
}

func TestAddDesire_Consolidates(t *testing.T) {
	ds := NewDesires(grainCatalog(t), economy.NewProperty())

	require.NoError(t, ds.AddDesire(desire.NewNeed("grain", desire.Stretched(2, 0, 1, 4), false)))
	require.NoError(t, ds.AddDesire(desire.NewNeed("grain", desire.Stretched(3, 0, 1, 4), false)))

	require.Len(t, ds.Needs, 1)
	assert.Equal(t, 5.0, ds.Needs[0].Amount)
	assert.Equal(t, ds.Needs[0].TotalDesire(), ds.ProductTargets["grain"])
	assert.Equal(t, 25.0, ds.ProductTargets["grain"])
	assert.Equal(t, []catalog.ProductID{"grain"}, ds.DesiredProducts)
	assert.Len(t, ds.StretchedNeeds, 1)
	assert.Equal(t, StateClassified, ds.State())
}

func TestAddDesire_IncompatibleRepetition(t *testing.T) {
	ds := NewDesires(grainCatalog(t), economy.NewProperty())

	require.NoError(t, ds.AddDesire(desire.NewNeed("grain", desire.Stretched(1, 0, 1, 5), false)))
	err := ds.AddDesire(desire.NewNeed("grain", desire.Stretched(1, 0, 2, 5), false))
	require.ErrorIs(t, err, ErrIncompatibleDesire)
	assert.Equal(t, 1.0, ds.Needs[0].Amount)
}

func TestAddDesire_Rejects(t *testing.T) {
	ds := NewDesires(grainCatalog(t), economy.NewProperty())

	err := ds.AddDesire(desire.NewNeed("bread", desire.Single(1, 0), false))
	require.ErrorIs(t, err, catalog.ErrUnknownProduct)

	err = ds.AddDesire(desire.NewWant("joy", desire.Single(1, 0)))
	require.ErrorIs(t, err, catalog.ErrUnknownWant)

	err = ds.AddDesire(desire.NewNeed("grain", desire.Single(0, 0), false))
	require.ErrorIs(t, err, desire.ErrInvalidPattern)
}

func TestAddDesire_InfiniteTargetIsUnbounded(t *testing.T) {
	ds := NewDesires(grainCatalog(t), economy.NewProperty())

	require.NoError(t, ds.AddDesire(desire.NewNeed("grain", desire.Single(4, 0), false)))
	assert.Equal(t, 4.0, ds.ProductTargets["grain"])

	require.NoError(t, ds.AddDesire(desire.NewNeed("grain", desire.Infinite(1, 2, 3), false)))
	assert.Equal(t, -1.0, ds.ProductTargets["grain"])
	assert.Len(t, ds.InfiniteNeeds, 1)

	require.NoError(t, ds.AddDesire(desire.NewWant("rest", desire.Infinite(1, 0, 1))))
	assert.Equal(t, -1.0, ds.WantTargets["rest"])
	assert.Len(t, ds.InfiniteWants, 1)
	assert.Len(t, ds.StretchedWants, 1)
}

func TestNeedsFor_BoundedBeforeInfinite(t *testing.T) {
	ds := NewDesires(grainCatalog(t), economy.NewProperty())
	inf := desire.NewNeed("grain", desire.Infinite(1, 0, 1), false)
	single := desire.NewNeed("grain", desire.Single(1, 0), false)
	require.NoError(t, ds.AddDesire(inf))
	require.NoError(t, ds.AddDesire(single))

	assert.Equal(t, []*desire.Desire{single, inf}, ds.NeedsFor("grain"))
}

func TestFullTierAndValue(t *testing.T) {
	ds := NewDesires(grainCatalog(t), economy.NewProperty())
	assert.Equal(t, desire.Exhausted, ds.FullTier())

	a := desire.NewNeed("grain", desire.Stretched(1, 0, 1, 3), false)
	require.NoError(t, ds.AddDesire(a))

	assert.Equal(t, -1, ds.FullTier())
	assert.Zero(t, ds.SatisfactionValue())

	a.Satisfaction = 2.5
	assert.Equal(t, 1, ds.FullTier())
	want := 1 + TierDesireEquivalence(0, 1) + 0.5*TierDesireEquivalence(0, 2)
	assert.InDelta(t, want, ds.SatisfactionValue(), 1e-12)

	a.Satisfaction = 4
	assert.Equal(t, 3, ds.FullTier())
}

func TestHealth_TracksSatisfaction(t *testing.T) {
	ds := NewDesires(grainCatalog(t), economy.NewProperty())
	d := desire.NewNeed("grain", desire.Single(10, 0), false)
	require.NoError(t, ds.AddDesire(d))

	low := ds.Health()
	assert.Equal(t, 10.0, ds.Imbalance())
	d.Satisfaction = 4
	assert.Equal(t, 6.0, ds.Imbalance())
	d.Satisfaction = 10
	high := ds.Health()
	assert.Greater(t, high, low)
	assert.Zero(t, ds.Imbalance())
}

func TestResetSatisfaction(t *testing.T) {
	ds := NewDesires(grainCatalog(t), economy.NewProperty())
	d := desire.NewNeed("grain", desire.Single(3, 0), false)
	require.NoError(t, ds.AddDesire(d))
	d.Satisfaction, d.Reserved = 3, 3
	ds.ProductsSatisfied["grain"] = 3

	require.NoError(t, ds.ResetSatisfaction())
	assert.Zero(t, d.Satisfaction)
	assert.Zero(t, d.Reserved)
	assert.Zero(t, ds.ProductsSatisfied["grain"])
	assert.Equal(t, StateIdle, ds.State())
}
