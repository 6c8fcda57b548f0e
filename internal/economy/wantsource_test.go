package economy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-economy/internal/catalog"
)

func warmthCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(
		[]catalog.Product{
			{ID: "cloak", Wants: map[catalog.WantID]float64{"warmth": 2}},
			{ID: "stove", UseProcess: "heat"},
			{ID: "firewood", ConsumptionProcess: "burn"},
			{ID: "ash"},
		},
		[]catalog.Want{{ID: "warmth"}, {ID: "smoke"}},
		[]catalog.Process{
			{
				ID:      "heat",
				Capital: []catalog.Part{{Product: "stove", Amount: 1}},
				Outputs: []catalog.Part{{Want: "warmth", Amount: 3}},
			},
			{
				ID:      "burn",
				Inputs:  []catalog.Part{{Product: "firewood", Amount: 1}},
				Outputs: []catalog.Part{{Want: "warmth", Amount: 1}, {Want: "smoke", Amount: 1}, {Product: "ash", Amount: 0.5}},
			},
		},
	)
	require.NoError(t, err)
	return c
}

func TestResolver_SourcesInDrawOrder(t *testing.T) {
	r := NewResolver(warmthCatalog(t))
	sources, err := r.Sources("warmth")
	require.NoError(t, err)
	require.Len(t, sources, 3)

	assert.Equal(t, SourceOwnership, sources[0].Kind)
	assert.Equal(t, catalog.ProductID("cloak"), sources[0].Product)
	assert.Equal(t, 2.0, sources[0].Yield)

	assert.Equal(t, SourceUse, sources[1].Kind)
	assert.Equal(t, 3.0, sources[1].Yield)

	assert.Equal(t, SourceConsumption, sources[2].Kind)
	assert.Equal(t, catalog.ProductID("firewood"), sources[2].Product)

	_, err = r.Sources("missing")
	require.ErrorIs(t, err, catalog.ErrUnknownWant)
}

func TestResolver_ProjectedWantOutputIsIdempotent(t *testing.T) {
	r := NewResolver(warmthCatalog(t))

	for i := 0; i < 3; i++ {
		got, err := r.ProjectedWantOutput("warmth", "cloak", 10)
		require.NoError(t, err)
		assert.Equal(t, 20.0, got)
	}

	got, err := r.ProjectedWantOutput("warmth", "stove", 2)
	require.NoError(t, err)
	assert.Equal(t, 6.0, got)

	got, err = r.ProjectedWantOutput("warmth", "firewood", 4)
	require.NoError(t, err)
	assert.Equal(t, 4.0, got)

	got, err = r.ProjectedWantOutput("warmth", "ash", 4)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestResolver_PlanPartialAndApply(t *testing.T) {
	r := NewResolver(warmthCatalog(t))
	sources, err := r.Sources("warmth")
	require.NoError(t, err)
	burn := sources[2]

	products := map[catalog.ProductID]float64{"firewood": 10}
	wants := map[catalog.WantID]float64{}

	c := r.Plan(burn, "warmth", 4, products, wants)
	assert.Equal(t, 4.0, c.Yield)
	assert.Equal(t, 4.0, c.Iterations)
	assert.Equal(t, map[catalog.ProductID]float64{"firewood": -4, "ash": 2}, c.ProductDelta)
	assert.Equal(t, map[catalog.WantID]float64{"smoke": 4}, c.WantDelta)
	assert.Equal(t, 10.0, products["firewood"], "plan must not touch stock")

	c.ApplyTo(products, wants)
	assert.Equal(t, 6.0, products["firewood"])
	assert.Equal(t, 2.0, products["ash"])
	assert.Equal(t, 4.0, wants["smoke"])

	more := r.Plan(burn, "warmth", math.Inf(1), products, wants)
	assert.Equal(t, 6.0, more.Yield)
	c.Merge(more)
	assert.Equal(t, 10.0, c.Yield)
	assert.Equal(t, -10.0, c.ProductDelta["firewood"])
}

func TestResolver_CommitAgainstLedger(t *testing.T) {
	r := NewResolver(warmthCatalog(t))
	sources, err := r.Sources("warmth")
	require.NoError(t, err)

	ledger := NewProperty()
	ledger.AddQuantity("cloak", 5)
	ledger.AddQuantity("stove", 1)
	ledger.AddQuantity("firewood", 8)
	unclaimed := map[catalog.WantID]float64{}

	stock := map[catalog.ProductID]float64{"cloak": 5, "stove": 1, "firewood": 8}
	var delivered float64
	for _, src := range sources {
		c := r.Plan(src, "warmth", math.Inf(1), stock, unclaimed)
		got, err := r.Commit(c, ledger, unclaimed)
		require.NoError(t, err)
		assert.Equal(t, c.Yield, got)
		delivered += got
	}

	assert.Equal(t, 10.0+3.0+8.0, delivered)
	assert.Equal(t, Holding{Total: 5, Reserved: 5}, ledger.Holding("cloak"))
	assert.Equal(t, Holding{Total: 1, Reserved: 1}, ledger.Holding("stove"))
	assert.Equal(t, Holding{Total: 0, Reserved: 8, Consumed: 8}, ledger.Holding("firewood"))
	assert.Equal(t, Holding{Total: 4}, ledger.Holding("ash"))
	assert.Equal(t, 8.0, unclaimed["smoke"])
}

func TestResolver_CommitShortWhenLedgerShrank(t *testing.T) {
	r := NewResolver(warmthCatalog(t))
	sources, err := r.Sources("warmth")
	require.NoError(t, err)

	c := r.Plan(sources[0], "warmth", 10, map[catalog.ProductID]float64{"cloak": 5}, nil)
	require.Equal(t, 10.0, c.Yield)

	ledger := NewProperty()
	ledger.AddQuantity("cloak", 2)
	got, err := r.Commit(c, ledger, map[catalog.WantID]float64{})
	require.NoError(t, err)
	assert.Equal(t, 4.0, got)
}

func TestContribution_DrainsOnlyWhenStockFalls(t *testing.T) {
	r := NewResolver(warmthCatalog(t))
	sources, err := r.Sources("warmth")
	require.NoError(t, err)
	stock := map[catalog.ProductID]float64{"cloak": 1, "stove": 1, "firewood": 1}
	for _, src := range sources {
		c := r.Plan(src, "warmth", 1, stock, map[catalog.WantID]float64{})
		assert.True(t, c.Drains(), src.Kind.String())
	}

	// A process that hands back what it burns never drains.
	loop := &catalog.Process{
		ID:      "smoulder",
		Inputs:  []catalog.Part{{Product: "firewood", Amount: 1}},
		Outputs: []catalog.Part{{Product: "firewood", Amount: 1}, {Want: "warmth", Amount: 1}},
	}
	src := Source{Kind: SourceConsumption, Product: "firewood", Process: loop, Yield: 1}
	c := r.Plan(src, "warmth", 1, stock, map[catalog.WantID]float64{})
	assert.Equal(t, 1.0, c.Yield)
	assert.False(t, c.Drains())
	assert.False(t, Contribution{Source: sources[0]}.Drains())
}
