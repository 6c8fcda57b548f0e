package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-economy/internal/agents"
	"github.com/talgya/mini-economy/internal/catalog"
	"github.com/talgya/mini-economy/internal/economy"
	"github.com/talgya/mini-economy/internal/engine"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "econ.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testPop(t *testing.T) (*catalog.Catalog, *agents.Pop) {
	t.Helper()
	cat, err := catalog.New(
		[]catalog.Product{{ID: "grain"}, {ID: "cloak", Wants: map[catalog.WantID]float64{"warmth": 1}}},
		[]catalog.Want{{ID: "warmth"}},
		nil,
	)
	require.NoError(t, err)

	pop := agents.NewPop(3, "hill", 2, cat)
	require.NoError(t, pop.Instantiate(agents.Definition{Name: "human", Desires: []agents.DesireDef{
		{Product: "grain", Amount: 1, Tier: 0, Consumed: true},
		{Want: "warmth", Amount: 1, Tier: 1},
	}}))
	return cat, pop
}

func TestDB_SaveAndRestorePops(t *testing.T) {
	ctx := context.Background()
	db := openTemp(t)
	cat, pop := testPop(t)

	pop.Property.AddQuantity("grain", 5)
	pop.Property.AddQuantity("cloak", 4)
	pop.Desires.UnclaimedWants["warmth"] = 1.5
	report, err := pop.RunCycle()
	require.NoError(t, err)
	require.Equal(t, uint64(1), report.Cycle)

	require.NoError(t, db.SavePops(ctx, []*agents.Pop{pop}))
	var defs string
	require.NoError(t, db.conn.Get(&defs, "SELECT definitions_json FROM pops WHERE id = ?", 3))
	assert.JSONEq(t, `["human"]`, defs)

	fresh := agents.NewPop(3, "hill", 2, cat)
	require.NoError(t, fresh.Instantiate(agents.Definition{Name: "human", Desires: []agents.DesireDef{
		{Product: "grain", Amount: 1, Tier: 0, Consumed: true},
		{Want: "warmth", Amount: 1, Tier: 1},
	}}))
	other := agents.NewPop(9, "new", 1, cat)

	n, err := db.RestorePops(ctx, []*agents.Pop{fresh, other})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, uint64(1), fresh.Cycles)

	assert.Equal(t, pop.Property.Holding("grain"), fresh.Property.Holding("grain"))
	assert.Equal(t, pop.Property.Holding("cloak"), fresh.Property.Holding("cloak"))
	assert.Equal(t, economy.Holding{Total: 3, Reserved: 2, Consumed: 2}, fresh.Property.Holding("grain"))

	for i, d := range fresh.Desires.All() {
		assert.Equal(t, pop.Desires.All()[i].Satisfaction, d.Satisfaction)
		assert.Equal(t, pop.Desires.All()[i].Reserved, d.Reserved)
	}
	assert.Equal(t, pop.Desires.ProductsSatisfied, fresh.Desires.ProductsSatisfied)
	assert.Equal(t, pop.Desires.UnclaimedWants, fresh.Desires.UnclaimedWants)

	// The restored pop reports the saved cycle, then carries on from it.
	report.Residual = agents.Residual{}
	assert.Equal(t, report, fresh.Report())

	next, err := fresh.RunCycle()
	require.NoError(t, err)
	want, err := pop.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next.Cycle)
	assert.Equal(t, want, next)
	assert.Equal(t, pop.Property.Holding("grain"), fresh.Property.Holding("grain"))
}

func TestDB_CycleReportsRoundTripCompressed(t *testing.T) {
	ctx := context.Background()
	db := openTemp(t)
	_, pop := testPop(t)
	pop.Property.AddQuantity("grain", 1)

	for cycle := uint64(1); cycle <= 3; cycle++ {
		r, err := pop.RunCycle()
		require.NoError(t, err)
		require.NoError(t, db.RecordCycle(ctx, cycle, []*agents.Pop{pop}, []agents.CycleReport{r}))
	}

	got, err := db.RecentReports(ctx, pop.ID, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(3), got[0].Cycle)
	assert.Equal(t, uint64(2), got[1].Cycle)
	assert.Equal(t, "hill", got[0].PopName)

	last, err := db.LastCycle()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), last)
}

func TestDB_MetaAndEvents(t *testing.T) {
	ctx := context.Background()
	db := openTemp(t)

	v, err := db.GetMeta("missing")
	require.NoError(t, err)
	assert.Empty(t, v)
	last, err := db.LastCycle()
	require.NoError(t, err)
	assert.Zero(t, last)

	require.NoError(t, db.SaveMeta("seed", "42"))
	v, err = db.GetMeta("seed")
	require.NoError(t, err)
	assert.Equal(t, "42", v)

	require.NoError(t, db.SaveEvents(ctx, []engine.Event{
		{Cycle: 1, Description: "Spring begins", Category: "season"},
		{Cycle: 2, Description: "hill fell 1 short", Category: "shortfall"},
	}))
	events, err := db.RecentEvents(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "shortfall", events[0].Category)
	assert.Equal(t, uint64(2), events[0].Cycle)
}

func TestCompressReport(t *testing.T) {
	require.NotNil(t, encoder)
	require.NotNil(t, decoder)

	r := agents.CycleReport{
		Pop: 1, PopName: "x", Cycle: 4, FullTier: 7, Value: 2.5,
		Residual: agents.Residual{Products: map[catalog.ProductID]float64{"grain": 1}},
	}
	blob, err := compressReport(r)
	require.NoError(t, err)
	back, err := decompressReport(blob)
	require.NoError(t, err)
	assert.Equal(t, r, back)

	_, err = decompressReport([]byte("not zstd"))
	require.Error(t, err)
}
