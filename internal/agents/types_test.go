package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/talgya/mini-economy/internal/catalog"
	"github.com/talgya/mini-economy/internal/desire"
)

const speciesYAML = `
name: human
kind: species
desires:
  - {product: grain, amount: 1, tier: 0, step: 1, end_tier: 4, consumed: true}
  - {want: rest, amount: 2, layer: belonging, tier: 0}
`

func TestDefinition_BuildScalesAndShiftsLayers(t *testing.T) {
	var def Definition
	require.NoError(t, yaml.Unmarshal([]byte(speciesYAML), &def))

	desires, err := def.Build(10)
	require.NoError(t, err)
	require.Len(t, desires, 2)

	grain := desires[0]
	assert.Equal(t, desire.KindNeed, grain.Kind)
	assert.Equal(t, 10.0, grain.Amount)
	assert.True(t, grain.IsConsumed)
	require.NotNil(t, grain.EndTier)
	assert.Equal(t, 4, *grain.EndTier)

	rest := desires[1]
	assert.Equal(t, desire.KindWant, rest.Kind)
	assert.Equal(t, 20.0, rest.Amount)
	assert.Equal(t, LayerBelonging.BaseTier(), rest.StartTier)
}

func TestDefinition_BuildRejects(t *testing.T) {
	cases := map[string]DesireDef{
		"both targets": {Product: "grain", Want: "rest", Amount: 1},
		"no target":    {Amount: 1},
		"bad layer":    {Product: "grain", Amount: 1, Layer: "royalty"},
		"zero amount":  {Product: "grain"},
	}
	for name, dd := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Definition{Name: "x", Desires: []DesireDef{dd}}.Build(1)
			require.Error(t, err)
		})
	}
}

func TestParseLayer(t *testing.T) {
	for _, l := range []Layer{LayerSurvival, LayerSafety, LayerBelonging, LayerEsteem, LayerPurpose} {
		got, err := ParseLayer(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}
	got, err := ParseLayer("")
	require.NoError(t, err)
	assert.Equal(t, LayerSurvival, got)
}

func TestPop_InstantiateConsolidatesDefinitions(t *testing.T) {
	pop := NewPop(1, "valley", 5, grainCatalog(t))
	def := Definition{Name: "human", Desires: []DesireDef{{Product: "grain", Amount: 1, Tier: 0}}}
	culture := Definition{Name: "farmers", Desires: []DesireDef{{Product: "grain", Amount: 2, Tier: 0}}}

	require.NoError(t, pop.Instantiate(def, culture))
	require.Len(t, pop.Desires.Needs, 1)
	assert.Equal(t, 15.0, pop.Desires.Needs[0].Amount)
	assert.Equal(t, []string{"human", "farmers"}, pop.Definitions)

	err := pop.Instantiate(Definition{Name: "odd", Desires: []DesireDef{{Product: "bread", Amount: 1}}})
	require.ErrorIs(t, err, catalog.ErrUnknownProduct)
}

func TestPop_RunCycle(t *testing.T) {
	pop := NewPop(7, "valley", 2, grainCatalog(t))
	require.NoError(t, pop.Instantiate(Definition{Name: "human", Desires: []DesireDef{
		{Product: "grain", Amount: 1, Tier: 0, Step: 1, EndTier: intPtr(2), Consumed: true},
	}}))
	pop.Property.AddQuantity("grain", 10)

	report, err := pop.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, PopID(7), report.Pop)
	assert.Equal(t, uint64(1), report.Cycle)
	assert.Equal(t, 2, report.FullTier)
	assert.Equal(t, 6.0, report.ProductsSatisfied["grain"])
	assert.Zero(t, report.Residual.ProductTotal())
	assert.Equal(t, 1.0, report.Health)
	assert.Zero(t, report.Imbalance)
	assert.Equal(t, 4.0, pop.Property.Holding("grain").Total)

	report, err = pop.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), report.Cycle)
	assert.Equal(t, 4.0, report.ProductsSatisfied["grain"])
	assert.Equal(t, 1, report.FullTier)
	assert.Equal(t, 2.0, report.Imbalance)
	assert.Zero(t, pop.Property.Holding("grain").Total)
}

func intPtr(v int) *int { return &v }
