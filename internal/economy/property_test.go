package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProperty_ReserveAndConsume(t *testing.T) {
	p := NewProperty()
	p.AddQuantity("bread", 10)
	assert.Equal(t, 10.0, p.GetQuantity("bread"))

	require.NoError(t, p.Reserve("bread", 4))
	assert.Equal(t, 6.0, p.GetQuantity("bread"))

	p.AddQuantity("bread", -4)
	h := p.Holding("bread")
	assert.Equal(t, Holding{Total: 6, Reserved: 4, Consumed: 4}, h)
	assert.Equal(t, 6.0, h.Available())

	err := p.Reserve("bread", 7)
	require.ErrorIs(t, err, ErrInsufficient)
	assert.Equal(t, 6.0, p.GetQuantity("bread"))

	p.ResetCycle()
	assert.Equal(t, Holding{Total: 6}, p.Holding("bread"))
}

func TestProperty_RemovalClampedToTotal(t *testing.T) {
	p := NewProperty()
	p.AddQuantity("salt", 2)
	p.AddQuantity("salt", -5)
	assert.Equal(t, Holding{Total: 0}, p.Holding("salt"))
}

func TestProperty_UnreservedRemovalKeepsAvailabilityHonest(t *testing.T) {
	p := NewProperty()
	p.AddQuantity("salt", 10)
	require.NoError(t, p.Reserve("salt", 4))

	p.AddQuantity("salt", -7)
	h := p.Holding("salt")
	assert.Equal(t, Holding{Total: 3, Reserved: 4, Consumed: 4}, h)
	assert.Equal(t, 3.0, h.Available())
}

func TestProperty_ProductsSortedAndRestorable(t *testing.T) {
	p := NewProperty()
	p.SetHolding("wool", Holding{Total: 3, Reserved: 1})
	p.AddQuantity("bread", 1)
	assert.Equal(t, 2.0, p.GetQuantity("wool"))
	assert.Equal(t, []string{"bread", "wool"}, func() []string {
		var out []string
		for _, id := range p.Products() {
			out = append(out, string(id))
		}
		return out
	}())
}

func TestProperty_ZeroReserveIsNoop(t *testing.T) {
	p := NewProperty()
	require.NoError(t, p.Reserve("nothing", 0))
	assert.Empty(t, p.Products())
}
