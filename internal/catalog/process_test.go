package catalog

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessRun_LimitedByInputs(t *testing.T) {
	p := &Process{
		ID:      "burn",
		Inputs:  []Part{{Product: "wood", Amount: 2}},
		Capital: []Part{{Product: "stove", Amount: 1}},
		Outputs: []Part{{Want: "warmth", Amount: 3}, {Product: "ash", Amount: 1}},
	}
	products := map[ProductID]float64{"wood": 5, "stove": 10}

	res := p.Run(10, products, nil)

	assert.Equal(t, 2.5, res.Completed)
	assert.Equal(t, -5.0, res.ProductDelta["wood"])
	assert.Equal(t, 2.5, res.ProductDelta["ash"])
	assert.Equal(t, 2.5, res.ProductUsed["stove"])
	assert.Equal(t, 7.5, res.WantDelta["warmth"])

	// Run is pure.
	assert.Equal(t, 5.0, products["wood"])
	again := p.Run(10, products, nil)
	assert.Equal(t, res, again)
}

func TestProcessRun_RequestedIterationsCap(t *testing.T) {
	p := &Process{
		Capital: []Part{{Product: "loom", Amount: 1}},
		Outputs: []Part{{Want: "craft", Amount: 1}},
	}
	res := p.Run(3, map[ProductID]float64{"loom": 100}, nil)
	assert.Equal(t, 3.0, res.Completed)
	assert.Equal(t, 3.0, res.ProductUsed["loom"])
}

func TestProcessRun_WantInputs(t *testing.T) {
	p := &Process{
		Inputs:  []Part{{Want: "labour", Amount: 2}},
		Outputs: []Part{{Want: "craft", Amount: 1}},
	}
	res := p.Run(5, nil, map[WantID]float64{"labour": 4})
	assert.Equal(t, 2.0, res.Completed)
	assert.Equal(t, -4.0, res.WantDelta["labour"])
	assert.Equal(t, 2.0, res.WantDelta["craft"])
}

func TestProcessMaxIterations_UnboundedWithoutInputs(t *testing.T) {
	p := &Process{Outputs: []Part{{Want: "calm", Amount: 1}}}
	assert.True(t, math.IsInf(p.MaxIterations(nil, nil), 1))
	assert.Equal(t, 0.0, p.Run(0, nil, nil).Completed)
}
