package phi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type pair struct{ charge, discharge float64 }

func (p pair) ChargingPressure() float64    { return p.charge }
func (p pair) DischargingPressure() float64 { return p.discharge }

func TestHealthRatio(t *testing.T) {
	tests := []struct {
		name string
		f    pair
		want float64
	}{
		{"balanced", pair{10, 10}, 1},
		{"inside golden band", pair{7, 10}, 1},
		{"empty", pair{0, 10}, 1 - 1/Totality},
		{"nothing asked", pair{0, 0}, 1 - 1/Totality},
		{"far over", pair{100, 10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, HealthRatio(tt.f), 1e-9)
		})
	}
}

func TestNullPoint(t *testing.T) {
	assert.Equal(t, 3.0, NullPoint(pair{7, 10}))
	assert.Equal(t, 3.0, NullPoint(pair{10, 7}))
}

func TestTierRatioIsPhi(t *testing.T) {
	assert.InDelta(t, 1.618034, TierRatio, 1e-6)
	assert.InDelta(t, 1.0, Matter*Being, 1e-12)
}
