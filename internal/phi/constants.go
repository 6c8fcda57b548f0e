// Package phi provides the engine's constants derived from the golden ratio.
// Tier discounting, supply variation and health bands all trace back to Φ
// so that no tuning value is an arbitrary magic number.
package phi

import "math"

// Phi is the golden ratio.
const Phi = 1.6180339887498948

// Emanation constants derived from powers of Phi.
var (
	// Agnosis (Φ⁻³): ~24%, the floor on demand when computing health ratios.
	Agnosis = math.Pow(Phi, -3) // 0.23606...

	// Matter (Φ⁻¹): ~62%, the lower edge of the healthy band and the
	// default supply noise amplitude.
	Matter = math.Pow(Phi, -1) // 0.61803...

	// Being (Φ¹): ~1.618, the upper edge of the healthy band.
	Being = Phi // 1.61803...

	// Totality (Φ³): ~4.236, the ceiling beyond which ratios are meaningless.
	Totality = math.Pow(Phi, 3) // 4.23606...
)

// TierRatio is the factor by which one tier of priority discounts the next.
// Satisfying a desire one tier higher is worth 1/TierRatio as much.
var TierRatio = Being
