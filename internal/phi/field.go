package phi

// ConjugateField represents any entity with conjugate charge/discharge
// dynamics. A pop's desire set is one: satisfied quantity against demand.
type ConjugateField interface {
	// ChargingPressure returns what has been accumulated (satisfied quantity, supply).
	ChargingPressure() float64
	// DischargingPressure returns what is being asked for (targets, demand).
	DischargingPressure() float64
}

// NullPoint returns the absolute pressure differential.
func NullPoint(f ConjugateField) float64 {
	cp := f.ChargingPressure()
	dp := f.DischargingPressure()
	if cp > dp {
		return cp - dp
	}
	return dp - cp
}

// HealthRatio returns 0.0–1.0 indicating how balanced the conjugate pair is.
// Ratios inside the golden band Φ⁻¹..Φ count as fully healthy.
func HealthRatio(f ConjugateField) float64 {
	dp := f.DischargingPressure()
	if dp < Agnosis {
		dp = Agnosis
	}
	ratio := f.ChargingPressure() / dp

	if ratio >= Matter && ratio <= Being {
		return 1.0
	}

	deviation := ratio - 1.0
	if deviation < 0 {
		deviation = -deviation
	}
	health := 1.0 - (deviation / Totality)
	if health < 0 {
		return 0
	}
	return health
}
