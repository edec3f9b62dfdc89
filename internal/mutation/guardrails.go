package mutation

import "github.com/astra-ventures/pulse/internal/drive"

// Guardrails is the fixed bound table of spec.md §4.11: the hard limits
// self-modification cannot exceed, independent of the drive engine's own
// bookkeeping. Grounded on evolution/guardrails.py's GuardrailLimits in
// the kept original implementation — the brainstem that the agent can
// rewire its cortex around but never itself rewire.
//
// The per-mutation delta bounds the source enforces (max_weight_delta,
// max_threshold_delta, max_rate_delta) are kept here as documented
// limits but are not applied as a second clamp ahead of the absolute
// range: spec.md's own worked mutation scenario proposes weight=5.0
// against a drive starting at its configured default weight and expects
// the result clamped straight to the absolute max, not to
// current+max_weight_delta. Absolute-range clamping alone satisfies
// that scenario; delta-capping would not.
type Guardrails struct {
	MinWeight, MaxWeight         float64
	MinRate, MaxRate             float64
	MinThreshold, MaxThreshold   float64
	MinTurnsPerHour, MaxTurnsPerHour int
	MinCooldownSeconds, MaxCooldownSeconds int64
	MaxWeightDelta, MaxThresholdDelta, MaxRateDelta float64
	MaxMutationsPerHour int
}

// DefaultGuardrails returns the bound table spec.md §4.11 documents.
func DefaultGuardrails() Guardrails {
	return Guardrails{
		MinWeight: drive.MinWeight, MaxWeight: drive.MaxWeight,
		MinRate: drive.MinRate, MaxRate: drive.MaxRate,
		MinThreshold: 0.2, MaxThreshold: 0.95,
		MinTurnsPerHour: 1, MaxTurnsPerHour: 30,
		MinCooldownSeconds: 60, MaxCooldownSeconds: 3600,
		MaxWeightDelta: 0.5, MaxThresholdDelta: 0.15, MaxRateDelta: 0.02,
		MaxMutationsPerHour: 10,
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampWeight clamps a proposed drive weight to [MinWeight, MaxWeight].
func (g Guardrails) ClampWeight(proposed float64) (value float64, clamped bool) {
	value = clampFloat(proposed, g.MinWeight, g.MaxWeight)
	return value, value != proposed
}

// ClampRate clamps a proposed drive pressure rate to [MinRate, MaxRate].
func (g Guardrails) ClampRate(proposed float64) (value float64, clamped bool) {
	value = clampFloat(proposed, g.MinRate, g.MaxRate)
	return value, value != proposed
}

// ClampThreshold clamps a proposed evaluator threshold to
// [MinThreshold, MaxThreshold].
func (g Guardrails) ClampThreshold(proposed float64) (value float64, clamped bool) {
	value = clampFloat(proposed, g.MinThreshold, g.MaxThreshold)
	return value, value != proposed
}

// ClampCooldownSeconds clamps a proposed cooldown duration.
func (g Guardrails) ClampCooldownSeconds(proposed int64) (value int64, clamped bool) {
	value = clampInt64(proposed, g.MinCooldownSeconds, g.MaxCooldownSeconds)
	return value, value != proposed
}

// ClampTurnsPerHour clamps a proposed trigger-rate cap.
func (g Guardrails) ClampTurnsPerHour(proposed int) (value int, clamped bool) {
	value = clampInt(proposed, g.MinTurnsPerHour, g.MaxTurnsPerHour)
	return value, value != proposed
}

// ClampInitialWeight clamps the starting weight of a newly created
// drive; a fresh drive has no "current" value to measure a delta
// against, so only the absolute range applies.
func (g Guardrails) ClampInitialWeight(proposed float64) (value float64, clamped bool) {
	return g.ClampWeight(proposed)
}
