// SPDX-License-Identifier: MIT
package coherence

// Integrator reduces the coherence matrix to one scalar in [0,1] and applies
// exponential smoothing. Two persistent scalars only; this is a continuous
// filter, not a state machine.
type Integrator struct {
	alpha    float64
	current  float64 // Raw value of the most recent valid block.
	smoothed float64 // EMA across blocks, zero-initialized.
}

// NewIntegrator creates an integrator with the given smoothing factor.
// alpha must be in (0,1]; the engine validates this at construction.
func NewIntegrator(alpha float64) *Integrator {
	return &Integrator{alpha: alpha}
}

// Integrate reduces matrix (numChannels x numChannels, zero diagonal) to the
// mean off-diagonal value, remaps it from the theoretical [-1,1] range to
// [0,1], clamps against floating-point overshoot, and folds it into the
// moving average. Returns the updated smoothed value.
func (g *Integrator) Integrate(matrix [][]float64, numChannels int) float64 {
	sum := 0.0
	for i := 0; i < numChannels; i++ {
		row := matrix[i]
		for j := 0; j < numChannels; j++ {
			if i != j {
				sum += row[j]
			}
		}
	}
	raw := sum / float64(numChannels*(numChannels-1))

	// Phase-coherence cosines can be negative, so raw lives in [-1,1].
	raw = (raw + 1.0) / 2.0
	if raw < 0.0 {
		raw = 0.0
	} else if raw > 1.0 {
		raw = 1.0
	}

	g.current = raw
	g.smoothed = g.alpha*raw + (1.0-g.alpha)*g.smoothed
	return g.smoothed
}

// Current returns the raw (unsmoothed) value of the last valid block.
// Callers needing instantaneous response read this; callers needing a
// noise-free signal read Smoothed.
func (g *Integrator) Current() float64 {
	return g.current
}

// Smoothed returns the exponentially smoothed value.
func (g *Integrator) Smoothed() float64 {
	return g.smoothed
}

// Reset zeroes both scalars.
func (g *Integrator) Reset() {
	g.current = 0.0
	g.smoothed = 0.0
}
