// SPDX-License-Identifier: MIT
package coherence

import "math"

// silentEpsilon is the squared global mean-magnitude threshold below which a
// block is treated as silent and the matrix zeroed instead of normalizing by
// a near-zero denominator.
const silentEpsilon = 1e-10

// CrossSpectral builds the N x N pairwise coherence matrix for one block.
// Entry (i,j) for i != j is the mean cross-power of channels i and j,
// normalized by the squared global mean magnitude, weighted by the mean
// phase alignment cos(phase_i - phase_j) across bins. The diagonal is always
// zero. The matrix is owned by the builder and overwritten in place every
// block.
type CrossSpectral struct {
	numChannels int
	bins        int
	matrix      [][]float64
}

// NewCrossSpectral creates a builder for numChannels channels with bins
// frequency bins per channel.
func NewCrossSpectral(numChannels, bins int) *CrossSpectral {
	matrix := make([][]float64, numChannels)
	for i := range matrix {
		matrix[i] = make([]float64, numChannels)
	}
	return &CrossSpectral{
		numChannels: numChannels,
		bins:        bins,
		matrix:      matrix,
	}
}

// Update recomputes the matrix from the per-channel magnitude and phase
// arrays of the current block. Allocation-free; this is the O(N^2 * F) step
// that dominates the per-block cost.
func (c *CrossSpectral) Update(magnitudes, phases [][]float64) {
	// Global mean magnitude over all channels and bins, for normalization.
	sum := 0.0
	for i := 0; i < c.numChannels; i++ {
		for _, m := range magnitudes[i] {
			sum += m
		}
	}
	avgMagnitude := sum / float64(c.numChannels*c.bins)
	avgMagnitudeSq := avgMagnitude * avgMagnitude

	// Silent block: zero the matrix rather than divide by near-zero.
	if avgMagnitudeSq < silentEpsilon {
		c.zero()
		return
	}

	invBins := 1.0 / float64(c.bins)
	for i := 0; i < c.numChannels; i++ {
		c.matrix[i][i] = 0.0
		for j := i + 1; j < c.numChannels; j++ {
			crossPower := 0.0
			phaseCoherence := 0.0
			magI, magJ := magnitudes[i], magnitudes[j]
			phaseI, phaseJ := phases[i], phases[j]
			for k := 0; k < c.bins; k++ {
				crossPower += magI[k] * magJ[k]
				phaseCoherence += math.Cos(phaseI[k] - phaseJ[k])
			}
			crossPower *= invBins
			phaseCoherence *= invBins

			v := (crossPower / avgMagnitudeSq) * phaseCoherence
			// cos is even in the phase difference, so (i,j) and (j,i) agree.
			c.matrix[i][j] = v
			c.matrix[j][i] = v
		}
	}
}

// Matrix returns the internal matrix. The slice is reused across blocks;
// callers that need a stable view must copy (the engine facade does).
func (c *CrossSpectral) Matrix() [][]float64 {
	return c.matrix
}

// Reset zeroes the matrix.
func (c *CrossSpectral) Reset() {
	c.zero()
}

func (c *CrossSpectral) zero() {
	for i := range c.matrix {
		row := c.matrix[i]
		for j := range row {
			row[j] = 0.0
		}
	}
}
