// SPDX-License-Identifier: MIT
package coherence

import (
	"math"
	"testing"

	"ici/pkg/sig"
)

// transformBlock runs the spectral stage over a whole block, returning fresh
// magnitude/phase matrices for builder tests.
func transformBlock(t *testing.T, block [][]float32) ([][]float64, [][]float64, int) {
	t.Helper()
	s := NewSpectrumAnalyzer(len(block[0]), Hann, true)
	magnitudes := make([][]float64, len(block))
	phases := make([][]float64, len(block))
	for i := range block {
		magnitudes[i] = make([]float64, s.Bins())
		phases[i] = make([]float64, s.Bins())
		s.Transform(block[i], magnitudes[i], phases[i])
	}
	return magnitudes, phases, s.Bins()
}

func TestMatrixDiagonalZero(t *testing.T) {
	block := sig.DistinctToneBlock(8, testBlockSize, testSampleRate, 200, 150)
	magnitudes, phases, bins := transformBlock(t, block)

	c := NewCrossSpectral(8, bins)
	c.Update(magnitudes, phases)

	for i, row := range c.Matrix() {
		if row[i] != 0 {
			t.Errorf("matrix[%d][%d] = %v, want exactly 0", i, i, row[i])
		}
	}
}

func TestMatrixNoNaN(t *testing.T) {
	tests := []struct {
		name  string
		block [][]float32
	}{
		{"DistinctTones", sig.DistinctToneBlock(8, testBlockSize, testSampleRate, 200, 150)},
		{"SharedTone", sig.SharedToneBlock(8, testBlockSize, testSampleRate, 440)},
		{"Silence", sig.SilentBlock(8, testBlockSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			magnitudes, phases, bins := transformBlock(t, tt.block)
			c := NewCrossSpectral(8, bins)
			c.Update(magnitudes, phases)

			for i, row := range c.Matrix() {
				for j, v := range row {
					if math.IsNaN(v) || math.IsInf(v, 0) {
						t.Fatalf("matrix[%d][%d] = %v, want finite", i, j, v)
					}
				}
			}
		})
	}
}

func TestMatrixSilentBlockAllZero(t *testing.T) {
	block := sig.SilentBlock(4, testBlockSize)
	magnitudes, phases, bins := transformBlock(t, block)

	c := NewCrossSpectral(4, bins)
	// Dirty the matrix first so the zero fill is observable.
	c.Matrix()[0][1] = 0.7
	c.Update(magnitudes, phases)

	for i, row := range c.Matrix() {
		for j, v := range row {
			if v != 0 {
				t.Errorf("matrix[%d][%d] = %v, want 0 for silent block", i, j, v)
			}
		}
	}
}

func TestMatrixSharedSignalHighCoherence(t *testing.T) {
	// Identical channels have phase coherence exactly 1, so every
	// off-diagonal entry is the normalized cross-power, which is >= 1 for a
	// peaked spectrum.
	block := sig.SharedToneBlock(4, testBlockSize, testSampleRate, 440)
	magnitudes, phases, bins := transformBlock(t, block)

	c := NewCrossSpectral(4, bins)
	c.Update(magnitudes, phases)

	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if i == j {
				continue
			}
			if c.Matrix()[i][j] < 1.0 {
				t.Errorf("matrix[%d][%d] = %v, want >= 1 for identical channels", i, j, c.Matrix()[i][j])
			}
		}
	}
}

func TestMatrixSymmetry(t *testing.T) {
	// cos is even in the phase difference, so the matrix is symmetric.
	block := sig.DistinctToneBlock(6, testBlockSize, testSampleRate, 300, 200)
	magnitudes, phases, bins := transformBlock(t, block)

	c := NewCrossSpectral(6, bins)
	c.Update(magnitudes, phases)

	m := c.Matrix()
	for i := 0; i < 6; i++ {
		for j := i + 1; j < 6; j++ {
			if m[i][j] != m[j][i] {
				t.Errorf("matrix[%d][%d] = %v != matrix[%d][%d] = %v", i, j, m[i][j], j, i, m[j][i])
			}
		}
	}
}

func TestMatrixReset(t *testing.T) {
	block := sig.SharedToneBlock(4, testBlockSize, testSampleRate, 440)
	magnitudes, phases, bins := transformBlock(t, block)

	c := NewCrossSpectral(4, bins)
	c.Update(magnitudes, phases)
	c.Reset()

	for i, row := range c.Matrix() {
		for j, v := range row {
			if v != 0 {
				t.Errorf("matrix[%d][%d] = %v after Reset, want 0", i, j, v)
			}
		}
	}
}

func TestMatrixUpdateHotPath(t *testing.T) {
	block := sig.DistinctToneBlock(8, testBlockSize, testSampleRate, 200, 150)
	magnitudes, phases, bins := transformBlock(t, block)
	c := NewCrossSpectral(8, bins)

	c.Update(magnitudes, phases)
	allocs := testing.AllocsPerRun(100, func() {
		c.Update(magnitudes, phases)
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in Update hot path, got %.1f", allocs)
	}
}

func BenchmarkMatrixUpdate(b *testing.B) {
	benchmarks := []struct {
		name     string
		channels int
	}{
		{"2ch", 2},
		{"8ch", 8},
		{"16ch", 16},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			block := sig.DistinctToneBlock(bm.channels, testBlockSize, testSampleRate, 200, 100)
			s := NewSpectrumAnalyzer(testBlockSize, Hann, true)
			magnitudes := make([][]float64, bm.channels)
			phases := make([][]float64, bm.channels)
			for i := range block {
				magnitudes[i] = make([]float64, s.Bins())
				phases[i] = make([]float64, s.Bins())
				s.Transform(block[i], magnitudes[i], phases[i])
			}
			c := NewCrossSpectral(bm.channels, s.Bins())

			b.ReportAllocs()
			for n := 0; n < b.N; n++ {
				c.Update(magnitudes, phases)
			}
		})
	}
}
