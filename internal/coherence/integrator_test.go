// SPDX-License-Identifier: MIT
package coherence

import (
	"math"
	"testing"
)

// constMatrix builds an n x n matrix with value v off-diagonal.
func constMatrix(n int, v float64) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := range m[i] {
			if i != j {
				m[i][j] = v
			}
		}
	}
	return m
}

func TestIntegrateRemapAndClamp(t *testing.T) {
	tests := []struct {
		name     string
		offDiag  float64
		expected float64
	}{
		{"AllZero", 0.0, 0.5},       // Silent block reduces to the midpoint.
		{"FullCoherence", 1.0, 1.0}, // Upper edge of the theoretical range.
		{"AntiPhase", -1.0, 0.0},    // Lower edge: negative phase cosines.
		{"Half", 0.5, 0.75},
		{"Overshoot", 1.5, 1.0},      // Clamped against float overshoot.
		{"NegOvershoot", -1.25, 0.0}, // Clamped at zero.
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewIntegrator(1.0) // alpha=1: smoothed tracks raw exactly.
			got := g.Integrate(constMatrix(4, tt.offDiag), 4)

			if math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("Integrate = %v, want %v", got, tt.expected)
			}
			if g.Current() != got {
				t.Errorf("Current() = %v, want %v", g.Current(), got)
			}
		})
	}
}

func TestIntegrateRangeInvariant(t *testing.T) {
	// Whatever the matrix content, the output must stay in [0,1].
	g := NewIntegrator(0.3)
	values := []float64{-5, -1, -0.001, 0, 0.417, 1, 3}
	for _, v := range values {
		got := g.Integrate(constMatrix(8, v), 8)
		if got < 0 || got > 1 {
			t.Errorf("Integrate(offdiag=%v) = %v, outside [0,1]", v, got)
		}
		if g.Current() < 0 || g.Current() > 1 {
			t.Errorf("Current after offdiag=%v is %v, outside [0,1]", v, g.Current())
		}
	}
}

func TestEMAConvergence(t *testing.T) {
	// With a constant raw value c per block, after k blocks the moving
	// average equals c * (1 - (1-alpha)^k).
	const alpha = 0.2
	const blocks = 25

	g := NewIntegrator(alpha)
	matrix := constMatrix(8, 0.6) // Raw c = 0.8 after remap.
	c := 0.8

	for k := 1; k <= blocks; k++ {
		got := g.Integrate(matrix, 8)
		want := c * (1 - math.Pow(1-alpha, float64(k)))
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("block %d: smoothed = %v, want %v", k, got, want)
		}
	}

	// After enough identical blocks the average converges to the raw value.
	if math.Abs(g.Smoothed()-c) > 0.01 {
		t.Errorf("smoothed = %v after %d blocks, want near %v", g.Smoothed(), blocks, c)
	}
}

func TestIntegratorReset(t *testing.T) {
	g := NewIntegrator(0.2)
	g.Integrate(constMatrix(4, 0.9), 4)

	g.Reset()
	if g.Current() != 0 || g.Smoothed() != 0 {
		t.Errorf("after Reset: current = %v, smoothed = %v, want 0, 0", g.Current(), g.Smoothed())
	}

	// Reset must be idempotent.
	g.Reset()
	if g.Current() != 0 || g.Smoothed() != 0 {
		t.Errorf("after second Reset: current = %v, smoothed = %v, want 0, 0", g.Current(), g.Smoothed())
	}
}

func TestIntegrateHotPath(t *testing.T) {
	g := NewIntegrator(0.2)
	matrix := constMatrix(8, 0.4)

	g.Integrate(matrix, 8)
	allocs := testing.AllocsPerRun(100, func() {
		g.Integrate(matrix, 8)
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in Integrate hot path, got %.1f", allocs)
	}
}
