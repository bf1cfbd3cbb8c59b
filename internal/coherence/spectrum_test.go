// SPDX-License-Identifier: MIT
package coherence

import (
	"math"
	"testing"

	"ici/pkg/sig"
)

const (
	testBlockSize  = 512
	testSampleRate = 48000.0
)

func TestSpectrumBins(t *testing.T) {
	tests := []struct {
		name       string
		blockSize  int
		useRealFFT bool
		expected   int
	}{
		{"Real512", 512, true, 257},
		{"Real1024", 1024, true, 513},
		{"Complex512", 512, false, 512},
		{"Complex1024", 1024, false, 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSpectrumAnalyzer(tt.blockSize, Hann, tt.useRealFFT)
			if s.Bins() != tt.expected {
				t.Errorf("Bins() = %d, want %d", s.Bins(), tt.expected)
			}
			if s.BlockSize() != tt.blockSize {
				t.Errorf("BlockSize() = %d, want %d", s.BlockSize(), tt.blockSize)
			}
		})
	}
}

func TestSpectrumSinePeak(t *testing.T) {
	// A pure tone must put its energy in the bin closest to its frequency
	// for both transform variants.
	tests := []struct {
		name       string
		frequency  float64
		useRealFFT bool
	}{
		{"Real/440Hz", 440.0, true},
		{"Real/1kHz", 1000.0, true},
		{"Complex/440Hz", 440.0, false},
		{"Complex/1kHz", 1000.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSpectrumAnalyzer(testBlockSize, Hann, tt.useRealFFT)
			samples := sig.Sine(testBlockSize, testSampleRate, tt.frequency, 0)

			magnitude := make([]float64, s.Bins())
			phase := make([]float64, s.Bins())
			s.Transform(samples, magnitude, phase)

			// Search positive frequencies only; the complex transform mirrors
			// the spectrum into the upper half.
			peak := sig.FindPeakBin(magnitude, 0, testBlockSize/2)
			expectedBin := int(math.Round(tt.frequency / (testSampleRate / testBlockSize)))
			if peak < expectedBin-1 || peak > expectedBin+1 {
				t.Errorf("peak bin = %d, want %d±1", peak, expectedBin)
			}
		})
	}
}

func TestSpectrumPhaseRange(t *testing.T) {
	s := NewSpectrumAnalyzer(testBlockSize, Hann, true)
	samples := sig.ComplexWave(testBlockSize, testSampleRate)

	magnitude := make([]float64, s.Bins())
	phase := make([]float64, s.Bins())
	s.Transform(samples, magnitude, phase)

	for i, p := range phase {
		if p < -math.Pi || p > math.Pi {
			t.Errorf("phase[%d] = %v outside [-pi, pi]", i, p)
		}
		if math.IsNaN(p) {
			t.Errorf("phase[%d] is NaN", i)
		}
	}
}

func TestSpectrumWindowSuppressesEdges(t *testing.T) {
	// With a Hann window a rectangular DC input must transform like a Hann
	// pulse: bin 0 magnitude equals the window sum, and far bins are tiny.
	s := NewSpectrumAnalyzer(testBlockSize, Hann, true)

	samples := make([]float32, testBlockSize)
	for i := range samples {
		samples[i] = 1.0
	}

	magnitude := make([]float64, s.Bins())
	phase := make([]float64, s.Bins())
	s.Transform(samples, magnitude, phase)

	windowSum := 0.0
	for _, w := range windowCoefficients(testBlockSize, Hann) {
		windowSum += w
	}
	if math.Abs(magnitude[0]-windowSum) > 1e-6*windowSum {
		t.Errorf("DC magnitude = %v, want %v", magnitude[0], windowSum)
	}
	if magnitude[s.Bins()-1] > 1e-6*windowSum {
		t.Errorf("Nyquist leakage = %v, want near zero", magnitude[s.Bins()-1])
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected WindowFunc
		wantErr  bool
	}{
		{"hann", Hann, false},
		{"Hanning", Hann, false},
		{"HAMMING", Hamming, false},
		{"blackman", Blackman, false},
		{"", Hann, false},
		{"triangle", Hann, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseWindowFunc(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseWindowFunc(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("ParseWindowFunc(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTransformHotPath(t *testing.T) {
	s := NewSpectrumAnalyzer(testBlockSize, Hann, true)
	samples := sig.ComplexWave(testBlockSize, testSampleRate)
	magnitude := make([]float64, s.Bins())
	phase := make([]float64, s.Bins())

	// Warm-up call before counting.
	s.Transform(samples, magnitude, phase)
	allocs := testing.AllocsPerRun(100, func() {
		s.Transform(samples, magnitude, phase)
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in Transform hot path, got %.1f", allocs)
	}
}

func BenchmarkTransform(b *testing.B) {
	benchmarks := []struct {
		name       string
		useRealFFT bool
	}{
		{"Real", true},
		{"Complex", false},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			s := NewSpectrumAnalyzer(testBlockSize, Hann, bm.useRealFFT)
			samples := sig.ComplexWave(testBlockSize, testSampleRate)
			magnitude := make([]float64, s.Bins())
			phase := make([]float64, s.Bins())

			b.ReportAllocs()
			for n := 0; n < b.N; n++ {
				s.Transform(samples, magnitude, phase)
			}
		})
	}
}
