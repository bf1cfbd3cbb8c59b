// SPDX-License-Identifier: MIT
package coherence

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// SpectrumAnalyzer windows and transforms one channel's time-domain block
// into magnitude and phase arrays. It is stateless across calls except for
// the window coefficients and transform plan, both computed once at
// construction. All per-call scratch space is pre-allocated so Transform
// stays allocation-free in the real-time path.
type SpectrumAnalyzer struct {
	blockSize int
	bins      int

	realFFT  *fourier.FFT      // Real-to-complex transform plan (UseRealFFT).
	cmplxFFT *fourier.CmplxFFT // Full complex transform plan.

	window     []float64    // Pre-computed analysis window coefficients.
	realInput  []float64    // Scratch for windowed real input.
	cmplxInput []complex128 // Scratch for windowed complex input.
	coeffs     []complex128 // Scratch for transform output.
}

// NewSpectrumAnalyzer creates an analyzer for blocks of blockSize samples.
// When useRealFFT is set, the transform is real-to-complex and produces
// blockSize/2+1 bins; otherwise a full complex transform produces blockSize
// bins.
func NewSpectrumAnalyzer(blockSize int, windowType WindowFunc, useRealFFT bool) *SpectrumAnalyzer {
	s := &SpectrumAnalyzer{
		blockSize: blockSize,
		window:    windowCoefficients(blockSize, windowType),
	}

	if useRealFFT {
		s.realFFT = fourier.NewFFT(blockSize)
		s.bins = blockSize/2 + 1
		s.realInput = make([]float64, blockSize)
		s.coeffs = make([]complex128, s.bins)
	} else {
		s.cmplxFFT = fourier.NewCmplxFFT(blockSize)
		s.bins = blockSize
		s.cmplxInput = make([]complex128, blockSize)
		s.coeffs = make([]complex128, blockSize)
	}

	return s
}

// Bins returns the number of frequency bins each Transform call produces.
func (s *SpectrumAnalyzer) Bins() int {
	return s.bins
}

// BlockSize returns the expected per-channel sample count.
func (s *SpectrumAnalyzer) BlockSize() int {
	return s.blockSize
}

// Transform windows samples and fills magnitude and phase with the spectrum
// of the block. samples must hold blockSize values; magnitude and phase must
// hold Bins() values each. The caller owns both output slices; the analyzer
// retains no reference to any argument. Phase values are in (-pi, pi], as
// produced by cmplx.Phase, which matches the phase subtraction done by the
// cross-spectral stage.
func (s *SpectrumAnalyzer) Transform(samples []float32, magnitude, phase []float64) {
	if s.realFFT != nil {
		for i := 0; i < s.blockSize; i++ {
			s.realInput[i] = float64(samples[i]) * s.window[i]
		}
		s.realFFT.Coefficients(s.coeffs, s.realInput)
	} else {
		for i := 0; i < s.blockSize; i++ {
			s.cmplxInput[i] = complex(float64(samples[i])*s.window[i], 0)
		}
		s.cmplxFFT.Coefficients(s.coeffs, s.cmplxInput)
	}

	for i, c := range s.coeffs {
		magnitude[i] = cmplx.Abs(c)
		phase[i] = cmplx.Phase(c)
	}
}
