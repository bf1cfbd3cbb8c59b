// SPDX-License-Identifier: MIT
package coherence

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc selects the analysis window applied before each transform.
type WindowFunc int

// Available analysis windows. Hann is the default and the one the
// coherence formula was tuned against.
const (
	Hann WindowFunc = iota
	Hamming
	Blackman
	BlackmanNuttall
	BartlettHann
	Nuttall
	Lanczos
)

// String returns the canonical lower-case name of the window function.
func (w WindowFunc) String() string {
	switch w {
	case Hann:
		return "hann"
	case Hamming:
		return "hamming"
	case Blackman:
		return "blackman"
	case BlackmanNuttall:
		return "blackmannuttall"
	case BartlettHann:
		return "bartletthann"
	case Nuttall:
		return "nuttall"
	case Lanczos:
		return "lanczos"
	default:
		return "unknown"
	}
}

// ParseWindowFunc converts a window name (case-insensitive) to a WindowFunc.
// Returns Hann and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "hann", "hanning", "":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "bartletthann":
		return BartlettHann, nil
	case "nuttall":
		return Nuttall, nil
	case "lanczos":
		return Lanczos, nil
	default:
		return Hann, fmt.Errorf("unknown analysis window name: '%s'", name)
	}
}

// windowCoefficients returns the coefficient slice for the given window
// function and length. The gonum window functions multiply a sequence in
// place, so the slice is seeded with ones first.
func windowCoefficients(size int, windowType WindowFunc) []float64 {
	coeffs := make([]float64, size)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case Hamming:
		window.Hamming(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	default:
		window.Hann(coeffs)
	}
	return coeffs
}
