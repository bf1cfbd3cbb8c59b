// SPDX-License-Identifier: MIT
// Package sig provides deterministic multichannel signal generators and
// small analysis helpers shared by tests, benchmarks, and the host CLI's
// synthetic sources.
package sig

import "math"

// Sine fills a new buffer with one channel of a sine wave at the given
// frequency and starting phase (radians).
func Sine(size int, sampleRate, frequency, phase float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(math.Sin(2*math.Pi*frequency*t + phase))
	}
	return buffer
}

// ComplexWave generates a 440Hz fundamental plus two harmonics; useful as a
// realistic non-trivial test signal.
func ComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		s := math.Sin(2*math.Pi*440*t)*0.5 +
			math.Sin(2*math.Pi*880*t)*0.3 +
			math.Sin(2*math.Pi*1320*t)*0.2
		buffer[i] = float32(s)
	}
	return buffer
}

// DistinctToneBlock builds a block of channels sine tones at distinct
// frequencies with staggered phases: a low-coherence input. Frequencies
// start at baseFrequency and step by spacing per channel.
func DistinctToneBlock(channels, size int, sampleRate, baseFrequency, spacing float64) [][]float32 {
	block := make([][]float32, channels)
	for ch := range block {
		freq := baseFrequency + float64(ch)*spacing
		phase := float64(ch) * math.Pi / 3 // Staggered, deterministic.
		block[ch] = Sine(size, sampleRate, freq, phase)
	}
	return block
}

// SharedToneBlock builds a block where every channel carries the identical
// signal in identical phase: a maximal-coherence input.
func SharedToneBlock(channels, size int, sampleRate, frequency float64) [][]float32 {
	source := Sine(size, sampleRate, frequency, 0)
	block := make([][]float32, channels)
	for ch := range block {
		channel := make([]float32, size)
		copy(channel, source)
		block[ch] = channel
	}
	return block
}

// SilentBlock builds an all-zero block.
func SilentBlock(channels, size int) [][]float32 {
	block := make([][]float32, channels)
	for ch := range block {
		block[ch] = make([]float32, size)
	}
	return block
}

// FindPeakBin returns the index of the largest magnitude in
// magnitudes[startBin..endBin]. Out-of-range bounds are clamped.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}
	return peakBin
}
