// SPDX-License-Identifier: MIT
/*
Package coherence implements the Integrated Chromatic Information (ICI)
engine: a real-time multi-channel spectral-phase coherence analyzer. One
engine instance processes fixed-shape audio blocks and reduces them to a
single normalized coherence scalar, with optional per-pair and per-channel
breakdowns.

Thread safety: an engine is single-threaded by design. ProcessBlock and all
accessors must be driven from the one goroutine that owns the audio
processing loop; there is no internal locking. Callers analyzing several
independent channel groups should create one engine per group.
*/
package coherence

import (
	"fmt"
	"math"
	"time"

	"ici/pkg/bitint"

	applog "ici/internal/log"
)

// Default configuration values.
const (
	DefaultNumChannels    = 8
	DefaultBlockSize      = 512
	DefaultSmoothingAlpha = 0.2
)

// Config holds the engine configuration. It is immutable for the engine's
// lifetime; invalid values are rejected by NewEngine.
type Config struct {
	NumChannels    int        // Channel count N; pairwise reduction needs N >= 2.
	BlockSize      int        // Samples per channel per block; must match the caller's audio block length.
	SmoothingAlpha float64    // EMA factor in (0,1].
	Window         WindowFunc // Analysis window; Hann unless the caller has a reason.
	UseRealFFT     bool       // Real-to-complex transform (L/2+1 bins) instead of full complex (L bins).
	OutputMatrix   bool       // Return the full N x N matrix from ProcessBlock.
	OutputVector   bool       // Include the per-channel summary vector in snapshots.
}

// DefaultConfig returns the configuration used by the reference deployment:
// 8 channels, 512-sample blocks, alpha 0.2, Hann window, real transform.
func DefaultConfig() Config {
	return Config{
		NumChannels:    DefaultNumChannels,
		BlockSize:      DefaultBlockSize,
		SmoothingAlpha: DefaultSmoothingAlpha,
		Window:         Hann,
		UseRealFFT:     true,
	}
}

// Validate checks the configuration bounds. A non-nil error here is fatal to
// engine creation and never recovered internally.
func (c Config) Validate() error {
	if c.NumChannels < 2 {
		return fmt.Errorf("coherence: num_channels must be >= 2, got %d", c.NumChannels)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("coherence: block_size must be positive, got %d", c.BlockSize)
	}
	if c.SmoothingAlpha <= 0 || c.SmoothingAlpha > 1 {
		return fmt.Errorf("coherence: smoothing_alpha must be in (0,1], got %g", c.SmoothingAlpha)
	}
	return nil
}

// Engine is the ICI engine facade. It owns all mutable state (spectral
// buffers, coherence matrix, scalar state, timing history) and composes the
// spectrum analyzer, cross-spectral builder, integrator and performance
// tracker into the per-block pipeline.
type Engine struct {
	config Config

	spectrum   *SpectrumAnalyzer
	cross      *CrossSpectral
	integrator *Integrator
	perf       *PerfTracker

	// Per-channel spectral buffers, reused (never reallocated) every block.
	magnitudes [][]float64
	phases     [][]float64
}

// NewEngine creates an engine for the given configuration, pre-allocating
// every buffer the block path needs. Returns an error on invalid
// configuration; nothing else can fail.
func NewEngine(config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	spectrum := NewSpectrumAnalyzer(config.BlockSize, config.Window, config.UseRealFFT)
	bins := spectrum.Bins()

	magnitudes := make([][]float64, config.NumChannels)
	phases := make([][]float64, config.NumChannels)
	for i := 0; i < config.NumChannels; i++ {
		magnitudes[i] = make([]float64, bins)
		phases[i] = make([]float64, bins)
	}

	if !bitint.IsPowerOfTwo(config.BlockSize) {
		applog.Warnf("Coherence: block size %d is not a power of 2; transforms will be slower (next power: %d)",
			config.BlockSize, bitint.NextPowerOfTwo(config.BlockSize))
	}

	applog.Infof("Coherence: initializing engine (channels: %d, block: %d, alpha: %.3f, window: %s, bins: %d)",
		config.NumChannels, config.BlockSize, config.SmoothingAlpha, config.Window, bins)

	return &Engine{
		config:     config,
		spectrum:   spectrum,
		cross:      NewCrossSpectral(config.NumChannels, bins),
		integrator: NewIntegrator(config.SmoothingAlpha),
		perf:       NewPerfTracker(),
		magnitudes: magnitudes,
		phases:     phases,
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// ProcessBlock runs the full pipeline on one audio block of NumChannels rows
// by BlockSize samples and returns the smoothed coherence value, plus a copy
// of the coherence matrix when OutputMatrix is configured (nil otherwise).
//
// Blocks of the wrong shape or containing non-finite samples are skipped:
// the previous smoothed value comes back unchanged, no matrix is returned,
// and the block is still timed and counted. ProcessBlock never fails for
// data-quality reasons; a real-time audio path cannot tolerate unwound
// stacks, so all recovery is local and silent.
//
// The engine keeps no reference to block beyond the call.
func (e *Engine) ProcessBlock(block [][]float32) (float64, [][]float64) {
	start := time.Now()

	if !e.validBlock(block) {
		e.perf.Record(time.Since(start))
		return e.integrator.Smoothed(), nil
	}

	for i := 0; i < e.config.NumChannels; i++ {
		e.spectrum.Transform(block[i], e.magnitudes[i], e.phases[i])
	}
	e.cross.Update(e.magnitudes, e.phases)
	smoothed := e.integrator.Integrate(e.cross.Matrix(), e.config.NumChannels)

	e.perf.Record(time.Since(start))

	if e.config.OutputMatrix {
		return smoothed, e.Matrix()
	}
	return smoothed, nil
}

// validBlock checks shape and finiteness. The scan is cheap relative to the
// transforms and must run before any spectral state is touched so a bad
// block cannot poison the matrix.
func (e *Engine) validBlock(block [][]float32) bool {
	if len(block) != e.config.NumChannels {
		applog.Warnf("Coherence: expected %d channels, got %d; skipping block", e.config.NumChannels, len(block))
		return false
	}
	for _, channel := range block {
		if len(channel) != e.config.BlockSize {
			applog.Warnf("Coherence: expected %d samples per channel, got %d; skipping block", e.config.BlockSize, len(channel))
			return false
		}
		for _, v := range channel {
			f := float64(v)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				applog.Warnf("Coherence: non-finite sample in block; skipping")
				return false
			}
		}
	}
	return true
}

// Current returns the raw coherence value of the last valid block.
func (e *Engine) Current() float64 {
	return e.integrator.Current()
}

// Smoothed returns the exponentially smoothed coherence value.
func (e *Engine) Smoothed() float64 {
	return e.integrator.Smoothed()
}

// Matrix returns a defensive copy of the coherence matrix.
func (e *Engine) Matrix() [][]float64 {
	src := e.cross.Matrix()
	dst := make([][]float64, e.config.NumChannels)
	for i := range dst {
		dst[i] = make([]float64, e.config.NumChannels)
		copy(dst[i], src[i])
	}
	return dst
}

// VectorSummary returns the per-channel summary vector: entry i is the mean
// of matrix row i excluding the diagonal, the channel's average coherence
// with every other channel.
func (e *Engine) VectorSummary() []float64 {
	n := e.config.NumChannels
	src := e.cross.Matrix()
	vector := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < n; j++ {
			if i != j {
				sum += src[i][j]
			}
		}
		vector[i] = sum / float64(n-1)
	}
	return vector
}

// Stats returns the scalar state together with rolling timing statistics.
func (e *Engine) Stats() Stats {
	return Stats{
		Current:   e.integrator.Current(),
		Smoothed:  e.integrator.Smoothed(),
		PerfStats: e.perf.Stats(),
	}
}

// Reset zeroes the scalar state, the matrix, and the performance history.
// Pre-allocated buffers are retained; reset is cheap and idempotent.
func (e *Engine) Reset() {
	e.integrator.Reset()
	e.cross.Reset()
	e.perf.Reset()
}

// Stats combines the engine's scalar state with its timing statistics.
type Stats struct {
	Current  float64
	Smoothed float64
	PerfStats
}
