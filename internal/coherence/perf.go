// SPDX-License-Identifier: MIT
package coherence

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// maxPerfSamples bounds the per-block timing history so it cannot grow
// without limit; statistics cover the most recent window only.
const maxPerfSamples = 1000

// PerfStats holds rolling processing-time statistics for the engine.
type PerfStats struct {
	TotalBlocks uint64  `json:"total_blocks"`
	AvgMs       float64 `json:"avg_ms"`
	MaxMs       float64 `json:"max_ms"`
	P95Ms       float64 `json:"p95_ms"`
	P99Ms       float64 `json:"p99_ms"`
}

// PerfTracker records per-block wall-clock cost in a bounded ring buffer and
// exposes mean/max/percentile statistics over the retained window. Record is
// allocation-free; Stats sorts a pre-allocated scratch slice and is intended
// for out-of-band readers, not the block path. It never fails: an empty
// history yields all-zero statistics.
type PerfTracker struct {
	samples []float64 // Ring of per-block durations in milliseconds.
	next    int       // Next write position in samples.
	count   int       // Number of valid entries in samples (<= maxPerfSamples).

	totalBlocks uint64 // Monotonic count of all processed (or skipped) blocks.

	scratch []float64 // Sorted copy used by Stats.
}

// NewPerfTracker creates a tracker with all buffers pre-allocated.
func NewPerfTracker() *PerfTracker {
	return &PerfTracker{
		samples: make([]float64, maxPerfSamples),
		scratch: make([]float64, 0, maxPerfSamples),
	}
}

// Record appends one block's processing duration to the history and bumps
// the total-block counter. Called once per ProcessBlock, including skipped
// blocks.
func (p *PerfTracker) Record(elapsed time.Duration) {
	p.samples[p.next] = float64(elapsed.Nanoseconds()) / 1e6
	p.next = (p.next + 1) % maxPerfSamples
	if p.count < maxPerfSamples {
		p.count++
	}
	p.totalBlocks++
}

// TotalBlocks returns the monotonically increasing block counter.
func (p *PerfTracker) TotalBlocks() uint64 {
	return p.totalBlocks
}

// Stats computes statistics over the retained window.
func (p *PerfTracker) Stats() PerfStats {
	stats := PerfStats{TotalBlocks: p.totalBlocks}
	if p.count == 0 {
		return stats
	}

	p.scratch = p.scratch[:p.count]
	if p.count < maxPerfSamples {
		copy(p.scratch, p.samples[:p.count])
	} else {
		copy(p.scratch, p.samples)
	}
	sort.Float64s(p.scratch)

	stats.AvgMs = stat.Mean(p.scratch, nil)
	stats.MaxMs = floats.Max(p.scratch)
	stats.P95Ms = stat.Quantile(0.95, stat.Empirical, p.scratch, nil)
	stats.P99Ms = stat.Quantile(0.99, stat.Empirical, p.scratch, nil)
	return stats
}

// Reset clears the history and the block counter without reallocating.
func (p *PerfTracker) Reset() {
	p.next = 0
	p.count = 0
	p.totalBlocks = 0
}
