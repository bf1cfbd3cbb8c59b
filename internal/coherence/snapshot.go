// SPDX-License-Identifier: MIT
package coherence

// Snapshot is the JSON-serializable output structure consumed by telemetry
// and streaming layers. Matrix and Vector are present only when the
// corresponding configuration flags are set.
type Snapshot struct {
	CurrentICI  float64     `json:"current_ici"`
	SmoothedICI float64     `json:"smoothed_ici"`
	Matrix      [][]float64 `json:"matrix,omitempty"`
	Vector      []float64   `json:"vector,omitempty"`
	Stats       PerfStats   `json:"stats"`
}

// Snapshot captures the engine's current output as a self-contained value.
// Like every other accessor it must be called from the goroutine driving
// ProcessBlock; the returned value itself is safe to hand to other
// goroutines (it shares no memory with the engine).
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		CurrentICI:  e.integrator.Current(),
		SmoothedICI: e.integrator.Smoothed(),
		Stats:       e.perf.Stats(),
	}
	if e.config.OutputMatrix {
		s.Matrix = e.Matrix()
	}
	if e.config.OutputVector {
		s.Vector = e.VectorSummary()
	}
	return s
}
