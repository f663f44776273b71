// Package node holds behavior shared by all co-simulation nodes.
package node

import (
	"time"
)

// Base carries the per-node integration step size and the cumulative
// wall-clock time spent advancing the node's dynamics. Concrete nodes
// embed it.
type Base struct {
	name     string
	stepSize float64

	cumTime time.Duration
}

// NewBase creates a node base with the given name and integration step.
func NewBase(name string, stepSize float64) Base {
	return Base{name: name, stepSize: stepSize}
}

// Name returns the node name used in logs and output files.
func (b *Base) Name() string { return b.name }

// StepSize returns the node's integration step size.
func (b *Base) StepSize() float64 { return b.stepSize }

// SetStepSize overrides the integration step size.
func (b *Base) SetStepSize(h float64) { b.stepSize = h }

// Integrate advances the node's dynamics over one macro step by
// subdividing it into integration steps, with a shorter final step
// when the macro step is not an exact multiple. The time spent is
// added to the node's cumulative timer.
func (b *Base) Integrate(macroStep float64, step func(h float64)) {
	start := time.Now()
	rem := macroStep
	for rem > 0 {
		h := b.stepSize
		if rem < h {
			h = rem
		}
		step(h)
		rem -= h
	}
	b.cumTime += time.Since(start)
}

// TotalTime returns the cumulative wall-clock time spent in Integrate.
func (b *Base) TotalTime() time.Duration { return b.cumTime }
