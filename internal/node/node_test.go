package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntegrateCoversMacroStep(t *testing.T) {
	b := NewBase("terrain", 1e-4)

	var total float64
	var steps int
	b.Integrate(1e-3, func(h float64) {
		total += h
		steps++
	})

	assert.InDelta(t, 1e-3, total, 1e-12)
	assert.Equal(t, 10, steps)
}

func TestIntegratePartialFinalStep(t *testing.T) {
	b := NewBase("terrain", 3e-4)

	var sizes []float64
	b.Integrate(1e-3, func(h float64) {
		sizes = append(sizes, h)
	})

	// Three full steps and one shorter remainder step.
	assert.Len(t, sizes, 4)
	assert.InDelta(t, 3e-4, sizes[0], 1e-12)
	assert.InDelta(t, 1e-4, sizes[3], 1e-12)

	var total float64
	for _, h := range sizes {
		total += h
	}
	assert.InDelta(t, 1e-3, total, 1e-12)
}

func TestTotalTimeAccumulates(t *testing.T) {
	b := NewBase("tire", 1e-4)
	b.Integrate(1e-4, func(h float64) {})
	first := b.TotalTime()
	b.Integrate(1e-4, func(h float64) {})
	assert.GreaterOrEqual(t, b.TotalTime(), first)
}
