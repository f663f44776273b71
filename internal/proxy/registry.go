// Package proxy tracks the rigid bodies the terrain node maintains as
// stand-ins for tire mesh elements, grouped per tire with contiguous
// global index ranges.
package proxy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/treadsim/cosim/internal/physics"
	"github.com/treadsim/cosim/pkg/core"
)

// Entry pairs a proxy body with the global mesh element index it
// stands in for (vertex index for node proxies, triangle index for
// face proxies) and the handle of its contact shape.
type Entry struct {
	Body  *physics.Body
	Index int
	Shape physics.ShapeID
}

// Set holds one tire's proxies together with the latest mesh snapshot
// received from that tire. Vertex and triangle slices use tire-local
// indexing; Start offsets map them into the global range.
type Set struct {
	Tire int

	StartVertex   int
	StartTriangle int
	NumVertices   int
	NumTriangles  int

	Material core.ContactMaterial

	Entries   []Entry
	Vertices  []core.VertexState
	Triangles []core.Triangle
}

// GlobalVertex maps a tire-local vertex index to its global index.
func (s *Set) GlobalVertex(local int) int { return s.StartVertex + local }

// LocalVertex maps a global vertex index back to tire-local.
func (s *Set) LocalVertex(global int) int { return global - s.StartVertex }

// GlobalTriangle maps a tire-local triangle index to its global index.
func (s *Set) GlobalTriangle(local int) int { return s.StartTriangle + local }

// LocalTriangle maps a global triangle index back to tire-local.
func (s *Set) LocalTriangle(global int) int { return global - s.StartTriangle }

// Registry is a concurrency-safe map of proxy sets keyed by tire
// index. Registration order determines each tire's global index range:
// ranges are contiguous with no gaps.
type Registry struct {
	mu   sync.RWMutex
	sets map[int]*Set

	nextVertex   int
	nextTriangle int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sets: make(map[int]*Set)}
}

// Register creates the proxy set for a tire, assigning it the next
// contiguous block of global vertex and triangle indices. Registering
// the same tire twice is an error.
func (r *Registry) Register(tire, numVertices, numTriangles int, mat core.ContactMaterial) (*Set, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sets[tire]; ok {
		return nil, fmt.Errorf("proxy: tire %d already registered", tire)
	}

	s := &Set{
		Tire:          tire,
		StartVertex:   r.nextVertex,
		StartTriangle: r.nextTriangle,
		NumVertices:   numVertices,
		NumTriangles:  numTriangles,
		Material:      mat,
		Vertices:      make([]core.VertexState, numVertices),
		Triangles:     make([]core.Triangle, numTriangles),
	}
	r.nextVertex += numVertices
	r.nextTriangle += numTriangles
	r.sets[tire] = s
	return s, nil
}

// Get returns the proxy set for a tire.
func (r *Registry) Get(tire int) (*Set, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sets[tire]
	return s, ok
}

// Tires returns the registered tire indices in ascending order.
func (r *Registry) Tires() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int, 0, len(r.sets))
	for t := range r.sets {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

// TotalVertices returns the number of global vertex indices assigned.
func (r *Registry) TotalVertices() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nextVertex
}

// TotalTriangles returns the number of global triangle indices assigned.
func (r *Registry) TotalTriangles() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nextTriangle
}
