// Package tire implements the tire side of the co-simulation: a
// toroidal contact mesh attached to a wheel spindle, the startup
// handshake, and the per-step exchange of mesh state against terrain
// forces.
package tire

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/treadsim/cosim/pkg/core"
)

// Mesh is a torus triangulated on a regular grid. The wheel axis is y;
// the tire rolls along x. Vertex positions depend on the spindle state
// and are regenerated every step, connectivity is fixed.
type Mesh struct {
	ringRadius    float64
	sectionRadius float64
	divsMajor     int
	divsMinor     int

	triangles []core.Triangle
}

// NewMesh builds the torus connectivity for the given discretization.
func NewMesh(ringRadius, sectionRadius float64, divsMajor, divsMinor int) *Mesh {
	m := &Mesh{
		ringRadius:    ringRadius,
		sectionRadius: sectionRadius,
		divsMajor:     divsMajor,
		divsMinor:     divsMinor,
	}

	// Two triangles per grid quad, wrapping in both directions.
	for i := 0; i < divsMajor; i++ {
		in := (i + 1) % divsMajor
		for j := 0; j < divsMinor; j++ {
			jn := (j + 1) % divsMinor
			v00 := m.vertexIndex(i, j)
			v10 := m.vertexIndex(in, j)
			v01 := m.vertexIndex(i, jn)
			v11 := m.vertexIndex(in, jn)
			m.triangles = append(m.triangles,
				core.Triangle{V1: v00, V2: v10, V3: v11},
				core.Triangle{V1: v00, V2: v11, V3: v01})
		}
	}
	return m
}

func (m *Mesh) vertexIndex(i, j int) int { return i*m.divsMinor + j }

// NumVertices returns the number of mesh vertices.
func (m *Mesh) NumVertices() int { return m.divsMajor * m.divsMinor }

// NumTriangles returns the number of mesh triangles.
func (m *Mesh) NumTriangles() int { return len(m.triangles) }

// Triangles returns the fixed mesh connectivity.
func (m *Mesh) Triangles() []core.Triangle { return m.triangles }

// OuterRadius returns the radius of the outermost tread circle.
func (m *Mesh) OuterRadius() float64 { return m.ringRadius + m.sectionRadius }

// State computes vertex positions and velocities for a spindle at
// center moving with linVel and spinning about y at angular rate
// omega, with accumulated spin angle applied to the ring parameter.
func (m *Mesh) State(center, linVel mgl64.Vec3, spin, omega float64) []core.VertexState {
	out := make([]core.VertexState, 0, m.NumVertices())
	w := mgl64.Vec3{0, omega, 0}

	for i := 0; i < m.divsMajor; i++ {
		theta := 2*math.Pi*float64(i)/float64(m.divsMajor) + spin
		st, ct := math.Sin(theta), math.Cos(theta)
		for j := 0; j < m.divsMinor; j++ {
			phi := 2 * math.Pi * float64(j) / float64(m.divsMinor)

			d := m.ringRadius + m.sectionRadius*math.Cos(phi)
			rel := mgl64.Vec3{d * st, m.sectionRadius * math.Sin(phi), -d * ct}

			out = append(out, core.VertexState{
				Pos: center.Add(rel),
				Vel: linVel.Add(w.Cross(rel)),
			})
		}
	}
	return out
}
