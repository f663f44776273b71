package terrain

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/treadsim/cosim/internal/physics"
	"github.com/treadsim/cosim/internal/proxy"
	"github.com/treadsim/cosim/pkg/core"
)

// proxyFamily is the collision family shared by all proxy bodies.
// Proxies never collide with each other, only with the terrain.
const proxyFamily = 1

// proxyStrategy creates, updates, and queries the stand-in bodies for
// one tire's mesh. The node strategy maintains a sphere per mesh
// vertex (rigid terrain); the face strategy maintains a triangle per
// mesh face (granular terrain).
type proxyStrategy interface {
	// CreateProxies populates set.Entries with one body per mesh element.
	CreateProxies(sys *physics.System, set *proxy.Set)
	// UpdateProxies moves the proxies to match set.Vertices.
	UpdateProxies(sys *physics.System, set *proxy.Set)
	// CollectForces maps contact forces on the proxies back to mesh
	// vertices, returning sparse samples with tire-local vertex indices
	// in ascending order.
	CollectForces(sys *physics.System, set *proxy.Set) []core.ForceSample
}

// nodeStrategy represents each mesh vertex by a small sphere.
type nodeStrategy struct {
	fixed  bool
	mass   float64
	radius float64
}

func (st *nodeStrategy) CreateProxies(sys *physics.System, set *proxy.Set) {
	kind := physics.Dynamic
	if st.fixed {
		kind = physics.Fixed
	}
	for iv := 0; iv < set.NumVertices; iv++ {
		b := sys.NewBody(kind)
		b.SetIdentifier(set.GlobalVertex(iv))
		b.SetMass(st.mass)
		inr := 0.4 * st.mass * st.radius * st.radius
		b.SetInertia(mgl64.Vec3{inr, inr, inr})
		b.SetMaterial(set.Material)
		b.SetCollisionFamily(proxyFamily)
		b.DisableCollisionWithFamily(proxyFamily)
		shape := sys.AddSphere(b, st.radius, mgl64.Vec3{})
		sys.AddBody(b)
		set.Entries = append(set.Entries, proxy.Entry{Body: b, Index: set.GlobalVertex(iv), Shape: shape})
	}
}

func (st *nodeStrategy) UpdateProxies(sys *physics.System, set *proxy.Set) {
	for iv, e := range set.Entries {
		e.Body.SetPos(set.Vertices[iv].Pos)
		e.Body.SetLinVel(set.Vertices[iv].Vel)
		e.Body.SetRot(mgl64.QuatIdent())
		e.Body.SetRotVel(mgl64.Quat{})
	}
}

func (st *nodeStrategy) CollectForces(sys *physics.System, set *proxy.Set) []core.ForceSample {
	var out []core.ForceSample
	for iv, e := range set.Entries {
		f := sys.ContactForce(e.Body)
		if f.Len() == 0 {
			continue
		}
		out = append(out, core.ForceSample{Index: iv, Force: f})
	}
	return out
}

// faceStrategy represents each mesh triangle by a triangle contact
// shape on its own body. The body sits at the face centroid with
// identity orientation and carries the average of the three vertex
// velocities; face angular velocity is deliberately not reconstructed,
// a known simplification of the proxy model.
type faceStrategy struct {
	fixed bool
	mass  float64
}

func (st *faceStrategy) CreateProxies(sys *physics.System, set *proxy.Set) {
	kind := physics.Dynamic
	if st.fixed {
		kind = physics.Fixed
	}
	for it := 0; it < set.NumTriangles; it++ {
		b := sys.NewBody(kind)
		b.SetIdentifier(set.GlobalTriangle(it))
		b.SetMass(st.mass)
		b.SetInertia(mgl64.Vec3{1e-3 * st.mass * 0.1, 1e-3 * st.mass * 0.1, 1e-3 * st.mass * 0.1})
		b.SetMaterial(set.Material)
		b.SetCollisionFamily(proxyFamily)
		b.DisableCollisionWithFamily(proxyFamily)
		// Placeholder vertices; rewritten every synchronization step.
		shape := sys.AddTriangle(b, mgl64.Vec3{}, mgl64.Vec3{0.01, 0, 0}, mgl64.Vec3{0, 0.01, 0})
		sys.AddBody(b)
		set.Entries = append(set.Entries, proxy.Entry{Body: b, Index: set.GlobalTriangle(it), Shape: shape})
	}
}

func (st *faceStrategy) UpdateProxies(sys *physics.System, set *proxy.Set) {
	for it, e := range set.Entries {
		tri := set.Triangles[it]
		pa := set.Vertices[tri.V1].Pos
		pb := set.Vertices[tri.V2].Pos
		pc := set.Vertices[tri.V3].Pos
		va := set.Vertices[tri.V1].Vel
		vb := set.Vertices[tri.V2].Vel
		vc := set.Vertices[tri.V3].Vel

		centroid := pa.Add(pb).Add(pc).Mul(1.0 / 3.0)
		e.Body.SetPos(centroid)
		e.Body.SetRot(mgl64.QuatIdent())
		e.Body.SetLinVel(va.Add(vb).Add(vc).Mul(1.0 / 3.0))
		e.Body.SetRotVel(mgl64.Quat{})

		sys.SetTriangle(e.Shape, pa.Sub(centroid), pb.Sub(centroid), pc.Sub(centroid))
	}
}

func (st *faceStrategy) CollectForces(sys *physics.System, set *proxy.Set) []core.ForceSample {
	acc := make(map[int]mgl64.Vec3)
	for it, e := range set.Entries {
		f := sys.ContactForce(e.Body)
		if f.Len() == 0 {
			continue
		}
		third := f.Mul(1.0 / 3.0)
		tri := set.Triangles[it]
		for _, iv := range []int{tri.V1, tri.V2, tri.V3} {
			acc[iv] = acc[iv].Add(third)
		}
	}

	out := make([]core.ForceSample, 0, len(acc))
	for iv, f := range acc {
		out = append(out, core.ForceSample{Index: iv, Force: f})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
