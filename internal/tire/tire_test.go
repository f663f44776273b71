package tire

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treadsim/cosim/internal/transport"
	"github.com/treadsim/cosim/pkg/wire"
)

func TestMeshCounts(t *testing.T) {
	m := NewMesh(0.46, 0.12, 24, 8)
	assert.Equal(t, 24*8, m.NumVertices())
	assert.Equal(t, 2*24*8, m.NumTriangles())
	assert.InDelta(t, 0.58, m.OuterRadius(), 1e-15)
}

func TestMeshConnectivityIndicesValid(t *testing.T) {
	m := NewMesh(0.46, 0.12, 12, 6)
	for _, tr := range m.Triangles() {
		for _, v := range []int{tr.V1, tr.V2, tr.V3} {
			assert.GreaterOrEqual(t, v, 0)
			assert.Less(t, v, m.NumVertices())
		}
		assert.NotEqual(t, tr.V1, tr.V2)
		assert.NotEqual(t, tr.V2, tr.V3)
		assert.NotEqual(t, tr.V1, tr.V3)
	}
}

func TestMeshVerticesOnTorus(t *testing.T) {
	m := NewMesh(0.46, 0.12, 24, 8)
	center := mgl64.Vec3{1, 2, 3}
	verts := m.State(center, mgl64.Vec3{}, 0.3, 0)

	for _, v := range verts {
		rel := v.Pos.Sub(center)
		// Distance from the ring circle must equal the section radius.
		ring := math.Hypot(rel.X(), rel.Z())
		d := math.Hypot(ring-0.46, rel.Y())
		assert.InDelta(t, 0.12, d, 1e-12)
	}
}

func TestRollingContactPointNearlyStill(t *testing.T) {
	m := NewMesh(0.46, 0.12, 36, 8)
	speed := 2.0
	omega := speed / m.OuterRadius()
	verts := m.State(mgl64.Vec3{0, 0, m.OuterRadius()}, mgl64.Vec3{speed, 0, 0}, 0, omega)

	// The lowest vertex is the contact point; rolling without slip
	// makes its velocity vanish.
	low := verts[0]
	for _, v := range verts {
		if v.Pos.Z() < low.Pos.Z() {
			low = v
		}
	}
	assert.InDelta(t, 0, low.Vel.X(), 1e-9)
	assert.InDelta(t, 0, low.Vel.Z(), 1e-9)
}

func newTestNode(t *testing.T) (*Node, transport.Conn) {
	t.Helper()
	net := transport.NewNetwork()
	t.Cleanup(net.Close)
	p := DefaultParams()
	p.DivsMajor = 8
	p.DivsMinor = 4
	n := NewNode(zerolog.Nop(), p, 0, net.Connect("tire0", "terrain"))
	return n, net.Connect("terrain", "tire0")
}

func sendDims(t *testing.T, terrain transport.Conn, height, halfLength float64) {
	t.Helper()
	env, err := wire.NewEnvelope(wire.TypeTerrainDims, 0, 0,
		wire.TerrainDimsPayload{Height: height, HalfLength: halfLength})
	require.NoError(t, err)
	require.NoError(t, terrain.Send(env))
}

func TestInitializeSendsHandshake(t *testing.T) {
	n, terrain := newTestNode(t)
	sendDims(t, terrain, 0.2, 2.0)
	require.NoError(t, n.Initialize())

	env, err := terrain.Recv()
	require.NoError(t, err)
	var topo wire.MeshTopologyPayload
	require.NoError(t, wire.Decode(env, wire.TypeMeshTopology, &topo))
	assert.Equal(t, uint32(8*4), topo.NumVertices)
	assert.Equal(t, uint32(2*8*4), topo.NumTriangles)

	env, err = terrain.Recv()
	require.NoError(t, err)
	var mat wire.TireMaterialPayload
	require.NoError(t, wire.Decode(env, wire.TypeTireMaterial, &mat))
	assert.Equal(t, DefaultParams().Material.Friction, mat.Props[0])

	// Spindle starts on the platform, resting on the terrain surface.
	assert.InDelta(t, 0.2+n.Mesh().OuterRadius(), n.Center().Z(), 1e-12)
	assert.Less(t, n.Center().X(), 0.0)
}

func TestSynchronizeAppliesForces(t *testing.T) {
	n, terrain := newTestNode(t)
	sendDims(t, terrain, 0, 2.0)
	require.NoError(t, n.Initialize())
	terrain.Recv()
	terrain.Recv()

	env, err := wire.NewEnvelope(wire.TypeMeshForces, 0, 1, wire.MeshForcesPayload{
		Indices: []int32{2, 5},
		Forces:  []float64{0, 0, 100, 10, 0, 50},
	})
	require.NoError(t, err)
	require.NoError(t, terrain.Send(env))

	require.NoError(t, n.Synchronize(1, 1e-3))

	// Terrain side received state and connectivity for this step.
	got, err := terrain.Recv()
	require.NoError(t, err)
	assert.Equal(t, wire.TypeMeshState, got.Type)
	assert.Equal(t, 1, got.Step)
	got, err = terrain.Recv()
	require.NoError(t, err)
	assert.Equal(t, wire.TypeMeshConnectivity, got.Type)

	assert.Equal(t, mgl64.Vec3{10, 0, 150}, n.TerrainForce())
}

func TestAdvanceMovesForwardAndFalls(t *testing.T) {
	n, terrain := newTestNode(t)
	sendDims(t, terrain, 0, 2.0)
	require.NoError(t, n.Initialize())

	x0 := n.Center().X()
	z0 := n.Center().Z()
	n.Advance(1e-2)

	assert.InDelta(t, x0+DefaultParams().ForwardSpeed*1e-2, n.Center().X(), 1e-9)
	assert.Less(t, n.Center().Z(), z0, "unsupported tire falls under gravity")
}

func TestSynchronizeRejectsBadForceMessage(t *testing.T) {
	n, terrain := newTestNode(t)
	sendDims(t, terrain, 0, 2.0)
	require.NoError(t, n.Initialize())

	env, err := wire.NewEnvelope(wire.TypeMeshForces, 0, 1, wire.MeshForcesPayload{
		Indices: []int32{1},
		Forces:  []float64{1, 2},
	})
	require.NoError(t, err)
	require.NoError(t, terrain.Send(env))

	assert.Error(t, n.Synchronize(1, 1e-3))
}
