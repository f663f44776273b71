package tire

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"github.com/treadsim/cosim/internal/node"
	"github.com/treadsim/cosim/internal/transport"
	"github.com/treadsim/cosim/pkg/core"
	"github.com/treadsim/cosim/pkg/wire"
)

const gravity = 9.81

// Params collects the tire node settings.
type Params struct {
	StepSize float64

	RingRadius    float64
	SectionRadius float64
	DivsMajor     int
	DivsMinor     int

	// Combined wheel and tire mass carried by the spindle.
	Mass float64
	// Prescribed forward speed; the spin rate follows from rolling
	// without slip at the outer radius.
	ForwardSpeed float64

	Material core.ContactMaterial
}

// DefaultParams is a passenger-car sized tire.
func DefaultParams() Params {
	return Params{
		StepSize:      1e-4,
		RingRadius:    0.46,
		SectionRadius: 0.12,
		DivsMajor:     24,
		DivsMinor:     8,
		Mass:          45,
		ForwardSpeed:  1.0,
		Material: core.ContactMaterial{
			Method:       core.ContactPenalty,
			Friction:     0.8,
			Restitution:  0.1,
			YoungModulus: 2e6,
			PoissonRatio: 0.3,
			Kn:           2e5,
			Gn:           40,
			Kt:           2e5,
			Gt:           20,
		},
	}
}

// Node is one tire node. The spindle moves at a prescribed forward
// speed and spin rate; only the vertical degree of freedom responds to
// terrain forces.
type Node struct {
	node.Base
	log   zerolog.Logger
	p     Params
	index int

	terrain *transport.Mailbox
	mesh    *Mesh

	center mgl64.Vec3
	zVel   float64
	spin   float64
	omega  float64

	// Net terrain force and contact vertex count from the last
	// synchronization.
	terrainForce mgl64.Vec3
	contactVerts int
}

// NewNode creates tire node index communicating with the terrain node
// over conn.
func NewNode(log zerolog.Logger, p Params, index int, conn transport.Conn) *Node {
	return &Node{
		Base:    node.NewBase(fmt.Sprintf("tire%d", index), p.StepSize),
		log:     log,
		p:       p,
		index:   index,
		terrain: transport.NewMailbox(conn),
		mesh:    NewMesh(p.RingRadius, p.SectionRadius, p.DivsMajor, p.DivsMinor),
		omega:   p.ForwardSpeed / (p.RingRadius + p.SectionRadius),
	}
}

// Mesh returns the tire's contact mesh.
func (n *Node) Mesh() *Mesh { return n.mesh }

// Index returns the tire index.
func (n *Node) Index() int { return n.index }

// Center returns the current spindle position.
func (n *Node) Center() mgl64.Vec3 { return n.center }

// TerrainForce returns the net terrain force from the last
// synchronization.
func (n *Node) TerrainForce() mgl64.Vec3 { return n.terrainForce }

// ContactVertices returns how many mesh vertices received force at the
// last synchronization.
func (n *Node) ContactVertices() int { return n.contactVerts }

// Initialize receives the settled terrain dimensions, places the
// spindle on the start platform, and sends the mesh topology and
// contact material to the terrain node.
func (n *Node) Initialize() error {
	env, err := n.terrain.Expect(wire.TypeTerrainDims, 0)
	if err != nil {
		return fmt.Errorf("waiting for terrain dimensions: %w", err)
	}
	var dims wire.TerrainDimsPayload
	if err := wire.Decode(env, wire.TypeTerrainDims, &dims); err != nil {
		return err
	}

	n.center = mgl64.Vec3{
		-dims.HalfLength + 1.1*n.mesh.OuterRadius(),
		0,
		dims.Height + n.mesh.OuterRadius(),
	}

	topo := wire.MeshTopologyPayload{
		NumVertices:  uint32(n.mesh.NumVertices()),
		NumTriangles: uint32(n.mesh.NumTriangles()),
	}
	env, err = wire.NewEnvelope(wire.TypeMeshTopology, n.index, 0, topo)
	if err != nil {
		return err
	}
	if err := n.terrain.Send(env); err != nil {
		return fmt.Errorf("sending mesh topology: %w", err)
	}

	env, err = wire.NewEnvelope(wire.TypeTireMaterial, n.index, 0,
		wire.TireMaterialPayload{Props: n.p.Material.Props()})
	if err != nil {
		return err
	}
	if err := n.terrain.Send(env); err != nil {
		return fmt.Errorf("sending tire material: %w", err)
	}

	n.log.Info().
		Int("vertices", n.mesh.NumVertices()).Int("triangles", n.mesh.NumTriangles()).
		Float64("x", n.center.X()).Float64("z", n.center.Z()).
		Msg("initialized tire")
	return nil
}

// Synchronize sends the current mesh state and connectivity, then
// receives and accumulates the terrain forces for this step.
func (n *Node) Synchronize(step int, time float64) error {
	verts := n.mesh.State(n.center, n.linVel(), n.spin, n.omega)

	state := wire.MeshStatePayload{VertData: make([]float64, 0, 6*len(verts))}
	for _, v := range verts {
		state.VertData = append(state.VertData, v.Pos.X(), v.Pos.Y(), v.Pos.Z())
	}
	for _, v := range verts {
		state.VertData = append(state.VertData, v.Vel.X(), v.Vel.Y(), v.Vel.Z())
	}
	env, err := wire.NewEnvelope(wire.TypeMeshState, n.index, step, state)
	if err != nil {
		return err
	}
	if err := n.terrain.Send(env); err != nil {
		return fmt.Errorf("sending mesh state: %w", err)
	}

	conn := wire.MeshConnectivityPayload{TriData: make([]int32, 0, 3*n.mesh.NumTriangles())}
	for _, tr := range n.mesh.Triangles() {
		conn.TriData = append(conn.TriData, int32(tr.V1), int32(tr.V2), int32(tr.V3))
	}
	env, err = wire.NewEnvelope(wire.TypeMeshConnectivity, n.index, step, conn)
	if err != nil {
		return err
	}
	if err := n.terrain.Send(env); err != nil {
		return fmt.Errorf("sending mesh connectivity: %w", err)
	}

	env, err = n.terrain.Expect(wire.TypeMeshForces, step)
	if err != nil {
		return err
	}
	var forces wire.MeshForcesPayload
	if err := wire.Decode(env, wire.TypeMeshForces, &forces); err != nil {
		return err
	}
	if 3*len(forces.Indices) != len(forces.Forces) {
		return fmt.Errorf("force message has %d indices but %d scalars",
			len(forces.Indices), len(forces.Forces))
	}

	n.terrainForce = mgl64.Vec3{}
	n.contactVerts = len(forces.Indices)
	for i, idx := range forces.Indices {
		if int(idx) >= n.mesh.NumVertices() {
			return fmt.Errorf("force index %d out of range", idx)
		}
		n.terrainForce = n.terrainForce.Add(
			mgl64.Vec3{forces.Forces[3*i], forces.Forces[3*i+1], forces.Forces[3*i+2]})
	}

	n.log.Debug().Int("step", step).Int("contactVertices", len(forces.Indices)).
		Float64("fz", n.terrainForce.Z()).Msg("synchronize")
	return nil
}

// Advance integrates the spindle over one macro step: vertical
// dynamics under gravity and the terrain force, prescribed forward
// motion and spin.
func (n *Node) Advance(macroStep float64) {
	n.Integrate(macroStep, func(h float64) {
		n.zVel += (n.terrainForce.Z()/n.p.Mass - gravity) * h
		n.center = n.center.Add(mgl64.Vec3{n.p.ForwardSpeed * h, 0, n.zVel * h})
		n.spin += n.omega * h
	})
}

func (n *Node) linVel() mgl64.Vec3 {
	return mgl64.Vec3{n.p.ForwardSpeed, 0, n.zVel}
}
