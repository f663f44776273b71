// Package terrain implements the terrain side of the co-simulation:
// container and granular material construction, settling, proxy bodies
// standing in for tire meshes, and the per-step synchronization
// exchange with the tire nodes.
package terrain

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"github.com/treadsim/cosim/internal/checkpoint"
	"github.com/treadsim/cosim/internal/node"
	"github.com/treadsim/cosim/internal/physics"
	"github.com/treadsim/cosim/internal/proxy"
	"github.com/treadsim/cosim/internal/transport"
	"github.com/treadsim/cosim/pkg/core"
	"github.com/treadsim/cosim/pkg/wire"
)

// Granular particle identifiers start here; everything below is
// container, platform, or proxy bodies.
const granularIDBase = 100000

const checkpointFilename = "checkpoint.dat"

// Params collects the terrain node settings.
type Params struct {
	TerrainType   core.TerrainType
	ContactMethod core.ContactMethod
	StepSize      float64

	// Container half dimensions and half wall thickness.
	HdimX, HdimY, HdimZ, Hthick float64
	// Start platform half length.
	HlenX float64

	// Granular material.
	RadiusG   float64
	RhoG      float64
	NumLayers int

	SettlingTime  float64
	UseCheckpoint bool

	// Proxy body properties.
	FixedProxies bool
	MassPN       float64
	RadiusPN     float64
	MassPF       float64

	// Contact material for container, platform, and particles.
	Material core.ContactMaterial

	OutDir string
}

// DefaultParams mirrors the historical test setup: a 2 x 0.5 x 1 m
// container with 1 cm granular spheres in 5 layers.
func DefaultParams() Params {
	return Params{
		TerrainType:   core.TerrainRigid,
		ContactMethod: core.ContactPenalty,
		StepSize:      1e-4,
		HdimX:         1.0,
		HdimY:         0.25,
		HdimZ:         0.5,
		Hthick:        0.1,
		HlenX:         0.5,
		RadiusG:       0.01,
		RhoG:          2000,
		NumLayers:     5,
		SettlingTime:  0.4,
		MassPN:        1,
		RadiusPN:      0.01,
		MassPF:        1,
		Material: core.ContactMaterial{
			Method:       core.ContactPenalty,
			Friction:     0.9,
			Restitution:  0.01,
			YoungModulus: 8e5,
			PoissonRatio: 0.3,
			Kn:           1.3e6,
			Gn:           1e1,
			Kt:           1e6,
			Gt:           1e1,
		},
	}
}

// Node is the terrain node. It owns the rigid-body system, the
// granular material, and one proxy set per tire.
type Node struct {
	node.Base
	log zerolog.Logger
	p   Params

	sys      *physics.System
	registry *proxy.Registry
	strategy proxyStrategy

	rig   *transport.Mailbox
	tires []*transport.Mailbox

	platform      *physics.Body
	platformShape physics.ShapeID
	granular      []*physics.Body

	initHeight  float64
	constructed bool
	settled     bool
}

// NewNode creates a terrain node communicating with the rig and tire
// nodes over the given connections.
func NewNode(log zerolog.Logger, p Params, rig transport.Conn, tires []transport.Conn) *Node {
	n := &Node{
		Base:     node.NewBase("terrain", p.StepSize),
		log:      log,
		p:        p,
		registry: proxy.NewRegistry(),
		rig:      transport.NewMailbox(rig),
	}
	for _, c := range tires {
		n.tires = append(n.tires, transport.NewMailbox(c))
	}

	switch p.TerrainType {
	case core.TerrainGranular:
		n.strategy = &faceStrategy{fixed: p.FixedProxies, mass: p.MassPF}
	default:
		n.strategy = &nodeStrategy{fixed: p.FixedProxies, mass: p.MassPN, radius: p.RadiusPN}
	}
	return n
}

// System exposes the underlying rigid-body system, mainly for tests
// and output writers.
func (n *Node) System() *physics.System { return n.sys }

// NumParticles returns the number of granular bodies.
func (n *Node) NumParticles() int { return len(n.granular) }

// InitHeight returns the terrain height established by Settle.
func (n *Node) InitHeight() float64 { return n.initHeight }

// Construct builds the mechanical system: platform, container, and
// (for granular terrain) the particle bed. Calling it more than once
// is a no-op; Settle and Initialize both invoke it.
func (n *Node) Construct() error {
	if n.constructed {
		return nil
	}
	n.constructed = true

	n.sys = physics.NewSystem(n.p.ContactMethod)

	if n.p.TerrainType == core.TerrainGranular {
		factor := 2
		binsX := int(math.Ceil(n.p.HdimX/n.p.RadiusG)) / factor
		binsY := int(math.Ceil(n.p.HdimY/n.p.RadiusG)) / factor
		n.sys.SetBroadphaseBins(binsX, binsY, 1)
		n.log.Info().Int("binsX", binsX).Int("binsY", binsY).Msg("broad-phase bins")
	}

	// Start platform. Its single box doubles as the rear container
	// wall; the top surface is adjusted after settling.
	hlenX := n.p.HlenX + n.p.Hthick
	n.platform = n.sys.NewBody(physics.Immovable)
	n.platform.SetIdentifier(-2)
	n.platform.SetMass(1000)
	n.platform.SetMaterial(n.p.Material)
	n.platformShape = n.sys.AddBox(n.platform,
		mgl64.Vec3{hlenX, n.p.HdimY, n.p.HdimZ + n.p.Hthick},
		mgl64.Vec3{-hlenX - n.p.HdimX, 0, n.p.HdimZ - n.p.Hthick})
	n.sys.AddBody(n.platform)

	// Container: bottom plus front, left, and right walls. The rear
	// wall is provided by the platform body.
	container := n.sys.NewBody(physics.Immovable)
	container.SetIdentifier(-1)
	container.SetMass(1000)
	container.SetMaterial(n.p.Material)
	n.sys.AddBox(container,
		mgl64.Vec3{n.p.HdimX, n.p.HdimY, n.p.Hthick},
		mgl64.Vec3{0, 0, -n.p.Hthick})
	n.sys.AddBox(container,
		mgl64.Vec3{n.p.Hthick, n.p.HdimY, n.p.HdimZ + n.p.Hthick},
		mgl64.Vec3{n.p.HdimX + n.p.Hthick, 0, n.p.HdimZ - n.p.Hthick})
	n.sys.AddBox(container,
		mgl64.Vec3{n.p.HdimX, n.p.Hthick, n.p.HdimZ + n.p.Hthick},
		mgl64.Vec3{0, n.p.HdimY + n.p.Hthick, n.p.HdimZ - n.p.Hthick})
	n.sys.AddBox(container,
		mgl64.Vec3{n.p.HdimX, n.p.Hthick, n.p.HdimZ + n.p.Hthick},
		mgl64.Vec3{0, -n.p.HdimY - n.p.Hthick, n.p.HdimZ - n.p.Hthick})

	n.sys.AddBody(container)

	// Particles escaping this volume get deactivated.
	n.sys.SetDeactivationBox(
		mgl64.Vec3{-n.p.HdimX - n.p.Hthick - 2*hlenX, -n.p.HdimY - n.p.Hthick, -n.p.Hthick},
		mgl64.Vec3{n.p.HdimX + n.p.Hthick, n.p.HdimY + n.p.Hthick, 2*n.p.HdimZ + 2})

	if n.p.TerrainType == core.TerrainGranular {
		n.createParticles()
		n.log.Info().Int("particles", len(n.granular)).Msg("generated granular material")
	}

	if n.p.OutDir != "" {
		if err := n.writeSettings(); err != nil {
			return err
		}
	}
	return nil
}

// createParticles fills the container with layers of spheres at
// Poisson-disk locations.
func (n *Node) createParticles() {
	r := 1.01 * n.p.RadiusG
	mass := n.p.RhoG * 4.0 / 3.0 * math.Pi * n.p.RadiusG * n.p.RadiusG * n.p.RadiusG
	inr := 0.4 * mass * n.p.RadiusG * n.p.RadiusG

	sampler := newPoissonSampler(2*r, 42)
	id := granularIDBase
	z := 2 * r
	for il := 0; il < n.p.NumLayers; il++ {
		pts := sampler.sample(n.p.HdimX-r, n.p.HdimY-r)
		for _, pt := range pts {
			b := n.sys.NewBody(physics.Dynamic)
			b.SetIdentifier(id)
			b.SetMass(mass)
			b.SetInertia(mgl64.Vec3{inr, inr, inr})
			b.SetMaterial(n.p.Material)
			b.SetPos(mgl64.Vec3{pt[0], pt[1], z})
			n.sys.AddSphere(b, n.p.RadiusG, mgl64.Vec3{})
			n.sys.AddBody(b)
			n.granular = append(n.granular, b)
			id++
		}
		z += 2 * r
	}
}

// Settle establishes the initial terrain height. Granular material is
// either simulated until SettlingTime has elapsed or restored from a
// checkpoint file; rigid terrain settles trivially at height zero.
func (n *Node) Settle() error {
	if err := n.Construct(); err != nil {
		return err
	}
	n.settled = true

	if n.p.TerrainType != core.TerrainGranular {
		n.initHeight = 0
		return nil
	}

	if n.p.UseCheckpoint {
		if err := n.readCheckpoint(); err != nil {
			return err
		}
	} else {
		steps := int(math.Ceil(n.p.SettlingTime / n.p.StepSize))
		for i := 0; i < steps; i++ {
			n.Integrate(n.p.StepSize, func(h float64) { n.sys.Step(h) })
		}
		n.log.Info().Dur("elapsed", n.TotalTime()).Msg("settling complete")
	}

	// Terrain height is the top of the highest particle.
	n.initHeight = 0
	for _, b := range n.granular {
		if z := b.Pos().Z(); z > n.initHeight {
			n.initHeight = z
		}
	}
	n.initHeight += n.p.RadiusG
	return nil
}

// Initialize performs the startup handshake: it sends the terrain
// height and container half-length to the rig node, then for each tire
// receives the mesh topology and contact material and creates the
// proxy bodies. The platform top is raised to the settled height.
func (n *Node) Initialize() error {
	if err := n.Construct(); err != nil {
		return err
	}
	n.sys.SetTime(0)

	dims := wire.TerrainDimsPayload{
		Height:     n.initHeight,
		HalfLength: n.p.HdimX + 2*n.p.HlenX,
	}
	env, err := wire.NewEnvelope(wire.TypeTerrainDims, 0, 0, dims)
	if err != nil {
		return err
	}
	if err := n.rig.Send(env); err != nil {
		return fmt.Errorf("sending terrain dimensions: %w", err)
	}
	for which, tire := range n.tires {
		env, err := wire.NewEnvelope(wire.TypeTerrainDims, which, 0, dims)
		if err != nil {
			return err
		}
		if err := tire.Send(env); err != nil {
			return fmt.Errorf("sending terrain dimensions to tire %d: %w", which, err)
		}
	}
	n.log.Info().Float64("height", dims.Height).Float64("halfLength", dims.HalfLength).
		Msg("sent terrain dimensions")

	// Raise the platform so its top surface sits at the settled height.
	hdims, off := n.sys.BoxShape(n.platformShape)
	zmin := off.Z() - hdims.Z()
	height := n.initHeight - zmin
	hdims = mgl64.Vec3{hdims.X(), hdims.Y(), height / 2}
	off = mgl64.Vec3{off.X(), off.Y(), zmin + height/2}
	n.sys.ResizeBox(n.platformShape, hdims, off)

	for which, tire := range n.tires {
		env, err := tire.Expect(wire.TypeMeshTopology, 0)
		if err != nil {
			return err
		}
		var topo wire.MeshTopologyPayload
		if err := wire.Decode(env, wire.TypeMeshTopology, &topo); err != nil {
			return err
		}
		n.log.Info().Int("tire", which).
			Uint32("vertices", topo.NumVertices).Uint32("triangles", topo.NumTriangles).
			Msg("received mesh topology")

		env, err = tire.Expect(wire.TypeTireMaterial, 0)
		if err != nil {
			return err
		}
		var matMsg wire.TireMaterialPayload
		if err := wire.Decode(env, wire.TypeTireMaterial, &matMsg); err != nil {
			return err
		}
		mat := core.MaterialFromProps(n.p.ContactMethod, matMsg.Props)
		n.log.Info().Int("tire", which).Float64("friction", mat.Friction).
			Msg("received tire material")

		set, err := n.registry.Register(which, int(topo.NumVertices), int(topo.NumTriangles), mat)
		if err != nil {
			return err
		}
		n.strategy.CreateProxies(n.sys, set)
	}
	return nil
}

// Synchronize performs one data exchange: receive mesh states, update
// the proxies, evaluate contact forces, and send the vertex forces
// back. No forces are collected at step 0.
func (n *Node) Synchronize(step int, time float64) error {
	for which, tire := range n.tires {
		set, _ := n.registry.Get(which)

		env, err := tire.Expect(wire.TypeMeshState, step)
		if err != nil {
			return err
		}
		var state wire.MeshStatePayload
		if err := wire.Decode(env, wire.TypeMeshState, &state); err != nil {
			return err
		}
		if want := 2 * 3 * set.NumVertices; len(state.VertData) != want {
			return fmt.Errorf("tire %d: mesh state has %d scalars, want %d",
				which, len(state.VertData), want)
		}

		env, err = tire.Expect(wire.TypeMeshConnectivity, step)
		if err != nil {
			return err
		}
		var conn wire.MeshConnectivityPayload
		if err := wire.Decode(env, wire.TypeMeshConnectivity, &conn); err != nil {
			return err
		}
		if want := 3 * set.NumTriangles; len(conn.TriData) != want {
			return fmt.Errorf("tire %d: connectivity has %d indices, want %d",
				which, len(conn.TriData), want)
		}

		for iv := 0; iv < set.NumVertices; iv++ {
			o := 3 * iv
			set.Vertices[iv].Pos = mgl64.Vec3{state.VertData[o], state.VertData[o+1], state.VertData[o+2]}
			o += 3 * set.NumVertices
			set.Vertices[iv].Vel = mgl64.Vec3{state.VertData[o], state.VertData[o+1], state.VertData[o+2]}
		}
		for it := 0; it < set.NumTriangles; it++ {
			set.Triangles[it] = core.Triangle{
				V1: int(conn.TriData[3*it+0]),
				V2: int(conn.TriData[3*it+1]),
				V3: int(conn.TriData[3*it+2]),
			}
		}

		n.strategy.UpdateProxies(n.sys, set)
	}

	n.sys.EvaluateContacts()
	n.log.Debug().Int("step", step).Int("contacts", n.sys.NumContacts()).Msg("synchronize")

	for which, tire := range n.tires {
		set, _ := n.registry.Get(which)

		var samples []core.ForceSample
		if step > 0 {
			samples = n.strategy.CollectForces(n.sys, set)
		}

		payload := wire.MeshForcesPayload{
			Indices: make([]int32, 0, len(samples)),
			Forces:  make([]float64, 0, 3*len(samples)),
		}
		for _, s := range samples {
			payload.Indices = append(payload.Indices, int32(s.Index))
			payload.Forces = append(payload.Forces, s.Force.X(), s.Force.Y(), s.Force.Z())
		}

		env, err := wire.NewEnvelope(wire.TypeMeshForces, which, step, payload)
		if err != nil {
			return err
		}
		if err := tire.Send(env); err != nil {
			return fmt.Errorf("sending forces to tire %d: %w", which, err)
		}
	}
	return nil
}

// Advance integrates the terrain dynamics over one macro step.
func (n *Node) Advance(macroStep float64) {
	n.Integrate(macroStep, func(h float64) { n.sys.Step(h) })
}

// WriteCheckpoint saves the granular material state so later runs can
// skip the settling phase.
func (n *Node) WriteCheckpoint() error {
	cp := checkpoint.Checkpoint{Time: n.sys.Time()}
	for _, b := range n.sys.Bodies() {
		if b.Identifier() < granularIDBase {
			continue
		}
		cp.Bodies = append(cp.Bodies, checkpoint.Record{ID: b.Identifier(), State: b.State()})
	}
	path := filepath.Join(n.p.OutDir, checkpointFilename)
	if err := checkpoint.Save(path, cp); err != nil {
		return err
	}
	n.log.Info().Str("path", path).Int("particles", len(cp.Bodies)).Msg("wrote checkpoint")
	return nil
}

// readCheckpoint restores granular body states. The particle count in
// the file must match the current simulation exactly; nothing is
// applied otherwise.
func (n *Node) readCheckpoint() error {
	path := filepath.Join(n.p.OutDir, checkpointFilename)
	cp, err := checkpoint.Load(path, len(n.granular))
	if err != nil {
		return err
	}
	byID := make(map[int]*physics.Body, len(n.granular))
	for _, b := range n.granular {
		byID[b.Identifier()] = b
	}
	for _, rec := range cp.Bodies {
		b, ok := byID[rec.ID]
		if !ok {
			return fmt.Errorf("checkpoint: unknown body identifier %d", rec.ID)
		}
		b.SetState(rec.State)
	}
	n.sys.SetTime(cp.Time)
	n.log.Info().Str("path", path).Int("particles", len(cp.Bodies)).Msg("read checkpoint")
	return nil
}

// writeSettings records the terrain configuration next to the output
// data.
func (n *Node) writeSettings() error {
	if err := os.MkdirAll(n.p.OutDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(filepath.Join(n.p.OutDir, "settings.dat"))
	if err != nil {
		return fmt.Errorf("creating settings file: %w", err)
	}
	fmt.Fprintf(f, "Terrain type = %s\n", n.p.TerrainType)
	fmt.Fprintf(f, "System settings\n")
	fmt.Fprintf(f, "   Integration step size = %v\n", n.p.StepSize)
	fmt.Fprintf(f, "   Contact method = %s\n", n.p.ContactMethod)
	fmt.Fprintf(f, "Container dimensions\n")
	fmt.Fprintf(f, "   X = %v  Y = %v  Z = %v\n", 2*n.p.HdimX, 2*n.p.HdimY, 2*n.p.HdimZ)
	fmt.Fprintf(f, "   wall thickness = %v\n", 2*n.p.Hthick)
	fmt.Fprintf(f, "Platform half-length = %v\n", n.p.HlenX)
	if n.p.TerrainType == core.TerrainGranular {
		fmt.Fprintf(f, "Granular material\n")
		fmt.Fprintf(f, "   radius = %v\n", n.p.RadiusG)
		fmt.Fprintf(f, "   density = %v\n", n.p.RhoG)
		fmt.Fprintf(f, "   layers = %d\n", n.p.NumLayers)
		fmt.Fprintf(f, "   particles = %d\n", len(n.granular))
	}
	fmt.Fprintf(f, "Proxy bodies\n")
	fmt.Fprintf(f, "   fixed? %v\n", n.p.FixedProxies)
	return f.Close()
}
