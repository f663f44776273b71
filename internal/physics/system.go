package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/treadsim/cosim/pkg/core"
)

// ShapeID is an opaque handle to a contact shape, returned at creation
// time and valid for the lifetime of the system.
type ShapeID int

type shapeKind int

const (
	sphereShape shapeKind = iota
	boxShape
	triangleShape
)

type shape struct {
	kind shapeKind
	body *Body

	// sphere
	radius float64
	// sphere/box center offset in the body frame
	offset mgl64.Vec3
	// box half dimensions
	hdims mgl64.Vec3
	// triangle vertices in the body frame
	a, b, c mgl64.Vec3
}

// Contact is one detected contact pair, reported via ActiveContacts.
type Contact struct {
	A, B   *Body
	Point  mgl64.Vec3
	Normal mgl64.Vec3 // from A towards B
	Depth  float64
	Force  mgl64.Vec3 // force applied to B (A receives the negative)
}

// Default normal stiffness/damping used when a material pair carries no
// penalty parameters (complementarity formulation).
const (
	defaultKn = 2.0e5
	defaultGn = 40.0
	defaultKt = 2.0e5
	defaultGt = 20.0
)

// System is a self-contained rigid-body world with penalty contact.
type System struct {
	method  core.ContactMethod
	gravity mgl64.Vec3

	bodies []*Body
	shapes []shape

	bins     [3]int
	aabbMin  mgl64.Vec3
	aabbMax  mgl64.Vec3
	useAABB  bool
	contacts []Contact

	time float64
}

// NewSystem creates an empty system using the given contact method.
func NewSystem(method core.ContactMethod) *System {
	return &System{
		method:  method,
		gravity: mgl64.Vec3{0, 0, -9.81},
	}
}

// SetGravity sets the gravitational acceleration.
func (s *System) SetGravity(g mgl64.Vec3) { s.gravity = g }

// Method returns the contact method the system was created with.
func (s *System) Method() core.ContactMethod { return s.method }

// NewBody creates a body of the given kind. The body is not simulated
// until AddBody is called.
func (s *System) NewBody(kind BodyKind) *Body {
	return &Body{
		kind:    kind,
		active:  true,
		state:   core.BodyState{Rot: mgl64.QuatIdent()},
		mass:    1,
		invMass: 1,
	}
}

// AddBody inserts the body into the world.
func (s *System) AddBody(b *Body) {
	s.bodies = append(s.bodies, b)
}

// Bodies returns all bodies in insertion order.
func (s *System) Bodies() []*Body { return s.bodies }

// NumBodies returns the number of bodies in the world.
func (s *System) NumBodies() int { return len(s.bodies) }

// NumShapes returns the number of contact shapes in the world.
func (s *System) NumShapes() int { return len(s.shapes) }

// AddSphere attaches a spherical contact shape to the body.
func (s *System) AddSphere(b *Body, radius float64, offset mgl64.Vec3) ShapeID {
	id := ShapeID(len(s.shapes))
	s.shapes = append(s.shapes, shape{kind: sphereShape, body: b, radius: radius, offset: offset})
	b.shapes = append(b.shapes, id)
	return id
}

// AddBox attaches an axis-aligned box contact shape to the body.
func (s *System) AddBox(b *Body, hdims, offset mgl64.Vec3) ShapeID {
	id := ShapeID(len(s.shapes))
	s.shapes = append(s.shapes, shape{kind: boxShape, body: b, hdims: hdims, offset: offset})
	b.shapes = append(b.shapes, id)
	return id
}

// AddTriangle attaches a triangular contact shape to the body, with
// vertices expressed in the body frame.
func (s *System) AddTriangle(b *Body, a, bb, c mgl64.Vec3) ShapeID {
	id := ShapeID(len(s.shapes))
	s.shapes = append(s.shapes, shape{kind: triangleShape, body: b, a: a, b: bb, c: c})
	b.shapes = append(b.shapes, id)
	return id
}

// ResizeBox rewrites the half dimensions and offset of a box shape.
func (s *System) ResizeBox(id ShapeID, hdims, offset mgl64.Vec3) {
	sh := &s.shapes[id]
	sh.hdims = hdims
	sh.offset = offset
}

// BoxShape returns the half dimensions and offset of a box shape.
func (s *System) BoxShape(id ShapeID) (hdims, offset mgl64.Vec3) {
	sh := &s.shapes[id]
	return sh.hdims, sh.offset
}

// SetTriangle rewrites the vertices of a triangle shape (body frame).
func (s *System) SetTriangle(id ShapeID, a, b, c mgl64.Vec3) {
	sh := &s.shapes[id]
	sh.a, sh.b, sh.c = a, b, c
}

// SetDeactivationBox enables deactivation of dynamic bodies whose
// center leaves the given axis-aligned volume.
func (s *System) SetDeactivationBox(min, max mgl64.Vec3) {
	s.aabbMin = min
	s.aabbMax = max
	s.useAABB = true
}

// SetBroadphaseBins sets the uniform-grid resolution hint. With zero
// bins the broad phase falls back to exhaustive pairing.
func (s *System) SetBroadphaseBins(x, y, z int) {
	s.bins = [3]int{x, y, z}
}

// Time returns the accumulated simulation time.
func (s *System) Time() float64 { return s.time }

// SetTime resets the simulation clock.
func (s *System) SetTime(t float64) { s.time = t }

// ContactForce returns the contact force accumulated on the body by
// the most recent EvaluateContacts or Step call.
func (s *System) ContactForce(b *Body) mgl64.Vec3 { return b.contactForce }

// NumContacts returns the number of contacts from the last evaluation.
func (s *System) NumContacts() int { return len(s.contacts) }

// ActiveContacts invokes cb for every contact from the last evaluation.
func (s *System) ActiveContacts(cb func(Contact)) {
	for _, c := range s.contacts {
		cb(c)
	}
}

// EvaluateContacts runs collision detection and the contact force
// model against the current body configuration without advancing time.
func (s *System) EvaluateContacts() {
	for _, b := range s.bodies {
		b.contactForce = mgl64.Vec3{}
	}
	s.contacts = s.contacts[:0]

	pairs := s.broadphasePairs()
	for _, p := range pairs {
		c, ok := narrowphase(&s.shapes[p[0]], &s.shapes[p[1]])
		if !ok {
			continue
		}
		c.Force = s.contactForceFor(c)
		c.A.contactForce = c.A.contactForce.Sub(c.Force)
		c.B.contactForce = c.B.contactForce.Add(c.Force)
		s.contacts = append(s.contacts, c)
	}
}

// Step evaluates contacts and advances all dynamic bodies by dt using
// semi-implicit Euler integration.
func (s *System) Step(dt float64) {
	s.EvaluateContacts()

	for _, b := range s.bodies {
		if b.kind != Dynamic || !b.active || b.invMass == 0 {
			b.extForce = mgl64.Vec3{}
			continue
		}
		acc := s.gravity.Add(b.contactForce.Add(b.extForce).Mul(b.invMass))
		b.state.LinVel = b.state.LinVel.Add(acc.Mul(dt))
		b.state.Pos = b.state.Pos.Add(b.state.LinVel.Mul(dt))
		b.extForce = mgl64.Vec3{}

		if s.useAABB && !s.inside(b.state.Pos) {
			b.active = false
		}
	}

	s.time += dt
}

func (s *System) inside(p mgl64.Vec3) bool {
	return p.X() >= s.aabbMin.X() && p.X() <= s.aabbMax.X() &&
		p.Y() >= s.aabbMin.Y() && p.Y() <= s.aabbMax.Y() &&
		p.Z() >= s.aabbMin.Z() && p.Z() <= s.aabbMax.Z()
}

// contactForceFor computes the penalty contact force for one contact,
// combining the two bodies' materials.
func (s *System) contactForceFor(c Contact) mgl64.Vec3 {
	kn, gn, kt, gt, mu := combineMaterials(c.A.material, c.B.material)

	relVel := c.B.state.LinVel.Sub(c.A.state.LinVel)
	vn := relVel.Dot(c.Normal)

	fn := kn*c.Depth - gn*vn
	if fn < 0 {
		fn = 0
	}

	force := c.Normal.Mul(fn)

	vt := relVel.Sub(c.Normal.Mul(vn))
	vtLen := vt.Len()
	if vtLen > 1e-12 && fn > 0 {
		ft := math.Min(mu*fn, kt/kn*gt*vtLen)
		force = force.Sub(vt.Mul(ft / vtLen))
	}

	return force
}

// combineMaterials reduces a material pair to effective contact
// coefficients. Stiffness and damping combine harmonically; friction
// takes the minimum of the pair, matching the usual engine convention.
func combineMaterials(a, b core.ContactMaterial) (kn, gn, kt, gt, mu float64) {
	kn = harmonic(a.Kn, b.Kn, defaultKn)
	gn = harmonic(a.Gn, b.Gn, defaultGn)
	kt = harmonic(a.Kt, b.Kt, defaultKt)
	gt = harmonic(a.Gt, b.Gt, defaultGt)
	mu = math.Min(a.Friction, b.Friction)
	return
}

func harmonic(x, y, def float64) float64 {
	if x <= 0 {
		x = def
	}
	if y <= 0 {
		y = def
	}
	return 2 * x * y / (x + y)
}

// collidable applies kind and family filtering before narrow phase.
func collidable(a, b *Body) bool {
	if a == b || !a.active || !b.active {
		return false
	}
	if a.kind != Dynamic && b.kind != Dynamic {
		// Two bodies that can never move only collide when exactly one
		// of them is Immovable; Fixed-Fixed and Immovable-Immovable
		// pairs are ignored.
		if a.kind == b.kind {
			return false
		}
	}
	if a.excludeFamily != 0 && a.excludeFamily == b.family {
		return false
	}
	if b.excludeFamily != 0 && b.excludeFamily == a.family {
		return false
	}
	return true
}
