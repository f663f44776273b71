// Package physics provides the narrow rigid-body interface consumed by
// the co-simulation nodes: body creation, sphere/box/triangle contact
// shapes addressed by opaque handles, collision families with
// intra-family exclusion, stepping, and per-body contact force queries.
//
// The built-in implementation is a penalty-contact engine (spring-damper
// normal force with a Coulomb cap on the tangential component) with a
// uniform-grid broad phase. It supports the contact pairs the nodes
// need: sphere-sphere, sphere-box, and sphere-triangle.
package physics

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/treadsim/cosim/pkg/core"
)

// BodyKind controls how a body participates in dynamics and collision.
type BodyKind int

const (
	// Dynamic bodies integrate under gravity and contact forces.
	Dynamic BodyKind = iota
	// Fixed bodies never move. Contact between two Fixed bodies is
	// always ignored.
	Fixed
	// Immovable bodies never move but still generate contact against
	// Fixed bodies. Used for the platform/container so that fixed
	// proxy bodies can still touch them.
	Immovable
)

// Body is one rigid body owned by a System.
type Body struct {
	kind    BodyKind
	id      int
	mass    float64
	invMass float64
	inertia mgl64.Vec3

	material core.ContactMaterial

	family        int
	excludeFamily int

	state    core.BodyState
	extForce mgl64.Vec3

	contactForce mgl64.Vec3
	active       bool

	shapes []ShapeID
}

// SetIdentifier tags the body with a user identifier (mesh element
// index for proxies, particle id for granular bodies).
func (b *Body) SetIdentifier(id int) { b.id = id }

// Identifier returns the user identifier.
func (b *Body) Identifier() int { return b.id }

// Kind returns the body kind.
func (b *Body) Kind() BodyKind { return b.kind }

// SetMass sets the body mass. Zero or negative mass makes the body
// non-responsive (infinite mass).
func (b *Body) SetMass(m float64) {
	b.mass = m
	if m > 0 {
		b.invMass = 1 / m
	} else {
		b.invMass = 0
	}
}

// SetInertia sets the diagonal of the body inertia tensor.
func (b *Body) SetInertia(xx mgl64.Vec3) { b.inertia = xx }

// SetMaterial assigns the contact material.
func (b *Body) SetMaterial(mat core.ContactMaterial) { b.material = mat }

// Material returns the contact material.
func (b *Body) Material() core.ContactMaterial { return b.material }

// SetCollisionFamily places the body in a collision family.
func (b *Body) SetCollisionFamily(f int) { b.family = f }

// DisableCollisionWithFamily suppresses contact against any body in
// family f (including the body's own family).
func (b *Body) DisableCollisionWithFamily(f int) { b.excludeFamily = f }

// State returns the body's kinematic state.
func (b *Body) State() core.BodyState { return b.state }

// SetState overwrites the body's full kinematic state.
func (b *Body) SetState(s core.BodyState) { b.state = s }

// Pos returns the body position.
func (b *Body) Pos() mgl64.Vec3 { return b.state.Pos }

// SetPos sets the body position.
func (b *Body) SetPos(p mgl64.Vec3) { b.state.Pos = p }

// LinVel returns the body linear velocity.
func (b *Body) LinVel() mgl64.Vec3 { return b.state.LinVel }

// SetLinVel sets the body linear velocity.
func (b *Body) SetLinVel(v mgl64.Vec3) { b.state.LinVel = v }

// SetRot sets the body orientation.
func (b *Body) SetRot(q mgl64.Quat) { b.state.Rot = q }

// SetRotVel sets the quaternion rate.
func (b *Body) SetRotVel(q mgl64.Quat) { b.state.RotVel = q }

// Active reports whether the body is still simulated (bodies leaving
// the deactivation volume are turned off).
func (b *Body) Active() bool { return b.active }

// ApplyForce accumulates an external force for the next step.
func (b *Body) ApplyForce(f mgl64.Vec3) { b.extForce = b.extForce.Add(f) }
