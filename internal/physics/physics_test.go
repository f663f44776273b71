package physics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treadsim/cosim/pkg/core"
)

func TestSphereOnBoxContact(t *testing.T) {
	sys := NewSystem(core.ContactPenalty)

	ground := sys.NewBody(Fixed)
	sys.AddBox(ground, mgl64.Vec3{1, 1, 0.1}, mgl64.Vec3{0, 0, -0.1})
	sys.AddBody(ground)

	ball := sys.NewBody(Dynamic)
	ball.SetMass(1)
	ball.SetPos(mgl64.Vec3{0, 0, 0.09})
	sys.AddSphere(ball, 0.1, mgl64.Vec3{})
	sys.AddBody(ball)

	sys.EvaluateContacts()

	require.Equal(t, 1, sys.NumContacts())
	f := sys.ContactForce(ball)
	assert.Greater(t, f.Z(), 0.0, "contact should push the sphere up")
	assert.InDelta(t, 0.0, f.X(), 1e-9)
	assert.InDelta(t, 0.0, f.Y(), 1e-9)
}

func TestSphereSphereSeparated(t *testing.T) {
	sys := NewSystem(core.ContactPenalty)

	a := sys.NewBody(Dynamic)
	a.SetPos(mgl64.Vec3{0, 0, 0})
	sys.AddSphere(a, 0.1, mgl64.Vec3{})
	sys.AddBody(a)

	b := sys.NewBody(Dynamic)
	b.SetPos(mgl64.Vec3{0.5, 0, 0})
	sys.AddSphere(b, 0.1, mgl64.Vec3{})
	sys.AddBody(b)

	sys.EvaluateContacts()
	assert.Equal(t, 0, sys.NumContacts())
}

func TestSphereTriangleContact(t *testing.T) {
	sys := NewSystem(core.ContactPenalty)

	tri := sys.NewBody(Fixed)
	sys.AddTriangle(tri,
		mgl64.Vec3{-1, -1, 0},
		mgl64.Vec3{1, -1, 0},
		mgl64.Vec3{0, 1, 0})
	sys.AddBody(tri)

	ball := sys.NewBody(Dynamic)
	ball.SetPos(mgl64.Vec3{0, 0, 0.05})
	sys.AddSphere(ball, 0.1, mgl64.Vec3{})
	sys.AddBody(ball)

	sys.EvaluateContacts()

	require.Equal(t, 1, sys.NumContacts())
	f := sys.ContactForce(ball)
	assert.Greater(t, f.Z(), 0.0)
}

func TestCollisionFamilyExclusion(t *testing.T) {
	sys := NewSystem(core.ContactPenalty)

	a := sys.NewBody(Dynamic)
	a.SetCollisionFamily(4)
	a.DisableCollisionWithFamily(4)
	sys.AddSphere(a, 0.1, mgl64.Vec3{})
	sys.AddBody(a)

	b := sys.NewBody(Dynamic)
	b.SetCollisionFamily(4)
	b.DisableCollisionWithFamily(4)
	b.SetPos(mgl64.Vec3{0.05, 0, 0})
	sys.AddSphere(b, 0.1, mgl64.Vec3{})
	sys.AddBody(b)

	sys.EvaluateContacts()
	assert.Equal(t, 0, sys.NumContacts(), "same-family bodies must not collide")
}

func TestImmovableCollidesWithFixed(t *testing.T) {
	sys := NewSystem(core.ContactPenalty)

	platform := sys.NewBody(Immovable)
	sys.AddBox(platform, mgl64.Vec3{1, 1, 0.1}, mgl64.Vec3{0, 0, -0.1})
	sys.AddBody(platform)

	probe := sys.NewBody(Fixed)
	probe.SetPos(mgl64.Vec3{0, 0, 0.05})
	sys.AddSphere(probe, 0.1, mgl64.Vec3{})
	sys.AddBody(probe)

	sys.EvaluateContacts()
	require.Equal(t, 1, sys.NumContacts())

	// Neither body moves under stepping.
	before := probe.Pos()
	sys.Step(1e-3)
	assert.Equal(t, before, probe.Pos())
}

func TestFixedFixedIgnored(t *testing.T) {
	sys := NewSystem(core.ContactPenalty)

	a := sys.NewBody(Fixed)
	sys.AddSphere(a, 0.1, mgl64.Vec3{})
	sys.AddBody(a)

	b := sys.NewBody(Fixed)
	b.SetPos(mgl64.Vec3{0.05, 0, 0})
	sys.AddSphere(b, 0.1, mgl64.Vec3{})
	sys.AddBody(b)

	sys.EvaluateContacts()
	assert.Equal(t, 0, sys.NumContacts())
}

func TestStepIntegratesGravity(t *testing.T) {
	sys := NewSystem(core.ContactPenalty)

	ball := sys.NewBody(Dynamic)
	ball.SetMass(2)
	ball.SetPos(mgl64.Vec3{0, 0, 10})
	sys.AddSphere(ball, 0.1, mgl64.Vec3{})
	sys.AddBody(ball)

	dt := 1e-3
	sys.Step(dt)

	assert.InDelta(t, -9.81*dt, ball.LinVel().Z(), 1e-12)
	assert.InDelta(t, 10-9.81*dt*dt, ball.Pos().Z(), 1e-12)
	assert.InDelta(t, dt, sys.Time(), 1e-15)
}

func TestDeactivationOutsideVolume(t *testing.T) {
	sys := NewSystem(core.ContactPenalty)
	sys.SetDeactivationBox(mgl64.Vec3{-1, -1, -1}, mgl64.Vec3{1, 1, 1})

	ball := sys.NewBody(Dynamic)
	ball.SetMass(1)
	ball.SetPos(mgl64.Vec3{0, 0, 0.5})
	ball.SetLinVel(mgl64.Vec3{0, 0, 1000})
	sys.AddSphere(ball, 0.1, mgl64.Vec3{})
	sys.AddBody(ball)

	sys.Step(1e-2)
	assert.False(t, ball.Active(), "body leaving the volume deactivates")

	// Inactive bodies are skipped thereafter.
	pos := ball.Pos()
	sys.Step(1e-2)
	assert.Equal(t, pos, ball.Pos())
}

func TestResizeBoxHandle(t *testing.T) {
	sys := NewSystem(core.ContactPenalty)

	b := sys.NewBody(Immovable)
	id := sys.AddBox(b, mgl64.Vec3{1, 1, 0.1}, mgl64.Vec3{})
	sys.AddBody(b)

	sys.ResizeBox(id, mgl64.Vec3{2, 0.5, 0.1}, mgl64.Vec3{0.5, 0, -0.2})
	hdims, off := sys.BoxShape(id)
	assert.Equal(t, mgl64.Vec3{2, 0.5, 0.1}, hdims)
	assert.Equal(t, mgl64.Vec3{0.5, 0, -0.2}, off)
}

func TestExternalForceClearedAfterStep(t *testing.T) {
	sys := NewSystem(core.ContactPenalty)
	sys.SetGravity(mgl64.Vec3{})

	ball := sys.NewBody(Dynamic)
	ball.SetMass(1)
	sys.AddSphere(ball, 0.1, mgl64.Vec3{})
	sys.AddBody(ball)

	ball.ApplyForce(mgl64.Vec3{1, 0, 0})
	sys.Step(1e-3)
	v1 := ball.LinVel().X()
	assert.InDelta(t, 1e-3, v1, 1e-12)

	sys.Step(1e-3)
	assert.InDelta(t, v1, ball.LinVel().X(), 1e-12, "force must not persist across steps")
}
