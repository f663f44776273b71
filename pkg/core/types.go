// pkg/core/types.go
package core

import (
	"github.com/go-gl/mathgl/mgl64"
)

// TerrainType selects the physical representation of the terrain.
type TerrainType int

const (
	TerrainRigid TerrainType = iota
	TerrainGranular
)

func (t TerrainType) String() string {
	if t == TerrainRigid {
		return "RIGID"
	}
	return "GRANULAR"
}

// ContactMethod selects the contact formulation used by a node's
// physics system and determines how tire material parameters are
// interpreted during the handshake.
type ContactMethod int

const (
	// ContactPenalty is a stiffness/damping (spring-damper) formulation.
	ContactPenalty ContactMethod = iota
	// ContactComplementarity uses only friction and restitution.
	ContactComplementarity
)

func (m ContactMethod) String() string {
	if m == ContactPenalty {
		return "PENALTY"
	}
	return "COMPLEMENTARITY"
}

// BodyState is the full kinematic state of a rigid body.
// RotVel is the quaternion rate, matching the checkpoint file layout.
type BodyState struct {
	Pos    mgl64.Vec3
	Rot    mgl64.Quat
	LinVel mgl64.Vec3
	RotVel mgl64.Quat
}

// VertexState is the position and velocity of one tire mesh vertex.
type VertexState struct {
	Pos mgl64.Vec3
	Vel mgl64.Vec3
}

// Triangle holds the vertex indices of one tire mesh face, local to
// the owning tire's index space.
type Triangle struct {
	V1, V2, V3 int
}

// ForceSample is a contact force attributed to one mesh vertex.
type ForceSample struct {
	Index int
	Force mgl64.Vec3
}
