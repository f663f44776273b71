// Package wire defines the messages exchanged between co-simulation
// nodes. Every message travels inside an Envelope; payloads are JSON.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/treadsim/cosim/pkg/core"
)

// Message type constants for the co-simulation protocol.
const (
	// Connection identification, sent once by websocket clients.
	TypeHello = "hello"

	// Handshake (step tag is always 0).
	TypeTerrainDims  = "terrain_dims"
	TypeMeshTopology = "mesh_topology"
	TypeTireMaterial = "tire_material"

	// Per synchronization step.
	TypeMeshState        = "mesh_state"
	TypeMeshConnectivity = "mesh_connectivity"
	TypeMeshForces       = "mesh_forces"
)

// Envelope wraps all messages sent between nodes. Tire identifies the
// originating (or destination) tire channel; Step is the synchronization
// step tag used to reject stale data.
type Envelope struct {
	Type    string          `json:"type"`
	Tire    int             `json:"tire"`
	Step    int             `json:"step"`
	Payload json.RawMessage `json:"payload"`
}

// HelloPayload identifies a websocket client to the terrain node. Role
// is "rig" or "tire"; for tires the envelope Tire field carries the
// tire index.
type HelloPayload struct {
	Role string `json:"role"`
}

// TerrainDimsPayload is sent by the terrain node to the rig and tire
// nodes at startup: settled terrain height and platform+container
// half-length.
type TerrainDimsPayload struct {
	Height     float64 `json:"height"`
	HalfLength float64 `json:"halfLength"`
}

// MeshTopologyPayload declares a tire's mesh size during the handshake.
type MeshTopologyPayload struct {
	NumVertices  uint32 `json:"numVertices"`
	NumTriangles uint32 `json:"numTriangles"`
}

// TireMaterialPayload carries the flat contact material vector.
type TireMaterialPayload struct {
	Props [core.NumMaterialProps]float64 `json:"props"`
}

// MeshStatePayload carries vertex positions followed by velocities,
// 2*3*numVertices scalars in x,y,z triples.
type MeshStatePayload struct {
	VertData []float64 `json:"vertData"`
}

// MeshConnectivityPayload carries 3*numTriangles vertex indices.
type MeshConnectivityPayload struct {
	TriData []int32 `json:"triData"`
}

// MeshForcesPayload is the sparse force result for one tire and step:
// Indices[i] is a mesh vertex index, Forces[3i:3i+3] its force vector.
// Both are empty on step 0.
type MeshForcesPayload struct {
	Indices []int32   `json:"indices"`
	Forces  []float64 `json:"forces"`
}

// NewEnvelope marshals payload and wraps it in an Envelope.
func NewEnvelope(msgType string, tire, step int, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshaling %s payload: %w", msgType, err)
	}
	return Envelope{Type: msgType, Tire: tire, Step: step, Payload: raw}, nil
}

// Decode unmarshals the envelope payload into dst, verifying the type.
func Decode(env Envelope, msgType string, dst any) error {
	if env.Type != msgType {
		return fmt.Errorf("expected message type %q, got %q", msgType, env.Type)
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("unmarshaling %s payload: %w", msgType, err)
	}
	return nil
}
