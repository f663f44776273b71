// Package rig implements the rig node, the vehicle-side coordinator of
// the co-simulation. It receives the settled terrain dimensions during
// the handshake and hands them to the tire nodes it drives.
package rig

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/treadsim/cosim/internal/transport"
	"github.com/treadsim/cosim/pkg/wire"
)

// Node is the rig node.
type Node struct {
	log     zerolog.Logger
	terrain *transport.Mailbox

	height     float64
	halfLength float64
}

// NewNode creates a rig node communicating with the terrain node over
// conn.
func NewNode(log zerolog.Logger, conn transport.Conn) *Node {
	return &Node{log: log, terrain: transport.NewMailbox(conn)}
}

// Initialize receives the terrain height and container half-length
// from the terrain node.
func (n *Node) Initialize() error {
	env, err := n.terrain.Expect(wire.TypeTerrainDims, 0)
	if err != nil {
		return fmt.Errorf("waiting for terrain dimensions: %w", err)
	}
	var dims wire.TerrainDimsPayload
	if err := wire.Decode(env, wire.TypeTerrainDims, &dims); err != nil {
		return err
	}
	n.height = dims.Height
	n.halfLength = dims.HalfLength

	n.log.Info().Float64("height", n.height).Float64("halfLength", n.halfLength).
		Msg("received terrain dimensions")
	return nil
}

// TerrainHeight returns the settled terrain height.
func (n *Node) TerrainHeight() float64 { return n.height }

// HalfLength returns the container plus platform half-length.
func (n *Node) HalfLength() float64 { return n.halfLength }
