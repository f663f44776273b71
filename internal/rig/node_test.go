package rig

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treadsim/cosim/internal/transport"
	"github.com/treadsim/cosim/pkg/wire"
)

func TestInitializeReceivesDims(t *testing.T) {
	net := transport.NewNetwork()
	t.Cleanup(net.Close)

	terrain := net.Connect("terrain", "rig")
	n := NewNode(zerolog.Nop(), net.Connect("rig", "terrain"))

	env, err := wire.NewEnvelope(wire.TypeTerrainDims, 0, 0,
		wire.TerrainDimsPayload{Height: 0.11, HalfLength: 2.0})
	require.NoError(t, err)
	require.NoError(t, terrain.Send(env))

	require.NoError(t, n.Initialize())
	assert.Equal(t, 0.11, n.TerrainHeight())
	assert.Equal(t, 2.0, n.HalfLength())
}

func TestInitializeFailsOnClosedChannel(t *testing.T) {
	net := transport.NewNetwork()
	n := NewNode(zerolog.Nop(), net.Connect("rig", "terrain"))
	net.Close()

	assert.Error(t, n.Initialize())
}
