package transport

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treadsim/cosim/pkg/wire"
)

func TestFifoOrdering(t *testing.T) {
	q := newFifo[int]()
	for i := 0; i < 100; i++ {
		require.NoError(t, q.Push(i))
	}
	for i := 0; i < 100; i++ {
		v, err := q.Pop()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
}

func TestFifoCloseUnblocksPop(t *testing.T) {
	q := newFifo[int]()
	done := make(chan error, 1)
	go func() {
		_, err := q.Pop()
		done <- err
	}()
	q.Close()
	assert.ErrorIs(t, <-done, ErrClosed)
	assert.ErrorIs(t, q.Push(1), ErrClosed)
}

func TestInprocChannelsIndependent(t *testing.T) {
	net := NewNetwork()
	defer net.Close()

	terrainToA := net.Connect("terrain", "tire0")
	terrainToB := net.Connect("terrain", "tire1")
	tireA := net.Connect("tire0", "terrain")
	tireB := net.Connect("tire1", "terrain")

	envA, err := wire.NewEnvelope(wire.TypeMeshState, 0, 3, wire.MeshStatePayload{})
	require.NoError(t, err)
	envB, err := wire.NewEnvelope(wire.TypeMeshState, 1, 7, wire.MeshStatePayload{})
	require.NoError(t, err)

	require.NoError(t, tireA.Send(envA))
	require.NoError(t, tireB.Send(envB))

	// Traffic from tire1 must not appear on tire0's channel.
	got, err := terrainToA.Recv()
	require.NoError(t, err)
	assert.Equal(t, 3, got.Step)

	got, err = terrainToB.Recv()
	require.NoError(t, err)
	assert.Equal(t, 7, got.Step)
}

func TestInprocConcurrentSendRecv(t *testing.T) {
	net := NewNetwork()
	defer net.Close()

	const n = 500
	tx := net.Connect("a", "b")
	rx := net.Connect("b", "a")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			env, _ := wire.NewEnvelope(wire.TypeMeshForces, 0, i, wire.MeshForcesPayload{})
			_ = tx.Send(env)
		}
	}()

	for i := 0; i < n; i++ {
		env, err := rx.Recv()
		require.NoError(t, err)
		assert.Equal(t, i, env.Step, "fifo order must be preserved")
	}
	wg.Wait()
}

func TestMailboxDemuxByType(t *testing.T) {
	net := NewNetwork()
	defer net.Close()

	peer := net.Connect("tire0", "terrain")
	mb := NewMailbox(net.Connect("terrain", "tire0"))

	state, err := wire.NewEnvelope(wire.TypeMeshState, 0, 1, wire.MeshStatePayload{VertData: []float64{1}})
	require.NoError(t, err)
	conn, err := wire.NewEnvelope(wire.TypeMeshConnectivity, 0, 1, wire.MeshConnectivityPayload{TriData: []int32{0, 1, 2}})
	require.NoError(t, err)

	// Arrival order is connectivity first, but the consumer asks for
	// state first. The mailbox must buffer across types.
	require.NoError(t, peer.Send(conn))
	require.NoError(t, peer.Send(state))

	got, err := mb.Expect(wire.TypeMeshState, 1)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeMeshState, got.Type)

	got, err = mb.Expect(wire.TypeMeshConnectivity, 1)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeMeshConnectivity, got.Type)
}

func TestMailboxDropsStaleSteps(t *testing.T) {
	net := NewNetwork()
	defer net.Close()

	peer := net.Connect("tire0", "terrain")
	mb := NewMailbox(net.Connect("terrain", "tire0"))

	for _, step := range []int{3, 4, 5} {
		env, err := wire.NewEnvelope(wire.TypeMeshState, 0, step, wire.MeshStatePayload{})
		require.NoError(t, err)
		require.NoError(t, peer.Send(env))
	}

	got, err := mb.Expect(wire.TypeMeshState, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Step, "older step tags must be discarded")
}

func TestMailboxErrorOnClosedConn(t *testing.T) {
	net := NewNetwork()
	conn := net.Connect("terrain", "tire0")
	mb := NewMailbox(conn)
	net.Close()

	_, err := mb.Expect(wire.TypeMeshForces, 0)
	assert.ErrorIs(t, err, ErrClosed)
}
