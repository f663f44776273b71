package transport

import (
	"context"
	"fmt"

	"github.com/treadsim/cosim/pkg/wire"
)

// Mailbox demultiplexes a Conn by message type. Exchanges within a
// synchronization step can arrive in any order relative to each other;
// Expect buffers envelopes of other types until their own Expect call
// and discards envelopes whose step tag is older than the one asked
// for, so a node can never consume last step's data by accident.
type Mailbox struct {
	conn    Conn
	pending map[string][]wire.Envelope
}

// NewMailbox wraps a connection in a demultiplexing mailbox. The
// mailbox owns the receive side; callers keep using conn for sends.
func NewMailbox(conn Conn) *Mailbox {
	return &Mailbox{
		conn:    conn,
		pending: make(map[string][]wire.Envelope),
	}
}

// Send forwards to the underlying connection.
func (m *Mailbox) Send(env wire.Envelope) error {
	return m.conn.Send(env)
}

// Expect blocks until an envelope of the given type with step tag >=
// step is available, reading and buffering other traffic as needed.
// Stale envelopes of the requested type are dropped and counted.
func (m *Mailbox) Expect(msgType string, step int) (wire.Envelope, error) {
	for {
		if env, ok := m.takePending(msgType, step); ok {
			return env, nil
		}
		env, err := m.conn.Recv()
		if err != nil {
			return wire.Envelope{}, fmt.Errorf("waiting for %s: %w", msgType, err)
		}
		m.pending[env.Type] = append(m.pending[env.Type], env)
	}
}

func (m *Mailbox) takePending(msgType string, step int) (wire.Envelope, bool) {
	queue := m.pending[msgType]
	for len(queue) > 0 {
		env := queue[0]
		queue = queue[1:]
		if env.Step < step {
			envelopesDropped.Add(context.Background(), 1)
			continue
		}
		m.pending[msgType] = queue
		return env, true
	}
	m.pending[msgType] = queue
	return wire.Envelope{}, false
}

// Close closes the underlying connection.
func (m *Mailbox) Close() error {
	return m.conn.Close()
}
