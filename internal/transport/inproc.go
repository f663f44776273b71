// Package transport moves protocol envelopes between co-simulation
// nodes. Two implementations share the Conn interface: an in-process
// network of blocking queues for single-binary runs, and websocket
// connections for distributed runs.
package transport

import (
	"context"
	"sync"

	"github.com/treadsim/cosim/pkg/wire"
)

// Conn is one bidirectional envelope channel between two nodes.
type Conn interface {
	Send(env wire.Envelope) error
	Recv() (wire.Envelope, error)
	Close() error
}

// Network is an in-process message fabric. Each ordered endpoint pair
// owns an independent fifo, so traffic between distinct node pairs
// never interleaves.
type Network struct {
	mu    sync.Mutex
	links map[[2]string]*fifo[wire.Envelope]
}

// NewNetwork creates an empty in-process network.
func NewNetwork() *Network {
	return &Network{links: make(map[[2]string]*fifo[wire.Envelope])}
}

func (n *Network) link(from, to string) *fifo[wire.Envelope] {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := [2]string{from, to}
	q, ok := n.links[key]
	if !ok {
		q = newFifo[wire.Envelope]()
		n.links[key] = q
	}
	return q
}

// Connect returns the local endpoint of the channel between local and
// remote. Sends go to the remote's receive queue and vice versa.
func (n *Network) Connect(local, remote string) Conn {
	return &inprocConn{
		out: n.link(local, remote),
		in:  n.link(remote, local),
	}
}

// Close shuts down every link, waking all blocked receivers.
func (n *Network) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, q := range n.links {
		q.Close()
	}
}

type inprocConn struct {
	out *fifo[wire.Envelope]
	in  *fifo[wire.Envelope]
}

func (c *inprocConn) Send(env wire.Envelope) error {
	if err := c.out.Push(env); err != nil {
		return err
	}
	envelopesSent.Add(context.Background(), 1)
	return nil
}

func (c *inprocConn) Recv() (wire.Envelope, error) {
	env, err := c.in.Pop()
	if err != nil {
		return wire.Envelope{}, err
	}
	envelopesReceived.Add(context.Background(), 1)
	return env, nil
}

func (c *inprocConn) Close() error {
	c.out.Close()
	c.in.Close()
	return nil
}
