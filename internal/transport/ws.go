package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/treadsim/cosim/pkg/wire"
)

// wsConn adapts a websocket connection to the Conn interface. Gorilla
// websockets allow one concurrent writer, so sends serialize on a
// mutex; reads stay single-goroutine by protocol construction.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) Send(env wire.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("writing envelope: %w", err)
	}
	envelopesSent.Add(context.Background(), 1)
	return nil
}

func (c *wsConn) Recv() (wire.Envelope, error) {
	var env wire.Envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		return wire.Envelope{}, fmt.Errorf("reading envelope: %w", err)
	}
	envelopesReceived.Add(context.Background(), 1)
	return env, nil
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// Server accepts websocket clients for the terrain node. Each client
// introduces itself with a hello envelope; Accept blocks until the rig
// and every tire have connected.
type Server struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader
	httpSrv  *http.Server

	mu    sync.Mutex
	rig   Conn
	tires map[int]Conn
	ready chan struct{}
	want  int
}

// NewServer creates a websocket server expecting numTires tire clients
// plus one rig client.
func NewServer(log zerolog.Logger, numTires int) *Server {
	return &Server{
		log:      log,
		upgrader: websocket.Upgrader{ReadBufferSize: 1 << 16, WriteBufferSize: 1 << 16},
		tires:    make(map[int]Conn),
		ready:    make(chan struct{}),
		want:     numTires + 1,
	}
}

// ListenAndServe starts accepting connections on addr at path /cosim.
// It returns once the listener is running; accept errors are logged.
func (s *Server) ListenAndServe(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/cosim", s.handle)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("websocket server stopped")
		}
	}()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn := &wsConn{conn: ws}

	env, err := conn.Recv()
	if err != nil || env.Type != wire.TypeHello {
		s.log.Error().Err(err).Str("type", env.Type).Msg("client did not identify itself")
		_ = conn.Close()
		return
	}
	var hello wire.HelloPayload
	if err := wire.Decode(env, wire.TypeHello, &hello); err != nil {
		s.log.Error().Err(err).Msg("malformed hello")
		_ = conn.Close()
		return
	}

	s.mu.Lock()
	switch hello.Role {
	case "rig":
		s.rig = conn
	case "tire":
		s.tires[env.Tire] = conn
	default:
		s.mu.Unlock()
		s.log.Error().Str("role", hello.Role).Msg("unknown client role")
		_ = conn.Close()
		return
	}
	connected := len(s.tires)
	if s.rig != nil {
		connected++
	}
	if connected == s.want {
		close(s.ready)
	}
	s.mu.Unlock()

	s.log.Info().Str("role", hello.Role).Int("tire", env.Tire).Msg("client connected")
}

// Accept blocks until all expected clients have connected, then
// returns the rig connection and the tire connections by index.
func (s *Server) Accept(timeout time.Duration) (Conn, map[int]Conn, error) {
	select {
	case <-s.ready:
	case <-time.After(timeout):
		return nil, nil, fmt.Errorf("timed out waiting for %d clients", s.want)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rig, s.tires, nil
}

// Close shuts down the listener and all client connections.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.rig != nil {
		_ = s.rig.Close()
	}
	for _, c := range s.tires {
		_ = c.Close()
	}
	s.mu.Unlock()
	if s.httpSrv != nil {
		return s.httpSrv.Close()
	}
	return nil
}

// Dial connects to the terrain node's websocket endpoint and
// identifies the caller. role is "rig" or "tire"; tire is the tire
// index (ignored for the rig).
func Dial(url, role string, tire int) (Conn, error) {
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	conn := &wsConn{conn: ws}

	env, err := wire.NewEnvelope(wire.TypeHello, tire, 0, wire.HelloPayload{Role: role})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.Send(env); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}
