// Package room implements the Room Hub of §4.4: an in-memory
// (namespace, room) -> set of live peer sessions index that owns
// fan-out to everyone but the sender.
package room

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// outboundQueueCapacity bounds each session's outbound buffer. A peer
// that cannot drain this many frames is treated as unresponsive and its
// session is closed rather than letting fan-out block on it.
const outboundQueueCapacity = 64

// Session is a single peer's live connection, owned by the Hub from
// upgrade completion to close.
type Session struct {
	PeerID        string
	Namespace     string
	Room          string
	ClientAddress string
	ConnectedAt   time.Time

	conn *websocket.Conn

	outbound chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

// NewSession wraps an upgraded connection. Call Run in its own
// goroutine to start draining the outbound queue.
func NewSession(conn *websocket.Conn, peerID, namespace, roomName, clientAddress string, connectedAt time.Time) *Session {
	return &Session{
		PeerID:        peerID,
		Namespace:     namespace,
		Room:          roomName,
		ClientAddress: clientAddress,
		ConnectedAt:   connectedAt,
		conn:          conn,
		outbound:      make(chan []byte, outboundQueueCapacity),
		closed:        make(chan struct{}),
	}
}

// Send enqueues a frame for delivery, returning false without blocking
// if the outbound queue is saturated (closeOnOverflow policy: the caller
// is expected to close the session on a false return).
func (s *Session) Send(payload []byte) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.outbound <- payload:
		return true
	default:
		return false
	}
}

// ReadMessage blocks for the next inbound frame. Callers run it in a
// per-session read loop; a returned error means the transport is gone.
func (s *Session) ReadMessage() (messageType int, data []byte, err error) {
	return s.conn.ReadMessage()
}

// Run drains the outbound queue to the socket until the session closes.
// It returns when the connection fails or Close is called.
func (s *Session) Run() {
	for {
		select {
		case <-s.closed:
			return
		case payload := <-s.outbound:
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.Close()
				return
			}
		}
	}
}

// drainPollInterval is how often Drain rechecks the outbound queue while
// waiting for it to empty.
const drainPollInterval = 10 * time.Millisecond

// Drain waits for the outbound queue to empty — giving Run a chance to
// flush any pending frames to the socket — then closes the session. It
// returns early without waiting once ctx is done, implementing the
// "await outbound drains with a bounded deadline, then force-close"
// half of graceful shutdown (§5).
func (s *Session) Drain(ctx context.Context) {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for {
		if s.Closed() || len(s.outbound) == 0 {
			s.Close()
			return
		}
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-ticker.C:
		}
	}
}

// Close tears down the session's socket and outbound loop. Safe to call
// more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}
