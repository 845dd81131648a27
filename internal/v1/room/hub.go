package room

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/signalmesh/bootstrap-signaling/internal/v1/apierr"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/logging"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/metrics"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/roomkey"
)

// Hub is guarded by a single lock (invariant 7: a room key with zero
// members is absent from the index).
type Hub struct {
	mu    sync.RWMutex
	rooms map[roomkey.Key]map[string]*Session
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[roomkey.Key]map[string]*Session)}
}

// Join admits sess into its (Namespace, Room) bucket, creating the
// bucket if absent.
func (h *Hub) Join(sess *Session) {
	key := roomkey.New(sess.Namespace, sess.Room)

	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[key]
	if members == nil {
		members = make(map[string]*Session)
		h.rooms[key] = members
	}
	members[sess.PeerID] = sess
	metrics.ActiveConnections.Inc()
}

// Leave removes sess from its room, collapsing the room if it becomes
// empty, and decrements the active-connection gauge (saturating at
// zero: it never removes a session that isn't present).
func (h *Hub) Leave(sess *Session) {
	key := roomkey.New(sess.Namespace, sess.Room)

	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[key]
	if members == nil {
		return
	}
	if _, ok := members[sess.PeerID]; !ok {
		return
	}
	delete(members, sess.PeerID)
	if len(members) == 0 {
		delete(h.rooms, key)
	}
	metrics.ActiveConnections.Dec()
}

// Fanout enqueues payload to every session in (namespace, room) except
// senderPeerID. A saturated recipient is closed rather than allowed to
// stall delivery to the rest of the room; closed sessions are removed
// from membership here rather than left for the caller's read loop to
// notice.
func (h *Hub) Fanout(ctx context.Context, namespace, roomName, senderPeerID string, payload []byte) {
	key := roomkey.New(namespace, roomName)

	h.mu.RLock()
	members := h.rooms[key]
	targets := make([]*Session, 0, len(members))
	for id, sess := range members {
		if id == senderPeerID {
			continue
		}
		targets = append(targets, sess)
	}
	h.mu.RUnlock()

	for _, sess := range targets {
		if !sess.Send(payload) {
			logging.Warn(ctx, "peer outbound queue saturated, closing session",
				zap.String("peer_id", sess.PeerID),
				zap.Error(apierr.Backpressure()))
			sess.Close()
			h.Leave(sess)
		}
	}
}

// Shutdown signals every live session to close, waiting for each
// session's outbound queue to drain up to ctx's deadline before
// force-closing any stragglers (§5: "signal all sessions to close,
// await outbound drains with a bounded deadline, then force-close").
func (h *Hub) Shutdown(ctx context.Context) {
	h.mu.RLock()
	sessions := make([]*Session, 0)
	for _, members := range h.rooms {
		for _, sess := range members {
			sessions = append(sessions, sess)
		}
	}
	h.mu.RUnlock()

	var wg sync.WaitGroup
	wg.Add(len(sessions))
	for _, sess := range sessions {
		go func(s *Session) {
			defer wg.Done()
			s.Drain(ctx)
		}(sess)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Deadline hit before every session finished draining; force-close
		// whatever is still open rather than leak goroutines past Shutdown.
		for _, sess := range sessions {
			sess.Close()
		}
	}
}

// RoomCount returns the number of non-empty rooms, satisfying
// health.Stats.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// PeerCount returns the number of live sessions across all rooms,
// satisfying health.Stats.
func (h *Hub) PeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, members := range h.rooms {
		n += len(members)
	}
	return n
}

// RoomSize returns the number of live sessions in (namespace, room),
// used by the /bootstrap endpoint.
func (h *Hub) RoomSize(namespace, roomName string) int {
	key := roomkey.New(namespace, roomName)
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[key])
}
