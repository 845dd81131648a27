// Package rendezvous implements the TTL-indexed peer discovery registry
// of §4.3: an in-memory (namespace, room) -> peer_id -> record index
// with register/discover/remove/prune operations.
package rendezvous

import (
	"sort"
	"sync"

	"github.com/signalmesh/bootstrap-signaling/internal/v1/clock"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/roomkey"
)

const (
	// DefaultTTLMs is applied when a caller registers without a ttl.
	DefaultTTLMs = 60_000
	// DefaultDiscoverLimit caps discover results when the caller omits one.
	DefaultDiscoverLimit = 32
)

// Record is a single peer's rendezvous entry.
type Record struct {
	PeerID    string            `json:"peerId"`
	Namespace string            `json:"namespace"`
	Room      string            `json:"room"`
	Addresses []string          `json:"addresses,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	SeenAt    int64             `json:"seenAt"`
	ExpiresAt int64             `json:"expiresAt"`
}

// Registry is guarded by a single lock; the expected room/peer cardinality
// for this service does not warrant per-room sharding.
type Registry struct {
	clock clock.Clock

	mu    sync.Mutex
	rooms map[roomkey.Key]map[string]Record
}

// New constructs an empty Registry.
func New(c clock.Clock) *Registry {
	return &Registry{
		clock: c,
		rooms: make(map[roomkey.Key]map[string]Record),
	}
}

// Register replaces any existing record for peerID in (namespace, room).
// ttlMs of 0 falls back to DefaultTTLMs.
func (r *Registry) Register(namespace, room, peerID string, addresses []string, ttlMs int64, metadata map[string]string) Record {
	if ttlMs <= 0 {
		ttlMs = DefaultTTLMs
	}
	key := roomkey.New(namespace, room)
	now := r.clock.NowMs()

	rec := Record{
		PeerID:    peerID,
		Namespace: key.Namespace,
		Room:      key.Room,
		Addresses: addresses,
		Metadata:  metadata,
		SeenAt:    now,
		ExpiresAt: now + ttlMs,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	peers := r.rooms[key]
	if peers == nil {
		peers = make(map[string]Record)
		r.rooms[key] = peers
	}
	peers[peerID] = rec
	return rec
}

// Discover prunes expired entries in (namespace, room) then returns up to
// limit records ordered by SeenAt descending. limit <= 0 uses
// DefaultDiscoverLimit.
func (r *Registry) Discover(namespace, room string, limit int, now int64) []Record {
	if limit <= 0 {
		limit = DefaultDiscoverLimit
	}
	key := roomkey.New(namespace, room)

	r.mu.Lock()
	r.pruneRoomLocked(key, now)
	peers := r.rooms[key]
	out := make([]Record, 0, len(peers))
	for _, rec := range peers {
		out = append(out, rec)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SeenAt > out[j].SeenAt })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// RemovePeer deletes peerID's record from (namespace, room), reporting
// whether one was present. An empty room is dropped entirely.
func (r *Registry) RemovePeer(namespace, room, peerID string) bool {
	key := roomkey.New(namespace, room)

	r.mu.Lock()
	defer r.mu.Unlock()
	peers := r.rooms[key]
	if peers == nil {
		return false
	}
	if _, ok := peers[peerID]; !ok {
		return false
	}
	delete(peers, peerID)
	if len(peers) == 0 {
		delete(r.rooms, key)
	}
	return true
}

// PruneExpired removes every record with ExpiresAt <= now across all
// rooms, dropping rooms left empty.
func (r *Registry) PruneExpired(now int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.rooms {
		r.pruneRoomLocked(key, now)
	}
}

func (r *Registry) pruneRoomLocked(key roomkey.Key, now int64) {
	peers := r.rooms[key]
	if peers == nil {
		return
	}
	for id, rec := range peers {
		if rec.ExpiresAt <= now {
			delete(peers, id)
		}
	}
	if len(peers) == 0 {
		delete(r.rooms, key)
	}
}
