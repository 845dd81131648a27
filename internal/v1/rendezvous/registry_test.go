package rendezvous_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalmesh/bootstrap-signaling/internal/v1/clock"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/rendezvous"
)

func TestRegisterAppliesDefaultTTL(t *testing.T) {
	c := clock.NewFixed(time.Unix(1_700_000_000, 0))
	r := rendezvous.New(c)

	rec := r.Register("ns", "room", "peer-1", nil, 0, nil)
	assert.Equal(t, rec.SeenAt+rendezvous.DefaultTTLMs, rec.ExpiresAt)
}

func TestRegisterReplacesExisting(t *testing.T) {
	c := clock.NewFixed(time.Unix(1_700_000_000, 0))
	r := rendezvous.New(c)

	r.Register("ns", "room", "peer-1", []string{"a"}, 1000, nil)
	c.Advance(time.Second)
	rec := r.Register("ns", "room", "peer-1", []string{"b"}, 1000, nil)

	got := r.Discover("ns", "room", 10, c.NowMs())
	require.Len(t, got, 1)
	assert.Equal(t, []string{"b"}, got[0].Addresses)
	assert.Equal(t, rec.SeenAt, got[0].SeenAt)
}

func TestDiscoverOrdersBySeenAtDescending(t *testing.T) {
	c := clock.NewFixed(time.Unix(1_700_000_000, 0))
	r := rendezvous.New(c)

	r.Register("ns", "room", "peer-1", nil, 60_000, nil)
	c.Advance(time.Second)
	r.Register("ns", "room", "peer-2", nil, 60_000, nil)
	c.Advance(time.Second)
	r.Register("ns", "room", "peer-3", nil, 60_000, nil)

	got := r.Discover("ns", "room", 10, c.NowMs())
	require.Len(t, got, 3)
	assert.Equal(t, "peer-3", got[0].PeerID)
	assert.Equal(t, "peer-2", got[1].PeerID)
	assert.Equal(t, "peer-1", got[2].PeerID)
}

func TestDiscoverRespectsLimit(t *testing.T) {
	c := clock.NewFixed(time.Unix(1_700_000_000, 0))
	r := rendezvous.New(c)

	for i := 0; i < 5; i++ {
		r.Register("ns", "room", string(rune('a'+i)), nil, 60_000, nil)
	}

	got := r.Discover("ns", "room", 2, c.NowMs())
	assert.Len(t, got, 2)
}

func TestDiscoverPrunesExpiredFirst(t *testing.T) {
	c := clock.NewFixed(time.Unix(1_700_000_000, 0))
	r := rendezvous.New(c)

	r.Register("ns", "room", "peer-1", nil, 10, nil)
	c.Advance(20 * time.Millisecond)

	got := r.Discover("ns", "room", 10, c.NowMs())
	assert.Empty(t, got)
}

func TestRemovePeerReportsPresence(t *testing.T) {
	c := clock.NewFixed(time.Unix(1_700_000_000, 0))
	r := rendezvous.New(c)

	r.Register("ns", "room", "peer-1", nil, 60_000, nil)
	assert.True(t, r.RemovePeer("ns", "room", "peer-1"))
	assert.False(t, r.RemovePeer("ns", "room", "peer-1"))
}

func TestPruneExpiredDropsEmptyRooms(t *testing.T) {
	c := clock.NewFixed(time.Unix(1_700_000_000, 0))
	r := rendezvous.New(c)

	r.Register("ns", "room", "peer-1", nil, 10, nil)
	c.Advance(20 * time.Millisecond)
	r.PruneExpired(c.NowMs())

	got := r.Discover("ns", "room", 10, c.NowMs())
	assert.Empty(t, got)
}

func TestNamespaceRoomDefaultsApplied(t *testing.T) {
	c := clock.NewFixed(time.Unix(1_700_000_000, 0))
	r := rendezvous.New(c)

	rec := r.Register("", "", "peer-1", nil, 60_000, nil)
	assert.Equal(t, "global", rec.Namespace)
	assert.Equal(t, "public", rec.Room)
}
