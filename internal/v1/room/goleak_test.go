package room_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/signalmesh/bootstrap-signaling/internal/v1/room"
)

// dialIntoHubWithoutRunLoop joins a session into h without starting its
// Run goroutine, so its outbound queue never drains — used to exercise
// Shutdown's force-close path once ctx's deadline fires.
func dialIntoHubWithoutRunLoop(t *testing.T, h *room.Hub, peerID string) *testPeer {
	t.Helper()
	var sess *room.Session
	ready := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		sess = room.NewSession(conn, peerID, "ns", "room", "1.2.3.4", time.Now())
		h.Join(sess)
		close(ready)
	}))

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	<-ready

	return &testPeer{sess: sess, client: client, close: func() {
		_ = client.Close()
		server.Close()
	}}
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestHubShutdownDrainsWithoutLeaking joins several real dialed sessions,
// shuts the Hub down, and relies on TestMain's goleak verification to
// catch any Run/Drain goroutine left behind.
func TestHubShutdownDrainsWithoutLeaking(t *testing.T) {
	h := room.NewHub()

	peers := make([]*testPeer, 0, 3)
	for _, id := range []string{"peer-1", "peer-2", "peer-3"} {
		peers = append(peers, dialIntoHub(t, h, id))
	}
	defer func() {
		for _, p := range peers {
			p.close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	h.Shutdown(ctx)

	if h.PeerCount() != 3 {
		t.Fatalf("Shutdown must not remove sessions from membership, only close them")
	}
	for _, p := range peers {
		if !p.sess.Closed() {
			t.Fatalf("session %s was not closed by Shutdown", p.sess.PeerID)
		}
	}
}

// TestHubShutdownForceClosesPastDeadline exercises the force-close path:
// a session whose outbound queue never drains (no Run goroutine) must
// still be closed once ctx's deadline fires, leaving no goroutine behind.
func TestHubShutdownForceClosesPastDeadline(t *testing.T) {
	h := room.NewHub()
	p := dialIntoHubWithoutRunLoop(t, h, "peer-stalled")
	defer p.close()

	for i := 0; i < 64; i++ {
		p.sess.Send([]byte("x"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	h.Shutdown(ctx)

	if !p.sess.Closed() {
		t.Fatalf("session with a saturated queue must be force-closed at the deadline")
	}
}
