// Package signaling implements the duplex handshake and per-message
// dispatch pipeline of §4.5.
package signaling

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/signalmesh/bootstrap-signaling/internal/v1/apierr"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/auth"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/clock"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/logging"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/metrics"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/ratelimit"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/rendezvous"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/room"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/roomkey"
)

// sessionRendezvousTTLMs is the TTL used when registering a freshly
// admitted session (§4.5 step 5).
const sessionRendezvousTTLMs = 60_000

// Handler owns the /signal handshake and dispatch pipeline.
type Handler struct {
	hub      *room.Hub
	registry *rendezvous.Registry
	verifier *auth.Verifier
	limiter  *ratelimit.Limiter
	clock    clock.Clock

	upgrader websocket.Upgrader
}

// NewHandler wires the Room Hub, Rendezvous Registry, Credential
// Verifier, and Rate Limiter into a Handler.
func NewHandler(hub *room.Hub, registry *rendezvous.Registry, verifier *auth.Verifier, limiter *ratelimit.Limiter, c clock.Clock) *Handler {
	return &Handler{
		hub:      hub,
		registry: registry,
		verifier: verifier,
		limiter:  limiter,
		clock:    c,
		upgrader: websocket.Upgrader{
			// Single-instance deployment fronted by the HTTP surface's
			// open CORS policy (§4.6): no origin allowlist to enforce here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ClientAddress extracts the client address per §4.5 step 1: the first
// hop of X-Forwarded-For if present, else the host part of the socket
// remote address.
func ClientAddress(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, found := strings.Cut(fwd, ","); found {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// HandleSignal implements the GET /signal handshake pipeline.
func (h *Handler) HandleSignal(c *gin.Context) {
	ctx := c.Request.Context()
	addr := ClientAddress(c.Request)

	if !h.limiter.AllowConnection(addr) {
		logging.Warn(ctx, "peer.connection_rate_limited", zap.String("client_address", addr))
		apiErr := apierr.RateLimited("connection_rate_limited")
		c.AbortWithStatusJSON(apiErr.StatusCode(), apiErr.Body())
		return
	}

	token := auth.ExtractToken(c.Request)
	if !h.verifier.Verify(token) {
		h.limiter.ReleaseConnection(addr)
		metrics.AuthFailuresTotal.Inc()
		logging.Warn(ctx, "peer.auth_failed", zap.String("client_address", addr))
		apiErr := apierr.Auth(nil)
		c.AbortWithStatusJSON(apiErr.StatusCode(), apiErr.Body())
		return
	}

	key := roomkey.New(c.Query("namespace"), c.Query("room"))
	namespace, roomName := key.Namespace, key.Room
	peerID := c.Query("peerId")
	if peerID == "" {
		generated, err := clock.NewPeerID(h.clock)
		if err != nil {
			h.limiter.ReleaseConnection(addr)
			logging.Error(ctx, "failed to generate peer id", zap.Error(err))
			apiErr := apierr.Transport(err)
			c.AbortWithStatusJSON(apiErr.StatusCode(), apiErr.Body())
			return
		}
		peerID = generated
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.limiter.ReleaseConnection(addr)
		logging.Error(ctx, "failed to upgrade signaling connection", zap.Error(err))
		return
	}

	sess := room.NewSession(conn, peerID, namespace, roomName, addr, time.Now())
	h.hub.Join(sess)
	h.registry.Register(namespace, roomName, peerID, nil, sessionRendezvousTTLMs, map[string]string{"transport": "websocket"})
	metrics.ConnectionsTotal.Inc()

	logging.Info(ctx, "peer.connected",
		zap.String("peer_id", peerID),
		zap.String("namespace", namespace),
		zap.String("room", roomName),
		zap.String("client_address", addr))

	welcome := welcomeEnvelope{
		Type:      "welcome",
		PeerID:    peerID,
		Namespace: namespace,
		Room:      roomName,
		Now:       nowISO(h.clock),
	}
	if payload, err := marshal(welcome); err == nil {
		sess.Send(payload)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sess.Run()
	}()

	h.readLoop(ctx, sess, addr)
	// A read failure is not seen by Run, which only notices a dead socket
	// on its next write; close the session so Run returns.
	sess.Close()
	wg.Wait()

	h.teardown(ctx, sess, addr)
}

// teardown implements §4.5's teardown contract: remove from Room Hub,
// remove from Rendezvous, release the connection slot, decrement the
// active-connection gauge. Room Hub's Leave already decrements the
// gauge, so this only needs to run the remaining steps.
func (h *Handler) teardown(ctx context.Context, sess *room.Session, addr string) {
	sess.Close()
	h.hub.Leave(sess)
	h.registry.RemovePeer(sess.Namespace, sess.Room, sess.PeerID)
	h.limiter.ReleaseConnection(addr)

	logging.Info(ctx, "peer.disconnected",
		zap.String("peer_id", sess.PeerID),
		zap.String("namespace", sess.Namespace),
		zap.String("room", sess.Room),
		zap.String("client_address", addr))
}
