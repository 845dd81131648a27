package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/signalmesh/bootstrap-signaling/internal/v1/apierr"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/auth"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/clock"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/metrics"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/rendezvous"
)

type rendezvousHandler struct {
	registry *rendezvous.Registry
	verifier *auth.Verifier
	clock    clock.Clock
}

func newRendezvousHandler(registry *rendezvous.Registry, verifier *auth.Verifier, c clock.Clock) *rendezvousHandler {
	return &rendezvousHandler{registry: registry, verifier: verifier, clock: c}
}

type registerRequest struct {
	Namespace string            `json:"namespace"`
	Room      string            `json:"room"`
	PeerID    string            `json:"peerId"`
	Addresses []string          `json:"addresses"`
	TTLMs     int64             `json:"ttlMs"`
	Metadata  map[string]string `json:"metadata"`
}

// Register implements POST /rendezvous/register.
func (h *rendezvousHandler) Register(c *gin.Context) {
	if !h.verifier.Verify(auth.ExtractToken(c.Request)) {
		metrics.AuthFailuresTotal.Inc()
		apiErr := apierr.Auth(nil)
		c.JSON(apiErr.StatusCode(), apiErr.Body())
		return
	}

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiErr := apierr.Malformed("invalid_body", err)
		c.JSON(apiErr.StatusCode(), apiErr.Body())
		return
	}

	rec := h.registry.Register(req.Namespace, req.Room, req.PeerID, req.Addresses, req.TTLMs, req.Metadata)
	c.JSON(http.StatusOK, rec)
}

type discoverResponse struct {
	Namespace string               `json:"namespace"`
	Room      string               `json:"room"`
	Peers     []rendezvous.Record  `json:"peers"`
}

// Discover implements GET /rendezvous/discover?namespace&room&limit.
// No auth required.
func (h *rendezvousHandler) Discover(c *gin.Context) {
	namespace := c.Query("namespace")
	roomName := c.Query("room")
	limit := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	peers := h.registry.Discover(namespace, roomName, limit, h.clock.NowMs())
	c.JSON(http.StatusOK, discoverResponse{
		Namespace: namespace,
		Room:      roomName,
		Peers:     peers,
	})
}
