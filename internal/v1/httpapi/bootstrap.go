package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/signalmesh/bootstrap-signaling/internal/v1/config"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/room"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/roomkey"
)

type bootstrapHandler struct {
	hub *room.Hub
	cfg *config.Config
}

func newBootstrapHandler(hub *room.Hub, cfg *config.Config) *bootstrapHandler {
	return &bootstrapHandler{hub: hub, cfg: cfg}
}

type bootstrapResponse struct {
	Namespace    string `json:"namespace"`
	Room         string `json:"room"`
	Peers        int    `json:"peers"`
	SignalingURL string `json:"signalingUrl"`
}

// Handle implements GET /bootstrap?namespace&room.
func (h *bootstrapHandler) Handle(c *gin.Context) {
	key := roomkey.New(c.Query("namespace"), c.Query("room"))
	c.JSON(http.StatusOK, bootstrapResponse{
		Namespace:    key.Namespace,
		Room:         key.Room,
		Peers:        h.hub.RoomSize(key.Namespace, key.Room),
		SignalingURL: h.cfg.PublicSignalingURL,
	})
}
