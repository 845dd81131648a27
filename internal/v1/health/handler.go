// Package health implements the service's liveness surface.
package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Stats is satisfied by the Room Hub and lets the handler report debug
// counts without importing it directly.
type Stats interface {
	RoomCount() int
	PeerCount() int
}

// Handler serves GET /health.
type Handler struct {
	stats Stats
}

// NewHandler constructs a Handler. stats may be nil, in which case the
// debug fields are omitted (useful before the Room Hub exists, e.g. in
// isolated tests).
func NewHandler(stats Stats) *Handler {
	return &Handler{stats: stats}
}

// Response is the body of GET /health.
type Response struct {
	OK    bool   `json:"ok"`
	Now   string `json:"now"`
	Rooms int    `json:"rooms,omitempty"`
	Peers int    `json:"peers,omitempty"`
}

// Handle writes the health response.
func (h *Handler) Handle(c *gin.Context) {
	resp := Response{
		OK:  true,
		Now: time.Now().UTC().Format(time.RFC3339),
	}
	if h.stats != nil {
		resp.Rooms = h.stats.RoomCount()
		resp.Peers = h.stats.PeerCount()
	}
	c.JSON(http.StatusOK, resp)
}
