// Package httpapi implements the HTTP surface of §4.6: /health,
// /metrics, /bootstrap, /rendezvous/register, /rendezvous/discover.
package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalmesh/bootstrap-signaling/internal/v1/auth"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/clock"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/config"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/health"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/middleware"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/rendezvous"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/room"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/signaling"
)

// corsConfig implements §4.6's open CORS policy: every response carries
// Access-Control-Allow-Origin: *, OPTIONS answers 204.
func corsConfig() cors.Config {
	c := cors.DefaultConfig()
	c.AllowAllOrigins = true
	c.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	c.AllowHeaders = []string{"Content-Type", "Authorization"}
	return c
}

// NewRouter wires the full HTTP + signaling surface together.
func NewRouter(cfg *config.Config, hub *room.Hub, registry *rendezvous.Registry, verifier *auth.Verifier, sig *signaling.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CorrelationID())
	r.Use(cors.New(corsConfig()))

	healthHandler := health.NewHandler(hub)
	rendezvousHandler := newRendezvousHandler(registry, verifier, clock.System{})
	bootstrapHandler := newBootstrapHandler(hub, cfg)

	r.GET("/health", healthHandler.Handle)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/bootstrap", bootstrapHandler.Handle)
	r.POST("/rendezvous/register", rendezvousHandler.Register)
	r.GET("/rendezvous/discover", rendezvousHandler.Discover)
	r.GET("/signal", sig.HandleSignal)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})

	return r
}
