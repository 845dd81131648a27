package health_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalmesh/bootstrap-signaling/internal/v1/health"
)

type fakeStats struct {
	rooms, peers int
}

func (f fakeStats) RoomCount() int { return f.rooms }
func (f fakeStats) PeerCount() int { return f.peers }

func TestHandleWithoutStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := health.NewHandler(nil)
	r.GET("/health", h.Handle)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var body health.Response
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.NotEmpty(t, body.Now)
}

func TestHandleWithStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := health.NewHandler(fakeStats{rooms: 2, peers: 5})
	r.GET("/health", h.Handle)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var body health.Response
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Rooms)
	assert.Equal(t, 5, body.Peers)
}
