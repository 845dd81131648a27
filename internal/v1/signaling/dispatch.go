package signaling

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/signalmesh/bootstrap-signaling/internal/v1/clock"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/logging"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/metrics"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/room"
)

func marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func nowISO(c clock.Clock) string {
	return c.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// readLoop processes inbound frames in order until the transport fails
// or the session is closed. It never blocks other sessions: room
// fan-out is non-blocking by construction (room.Session.Send).
func (h *Handler) readLoop(ctx context.Context, sess *room.Session, addr string) {
	for {
		_, data, err := sess.ReadMessage()
		if err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				logging.Info(ctx, "signaling transport closed", zap.String("peer_id", sess.PeerID), zap.Error(err))
			}
			return
		}
		h.dispatch(ctx, sess, addr, data)
	}
}

// dispatch implements §4.5's per-message pipeline.
func (h *Handler) dispatch(ctx context.Context, sess *room.Session, addr string, raw []byte) {
	if !h.limiter.AllowMessage(ctx, addr) {
		h.sendError(sess, errCodeRateLimited)
		return
	}
	metrics.MessagesTotal.Inc()

	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(sess, errCodeInvalidJSON)
		return
	}

	switch msg.Type {
	case "heartbeat":
		h.handleHeartbeat(sess)
	case "telemetry":
		h.handleTelemetry(raw)
	default:
		h.handleRelay(ctx, sess, raw)
	}
}

func (h *Handler) handleHeartbeat(sess *room.Session) {
	ack := heartbeatAckEnvelope{Type: "heartbeat-ack", Now: nowISO(h.clock)}
	if payload, err := marshal(ack); err == nil {
		sess.Send(payload)
	}
}

func (h *Handler) handleTelemetry(raw []byte) {
	var t telemetryMessage
	if err := json.Unmarshal(raw, &t); err != nil {
		return
	}
	if t.IceState != "" {
		metrics.IceStateTotal.WithLabelValues(t.IceState).Inc()
	}
	if t.FailureReason != "" {
		metrics.FailureReasonTotal.WithLabelValues(t.FailureReason).Inc()
	}
	if t.RelayUsed {
		metrics.RelayUsageTotal.Inc()
	}
	if t.Region != "" || t.Carrier != "" {
		metrics.RegionCarrierTotal.WithLabelValues(orUnknown(t.Region), orUnknown(t.Carrier)).Inc()
	}
}

// handleRelay shallow-merges the client payload with server-stamped
// fields, overwriting any client-supplied sourcePeerId/namespace/room,
// and fans it out to the rest of the room.
func (h *Handler) handleRelay(ctx context.Context, sess *room.Session, raw []byte) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		h.sendError(sess, errCodeInvalidJSON)
		return
	}
	fields["sourcePeerId"] = sess.PeerID
	fields["namespace"] = sess.Namespace
	fields["room"] = sess.Room
	fields["receivedAt"] = nowISO(h.clock)

	payload, err := marshal(fields)
	if err != nil {
		return
	}
	h.hub.Fanout(ctx, sess.Namespace, sess.Room, sess.PeerID, payload)
}

func (h *Handler) sendError(sess *room.Session, code string) {
	env := errorEnvelope{Type: "error", Code: code}
	if payload, err := marshal(env); err == nil {
		sess.Send(payload)
	}
}
