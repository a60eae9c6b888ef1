package httpserver

import (
	"encoding/json"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/storepulse/internal/adapter/websocket"
	"github.com/pscheid92/storepulse/internal/domain"
	apperrors "github.com/pscheid92/storepulse/internal/platform/errors"
)

// handleWebSocket upgrades the request and serves the connection until it
// ends. The handler goroutine is the connection's read pump.
func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()

	ok, reason := s.limits.Acquire(ip)
	if !ok {
		s.connMetrics.Rejected.WithLabelValues(string(reason)).Inc()
		if reason == LimitReasonGlobal {
			return apperrors.UnavailableError("server is at connection capacity")
		}
		return apperrors.RateLimitedError("too many connections").WithField("limit", string(reason))
	}
	defer s.limits.Release(ip)

	raw, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the error response
		slog.DebugContext(c.Request().Context(), "WebSocket upgrade failed", "remote_addr", c.Request().RemoteAddr, "error", err)
		return nil
	}

	conn := websocket.NewConn(raw, c.Request().RemoteAddr, s.clock, s.connOptions, s.connMetrics)
	connection, err := s.hub.OnConnect(conn)
	if err != nil {
		// OnConnect has closed the transport
		slog.InfoContext(c.Request().Context(), "WebSocket connection refused", "remote_addr", c.Request().RemoteAddr, "error", err)
		return nil
	}

	disconnectReason := conn.ReadLoop(func(msg domain.Message) {
		if msg.Event == domain.EventPong {
			s.hub.OnProbeResponse(connection.ID, pongSeq(msg))
		}
	})

	s.hub.OnDisconnect(connection.ID, disconnectReason)
	return nil
}

// pongSeq returns the probe sequence number a pong answers, or zero when the
// client did not send one.
func pongSeq(msg domain.Message) uint64 {
	if len(msg.Data) == 0 {
		return 0
	}
	var payload domain.ProbePayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return 0
	}
	return payload.Seq
}
