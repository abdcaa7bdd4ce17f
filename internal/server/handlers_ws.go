package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/castwire/castwire/internal/domain"
	"github.com/castwire/castwire/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Player embeds run on arbitrary origins
	},
}

// wireEvent is the JSON frame sent to viewer clients for each fan-out event.
type wireEvent struct {
	Kind    domain.EventKind `json:"kind"`
	Payload any              `json:"payload"`
}

// inboundFrame is the JSON frame read from viewer clients.
type inboundFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (s *Server) handleWebSocket(c echo.Context) error {
	sessionKey := c.Param("sessionKey")
	if sessionKey == "" {
		return c.String(http.StatusBadRequest, "missing session key")
	}

	ip := c.RealIP()
	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.WebSocketRejectedTotal.WithLabelValues(string(reason)).Inc()
		return c.String(http.StatusTooManyRequests, "connection limit reached")
	}
	defer s.limits.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	// Empty identity means anonymous: the viewer is counted but cannot chat.
	identity := c.QueryParam("viewer")

	writer := newClientWriter(conn, s.clock)
	connID := s.gateway.OnConnect(sessionKey, identity)

	sub := s.gateway.Subscribe(sessionKey, func(event domain.Event) {
		data, err := json.Marshal(wireEvent{Kind: event.Kind(), Payload: event})
		if err != nil {
			slog.Error("Failed to marshal event frame", "kind", event.Kind(), "error", err)
			return
		}
		writer.Send(data)
	})

	defer func() {
		sub.Close()
		s.gateway.OnDisconnect(connID)
		writer.Stop()
	}()

	// Read loop: chat frames in, everything else ignored. Returning tears
	// the connection down.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("Viewer connection closed unexpectedly", "session_key", sessionKey, "error", err)
			}
			return nil
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		if frame.Type != "chat" {
			continue
		}

		if err := s.gateway.OnChatSubmit(sessionKey, identity, frame.Text); err != nil {
			// Anonymous chat is dropped silently; nothing is echoed back.
			if !errors.Is(err, domain.ErrUnauthenticated) {
				slog.Error("Chat submit failed", "session_key", sessionKey, "error", err)
			}
		}
	}
}
