// Package gateway bridges viewer-client connections to the session registry
// and the fan-out bus. Each connection goes through Connecting -> Joined ->
// Watching -> Disconnected; Disconnected is terminal and a connection ID is
// never reused.
package gateway

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/castwire/castwire/internal/bus"
	"github.com/castwire/castwire/internal/domain"
	"github.com/castwire/castwire/internal/logging"
	"github.com/castwire/castwire/internal/metrics"
	"github.com/castwire/castwire/internal/registry"
)

// viewerConn is the ephemeral per-connection state. counted records whether
// this connection successfully incremented a viewer count, so disconnect
// decrements exactly once and never for connections that joined a session
// that was not live.
type viewerConn struct {
	sessionKey string
	identity   string
	counted    bool
}

// Gateway manages viewer connection lifecycle and inbound chat.
type Gateway struct {
	registry *registry.Registry
	bus      *bus.Bus

	mu    sync.Mutex
	conns map[uuid.UUID]*viewerConn
}

// New creates a gateway over the given registry and bus.
func New(reg *registry.Registry, b *bus.Bus) *Gateway {
	return &Gateway{
		registry: reg,
		bus:      b,
		conns:    make(map[uuid.UUID]*viewerConn),
	}
}

// OnConnect registers a viewer connection. If the session is live the viewer
// count is incremented and a count-changed event published; if it is not,
// the connection is still registered and simply never counted.
// identity is empty for anonymous viewers.
func (g *Gateway) OnConnect(sessionKey, identity string) uuid.UUID {
	connID := uuid.New()
	conn := &viewerConn{sessionKey: sessionKey, identity: identity}

	count, err := g.registry.IncrementViewer(sessionKey)
	switch {
	case err == nil:
		conn.counted = true
		metrics.GatewayConnectionsTotal.WithLabelValues("joined").Inc()
	case errors.Is(err, domain.ErrUnknownSession):
		// Not live yet; the viewer waits on the session key without
		// affecting any counter.
		metrics.GatewayConnectionsTotal.WithLabelValues("not_live").Inc()
	default:
		logging.WithSession(sessionKey).Error("Viewer increment failed", "error", err)
	}

	g.mu.Lock()
	g.conns[connID] = conn
	g.mu.Unlock()

	// The publish is not atomic with the increment; two racing connects can
	// deliver counts out of order, and the next change corrects the
	// displayed value.
	if conn.counted {
		g.bus.Publish(domain.ViewerCountChanged{Key: sessionKey, Count: count})
	}

	logging.WithSession(sessionKey).Debug("Viewer connected",
		"connection_id", connID.String(),
		"counted", conn.counted)
	return connID
}

// OnDisconnect tears down a viewer connection. The decrement is applied
// before the count-changed publish, so a failed publish can never leak a
// counter. Duplicate teardown signals for the same connection ID are no-ops.
func (g *Gateway) OnDisconnect(connID uuid.UUID) {
	g.mu.Lock()
	conn, exists := g.conns[connID]
	if exists {
		delete(g.conns, connID)
	}
	g.mu.Unlock()

	if !exists {
		return
	}

	if !conn.counted {
		slog.Debug("Viewer disconnected without join", "connection_id", connID.String())
		return
	}

	count, err := g.registry.DecrementViewer(conn.sessionKey)
	if err != nil {
		// Session ended before the viewer left; nothing to decrement.
		if !errors.Is(err, domain.ErrUnknownSession) {
			logging.WithSession(conn.sessionKey).Error("Viewer decrement failed", "error", err)
		}
		return
	}

	g.bus.Publish(domain.ViewerCountChanged{Key: conn.sessionKey, Count: count})
	logging.WithSession(conn.sessionKey).Debug("Viewer disconnected",
		"connection_id", connID.String())
}

// OnChatSubmit publishes a chat message from an authenticated viewer.
// Anonymous submissions return ErrUnauthenticated and publish nothing; the
// transport layer drops them silently.
func (g *Gateway) OnChatSubmit(sessionKey, senderIdentity, text string) error {
	if senderIdentity == "" {
		return domain.ErrUnauthenticated
	}

	g.bus.Publish(domain.ChatMessage{Key: sessionKey, Sender: senderIdentity, Text: text})
	metrics.GatewayChatMessagesTotal.Inc()
	return nil
}

// Subscribe exposes the per-session event feed for forwarding to one
// viewer's transport.
func (g *Gateway) Subscribe(sessionKey string, handler bus.Handler) *bus.Subscription {
	return g.bus.Subscribe(sessionKey, handler)
}

// ConnectionCount returns the number of registered viewer connections on
// this worker.
func (g *Gateway) ConnectionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}
