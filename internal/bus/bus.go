// Package bus implements the in-process fan-out of typed session events to
// per-session-key subscribers. A single goroutine owns all subscription
// state and consumes a typed command channel, so publishes from one origin
// are delivered to each subscriber in publish order.
package bus

import (
	"log/slog"
	"sync/atomic"

	"github.com/castwire/castwire/internal/domain"
	"github.com/castwire/castwire/internal/metrics"
)

const (
	commandBuffer    = 256
	subscriberBuffer = 32
)

// Handler receives one event. Handlers run on a per-subscription goroutine;
// a panic in one handler never affects delivery to others.
type Handler func(domain.Event)

// --- Command types ---

type busCmd interface{ busCmd() }

type cmdSubscribe struct {
	sessionKey string
	handler    Handler
	replyCh    chan *Subscription
}

func (cmdSubscribe) busCmd() {}

type cmdUnsubscribe struct {
	sub *Subscription
}

func (cmdUnsubscribe) busCmd() {}

type cmdPublish struct {
	event domain.Event
	// local suppresses forwarding to the relay; set for events that
	// arrived from another worker.
	local bool
}

func (cmdPublish) busCmd() {}

type cmdStop struct{ doneCh chan struct{} }

func (cmdStop) busCmd() {}

// Subscription is the handle returned by Subscribe. Close it to stop
// receiving events.
type Subscription struct {
	id         uint64
	sessionKey string
	bus        *Bus
	writer     *subscriberWriter
}

// Close cancels the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.cmdCh <- cmdUnsubscribe{sub: s}
}

// SessionKey returns the session key this subscription is filtered on.
func (s *Subscription) SessionKey() string { return s.sessionKey }

// Bus fans events out to local subscribers and, when a forwarder is
// attached, hands locally published events to the cross-process relay.
type Bus struct {
	cmdCh       chan busCmd
	nextID      atomic.Uint64
	subscribers map[string]map[uint64]*Subscription
	forward     func(domain.Event)
}

// New creates a bus and starts its dispatch goroutine.
func New() *Bus {
	b := &Bus{
		cmdCh:       make(chan busCmd, commandBuffer),
		subscribers: make(map[string]map[uint64]*Subscription),
	}
	go b.run()
	return b
}

// SetForwarder attaches the cross-process forwarder. Must be called before
// the first Publish; events published while no forwarder is attached stay
// local.
func (b *Bus) SetForwarder(forward func(domain.Event)) {
	b.forward = forward
}

// Subscribe registers a handler for all events of one session key.
func (b *Bus) Subscribe(sessionKey string, handler Handler) *Subscription {
	replyCh := make(chan *Subscription, 1)
	b.cmdCh <- cmdSubscribe{sessionKey: sessionKey, handler: handler, replyCh: replyCh}
	return <-replyCh
}

// Publish delivers an event to all local subscribers of its session key and
// forwards it to the relay. Delivery is at-most-once and best-effort.
func (b *Bus) Publish(event domain.Event) {
	metrics.BusEventsPublishedTotal.WithLabelValues(string(event.Kind())).Inc()
	b.cmdCh <- cmdPublish{event: event}
}

// Inject delivers an event to local subscribers only, without forwarding.
// Used by the relay for events that originated on another worker.
func (b *Bus) Inject(event domain.Event) {
	b.cmdCh <- cmdPublish{event: event, local: true}
}

// Stop shuts the bus down and stops all subscriber writers.
func (b *Bus) Stop() {
	doneCh := make(chan struct{})
	b.cmdCh <- cmdStop{doneCh: doneCh}
	<-doneCh
}

func (b *Bus) run() {
	for cmd := range b.cmdCh {
		switch c := cmd.(type) {
		case cmdSubscribe:
			c.replyCh <- b.handleSubscribe(c)
		case cmdUnsubscribe:
			b.handleUnsubscribe(c.sub)
		case cmdPublish:
			b.handlePublish(c)
		case cmdStop:
			b.handleStop()
			close(c.doneCh)
			return
		}
	}
}

func (b *Bus) handleSubscribe(c cmdSubscribe) *Subscription {
	sub := &Subscription{
		id:         b.nextID.Add(1),
		sessionKey: c.sessionKey,
		bus:        b,
		writer:     newSubscriberWriter(c.handler),
	}

	subs, exists := b.subscribers[c.sessionKey]
	if !exists {
		subs = make(map[uint64]*Subscription)
		b.subscribers[c.sessionKey] = subs
	}
	subs[sub.id] = sub

	metrics.BusSubscribers.Inc()
	return sub
}

func (b *Bus) handleUnsubscribe(sub *Subscription) {
	subs, exists := b.subscribers[sub.sessionKey]
	if !exists {
		return
	}
	if _, exists := subs[sub.id]; !exists {
		return
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(b.subscribers, sub.sessionKey)
	}
	sub.writer.stop()
	metrics.BusSubscribers.Dec()
}

func (b *Bus) handlePublish(c cmdPublish) {
	if !c.local && b.forward != nil {
		b.forward(c.event)
	}

	subs, exists := b.subscribers[c.event.SessionKey()]
	if !exists {
		return
	}

	for _, sub := range subs {
		select {
		case sub.writer.eventCh <- c.event:
		default:
			// At-most-once: drop for this subscriber rather than block
			// delivery to the rest.
			metrics.BusEventsDroppedTotal.Inc()
			slog.Debug("Dropping event for slow subscriber",
				"session_key", c.event.SessionKey(),
				"kind", c.event.Kind())
		}
	}
}

func (b *Bus) handleStop() {
	for key, subs := range b.subscribers {
		for _, sub := range subs {
			sub.writer.stop()
		}
		delete(b.subscribers, key)
	}
	metrics.BusSubscribers.Set(0)
}
