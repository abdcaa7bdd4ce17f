// Package relay bridges the fan-out bus across worker processes. Events
// published on one worker are broadcast over an injectable transport and
// re-injected into every other worker's bus, so viewers observe consistent
// state regardless of which worker holds their connection.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/castwire/castwire/internal/bus"
	"github.com/castwire/castwire/internal/domain"
	apperrors "github.com/castwire/castwire/internal/errors"
	"github.com/castwire/castwire/internal/metrics"
)

const (
	outboundBuffer   = 256
	broadcastTimeout = 2 * time.Second
)

// Relay forwards locally published events to the transport and injects
// events received from other workers into the local bus. Transport failures
// degrade cross-process delivery only; local viewers are unaffected.
type Relay struct {
	bus       *bus.Bus
	transport Transport
	reporter  domain.ErrorReporter
	origin    string

	// seq is touched only by the pump goroutine.
	seq   uint64
	outCh chan domain.Event
}

// New wires a relay onto the bus. origin must be unique per worker process.
func New(b *bus.Bus, transport Transport, reporter domain.ErrorReporter, origin string) *Relay {
	r := &Relay{
		bus:       b,
		transport: transport,
		reporter:  reporter,
		origin:    origin,
		outCh:     make(chan domain.Event, outboundBuffer),
	}
	b.SetForwarder(r.forward)
	return r
}

// Start runs the outbound pump and consumes the transport until ctx is
// cancelled. Blocks; run it on its own goroutine.
func (r *Relay) Start(ctx context.Context) error {
	go r.pump(ctx)

	ch, err := r.transport.Receive(ctx)
	if err != nil {
		return apperrors.UnavailableError("relay channel unavailable", err)
	}

	for data := range ch {
		env, event, err := decodeEnvelope(data)
		if err != nil {
			slog.Warn("Discarding malformed relay envelope", "error", err)
			continue
		}

		// Our own broadcasts come back on the shared channel; the bus
		// already delivered those locally at publish time.
		if env.Origin == r.origin {
			continue
		}

		metrics.RelayEventsReceivedTotal.Inc()
		r.bus.Inject(event)
	}

	return ctx.Err()
}

// forward runs on the bus dispatch goroutine for every locally published
// event. It only enqueues; a slow or hung transport backs up the outbound
// queue and eventually drops, never the local fan-out.
func (r *Relay) forward(event domain.Event) {
	select {
	case r.outCh <- event:
	default:
		metrics.RelayEventsDroppedTotal.Inc()
		slog.Warn("Dropping outbound relay event, queue full", "kind", event.Kind())
	}
}

// pump drains the outbound queue on a single goroutine, which keeps the
// per-origin sequence numbers in send order.
func (r *Relay) pump(ctx context.Context) {
	for {
		select {
		case event := <-r.outCh:
			r.broadcast(event)
		case <-ctx.Done():
			return
		}
	}
}

// broadcast sends one event over the transport. Failures are reported,
// never propagated.
func (r *Relay) broadcast(event domain.Event) {
	r.seq++
	data, err := encodeEnvelope(r.origin, r.seq, event)
	if err != nil {
		r.report(err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
	defer cancel()

	if err := r.transport.Broadcast(ctx, data); err != nil {
		r.report(apperrors.UnavailableError("relay broadcast failed", err))
		return
	}
	metrics.RelayEventsForwardedTotal.Inc()
}

func (r *Relay) report(err error) {
	metrics.RelayFailuresTotal.Inc()
	if r.reporter != nil {
		r.reporter.Report(err)
	}
}
