package bus

import (
	"log/slog"
	"sync"

	"github.com/castwire/castwire/internal/domain"
	"github.com/castwire/castwire/internal/metrics"
)

// subscriberWriter runs one handler on its own goroutine, preserving
// per-subscriber event order and isolating handler panics from the bus and
// from sibling subscribers.
type subscriberWriter struct {
	handler  Handler
	eventCh  chan domain.Event
	doneCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newSubscriberWriter(handler Handler) *subscriberWriter {
	sw := &subscriberWriter{
		handler: handler,
		eventCh: make(chan domain.Event, subscriberBuffer),
		doneCh:  make(chan struct{}),
	}
	sw.wg.Add(1)
	go sw.run()
	return sw
}

func (sw *subscriberWriter) run() {
	defer sw.wg.Done()
	for {
		select {
		case event := <-sw.eventCh:
			sw.deliver(event)
		case <-sw.doneCh:
			return
		}
	}
}

func (sw *subscriberWriter) deliver(event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.BusHandlerPanicsTotal.Inc()
			slog.Error("Subscriber handler panic recovered",
				"session_key", event.SessionKey(),
				"kind", event.Kind(),
				"panic", r)
		}
	}()
	sw.handler(event)
}

func (sw *subscriberWriter) stop() {
	sw.stopOnce.Do(func() {
		close(sw.doneCh)
	})
	sw.wg.Wait()
}
