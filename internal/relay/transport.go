package relay

import "context"

// Transport is the abstract inter-process broadcast channel. Any clustering
// mechanism works as long as a broadcast reaches every worker, including the
// sender.
type Transport interface {
	// Broadcast sends one encoded envelope to all workers.
	Broadcast(ctx context.Context, data []byte) error

	// Receive returns a channel of incoming envelopes. The channel is
	// closed when ctx is cancelled or the underlying channel fails.
	Receive(ctx context.Context) (<-chan []byte, error)
}

// NoopTransport is the single-process transport: broadcasts go nowhere and
// nothing is ever received.
type NoopTransport struct{}

func (NoopTransport) Broadcast(context.Context, []byte) error { return nil }

func (NoopTransport) Receive(ctx context.Context) (<-chan []byte, error) {
	ch := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}
