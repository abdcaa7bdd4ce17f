package gateway

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castwire/castwire/internal/bus"
	"github.com/castwire/castwire/internal/domain"
	"github.com/castwire/castwire/internal/registry"
)

func testGateway(t *testing.T) (*Gateway, *registry.Registry, *bus.Bus) {
	t.Helper()
	reg := registry.New(clockwork.NewFakeClock())
	b := bus.New()
	t.Cleanup(b.Stop)
	return New(reg, b), reg, b
}

func startLive(t *testing.T, reg *registry.Registry, key string) {
	t.Helper()
	owner := domain.OwnerRef{Kind: domain.OwnerUser, ID: uuid.New()}
	_, err := reg.StartSession(key, owner, domain.SessionMetadata{})
	require.NoError(t, err)
}

// collector subscribes to one session key and records everything delivered.
type collector struct {
	mu     sync.Mutex
	events []domain.Event
}

func subscribe(t *testing.T, g *Gateway, key string) *collector {
	t.Helper()
	c := &collector{}
	sub := g.Subscribe(key, func(event domain.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events = append(c.events, event)
	})
	t.Cleanup(sub.Close)
	return c
}

func (c *collector) countOf(kind domain.EventKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Kind() == kind {
			n++
		}
	}
	return n
}

func (c *collector) last(kind domain.EventKind) domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Kind() == kind {
			return c.events[i]
		}
	}
	return nil
}

func TestOnConnect_LiveSession(t *testing.T) {
	g, reg, _ := testGateway(t)
	startLive(t, reg, "abc")
	events := subscribe(t, g, "abc")

	connID := g.OnConnect("abc", "alice")
	assert.NotEqual(t, uuid.Nil, connID)

	assert.Equal(t, int64(1), reg.GetSession("abc").ViewerCount)
	assert.Equal(t, 1, g.ConnectionCount())

	assert.Eventually(t, func() bool {
		return events.countOf(domain.KindViewerCountChanged) == 1
	}, time.Second, 5*time.Millisecond)

	vc := events.last(domain.KindViewerCountChanged).(domain.ViewerCountChanged)
	assert.Equal(t, int64(1), vc.Count)
}

func TestOnConnect_NotLiveSession(t *testing.T) {
	g, reg, _ := testGateway(t)
	events := subscribe(t, g, "abc")

	connID := g.OnConnect("abc", "alice")
	assert.NotEqual(t, uuid.Nil, connID)
	assert.Equal(t, 1, g.ConnectionCount(), "connection is registered even when the session is not live")
	assert.False(t, reg.IsLive("abc"))

	// Disconnecting a never-counted connection must not touch any counter.
	g.OnDisconnect(connID)
	assert.Equal(t, 0, g.ConnectionCount())

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, events.countOf(domain.KindViewerCountChanged))
}

func TestOnDisconnect_DecrementsOnce(t *testing.T) {
	g, reg, _ := testGateway(t)
	startLive(t, reg, "abc")

	connID := g.OnConnect("abc", "alice")
	require.Equal(t, int64(1), reg.GetSession("abc").ViewerCount)

	// Duplicate teardown signals for the same connection are no-ops.
	g.OnDisconnect(connID)
	g.OnDisconnect(connID)
	g.OnDisconnect(connID)

	assert.Equal(t, int64(0), reg.GetSession("abc").ViewerCount)
}

func TestOnDisconnect_UnknownConnectionID(t *testing.T) {
	g, reg, _ := testGateway(t)
	startLive(t, reg, "abc")
	g.OnConnect("abc", "alice")

	g.OnDisconnect(uuid.New())
	assert.Equal(t, int64(1), reg.GetSession("abc").ViewerCount)
}

func TestOnDisconnect_AfterSessionEnded(t *testing.T) {
	g, reg, _ := testGateway(t)
	startLive(t, reg, "abc")

	connID := g.OnConnect("abc", "alice")
	reg.EndSession("abc")

	// The session is gone; teardown still completes without error.
	g.OnDisconnect(connID)
	assert.Equal(t, 0, g.ConnectionCount())
}

func TestOnChatSubmit(t *testing.T) {
	g, reg, _ := testGateway(t)
	startLive(t, reg, "abc")
	events := subscribe(t, g, "abc")

	err := g.OnChatSubmit("abc", "alice", "hello world")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return events.countOf(domain.KindChatMessage) == 1
	}, time.Second, 5*time.Millisecond)

	msg := events.last(domain.KindChatMessage).(domain.ChatMessage)
	assert.Equal(t, "alice", msg.Sender)
	assert.Equal(t, "hello world", msg.Text)
}

func TestOnChatSubmit_AnonymousRejected(t *testing.T) {
	g, reg, _ := testGateway(t)
	startLive(t, reg, "abc")
	events := subscribe(t, g, "abc")

	err := g.OnChatSubmit("abc", "", "hello")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, events.countOf(domain.KindChatMessage), "anonymous chat publishes nothing")
}

// TestCounterConservation runs interleaved connects and disconnects and
// verifies the final count is exactly N-M.
func TestCounterConservation(t *testing.T) {
	g, reg, _ := testGateway(t)
	startLive(t, reg, "abc")

	const viewers = 100
	const leavers = 60

	connIDs := make(chan uuid.UUID, viewers)
	var wg sync.WaitGroup

	for i := 0; i < viewers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			connIDs <- g.OnConnect("abc", "")
		}()
	}

	for i := 0; i < leavers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.OnDisconnect(<-connIDs)
		}()
	}

	wg.Wait()

	sess := reg.GetSession("abc")
	require.NotNil(t, sess)
	assert.Equal(t, int64(viewers-leavers), sess.ViewerCount)
	assert.Equal(t, int64(viewers), sess.CumulativeViews)
	assert.Equal(t, viewers-leavers, g.ConnectionCount())
}

// TestEndToEndScenario walks the full lifecycle: start, two joins, one leave,
// a chat message, session end, and a rejected post-end increment.
func TestEndToEndScenario(t *testing.T) {
	g, reg, b := testGateway(t)
	startLive(t, reg, "abc")
	events := subscribe(t, g, "abc")

	connA := g.OnConnect("abc", "viewer-a")
	assert.Equal(t, int64(1), reg.GetSession("abc").ViewerCount)

	connB := g.OnConnect("abc", "viewer-b")
	assert.Equal(t, int64(2), reg.GetSession("abc").ViewerCount)

	g.OnDisconnect(connA)
	assert.Equal(t, int64(1), reg.GetSession("abc").ViewerCount)

	require.NoError(t, g.OnChatSubmit("abc", "viewer-b", "great stream"))

	assert.Eventually(t, func() bool {
		return events.countOf(domain.KindChatMessage) == 1 &&
			events.countOf(domain.KindViewerCountChanged) == 3
	}, time.Second, 5*time.Millisecond)

	reg.EndSession("abc")
	b.Publish(domain.SessionEnded{Key: "abc"})

	_, err := reg.IncrementViewer("abc")
	assert.ErrorIs(t, err, domain.ErrUnknownSession)

	assert.Eventually(t, func() bool {
		return events.countOf(domain.KindSessionEnded) == 1
	}, time.Second, 5*time.Millisecond)

	g.OnDisconnect(connB)
	assert.Equal(t, 0, g.ConnectionCount())
}
