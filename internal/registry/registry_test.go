package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castwire/castwire/internal/domain"
)

func testOwner() domain.OwnerRef {
	return domain.OwnerRef{Kind: domain.OwnerUser, ID: uuid.New()}
}

func TestStartSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := New(clock)
	owner := testOwner()

	sess, err := reg.StartSession("abc", owner, domain.SessionMetadata{Title: "First Stream"})
	require.NoError(t, err)
	require.NotNil(t, sess)

	assert.Equal(t, "abc", sess.Key)
	assert.Equal(t, owner, sess.Owner)
	assert.Equal(t, int64(0), sess.ViewerCount)
	assert.Equal(t, int64(0), sess.CumulativeViews)
	assert.Equal(t, "First Stream", sess.Metadata.Title)
	assert.Equal(t, clock.Now(), sess.StartedAt)
	assert.True(t, reg.IsLive("abc"))
}

func TestStartSession_AlreadyLive(t *testing.T) {
	reg := New(clockwork.NewFakeClock())

	_, err := reg.StartSession("abc", testOwner(), domain.SessionMetadata{})
	require.NoError(t, err)

	sess, err := reg.StartSession("abc", testOwner(), domain.SessionMetadata{})
	assert.ErrorIs(t, err, domain.ErrAlreadyLive)
	assert.Nil(t, sess)
}

func TestEndSession_NoOpWhenAbsent(t *testing.T) {
	reg := New(clockwork.NewFakeClock())

	// End signals may duplicate or race; neither panics nor errors.
	reg.EndSession("never-started")
	assert.False(t, reg.IsLive("never-started"))
}

func TestIncrementDecrementViewer(t *testing.T) {
	reg := New(clockwork.NewFakeClock())
	_, err := reg.StartSession("abc", testOwner(), domain.SessionMetadata{})
	require.NoError(t, err)

	count, err := reg.IncrementViewer("abc")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = reg.IncrementViewer("abc")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = reg.DecrementViewer("abc")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	sess := reg.GetSession("abc")
	require.NotNil(t, sess)
	assert.Equal(t, int64(1), sess.ViewerCount)
	assert.Equal(t, int64(2), sess.CumulativeViews, "cumulative count never decreases")
}

func TestDecrementViewer_ClampsAtZero(t *testing.T) {
	reg := New(clockwork.NewFakeClock())
	_, err := reg.StartSession("abc", testOwner(), domain.SessionMetadata{})
	require.NoError(t, err)

	count, err := reg.DecrementViewer("abc")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "decrement on zero clamps rather than going negative")

	sess := reg.GetSession("abc")
	require.NotNil(t, sess)
	assert.Equal(t, int64(0), sess.ViewerCount)
}

func TestOperationsOnUnknownSession(t *testing.T) {
	reg := New(clockwork.NewFakeClock())

	_, err := reg.IncrementViewer("missing")
	assert.ErrorIs(t, err, domain.ErrUnknownSession)

	_, err = reg.DecrementViewer("missing")
	assert.ErrorIs(t, err, domain.ErrUnknownSession)

	err = reg.UpdateMetadata("missing", domain.SessionMetadata{Title: "x"})
	assert.ErrorIs(t, err, domain.ErrUnknownSession)

	assert.Nil(t, reg.GetSession("missing"))
}

func TestUpdateMetadata(t *testing.T) {
	reg := New(clockwork.NewFakeClock())
	_, err := reg.StartSession("abc", testOwner(), domain.SessionMetadata{Title: "old"})
	require.NoError(t, err)

	err = reg.UpdateMetadata("abc", domain.SessionMetadata{
		Title:    "new",
		Genre:    "music",
		Category: "live",
		Tags:     []string{"jazz"},
	})
	require.NoError(t, err)

	sess := reg.GetSession("abc")
	require.NotNil(t, sess)
	assert.Equal(t, "new", sess.Metadata.Title)
	assert.Equal(t, "music", sess.Metadata.Genre)
	assert.Equal(t, []string{"jazz"}, sess.Metadata.Tags)
}

func TestGetSession_SnapshotIsolation(t *testing.T) {
	reg := New(clockwork.NewFakeClock())
	_, err := reg.StartSession("abc", testOwner(), domain.SessionMetadata{Tags: []string{"a", "b"}})
	require.NoError(t, err)

	sess := reg.GetSession("abc")
	require.NotNil(t, sess)
	sess.Metadata.Tags[0] = "mutated"
	sess.ViewerCount = 999

	fresh := reg.GetSession("abc")
	require.NotNil(t, fresh)
	assert.Equal(t, []string{"a", "b"}, fresh.Metadata.Tags, "snapshots must not alias internal state")
	assert.Equal(t, int64(0), fresh.ViewerCount)
}

// TestCounterConservation verifies the central correctness property: after N
// joins and M leaves complete, in any interleaving, the final count equals
// N-M and no increment or decrement is lost.
func TestCounterConservation(t *testing.T) {
	reg := New(clockwork.NewFakeClock())
	_, err := reg.StartSession("abc", testOwner(), domain.SessionMetadata{})
	require.NoError(t, err)

	const joins = 200
	const leaves = 120

	var wg sync.WaitGroup

	// Leaves only run after their paired join, matching real connection
	// lifecycles (connect strictly before its own disconnect).
	leaveCh := make(chan struct{}, joins)

	for i := 0; i < joins; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.IncrementViewer("abc")
			assert.NoError(t, err)
			leaveCh <- struct{}{}
		}()
	}

	for i := 0; i < leaves; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-leaveCh
			_, err := reg.DecrementViewer("abc")
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	sess := reg.GetSession("abc")
	require.NotNil(t, sess)
	assert.Equal(t, int64(joins-leaves), sess.ViewerCount)
	assert.Equal(t, int64(joins), sess.CumulativeViews)
}

func TestIndependentKeysDoNotInterfere(t *testing.T) {
	reg := New(clockwork.NewFakeClock())

	_, err := reg.StartSession("one", testOwner(), domain.SessionMetadata{})
	require.NoError(t, err)
	_, err = reg.StartSession("two", testOwner(), domain.SessionMetadata{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, key := range []string{"one", "two"} {
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(k string) {
				defer wg.Done()
				_, err := reg.IncrementViewer(k)
				assert.NoError(t, err)
			}(key)
		}
	}
	wg.Wait()

	assert.Equal(t, int64(50), reg.GetSession("one").ViewerCount)
	assert.Equal(t, int64(50), reg.GetSession("two").ViewerCount)
}

func TestRestartZeroesCounters(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := New(clock)

	owner := testOwner()
	_, err := reg.StartSession("abc", owner, domain.SessionMetadata{})
	require.NoError(t, err)
	_, err = reg.IncrementViewer("abc")
	require.NoError(t, err)

	reg.EndSession("abc")
	clock.Advance(time.Minute)

	sess, err := reg.StartSession("abc", owner, domain.SessionMetadata{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), sess.ViewerCount)
	assert.Equal(t, int64(0), sess.CumulativeViews)
}
