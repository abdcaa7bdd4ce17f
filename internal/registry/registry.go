// Package registry holds the in-memory authoritative state of currently
// live sessions: who owns them, their metadata, and their viewer counters.
package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/castwire/castwire/internal/domain"
	"github.com/castwire/castwire/internal/metrics"
)

// liveSession is the mutable state of one live session. Its mutex linearizes
// all mutations for that session key; unrelated keys never contend.
type liveSession struct {
	mu              sync.Mutex
	owner           domain.OwnerRef
	viewerCount     int64
	cumulativeViews int64
	metadata        domain.SessionMetadata
	startedAt       time.Time
}

// Registry is the single source of truth for which sessions are live and
// what their current state is. A session exists here exactly while its
// underlying ingest is publishing.
type Registry struct {
	clock clockwork.Clock

	mu       sync.RWMutex
	sessions map[string]*liveSession
}

// New creates an empty registry.
func New(clock clockwork.Clock) *Registry {
	return &Registry{
		clock:    clock,
		sessions: make(map[string]*liveSession),
	}
}

// StartSession registers a new live session with zeroed viewer counters.
// Counters always start at zero on (re)start, regardless of any stale value
// persisted elsewhere. Returns ErrAlreadyLive if the key is registered.
func (r *Registry) StartSession(sessionKey string, owner domain.OwnerRef, md domain.SessionMetadata) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sessionKey]; exists {
		return nil, domain.ErrAlreadyLive
	}

	s := &liveSession{
		owner:     owner,
		metadata:  md,
		startedAt: r.clock.Now(),
	}
	r.sessions[sessionKey] = s

	metrics.RegistryLiveSessions.Set(float64(len(r.sessions)))
	slog.Info("Session started", "session_key", sessionKey, "owner_kind", owner.Kind)

	return snapshot(sessionKey, s), nil
}

// EndSession removes a session. A no-op if the key is not registered: end
// signals may race with or duplicate expiry detection.
func (r *Registry) EndSession(sessionKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.sessions[sessionKey]
	if !exists {
		return
	}
	delete(r.sessions, sessionKey)

	s.mu.Lock()
	viewers := s.viewerCount
	s.mu.Unlock()

	metrics.RegistryLiveSessions.Set(float64(len(r.sessions)))
	metrics.RegistryConnectedViewers.Sub(float64(viewers))
	slog.Info("Session ended", "session_key", sessionKey, "final_viewers", viewers)
}

// IncrementViewer atomically increments both the current and the cumulative
// viewer count. Returns the new current count.
func (r *Registry) IncrementViewer(sessionKey string) (int64, error) {
	s, err := r.lookup(sessionKey)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.viewerCount++
	s.cumulativeViews++
	count := s.viewerCount
	s.mu.Unlock()

	metrics.RegistryConnectedViewers.Inc()
	metrics.RegistryViewerJoinsTotal.Inc()
	return count, nil
}

// DecrementViewer atomically decrements the current viewer count, clamped at
// zero. A decrement on an already-zero count indicates a pairing bug in the
// caller; it is logged and clamped rather than corrupting state.
func (r *Registry) DecrementViewer(sessionKey string) (int64, error) {
	s, err := r.lookup(sessionKey)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	if s.viewerCount == 0 {
		s.mu.Unlock()
		slog.Warn("Viewer decrement on zero count, clamping", "session_key", sessionKey)
		metrics.RegistryClampedDecrementsTotal.Inc()
		return 0, nil
	}
	s.viewerCount--
	count := s.viewerCount
	s.mu.Unlock()

	metrics.RegistryConnectedViewers.Dec()
	return count, nil
}

// UpdateMetadata replaces the metadata of a live session.
func (r *Registry) UpdateMetadata(sessionKey string, md domain.SessionMetadata) error {
	s, err := r.lookup(sessionKey)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.metadata = md
	s.mu.Unlock()
	return nil
}

// GetSession returns a snapshot of a live session, or nil if the key is not
// live. Pure lookup, no side effects.
func (r *Registry) GetSession(sessionKey string) *domain.Session {
	r.mu.RLock()
	s, exists := r.sessions[sessionKey]
	r.mu.RUnlock()
	if !exists {
		return nil
	}
	return snapshot(sessionKey, s)
}

// IsLive reports whether a session key is currently registered.
func (r *Registry) IsLive(sessionKey string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.sessions[sessionKey]
	return exists
}

func (r *Registry) lookup(sessionKey string) (*liveSession, error) {
	r.mu.RLock()
	s, exists := r.sessions[sessionKey]
	r.mu.RUnlock()
	if !exists {
		return nil, domain.ErrUnknownSession
	}
	return s, nil
}

func snapshot(key string, s *liveSession) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	md := s.metadata
	md.Tags = append([]string(nil), s.metadata.Tags...)
	return &domain.Session{
		Key:             key,
		Owner:           s.owner,
		ViewerCount:     s.viewerCount,
		CumulativeViews: s.cumulativeViews,
		Metadata:        md,
		StartedAt:       s.startedAt,
	}
}
