package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/castwire/castwire/internal/bus"
	"github.com/castwire/castwire/internal/domain"
	"github.com/castwire/castwire/internal/registry"
)

// Service translates ingest lifecycle signals into registry state and bus
// events.
type Service struct {
	registry   *registry.Registry
	bus        *bus.Bus
	schedules  domain.ScheduleRepository
	startGroup singleflight.Group
}

// NewService creates the application layer service.
func NewService(reg *registry.Registry, b *bus.Bus, schedules domain.ScheduleRepository) *Service {
	return &Service{
		registry:  reg,
		bus:       b,
		schedules: schedules,
	}
}

// BootReset zeroes all persisted viewer counters. Must run before the
// process accepts connections: an unclean shutdown can leave nonzero counts
// on owner records for sessions that are no longer live, and those would be
// shown to users as current viewers.
func (s *Service) BootReset(ctx context.Context) error {
	affected, err := s.schedules.ResetAllViewerCounters(ctx)
	if err != nil {
		return fmt.Errorf("reset persisted viewer counters: %w", err)
	}
	slog.Info("Persisted viewer counters reset", "affected", affected)
	return nil
}

// HandleStreamStarted registers a session for a went-live signal and
// announces it. Duplicate signals for the same key are collapsed; a session
// that is already live is not an error.
func (s *Service) HandleStreamStarted(ctx context.Context, sessionKey string, owner domain.OwnerRef, md domain.SessionMetadata) error {
	_, err, _ := s.startGroup.Do(sessionKey, func() (any, error) {
		_, err := s.registry.StartSession(sessionKey, owner, md)
		if errors.Is(err, domain.ErrAlreadyLive) {
			slog.Debug("Duplicate went-live signal ignored", "session_key", sessionKey)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		s.bus.Publish(domain.SessionStarted{Key: sessionKey})
		return nil, nil
	})
	return err
}

// HandleStreamEnded removes a session for a stream-ended signal and
// announces it. Duplicate or racing end signals are no-ops.
func (s *Service) HandleStreamEnded(ctx context.Context, sessionKey string) {
	wasLive := s.registry.IsLive(sessionKey)
	s.registry.EndSession(sessionKey)
	if wasLive {
		s.bus.Publish(domain.SessionEnded{Key: sessionKey})
	}
}

// UpdateSessionMetadata changes the metadata of a live session, announces
// the change, and best-effort persists it on the owner record so it survives
// a restart.
func (s *Service) UpdateSessionMetadata(ctx context.Context, sessionKey string, md domain.SessionMetadata) error {
	if err := s.registry.UpdateMetadata(sessionKey, md); err != nil {
		return err
	}
	s.bus.Publish(domain.MetadataUpdated{Key: sessionKey, Metadata: md})

	if sess := s.registry.GetSession(sessionKey); sess != nil {
		if err := s.schedules.ApplySessionMetadata(ctx, sess.Owner, md); err != nil {
			slog.Error("Failed to persist session metadata", "session_key", sessionKey, "error", err)
		}
	}
	return nil
}

// GetSession returns a snapshot of a live session, or nil.
func (s *Service) GetSession(sessionKey string) *domain.Session {
	return s.registry.GetSession(sessionKey)
}
