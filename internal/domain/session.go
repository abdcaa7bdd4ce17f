package domain

import (
	"time"

	"github.com/google/uuid"
)

// OwnerKind distinguishes the two kinds of entities a session can belong to.
type OwnerKind string

const (
	// OwnerUser marks a session owned by an individual user account.
	OwnerUser OwnerKind = "user"
	// OwnerStage marks a session owned by an event stage.
	OwnerStage OwnerKind = "stage"
)

// OwnerRef identifies the user account or event stage behind a session or
// scheduled entry.
type OwnerRef struct {
	Kind OwnerKind `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

// SessionKey returns the stable ingest key for this owner. A user and a
// stage with the same UUID map to distinct keys.
func (o OwnerRef) SessionKey() string {
	return string(o.Kind) + ":" + o.ID.String()
}

// SessionMetadata is the descriptive metadata of a live or scheduled stream.
// Mutable while the session is live.
type SessionMetadata struct {
	Title    string   `json:"title"`
	Genre    string   `json:"genre"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

// Session is a snapshot of one currently-live broadcast. ViewerCount is the
// number of currently connected viewers; CumulativeViews counts every join
// ever recorded and never decreases.
type Session struct {
	Key             string
	Owner           OwnerRef
	ViewerCount     int64
	CumulativeViews int64
	Metadata        SessionMetadata
	StartedAt       time.Time
}

// ScheduledEntry is a persisted intent to be live between StartTime and
// EndTime with the given metadata. Entries backed by a prerecorded source
// carry a non-empty PrerecordedSource reference.
type ScheduledEntry struct {
	ID                uuid.UUID
	Owner             OwnerRef
	StartTime         time.Time
	EndTime           time.Time
	Metadata          SessionMetadata
	PrerecordedSource string
}
