package domain

// EventKind discriminates the closed set of fan-out event variants.
type EventKind string

const (
	KindViewerCountChanged EventKind = "viewer_count_changed"
	KindChatMessage        EventKind = "chat_message"
	KindSessionStarted     EventKind = "session_started"
	KindSessionEnded       EventKind = "session_ended"
	KindMetadataUpdated    EventKind = "metadata_updated"
)

// Event is one fan-out event. Events are transient and never persisted;
// ordering only matters per session key.
type Event interface {
	SessionKey() string
	Kind() EventKind
}

// ViewerCountChanged reports the new current viewer count of a session.
type ViewerCountChanged struct {
	Key   string `json:"session_key"`
	Count int64  `json:"count"`
}

func (e ViewerCountChanged) SessionKey() string { return e.Key }
func (e ViewerCountChanged) Kind() EventKind    { return KindViewerCountChanged }

// ChatMessage is a chat line submitted by an authenticated viewer.
type ChatMessage struct {
	Key    string `json:"session_key"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

func (e ChatMessage) SessionKey() string { return e.Key }
func (e ChatMessage) Kind() EventKind    { return KindChatMessage }

// SessionStarted announces that a session went live.
type SessionStarted struct {
	Key string `json:"session_key"`
}

func (e SessionStarted) SessionKey() string { return e.Key }
func (e SessionStarted) Kind() EventKind    { return KindSessionStarted }

// SessionEnded announces that a session stopped being live.
type SessionEnded struct {
	Key string `json:"session_key"`
}

func (e SessionEnded) SessionKey() string { return e.Key }
func (e SessionEnded) Kind() EventKind    { return KindSessionEnded }

// MetadataUpdated announces new metadata for a live session.
type MetadataUpdated struct {
	Key      string          `json:"session_key"`
	Metadata SessionMetadata `json:"metadata"`
}

func (e MetadataUpdated) SessionKey() string { return e.Key }
func (e MetadataUpdated) Kind() EventKind    { return KindMetadataUpdated }
