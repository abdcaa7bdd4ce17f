package relay

import (
	"encoding/json"
	"fmt"

	"github.com/castwire/castwire/internal/domain"
)

// Envelope is the wire form of one relayed event. Seq increases
// monotonically per origin so receivers can de-duplicate in the future;
// nothing consumes it yet.
type Envelope struct {
	Origin  string           `json:"origin"`
	Seq     uint64           `json:"seq"`
	Kind    domain.EventKind `json:"kind"`
	Payload json.RawMessage  `json:"payload"`
}

func encodeEnvelope(origin string, seq uint64, event domain.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	data, err := json.Marshal(Envelope{
		Origin:  origin,
		Seq:     seq,
		Kind:    event.Kind(),
		Payload: payload,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

func decodeEnvelope(data []byte) (Envelope, domain.Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	event, err := decodeEvent(env.Kind, env.Payload)
	if err != nil {
		return Envelope{}, nil, err
	}
	return env, event, nil
}

func decodeEvent(kind domain.EventKind, payload []byte) (domain.Event, error) {
	switch kind {
	case domain.KindViewerCountChanged:
		var e domain.ViewerCountChanged
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return e, nil
	case domain.KindChatMessage:
		var e domain.ChatMessage
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return e, nil
	case domain.KindSessionStarted:
		var e domain.SessionStarted
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return e, nil
	case domain.KindSessionEnded:
		var e domain.SessionEnded
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return e, nil
	case domain.KindMetadataUpdated:
		var e domain.MetadataUpdated
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
}
