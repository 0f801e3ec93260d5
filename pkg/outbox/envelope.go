package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CurrentVersion is written on every new envelope. Readers treat a missing
// version as 1.
const CurrentVersion = 1

var errEmptyData = errors.New("envelope carries no data")

// ActorRef identifies who produced the event.
type ActorRef struct {
	ActorID uuid.UUID `json:"actorId"`
	Email   string    `json:"email,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload_json and sent
// as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses raw and checks the fields every reader relies on: a
// UUID event id and a non-null data document.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version <= 0 {
		env.Version = CurrentVersion
	}
	if _, err := uuid.Parse(strings.TrimSpace(env.EventID)); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("envelope event id %q: %w", env.EventID, err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return PayloadEnvelope{}, errEmptyData
	}
	return env, nil
}

// ID returns the parsed event id. It is uuid.Nil for envelopes that did not
// come through DecodeEnvelope and carry a malformed id.
func (e PayloadEnvelope) ID() uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(e.EventID))
	if err != nil {
		return uuid.Nil
	}
	return id
}
