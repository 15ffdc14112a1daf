package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is stamped on envelopes whose event does not pick one.
const EnvelopeVersion = 1

var (
	ErrEnvelopeNoEventID = errors.New("envelope has no event id")
	ErrEnvelopeNoData    = errors.New("envelope has no data")
)

// ActorRef names whoever caused the event. Background jobs set only Source.
type ActorRef struct {
	ResellerID *uuid.UUID `json:"resellerId,omitempty"`
	Source     string     `json:"source,omitempty"`
}

// PayloadEnvelope is the JSON document stored in outbox_events.payload and
// sent verbatim as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

func newEnvelope(event DomainEvent) (PayloadEnvelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("encode %s data: %w", event.EventType, err)
	}
	env := PayloadEnvelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       data,
	}
	if env.Version == 0 {
		env.Version = EnvelopeVersion
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = time.Now().UTC()
	}
	return env, nil
}

// DecodeEnvelope parses raw and checks that it carries an event id and a
// non-null data document.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventID == "" {
		return PayloadEnvelope{}, ErrEnvelopeNoEventID
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return PayloadEnvelope{}, ErrEnvelopeNoData
	}
	return env, nil
}

// ID parses EventID. Envelopes written by Emit always carry a UUID.
func (e PayloadEnvelope) ID() (uuid.UUID, error) {
	return uuid.Parse(e.EventID)
}

// DecodeData unmarshals the event-specific document into v.
func (e PayloadEnvelope) DecodeData(v any) error {
	return json.Unmarshal(e.Data, v)
}
