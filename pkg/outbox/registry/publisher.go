package registry

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/tourlink-backend/pkg/config"
	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
	"github.com/angelmondragon/tourlink-backend/pkg/enums"
	"github.com/angelmondragon/tourlink-backend/pkg/outbox"
	"github.com/angelmondragon/tourlink-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry with the configured topic names.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.BookingsTopic == "" {
		return nil, fmt.Errorf("bookings topic is required")
	}
	if cfg.CommissionsTopic == "" {
		return nil, fmt.Errorf("commissions topic is required")
	}
	if cfg.HierarchyTopic == "" {
		return nil, fmt.Errorf("hierarchy topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	bookingFactory := func() interface{} { return &payloads.BookingEvent{} }

	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventBookingCreated,
			AggregateType:  enums.AggregateBooking,
			Topic:          cfg.BookingsTopic,
			PayloadFactory: bookingFactory,
		},
		{
			EventType:      enums.EventBookingConfirmed,
			AggregateType:  enums.AggregateBooking,
			Topic:          cfg.BookingsTopic,
			PayloadFactory: bookingFactory,
		},
		{
			EventType:      enums.EventBookingCancelled,
			AggregateType:  enums.AggregateBooking,
			Topic:          cfg.BookingsTopic,
			PayloadFactory: bookingFactory,
		},
		{
			EventType:      enums.EventBookingExpired,
			AggregateType:  enums.AggregateBooking,
			Topic:          cfg.BookingsTopic,
			PayloadFactory: bookingFactory,
		},
		{
			EventType:      enums.EventTourDateCreated,
			AggregateType:  enums.AggregateTourDate,
			Topic:          cfg.BookingsTopic,
			PayloadFactory: func() interface{} { return &payloads.TourDateCreatedEvent{} },
		},
	} {
		reg.register(desc)
	}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventCommissionsDistributed,
			AggregateType:  enums.AggregateBooking,
			Topic:          cfg.CommissionsTopic,
			PayloadFactory: func() interface{} { return &payloads.CommissionsDistributedEvent{} },
		},
		{
			EventType:      enums.EventCommissionsVoided,
			AggregateType:  enums.AggregateBooking,
			Topic:          cfg.CommissionsTopic,
			PayloadFactory: func() interface{} { return &payloads.CommissionsVoidedEvent{} },
		},
	} {
		reg.register(desc)
	}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventResellerRegistered,
			AggregateType:  enums.AggregateReseller,
			Topic:          cfg.HierarchyTopic,
			PayloadFactory: func() interface{} { return &payloads.ResellerRegisteredEvent{} },
		},
		{
			EventType:      enums.EventResellerStatusChanged,
			AggregateType:  enums.AggregateReseller,
			Topic:          cfg.HierarchyTopic,
			PayloadFactory: func() interface{} { return &payloads.ResellerStatusChangedEvent{} },
		},
	} {
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Topics lists the distinct topics events can be routed to.
func (r *EventRegistry) Topics() []string {
	seen := map[string]struct{}{}
	topics := []string{}
	for _, desc := range r.entries {
		if _, ok := seen[desc.Topic]; ok {
			continue
		}
		seen[desc.Topic] = struct{}{}
		topics = append(topics, desc.Topic)
	}
	return topics
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}

	payload := desc.PayloadFactory()
	if err := envelope.DecodeData(payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
