package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column on outbox_events.
type OutboxAggregateType string

const (
	AggregateBooking  OutboxAggregateType = "booking"
	AggregateReseller OutboxAggregateType = "reseller"
	AggregateTourDate OutboxAggregateType = "tour_date"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateBooking,
	AggregateReseller,
	AggregateTourDate,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column on outbox_events.
type OutboxEventType string

const (
	EventResellerRegistered     OutboxEventType = "reseller_registered"
	EventResellerStatusChanged  OutboxEventType = "reseller_status_changed"
	EventTourDateCreated        OutboxEventType = "tour_date_created"
	EventBookingCreated         OutboxEventType = "booking_created"
	EventBookingConfirmed       OutboxEventType = "booking_confirmed"
	EventBookingCancelled       OutboxEventType = "booking_cancelled"
	EventBookingExpired         OutboxEventType = "booking_expired"
	EventCommissionsDistributed OutboxEventType = "commissions_distributed"
	EventCommissionsVoided      OutboxEventType = "commissions_voided"
)

var validOutboxEventTypes = []OutboxEventType{
	EventResellerRegistered,
	EventResellerStatusChanged,
	EventTourDateCreated,
	EventBookingCreated,
	EventBookingConfirmed,
	EventBookingCancelled,
	EventBookingExpired,
	EventCommissionsDistributed,
	EventCommissionsVoided,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason records why a row left the outbox without being
// published.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable:
		return true
	}
	return false
}
