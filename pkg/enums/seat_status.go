package enums

import "fmt"

// SeatStatus is the lifecycle state of a single seat slot.
type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "available"
	SeatStatusReserved  SeatStatus = "reserved"
	SeatStatusBooked    SeatStatus = "booked"
	// SeatStatusCancelled marks a slot withdrawn from sale by the tour operator.
	SeatStatusCancelled SeatStatus = "cancelled"
)

var validSeatStatuses = []SeatStatus{
	SeatStatusAvailable,
	SeatStatusReserved,
	SeatStatusBooked,
	SeatStatusCancelled,
}

// String implements fmt.Stringer.
func (s SeatStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is recognized.
func (s SeatStatus) IsValid() bool {
	for _, candidate := range validSeatStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Held reports whether a slot in this status must carry a booking binding.
func (s SeatStatus) Held() bool {
	return s == SeatStatusReserved || s == SeatStatusBooked
}

// ParseSeatStatus converts a raw string into a SeatStatus.
func ParseSeatStatus(value string) (SeatStatus, error) {
	for _, candidate := range validSeatStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid seat status %q", value)
}
