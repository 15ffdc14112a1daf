package enums

import "fmt"

// ResellerStatus tracks whether a reseller may transact.
type ResellerStatus string

const (
	ResellerStatusPending   ResellerStatus = "pending"
	ResellerStatusActive    ResellerStatus = "active"
	ResellerStatusSuspended ResellerStatus = "suspended"
)

var validResellerStatuses = []ResellerStatus{
	ResellerStatusPending,
	ResellerStatusActive,
	ResellerStatusSuspended,
}

// String implements fmt.Stringer.
func (s ResellerStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is recognized.
func (s ResellerStatus) IsValid() bool {
	for _, candidate := range validResellerStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the status change is allowed.
func (s ResellerStatus) CanTransitionTo(next ResellerStatus) bool {
	switch s {
	case ResellerStatusPending:
		return next == ResellerStatusActive || next == ResellerStatusSuspended
	case ResellerStatusActive:
		return next == ResellerStatusSuspended
	case ResellerStatusSuspended:
		return next == ResellerStatusActive
	}
	return false
}

// ParseResellerStatus converts a raw string into a ResellerStatus.
func ParseResellerStatus(value string) (ResellerStatus, error) {
	for _, candidate := range validResellerStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reseller status %q", value)
}
