package enums

import "fmt"

// CommissionType selects how a package's commission base is computed.
type CommissionType string

const (
	CommissionTypePercentage CommissionType = "percentage"
	CommissionTypeFixed      CommissionType = "fixed"
)

var validCommissionTypes = []CommissionType{
	CommissionTypePercentage,
	CommissionTypeFixed,
}

func (c CommissionType) String() string {
	return string(c)
}

func (c CommissionType) IsValid() bool {
	for _, candidate := range validCommissionTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCommissionType converts a raw string into a CommissionType.
func ParseCommissionType(value string) (CommissionType, error) {
	for _, candidate := range validCommissionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commission type %q", value)
}

// CommissionStatus is the lifecycle of a single commission record.
type CommissionStatus string

const (
	CommissionStatusPending CommissionStatus = "pending"
	CommissionStatusVoided  CommissionStatus = "voided"
)

var validCommissionStatuses = []CommissionStatus{
	CommissionStatusPending,
	CommissionStatusVoided,
}

func (c CommissionStatus) String() string {
	return string(c)
}

func (c CommissionStatus) IsValid() bool {
	for _, candidate := range validCommissionStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}
