package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tourlink-backend/pkg/enums"
)

// ResellerRegisteredEvent announces a new node in the sponsor tree.
type ResellerRegisteredEvent struct {
	ResellerID   uuid.UUID  `json:"reseller_id"`
	SponsorID    *uuid.UUID `json:"sponsor_id,omitempty"`
	GroupRootID  uuid.UUID  `json:"group_root_id"`
	ReferralCode string     `json:"referral_code"`
}

// ResellerStatusChangedEvent is emitted on activation and suspension.
type ResellerStatusChangedEvent struct {
	ResellerID uuid.UUID            `json:"reseller_id"`
	From       enums.ResellerStatus `json:"from"`
	To         enums.ResellerStatus `json:"to"`
}

// TourDateCreatedEvent reports a departure and its generated capacity.
type TourDateCreatedEvent struct {
	TourDateID    uuid.UUID       `json:"tour_date_id"`
	PackageID     uuid.UUID       `json:"package_id"`
	DepartureDate time.Time       `json:"departure_date"`
	Price         decimal.Decimal `json:"price"`
	TotalSeats    int             `json:"total_seats"`
}

// BookingEvent carries the booking snapshot for lifecycle transitions.
type BookingEvent struct {
	BookingID    uuid.UUID           `json:"booking_id"`
	ResellerID   uuid.UUID           `json:"reseller_id"`
	TourDateID   uuid.UUID           `json:"tour_date_id"`
	SeatCount    int                 `json:"seat_count"`
	SeatSlotIDs  []uuid.UUID         `json:"seat_slot_ids"`
	Status       enums.BookingStatus `json:"status"`
	Reason       string              `json:"reason,omitempty"`
	CustomerName string              `json:"customer_name,omitempty"`
}

// CommissionLine is one level of a distribution.
type CommissionLine struct {
	CommissionID          uuid.UUID       `json:"commission_id"`
	BeneficiaryResellerID uuid.UUID       `json:"beneficiary_reseller_id"`
	Level                 int             `json:"level"`
	Amount                decimal.Decimal `json:"amount"`
}

// CommissionsDistributedEvent lists every record created for a booking.
type CommissionsDistributedEvent struct {
	BookingID  uuid.UUID        `json:"booking_id"`
	Currency   enums.Currency   `json:"currency"`
	BaseAmount decimal.Decimal  `json:"base_amount"`
	Total      decimal.Decimal  `json:"total"`
	Lines      []CommissionLine `json:"lines"`
}

// CommissionsVoidedEvent follows a cancellation of a confirmed booking.
type CommissionsVoidedEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	VoidedCount int       `json:"voided_count"`
	VoidedAt    time.Time `json:"voided_at"`
}
