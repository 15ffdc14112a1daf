package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/tourlink-backend/pkg/db/types"
	"github.com/angelmondragon/tourlink-backend/pkg/enums"
)

// Booking is a reseller's purchase of SeatCount seats on a single tour date.
type Booking struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ResellerID    uuid.UUID           `gorm:"column:reseller_id;type:uuid;not null;index"`
	TourDateID    uuid.UUID           `gorm:"column:tour_date_id;type:uuid;not null;index"`
	SeatCount     int                 `gorm:"column:seat_count;not null"`
	Status        enums.BookingStatus `gorm:"column:status;type:varchar(16);not null;index"`
	SeatSlotIDs   dbtypes.UUIDArray   `gorm:"column:seat_slot_ids;type:text;not null"`
	CustomerName  string              `gorm:"column:customer_name;type:varchar(200);not null"`
	CustomerEmail *string             `gorm:"column:customer_email;type:varchar(320)"`
	CustomerPhone *string             `gorm:"column:customer_phone;type:varchar(32)"`
	ConfirmedAt   *time.Time          `gorm:"column:confirmed_at"`
	CancelledAt   *time.Time          `gorm:"column:cancelled_at"`
	CancelReason  *string             `gorm:"column:cancel_reason;type:text"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Booking) TableName() string { return "bookings" }

func (b *Booking) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
