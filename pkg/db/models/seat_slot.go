package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourlink-backend/pkg/enums"
)

// SeatSlot is one purchasable seat. BookingID is set exactly when the slot
// is reserved or booked.
type SeatSlot struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	TourDateID uuid.UUID        `gorm:"column:tour_date_id;type:uuid;not null;uniqueIndex:idx_seat_slots_tour_date_position,priority:1"`
	Position   int              `gorm:"column:position;not null;uniqueIndex:idx_seat_slots_tour_date_position,priority:2"`
	Status     enums.SeatStatus `gorm:"column:status;type:varchar(16);not null;index"`
	BookingID  *uuid.UUID       `gorm:"column:booking_id;type:uuid;index"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (SeatSlot) TableName() string { return "seat_slots" }

func (s *SeatSlot) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
