package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TourDate is one departure of a package. Remaining seats are always counted
// from seat_slots and never stored here.
type TourDate struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PackageID     uuid.UUID       `gorm:"column:package_id;type:uuid;not null;index"`
	DepartureDate time.Time       `gorm:"column:departure_date;not null"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	TotalSeats    int             `gorm:"column:total_seats;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (TourDate) TableName() string { return "tour_dates" }

func (d *TourDate) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
