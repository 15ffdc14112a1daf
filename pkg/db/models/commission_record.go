package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourlink-backend/pkg/enums"
)

// CommissionRecord is one level's payout for a confirmed booking.
// Level 0 is the booking owner, level n is the n-th sponsor up the chain.
type CommissionRecord struct {
	ID                    uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	BookingID             uuid.UUID              `gorm:"column:booking_id;type:uuid;not null;uniqueIndex:idx_commission_records_booking_level,priority:1"`
	BeneficiaryResellerID uuid.UUID              `gorm:"column:beneficiary_reseller_id;type:uuid;not null;index"`
	Level                 int                    `gorm:"column:level;not null;uniqueIndex:idx_commission_records_booking_level,priority:2"`
	Rate                  decimal.Decimal        `gorm:"column:rate;type:numeric(5,2);not null"`
	BaseAmount            decimal.Decimal        `gorm:"column:base_amount;type:numeric(12,2);not null"`
	Amount                decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency              enums.Currency         `gorm:"column:currency;type:varchar(3);not null"`
	Status                enums.CommissionStatus `gorm:"column:status;type:varchar(16);not null"`
	VoidedAt              *time.Time             `gorm:"column:voided_at"`
	CreatedAt             time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (CommissionRecord) TableName() string { return "commission_records" }

func (r *CommissionRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
