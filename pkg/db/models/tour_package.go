package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourlink-backend/pkg/enums"
)

// CommissionPolicy is embedded in TourPackage and read once per confirmation.
type CommissionPolicy struct {
	CommissionType  enums.CommissionType `gorm:"column:commission_type;type:varchar(16);not null"`
	CommissionRate  decimal.Decimal      `gorm:"column:commission_rate;type:numeric(5,2);not null;default:0"`
	FixedAmount     decimal.Decimal      `gorm:"column:fixed_amount;type:numeric(12,2);not null;default:0"`
	MaxLevels       int                  `gorm:"column:max_levels;not null;default:0"`
	CommissionNotes *string              `gorm:"column:commission_notes;type:text"`
}

type TourPackage struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name      string           `gorm:"column:name;type:varchar(200);not null"`
	Currency  enums.Currency   `gorm:"column:currency;type:varchar(3);not null"`
	Policy    CommissionPolicy `gorm:"embedded"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (TourPackage) TableName() string { return "tour_packages" }

func (p *TourPackage) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
