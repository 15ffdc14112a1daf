package models

import (
	"time"

	"github.com/google/uuid"
)

// ReferralCode is the uniqueness authority for referral codes. A code is
// reserved first and bound to its reseller once the node exists.
type ReferralCode struct {
	Code       string     `gorm:"column:code;type:varchar(20);primaryKey"`
	ResellerID *uuid.UUID `gorm:"column:reseller_id;type:uuid;uniqueIndex"`
	Custom     bool       `gorm:"column:custom;not null;default:false"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (ReferralCode) TableName() string { return "referral_codes" }
