package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourlink-backend/pkg/enums"
)

// ResellerNode is one reseller's position in the sponsor tree.
// SponsorID is written once at attach time. GroupRootID always names the
// top-most node of the chain, or the node itself when it has no sponsor.
type ResellerNode struct {
	ID                   uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ReferralCode         string               `gorm:"column:referral_code;type:varchar(20);not null;uniqueIndex"`
	SponsorID            *uuid.UUID           `gorm:"column:sponsor_id;type:uuid;index"`
	GroupRootID          uuid.UUID            `gorm:"column:group_root_id;type:uuid;not null;index"`
	OwnCommissionRate    decimal.Decimal      `gorm:"column:own_commission_rate;type:numeric(5,2);not null"`
	UplineCommissionRate decimal.Decimal      `gorm:"column:upline_commission_rate;type:numeric(5,2);not null"`
	Status               enums.ResellerStatus `gorm:"column:status;type:varchar(16);not null"`
	DirectDownlineCount  int                  `gorm:"column:direct_downline_count;not null;default:0"`
	CreatedAt            time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (ResellerNode) TableName() string { return "reseller_nodes" }

func (n *ResellerNode) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.GroupRootID == uuid.Nil {
		n.GroupRootID = n.ID
	}
	return nil
}

// IsRoot reports whether the node has no sponsor.
func (n ResellerNode) IsRoot() bool {
	return n.SponsorID == nil
}
