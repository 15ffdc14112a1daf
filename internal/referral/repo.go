package referral

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
)

// Repository persists referral codes. referral_codes.code is the uniqueness
// authority; reseller_nodes.referral_code mirrors it once bound.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Insert claims the code and reports false when it is already taken.
	Insert(ctx context.Context, code *models.ReferralCode) (bool, error)
	Find(ctx context.Context, code string) (*models.ReferralCode, error)
	Bind(ctx context.Context, code string, resellerID uuid.UUID) (int64, error)
	FindReseller(ctx context.Context, code string) (*models.ResellerNode, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a referral repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, code *models.ReferralCode) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(code)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Find(ctx context.Context, code string) (*models.ReferralCode, error) {
	var row models.ReferralCode
	if err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) Bind(ctx context.Context, code string, resellerID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ReferralCode{}).
		Where("code = ? AND reseller_id IS NULL", code).
		Update("reseller_id", resellerID)
	return res.RowsAffected, res.Error
}

func (r *repository) FindReseller(ctx context.Context, code string) (*models.ResellerNode, error) {
	var node models.ResellerNode
	if err := r.db.WithContext(ctx).
		Where("referral_code = ?", code).
		First(&node).Error; err != nil {
		return nil, err
	}
	return &node, nil
}
