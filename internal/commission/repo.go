package commission

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
	"github.com/angelmondragon/tourlink-backend/pkg/enums"
	"github.com/angelmondragon/tourlink-backend/pkg/pagination"
)

// Repository persists commission records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateRecords(ctx context.Context, records []models.CommissionRecord) error
	VoidByBooking(ctx context.Context, bookingID uuid.UUID, at time.Time) (int64, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.CommissionRecord, error)
	ListByBeneficiary(ctx context.Context, resellerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.CommissionRecord, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a commission repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateRecords(ctx context.Context, records []models.CommissionRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&records).Error
}

func (r *repository) VoidByBooking(ctx context.Context, bookingID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CommissionRecord{}).
		Where("booking_id = ? AND status = ?", bookingID, enums.CommissionStatusPending).
		Updates(map[string]any{
			"status":    enums.CommissionStatusVoided,
			"voided_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.CommissionRecord, error) {
	var records []models.CommissionRecord
	if err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("level ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) ListByBeneficiary(ctx context.Context, resellerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.CommissionRecord, error) {
	query := r.db.WithContext(ctx).
		Where("beneficiary_reseller_id = ?", resellerID)
	if cursor != nil {
		query = query.Where("((created_at < ?) OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var records []models.CommissionRecord
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
