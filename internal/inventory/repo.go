package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
	"github.com/angelmondragon/tourlink-backend/pkg/enums"
)

const slotInsertBatch = 200

// Repository owns seat_slots and the tour date row lock that serialises
// reservations for one departure.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSlots(ctx context.Context, slots []models.SeatSlot) error
	LockTourDate(ctx context.Context, tourDateID uuid.UUID) (*models.TourDate, error)
	FindAvailable(ctx context.Context, tourDateID uuid.UUID, limit int) ([]models.SeatSlot, error)
	ReserveSlots(ctx context.Context, slotIDs []uuid.UUID, bookingID uuid.UUID) (int64, error)
	TransitionSlots(ctx context.Context, bookingID uuid.UUID, slotIDs []uuid.UUID, from []enums.SeatStatus, to enums.SeatStatus) (int64, error)
	CountByStatus(ctx context.Context, tourDateID uuid.UUID) (map[enums.SeatStatus]int, error)
	ListSlots(ctx context.Context, tourDateID uuid.UUID) ([]models.SeatSlot, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSlots(ctx context.Context, slots []models.SeatSlot) error {
	if len(slots) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&slots, slotInsertBatch).Error
}

func (r *repository) LockTourDate(ctx context.Context, tourDateID uuid.UUID) (*models.TourDate, error) {
	var date models.TourDate
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", tourDateID).
		First(&date).Error; err != nil {
		return nil, err
	}
	return &date, nil
}

func (r *repository) FindAvailable(ctx context.Context, tourDateID uuid.UUID, limit int) ([]models.SeatSlot, error) {
	var slots []models.SeatSlot
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tour_date_id = ? AND status = ?", tourDateID, enums.SeatStatusAvailable).
		Order("position ASC").
		Limit(limit).
		Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *repository) ReserveSlots(ctx context.Context, slotIDs []uuid.UUID, bookingID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SeatSlot{}).
		Where("id IN ? AND status = ?", slotIDs, enums.SeatStatusAvailable).
		Updates(map[string]any{
			"status":     enums.SeatStatusReserved,
			"booking_id": bookingID,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// TransitionSlots moves slots bound to bookingID out of one of the from
// statuses. Moving to a status that does not hold a seat clears the binding.
func (r *repository) TransitionSlots(ctx context.Context, bookingID uuid.UUID, slotIDs []uuid.UUID, from []enums.SeatStatus, to enums.SeatStatus) (int64, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if !to.Held() {
		updates["booking_id"] = nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.SeatSlot{}).
		Where("id IN ? AND booking_id = ? AND status IN ?", slotIDs, bookingID, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

type statusCount struct {
	Status enums.SeatStatus
	Total  int
}

func (r *repository) CountByStatus(ctx context.Context, tourDateID uuid.UUID) (map[enums.SeatStatus]int, error) {
	var rows []statusCount
	if err := r.db.WithContext(ctx).
		Model(&models.SeatSlot{}).
		Select("status, COUNT(*) AS total").
		Where("tour_date_id = ?", tourDateID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[enums.SeatStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

func (r *repository) ListSlots(ctx context.Context, tourDateID uuid.UUID) ([]models.SeatSlot, error) {
	var slots []models.SeatSlot
	if err := r.db.WithContext(ctx).
		Where("tour_date_id = ?", tourDateID).
		Order("position ASC").
		Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}
