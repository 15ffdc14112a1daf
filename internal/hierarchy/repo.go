package hierarchy

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
	"github.com/angelmondragon/tourlink-backend/pkg/enums"
)

// Repository persists reseller nodes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, node *models.ResellerNode) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ResellerNode, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.ResellerNode, error)
	// SetSponsor writes the sponsor link only while it is still empty.
	SetSponsor(ctx context.Context, id, sponsorID uuid.UUID) (int64, error)
	RepointGroupRoot(ctx context.Context, fromRoot, toRoot uuid.UUID) (int64, error)
	CountDirectDownline(ctx context.Context, id uuid.UUID) (int64, error)
	UpdateDownlineCount(ctx context.Context, id uuid.UUID, count int) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.ResellerStatus) (int64, error)
	ListDirectDownline(ctx context.Context, id uuid.UUID) ([]models.ResellerNode, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a hierarchy repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, node *models.ResellerNode) error {
	return r.db.WithContext(ctx).Create(node).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ResellerNode, error) {
	var node models.ResellerNode
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&node).Error; err != nil {
		return nil, err
	}
	return &node, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.ResellerNode, error) {
	var node models.ResellerNode
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&node).Error; err != nil {
		return nil, err
	}
	return &node, nil
}

func (r *repository) SetSponsor(ctx context.Context, id, sponsorID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ResellerNode{}).
		Where("id = ? AND sponsor_id IS NULL", id).
		Update("sponsor_id", sponsorID)
	return res.RowsAffected, res.Error
}

func (r *repository) RepointGroupRoot(ctx context.Context, fromRoot, toRoot uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ResellerNode{}).
		Where("group_root_id = ?", fromRoot).
		Update("group_root_id", toRoot)
	return res.RowsAffected, res.Error
}

func (r *repository) CountDirectDownline(ctx context.Context, id uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ResellerNode{}).
		Where("sponsor_id = ?", id).
		Count(&count).Error
	return count, err
}

func (r *repository) UpdateDownlineCount(ctx context.Context, id uuid.UUID, count int) error {
	return r.db.WithContext(ctx).
		Model(&models.ResellerNode{}).
		Where("id = ?", id).
		Update("direct_downline_count", count).Error
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.ResellerStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ResellerNode{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}

func (r *repository) ListDirectDownline(ctx context.Context, id uuid.UUID) ([]models.ResellerNode, error) {
	var nodes []models.ResellerNode
	if err := r.db.WithContext(ctx).
		Where("sponsor_id = ?", id).
		Order("created_at ASC").
		Order("id ASC").
		Find(&nodes).Error; err != nil {
		return nil, err
	}
	return nodes, nil
}
