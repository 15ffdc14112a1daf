package tours

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourlink-backend/pkg/db/models"
)

// Repository manages the tour catalog read model.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreatePackage(ctx context.Context, pkg *models.TourPackage) error
	FindPackage(ctx context.Context, id uuid.UUID) (*models.TourPackage, error)
	CreateTourDate(ctx context.Context, date *models.TourDate) error
	FindTourDate(ctx context.Context, id uuid.UUID) (*models.TourDate, error)
	ListTourDates(ctx context.Context, packageID uuid.UUID) ([]models.TourDate, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePackage(ctx context.Context, pkg *models.TourPackage) error {
	return r.db.WithContext(ctx).Create(pkg).Error
}

func (r *repository) FindPackage(ctx context.Context, id uuid.UUID) (*models.TourPackage, error) {
	var pkg models.TourPackage
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&pkg).Error; err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *repository) CreateTourDate(ctx context.Context, date *models.TourDate) error {
	return r.db.WithContext(ctx).Create(date).Error
}

func (r *repository) FindTourDate(ctx context.Context, id uuid.UUID) (*models.TourDate, error) {
	var date models.TourDate
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&date).Error; err != nil {
		return nil, err
	}
	return &date, nil
}

func (r *repository) ListTourDates(ctx context.Context, packageID uuid.UUID) ([]models.TourDate, error) {
	var dates []models.TourDate
	if err := r.db.WithContext(ctx).
		Where("package_id = ?", packageID).
		Order("departure_date ASC").
		Find(&dates).Error; err != nil {
		return nil, err
	}
	return dates, nil
}
