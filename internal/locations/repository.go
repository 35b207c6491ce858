package locations

import (
	"context"

	"gorm.io/gorm"

	"github.com/shoppos/pos-backend/pkg/db/models"
)

// Repository persists shop locations.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// List returns locations ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Location, error) {
	var rows []models.Location
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

// FindByID loads one location; gorm.ErrRecordNotFound when absent.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Location, error) {
	var loc models.Location
	if err := r.db.WithContext(ctx).First(&loc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &loc, nil
}

// NameTaken reports whether another location already uses name.
func (r *Repository) NameTaken(ctx context.Context, name string, exceptID int64) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Location{}).Where("name = ?", name)
	if exceptID > 0 {
		query = query.Where("id <> ?", exceptID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a location.
func (r *Repository) Create(ctx context.Context, loc *models.Location) error {
	return r.db.WithContext(ctx).Create(loc).Error
}

// Rename updates the name and returns the fresh row.
func (r *Repository) Rename(ctx context.Context, id int64, name string) (*models.Location, error) {
	res := r.db.WithContext(ctx).Model(&models.Location{}).Where("id = ?", id).Update("name", name)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindByID(ctx, id)
}

// References counts sales and items pointing at the location.
func (r *Repository) References(ctx context.Context, id int64) (sales int64, items int64, err error) {
	if err = r.db.WithContext(ctx).Model(&models.Sale{}).Where("location_id = ?", id).Count(&sales).Error; err != nil {
		return 0, 0, err
	}
	if err = r.db.WithContext(ctx).Model(&models.Item{}).Where("location_id = ?", id).Count(&items).Error; err != nil {
		return 0, 0, err
	}
	return sales, items, nil
}

// Delete removes the location and returns the deleted row.
func (r *Repository) Delete(ctx context.Context, id int64) (*models.Location, error) {
	loc, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Delete(&models.Location{}, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return loc, nil
}
