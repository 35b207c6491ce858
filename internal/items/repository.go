package items

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/shoppos/pos-backend/pkg/db/models"
)

// Repository persists items and applies stock decrements.
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

// List returns items newest first.
func (r *Repository) List(ctx context.Context, filter ListItemsInput) ([]models.Item, error) {
	query := r.db.WithContext(ctx).Model(&models.Item{})
	if filter.LocationID != nil {
		query = query.Where("location_id = ?", *filter.LocationID)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var rows []models.Item
	err := query.Order("created_at DESC").Order("id DESC").Find(&rows).Error
	return rows, err
}

// FindByID loads one item; gorm.ErrRecordNotFound when absent.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// Create inserts a new item row.
func (r *Repository) Create(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// Update applies the column map and returns the fresh row.
func (r *Repository) Update(ctx context.Context, id int64, updates map[string]any) (*models.Item, error) {
	res := r.db.WithContext(ctx).Model(&models.Item{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindByID(ctx, id)
}

// Delete removes the item and returns the row as it was.
func (r *Repository) Delete(ctx context.Context, id int64) (*models.Item, error) {
	item, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Delete(&models.Item{}, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// CountByLocation counts items assigned to a location.
func (r *Repository) CountByLocation(ctx context.Context, locationID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Item{}).Where("location_id = ?", locationID).Count(&count).Error
	return count, err
}

// DecrementStock subtracts qty from the item only when enough stock is on hand. The
// guard and the write are one statement, so concurrent decrements of the same row
// serialize in the database and quantity cannot go negative. It reports whether the
// row was updated.
func (r *Repository) DecrementStock(ctx context.Context, tx *gorm.DB, itemID int64, qty int) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	res := tx.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ? AND quantity >= ?", itemID, qty).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// LookupStock reads the item inside tx. A missing item returns nil without error.
func (r *Repository) LookupStock(ctx context.Context, tx *gorm.DB, itemID int64) (*models.Item, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var item models.Item
	err := tx.WithContext(ctx).First(&item, "id = ?", itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
