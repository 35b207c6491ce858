package reports

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/shoppos/pos-backend/pkg/db/models"
	"github.com/shoppos/pos-backend/pkg/enums"
)

// ExportRow is a sale joined with the cashier email.
type ExportRow struct {
	models.Sale
	CashierEmail *string `gorm:"column:cashier_email"`
}

// Repository runs the read queries behind the reports.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a reports repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SalesBetween returns sales created in [from, to), newest first.
func (r *Repository) SalesBetween(ctx context.Context, from, to time.Time) ([]models.Sale, error) {
	var rows []models.Sale
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// ExportRows returns sales in [from, to) with the cashier email, newest first.
func (r *Repository) ExportRows(ctx context.Context, from, to time.Time) ([]ExportRow, error) {
	var rows []ExportRow
	err := r.db.WithContext(ctx).
		Table("sales").
		Select("sales.*, users.email AS cashier_email").
		Joins("LEFT JOIN users ON users.id = sales.cashier_id").
		Where("sales.created_at >= ? AND sales.created_at < ?", from, to).
		Order("sales.created_at DESC").Order("sales.id DESC").
		Scan(&rows).Error
	return rows, err
}

// Items returns every item with its quantity and price.
func (r *Repository) Items(ctx context.Context) ([]models.Item, error) {
	var rows []models.Item
	err := r.db.WithContext(ctx).
		Select("id", "name", "quantity", "price").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// Cashiers returns all users with the cashier role.
func (r *Repository) Cashiers(ctx context.Context) ([]models.User, error) {
	var rows []models.User
	err := r.db.WithContext(ctx).
		Where("role = ?", enums.RoleCashier).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}
