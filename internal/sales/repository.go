package sales

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/shoppos/pos-backend/pkg/db/models"
	"github.com/shoppos/pos-backend/pkg/pagination"
)

const saleSelect = `sales.*,
	u1.email AS cashier_email, u1.name AS cashier_name, u1.surname AS cashier_surname,
	u2.email AS served_by_email, u2.name AS served_by_name, u2.surname AS served_by_surname,
	u3.email AS partner_email, u3.name AS partner_name, u3.surname AS partner_surname,
	locations.name AS location_name`

// Repository is the sale ledger. Sales are only ever inserted.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// InsertSale appends the sale inside tx, populating its ID.
func (r *Repository) InsertSale(ctx context.Context, tx *gorm.DB, sale *models.Sale) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if sale == nil {
		return errors.New("sale required")
	}
	return tx.WithContext(ctx).Create(sale).Error
}

// List returns sales newest first with the referenced users and location joined in.
// It fetches one row past the page size so callers can detect a next page.
func (r *Repository) List(ctx context.Context, filter ListSalesInput) ([]SaleRecord, error) {
	query := r.joined(ctx)

	if filter.PaymentMethod != nil {
		query = query.Where("sales.payment_method = ?", *filter.PaymentMethod)
	}
	if filter.PaymentBank != nil {
		query = query.Where("sales.payment_bank = ?", *filter.PaymentBank)
	}
	if filter.CashierID != nil {
		query = query.Where("sales.cashier_id = ?", *filter.CashierID)
	}
	if filter.LocationID != nil {
		query = query.Where("sales.location_id = ?", *filter.LocationID)
	}
	if filter.ServedByCashierID != nil {
		query = query.Where("sales.served_by_cashier_id = ?", *filter.ServedByCashierID)
	}
	if filter.PartnerCashierID != nil {
		query = query.Where("sales.partner_cashier_id = ?", *filter.PartnerCashierID)
	}
	if filter.From != nil {
		query = query.Where("sales.created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("sales.created_at < ?", filter.To.UTC())
	}

	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return nil, err
	}

	var rows []SaleRecord
	err = query.
		Scopes(pagination.After(cursor, "sales")).
		Order("sales.created_at DESC").
		Order("sales.id DESC").
		Limit(pagination.LimitWithBuffer(filter.Limit)).
		Scan(&rows).Error
	return rows, err
}

// FindByID loads one joined sale; gorm.ErrRecordNotFound when absent.
func (r *Repository) FindByID(ctx context.Context, id int64) (*SaleRecord, error) {
	var rows []SaleRecord
	if err := r.joined(ctx).Where("sales.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

// CountByLocation counts sales recorded at a location.
func (r *Repository) CountByLocation(ctx context.Context, locationID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Sale{}).Where("location_id = ?", locationID).Count(&count).Error
	return count, err
}

func (r *Repository) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("sales").
		Select(saleSelect).
		Joins("LEFT JOIN users u1 ON u1.id = sales.cashier_id").
		Joins("LEFT JOIN users u2 ON u2.id = sales.served_by_cashier_id").
		Joins("LEFT JOIN users u3 ON u3.id = sales.partner_cashier_id").
		Joins("LEFT JOIN locations ON locations.id = sales.location_id")
}
