package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoppos/pos-backend/pkg/enums"
	"github.com/shoppos/pos-backend/pkg/types"
)

// Sale is an immutable record of one completed register transaction.
type Sale struct {
	ID                int64               `gorm:"column:id;primaryKey;autoIncrement"`
	CashierID         int64               `gorm:"column:cashier_id;not null;index"`
	Items             types.SaleLines     `gorm:"column:items;type:jsonb;not null"`
	Total             decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	PaymentMethod     enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentBank       *string             `gorm:"column:payment_bank"`
	LocationID        *int64              `gorm:"column:location_id;index"`
	ServedByCashierID *int64              `gorm:"column:served_by_cashier_id"`
	PartnerCashierID  *int64              `gorm:"column:partner_cashier_id"`
	CreatedAt         time.Time           `gorm:"column:created_at;not null;index"`
}
