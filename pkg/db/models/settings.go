package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settings holds shop-wide receipt and currency configuration. Only the newest row
// is read.
type Settings struct {
	ID            int64           `gorm:"column:id;primaryKey;autoIncrement"`
	ShopName      string          `gorm:"column:shop_name;not null"`
	TaxRate       decimal.Decimal `gorm:"column:tax_rate;type:numeric(5,2);not null"`
	Currency      string          `gorm:"column:currency;not null"`
	ReceiptHeader string          `gorm:"column:receipt_header;not null"`
	ReceiptFooter string          `gorm:"column:receipt_footer;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the singular-looking table name.
func (Settings) TableName() string {
	return "settings"
}
