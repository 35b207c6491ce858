package models

import (
	"time"

	"github.com/shoppos/pos-backend/pkg/enums"
	"github.com/shoppos/pos-backend/pkg/types"
)

// Offer is a stock transfer proposal submitted by a shop for admin review.
type Offer struct {
	ID                int64             `gorm:"column:id;primaryKey;autoIncrement"`
	FromShop          string            `gorm:"column:from_shop;not null"`
	Items             types.OfferItems  `gorm:"column:items;type:jsonb;not null"`
	RequestedDiscount *types.Discount   `gorm:"column:requested_discount;type:jsonb"`
	Status            enums.OfferStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
