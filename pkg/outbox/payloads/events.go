package payloads

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoppos/pos-backend/pkg/enums"
	"github.com/shoppos/pos-backend/pkg/types"
)

// SaleCreatedEvent is emitted once per committed sale.
type SaleCreatedEvent struct {
	SaleID            int64               `json:"sale_id"`
	CashierID         int64               `json:"cashier_id"`
	LocationID        *int64              `json:"location_id,omitempty"`
	ServedByCashierID *int64              `json:"served_by_cashier_id,omitempty"`
	PartnerCashierID  *int64              `json:"partner_cashier_id,omitempty"`
	Items             types.SaleLines     `json:"items"`
	Total             decimal.Decimal     `json:"total"`
	PaymentMethod     enums.PaymentMethod `json:"payment_method"`
	PaymentBank       *string             `json:"payment_bank,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
}
