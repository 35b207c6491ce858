package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoppos/pos-backend/pkg/db/models"
	"github.com/shoppos/pos-backend/pkg/enums"
	"github.com/shoppos/pos-backend/pkg/types"
)

// Actor is the authenticated caller recording the sale. Role membership is checked
// before the processor runs.
type Actor struct {
	ID   int64
	Role enums.Role
}

// SaleLineInput is one requested line. Price and Name are optional snapshot values.
type SaleLineInput struct {
	ID    int64
	Qty   int
	Price *decimal.Decimal
	Name  *string
}

// CreateSaleInput captures the sale payload after JSON decoding.
type CreateSaleInput struct {
	Items             []SaleLineInput
	Total             *decimal.Decimal
	PaymentMethod     string
	PaymentBank       *string
	LocationID        *int64
	ServedByCashierID *int64
	PartnerCashierID  *int64
}

// ListSalesInput filters the sales history.
type ListSalesInput struct {
	PaymentMethod     *enums.PaymentMethod
	PaymentBank       *string
	CashierID         *int64
	LocationID        *int64
	ServedByCashierID *int64
	PartnerCashierID  *int64
	From              *time.Time
	To                *time.Time
	Limit             int
	Cursor            string
}

// SaleDTO is the API representation of a sale.
type SaleDTO struct {
	ID                int64               `json:"id"`
	CashierID         int64               `json:"cashier_id"`
	Items             types.SaleLines     `json:"items"`
	Total             decimal.Decimal     `json:"total"`
	PaymentMethod     enums.PaymentMethod `json:"payment_method"`
	PaymentBank       *string             `json:"payment_bank"`
	LocationID        *int64              `json:"location_id"`
	ServedByCashierID *int64              `json:"served_by_cashier_id"`
	PartnerCashierID  *int64              `json:"partner_cashier_id"`
	CreatedAt         time.Time           `json:"created_at"`

	Cashier  *PersonDTO `json:"cashier,omitempty"`
	ServedBy *PersonDTO `json:"served_by,omitempty"`
	Partner  *PersonDTO `json:"partner,omitempty"`
	Location *string    `json:"location_name,omitempty"`
}

// PersonDTO is the joined identity of a user referenced by a sale.
type PersonDTO struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
}

// ListResult is one page of sales.
type ListResult struct {
	Sales      []SaleDTO `json:"sales"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// SaleRecord is a sale row joined with the names it references.
type SaleRecord struct {
	models.Sale

	CashierEmail    *string
	CashierName     *string
	CashierSurname  *string
	ServedByEmail   *string
	ServedByName    *string
	ServedBySurname *string
	PartnerEmail    *string
	PartnerName     *string
	PartnerSurname  *string
	LocationName    *string
}

func toSaleDTO(sale models.Sale) SaleDTO {
	items := sale.Items
	if items == nil {
		items = types.SaleLines{}
	}
	return SaleDTO{
		ID:                sale.ID,
		CashierID:         sale.CashierID,
		Items:             items,
		Total:             sale.Total,
		PaymentMethod:     sale.PaymentMethod,
		PaymentBank:       sale.PaymentBank,
		LocationID:        sale.LocationID,
		ServedByCashierID: sale.ServedByCashierID,
		PartnerCashierID:  sale.PartnerCashierID,
		CreatedAt:         sale.CreatedAt,
	}
}

func recordToDTO(record SaleRecord) SaleDTO {
	dto := toSaleDTO(record.Sale)
	dto.Cashier = person(record.CashierEmail, record.CashierName, record.CashierSurname)
	dto.ServedBy = person(record.ServedByEmail, record.ServedByName, record.ServedBySurname)
	dto.Partner = person(record.PartnerEmail, record.PartnerName, record.PartnerSurname)
	dto.Location = record.LocationName
	return dto
}

func person(email, name, surname *string) *PersonDTO {
	if email == nil {
		return nil
	}
	return &PersonDTO{Email: *email, Name: deref(name), Surname: deref(surname)}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
