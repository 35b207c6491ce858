package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shoppos/pos-backend/api/middleware"
	"github.com/shoppos/pos-backend/api/responses"
	"github.com/shoppos/pos-backend/api/validators"
	"github.com/shoppos/pos-backend/internal/sales"
	"github.com/shoppos/pos-backend/pkg/enums"
	pkgerrors "github.com/shoppos/pos-backend/pkg/errors"
	"github.com/shoppos/pos-backend/pkg/logger"
	"github.com/shoppos/pos-backend/pkg/pagination"
)

// Field checks live in the sale processor so every rejected sale is counted there.
type saleLineRequest struct {
	ID    int64            `json:"id"`
	Qty   int              `json:"qty"`
	Price *decimal.Decimal `json:"price,omitempty"`
	Name  *string          `json:"name,omitempty"`
}

type createSaleRequest struct {
	Items             []saleLineRequest `json:"items"`
	Total             *decimal.Decimal  `json:"total"`
	PaymentMethod     string            `json:"payment_method"`
	PaymentBank       *string           `json:"payment_bank,omitempty"`
	LocationID        *int64            `json:"location_id,omitempty"`
	ServedByCashierID *int64            `json:"served_by_cashier_id,omitempty"`
	PartnerCashierID  *int64            `json:"partner_cashier_id,omitempty"`
}

func (req createSaleRequest) toInput() sales.CreateSaleInput {
	lines := make([]sales.SaleLineInput, len(req.Items))
	for i, item := range req.Items {
		lines[i] = sales.SaleLineInput{ID: item.ID, Qty: item.Qty, Price: item.Price, Name: item.Name}
	}
	return sales.CreateSaleInput{
		Items:             lines,
		Total:             req.Total,
		PaymentMethod:     req.PaymentMethod,
		PaymentBank:       req.PaymentBank,
		LocationID:        req.LocationID,
		ServedByCashierID: req.ServedByCashierID,
		PartnerCashierID:  req.PartnerCashierID,
	}
}

// SaleCreate records a sale for the authenticated cashier.
func SaleCreate(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}

		var body createSaleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := sales.Actor{
			ID:   middleware.ActorIDFromContext(r.Context()),
			Role: enums.Role(middleware.RoleFromContext(r.Context())),
		}
		sale, err := svc.Create(r.Context(), actor, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sale)
	}
}

// SaleList returns the sales history, newest first.
func SaleList(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}

		input, err := parseSaleFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// SaleDetail returns one sale with its joined names.
func SaleDetail(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}
		id, err := validators.ParsePathID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sale, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sale)
	}
}

func parseSaleFilters(r *http.Request) (sales.ListSalesInput, error) {
	var input sales.ListSalesInput
	query := r.URL.Query()

	if raw := strings.TrimSpace(query.Get("payment_method")); raw != "" {
		method, bank, err := enums.NormalizePaymentMethod(raw)
		if err != nil {
			return input, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment_method").WithDetails(map[string]any{"field": "payment_method"})
		}
		input.PaymentMethod = &method
		if bank != "" {
			input.PaymentBank = &bank
		}
	}
	if raw := strings.ToUpper(strings.TrimSpace(query.Get("payment_bank"))); raw != "" && input.PaymentBank == nil {
		input.PaymentBank = &raw
	}

	ids := []struct {
		key  string
		dest **int64
	}{
		{"cashier_id", &input.CashierID},
		{"location_id", &input.LocationID},
		{"served_by_cashier_id", &input.ServedByCashierID},
		{"partner_cashier_id", &input.PartnerCashierID},
	}
	for _, f := range ids {
		value, err := validators.ParseQueryInt64(r, f.key)
		if err != nil {
			return input, err
		}
		*f.dest = value
	}

	var err error
	if input.From, err = validators.ParseQueryTime(r, "from", false); err != nil {
		return input, err
	}
	if input.To, err = validators.ParseQueryTime(r, "to", true); err != nil {
		return input, err
	}
	if input.Limit, err = validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit); err != nil {
		return input, err
	}
	input.Cursor = strings.TrimSpace(query.Get("cursor"))
	return input, nil
}
