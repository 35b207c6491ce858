package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/shoppos/pos-backend/api/responses"
	"github.com/shoppos/pos-backend/api/validators"
	"github.com/shoppos/pos-backend/internal/settings"
	pkgerrors "github.com/shoppos/pos-backend/pkg/errors"
	"github.com/shoppos/pos-backend/pkg/logger"
)

type updateSettingsRequest struct {
	ShopName      *string          `json:"shop_name"`
	TaxRate       *decimal.Decimal `json:"tax_rate"`
	Currency      *string          `json:"currency" validate:"omitempty,len=3"`
	ReceiptHeader *string          `json:"receipt_header"`
	ReceiptFooter *string          `json:"receipt_footer"`
}

func SettingsGet(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}
		current, err := svc.Get(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, current)
	}
}

func SettingsUpdate(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}
		var body updateSettingsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.Update(r.Context(), settings.UpdateSettingsInput{
			ShopName:      body.ShopName,
			TaxRate:       body.TaxRate,
			Currency:      body.Currency,
			ReceiptHeader: body.ReceiptHeader,
			ReceiptFooter: body.ReceiptFooter,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}
