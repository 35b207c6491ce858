package controllers

import (
	"net/http"

	"github.com/shoppos/pos-backend/api/responses"
	"github.com/shoppos/pos-backend/api/validators"
	"github.com/shoppos/pos-backend/internal/offers"
	pkgerrors "github.com/shoppos/pos-backend/pkg/errors"
	"github.com/shoppos/pos-backend/pkg/logger"
	"github.com/shoppos/pos-backend/pkg/types"
)

type createOfferRequest struct {
	FromShop          string           `json:"from_shop" validate:"required"`
	Items             types.OfferItems `json:"items" validate:"required,min=1,dive"`
	RequestedDiscount *types.Discount  `json:"requested_discount"`
}

type updateOfferRequest struct {
	Status string `json:"status" validate:"required"`
}

func OfferCreate(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		var body createOfferRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offer, err := svc.Create(r.Context(), offers.CreateOfferInput{
			FromShop:          body.FromShop,
			Items:             body.Items,
			RequestedDiscount: body.RequestedDiscount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, offer)
	}
}

func OfferList(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// OfferDecide approves or rejects a pending offer.
func OfferDecide(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		id, err := validators.ParsePathID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateOfferRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offer, err := svc.UpdateStatus(r.Context(), id, body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, offer)
	}
}
