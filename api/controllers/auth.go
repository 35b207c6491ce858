package controllers

import (
	"net/http"

	"github.com/shoppos/pos-backend/api/middleware"
	"github.com/shoppos/pos-backend/api/responses"
	"github.com/shoppos/pos-backend/api/validators"
	"github.com/shoppos/pos-backend/internal/auth"
	pkgerrors "github.com/shoppos/pos-backend/pkg/errors"
	"github.com/shoppos/pos-backend/pkg/logger"
)

// AuthLogin wires the login endpoint into the HTTP layer.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type meResponse struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
}

// AuthMe echoes the identity resolved by the auth middleware.
func AuthMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, meResponse{
			ID:   middleware.ActorIDFromContext(r.Context()),
			Role: middleware.RoleFromContext(r.Context()),
		})
	}
}
