package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shoppos/pos-backend/pkg/enums"
)

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name    string
		role    string
		allowed []enums.Role
		want    int
	}{
		{"cashier allowed", "cashier", []enums.Role{enums.RoleCashier}, http.StatusOK},
		{"admin passes cashier gate", "admin", []enums.Role{enums.RoleCashier}, http.StatusOK},
		{"cashier blocked from admin", "cashier", []enums.Role{enums.RoleAdmin}, http.StatusForbidden},
		{"unknown role", "auditor", []enums.Role{enums.RoleCashier}, http.StatusForbidden},
		{"anonymous", "", []enums.Role{enums.RoleCashier}, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		handler := RequireRole(nil, tc.allowed...)(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
		if tc.role != "" {
			req = req.WithContext(WithIdentity(context.Background(), 1, tc.role, "jti"))
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("%s: expected %d got %d", tc.name, tc.want, resp.Code)
		}
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
