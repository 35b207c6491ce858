package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/shoppos/pos-backend/pkg/errors"
)

func TestParseQueryInt64(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/sales?location_id=3&cashier_id=abc&partner_cashier_id=-1", nil)

	got, err := ParseQueryInt64(req, "location_id")
	if err != nil || got == nil || *got != 3 {
		t.Fatalf("expected 3, got %v (%v)", got, err)
	}
	if got, err := ParseQueryInt64(req, "served_by_cashier_id"); err != nil || got != nil {
		t.Fatalf("absent filter should be nil, got %v (%v)", got, err)
	}
	for _, key := range []string{"cashier_id", "partner_cashier_id"} {
		if _, err := ParseQueryInt64(req, key); pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", key, err)
		}
	}
}

func TestParseQueryTime(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?from=2025-04-01&to=2025-04-30&at=2025-04-02T10:00:00%2B04:00&bad=April", nil)

	from, err := ParseQueryTime(req, "from", false)
	if err != nil || !from.Equal(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected from %v (%v)", from, err)
	}
	to, err := ParseQueryTime(req, "to", true)
	if err != nil || !to.Equal(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date-only upper bound should cover the whole day, got %v (%v)", to, err)
	}
	at, err := ParseQueryTime(req, "at", true)
	if err != nil || !at.Equal(time.Date(2025, 4, 2, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamps are used as given, got %v (%v)", at, err)
	}
	if _, err := ParseQueryTime(req, "bad", false); err == nil {
		t.Fatal("expected error for malformed date")
	}
	if _, err := RequireQueryTime(req, "missing", false); pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing date, got %v", err)
	}
}

func TestParsePathID(t *testing.T) {
	for raw, ok := range map[string]bool{"12": true, "0": false, "x": false, "": false} {
		rc := chi.NewRouteContext()
		rc.URLParams.Add("id", raw)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

		id, err := ParsePathID(req, "id")
		if ok && (err != nil || id != 12) {
			t.Fatalf("%q: expected 12, got %d (%v)", raw, id, err)
		}
		if !ok && err == nil {
			t.Fatalf("%q: expected error", raw)
		}
	}
}
