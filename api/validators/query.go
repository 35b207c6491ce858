package validators

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/shoppos/pos-backend/pkg/errors"
)

const dateLayout = "2006-01-02"

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseQueryInt64 reads an optional positive id filter. Absent values return nil.
func ParseQueryInt64(r *http.Request, key string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a positive integer").WithDetails(map[string]any{"field": key})
	}
	return &value, nil
}

// ParsePathID reads a positive integer chi URL parameter.
func ParsePathID(r *http.Request, key string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid id").WithDetails(map[string]any{"field": key})
	}
	return value, nil
}

// ParseQueryTime reads an optional timestamp. A bare date (YYYY-MM-DD) is midnight UTC;
// with endOfRange set it becomes the following midnight so an exclusive upper bound still
// covers the whole day.
func ParseQueryTime(r *http.Request, key string, endOfRange bool) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		utc := t.UTC()
		return &utc, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid date, expected YYYY-MM-DD or RFC3339").WithDetails(map[string]any{"field": key})
	}
	if endOfRange {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

// RequireQueryTime is ParseQueryTime for parameters that must be present.
func RequireQueryTime(r *http.Request, key string, endOfRange bool) (time.Time, error) {
	t, err := ParseQueryTime(r, key, endOfRange)
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "from and to dates are required").WithDetails(map[string]any{"field": key})
	}
	return *t, nil
}
