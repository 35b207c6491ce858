package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestSaleFailureKindsMapToDistinctStatuses(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:        http.StatusBadRequest,
		CodeNotFound:          http.StatusNotFound,
		CodeInsufficientStock: http.StatusConflict,
		CodeInternal:          http.StatusInternalServerError,
	}
	for code, status := range cases {
		if got := MetadataFor(code).HTTPStatus; got != status {
			t.Fatalf("%s: expected %d, got %d", code, status, got)
		}
	}
	if !MetadataFor(CodeInternal).Retryable {
		t.Fatal("persistence failures are retryable")
	}
	if MetadataFor(CodeInsufficientStock).Retryable {
		t.Fatal("stock rejections are not retryable")
	}
	if !MetadataFor(CodeNotFound).DetailsAllowed || !MetadataFor(CodeInsufficientStock).DetailsAllowed {
		t.Fatal("item rejections must carry item details")
	}
}

func TestMetadataForUnknownCode(t *testing.T) {
	if got := MetadataFor("NOPE").HTTPStatus; got != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", got)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("deadlock detected")
	err := Wrap(CodeInternal, cause, "insert sale")

	if !stdErrors.Is(err, cause) {
		t.Fatal("cause lost")
	}
	if err.Error() != "INTERNAL_ERROR: insert sale: deadlock detected" {
		t.Fatalf("unexpected text %q", err.Error())
	}
	if Newf(CodeNotFound, "item %d not found", 4).Message() != "item 4 not found" {
		t.Fatal("Newf did not format")
	}
}

func TestAsAndIsSeeThroughWrapping(t *testing.T) {
	inner := New(CodeInsufficientStock, "short").WithDetails(map[string]any{"item_id": 1})
	err := fmt.Errorf("line 1: %w", inner)

	if got := As(err); got != inner {
		t.Fatalf("expected typed error, got %v", got)
	}
	if !Is(err, CodeInsufficientStock) || Is(err, CodeNotFound) {
		t.Fatal("Is mismatched codes")
	}
	if As(nil) != nil || Is(nil, CodeInternal) {
		t.Fatal("nil handling")
	}
}

func TestDumpExtractsPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key", TableName: "users"}
	d := Dump(Wrap(CodeConflict, pgErr, "create user"))

	if d.Code != CodeConflict {
		t.Fatalf("unexpected code %s", d.Code)
	}
	if d.PGFields == nil || d.PGFields.Code != "23505" || d.PGFields.Constraint != "users_email_key" {
		t.Fatalf("unexpected pg fields %+v", d.PGFields)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected two links, got %v", d.Chain)
	}
	if Dump(stdErrors.New("plain")).PGFields != nil {
		t.Fatal("plain errors have no pg fields")
	}
}
