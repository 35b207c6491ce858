package sales

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/shoppos/pos-backend/pkg/db/models"
	"github.com/shoppos/pos-backend/pkg/enums"
	pkgerrors "github.com/shoppos/pos-backend/pkg/errors"
	"github.com/shoppos/pos-backend/pkg/metrics"
	"github.com/shoppos/pos-backend/pkg/pagination"
)

var cashier = Actor{ID: 1, Role: enums.RoleCashier}

func newTestService(t *testing.T, store *memStore, opts Options) Service {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }
	}
	svc, err := NewService(store, store, store, store, nil, nil, nil, opts)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func stockItem(id int64, qty int) models.Item {
	return models.Item{ID: id, Name: "Item", Price: decimal.NewFromInt(10), Quantity: qty}
}

func dec(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func strPtr(v string) *string {
	return &v
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
	return typed
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	store := newMemStore()
	if _, err := NewService(nil, store, store, store, nil, nil, nil, Options{}); err == nil {
		t.Fatal("expected tx runner error")
	}
	if _, err := NewService(store, nil, store, store, nil, nil, nil, Options{}); err == nil {
		t.Fatal("expected stock store error")
	}
	if _, err := NewService(store, store, nil, store, nil, nil, nil, Options{}); err == nil {
		t.Fatal("expected ledger error")
	}
	if _, err := NewService(store, store, store, store, nil, nil, nil, Options{EmitEvents: true}); err == nil {
		t.Fatal("expected publisher error when events are enabled")
	}
}

func TestCreateHappyPath(t *testing.T) {
	store := newMemStore(stockItem(5, 10))
	svc := newTestService(t, store, Options{})

	sale, err := svc.Create(context.Background(), cashier, CreateSaleInput{
		Items:         []SaleLineInput{{ID: 5, Qty: 3}},
		Total:         dec("30"),
		PaymentMethod: "cash",
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if sale.ID == 0 || sale.CreatedAt.IsZero() {
		t.Fatalf("expected generated id and timestamp, got %+v", sale)
	}
	if got := store.quantity(5); got != 7 {
		t.Fatalf("expected quantity 7, got %d", got)
	}
	if store.saleCount() != 1 {
		t.Fatalf("expected one sale, got %d", store.saleCount())
	}
	if len(sale.Items) != 1 || sale.Items[0].ID != 5 || sale.Items[0].Qty != 3 {
		t.Fatalf("unexpected items snapshot %+v", sale.Items)
	}
	if !sale.Total.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected total 30, got %s", sale.Total)
	}
	if sale.CashierID != cashier.ID || sale.PaymentMethod != enums.PaymentMethodCash || sale.PaymentBank != nil {
		t.Fatalf("unexpected sale %+v", sale)
	}
}

func TestCreateInsufficientStock(t *testing.T) {
	store := newMemStore(stockItem(5, 2))
	svc := newTestService(t, store, Options{})

	_, err := svc.Create(context.Background(), cashier, CreateSaleInput{
		Items:         []SaleLineInput{{ID: 5, Qty: 3}},
		Total:         dec("30"),
		PaymentMethod: "cash",
	})
	typed := requireCode(t, err, pkgerrors.CodeInsufficientStock)
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	if details["item_id"] != int64(5) || details["available"] != 2 || details["requested"] != 3 {
		t.Fatalf("unexpected details %+v", details)
	}
	if got := store.quantity(5); got != 2 {
		t.Fatalf("expected quantity unchanged at 2, got %d", got)
	}
	if store.saleCount() != 0 {
		t.Fatal("expected no sale row")
	}
}

func TestCreateRepeatedItemReportsCartStartingStock(t *testing.T) {
	store := newMemStore(stockItem(5, 5))
	svc := newTestService(t, store, Options{})

	_, err := svc.Create(context.Background(), cashier, CreateSaleInput{
		Items:         []SaleLineInput{{ID: 5, Qty: 3}, {ID: 5, Qty: 3}},
		Total:         dec("60"),
		PaymentMethod: "cash",
	})
	typed := requireCode(t, err, pkgerrors.CodeInsufficientStock)
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	if details["available"] != 5 || details["requested"] != 3 {
		t.Fatalf("unexpected details %+v", details)
	}
	if got := store.quantity(5); got != 5 {
		t.Fatalf("expected rollback to leave 5, got %d", got)
	}
}

func TestCreateAcceptsTrailingZeroScale(t *testing.T) {
	store := newMemStore(stockItem(5, 2))
	svc := newTestService(t, store, Options{})

	sale, err := svc.Create(context.Background(), cashier, CreateSaleInput{
		Items:         []SaleLineInput{{ID: 5, Qty: 1, Price: dec("10.500")}},
		Total:         dec("10.5000"),
		PaymentMethod: "cash",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !sale.Total.Equal(decimal.RequireFromString("10.50")) {
		t.Fatalf("unexpected total %s", sale.Total)
	}
}

func TestCreateItemNotFound(t *testing.T) {
	store := newMemStore(stockItem(5, 10))
	svc := newTestService(t, store, Options{})

	_, err := svc.Create(context.Background(), cashier, CreateSaleInput{
		Items:         []SaleLineInput{{ID: 9999, Qty: 1}},
		Total:         dec("10"),
		PaymentMethod: "cash",
	})
	typed := requireCode(t, err, pkgerrors.CodeNotFound)
	details := typed.Details().(map[string]any)
	if details["item_id"] != int64(9999) {
		t.Fatalf("expected item_id 9999, got %+v", details)
	}
	if store.quantity(5) != 10 || store.saleCount() != 0 {
		t.Fatal("expected no side effects")
	}
}

func TestCreateMultiItemPartialFailureRollsBack(t *testing.T) {
	store := newMemStore(stockItem(5, 10), stockItem(6, 1))
	svc := newTestService(t, store, Options{})

	_, err := svc.Create(context.Background(), cashier, CreateSaleInput{
		Items:         []SaleLineInput{{ID: 5, Qty: 4}, {ID: 6, Qty: 2}},
		Total:         dec("60"),
		PaymentMethod: "card",
		PaymentBank:   strPtr("bog"),
	})
	requireCode(t, err, pkgerrors.CodeInsufficientStock)
	if got := store.quantity(5); got != 10 {
		t.Fatalf("expected item 5 restored to 10, got %d", got)
	}
	if got := store.quantity(6); got != 1 {
		t.Fatalf("expected item 6 unchanged at 1, got %d", got)
	}
	if store.saleCount() != 0 {
		t.Fatal("expected no sale row")
	}
}

func TestCreateFailureIsRepeatable(t *testing.T) {
	store := newMemStore(stockItem(5, 10), stockItem(6, 1))
	svc := newTestService(t, store, Options{})
	input := CreateSaleInput{
		Items:         []SaleLineInput{{ID: 5, Qty: 1}, {ID: 6, Qty: 5}},
		Total:         dec("60"),
		PaymentMethod: "cash",
	}

	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), cashier, input)
		requireCode(t, err, pkgerrors.CodeInsufficientStock)
		if store.quantity(5) != 10 || store.quantity(6) != 1 || store.saleCount() != 0 {
			t.Fatalf("attempt %d left side effects", i)
		}
	}
}

func TestCreateLedgerFailureRollsBack(t *testing.T) {
	store := newMemStore(stockItem(5, 10))
	store.insertErr = errors.New("connection reset")
	svc := newTestService(t, store, Options{})

	_, err := svc.Create(context.Background(), cashier, CreateSaleInput{
		Items:         []SaleLineInput{{ID: 5, Qty: 2}},
		Total:         dec("20"),
		PaymentMethod: "cash",
	})
	typed := requireCode(t, err, pkgerrors.CodeInternal)
	if !pkgerrors.MetadataFor(typed.Code()).Retryable {
		t.Fatal("expected persistence failure to be retryable")
	}
	if got := store.quantity(5); got != 10 {
		t.Fatalf("expected quantity restored, got %d", got)
	}
}

func TestCreateValidation(t *testing.T) {
	cases := map[string]CreateSaleInput{
		"no items":        {Total: dec("1"), PaymentMethod: "cash"},
		"zero qty":        {Items: []SaleLineInput{{ID: 5, Qty: 0}}, Total: dec("1"), PaymentMethod: "cash"},
		"negative qty":    {Items: []SaleLineInput{{ID: 5, Qty: -1}}, Total: dec("1"), PaymentMethod: "cash"},
		"zero id":         {Items: []SaleLineInput{{ID: 0, Qty: 1}}, Total: dec("1"), PaymentMethod: "cash"},
		"missing total":   {Items: []SaleLineInput{{ID: 5, Qty: 1}}, PaymentMethod: "cash"},
		"negative total":  {Items: []SaleLineInput{{ID: 5, Qty: 1}}, Total: dec("-1"), PaymentMethod: "cash"},
		"missing method":  {Items: []SaleLineInput{{ID: 5, Qty: 1}}, Total: dec("1")},
		"unknown method":  {Items: []SaleLineInput{{ID: 5, Qty: 1}}, Total: dec("1"), PaymentMethod: "crypto"},
		"negative price":  {Items: []SaleLineInput{{ID: 5, Qty: 1, Price: dec("-2")}}, Total: dec("1"), PaymentMethod: "cash"},
		"later line zero": {Items: []SaleLineInput{{ID: 5, Qty: 1}, {ID: 5, Qty: 0}}, Total: dec("1"), PaymentMethod: "cash"},
		"sub-cent total":  {Items: []SaleLineInput{{ID: 5, Qty: 1}}, Total: dec("30.005"), PaymentMethod: "cash"},
		"sub-cent price":  {Items: []SaleLineInput{{ID: 5, Qty: 1, Price: dec("9.999")}}, Total: dec("10"), PaymentMethod: "cash"},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			store := newMemStore(stockItem(5, 10))
			svc := newTestService(t, store, Options{})

			_, err := svc.Create(context.Background(), cashier, input)
			requireCode(t, err, pkgerrors.CodeValidation)
			if store.quantity(5) != 10 || store.saleCount() != 0 {
				t.Fatal("expected no side effects")
			}
		})
	}
}

func TestCreateRequiresActor(t *testing.T) {
	store := newMemStore(stockItem(5, 10))
	svc := newTestService(t, store, Options{})

	_, err := svc.Create(context.Background(), Actor{}, CreateSaleInput{
		Items:         []SaleLineInput{{ID: 5, Qty: 1}},
		Total:         dec("10"),
		PaymentMethod: "cash",
	})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestCreateBankNormalization(t *testing.T) {
	cases := []struct {
		name       string
		method     string
		bank       *string
		wantMethod enums.PaymentMethod
		wantBank   *string
	}{
		{name: "card uppercases bank", method: "card", bank: strPtr(" bog "), wantMethod: enums.PaymentMethodCard, wantBank: strPtr("BOG")},
		{name: "cash drops bank", method: "cash", bank: strPtr("bog"), wantMethod: enums.PaymentMethodCash},
		{name: "card without bank", method: "card", wantMethod: enums.PaymentMethodCard},
		{name: "blank bank", method: "card", bank: strPtr("  "), wantMethod: enums.PaymentMethodCard},
		{name: "legacy bank method", method: "TBC", wantMethod: enums.PaymentMethodCard, wantBank: strPtr("TBC")},
		{name: "legacy method wins", method: "bog", bank: strPtr("tbc"), wantMethod: enums.PaymentMethodCard, wantBank: strPtr("BOG")},
		{name: "method case", method: " CASH ", wantMethod: enums.PaymentMethodCash},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore(stockItem(5, 10))
			svc := newTestService(t, store, Options{})

			sale, err := svc.Create(context.Background(), cashier, CreateSaleInput{
				Items:         []SaleLineInput{{ID: 5, Qty: 1}},
				Total:         dec("10"),
				PaymentMethod: tc.method,
				PaymentBank:   tc.bank,
			})
			if err != nil {
				t.Fatalf("create sale: %v", err)
			}
			if sale.PaymentMethod != tc.wantMethod {
				t.Fatalf("expected method %s, got %s", tc.wantMethod, sale.PaymentMethod)
			}
			switch {
			case tc.wantBank == nil && sale.PaymentBank != nil:
				t.Fatalf("expected nil bank, got %q", *sale.PaymentBank)
			case tc.wantBank != nil && (sale.PaymentBank == nil || *sale.PaymentBank != *tc.wantBank):
				t.Fatalf("expected bank %q, got %v", *tc.wantBank, sale.PaymentBank)
			}
		})
	}
}

func TestCreateSnapshotIntegrity(t *testing.T) {
	store := newMemStore(models.Item{ID: 5, Name: "Linen Shirt", Price: decimal.NewFromInt(45), Quantity: 10})
	svc := newTestService(t, store, Options{})

	sale, err := svc.Create(context.Background(), cashier, CreateSaleInput{
		Items: []SaleLineInput{
			{ID: 5, Qty: 1, Price: dec("40"), Name: strPtr("Shirt (promo)")},
			{ID: 5, Qty: 2},
		},
		Total:         dec("130"),
		PaymentMethod: "cash",
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	store.setItem(models.Item{ID: 5, Name: "Renamed", Price: decimal.NewFromInt(99), Quantity: 7})

	loaded, err := svc.Get(context.Background(), sale.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	first, second := loaded.Items[0], loaded.Items[1]
	if first.Name != "Shirt (promo)" || !first.Price.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected supplied snapshot to win, got %+v", first)
	}
	if second.Name != "Linen Shirt" || !second.Price.Equal(decimal.NewFromInt(45)) || second.Qty != 2 {
		t.Fatalf("expected values captured at sale time, got %+v", second)
	}
}

func TestCreateSkipsLookupWhenSnapshotSupplied(t *testing.T) {
	store := newMemStore(stockItem(5, 10))
	svc := newTestService(t, store, Options{})

	_, err := svc.Create(context.Background(), cashier, CreateSaleInput{
		Items:         []SaleLineInput{{ID: 5, Qty: 1, Price: dec("10"), Name: strPtr("Item")}},
		Total:         dec("10"),
		PaymentMethod: "cash",
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if store.lookups != 0 {
		t.Fatalf("expected no lookups, got %d", store.lookups)
	}
}

func TestCreateVerifyTotals(t *testing.T) {
	store := newMemStore(stockItem(5, 10))
	svc := newTestService(t, store, Options{VerifyTotals: true})

	_, err := svc.Create(context.Background(), cashier, CreateSaleInput{
		Items:         []SaleLineInput{{ID: 5, Qty: 2}},
		Total:         dec("5"),
		PaymentMethod: "cash",
	})
	requireCode(t, err, pkgerrors.CodeValidation)
	if store.quantity(5) != 10 {
		t.Fatal("expected rollback on total mismatch")
	}

	if _, err := svc.Create(context.Background(), cashier, CreateSaleInput{
		Items:         []SaleLineInput{{ID: 5, Qty: 2}},
		Total:         dec("20.00"),
		PaymentMethod: "cash",
	}); err != nil {
		t.Fatalf("expected matching total to pass, got %v", err)
	}
}

func TestCreateTrustsTotalByDefault(t *testing.T) {
	store := newMemStore(stockItem(5, 10))
	svc := newTestService(t, store, Options{})

	sale, err := svc.Create(context.Background(), cashier, CreateSaleInput{
		Items:         []SaleLineInput{{ID: 5, Qty: 2}},
		Total:         dec("5"),
		PaymentMethod: "cash",
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if !sale.Total.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected caller total kept, got %s", sale.Total)
	}
}

func TestCreateEmitsEventInTransaction(t *testing.T) {
	store := newMemStore(stockItem(5, 10))
	emitter := &recordingEmitter{}
	loc := int64(3)
	svc, err := NewService(store, store, store, store, emitter, nil, nil, Options{EmitEvents: true})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	sale, err := svc.Create(context.Background(), cashier, CreateSaleInput{
		Items:         []SaleLineInput{{ID: 5, Qty: 1}},
		Total:         dec("10"),
		PaymentMethod: "cash",
		LocationID:    &loc,
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected one event, got %d", len(emitter.events))
	}
	event := emitter.events[0]
	if event.EventType != enums.EventSaleCreated || event.AggregateID != sale.ID {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Actor == nil || event.Actor.UserID != cashier.ID || event.Actor.LocationID == nil || *event.Actor.LocationID != loc {
		t.Fatalf("unexpected actor %+v", event.Actor)
	}

	emitter.err = errors.New("outbox down")
	_, err = svc.Create(context.Background(), cashier, CreateSaleInput{
		Items:         []SaleLineInput{{ID: 5, Qty: 1}},
		Total:         dec("10"),
		PaymentMethod: "cash",
	})
	requireCode(t, err, pkgerrors.CodeInternal)
	if store.quantity(5) != 9 || store.saleCount() != 1 {
		t.Fatal("expected failed emit to roll back the sale")
	}
}

func TestCreateNoOversellUnderConcurrency(t *testing.T) {
	const stock = 10
	const buyers = 50
	store := newMemStore(stockItem(5, stock))
	svc := newTestService(t, store, Options{})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	start := make(chan struct{})
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Create(context.Background(), cashier, CreateSaleInput{
				Items:         []SaleLineInput{{ID: 5, Qty: 1}},
				Total:         dec("10"),
				PaymentMethod: "cash",
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if succeeded != stock {
		t.Fatalf("expected %d successful sales, got %d", stock, succeeded)
	}
	if got := store.quantity(5); got != 0 {
		t.Fatalf("expected quantity 0, got %d", got)
	}
	if store.saleCount() != stock {
		t.Fatalf("expected %d sale rows, got %d", stock, store.saleCount())
	}
}

func TestCreateRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := newMemStore(stockItem(5, 1))
	svc, err := NewService(store, store, store, store, nil, metrics.NewSaleMetrics(reg), nil, Options{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	input := CreateSaleInput{Items: []SaleLineInput{{ID: 5, Qty: 1}}, Total: dec("10"), PaymentMethod: "cash"}
	if _, err := svc.Create(context.Background(), cashier, input); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	_, _ = svc.Create(context.Background(), cashier, input)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	values := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			key := family.GetName()
			for _, label := range metric.GetLabel() {
				key += ":" + label.GetValue()
			}
			if counter := metric.GetCounter(); counter != nil {
				values[key] = counter.GetValue()
			}
		}
	}
	if values["pos_sale_attempts_total"] != 2 || values["pos_sale_success_total"] != 1 {
		t.Fatalf("unexpected counters %+v", values)
	}
	if values["pos_sale_failures_total:insufficient_stock"] != 1 {
		t.Fatalf("expected insufficient stock failure, got %+v", values)
	}
}

func TestListPaginates(t *testing.T) {
	store := newMemStore(stockItem(5, 10))
	svc := newTestService(t, store, Options{})
	for i := 0; i < 3; i++ {
		if _, err := svc.Create(context.Background(), cashier, CreateSaleInput{
			Items: []SaleLineInput{{ID: 5, Qty: 1}}, Total: dec("10"), PaymentMethod: "cash",
		}); err != nil {
			t.Fatalf("create sale: %v", err)
		}
	}

	page, err := svc.List(context.Background(), ListSalesInput{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Sales) != 2 || page.NextCursor == "" {
		t.Fatalf("expected 2 sales and a cursor, got %d / %q", len(page.Sales), page.NextCursor)
	}
	cursor, err := pagination.ParseCursor(page.NextCursor)
	if err != nil || cursor.ID != page.Sales[1].ID {
		t.Fatalf("unexpected cursor %+v (%v)", cursor, err)
	}
}

func TestListRejectsBadInput(t *testing.T) {
	svc := newTestService(t, newMemStore(), Options{})

	_, err := svc.List(context.Background(), ListSalesInput{Cursor: "not-base64!"})
	requireCode(t, err, pkgerrors.CodeValidation)

	from := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)
	_, err = svc.List(context.Background(), ListSalesInput{From: &from, To: &to})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestGetMissingSale(t *testing.T) {
	svc := newTestService(t, newMemStore(), Options{})
	_, err := svc.Get(context.Background(), 77)
	requireCode(t, err, pkgerrors.CodeNotFound)
}
