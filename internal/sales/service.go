package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shoppos/pos-backend/pkg/db/models"
	"github.com/shoppos/pos-backend/pkg/enums"
	pkgerrors "github.com/shoppos/pos-backend/pkg/errors"
	"github.com/shoppos/pos-backend/pkg/logger"
	"github.com/shoppos/pos-backend/pkg/metrics"
	"github.com/shoppos/pos-backend/pkg/outbox"
	"github.com/shoppos/pos-backend/pkg/outbox/payloads"
	"github.com/shoppos/pos-backend/pkg/pagination"
	"github.com/shoppos/pos-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockStore interface {
	DecrementStock(ctx context.Context, tx *gorm.DB, itemID int64, qty int) (bool, error)
	LookupStock(ctx context.Context, tx *gorm.DB, itemID int64) (*models.Item, error)
}

type ledger interface {
	InsertSale(ctx context.Context, tx *gorm.DB, sale *models.Sale) error
}

type saleReader interface {
	List(ctx context.Context, filter ListSalesInput) ([]SaleRecord, error)
	FindByID(ctx context.Context, id int64) (*SaleRecord, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service records sales and reads the sales history.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateSaleInput) (*SaleDTO, error)
	List(ctx context.Context, input ListSalesInput) (*ListResult, error)
	Get(ctx context.Context, id int64) (*SaleDTO, error)
}

// Options toggles optional processor behavior.
type Options struct {
	// VerifyTotals rejects a sale whose total differs from the sum of line subtotals.
	VerifyTotals bool
	// EmitEvents writes a sale_created outbox row in the sale transaction.
	EmitEvents bool
	Now        func() time.Time
}

type service struct {
	tx      txRunner
	stock   stockStore
	ledger  ledger
	reader  saleReader
	outbox  outboxPublisher
	metrics *metrics.SaleMetrics
	logg    *logger.Logger
	opts    Options
}

// NewService builds the sale service.
func NewService(
	tx txRunner,
	stock stockStore,
	ledger ledger,
	reader saleReader,
	publisher outboxPublisher,
	saleMetrics *metrics.SaleMetrics,
	logg *logger.Logger,
	opts Options,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock store required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("sale ledger required")
	}
	if reader == nil {
		return nil, fmt.Errorf("sale reader required")
	}
	if opts.EmitEvents && publisher == nil {
		return nil, fmt.Errorf("outbox publisher required when sale events are enabled")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &service{
		tx:      tx,
		stock:   stock,
		ledger:  ledger,
		reader:  reader,
		outbox:  publisher,
		metrics: saleMetrics,
		logg:    logg,
		opts:    opts,
	}, nil
}

// saleDraft is a validated payload ready to run inside the transaction.
type saleDraft struct {
	lines  []SaleLineInput
	total  decimal.Decimal
	method enums.PaymentMethod
	bank   *string
}

func (s *service) Create(ctx context.Context, actor Actor, input CreateSaleInput) (*SaleDTO, error) {
	started := time.Now()
	s.metrics.IncAttempt()

	sale, err := s.create(ctx, actor, input)
	s.metrics.ObserveDuration(time.Since(started))
	if err != nil {
		s.metrics.IncFailure(failureReason(err))
		s.logFailure(ctx, err)
		return nil, err
	}
	s.metrics.IncSuccess()

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"sale_id":        sale.ID,
			"line_count":     len(sale.Items),
			"payment_method": sale.PaymentMethod.String(),
		})
		s.logg.Info(logCtx, "sale recorded")
	}

	dto := toSaleDTO(*sale)
	return &dto, nil
}

func (s *service) create(ctx context.Context, actor Actor, input CreateSaleInput) (*models.Sale, error) {
	if actor.ID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor required")
	}
	draft, err := validateSale(input)
	if err != nil {
		return nil, err
	}

	var sale *models.Sale
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		snapshot := make(types.SaleLines, 0, len(draft.lines))
		// units already taken by earlier lines of this cart, per item
		taken := make(map[int64]int, len(draft.lines))
		for _, line := range draft.lines {
			snap, err := s.decrementLine(ctx, tx, line, taken[line.ID])
			if err != nil {
				return err
			}
			taken[line.ID] += line.Qty
			snapshot = append(snapshot, snap)
		}

		if s.opts.VerifyTotals {
			if expected := snapshot.Total(); !expected.Equal(draft.total) {
				return pkgerrors.New(pkgerrors.CodeValidation, "total does not match line items").
					WithDetails(map[string]any{"expected": expected.StringFixed(2), "total": draft.total.StringFixed(2)})
			}
		}

		record := &models.Sale{
			CashierID:         actor.ID,
			Items:             snapshot,
			Total:             draft.total,
			PaymentMethod:     draft.method,
			PaymentBank:       draft.bank,
			LocationID:        input.LocationID,
			ServedByCashierID: input.ServedByCashierID,
			PartnerCashierID:  input.PartnerCashierID,
			CreatedAt:         s.opts.Now().UTC(),
		}
		if err := s.ledger.InsertSale(ctx, tx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert sale")
		}

		if s.opts.EmitEvents {
			if err := s.emitSaleCreated(ctx, tx, actor, record); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit sale event")
			}
		}

		sale = record
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create sale")
	}
	return sale, nil
}

// decrementLine applies the guarded decrement for one line and returns its snapshot.
// When the guard rejects the write, the item is read in the same transaction to tell
// a missing item from a short one.
// decrementLine takes line.Qty units of one item. earlier is what previous lines of this
// cart took from the same item; it is added back to the reported available quantity.
func (s *service) decrementLine(ctx context.Context, tx *gorm.DB, line SaleLineInput, earlier int) (types.SaleLine, error) {
	ok, err := s.stock.DecrementStock(ctx, tx, line.ID, line.Qty)
	if err != nil {
		return types.SaleLine{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement stock")
	}

	needsLookup := !ok || line.Price == nil || line.Name == nil
	var item *models.Item
	if needsLookup {
		item, err = s.stock.LookupStock(ctx, tx, line.ID)
		if err != nil {
			return types.SaleLine{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup stock")
		}
	}

	if !ok {
		if item == nil {
			return types.SaleLine{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("item %d not found", line.ID)).
				WithDetails(map[string]any{"item_id": line.ID})
		}
		return types.SaleLine{}, pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("insufficient stock for item %d", line.ID)).
			WithDetails(map[string]any{
				"item_id":   line.ID,
				"available": item.Quantity + earlier,
				"requested": line.Qty,
			})
	}

	snap := types.SaleLine{ID: line.ID, Qty: line.Qty}
	if line.Price != nil {
		snap.Price = *line.Price
	} else if item != nil {
		snap.Price = item.Price
	}
	if line.Name != nil {
		snap.Name = *line.Name
	} else if item != nil {
		snap.Name = item.Name
	}
	return snap, nil
}

func (s *service) emitSaleCreated(ctx context.Context, tx *gorm.DB, actor Actor, sale *models.Sale) error {
	event := payloads.SaleCreatedEvent{
		SaleID:            sale.ID,
		CashierID:         sale.CashierID,
		LocationID:        sale.LocationID,
		ServedByCashierID: sale.ServedByCashierID,
		PartnerCashierID:  sale.PartnerCashierID,
		Items:             sale.Items,
		Total:             sale.Total,
		PaymentMethod:     sale.PaymentMethod,
		PaymentBank:       sale.PaymentBank,
		CreatedAt:         sale.CreatedAt,
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSaleCreated,
		AggregateType: enums.AggregateSale,
		AggregateID:   sale.ID,
		Actor: &outbox.ActorRef{
			UserID:     actor.ID,
			LocationID: sale.LocationID,
			Role:       actor.Role.String(),
		},
		Data:       event,
		OccurredAt: sale.CreatedAt,
	})
}

func validateSale(input CreateSaleInput) (*saleDraft, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "items are required")
	}
	for i, line := range input.Items {
		if line.ID <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id must be a positive integer").
				WithDetails(map[string]any{"index": i})
		}
		if line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be a positive integer").
				WithDetails(map[string]any{"index": i, "item_id": line.ID})
		}
		if line.Price != nil && line.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item price must not be negative").
				WithDetails(map[string]any{"index": i, "item_id": line.ID})
		}
		if line.Price != nil && !fitsMoneyScale(*line.Price) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item price must have at most 2 decimal places").
				WithDetails(map[string]any{"index": i, "item_id": line.ID})
		}
	}
	if input.Total == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total is required")
	}
	if input.Total.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total must not be negative")
	}
	if !fitsMoneyScale(*input.Total) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total must have at most 2 decimal places")
	}
	if strings.TrimSpace(input.PaymentMethod) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}
	method, legacyBank, err := enums.NormalizePaymentMethod(input.PaymentMethod)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"payment_method": input.PaymentMethod})
	}

	return &saleDraft{
		lines:  input.Items,
		total:  *input.Total,
		method: method,
		bank:   normalizeBank(method, legacyBank, input.PaymentBank),
	}, nil
}

// normalizeBank returns the uppercased bank for card payments and nil otherwise.
func normalizeBank(method enums.PaymentMethod, legacyBank string, bank *string) *string {
	if !method.IsCardLike() {
		return nil
	}
	if legacyBank != "" {
		return &legacyBank
	}
	if bank == nil {
		return nil
	}
	normalized := strings.ToUpper(strings.TrimSpace(*bank))
	if normalized == "" {
		return nil
	}
	return &normalized
}

func (s *service) List(ctx context.Context, input ListSalesInput) (*ListResult, error) {
	if input.From != nil && input.To != nil && input.To.Before(*input.From) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "to must not be before from")
	}
	if _, err := pagination.ParseCursor(input.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(input.Limit)
	input.Limit = limit

	rows, err := s.reader.List(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list sales")
	}

	rows, next := pagination.Trim(rows, limit, func(r SaleRecord) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	result := &ListResult{Sales: make([]SaleDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		result.Sales = append(result.Sales, recordToDTO(row))
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, id int64) (*SaleDTO, error) {
	record, err := s.reader.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found").WithDetails(map[string]any{"sale_id": id})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sale")
	}
	dto := recordToDTO(*record)
	return &dto, nil
}

func failureReason(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return metrics.SaleFailureInternal
	}
	switch typed.Code() {
	case pkgerrors.CodeValidation, pkgerrors.CodeUnauthorized:
		return metrics.SaleFailureValidation
	case pkgerrors.CodeNotFound:
		return metrics.SaleFailureNotFound
	case pkgerrors.CodeInsufficientStock:
		return metrics.SaleFailureInsufficientStock
	default:
		return metrics.SaleFailureInternal
	}
}

func (s *service) logFailure(ctx context.Context, err error) {
	if s.logg == nil {
		return
	}
	reason := failureReason(err)
	logCtx := s.logg.WithField(ctx, "reason", reason)
	if reason == metrics.SaleFailureInternal {
		s.logg.Error(logCtx, "sale failed", err)
		return
	}
	s.logg.Warn(logCtx, "sale rejected: "+err.Error())
}

// moneyScale matches the NUMERIC(12,2) money columns.
const moneyScale = 2

// fitsMoneyScale reports whether d is stored without rounding.
func fitsMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(moneyScale))
}
