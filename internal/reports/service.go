package reports

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoppos/pos-backend/pkg/db/models"
	pkgerrors "github.com/shoppos/pos-backend/pkg/errors"
	"github.com/shoppos/pos-backend/pkg/logger"
	"github.com/shoppos/pos-backend/pkg/redis"
)

const (
	dashboardTopProducts = 5
	lowStockRows         = 10
	defaultTopProducts   = 10
	maxTopProducts       = 100
)

type reportRepository interface {
	SalesBetween(ctx context.Context, from, to time.Time) ([]models.Sale, error)
	ExportRows(ctx context.Context, from, to time.Time) ([]ExportRow, error)
	Items(ctx context.Context) ([]models.Item, error)
	Cashiers(ctx context.Context) ([]models.User, error)
}

// dashboardCache is the slice of the redis client the dashboard uses.
type dashboardCache interface {
	CacheKey(parts ...string) string
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Service produces the admin reports.
type Service interface {
	Dashboard(ctx context.Context) (*Dashboard, error)
	Sales(ctx context.Context, rng Range) (*SalesReport, error)
	TopProducts(ctx context.Context, limit int) ([]ProductSales, error)
	CashierPerformance(ctx context.Context, rng Range) ([]CashierPerformance, error)
	Export(ctx context.Context, rng Range) ([]ExportRow, error)
}

// Options tunes report generation.
type Options struct {
	LowStockThreshold int
	CacheTTL          time.Duration
	Now               func() time.Time
}

type service struct {
	repo  reportRepository
	cache dashboardCache
	logg  *logger.Logger
	opts  Options
}

// NewService constructs the reports service. cache may be nil, which disables dashboard
// caching.
func NewService(repo reportRepository, cache dashboardCache, logg *logger.Logger, opts Options) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("report repository required")
	}
	if opts.LowStockThreshold <= 0 {
		opts.LowStockThreshold = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &service{repo: repo, cache: cache, logg: logg, opts: opts}, nil
}

func (s *service) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := s.opts.Now().UTC()
	dayStart := startOfDay(now)
	cacheKey := ""
	if s.cache != nil && s.opts.CacheTTL > 0 {
		cacheKey = s.cache.CacheKey("dashboard", dayStart.Format("2006-01-02"))
		var cached Dashboard
		err := s.cache.GetJSON(ctx, cacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.warn(ctx, "dashboard cache read failed", err)
		}
	}

	weekStart := startOfWeek(now)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	windowStart := weekStart
	if monthStart.Before(windowStart) {
		windowStart = monthStart
	}

	sales, err := s.repo.SalesBetween(ctx, windowStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load dashboard sales")
	}
	items, err := s.repo.Items(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load inventory")
	}

	var today, month []models.Sale
	dash := &Dashboard{GeneratedAt: now}
	for _, sale := range sales {
		if !sale.CreatedAt.Before(dayStart) {
			today = append(today, sale)
		}
		if !sale.CreatedAt.Before(weekStart) {
			addToPeriod(&dash.Week, sale)
		}
		if !sale.CreatedAt.Before(monthStart) {
			addToPeriod(&dash.Month, sale)
			month = append(month, sale)
		}
	}
	for _, sale := range today {
		addToPeriod(&dash.Today, sale)
	}
	dash.PaymentMethods = paymentBreakdown(today)
	dash.TopProducts = topProducts(month, dashboardTopProducts)
	dash.Inventory = inventorySummary(items, s.opts.LowStockThreshold)

	if cacheKey != "" {
		if err := s.cache.SetJSON(ctx, cacheKey, dash, s.opts.CacheTTL); err != nil {
			s.warn(ctx, "dashboard cache write failed", err)
		}
	}
	return dash, nil
}

func (s *service) Sales(ctx context.Context, rng Range) (*SalesReport, error) {
	if err := validateRange(rng); err != nil {
		return nil, err
	}
	sales, err := s.repo.SalesBetween(ctx, rng.From, rng.To)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sales report")
	}

	report := &SalesReport{
		DailySales:       dailySales(sales),
		PaymentBreakdown: paymentBreakdown(sales),
	}
	total := decimal.Zero
	for _, sale := range sales {
		total = total.Add(sale.Total)
	}
	report.Summary = SalesSummary{
		TotalTransactions: int64(len(sales)),
		TotalRevenue:      total,
		AvgOrderValue:     average(total, int64(len(sales))),
	}
	return report, nil
}

// TopProducts ranks month-to-date products by units sold.
func (s *service) TopProducts(ctx context.Context, limit int) ([]ProductSales, error) {
	if limit <= 0 {
		limit = defaultTopProducts
	}
	if limit > maxTopProducts {
		limit = maxTopProducts
	}
	now := s.opts.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	sales, err := s.repo.SalesBetween(ctx, monthStart, startOfDay(now).AddDate(0, 0, 1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load top products")
	}
	return topProducts(sales, limit), nil
}

func (s *service) CashierPerformance(ctx context.Context, rng Range) ([]CashierPerformance, error) {
	if err := validateRange(rng); err != nil {
		return nil, err
	}
	cashiers, err := s.repo.Cashiers(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cashiers")
	}
	sales, err := s.repo.SalesBetween(ctx, rng.From, rng.To)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cashier sales")
	}

	byCashier := make(map[int64]*CashierPerformance, len(cashiers))
	out := make([]CashierPerformance, len(cashiers))
	for i, user := range cashiers {
		out[i] = CashierPerformance{
			ID:           user.ID,
			Email:        user.Email,
			Name:         user.Name,
			Surname:      user.Surname,
			Role:         user.Role.String(),
			TotalRevenue: decimal.Zero,
		}
		byCashier[user.ID] = &out[i]
	}
	for _, sale := range sales {
		row, ok := byCashier[sale.CashierID]
		if !ok {
			continue
		}
		row.TotalTransactions++
		row.TotalRevenue = row.TotalRevenue.Add(sale.Total)
		created := sale.CreatedAt
		if row.FirstSale == nil || created.Before(*row.FirstSale) {
			row.FirstSale = &created
		}
		if row.LastSale == nil || created.After(*row.LastSale) {
			row.LastSale = &created
		}
	}
	for i := range out {
		out[i].AvgTransactionValue = average(out[i].TotalRevenue, out[i].TotalTransactions)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].TotalRevenue.Cmp(out[j].TotalRevenue); c != 0 {
			return c > 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *service) Export(ctx context.Context, rng Range) ([]ExportRow, error) {
	if err := validateRange(rng); err != nil {
		return nil, err
	}
	rows, err := s.repo.ExportRows(ctx, rng.From, rng.To)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sales export")
	}
	return rows, nil
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}

func validateRange(rng Range) error {
	if rng.From.IsZero() || rng.To.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "from and to dates are required")
	}
	if !rng.To.After(rng.From) {
		return pkgerrors.New(pkgerrors.CodeValidation, "to must be after from")
	}
	return nil
}

func addToPeriod(p *PeriodSummary, sale models.Sale) {
	p.Transactions++
	p.Revenue = p.Revenue.Add(sale.Total)
}

func average(total decimal.Decimal, count int64) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(count)).Round(2)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// startOfWeek returns the Monday that begins t's week.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}

func dailySales(sales []models.Sale) []DailySales {
	index := map[string]int{}
	var out []DailySales
	for _, sale := range sales {
		day := sale.CreatedAt.UTC().Format("2006-01-02")
		i, ok := index[day]
		if !ok {
			i = len(out)
			index[day] = i
			out = append(out, DailySales{Date: day, Revenue: decimal.Zero})
		}
		out[i].TransactionCount++
		out[i].Revenue = out[i].Revenue.Add(sale.Total)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	if out == nil {
		out = []DailySales{}
	}
	return out
}

func paymentBreakdown(sales []models.Sale) []PaymentBreakdown {
	type key struct{ method, bank string }
	index := map[key]int{}
	out := []PaymentBreakdown{}
	for _, sale := range sales {
		k := key{method: sale.PaymentMethod.String()}
		if sale.PaymentBank != nil {
			k.bank = *sale.PaymentBank
		}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, PaymentBreakdown{PaymentMethod: k.method, PaymentBank: sale.PaymentBank, Total: decimal.Zero})
		}
		out[i].Count++
		out[i].Total = out[i].Total.Add(sale.Total)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaymentMethod != out[j].PaymentMethod {
			return out[i].PaymentMethod < out[j].PaymentMethod
		}
		return bankOf(out[i]) < bankOf(out[j])
	})
	return out
}

func bankOf(p PaymentBreakdown) string {
	if p.PaymentBank == nil {
		return ""
	}
	return *p.PaymentBank
}

func topProducts(sales []models.Sale, limit int) []ProductSales {
	type key struct {
		id   int64
		name string
	}
	index := map[key]int{}
	out := []ProductSales{}
	for _, sale := range sales {
		for _, line := range sale.Items {
			k := key{id: line.ID, name: line.Name}
			i, ok := index[k]
			if !ok {
				i = len(out)
				index[k] = i
				out = append(out, ProductSales{ProductID: line.ID, ProductName: line.Name, Revenue: decimal.Zero})
			}
			out[i].TotalSold += int64(line.Qty)
			out[i].Revenue = out[i].Revenue.Add(line.Subtotal())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalSold != out[j].TotalSold {
			return out[i].TotalSold > out[j].TotalSold
		}
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func inventorySummary(items []models.Item, threshold int) InventorySummary {
	summary := InventorySummary{TotalValue: decimal.Zero, LowStock: []StockRow{}, OutOfStock: []StockRow{}}
	for _, item := range items {
		summary.TotalValue = summary.TotalValue.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		row := StockRow{ID: item.ID, Name: item.Name, Quantity: item.Quantity, Price: item.Price}
		switch {
		case item.Quantity == 0:
			summary.OutOfStock = append(summary.OutOfStock, row)
		case item.Quantity < threshold:
			summary.LowStock = append(summary.LowStock, row)
		}
	}
	sort.SliceStable(summary.LowStock, func(i, j int) bool {
		return summary.LowStock[i].Quantity < summary.LowStock[j].Quantity
	})
	if len(summary.LowStock) > lowStockRows {
		summary.LowStock = summary.LowStock[:lowStockRows]
	}
	sort.SliceStable(summary.OutOfStock, func(i, j int) bool {
		return summary.OutOfStock[i].Name < summary.OutOfStock[j].Name
	})
	return summary
}
