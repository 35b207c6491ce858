package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// Range is a half-open [From, To) reporting window.
type Range struct {
	From time.Time
	To   time.Time
}

type PeriodSummary struct {
	Transactions int64           `json:"transactions"`
	Revenue      decimal.Decimal `json:"revenue"`
}

type StockRow struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type InventorySummary struct {
	TotalValue decimal.Decimal `json:"total_value"`
	LowStock   []StockRow      `json:"low_stock"`
	OutOfStock []StockRow      `json:"out_of_stock"`
}

type PaymentBreakdown struct {
	PaymentMethod string          `json:"payment_method"`
	PaymentBank   *string         `json:"payment_bank"`
	Count         int64           `json:"count"`
	Total         decimal.Decimal `json:"total"`
}

type ProductSales struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	TotalSold   int64           `json:"total_sold"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// Dashboard is the admin landing page snapshot.
type Dashboard struct {
	Today          PeriodSummary      `json:"today"`
	Week           PeriodSummary      `json:"week"`
	Month          PeriodSummary      `json:"month"`
	Inventory      InventorySummary   `json:"inventory"`
	PaymentMethods []PaymentBreakdown `json:"payment_methods"`
	TopProducts    []ProductSales     `json:"top_products"`
	GeneratedAt    time.Time          `json:"generated_at"`
}

type SalesSummary struct {
	TotalTransactions int64           `json:"total_transactions"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	AvgOrderValue     decimal.Decimal `json:"avg_order_value"`
}

type DailySales struct {
	Date             string          `json:"date"`
	TransactionCount int64           `json:"transaction_count"`
	Revenue          decimal.Decimal `json:"revenue"`
}

// SalesReport summarizes sales over a window.
type SalesReport struct {
	Summary          SalesSummary       `json:"summary"`
	DailySales       []DailySales       `json:"daily_sales"`
	PaymentBreakdown []PaymentBreakdown `json:"payment_breakdown"`
}

// CashierPerformance is one cashier's totals over a window. Cashiers without sales are
// included with zero totals.
type CashierPerformance struct {
	ID                  int64           `json:"id"`
	Email               string          `json:"email"`
	Name                string          `json:"name"`
	Surname             string          `json:"surname"`
	Role                string          `json:"role"`
	TotalTransactions   int64           `json:"total_transactions"`
	TotalRevenue        decimal.Decimal `json:"total_revenue"`
	AvgTransactionValue decimal.Decimal `json:"avg_transaction_value"`
	FirstSale           *time.Time      `json:"first_sale"`
	LastSale            *time.Time      `json:"last_sale"`
}
