package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// SaleLine is one line of the item snapshot stored with a sale.
type SaleLine struct {
	ID    int64           `json:"id"`
	Qty   int             `json:"qty"`
	Price decimal.Decimal `json:"price"`
	Name  string          `json:"name"`
}

// Subtotal returns price times quantity.
func (l SaleLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Qty)))
}

// SaleLines is the JSON line snapshot persisted on a sale row.
type SaleLines []SaleLine

// Value marshals the lines into JSON.
func (s SaleLines) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	buf, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes the JSON snapshot.
func (s *SaleLines) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("sale lines: unsupported scan type %T", value)
	}

	var result SaleLines
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*s = result
	return nil
}

// Total sums every line subtotal.
func (s SaleLines) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Units sums quantities.
func (s SaleLines) Units() int {
	units := 0
	for _, line := range s {
		units += line.Qty
	}
	return units
}
