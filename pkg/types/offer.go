package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// OfferItem describes one item a shop proposes to transfer.
type OfferItem struct {
	ID    int64           `json:"id" validate:"required,gt=0"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Qty   int             `json:"qty" validate:"required,gt=0"`
}

// OfferItems is persisted as a JSON array.
type OfferItems []OfferItem

// Value marshals the items into JSON.
func (o OfferItems) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	buf, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes the JSON array.
func (o *OfferItems) Scan(value interface{}) error {
	raw, err := scanJSONBytes(value, "offer items")
	if err != nil || raw == nil {
		*o = nil
		return err
	}
	var result OfferItems
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*o = result
	return nil
}

// Discount is the discount a shop requests on an offer.
type Discount struct {
	Type  string          `json:"type" validate:"required,oneof=percentage manual"`
	Amount decimal.Decimal `json:"value"`
}

// Value marshals the discount into JSON. A nil discount stores NULL.
func (d *Discount) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	buf, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes the JSON object.
func (d *Discount) Scan(value interface{}) error {
	raw, err := scanJSONBytes(value, "discount")
	if err != nil || raw == nil {
		return err
	}
	return json.Unmarshal(raw, d)
}

func scanJSONBytes(value interface{}, name string) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("%s: unsupported scan type %T", name, value)
	}
}
