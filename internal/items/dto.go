package items

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoppos/pos-backend/pkg/db/models"
	"github.com/shoppos/pos-backend/pkg/types"
)

// ItemDTO is the API representation of an item.
type ItemDTO struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	ImageURL    *string         `json:"image_url"`
	LocationID  *int64          `json:"location_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CreateItemInput holds the validated payload to create an item.
type CreateItemInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Quantity    int
	ImageURL    *string
	LocationID  *int64
}

// UpdateItemInput holds optional mutation values for an item.
type UpdateItemInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Quantity    *int
	ImageURL    *string
	LocationID  types.NullableInt64
}

// IsEmpty reports whether no field was supplied.
func (in UpdateItemInput) IsEmpty() bool {
	return in.Name == nil && in.Description == nil && in.Price == nil &&
		in.Quantity == nil && in.ImageURL == nil && !in.LocationID.Valid
}

// ListItemsInput filters the item list.
type ListItemsInput struct {
	LocationID *int64
	Query      string
}

func toItemDTO(item models.Item) ItemDTO {
	return ItemDTO{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Price:       item.Price,
		Quantity:    item.Quantity,
		ImageURL:    item.ImageURL,
		LocationID:  item.LocationID,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}
