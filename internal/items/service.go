package items

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/shoppos/pos-backend/pkg/db/models"
	pkgerrors "github.com/shoppos/pos-backend/pkg/errors"
)

// Service exposes inventory management operations.
type Service interface {
	List(ctx context.Context, input ListItemsInput) ([]ItemDTO, error)
	Get(ctx context.Context, id int64) (*ItemDTO, error)
	Create(ctx context.Context, input CreateItemInput) (*ItemDTO, error)
	Update(ctx context.Context, id int64, input UpdateItemInput) (*ItemDTO, error)
	Delete(ctx context.Context, id int64) (*ItemDTO, error)
}

type itemRepository interface {
	List(ctx context.Context, filter ListItemsInput) ([]models.Item, error)
	FindByID(ctx context.Context, id int64) (*models.Item, error)
	Create(ctx context.Context, item *models.Item) error
	Update(ctx context.Context, id int64, updates map[string]any) (*models.Item, error)
	Delete(ctx context.Context, id int64) (*models.Item, error)
}

type service struct {
	repo itemRepository
}

// NewService constructs an item service instance.
func NewService(repo itemRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("item repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, input ListItemsInput) ([]ItemDTO, error) {
	rows, err := s.repo.List(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list items")
	}
	out := make([]ItemDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toItemDTO(row))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id int64) (*ItemDTO, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapItemError(err, id, "load item")
	}
	dto := toItemDTO(*item)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, input CreateItemInput) (*ItemDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	item := &models.Item{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Price:       input.Price,
		Quantity:    input.Quantity,
		ImageURL:    input.ImageURL,
		LocationID:  input.LocationID,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create item")
	}
	dto := toItemDTO(*item)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id int64, input UpdateItemInput) (*ItemDTO, error) {
	if input.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
		}
		updates["price"] = *input.Price
	}
	if input.Quantity != nil {
		if *input.Quantity < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
		}
		updates["quantity"] = *input.Quantity
	}
	if input.ImageURL != nil {
		updates["image_url"] = *input.ImageURL
	}
	if input.LocationID.Valid {
		updates["location_id"] = input.LocationID.Value
	}

	item, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		return nil, mapItemError(err, id, "update item")
	}
	dto := toItemDTO(*item)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, id int64) (*ItemDTO, error) {
	item, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, mapItemError(err, id, "delete item")
	}
	dto := toItemDTO(*item)
	return &dto, nil
}

func mapItemError(err error, id int64, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found").WithDetails(map[string]any{"item_id": id})
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
}
