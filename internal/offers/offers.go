package offers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/shoppos/pos-backend/pkg/db/models"
	"github.com/shoppos/pos-backend/pkg/enums"
	pkgerrors "github.com/shoppos/pos-backend/pkg/errors"
	"github.com/shoppos/pos-backend/pkg/types"
)

// OfferDTO is the API representation of a transfer offer.
type OfferDTO struct {
	ID                int64             `json:"id"`
	FromShop          string            `json:"from_shop"`
	Items             types.OfferItems  `json:"items"`
	RequestedDiscount *types.Discount   `json:"requested_discount,omitempty"`
	Status            enums.OfferStatus `json:"status"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// CreateOfferInput carries a new offer submitted by a shop.
type CreateOfferInput struct {
	FromShop          string
	Items             types.OfferItems
	RequestedDiscount *types.Discount
}

// Repository persists offers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds an offers repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts an offer.
func (r *Repository) Create(ctx context.Context, offer *models.Offer) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

// List returns offers newest first.
func (r *Repository) List(ctx context.Context) ([]models.Offer, error) {
	var rows []models.Offer
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&rows).Error
	return rows, err
}

// UpdateStatus sets the status and returns the updated row.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status enums.OfferStatus) (*models.Offer, error) {
	res := r.db.WithContext(ctx).Model(&models.Offer{}).Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	var offer models.Offer
	if err := r.db.WithContext(ctx).First(&offer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

type offerRepository interface {
	Create(ctx context.Context, offer *models.Offer) error
	List(ctx context.Context) ([]models.Offer, error)
	UpdateStatus(ctx context.Context, id int64, status enums.OfferStatus) (*models.Offer, error)
}

// Service manages transfer offers between shops.
type Service interface {
	Create(ctx context.Context, input CreateOfferInput) (*OfferDTO, error)
	List(ctx context.Context) ([]OfferDTO, error)
	UpdateStatus(ctx context.Context, id int64, status string) (*OfferDTO, error)
}

type service struct {
	repo offerRepository
}

// NewService constructs the offers service.
func NewService(repo offerRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("offer repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateOfferInput) (*OfferDTO, error) {
	fromShop := strings.TrimSpace(input.FromShop)
	if fromShop == "" || input.Items == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from_shop and items are required")
	}
	offer := &models.Offer{
		FromShop:          fromShop,
		Items:             input.Items,
		RequestedDiscount: input.RequestedDiscount,
		Status:            enums.OfferStatusPending,
	}
	if err := s.repo.Create(ctx, offer); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create offer")
	}
	dto := toDTO(*offer)
	return &dto, nil
}

func (s *service) List(ctx context.Context) ([]OfferDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list offers")
	}
	out := make([]OfferDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out, nil
}

// UpdateStatus records a reviewer decision. Moving an offer back to pending is refused.
func (s *service) UpdateStatus(ctx context.Context, id int64, raw string) (*OfferDTO, error) {
	status, err := enums.ParseOfferStatus(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil || !status.IsDecision() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be approved or rejected")
	}
	offer, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found").WithDetails(map[string]any{"offer_id": id})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update offer status")
	}
	dto := toDTO(*offer)
	return &dto, nil
}

func toDTO(o models.Offer) OfferDTO {
	return OfferDTO{
		ID:                o.ID,
		FromShop:          o.FromShop,
		Items:             o.Items,
		RequestedDiscount: o.RequestedDiscount,
		Status:            o.Status,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}
