package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shoppos/pos-backend/pkg/db/models"
	pkgerrors "github.com/shoppos/pos-backend/pkg/errors"
)

const (
	DefaultShopName      = "Clothing Shop"
	DefaultCurrency      = "GEL"
	DefaultReceiptHeader = "Thank you for shopping with us!"
	DefaultReceiptFooter = "Please come again"
)

// SettingsDTO is the API representation of the shop settings. ID is zero when no row
// has been saved yet.
type SettingsDTO struct {
	ID            int64           `json:"id,omitempty"`
	ShopName      string          `json:"shop_name"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	Currency      string          `json:"currency"`
	ReceiptHeader string          `json:"receipt_header"`
	ReceiptFooter string          `json:"receipt_footer"`
	UpdatedAt     *time.Time      `json:"updated_at,omitempty"`
}

// UpdateSettingsInput carries a partial settings update.
type UpdateSettingsInput struct {
	ShopName      *string
	TaxRate       *decimal.Decimal
	Currency      *string
	ReceiptHeader *string
	ReceiptFooter *string
}

// IsEmpty reports whether no field was supplied.
func (in UpdateSettingsInput) IsEmpty() bool {
	return in.ShopName == nil && in.TaxRate == nil && in.Currency == nil &&
		in.ReceiptHeader == nil && in.ReceiptFooter == nil
}

// Repository reads and writes the settings table.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a settings repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Latest returns the newest settings row or nil when none exist.
func (r *Repository) Latest(ctx context.Context) (*models.Settings, error) {
	var row models.Settings
	err := r.db.WithContext(ctx).Order("id DESC").Limit(1).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Save inserts or updates the row.
func (r *Repository) Save(ctx context.Context, row *models.Settings) error {
	return r.db.WithContext(ctx).Save(row).Error
}

type settingsRepository interface {
	Latest(ctx context.Context) (*models.Settings, error)
	Save(ctx context.Context, row *models.Settings) error
}

// Service exposes shop settings.
type Service interface {
	Get(ctx context.Context) (*SettingsDTO, error)
	Update(ctx context.Context, input UpdateSettingsInput) (*SettingsDTO, error)
}

type service struct {
	repo settingsRepository
}

// NewService constructs the settings service.
func NewService(repo settingsRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	return &service{repo: repo}, nil
}

// Get returns the newest settings, or the defaults when nothing has been saved.
func (s *service) Get(ctx context.Context) (*SettingsDTO, error) {
	row, err := s.repo.Latest(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load settings")
	}
	if row == nil {
		row = defaults()
	}
	return toDTO(row), nil
}

// Update writes the supplied fields. The first save fills unspecified fields with defaults.
func (s *service) Update(ctx context.Context, input UpdateSettingsInput) (*SettingsDTO, error) {
	row, err := s.repo.Latest(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load settings")
	}
	if row != nil && input.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	if input.TaxRate != nil && input.TaxRate.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax_rate must be non-negative")
	}
	if row == nil {
		row = defaults()
	}
	apply(row, input)
	if err := s.repo.Save(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save settings")
	}
	return toDTO(row), nil
}

func apply(row *models.Settings, in UpdateSettingsInput) {
	if in.ShopName != nil {
		row.ShopName = *in.ShopName
	}
	if in.TaxRate != nil {
		row.TaxRate = *in.TaxRate
	}
	if in.Currency != nil {
		row.Currency = *in.Currency
	}
	if in.ReceiptHeader != nil {
		row.ReceiptHeader = *in.ReceiptHeader
	}
	if in.ReceiptFooter != nil {
		row.ReceiptFooter = *in.ReceiptFooter
	}
}

func defaults() *models.Settings {
	return &models.Settings{
		ShopName:      DefaultShopName,
		TaxRate:       decimal.Zero,
		Currency:      DefaultCurrency,
		ReceiptHeader: DefaultReceiptHeader,
		ReceiptFooter: DefaultReceiptFooter,
	}
}

func toDTO(row *models.Settings) *SettingsDTO {
	dto := &SettingsDTO{
		ID:            row.ID,
		ShopName:      row.ShopName,
		TaxRate:       row.TaxRate,
		Currency:      row.Currency,
		ReceiptHeader: row.ReceiptHeader,
		ReceiptFooter: row.ReceiptFooter,
	}
	if !row.UpdatedAt.IsZero() {
		updated := row.UpdatedAt
		dto.UpdatedAt = &updated
	}
	return dto
}
