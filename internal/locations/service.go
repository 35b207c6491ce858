package locations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/shoppos/pos-backend/pkg/db"
	"github.com/shoppos/pos-backend/pkg/db/models"
	pkgerrors "github.com/shoppos/pos-backend/pkg/errors"
)

// LocationDTO is the API representation of a location.
type LocationDTO struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Service manages shop locations.
type Service interface {
	List(ctx context.Context) ([]LocationDTO, error)
	Get(ctx context.Context, id int64) (*LocationDTO, error)
	Create(ctx context.Context, name string) (*LocationDTO, error)
	Rename(ctx context.Context, id int64, name string) (*LocationDTO, error)
	Delete(ctx context.Context, id int64) (*LocationDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	tx   txRunner
	repo *Repository
}

// NewService constructs the location service.
func NewService(tx txRunner, repo *Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("location repository required")
	}
	return &service{tx: tx, repo: repo}, nil
}

func (s *service) List(ctx context.Context) ([]LocationDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list locations")
	}
	out := make([]LocationDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id int64) (*LocationDTO, error) {
	loc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapError(err, id, "load location")
	}
	dto := toDTO(*loc)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, name string) (*LocationDTO, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location name is required")
	}
	taken, err := s.repo.NameTaken(ctx, name, 0)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check location name")
	}
	if taken {
		return nil, duplicateName()
	}

	loc := &models.Location{Name: name}
	if err := s.repo.Create(ctx, loc); err != nil {
		return nil, mapError(err, 0, "create location")
	}
	dto := toDTO(*loc)
	return &dto, nil
}

func (s *service) Rename(ctx context.Context, id int64, name string) (*LocationDTO, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location name is required")
	}
	taken, err := s.repo.NameTaken(ctx, name, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check location name")
	}
	if taken {
		return nil, duplicateName()
	}
	loc, err := s.repo.Rename(ctx, id, name)
	if err != nil {
		return nil, mapError(err, id, "update location")
	}
	dto := toDTO(*loc)
	return &dto, nil
}

// Delete refuses while sales or items still reference the location. The check and the
// delete share a transaction.
func (s *service) Delete(ctx context.Context, id int64) (*LocationDTO, error) {
	var deleted *models.Location
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		salesCount, itemsCount, err := repo.References(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count location references")
		}
		if salesCount > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "location is referenced in sales records").
				WithDetails(map[string]any{"sales_count": salesCount})
		}
		if itemsCount > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "location is assigned to items").
				WithDetails(map[string]any{"items_count": itemsCount})
		}
		loc, err := repo.Delete(ctx, id)
		if err != nil {
			return mapError(err, id, "delete location")
		}
		deleted = loc
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := toDTO(*deleted)
	return &dto, nil
}

func toDTO(loc models.Location) LocationDTO {
	return LocationDTO{ID: loc.ID, Name: loc.Name, CreatedAt: loc.CreatedAt}
}

func duplicateName() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "location with this name already exists")
}

func mapError(err error, id int64, action string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "location not found").WithDetails(map[string]any{"location_id": id})
	case db.IsUniqueViolation(err, ""):
		return duplicateName()
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
}
