package auth

import (
	"context"
	"fmt"

	"github.com/shoppos/pos-backend/internal/users"
	pkgerrors "github.com/shoppos/pos-backend/pkg/errors"
)

// RegisterRequest contains the payload for self-service account creation.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Role     string `json:"role" validate:"required,oneof=admin cashier"`
}

// RegisterService handles account creation outside the admin users API.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
}

type userCreator interface {
	Create(ctx context.Context, input users.CreateUserInput) (*users.UserDTO, error)
}

type registerService struct {
	users   userCreator
	enabled bool
}

// NewRegisterService builds a registration service. When enabled is false every call
// is refused, which is how production deployments run.
func NewRegisterService(creator userCreator, enabled bool) (RegisterService, error) {
	if creator == nil {
		return nil, fmt.Errorf("user service required")
	}
	return &registerService{users: creator, enabled: enabled}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	if !s.enabled {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "registration disabled")
	}
	return s.users.Create(ctx, users.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Surname:  req.Surname,
		Role:     req.Role,
	})
}
