package users

import (
	"time"

	"github.com/shoppos/pos-backend/pkg/db/models"
	"github.com/shoppos/pos-backend/pkg/enums"
)

// UserDTO is the transport shape that omits credentials.
type UserDTO struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Surname     string     `json:"surname"`
	Role        enums.Role `json:"role"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CreateUserInput holds the data required to create an account. Password is plaintext
// and hashed by the service.
type CreateUserInput struct {
	Email    string
	Password string
	Name     string
	Surname  string
	Role     string
}

// UpdateUserInput holds optional account changes.
type UpdateUserInput struct {
	Email    *string
	Name     *string
	Surname  *string
	Role     *string
	Password *string
}

// IsEmpty reports whether no field was supplied.
func (in UpdateUserInput) IsEmpty() bool {
	return in.Email == nil && in.Name == nil && in.Surname == nil && in.Role == nil && in.Password == nil
}

// FromModel maps a user row to its DTO.
func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Surname:     u.Surname,
		Role:        u.Role,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}
