package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
	// ErrDoctorCodeTaken means another account already holds the doctor code.
	ErrDoctorCodeTaken = errors.New("doctor code already assigned")
	ErrConflict   = errors.New("user was modified concurrently")
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// Update writes u if the stored version equals u.Version and bumps
	// u.Version on success. A stale version yields ErrConflict.
	Update(ctx context.Context, u *User) error
	List(ctx context.Context, role string, limit, offset int) ([]*User, int, error)
	ListDoctors(ctx context.Context) ([]*Doctor, error)
}
