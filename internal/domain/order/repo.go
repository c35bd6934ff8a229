package order

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrConflict          = errors.New("order was modified concurrently")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("not allowed to change this order")
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// Update writes status and payment fields if the stored version equals
	// o.Version, then bumps it.
	Update(ctx context.Context, o *Order) error
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]*Order, int, error)
	ListByMerchant(ctx context.Context, merchantID string, limit, offset int) ([]*Order, int, error)
	List(ctx context.Context, status string, limit, offset int) ([]*Order, int, error)
	// AllForMerchant returns every order containing the merchant's items.
	AllForMerchant(ctx context.Context, merchantID string) ([]*Order, error)
}
