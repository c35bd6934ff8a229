package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrConflict     = errors.New("cart was modified concurrently")
	ErrItemNotFound = errors.New("item not in cart")
)

type Repository interface {
	// Get returns the user's cart, or an empty cart with version 0 when the
	// user has none yet.
	Get(ctx context.Context, userID uuid.UUID) (*Cart, error)
	// Save writes c if the stored version still equals c.Version, then
	// increments c.Version. A stale version yields ErrConflict.
	Save(ctx context.Context, c *Cart) error
}
