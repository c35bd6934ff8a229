package rental

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("rental request not found")
	ErrConflict          = errors.New("rental request was modified concurrently")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("not allowed to change this rental request")
	ErrNotRentable       = errors.New("product is not available for rent")
	ErrChequeRequired    = errors.New("a cheque image is required before approval")
)

type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	// Update writes the mutable workflow fields if the stored version equals
	// r.Version, then bumps it.
	Update(ctx context.Context, r *Request) error
	ListByRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]*Request, int, error)
	ListByMerchant(ctx context.Context, merchantID, status string, limit, offset int) ([]*Request, int, error)
	List(ctx context.Context, status string, limit, offset int) ([]*Request, int, error)
}
