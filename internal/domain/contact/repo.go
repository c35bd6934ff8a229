package contact

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("contact message not found")

type Repository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	// List filters on handled when it is non-nil.
	List(ctx context.Context, handled *bool, limit, offset int) ([]*Message, int, error)
	// MarkHandled is a no-op for a message that is already handled.
	MarkHandled(ctx context.Context, id, by uuid.UUID) (*Message, error)
}
