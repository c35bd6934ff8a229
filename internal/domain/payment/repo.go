package payment

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("payment order not found")

type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, gatewayOrderID string) (*Order, error)
	// MarkPaid records paymentID against a created order. It fails with
	// ErrNotFound when the order is unknown or already paid.
	MarkPaid(ctx context.Context, gatewayOrderID, paymentID string) error
}
