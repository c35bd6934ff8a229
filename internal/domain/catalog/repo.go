package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("not the owner of this product")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type ProductRepository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ProductFilter, limit, offset int) ([]*Product, int, error)
	// AdjustStock adds delta to the stock of a product. A negative delta
	// that would take stock below zero fails with ErrInsufficientStock.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) error
}

type MedicalServiceRepository interface {
	Create(ctx context.Context, s *MedicalService) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalService, error)
	Update(ctx context.Context, s *MedicalService) error
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*MedicalService, int, error)
}
