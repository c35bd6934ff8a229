package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/pkg/validate"
)

type Service struct {
	products ProductRepository
	services MedicalServiceRepository
}

func NewService(products ProductRepository, services MedicalServiceRepository) *Service {
	return &Service{products: products, services: services}
}

// -- Products --

func validateProduct(p *Product) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return validate.Field("name", validate.ErrRequired)
	}
	if p.Price < 0 {
		return validate.Fieldf("price", "must not be negative")
	}
	if p.Stock < 0 {
		return validate.Fieldf("stock", "must not be negative")
	}
	if p.SecurityDeposit < 0 {
		return validate.Fieldf("security_deposit", "must not be negative")
	}
	if p.RentPeriod == "" {
		p.RentPeriod = "month"
	}
	if !validRentPeriods[p.RentPeriod] {
		return validate.Fieldf("rent_period", "must be day, week or month")
	}
	if p.Rentable && p.RentPricePerPeriod <= 0 {
		return validate.Fieldf("rent_price_per_period", "is required for rentable products")
	}
	return nil
}

// canManage reports whether the caller may modify products of merchantID.
func canManage(ctx context.Context, merchantID string) bool {
	if auth.IsAdmin(ctx) {
		return true
	}
	own := auth.MerchantIDFromContext(ctx)
	return own != "" && own == merchantID
}

// CreateProduct adds a product for the calling merchant. Admins must name
// the merchant explicitly.
func (s *Service) CreateProduct(ctx context.Context, p *Product) error {
	if !auth.IsAdmin(ctx) {
		p.MerchantID = auth.MerchantIDFromContext(ctx)
	}
	if p.MerchantID == "" {
		return validate.Field("merchant_id", validate.ErrRequired)
	}
	if err := validateProduct(p); err != nil {
		return err
	}
	p.Active = true
	return s.products.Create(ctx, p)
}

func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	return s.products.GetByID(ctx, id)
}

// UpdateProduct replaces the editable fields of a product. The owning
// merchant cannot be changed.
func (s *Service) UpdateProduct(ctx context.Context, p *Product) error {
	existing, err := s.products.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if !canManage(ctx, existing.MerchantID) {
		return ErrForbidden
	}
	if err := validateProduct(p); err != nil {
		return err
	}
	p.MerchantID = existing.MerchantID
	p.CreatedAt = existing.CreatedAt
	return s.products.Update(ctx, p)
}

func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	existing, err := s.products.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !canManage(ctx, existing.MerchantID) {
		return ErrForbidden
	}
	return s.products.Delete(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, f ProductFilter, limit, offset int) ([]*Product, int, error) {
	return s.products.List(ctx, f, limit, offset)
}

// ReserveStock takes qty units out of stock.
func (s *Service) ReserveStock(ctx context.Context, id uuid.UUID, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	return s.products.AdjustStock(ctx, id, -qty)
}

// ReleaseStock puts qty units back, e.g. when an order is cancelled.
func (s *Service) ReleaseStock(ctx context.Context, id uuid.UUID, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	return s.products.AdjustStock(ctx, id, qty)
}

// -- Medical services --

func validateMedicalService(ms *MedicalService) error {
	ms.Name = strings.TrimSpace(ms.Name)
	if ms.Name == "" {
		return validate.Field("name", validate.ErrRequired)
	}
	if ms.Price < 0 {
		return validate.Fieldf("price", "must not be negative")
	}
	if ms.DurationMinutes == 0 {
		ms.DurationMinutes = 30
	}
	if ms.DurationMinutes < 0 {
		return validate.Fieldf("duration_minutes", "must be positive")
	}
	return nil
}

func (s *Service) CreateMedicalService(ctx context.Context, ms *MedicalService) error {
	if err := validateMedicalService(ms); err != nil {
		return err
	}
	ms.Active = true
	return s.services.Create(ctx, ms)
}

func (s *Service) GetMedicalService(ctx context.Context, id uuid.UUID) (*MedicalService, error) {
	return s.services.GetByID(ctx, id)
}

func (s *Service) UpdateMedicalService(ctx context.Context, ms *MedicalService) error {
	if err := validateMedicalService(ms); err != nil {
		return err
	}
	return s.services.Update(ctx, ms)
}

func (s *Service) ListMedicalServices(ctx context.Context, activeOnly bool, limit, offset int) ([]*MedicalService, int, error) {
	return s.services.List(ctx, activeOnly, limit, offset)
}
