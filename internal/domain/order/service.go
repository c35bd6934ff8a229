package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/domain/catalog"
	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/db"
	"github.com/healthhub/healthhub/pkg/idgen"
	"github.com/healthhub/healthhub/pkg/money"
	"github.com/healthhub/healthhub/pkg/validate"
)

// TopProductsLimit is how many products analytics reports.
const TopProductsLimit = 5

// Catalog is the product side of the catalog service.
type Catalog interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
	ReserveStock(ctx context.Context, id uuid.UUID, qty int) error
	ReleaseStock(ctx context.Context, id uuid.UUID, qty int) error
	ListProducts(ctx context.Context, f catalog.ProductFilter, limit, offset int) ([]*catalog.Product, int, error)
}

// CartClearer empties the buyer's cart once an order is placed.
type CartClearer interface {
	Clear(ctx context.Context, userID uuid.UUID) error
}

type Service struct {
	repo    Repository
	tx      db.TxRunner
	catalog Catalog
	carts   CartClearer
	ids     *idgen.Generator
	logger  zerolog.Logger
}

// NewService wires the order service. carts may be nil.
func NewService(repo Repository, tx db.TxRunner, cat Catalog, carts CartClearer, ids *idgen.Generator, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		tx:      tx,
		catalog: cat,
		carts:   carts,
		ids:     ids,
		logger:  logger.With().Str("component", "order").Logger(),
	}
}

func validateAddress(a *Address) error {
	a.Name = strings.TrimSpace(a.Name)
	if err := validate.Field("shipping_address.name", validate.Name(a.Name)); err != nil {
		return err
	}
	phone, err := validate.NormalizePhone(a.Phone)
	if err != nil {
		return validate.Field("shipping_address.phone", err)
	}
	a.Phone = phone
	required := []struct {
		field string
		value *string
	}{
		{"shipping_address.line1", &a.Line1},
		{"shipping_address.city", &a.City},
		{"shipping_address.state", &a.State},
		{"shipping_address.pincode", &a.Pincode},
	}
	for _, r := range required {
		*r.value = strings.TrimSpace(*r.value)
		if err := validate.Field(r.field, validate.Required(*r.value)); err != nil {
			return err
		}
	}
	return nil
}

// mergeItems validates requested lines and folds repeated products into one.
func mergeItems(reqs []ItemRequest) ([]uuid.UUID, map[uuid.UUID]int, error) {
	if len(reqs) == 0 {
		return nil, nil, validate.Field("items", validate.ErrRequired)
	}
	var order []uuid.UUID
	qty := make(map[uuid.UUID]int)
	for i, r := range reqs {
		id, err := uuid.Parse(r.ProductID)
		if err != nil {
			return nil, nil, validate.Fieldf(fmt.Sprintf("items[%d].product_id", i), "is not a valid id")
		}
		if r.Quantity <= 0 {
			return nil, nil, validate.Fieldf(fmt.Sprintf("items[%d].quantity", i), "must be positive")
		}
		if _, seen := qty[id]; !seen {
			order = append(order, id)
		}
		qty[id] += r.Quantity
	}
	return order, qty, nil
}

// CreateOrder places an order for the caller. Prices, names and merchants
// are read from the catalog, stock is reserved, and the summary is computed
// once and stored.
func (s *Service) CreateOrder(ctx context.Context, req CreateRequest) (*Order, error) {
	buyerID, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return nil, ErrForbidden
	}
	ids, qty, err := mergeItems(req.Items)
	if err != nil {
		return nil, err
	}
	if err := validateAddress(&req.ShippingAddress); err != nil {
		return nil, err
	}
	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method == "" {
		method = "online"
	}
	if !paymentMethods[method] {
		return nil, validate.Fieldf("payment_method", "must be online or cod")
	}

	o := &Order{
		OrderNumber:     s.ids.Next(idgen.PrefixOrder),
		BuyerID:         buyerID,
		BuyerEmail:      auth.EmailFromContext(ctx),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   method,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		merchants := make(map[string]bool)
		for _, id := range ids {
			p, err := s.catalog.GetProduct(ctx, id)
			if err != nil {
				return err
			}
			if !p.Active {
				return catalog.ErrNotFound
			}
			if p.Stock < qty[id] {
				return fmt.Errorf("%w: %s", catalog.ErrInsufficientStock, p.Name)
			}
			if err := s.catalog.ReserveStock(ctx, id, qty[id]); err != nil {
				return err
			}
			o.Items = append(o.Items, LineItem{
				ProductID:  p.ID,
				Name:       p.Name,
				Price:      p.Price,
				Quantity:   qty[id],
				MerchantID: p.MerchantID,
			})
			if !merchants[p.MerchantID] {
				merchants[p.MerchantID] = true
				o.MerchantIDs = append(o.MerchantIDs, p.MerchantID)
			}
		}
		o.Summary = Summarize(o.Items)
		return s.repo.Create(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("order_number", o.OrderNumber).Float64("total", o.Total).Msg("order placed")

	if s.carts != nil {
		if err := s.carts.Clear(ctx, buyerID); err != nil {
			s.logger.Warn().Err(err).Str("buyer_id", buyerID.String()).Msg("clearing cart after order failed")
		}
	}
	return o, nil
}

func canView(ctx context.Context, o *Order) bool {
	if auth.IsAdmin(ctx) {
		return true
	}
	if o.BuyerID.String() == auth.UserIDFromContext(ctx) {
		return true
	}
	mid := auth.MerchantIDFromContext(ctx)
	return mid != "" && o.HasMerchant(mid)
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(ctx, o) {
		return nil, ErrNotFound
	}
	return o, nil
}

func (s *Service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]*Order, int, error) {
	return s.repo.ListByBuyer(ctx, buyerID, limit, offset)
}

// ListForMerchant returns orders containing at least one of the merchant's
// products.
func (s *Service) ListForMerchant(ctx context.Context, merchantID string, limit, offset int) ([]*Order, int, error) {
	if merchantID == "" {
		return nil, 0, validate.Field("merchant_id", validate.ErrRequired)
	}
	return s.repo.ListByMerchant(ctx, merchantID, limit, offset)
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]*Order, int, error) {
	if status != "" && !validStatuses[status] {
		return nil, 0, validate.Fieldf("status", "unknown status %q", status)
	}
	return s.repo.List(ctx, status, limit, offset)
}

// authorizeStatus: admins and merchants with items in the order drive
// fulfilment; the buyer may only cancel while the order is pending.
func authorizeStatus(ctx context.Context, o *Order, status string) error {
	if auth.IsAdmin(ctx) {
		return nil
	}
	if mid := auth.MerchantIDFromContext(ctx); mid != "" && o.HasMerchant(mid) {
		return nil
	}
	if o.BuyerID.String() == auth.UserIDFromContext(ctx) && status == StatusCancelled && o.Status == StatusPending {
		return nil
	}
	return ErrForbidden
}

// UpdateStatus moves an order through fulfilment. Cancelling returns the
// reserved stock.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Order, error) {
	if !validStatuses[status] {
		return nil, validate.Fieldf("status", "unknown status %q", status)
	}
	var out *Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !canView(ctx, o) {
			return ErrNotFound
		}
		if err := authorizeStatus(ctx, o, status); err != nil {
			return err
		}
		if !CanTransition(o.Status, status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, o.Status, status)
		}
		if status == StatusCancelled {
			for _, li := range o.Items {
				if err := s.catalog.ReleaseStock(ctx, li.ProductID, li.Quantity); err != nil && !errors.Is(err, catalog.ErrNotFound) {
					return err
				}
			}
		}
		o.Status = status
		if err := s.repo.Update(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("order_number", out.OrderNumber).Str("status", status).Msg("order status changed")
	return out, nil
}

// MarkPaid records a verified payment. Repeating the call with the same
// reference is a no-op.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID, paymentRef string) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if o.PaymentStatus == PaymentPaid {
			if o.PaymentRef == paymentRef {
				return nil
			}
			return fmt.Errorf("%w: order already paid", ErrInvalidTransition)
		}
		o.PaymentStatus = PaymentPaid
		o.PaymentRef = paymentRef
		return s.repo.Update(ctx, o)
	})
}

// AmountDue returns the order total for the buyer.
func (s *Service) AmountDue(ctx context.Context, id uuid.UUID) (float64, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return 0, err
	}
	if o.PaymentStatus == PaymentPaid || o.PaymentStatus == PaymentRefunded {
		return 0, fmt.Errorf("%w: order is already %s", ErrInvalidTransition, o.PaymentStatus)
	}
	if o.Status == StatusCancelled {
		return 0, fmt.Errorf("%w: order is cancelled", ErrInvalidTransition)
	}
	return o.Total, nil
}

// ComputeAnalytics reports revenue from the merchant's line items across
// non-cancelled orders, and the merchant's products with the most stock.
func (s *Service) ComputeAnalytics(ctx context.Context, merchantID string) (*Analytics, error) {
	if merchantID == "" {
		return nil, validate.Field("merchant_id", validate.ErrRequired)
	}
	orders, err := s.repo.AllForMerchant(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	a := &Analytics{MerchantID: merchantID, ByStatus: make(map[string]int), TopProducts: []TopProduct{}}
	for _, o := range orders {
		a.ByStatus[o.Status]++
		if o.Status == StatusCancelled {
			continue
		}
		a.OrderCount++
		for _, li := range o.Items {
			if li.MerchantID == merchantID {
				a.Revenue += li.Amount()
			}
		}
	}
	a.Revenue = money.Round2(a.Revenue)
	if a.OrderCount > 0 {
		a.AverageOrderValue = money.Round2(a.Revenue / float64(a.OrderCount))
	}

	products, _, err := s.catalog.ListProducts(ctx, catalog.ProductFilter{MerchantID: merchantID, OrderByStock: true}, TopProductsLimit, 0)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(products, func(i, j int) bool { return products[i].Stock > products[j].Stock })
	for _, p := range products {
		a.TopProducts = append(a.TopProducts, TopProduct{ProductID: p.ID, Name: p.Name, Stock: p.Stock, Price: p.Price})
	}
	return a, nil
}
