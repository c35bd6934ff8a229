package cart

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/domain/catalog"
	"github.com/healthhub/healthhub/pkg/validate"
)

// Catalog resolves item ids to their current name, price and category.
type Catalog interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
	GetMedicalService(ctx context.Context, id uuid.UUID) (*catalog.MedicalService, error)
}

type Service struct {
	repo    Repository
	catalog Catalog
	logger  zerolog.Logger
}

func NewService(repo Repository, cat Catalog, logger zerolog.Logger) *Service {
	return &Service{repo: repo, catalog: cat, logger: logger.With().Str("component", "cart").Logger()}
}

func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	return s.repo.Get(ctx, userID)
}

// mutate loads the cart, applies fn and saves it. When the caller passes
// the version it last saw, a mismatch is reported as ErrConflict. Without
// one, a concurrent write is retried once on fresh state before giving up.
func (s *Service) mutate(ctx context.Context, userID uuid.UUID, version *int, fn func(*Cart) error) (*Cart, error) {
	attempts := 2
	if version != nil {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		var c *Cart
		c, err = s.repo.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if version != nil && *version != c.Version {
			return nil, ErrConflict
		}
		if err = fn(c); err != nil {
			return nil, err
		}
		err = s.repo.Save(ctx, c)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		s.logger.Debug().Str("user_id", userID.String()).Msg("cart save conflict")
	}
	return nil, err
}

// resolve builds a cart item from the catalog so price and name are never
// taken from the client.
func (s *Service) resolve(ctx context.Context, itemType, itemID string) (Item, error) {
	if !validItemTypes[itemType] {
		return Item{}, validate.Fieldf("type", "must be product or service")
	}
	id, err := uuid.Parse(itemID)
	if err != nil {
		return Item{}, validate.Fieldf("item_id", "is not a valid id")
	}
	if itemType == ItemProduct {
		p, err := s.catalog.GetProduct(ctx, id)
		if err != nil {
			return Item{}, err
		}
		if !p.Active {
			return Item{}, catalog.ErrNotFound
		}
		return Item{ItemID: p.ID.String(), Name: p.Name, Price: p.Price, Type: ItemProduct, Category: p.Category}, nil
	}
	ms, err := s.catalog.GetMedicalService(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if !ms.Active {
		return Item{}, catalog.ErrNotFound
	}
	return Item{ItemID: ms.ID.String(), Name: ms.Name, Price: ms.Price, Type: ItemService, Category: ms.Category}, nil
}

// AddToCart adds qty of an item, merging with an existing line.
func (s *Service) AddToCart(ctx context.Context, userID uuid.UUID, itemType, itemID string, qty int, version *int) (*Cart, error) {
	if qty == 0 {
		qty = 1
	}
	if qty < 0 {
		return nil, validate.Fieldf("quantity", "must be positive")
	}
	item, err := s.resolve(ctx, strings.ToLower(itemType), itemID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, version, func(c *Cart) error {
		c.Add(item, qty)
		return nil
	})
}

func (s *Service) RemoveFromCart(ctx context.Context, userID uuid.UUID, itemID string, version *int) (*Cart, error) {
	return s.mutate(ctx, userID, version, func(c *Cart) error {
		if !c.Remove(itemID) {
			return ErrItemNotFound
		}
		return nil
	})
}

// UpdateQuantity sets the quantity of an item; zero or less removes it.
func (s *Service) UpdateQuantity(ctx context.Context, userID uuid.UUID, itemID string, qty int, version *int) (*Cart, error) {
	return s.mutate(ctx, userID, version, func(c *Cart) error {
		if !c.SetQuantity(itemID, qty) {
			return ErrItemNotFound
		}
		return nil
	})
}

func (s *Service) ClearCart(ctx context.Context, userID uuid.UUID, version *int) (*Cart, error) {
	return s.mutate(ctx, userID, version, func(c *Cart) error {
		c.Clear()
		return nil
	})
}

// Clear empties the cart regardless of version, e.g. after checkout.
func (s *Service) Clear(ctx context.Context, userID uuid.UUID) error {
	_, err := s.ClearCart(ctx, userID, nil)
	return err
}
