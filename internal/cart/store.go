package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dorceinnovative/dorce.ai-sub002/internal/catalog"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/config"
	"github.com/dorceinnovative/dorce.ai-sub002/pkg/db/models"
	pkgerrors "github.com/dorceinnovative/dorce.ai-sub002/pkg/errors"
	pkgredis "github.com/dorceinnovative/dorce.ai-sub002/pkg/redis"
)

type cartCache interface {
	UpdateWithCAS(ctx context.Context, key string, ttl time.Duration, fn func(current string) (string, error)) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	CartKey(userID string) string
}

type catalogReader interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	AvailableQty(ctx context.Context, productID, variantID uuid.UUID) (int, error)
}

// AddItemInput adds quantity units of a product (and optional variant) to
// the cart.
type AddItemInput struct {
	ProductID uuid.UUID
	VariantID uuid.UUID
	Quantity  int
}

// View is a cart plus its derived money quote.
type View struct {
	Cart  Cart  `json:"cart"`
	Quote Quote `json:"quote"`
}

// Store exposes the cart operations backed by redis.
type Store interface {
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*View, error)
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*View, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*View, error)
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type store struct {
	cache   cartCache
	catalog catalogReader
	cfg     config.CheckoutConfig
}

// NewStore builds a redis-backed cart store.
func NewStore(cache cartCache, catalog catalogReader, cfg config.CheckoutConfig) (Store, error) {
	if cache == nil {
		return nil, fmt.Errorf("cart cache required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	return &store{cache: cache, catalog: catalog, cfg: cfg}, nil
}

// AddItem merges into an existing line for the same product/variant pair,
// otherwise appends a new line. The price snapshot refreshes from the live
// catalog either way.
func (s *store) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	product, err := s.catalog.FindProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("product %s is not available", product.ID))
	}
	price, err := catalog.LivePrice(product, input.VariantID)
	if err != nil {
		return nil, err
	}

	final, err := s.mutate(ctx, userID, func(c *Cart) error {
		nextQty := input.Quantity
		if line := c.findLine(input.ProductID, input.VariantID); line != nil {
			nextQty += line.Quantity
		}
		if err := s.checkStock(ctx, input.ProductID, input.VariantID, nextQty); err != nil {
			return err
		}

		if line := c.findLine(input.ProductID, input.VariantID); line != nil {
			line.Quantity = nextQty
			line.UnitPriceCents = price
			line.Name = product.Name
			return nil
		}
		c.Items = append(c.Items, CartItem{
			ID:             uuid.New(),
			ProductID:      input.ProductID,
			VariantID:      input.VariantID,
			VendorID:       product.StoreID,
			Name:           product.Name,
			UnitPriceCents: price,
			Quantity:       input.Quantity,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(final), nil
}

// UpdateItem sets a line's quantity. Zero or negative removes the line.
func (s *store) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*View, error) {
	final, err := s.mutate(ctx, userID, func(c *Cart) error {
		item := c.findItem(itemID)
		if item == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		if quantity <= 0 {
			c.removeItem(itemID)
			return nil
		}
		if quantity > item.Quantity {
			if err := s.checkStock(ctx, item.ProductID, item.VariantID, quantity); err != nil {
				return err
			}
		}
		item.Quantity = quantity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(final), nil
}

// RemoveItem drops a line from the cart.
func (s *store) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*View, error) {
	final, err := s.mutate(ctx, userID, func(c *Cart) error {
		if !c.removeItem(itemID) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(final), nil
}

// Get returns the cart with derived totals. An absent or expired cart reads
// as empty.
func (s *store) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	raw, err := s.cache.Get(ctx, s.cache.CartKey(userID.String()))
	if err != nil {
		if errors.Is(err, pkgredis.ErrNotFound) {
			return s.view(&Cart{UserID: userID, Items: []CartItem{}}), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	cart, err := decodeCart(raw, userID)
	if err != nil {
		return nil, err
	}
	return s.view(cart), nil
}

// Clear deletes the cart document.
func (s *store) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.cache.Del(ctx, s.cache.CartKey(userID.String())); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// mutate runs fn over the current cart document inside the CAS loop and
// refreshes the TTL. The returned cart is the committed state.
func (s *store) mutate(ctx context.Context, userID uuid.UUID, fn func(*Cart) error) (*Cart, error) {
	var final *Cart
	key := s.cache.CartKey(userID.String())
	err := s.cache.UpdateWithCAS(ctx, key, s.cfg.CartTTL, func(current string) (string, error) {
		cart, err := decodeCart(current, userID)
		if err != nil {
			return "", err
		}
		if err := fn(cart); err != nil {
			return "", err
		}
		cart.UpdatedAt = time.Now().UTC()
		encoded, err := json.Marshal(cart)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
		}
		final = cart
		return string(encoded), nil
	})
	if err != nil {
		if errors.Is(err, pkgredis.ErrCASConflict) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart was modified concurrently")
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart")
	}
	return final, nil
}

func (s *store) checkStock(ctx context.Context, productID, variantID uuid.UUID, qty int) error {
	available, err := s.catalog.AvailableQty(ctx, productID, variantID)
	if err != nil {
		return err
	}
	if qty > available {
		return pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("insufficient stock: requested %d, available %d", qty, available))
	}
	return nil
}

func (s *store) view(c *Cart) *View {
	if c.Items == nil {
		c.Items = []CartItem{}
	}
	return &View{Cart: *c, Quote: BuildQuote(c.Items, s.cfg)}
}

func decodeCart(raw string, userID uuid.UUID) (*Cart, error) {
	if raw == "" {
		return &Cart{UserID: userID, Items: []CartItem{}}, nil
	}
	var cart Cart
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode cart")
	}
	cart.UserID = userID
	return &cart, nil
}
