package repository

import (
	"context"
	"sync"
	"time"

	"comanda/internal/domain"
)

type cartKey struct {
	tenantID string
	tableID  string
}

// MemoryCartRepository keeps carts in process memory. Used in development and tests.
type MemoryCartRepository struct {
	mu    sync.Mutex
	carts map[cartKey]*domain.Cart
}

func NewMemoryCartRepository() *MemoryCartRepository {
	return &MemoryCartRepository{carts: make(map[cartKey]*domain.Cart)}
}

func (r *MemoryCartRepository) Get(ctx context.Context, tenantID, tableID string) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.carts[cartKey{tenantID, tableID}]
	if !ok {
		return emptyCart(tenantID, tableID), nil
	}
	return copyCart(cart), nil
}

func (r *MemoryCartRepository) Update(ctx context.Context, tenantID, tableID string, fn func(*domain.Cart) error) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := cartKey{tenantID, tableID}
	cart := emptyCart(tenantID, tableID)
	if existing, ok := r.carts[key]; ok {
		cart = copyCart(existing)
	}

	if err := fn(cart); err != nil {
		return nil, err
	}
	cart.UpdatedAt = time.Now().UTC()
	r.carts[key] = cart
	return copyCart(cart), nil
}

func (r *MemoryCartRepository) Clear(ctx context.Context, tenantID, tableID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, cartKey{tenantID, tableID})
	return nil
}

func copyCart(c *domain.Cart) *domain.Cart {
	out := *c
	out.Items = make([]domain.CartItem, len(c.Items))
	for i, item := range c.Items {
		item.Modifiers = append([]domain.CartModifier(nil), item.Modifiers...)
		out.Items[i] = item
	}
	return &out
}
