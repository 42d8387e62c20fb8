package product

import (
	"context"
	"sync"

	"github.com/fjod/shopcart/internal/domain"
)

// MemoryCatalog implements Catalog with in-memory storage
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[string]domain.ProductSnapshot
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		products: make(map[string]domain.ProductSnapshot),
	}
}

// SetProduct inserts or replaces a product, e.g. to reprice or restock it.
func (c *MemoryCatalog) SetProduct(p domain.ProductSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *MemoryCatalog) DeleteProduct(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, productID)
}

func (c *MemoryCatalog) Fetch(_ context.Context, productID string) (*domain.ProductSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, exists := c.products[productID]
	if !exists {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

func (c *MemoryCatalog) FetchMany(_ context.Context, productIDs []string) (domain.ProductIndex, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	index := make(domain.ProductIndex, len(productIDs))
	for _, id := range productIDs {
		if p, exists := c.products[id]; exists {
			index[id] = p
		}
	}
	return index, nil
}
