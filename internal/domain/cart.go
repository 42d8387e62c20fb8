package domain

import (
	"errors"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// Cart is the storage form of a user's cart. Items reference products by id only;
// TotalItems and TotalPrice are derived and must be recomputed after every mutation.
type Cart struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Items      []CartItem      `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Version    int64           `json:"version"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type CartItem struct {
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// NewCart returns an empty cart for the user.
func NewCart(userID string, now time.Time) *Cart {
	return &Cart{
		UserID:     userID,
		Items:      []CartItem{},
		TotalPrice: decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// AddItem merges quantity into the line for productID, appending a new line
// when the product is not in the cart yet.
func (c *Cart) AddItem(productID string, quantity int, now time.Time) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if i := c.indexOf(productID); i >= 0 {
		c.Items[i].Quantity += quantity
		return nil
	}
	c.Items = append(c.Items, CartItem{
		ProductID: productID,
		Quantity:  quantity,
		AddedAt:   now,
	})
	return nil
}

// UpdateItemQuantity replaces the quantity of an existing line. A quantity of
// zero or less removes the line.
func (c *Cart) UpdateItemQuantity(productID string, quantity int) error {
	if quantity <= 0 {
		c.RemoveItem(productID)
		return nil
	}
	i := c.indexOf(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	c.Items[i].Quantity = quantity
	return nil
}

// RemoveItem drops the line for productID. Missing lines are ignored.
func (c *Cart) RemoveItem(productID string) {
	c.Items = slices.DeleteFunc(c.Items, func(item CartItem) bool {
		return item.ProductID == productID
	})
	if c.Items == nil {
		c.Items = []CartItem{}
	}
}

func (c *Cart) Clear() {
	c.Items = []CartItem{}
	c.TotalItems = 0
	c.TotalPrice = decimal.Zero
}

// RecomputeTotals derives TotalItems and TotalPrice from the items using the
// prices in products. Unresolved products contribute nothing to the price.
func (c *Cart) RecomputeTotals(products ProductIndex) {
	items := 0
	price := decimal.Zero
	for _, item := range c.Items {
		items += item.Quantity
		price = price.Add(products.PriceOf(item.ProductID).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	c.TotalItems = items
	c.TotalPrice = price
}

// TotalsEqual reports whether both carts carry the same derived totals.
func (c *Cart) TotalsEqual(other *Cart) bool {
	return c.TotalItems == other.TotalItems && c.TotalPrice.Equal(other.TotalPrice)
}

func (c *Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

func (c *Cart) Clone() *Cart {
	clone := *c
	clone.Items = slices.Clone(c.Items)
	if clone.Items == nil {
		clone.Items = []CartItem{}
	}
	return &clone
}

func (c *Cart) indexOf(productID string) int {
	return slices.IndexFunc(c.Items, func(item CartItem) bool {
		return item.ProductID == productID
	})
}
