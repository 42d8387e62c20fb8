package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResolvedCartItem is the read form of a cart line. Product is nil when the
// referenced product no longer exists.
type ResolvedCartItem struct {
	ProductID string
	Product   *ProductSnapshot
	Quantity  int
	AddedAt   time.Time
}

// CartView is the externally visible cart: a point-in-time projection of the
// stored cart against the product snapshots it was computed with.
type CartView struct {
	ID         string
	UserID     string
	Items      []ResolvedCartItem
	TotalItems int
	TotalPrice decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// View projects the cart against products. Call it after RecomputeTotals with
// the same index so lines and totals agree.
func (c *Cart) View(products ProductIndex) *CartView {
	items := make([]ResolvedCartItem, 0, len(c.Items))
	for _, item := range c.Items {
		resolved := ResolvedCartItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		}
		if p, ok := products[item.ProductID]; ok {
			resolved.Product = &p
		}
		items = append(items, resolved)
	}
	return &CartView{
		ID:         c.ID,
		UserID:     c.UserID,
		Items:      items,
		TotalItems: c.TotalItems,
		TotalPrice: c.TotalPrice,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}
