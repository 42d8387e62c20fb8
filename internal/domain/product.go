package domain

import "github.com/shopspring/decimal"

type ProductImage struct {
	URL       string `json:"url"`
	Alt       string `json:"alt"`
	IsPrimary bool   `json:"isPrimary"`
}

// ProductSnapshot is the current state of a catalog product as seen by the cart.
// The cart never owns it; it is re-read whenever totals are computed.
type ProductSnapshot struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Slug          string          `json:"slug"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity"`
	Images        []ProductImage  `json:"images,omitempty"`
}

// ProductIndex maps product ids to the snapshots resolved for one computation.
// Ids that could not be resolved are simply absent.
type ProductIndex map[string]ProductSnapshot

// PriceOf returns the current unit price of the product, or zero when the
// product could not be resolved.
func (idx ProductIndex) PriceOf(productID string) decimal.Decimal {
	p, ok := idx[productID]
	if !ok {
		return decimal.Zero
	}
	return p.Price
}
