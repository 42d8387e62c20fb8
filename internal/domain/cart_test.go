package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func catalog(prices map[string]int64) ProductIndex {
	idx := ProductIndex{}
	for id, p := range prices {
		idx[id] = ProductSnapshot{ID: id, Name: "product " + id, Price: price(p), StockQuantity: 100}
	}
	return idx
}

func sumQuantities(c *Cart) int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

func TestAddItem_EmptyCart(t *testing.T) {
	now := time.Now()
	cart := NewCart("u1", now)

	require.NoError(t, cart.AddItem("p1", 2, now))
	cart.RecomputeTotals(catalog(map[string]int64{"p1": 10}))

	require.Len(t, cart.Items, 1)
	assert.Equal(t, "p1", cart.Items[0].ProductID)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, 2, cart.TotalItems)
	assert.True(t, price(20).Equal(cart.TotalPrice), "got %s", cart.TotalPrice)
}

func TestAddItem_Accumulates(t *testing.T) {
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cart := NewCart("u1", first)
	require.NoError(t, cart.AddItem("p1", 2, first))

	require.NoError(t, cart.AddItem("p1", 3, first.Add(time.Hour)))
	cart.RecomputeTotals(catalog(map[string]int64{"p1": 10}))

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, 5, cart.TotalItems)
	assert.Equal(t, first, cart.Items[0].AddedAt, "addedAt must keep the first insertion time")
}

func TestAddItem_SequenceSumsQuantities(t *testing.T) {
	now := time.Now()
	cart := NewCart("u1", now)
	quantities := []int{1, 4, 2, 7, 3}

	want := 0
	for _, q := range quantities {
		require.NoError(t, cart.AddItem("p1", q, now))
		want += q
	}

	require.Len(t, cart.Items, 1)
	assert.Equal(t, want, cart.Items[0].Quantity)
}

func TestAddItem_RejectsNonPositiveQuantity(t *testing.T) {
	now := time.Now()
	cart := NewCart("u1", now)

	assert.ErrorIs(t, cart.AddItem("p1", 0, now), ErrInvalidQuantity)
	assert.ErrorIs(t, cart.AddItem("p1", -3, now), ErrInvalidQuantity)
	assert.Empty(t, cart.Items)
}

func TestAddItem_KeepsInsertionOrder(t *testing.T) {
	now := time.Now()
	cart := NewCart("u1", now)
	require.NoError(t, cart.AddItem("p2", 1, now))
	require.NoError(t, cart.AddItem("p1", 1, now))
	require.NoError(t, cart.AddItem("p2", 1, now))

	assert.Equal(t, []string{"p2", "p1"}, cart.ProductIDs())
}

func TestUpdateItemQuantity_Replaces(t *testing.T) {
	now := time.Now()
	cart := NewCart("u1", now)
	require.NoError(t, cart.AddItem("p1", 5, now))

	require.NoError(t, cart.UpdateItemQuantity("p1", 2))
	cart.RecomputeTotals(catalog(map[string]int64{"p1": 3}))

	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, 2, cart.TotalItems)
	assert.True(t, price(6).Equal(cart.TotalPrice))
}

func TestUpdateItemQuantity_ZeroRemovesLine(t *testing.T) {
	now := time.Now()
	prices := catalog(map[string]int64{"p1": 10, "p2": 50})
	cart := NewCart("u1", now)
	require.NoError(t, cart.AddItem("p1", 5, now))
	require.NoError(t, cart.AddItem("p2", 1, now))

	require.NoError(t, cart.UpdateItemQuantity("p2", 0))
	cart.RecomputeTotals(prices)

	assert.Equal(t, []string{"p1"}, cart.ProductIDs())
	assert.Equal(t, 5, cart.TotalItems)
	assert.True(t, price(50).Equal(cart.TotalPrice), "p2 must be excluded, got %s", cart.TotalPrice)
}

func TestUpdateItemQuantity_ZeroMatchesRemoveItem(t *testing.T) {
	now := time.Now()
	prices := catalog(map[string]int64{"p1": 10, "p2": 50})

	build := func() *Cart {
		c := NewCart("u1", now)
		require.NoError(t, c.AddItem("p1", 5, now))
		require.NoError(t, c.AddItem("p2", 1, now))
		return c
	}

	updated := build()
	require.NoError(t, updated.UpdateItemQuantity("p2", 0))
	updated.RecomputeTotals(prices)

	removed := build()
	removed.RemoveItem("p2")
	removed.RecomputeTotals(prices)

	assert.Equal(t, removed.Items, updated.Items)
	assert.True(t, removed.TotalsEqual(updated))
}

func TestUpdateItemQuantity_UnknownItem(t *testing.T) {
	now := time.Now()
	cart := NewCart("u1", now)
	require.NoError(t, cart.AddItem("p1", 2, now))
	cart.RecomputeTotals(catalog(map[string]int64{"p1": 10}))
	before := cart.Clone()

	err := cart.UpdateItemQuantity("unknown", 3)

	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.Equal(t, before, cart)
}

func TestRemoveItem_Missing_NoOp(t *testing.T) {
	now := time.Now()
	cart := NewCart("u1", now)
	require.NoError(t, cart.AddItem("p1", 2, now))
	cart.RecomputeTotals(catalog(map[string]int64{"p1": 10}))
	before := cart.Clone()

	cart.RemoveItem("missing")
	cart.RecomputeTotals(catalog(map[string]int64{"p1": 10}))

	assert.Equal(t, before, cart)
}

func TestRemoveItem_LastLineLeavesEmptySlice(t *testing.T) {
	now := time.Now()
	cart := NewCart("u1", now)
	require.NoError(t, cart.AddItem("p1", 2, now))

	cart.RemoveItem("p1")

	assert.NotNil(t, cart.Items)
	assert.Empty(t, cart.Items)
}

func TestClear(t *testing.T) {
	now := time.Now()
	cart := NewCart("u1", now)
	require.NoError(t, cart.AddItem("p1", 2, now))
	require.NoError(t, cart.AddItem("p2", 4, now))
	cart.RecomputeTotals(catalog(map[string]int64{"p1": 10, "p2": 1}))

	cart.Clear()

	assert.Empty(t, cart.Items)
	assert.Equal(t, 0, cart.TotalItems)
	assert.True(t, cart.TotalPrice.IsZero())
}

func TestRecomputeTotals_DanglingProductCountsAsZero(t *testing.T) {
	now := time.Now()
	cart := NewCart("u1", now)
	require.NoError(t, cart.AddItem("p1", 2, now))
	require.NoError(t, cart.AddItem("gone", 3, now))

	cart.RecomputeTotals(catalog(map[string]int64{"p1": 10}))

	assert.Equal(t, 5, cart.TotalItems)
	assert.True(t, price(20).Equal(cart.TotalPrice))
}

func TestRecomputeTotals_UsesCurrentPrices(t *testing.T) {
	now := time.Now()
	cart := NewCart("u1", now)
	require.NoError(t, cart.AddItem("p1", 3, now))
	cart.RecomputeTotals(catalog(map[string]int64{"p1": 10}))
	require.True(t, price(30).Equal(cart.TotalPrice))

	cart.RecomputeTotals(catalog(map[string]int64{"p1": 12}))

	assert.True(t, price(36).Equal(cart.TotalPrice))
}

func TestRecomputeTotals_NoDriftAcrossMutations(t *testing.T) {
	now := time.Now()
	prices := ProductIndex{
		"p1": {ID: "p1", Price: decimal.RequireFromString("19.99")},
		"p2": {ID: "p2", Price: decimal.RequireFromString("0.10")},
		"p3": {ID: "p3", Price: decimal.RequireFromString("5.5")},
	}
	cart := NewCart("u1", now)

	steps := []func(){
		func() { require.NoError(t, cart.AddItem("p1", 3, now)) },
		func() { require.NoError(t, cart.AddItem("p2", 7, now)) },
		func() { require.NoError(t, cart.AddItem("p1", 1, now)) },
		func() { require.NoError(t, cart.UpdateItemQuantity("p2", 3)) },
		func() { require.NoError(t, cart.AddItem("p3", 2, now)) },
		func() { cart.RemoveItem("p1") },
		func() { require.NoError(t, cart.UpdateItemQuantity("p3", 0)) },
	}

	for i, step := range steps {
		step()
		cart.RecomputeTotals(prices)

		want := decimal.Zero
		for _, item := range cart.Items {
			want = want.Add(prices.PriceOf(item.ProductID).Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		assert.Equal(t, sumQuantities(cart), cart.TotalItems, "step %d", i)
		assert.True(t, want.Equal(cart.TotalPrice), "step %d: want %s got %s", i, want, cart.TotalPrice)
	}
	assert.True(t, decimal.RequireFromString("0.30").Equal(cart.TotalPrice))
}

func TestClone_IsIndependent(t *testing.T) {
	now := time.Now()
	cart := NewCart("u1", now)
	require.NoError(t, cart.AddItem("p1", 1, now))

	clone := cart.Clone()
	require.NoError(t, clone.AddItem("p1", 4, now))
	require.NoError(t, clone.AddItem("p2", 1, now))

	assert.Equal(t, 1, cart.Items[0].Quantity)
	assert.Len(t, cart.Items, 1)
}

func TestView_ResolvesProducts(t *testing.T) {
	now := time.Now()
	prices := catalog(map[string]int64{"p1": 10})
	cart := NewCart("u1", now)
	cart.ID = "cart-1"
	require.NoError(t, cart.AddItem("p1", 2, now))
	require.NoError(t, cart.AddItem("gone", 1, now))
	cart.RecomputeTotals(prices)

	view := cart.View(prices)

	assert.Equal(t, "cart-1", view.ID)
	require.Len(t, view.Items, 2)
	require.NotNil(t, view.Items[0].Product)
	assert.Equal(t, "product p1", view.Items[0].Product.Name)
	assert.Nil(t, view.Items[1].Product)
	assert.Equal(t, "gone", view.Items[1].ProductID)
	assert.Equal(t, 3, view.TotalItems)
	assert.True(t, price(20).Equal(view.TotalPrice))
}
