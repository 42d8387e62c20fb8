package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fjod/shopcart/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestDB(t *testing.T) CartRepository {
	ctx := context.Background()

	// Start MongoDB container
	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	testcontainers.CleanupContainer(t, mongoContainer)
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Client().Disconnect(context.Background())
	})

	require.NoError(t, RunMigrations(db, "../../migrations"))

	return NewMongoRepository(db)
}

func TestGetCart_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	cart, err := repo.GetCart(context.Background(), "nonexistent")

	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestGetOrCreate_CreatesEmptyCart(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	cart, err := repo.GetOrCreate(ctx, "user123")
	require.NoError(t, err)

	assert.NotEmpty(t, cart.ID)
	assert.Equal(t, "user123", cart.UserID)
	assert.Empty(t, cart.Items)
	assert.NotNil(t, cart.Items)
	assert.Equal(t, 0, cart.TotalItems)
	assert.True(t, cart.TotalPrice.IsZero())
	assert.Equal(t, int64(0), cart.Version)
	assert.False(t, cart.CreatedAt.IsZero())
}

func TestGetOrCreate_ReturnsExistingCart(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	first, err := repo.GetOrCreate(ctx, "user123")
	require.NoError(t, err)
	second, err := repo.GetOrCreate(ctx, "user123")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestGetOrCreate_ConcurrentFirstReadsShareOneCart(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	const workers = 8
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cart, err := repo.GetOrCreate(ctx, "racer")
			if assert.NoError(t, err) {
				ids[i] = cart.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	carts, total, err := repo.ListCarts(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, carts, 1)
}

func TestSave_PersistsItemsAndTotalsTogether(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	cart, err := repo.GetOrCreate(ctx, "user123")
	require.NoError(t, err)
	createdAt := cart.CreatedAt

	require.NoError(t, cart.AddItem("p1", 2, time.Now()))
	require.NoError(t, cart.AddItem("p2", 1, time.Now()))
	cart.RecomputeTotals(domain.ProductIndex{
		"p1": {ID: "p1", Price: decimal.RequireFromString("10.25")},
		"p2": {ID: "p2", Price: decimal.RequireFromString("4.50")},
	})
	require.NoError(t, repo.Save(ctx, cart))
	assert.Equal(t, int64(1), cart.Version)

	stored, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "p1", stored.Items[0].ProductID)
	assert.Equal(t, 2, stored.Items[0].Quantity)
	assert.Equal(t, 3, stored.TotalItems)
	assert.True(t, decimal.RequireFromString("25").Equal(stored.TotalPrice), "got %s", stored.TotalPrice)
	assert.Equal(t, int64(1), stored.Version)
	assert.WithinDuration(t, createdAt, stored.CreatedAt, time.Millisecond)
	assert.True(t, stored.UpdatedAt.After(createdAt) || stored.UpdatedAt.Equal(createdAt))
}

func TestSave_StaleVersionConflicts(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	first, err := repo.GetOrCreate(ctx, "user123")
	require.NoError(t, err)
	second, err := repo.GetOrCreate(ctx, "user123")
	require.NoError(t, err)

	require.NoError(t, first.AddItem("p1", 1, time.Now()))
	first.RecomputeTotals(domain.ProductIndex{})
	require.NoError(t, repo.Save(ctx, first))

	require.NoError(t, second.AddItem("p2", 1, time.Now()))
	second.RecomputeTotals(domain.ProductIndex{})
	err = repo.Save(ctx, second)

	assert.ErrorIs(t, err, ErrVersionConflict)
	stored, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, stored.ProductIDs())
}

func TestSave_ClearedCartKeepsRecord(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	cart, err := repo.GetOrCreate(ctx, "user123")
	require.NoError(t, err)
	require.NoError(t, cart.AddItem("p1", 3, time.Now()))
	cart.RecomputeTotals(domain.ProductIndex{"p1": {ID: "p1", Price: decimal.NewFromInt(2)}})
	require.NoError(t, repo.Save(ctx, cart))

	cart.Clear()
	require.NoError(t, repo.Save(ctx, cart))

	stored, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, cart.ID, stored.ID)
	assert.Empty(t, stored.Items)
	assert.Equal(t, 0, stored.TotalItems)
	assert.True(t, stored.TotalPrice.IsZero())
}

func TestListCarts_NewestFirstWithPagination(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	for _, user := range []string{"u1", "u2", "u3"} {
		_, err := repo.GetOrCreate(ctx, user)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	page1, total, err := repo.ListCarts(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page1, 2)
	assert.Equal(t, "u3", page1[0].UserID)
	assert.Equal(t, "u2", page1[1].UserID)

	page2, _, err := repo.ListCarts(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "u1", page2[0].UserID)
}

func TestContextCancellation(t *testing.T) {
	repo := setupTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()

	time.Sleep(10 * time.Millisecond) // Ensure context is cancelled

	_, err := repo.GetCart(ctx, "user123")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}
