package catalog

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockpoint/stockpoint/internal/platform/db"
	"github.com/stockpoint/stockpoint/internal/search"
	"github.com/stockpoint/stockpoint/internal/shared"
)

func testRepo(t *testing.T) (*SQLRepository, *sql.DB) {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")
	handle, err := db.Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(path) })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, db.Migrate(ctx, handle, logger))
	index, err := search.Probe(ctx, handle, logger)
	require.NoError(t, err)
	return NewSQLRepository(handle, index), handle
}

func product(name, barcode, price string, stock int) Product {
	now := time.Now().UTC()
	return Product{
		Name:          name,
		Barcode:       barcode,
		Price:         decimal.RequireFromString(price),
		Category:      "Drinks",
		StockQuantity: stock,
		MinStockLevel: 10,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestInsertGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	repo, _ := testRepo(t)

	id, err := repo.Insert(ctx, product("Coca Cola 330ml", "1234567890123", "25.00", 50))
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Coca Cola 330ml", got.Name)
	require.True(t, got.Price.Equal(decimal.RequireFromString("25.00")))
	require.Equal(t, 50, got.StockQuantity)

	byBarcode, err := repo.GetByBarcode(ctx, "1234567890123")
	require.NoError(t, err)
	require.Equal(t, id, byBarcode.ID)

	got.Name = "Coca Cola Can"
	got.UpdatedAt = time.Now().UTC()
	require.NoError(t, repo.Update(ctx, got))

	// Search follows the rename through the same-transaction index update.
	results, err := repo.Search(ctx, "can", 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, id, results[0].ID)

	require.NoError(t, repo.Delete(ctx, id))
	_, err = repo.GetByID(ctx, id)
	require.ErrorIs(t, err, shared.ErrNotFound)
	results, err = repo.Search(ctx, "can", 10, 0)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestBarcodeUniqueness(t *testing.T) {
	ctx := context.Background()
	repo, _ := testRepo(t)

	_, err := repo.Insert(ctx, product("A", "111", "1.00", 0))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, product("B", "111", "2.00", 0))
	require.ErrorIs(t, err, shared.ErrConstraintViolation)

	// The failed insert must not leave an index row behind.
	results, err := repo.Search(ctx, "B", 10, 0)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	repo, _ := testRepo(t)

	cheap := product("Water", "201", "5.00", 100)
	cheap.Category = "Drinks"
	mid := product("Cola", "202", "25.00", 5)
	mid.Category = "Drinks"
	pricey := product("Whisky", "203", "350.00", 3)
	pricey.Category = "Spirits"

	for _, p := range []Product{cheap, mid, pricey} {
		_, err := repo.Insert(ctx, p)
		require.NoError(t, err)
	}

	drinks, err := repo.List(ctx, ListFilter{Category: "Drinks"})
	require.NoError(t, err)
	require.Len(t, drinks, 2)

	min := decimal.RequireFromString("10")
	max := decimal.RequireFromString("100")
	ranged, err := repo.List(ctx, ListFilter{MinPrice: &min, MaxPrice: &max})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	require.Equal(t, "Cola", ranged[0].Name)

	low, err := repo.List(ctx, ListFilter{LowStockOnly: true})
	require.NoError(t, err)
	require.Len(t, low, 2) // stock 5 and 3 against min level 10

	paged, err := repo.List(ctx, ListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	require.Equal(t, "Water", paged[0].Name) // name ASC: Cola, Water, Whisky
}

func TestAdjustStockFloor(t *testing.T) {
	ctx := context.Background()
	repo, _ := testRepo(t)

	id, err := repo.Insert(ctx, product("Cola", "301", "25.00", 5))
	require.NoError(t, err)

	require.NoError(t, repo.AdjustStock(ctx, id, -3, true))
	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 2, got.StockQuantity)

	err = repo.AdjustStock(ctx, id, -5, true)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 2, got.StockQuantity)

	// Without the floor the same decrement goes negative.
	require.NoError(t, repo.AdjustStock(ctx, id, -5, false))
	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, -3, got.StockQuantity)

	err = repo.AdjustStock(ctx, 9999, -1, true)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSearchEmptyQueryReturnsPaginatedList(t *testing.T) {
	ctx := context.Background()
	repo, _ := testRepo(t)

	for _, p := range []Product{product("A", "401", "1.00", 0), product("B", "402", "1.00", 0), product("C", "403", "1.00", 0)} {
		_, err := repo.Insert(ctx, p)
		require.NoError(t, err)
	}

	page, err := repo.Search(ctx, "", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "A", page[0].Name)
	require.Equal(t, "B", page[1].Name)
}
