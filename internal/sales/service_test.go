package sales

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
	"github.com/stockpoint/stockpoint/internal/shared"
)

type invalidatorSpy struct {
	calls int
}

func (i *invalidatorSpy) InvalidateCache(context.Context) { i.calls++ }

func testService(t *testing.T, cfg ServiceConfig) (*Service, *sql.DB, *invalidatorSpy, *invalidatorSpy) {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")
	handle, err := db.Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(path) })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, db.Migrate(ctx, handle, logger))

	products := &invalidatorSpy{}
	salesCache := &invalidatorSpy{}
	svc := NewService(NewRepository(handle), shared.NewBus(), logger, cfg, products, salesCache)
	return svc, handle, products, salesCache
}

func insertProduct(t *testing.T, handle *sql.DB, name, barcode, price string, stock int) int64 {
	t.Helper()
	now := time.Now().UTC()
	res, err := handle.Exec(`INSERT INTO products
(name, barcode, price, category, stock_quantity, min_stock_level, created_at, updated_at)
VALUES (?, ?, ?, 'Drinks', ?, 10, ?, ?)`, name, barcode, price, stock, now, now)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func stockOf(t *testing.T, handle *sql.DB, productID int64) int {
	t.Helper()
	var stock int
	require.NoError(t, handle.QueryRow(
		`SELECT stock_quantity FROM products WHERE id = ?`, productID).Scan(&stock))
	return stock
}

func countRows(t *testing.T, handle *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, handle.QueryRow(`SELECT COUNT(1) FROM `+table).Scan(&n))
	return n
}

func TestCreateSaleComputesTotalsAndDepletesStock(t *testing.T) {
	ctx := context.Background()
	svc, handle, products, salesCache := testService(t, ServiceConfig{
		TaxRate: decimal.RequireFromString("0.075"),
	})
	colaID := insertProduct(t, handle, "Coca Cola 330ml", "1234567890123", "25.00", 50)

	sale, err := svc.CreateSale(ctx, CreateSaleRequest{
		Items:         []CreateSaleItem{{ProductID: colaID, Quantity: 3}},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)
	require.NotZero(t, sale.ID)
	require.NotEmpty(t, sale.ReceiptNumber)
	require.True(t, sale.Subtotal.Equal(decimal.RequireFromString("75.00")), sale.Subtotal.String())
	require.True(t, sale.Tax.Equal(decimal.RequireFromString("5.63")), sale.Tax.String())
	require.True(t, sale.Total.Equal(decimal.RequireFromString("80.63")), sale.Total.String())

	require.Equal(t, 47, stockOf(t, handle, colaID))

	// Line items are snapshotted from the product row.
	stored, err := svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	require.Equal(t, "Coca Cola 330ml", stored.Items[0].ProductName)
	require.Equal(t, "1234567890123", stored.Items[0].ProductBarcode)
	require.True(t, stored.Items[0].UnitPrice.Equal(decimal.RequireFromString("25.00")))
	require.Equal(t, 3, stored.Items[0].Quantity)
	require.False(t, stored.IsVoided)

	require.Equal(t, 1, products.calls)
	require.Equal(t, 1, salesCache.calls)
}

func TestCreateSaleRollsBackOnUnknownProduct(t *testing.T) {
	ctx := context.Background()
	svc, handle, _, _ := testService(t, ServiceConfig{})
	colaID := insertProduct(t, handle, "Coca Cola 330ml", "1234567890123", "25.00", 50)

	_, err := svc.CreateSale(ctx, CreateSaleRequest{
		Items: []CreateSaleItem{
			{ProductID: colaID, Quantity: 2},
			{ProductID: 9999, Quantity: 1},
		},
		PaymentMethod: "card",
	})
	require.ErrorIs(t, err, shared.ErrNotFound)

	// Nothing persisted, nothing depleted.
	require.Equal(t, 0, countRows(t, handle, "sales"))
	require.Equal(t, 0, countRows(t, handle, "sale_items"))
	require.Equal(t, 50, stockOf(t, handle, colaID))
}

// The second line fails mid-transaction, after the sale row, both items and
// the first stock decrement were already written; everything rolls back.
func TestCreateSaleRollsBackAfterPartialWrites(t *testing.T) {
	ctx := context.Background()
	svc, handle, _, _ := testService(t, ServiceConfig{})
	colaID := insertProduct(t, handle, "Coca Cola 330ml", "1234567890123", "25.00", 50)
	breadID := insertProduct(t, handle, "Bread", "2222222222222", "12.50", 1)

	_, err := svc.CreateSale(ctx, CreateSaleRequest{
		Items: []CreateSaleItem{
			{ProductID: colaID, Quantity: 2},
			{ProductID: breadID, Quantity: 5},
		},
		PaymentMethod: "cash",
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	require.Equal(t, 0, countRows(t, handle, "sales"))
	require.Equal(t, 0, countRows(t, handle, "sale_items"))
	require.Equal(t, 50, stockOf(t, handle, colaID))
	require.Equal(t, 1, stockOf(t, handle, breadID))
}

func TestCreateSaleInsufficientStock(t *testing.T) {
	ctx := context.Background()
	svc, handle, _, _ := testService(t, ServiceConfig{})
	colaID := insertProduct(t, handle, "Coca Cola 330ml", "1234567890123", "25.00", 2)

	_, err := svc.CreateSale(ctx, CreateSaleRequest{
		Items:         []CreateSaleItem{{ProductID: colaID, Quantity: 3}},
		PaymentMethod: "cash",
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, 0, countRows(t, handle, "sales"))
	require.Equal(t, 2, stockOf(t, handle, colaID))
}

func TestCreateSaleAllowNegativeStock(t *testing.T) {
	ctx := context.Background()
	svc, handle, _, _ := testService(t, ServiceConfig{AllowNegativeStock: true})
	colaID := insertProduct(t, handle, "Coca Cola 330ml", "1234567890123", "25.00", 2)

	_, err := svc.CreateSale(ctx, CreateSaleRequest{
		Items:         []CreateSaleItem{{ProductID: colaID, Quantity: 3}},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)
	require.Equal(t, -1, stockOf(t, handle, colaID))
}

func TestCreateSaleValidation(t *testing.T) {
	ctx := context.Background()
	svc, handle, _, _ := testService(t, ServiceConfig{})
	colaID := insertProduct(t, handle, "Coca Cola 330ml", "1234567890123", "25.00", 50)

	_, err := svc.CreateSale(ctx, CreateSaleRequest{PaymentMethod: "cash"})
	require.Error(t, err)

	_, err = svc.CreateSale(ctx, CreateSaleRequest{
		Items:         []CreateSaleItem{{ProductID: colaID, Quantity: 1}},
		PaymentMethod: "bitcoin",
	})
	require.Error(t, err)

	_, err = svc.CreateSale(ctx, CreateSaleRequest{
		Items:         []CreateSaleItem{{ProductID: colaID, Quantity: 0}},
		PaymentMethod: "cash",
	})
	require.Error(t, err)
	require.Equal(t, 0, countRows(t, handle, "sales"))
}

func TestVoidSaleRestoresStockExactlyOnce(t *testing.T) {
	ctx := context.Background()
	svc, handle, _, _ := testService(t, ServiceConfig{})
	colaID := insertProduct(t, handle, "Coca Cola 330ml", "1234567890123", "25.00", 50)

	sale, err := svc.CreateSale(ctx, CreateSaleRequest{
		Items:         []CreateSaleItem{{ProductID: colaID, Quantity: 3}},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)
	require.Equal(t, 47, stockOf(t, handle, colaID))

	require.NoError(t, svc.VoidSale(ctx, sale.ID, "customer cancelled"))
	require.Equal(t, 50, stockOf(t, handle, colaID))

	voided, err := svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.True(t, voided.IsVoided)
	require.NotNil(t, voided.VoidedAt)
	require.NotNil(t, voided.VoidReason)
	require.Equal(t, "customer cancelled", *voided.VoidReason)

	// A second void fails and must not restore stock again.
	err = svc.VoidSale(ctx, sale.ID, "again")
	require.ErrorIs(t, err, shared.ErrAlreadyVoided)
	require.Equal(t, 50, stockOf(t, handle, colaID))
}

// The product reference on a line item is soft: deleting the product must not
// strand its sales in the active state.
func TestVoidSaleAfterProductDeleted(t *testing.T) {
	ctx := context.Background()
	svc, handle, _, _ := testService(t, ServiceConfig{})
	colaID := insertProduct(t, handle, "Coca Cola 330ml", "1234567890123", "25.00", 50)

	sale, err := svc.CreateSale(ctx, CreateSaleRequest{
		Items:         []CreateSaleItem{{ProductID: colaID, Quantity: 3}},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)

	_, err = handle.Exec(`DELETE FROM products WHERE id = ?`, colaID)
	require.NoError(t, err)

	require.NoError(t, svc.VoidSale(ctx, sale.ID, "wrong order"))

	voided, err := svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.True(t, voided.IsVoided)
	require.Equal(t, "Coca Cola 330ml", voided.Items[0].ProductName)

	// The voided sale can now leave through the normal exits.
	require.NoError(t, svc.DeleteVoidedSale(ctx, sale.ID))
	require.Equal(t, 0, countRows(t, handle, "sales"))
}

func TestVoidSaleUnknownID(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := testService(t, ServiceConfig{})
	require.ErrorIs(t, svc.VoidSale(ctx, 42, "nope"), shared.ErrNotFound)
}

func TestDeleteRequiresVoidedState(t *testing.T) {
	ctx := context.Background()
	svc, handle, _, _ := testService(t, ServiceConfig{})
	colaID := insertProduct(t, handle, "Coca Cola 330ml", "1234567890123", "25.00", 50)

	sale, err := svc.CreateSale(ctx, CreateSaleRequest{
		Items:         []CreateSaleItem{{ProductID: colaID, Quantity: 1}},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)

	err = svc.DeleteVoidedSale(ctx, sale.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	require.Equal(t, 1, countRows(t, handle, "sales"))
	require.Equal(t, 1, countRows(t, handle, "sale_items"))

	require.NoError(t, svc.VoidSale(ctx, sale.ID, "mistake"))
	require.NoError(t, svc.DeleteVoidedSale(ctx, sale.ID))
	require.Equal(t, 0, countRows(t, handle, "sales"))
	require.Equal(t, 0, countRows(t, handle, "sale_items"))
}

func TestDeleteBatchFailsWholeOnActiveSale(t *testing.T) {
	ctx := context.Background()
	svc, handle, _, _ := testService(t, ServiceConfig{})
	colaID := insertProduct(t, handle, "Coca Cola 330ml", "1234567890123", "25.00", 50)

	voidedSale, err := svc.CreateSale(ctx, CreateSaleRequest{
		Items:         []CreateSaleItem{{ProductID: colaID, Quantity: 1}},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)
	require.NoError(t, svc.VoidSale(ctx, voidedSale.ID, "bad scan"))

	activeSale, err := svc.CreateSale(ctx, CreateSaleRequest{
		Items:         []CreateSaleItem{{ProductID: colaID, Quantity: 1}},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)

	err = svc.DeleteMultipleVoidedSales(ctx, []int64{voidedSale.ID, activeSale.ID})
	require.ErrorIs(t, err, shared.ErrInvalidState)
	// The voided sale survives too: the batch is one transaction.
	require.Equal(t, 2, countRows(t, handle, "sales"))
}

func TestCleanupOldVoidedSales(t *testing.T) {
	ctx := context.Background()
	svc, handle, _, _ := testService(t, ServiceConfig{})
	colaID := insertProduct(t, handle, "Coca Cola 330ml", "1234567890123", "25.00", 50)

	oldSale, err := svc.CreateSale(ctx, CreateSaleRequest{
		Items:         []CreateSaleItem{{ProductID: colaID, Quantity: 1}},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)
	require.NoError(t, svc.VoidSale(ctx, oldSale.ID, "stale"))

	recentSale, err := svc.CreateSale(ctx, CreateSaleRequest{
		Items:         []CreateSaleItem{{ProductID: colaID, Quantity: 1}},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)
	require.NoError(t, svc.VoidSale(ctx, recentSale.ID, "fresh"))

	// An old but recently voided sale: still inside its retention window.
	agedSale, err := svc.CreateSale(ctx, CreateSaleRequest{
		Items:         []CreateSaleItem{{ProductID: colaID, Quantity: 1}},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)
	require.NoError(t, svc.VoidSale(ctx, agedSale.ID, "late void"))
	_, err = handle.Exec(`UPDATE sales SET timestamp = ? WHERE id = ?`,
		time.Now().UTC().AddDate(0, 0, -120), agedSale.ID)
	require.NoError(t, err)

	// Retention is keyed on the void date, so only the backdated void goes.
	_, err = handle.Exec(`UPDATE sales SET voided_at = ? WHERE id = ?`,
		time.Now().UTC().AddDate(0, 0, -120), oldSale.ID)
	require.NoError(t, err)

	removed, err := svc.CleanupOldVoidedSales(ctx, 90)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = svc.GetSale(ctx, oldSale.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.GetSale(ctx, recentSale.ID)
	require.NoError(t, err)
	_, err = svc.GetSale(ctx, agedSale.ID)
	require.NoError(t, err)
}

func TestListSalesFilters(t *testing.T) {
	ctx := context.Background()
	svc, handle, _, _ := testService(t, ServiceConfig{})
	colaID := insertProduct(t, handle, "Coca Cola 330ml", "1234567890123", "25.00", 50)

	first, err := svc.CreateSale(ctx, CreateSaleRequest{
		Items:         []CreateSaleItem{{ProductID: colaID, Quantity: 1}},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)
	second, err := svc.CreateSale(ctx, CreateSaleRequest{
		Items:         []CreateSaleItem{{ProductID: colaID, Quantity: 2}},
		PaymentMethod: "card",
	})
	require.NoError(t, err)
	require.NoError(t, svc.VoidSale(ctx, first.ID, "test"))

	all, err := svc.ListSales(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Len(t, all[0].Items, 1)

	active := false
	onlyActive, err := svc.ListSales(ctx, ListFilter{Voided: &active})
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	require.Equal(t, second.ID, onlyActive[0].ID)

	voided := true
	onlyVoided, err := svc.ListSales(ctx, ListFilter{Voided: &voided})
	require.NoError(t, err)
	require.Len(t, onlyVoided, 1)
	require.Equal(t, first.ID, onlyVoided[0].ID)
}
