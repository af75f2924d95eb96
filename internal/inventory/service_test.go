package inventory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/orderdesk/orderdesk/internal/audit"
	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/events"
	"github.com/orderdesk/orderdesk/internal/inventory"
	"github.com/orderdesk/orderdesk/internal/testutil"
	"github.com/orderdesk/orderdesk/pkg/common"
)

func seedProduct(t *testing.T, db *gorm.DB, sku string, quantity, minQuantity int, status domain.ProductStatus) *domain.Product {
	t.Helper()
	p := domain.Product{
		ID:          common.UUIDint64(),
		Sku:         sku,
		Name:        "Product " + sku,
		Price:       decimal.NewFromFloat(19.90),
		Cost:        decimal.NewFromFloat(7.50),
		Quantity:    quantity,
		MinQuantity: minQuantity,
		MaxQuantity: 1000,
		Status:      status,
	}
	require.NoError(t, db.Create(&p).Error)
	return &p
}

func TestReserveStock_DecrementsQuantity(t *testing.T) {
	db := testutil.OpenTestDB(t)
	p := seedProduct(t, db, "SKU-0001", 10, 2, domain.ProductStatusActive)

	remaining, err := inventory.ReserveStock(db, p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, remaining)

	var reloaded domain.Product
	require.NoError(t, db.First(&reloaded, p.ID).Error)
	assert.Equal(t, 7, reloaded.Quantity)
	assert.Equal(t, domain.ProductStatusActive, reloaded.Status)
}

func TestReserveStock_InsufficientStockLeavesRowUntouched(t *testing.T) {
	db := testutil.OpenTestDB(t)
	p := seedProduct(t, db, "SKU-0002", 2, 2, domain.ProductStatusActive)

	_, err := inventory.ReserveStock(db, p.ID, 5)
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	var reloaded domain.Product
	require.NoError(t, db.First(&reloaded, p.ID).Error)
	assert.Equal(t, 2, reloaded.Quantity)
}

func TestReserveStock_ExactDepletionFlipsOutOfStock(t *testing.T) {
	db := testutil.OpenTestDB(t)
	p := seedProduct(t, db, "SKU-0003", 5, 2, domain.ProductStatusActive)

	remaining, err := inventory.ReserveStock(db, p.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	var reloaded domain.Product
	require.NoError(t, db.First(&reloaded, p.ID).Error)
	assert.Equal(t, domain.ProductStatusOutOfStock, reloaded.Status)
}

func TestReserveStock_InvalidQuantity(t *testing.T) {
	db := testutil.OpenTestDB(t)
	p := seedProduct(t, db, "SKU-0004", 5, 2, domain.ProductStatusActive)

	for _, qty := range []int{0, -3} {
		_, err := inventory.ReserveStock(db, p.ID, qty)
		assert.ErrorIs(t, err, inventory.ErrInvalidQuantity, "quantity %d", qty)
	}
}

func TestReserveStock_ProductNotFound(t *testing.T) {
	db := testutil.OpenTestDB(t)

	_, err := inventory.ReserveStock(db, 424242, 1)
	assert.ErrorIs(t, err, inventory.ErrProductNotFound)
}

func TestReleaseStock_RestoresActiveStatus(t *testing.T) {
	db := testutil.OpenTestDB(t)
	p := seedProduct(t, db, "SKU-0005", 0, 2, domain.ProductStatusOutOfStock)

	remaining, err := inventory.ReleaseStock(db, p.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, remaining)

	var reloaded domain.Product
	require.NoError(t, db.First(&reloaded, p.ID).Error)
	assert.Equal(t, domain.ProductStatusActive, reloaded.Status)
}

func TestReleaseStock_DiscontinuedKeepsStatus(t *testing.T) {
	db := testutil.OpenTestDB(t)
	p := seedProduct(t, db, "SKU-0006", 0, 2, domain.ProductStatusDiscontinued)

	_, err := inventory.ReleaseStock(db, p.ID, 4)
	require.NoError(t, err)

	var reloaded domain.Product
	require.NoError(t, db.First(&reloaded, p.ID).Error)
	assert.Equal(t, domain.ProductStatusDiscontinued, reloaded.Status)
}

func TestRestock_RecordsTrailAndPublishesEvent(t *testing.T) {
	db := testutil.OpenTestDB(t)
	p := seedProduct(t, db, "SKU-0007", 3, 2, domain.ProductStatusActive)
	svc := inventory.New(db)

	var got events.StockEvent
	handler := func(evt events.StockEvent) { got = evt }
	require.NoError(t, events.Subscribe(events.TopicStockRestocked, handler))
	defer func() { _ = events.Unsubscribe(events.TopicStockRestocked, handler) }()

	updated, err := svc.Restock(context.Background(), p.ID, 20, audit.SystemActor(), "weekly delivery")
	require.NoError(t, err)
	assert.Equal(t, 23, updated.Quantity)

	assert.Equal(t, p.ID, got.ProductID)
	assert.Equal(t, 20, got.Quantity)
	assert.Equal(t, 23, got.Remaining)

	trail, err := audit.ListProductTrail(db, p.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, domain.ProductActionRestock, trail[0].Action)
	assert.Equal(t, "weekly delivery", trail[0].Notes)
	assert.Equal(t, "system", trail[0].OprName)
}

func TestRestock_InvalidQuantity(t *testing.T) {
	db := testutil.OpenTestDB(t)
	p := seedProduct(t, db, "SKU-0008", 3, 2, domain.ProductStatusActive)

	_, err := inventory.New(db).Restock(context.Background(), p.ID, 0, audit.SystemActor(), "")
	assert.ErrorIs(t, err, inventory.ErrInvalidQuantity)
}

func TestLowStock_ActiveAtOrBelowMinimum(t *testing.T) {
	db := testutil.OpenTestDB(t)
	seedProduct(t, db, "SKU-0010", 5, 10, domain.ProductStatusActive)
	seedProduct(t, db, "SKU-0011", 1, 10, domain.ProductStatusActive)
	seedProduct(t, db, "SKU-0012", 50, 10, domain.ProductStatusActive)
	seedProduct(t, db, "SKU-0013", 2, 10, domain.ProductStatusInactive)

	rows, err := inventory.New(db).LowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// lowest stock first
	assert.Equal(t, "SKU-0011", rows[0].Sku)
	assert.Equal(t, "SKU-0010", rows[1].Sku)
}

func TestScanLowStock_PublishesPerProduct(t *testing.T) {
	db := testutil.OpenTestDB(t)
	seedProduct(t, db, "SKU-0014", 3, 10, domain.ProductStatusActive)
	seedProduct(t, db, "SKU-0015", 7, 10, domain.ProductStatusActive)

	var mu sync.Mutex
	var seen []events.StockEvent
	handler := func(evt events.StockEvent) {
		mu.Lock()
		seen = append(seen, evt)
		mu.Unlock()
	}
	require.NoError(t, events.Subscribe(events.TopicStockLow, handler))
	defer func() { _ = events.Unsubscribe(events.TopicStockLow, handler) }()

	rows, err := inventory.New(db).ScanLowStock(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Len(t, seen, 2)
}

func TestInUse_ReportsOrderItemReferences(t *testing.T) {
	db := testutil.OpenTestDB(t)
	p := seedProduct(t, db, "SKU-0016", 10, 2, domain.ProductStatusActive)
	svc := inventory.New(db)

	used, err := svc.InUse(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, used)

	item := domain.OrderItem{
		ID:        common.UUIDint64(),
		OrderID:   common.UUIDint64(),
		ProductID: p.ID,
		Quantity:  1,
		UnitPrice: p.Price,
	}
	require.NoError(t, db.Create(&item).Error)

	used, err = svc.InUse(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, used)
}

func TestConcurrentReservations_OnlyOneWinsLastUnits(t *testing.T) {
	db := testutil.OpenTestDB(t)
	p := seedProduct(t, db, "SKU-0017", 5, 2, domain.ProductStatusActive)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- db.Transaction(func(tx *gorm.DB) error {
				_, err := inventory.ReserveStock(tx, p.ID, 3)
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)

	var failures int
	for err := range errs {
		if err != nil {
			require.ErrorIs(t, err, inventory.ErrInsufficientStock)
			failures++
		}
	}
	assert.Equal(t, 1, failures, "exactly one reservation must lose")

	var reloaded domain.Product
	require.NoError(t, db.First(&reloaded, p.ID).Error)
	assert.Equal(t, 2, reloaded.Quantity)
}
