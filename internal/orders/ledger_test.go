package orders_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderdesk/orderdesk/internal/audit"
	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/inventory"
	"github.com/orderdesk/orderdesk/internal/orders"
)

func TestAddItem_SnapshotsUnitPrice(t *testing.T) {
	svc, db := newOrderService(t)
	product := seedCatalogProduct(t, db, "SKU-0200", 24.99, 120)
	order := createDraft(t, svc)

	updated, err := svc.AddItem(context.Background(), order.ID, product.ID, 2, audit.SystemActor())
	require.NoError(t, err)
	assert.True(t, updated.TotalAmount.Equal(decimal.NewFromFloat(49.98)), "got %s", updated.TotalAmount)

	// catalog price change after the line exists
	require.NoError(t, db.Model(&domain.Product{}).Where("id = ?", product.ID).
		Update("price", decimal.NewFromFloat(30)).Error)

	updated, err = svc.AddItem(context.Background(), order.ID, product.ID, 1, audit.SystemActor())
	require.NoError(t, err)

	var items []domain.OrderItem
	require.NoError(t, db.Where("order_id = ?", order.ID).Find(&items).Error)
	require.Len(t, items, 1, "same product must merge into one line")
	assert.Equal(t, 3, items[0].Quantity)
	assert.True(t, items[0].UnitPrice.Equal(decimal.NewFromFloat(24.99)),
		"line must keep the price snapshotted at first add, got %s", items[0].UnitPrice)
	assert.True(t, updated.TotalAmount.Equal(decimal.NewFromFloat(74.97)), "got %s", updated.TotalAmount)
}

func TestAddItem_ChecksAvailabilityWithoutReserving(t *testing.T) {
	svc, db := newOrderService(t)
	product := seedCatalogProduct(t, db, "SKU-0201", 10.00, 8)
	order := createDraft(t, svc)

	_, err := svc.AddItem(context.Background(), order.ID, product.ID, 5, audit.SystemActor())
	require.NoError(t, err)

	var reloaded domain.Product
	require.NoError(t, db.First(&reloaded, product.ID).Error)
	assert.Equal(t, 8, reloaded.Quantity, "adding must not reserve stock")

	_, err = svc.AddItem(context.Background(), order.ID, product.ID, 9, audit.SystemActor())
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	svc, db := newOrderService(t)
	product := seedCatalogProduct(t, db, "SKU-0202", 10.00, 8)
	order := createDraft(t, svc)

	_, err := svc.AddItem(context.Background(), order.ID, product.ID, 0, audit.SystemActor())
	assert.ErrorIs(t, err, orders.ErrInvalidQuantity)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	svc, _ := newOrderService(t)
	order := createDraft(t, svc)

	_, err := svc.AddItem(context.Background(), order.ID, 13131313, 1, audit.SystemActor())
	assert.ErrorIs(t, err, inventory.ErrProductNotFound)
}

func TestAddItem_LockedAfterPending(t *testing.T) {
	svc, db := newOrderService(t)
	product := seedCatalogProduct(t, db, "SKU-0203", 10.00, 8)
	order := seedOrderWithStatus(t, db, domain.OrderStatusProcessing)

	_, err := svc.AddItem(context.Background(), order.ID, product.ID, 1, audit.SystemActor())
	assert.ErrorIs(t, err, orders.ErrOrderNotModifiable)
}

func TestRemoveItem_RecomputesTotals(t *testing.T) {
	svc, db := newOrderService(t)
	productA := seedCatalogProduct(t, db, "SKU-0204", 10.00, 50)
	productB := seedCatalogProduct(t, db, "SKU-0205", 7.50, 50)
	order := createDraft(t, svc)

	_, err := svc.AddItem(context.Background(), order.ID, productA.ID, 2, audit.SystemActor())
	require.NoError(t, err)
	updated, err := svc.AddItem(context.Background(), order.ID, productB.ID, 4, audit.SystemActor())
	require.NoError(t, err)
	assert.True(t, updated.TotalAmount.Equal(decimal.NewFromFloat(50.00)), "got %s", updated.TotalAmount)

	var item domain.OrderItem
	require.NoError(t, db.Where("order_id = ? AND product_id = ?", order.ID, productB.ID).First(&item).Error)

	updated, err = svc.RemoveItem(context.Background(), order.ID, item.ID, audit.SystemActor())
	require.NoError(t, err)
	assert.True(t, updated.TotalAmount.Equal(decimal.NewFromFloat(20.00)), "got %s", updated.TotalAmount)

	var count int64
	require.NoError(t, db.Model(&domain.OrderItem{}).Where("order_id = ?", order.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRemoveItem_NotFound(t *testing.T) {
	svc, _ := newOrderService(t)
	order := createDraft(t, svc)

	_, err := svc.RemoveItem(context.Background(), order.ID, 999999, audit.SystemActor())
	assert.ErrorIs(t, err, orders.ErrItemNotFound)
}

func TestSetCharges_RecomputesFinalAmount(t *testing.T) {
	svc, db := newOrderService(t)
	product := seedCatalogProduct(t, db, "SKU-0206", 50.00, 10)
	order := createDraft(t, svc)

	_, err := svc.AddItem(context.Background(), order.ID, product.ID, 2, audit.SystemActor())
	require.NoError(t, err)

	updated, err := svc.SetCharges(context.Background(), order.ID,
		decimal.NewFromInt(10), decimal.NewFromInt(5), audit.SystemActor())
	require.NoError(t, err)

	assert.True(t, updated.TotalAmount.Equal(decimal.NewFromInt(100)), "got %s", updated.TotalAmount)
	assert.True(t, updated.FinalAmount.Equal(decimal.NewFromInt(105)), "got %s", updated.FinalAmount)
}

func TestSetCharges_NegativeRejected(t *testing.T) {
	svc, _ := newOrderService(t)
	order := createDraft(t, svc)

	_, err := svc.SetCharges(context.Background(), order.ID,
		decimal.NewFromInt(-1), decimal.Zero, audit.SystemActor())
	assert.ErrorIs(t, err, orders.ErrInvalidAmount)
}

// The derived fields must hold after any sequence of item and charge
// mutations: total = sum(lines), final = total + tax - discount.
func TestTotals_InvariantAcrossMutations(t *testing.T) {
	svc, db := newOrderService(t)
	productA := seedCatalogProduct(t, db, "SKU-0207", 19.99, 100)
	productB := seedCatalogProduct(t, db, "SKU-0208", 4.49, 100)
	order := createDraft(t, svc)

	_, err := svc.AddItem(context.Background(), order.ID, productA.ID, 3, audit.SystemActor())
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), order.ID, productB.ID, 2, audit.SystemActor())
	require.NoError(t, err)
	_, err = svc.SetCharges(context.Background(), order.ID,
		decimal.NewFromFloat(3.30), decimal.NewFromFloat(1.25), audit.SystemActor())
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), order.ID, productA.ID, 1, audit.SystemActor())
	require.NoError(t, err)

	reloaded, err := svc.Get(context.Background(), order.ID)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, item := range reloaded.Items {
		assert.True(t, item.TotalPrice.Equal(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))))
		sum = sum.Add(item.TotalPrice)
	}
	assert.True(t, reloaded.TotalAmount.Equal(sum),
		"total %s != item sum %s", reloaded.TotalAmount, sum)
	want := sum.Add(reloaded.TaxAmount).Sub(reloaded.DiscountAmount)
	assert.True(t, reloaded.FinalAmount.Equal(want),
		"final %s != total+tax-discount %s", reloaded.FinalAmount, want)
}
