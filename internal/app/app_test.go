package app

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/pkg/common"
)

func TestCheckSuper_CreatesDefaultAccount(t *testing.T) {
	a := newTestApp(t)

	a.checkSuper()

	var opr domain.SysOpr
	require.NoError(t, a.DB().Where("username = ?", "admin").First(&opr).Error)
	assert.Equal(t, "super", opr.Level)
	assert.Equal(t, common.ENABLED, opr.Status)
	assert.True(t, common.CheckPassword(opr.Password, "orderdesk"))
}

func TestCheckSuper_RepairsDamagedAccount(t *testing.T) {
	a := newTestApp(t)
	a.checkSuper()

	require.NoError(t, a.DB().Model(&domain.SysOpr{}).
		Where("username = ?", "admin").
		Updates(map[string]interface{}{
			"password": "",
			"level":    "staff",
			"status":   common.DISABLED,
		}).Error)

	a.checkSuper()

	var opr domain.SysOpr
	require.NoError(t, a.DB().Where("username = ?", "admin").First(&opr).Error)
	assert.Equal(t, "super", opr.Level)
	assert.Equal(t, common.ENABLED, opr.Status)
	assert.True(t, common.CheckPassword(opr.Password, "orderdesk"), "blank password must be reset")
}

func TestCheckSchedulers_SeedsDefaultTasks(t *testing.T) {
	a := newTestApp(t)

	a.checkSchedulers()
	a.checkSchedulers()

	var rows []domain.SysScheduler
	require.NoError(t, a.DB().Order("interval ASC").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, "low_stock_scan", rows[0].TaskType)
	assert.Equal(t, 3600, rows[0].Interval)
	assert.Equal(t, "order_stats", rows[1].TaskType)
	assert.Equal(t, 86400, rows[1].Interval)
	for _, row := range rows {
		assert.False(t, row.NextRunAt.IsZero())
	}
}

func TestRunSchedulerNow_LowStockScan(t *testing.T) {
	a := newTestApp(t)
	a.checkSchedulers()

	low := domain.Product{
		ID:          common.UUIDint64(),
		Sku:         "SKU-0500",
		Name:        "Nearly Gone",
		Price:       decimal.NewFromInt(5),
		Cost:        decimal.NewFromInt(2),
		Quantity:    2,
		MinQuantity: 10,
		MaxQuantity: 100,
		Status:      domain.ProductStatusActive,
	}
	require.NoError(t, a.DB().Create(&low).Error)

	var sched domain.SysScheduler
	require.NoError(t, a.DB().Where("task_type = ?", "low_stock_scan").First(&sched).Error)

	before := time.Now()
	require.NoError(t, a.RunSchedulerNow(sched.ID))

	var reloaded domain.SysScheduler
	require.NoError(t, a.DB().First(&reloaded, sched.ID).Error)
	assert.Equal(t, "success", reloaded.LastResult)
	assert.Contains(t, reloaded.LastMessage, "1 products at or below minimum")
	assert.False(t, reloaded.LastRunAt.IsZero())
	assert.True(t, reloaded.NextRunAt.After(before))
}

func TestRunSchedulerNow_OrderStats(t *testing.T) {
	a := newTestApp(t)
	a.checkSchedulers()

	for i := 0; i < 2; i++ {
		require.NoError(t, a.DB().Create(&domain.Order{
			ID:          common.UUIDint64(),
			OrderNumber: fmt.Sprintf("STAT-%04d", i+1),
			Status:      domain.OrderStatusPending,
		}).Error)
	}

	var sched domain.SysScheduler
	require.NoError(t, a.DB().Where("task_type = ?", "order_stats").First(&sched).Error)
	require.NoError(t, a.RunSchedulerNow(sched.ID))

	var reloaded domain.SysScheduler
	require.NoError(t, a.DB().First(&reloaded, sched.ID).Error)
	assert.Equal(t, "success", reloaded.LastResult)
	assert.Contains(t, reloaded.LastMessage, "pending=2")
	assert.Contains(t, reloaded.LastMessage, "total=2")
}

func TestRunSchedulerNow_UnknownID(t *testing.T) {
	a := newTestApp(t)

	assert.Error(t, a.RunSchedulerNow(123456789))
}

func TestSchedClearExpireData_PrunesByRetention(t *testing.T) {
	a := newTestApp(t)

	old := domain.SysOprLog{
		ID:        common.UUIDint64(),
		OprName:   "admin",
		OptAction: "login",
		OptTime:   time.Now().Add(-400 * 24 * time.Hour),
	}
	recent := domain.SysOprLog{
		ID:        common.UUIDint64(),
		OprName:   "admin",
		OptAction: "login",
		OptTime:   time.Now().Add(-time.Hour),
	}
	require.NoError(t, a.DB().Create(&old).Error)
	require.NoError(t, a.DB().Create(&recent).Error)

	a.SchedClearExpireData()

	var remaining []domain.SysOprLog
	require.NoError(t, a.DB().Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, recent.ID, remaining[0].ID)
}

func TestCheckDemoData_SeedsCatalogAndDraftOrder(t *testing.T) {
	a := newTestApp(t)
	a.Config().System.DemoData = true

	a.checkDemoData()

	var products, categories, orderCount, itemCount int64
	a.DB().Model(&domain.Product{}).Count(&products)
	a.DB().Model(&domain.Category{}).Count(&categories)
	a.DB().Model(&domain.Order{}).Count(&orderCount)
	a.DB().Model(&domain.OrderItem{}).Count(&itemCount)
	assert.EqualValues(t, 4, products)
	assert.EqualValues(t, 3, categories)
	assert.EqualValues(t, 1, orderCount)
	assert.EqualValues(t, 1, itemCount)

	// a second start must not reseed
	a.checkDemoData()
	a.DB().Model(&domain.Product{}).Count(&products)
	assert.EqualValues(t, 4, products)
}

func TestCheckDemoData_DisabledByDefault(t *testing.T) {
	a := newTestApp(t)

	a.checkDemoData()

	var products int64
	a.DB().Model(&domain.Product{}).Count(&products)
	assert.Zero(t, products)
}
