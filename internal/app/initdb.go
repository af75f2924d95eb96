package app

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/orderdesk/orderdesk/internal/audit"
	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/orders"
	"github.com/orderdesk/orderdesk/pkg/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (a *Application) checkSuper() {
	const superUsername = "admin"

	defaultPassword := os.Getenv("ORDERDESK_ADMIN_PASSWORD")
	if defaultPassword == "" {
		defaultPassword = "orderdesk"
	}
	hashedPassword, err := common.HashPassword(defaultPassword)
	if err != nil {
		zap.L().Error("failed to hash default super admin password", zap.Error(err))
		return
	}

	var operator domain.SysOpr
	err = a.gormDB.Where("username = ?", superUsername).First(&operator).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := a.gormDB.Create(&domain.SysOpr{
			ID:        common.UUIDint64(),
			Realname:  "administrator",
			Mobile:    "0000",
			Email:     "N/A",
			Username:  superUsername,
			Password:  hashedPassword,
			Level:     "super",
			Status:    common.ENABLED,
			Remark:    "super",
			LastLogin: time.Now(),
		}).Error; err != nil {
			zap.L().Error("failed to create default super admin", zap.Error(err))
		} else {
			zap.L().Info("initialized default super admin account", zap.String("username", superUsername))
		}
		return
	case err != nil:
		zap.L().Error("failed to query super admin", zap.Error(err))
		return
	}

	resetPassword := strings.TrimSpace(operator.Password) == ""
	resetLevel := !strings.EqualFold(operator.Level, "super")
	resetStatus := !strings.EqualFold(operator.Status, common.ENABLED)

	if !resetPassword && !resetLevel && !resetStatus {
		return
	}

	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if resetPassword {
		updates["password"] = hashedPassword
	}
	if resetLevel {
		updates["level"] = "super"
	}
	if resetStatus {
		updates["status"] = common.ENABLED
	}

	if err := a.gormDB.Model(&domain.SysOpr{}).Where("id = ?", operator.ID).Updates(updates).Error; err != nil {
		zap.L().Error("failed to repair super admin account", zap.Error(err))
		return
	}

	zap.L().Warn("repaired default super admin account",
		zap.String("username", superUsername),
		zap.Bool("passwordReset", resetPassword),
		zap.Bool("levelReset", resetLevel),
		zap.Bool("statusEnabled", resetStatus))
}

// checkSettings creates any missing sys_config rows from the defaults
func (a *Application) checkSettings() {
	for _, item := range defaultSettings {
		var count int64
		a.gormDB.Model(&domain.SysConfig{}).
			Where("type = ? and name = ?", item.Type, item.Name).
			Count(&count)

		if count == 0 {
			a.gormDB.Create(&domain.SysConfig{
				ID:     common.UUIDint64(),
				Sort:   item.Sort,
				Type:   item.Type,
				Name:   item.Name,
				Value:  item.Value,
				Remark: item.Remark,
			})
			zap.L().Info("initialized config",
				zap.String("key", item.Type+"."+item.Name),
				zap.String("default", item.Value))
		}
	}
}

// checkSchedulers initializes default scheduled tasks
func (a *Application) checkSchedulers() {
	defaultSchedulers := []domain.SysScheduler{
		{
			Name:     "Low Stock Scan",
			TaskType: "low_stock_scan",
			Interval: 3600, // 1 hour
			Status:   "enabled",
			Remark:   "Periodically scans for active products at or below their minimum quantity",
		},
		{
			Name:     "Order Statistics",
			TaskType: "order_stats",
			Interval: 86400, // 1 day
			Status:   "enabled",
			Remark:   "Periodically logs an order count snapshot per status",
		},
	}

	for _, sched := range defaultSchedulers {
		var count int64
		a.gormDB.Model(&domain.SysScheduler{}).
			Where("task_type = ?", sched.TaskType).
			Count(&count)

		if count == 0 {
			sched.ID = common.UUIDint64()
			sched.NextRunAt = time.Now().Add(time.Duration(sched.Interval) * time.Second)
			if err := a.gormDB.Create(&sched).Error; err != nil {
				zap.L().Error("failed to create default scheduler",
					zap.String("name", sched.Name),
					zap.Error(err))
			} else {
				zap.L().Info("initialized default scheduler",
					zap.String("name", sched.Name),
					zap.String("task_type", sched.TaskType))
			}
		}
	}
}

// checkDemoData seeds demo categories, products and one draft order when
// system.demo_data is enabled and the catalog is still empty.
func (a *Application) checkDemoData() {
	if a.appConfig == nil || !a.appConfig.System.DemoData {
		return
	}

	var count int64
	a.gormDB.Model(&domain.Product{}).Count(&count)
	if count > 0 {
		return
	}

	demoCategories := []domain.Category{
		{ID: common.UUIDint64(), Name: "Electronics", Description: "Electronic devices and peripherals"},
		{ID: common.UUIDint64(), Name: "Office Supplies", Description: "Everyday office consumables"},
		{ID: common.UUIDint64(), Name: "Accessories", Description: "Cables, adapters and add-ons"},
	}
	for i := range demoCategories {
		if err := a.gormDB.Create(&demoCategories[i]).Error; err != nil {
			zap.L().Error("failed to create demo category",
				zap.String("name", demoCategories[i].Name), zap.Error(err))
			return
		}
	}

	demoProducts := []domain.Product{
		{
			Sku: "DEMO-1001", Name: "Wireless Mouse", Description: "2.4GHz wireless mouse",
			CategoryID: demoCategories[0].ID,
			Price:      decimal.NewFromFloat(24.99), Cost: decimal.NewFromFloat(11.50),
			Quantity: 120, MinQuantity: 20, MaxQuantity: 500,
			Status: domain.ProductStatusActive,
		},
		{
			Sku: "DEMO-1002", Name: "Mechanical Keyboard", Description: "87-key mechanical keyboard",
			CategoryID: demoCategories[0].ID,
			Price:      decimal.NewFromFloat(89.00), Cost: decimal.NewFromFloat(42.00),
			Quantity: 60, MinQuantity: 10, MaxQuantity: 200,
			Status: domain.ProductStatusActive,
		},
		{
			Sku: "DEMO-2001", Name: "A5 Notebook", Description: "Ruled A5 notebook, 120 pages",
			CategoryID: demoCategories[1].ID,
			Price:      decimal.NewFromFloat(4.50), Cost: decimal.NewFromFloat(1.20),
			Quantity: 400, MinQuantity: 50, MaxQuantity: 1000,
			Status: domain.ProductStatusActive,
		},
		{
			Sku: "DEMO-3001", Name: "USB-C Cable 1m", Description: "USB-C to USB-C charging cable",
			CategoryID: demoCategories[2].ID,
			Price:      decimal.NewFromFloat(9.99), Cost: decimal.NewFromFloat(2.80),
			Quantity: 250, MinQuantity: 30, MaxQuantity: 800,
			Status: domain.ProductStatusActive,
		},
	}
	for i := range demoProducts {
		demoProducts[i].ID = common.UUIDint64()
		if err := a.gormDB.Create(&demoProducts[i]).Error; err != nil {
			zap.L().Error("failed to create demo product",
				zap.String("sku", demoProducts[i].Sku), zap.Error(err))
			return
		}
		zap.L().Info("initialized demo product", zap.String("sku", demoProducts[i].Sku))
	}

	ctx := context.Background()
	svc := orders.New(a.gormDB, a)
	order, err := svc.Create(ctx, orders.CreateOrderInput{
		CustomerName:    "Demo Customer",
		CustomerEmail:   "demo@example.com",
		CustomerPhone:   "0000",
		CustomerAddress: "1 Demo Street",
		Notes:           "demo order",
	}, audit.SystemActor())
	if err != nil {
		zap.L().Error("failed to create demo order", zap.Error(err))
		return
	}
	if _, err := svc.AddItem(ctx, order.ID, demoProducts[0].ID, 2, audit.SystemActor()); err != nil {
		zap.L().Error("failed to add demo order item", zap.Error(err))
		return
	}
	zap.L().Info("initialized demo order", zap.String("order_number", order.OrderNumber))
}
