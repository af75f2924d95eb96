package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/orderdesk/orderdesk/internal/audit"
	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/events"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service owns all stock quantity mutations. Order code never updates
// product quantity directly.
type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ReserveStock decrements the product quantity inside tx. The decrement
// is a single conditional UPDATE guarded by quantity >= requested, so
// two competing reservations for the last units are arbitrated by the
// database: exactly one matches the guard, the other observes zero
// affected rows and fails without touching the counter.
// Returns the quantity remaining after the decrement.
func ReserveStock(tx *gorm.DB, productID int64, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}

	res := tx.Model(&domain.Product{}).
		Where("id = ? AND quantity >= ?", productID, quantity).
		Update("quantity", gorm.Expr("quantity - ?", quantity))
	if res.Error != nil {
		return 0, res.Error
	}

	if res.RowsAffected == 0 {
		// Guard did not match: either the row is gone or stock is short.
		var p domain.Product
		if err := tx.Select("id", "quantity").First(&p, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, ErrProductNotFound
			}
			return 0, err
		}
		return p.Quantity, fmt.Errorf("%w: product %d has %d, requested %d",
			ErrInsufficientStock, productID, p.Quantity, quantity)
	}

	var p domain.Product
	if err := tx.Select("id", "quantity", "status").First(&p, productID).Error; err != nil {
		return 0, err
	}
	if p.Quantity == 0 && p.Status == domain.ProductStatusActive {
		if err := tx.Model(&domain.Product{}).Where("id = ?", productID).
			Update("status", domain.ProductStatusOutOfStock).Error; err != nil {
			return 0, err
		}
	}
	return p.Quantity, nil
}

// ReleaseStock returns quantity units to the product inside tx. A
// product that sold out regains active status once stock is back.
// Returns the quantity remaining after the increment.
func ReleaseStock(tx *gorm.DB, productID int64, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}

	res := tx.Model(&domain.Product{}).
		Where("id = ?", productID).
		Update("quantity", gorm.Expr("quantity + ?", quantity))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrProductNotFound
	}

	var p domain.Product
	if err := tx.Select("id", "quantity", "status").First(&p, productID).Error; err != nil {
		return 0, err
	}
	if p.Quantity > 0 && p.Status == domain.ProductStatusOutOfStock {
		if err := tx.Model(&domain.Product{}).Where("id = ?", productID).
			Update("status", domain.ProductStatusActive).Error; err != nil {
			return 0, err
		}
	}
	return p.Quantity, nil
}

// Restock adds quantity units to a product and records the action on
// the product trail. The event fires only after the transaction commits.
func (s *Service) Restock(ctx context.Context, productID int64, quantity int, actor audit.Actor, notes string) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var product domain.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ReleaseStock(tx, productID, quantity); err != nil {
			return err
		}
		if err := tx.First(&product, productID).Error; err != nil {
			return err
		}
		return audit.RecordProductAction(tx, productID, actor, domain.ProductActionRestock,
			map[string]interface{}{"added": quantity, "quantity": product.Quantity}, notes)
	})
	if err != nil {
		return nil, err
	}

	events.PublishStock(events.TopicStockRestocked, events.StockEvent{
		ProductID: product.ID,
		Sku:       product.Sku,
		Quantity:  quantity,
		Remaining: product.Quantity,
	})
	zap.L().Info("product restocked",
		zap.Int64("product_id", product.ID),
		zap.String("sku", product.Sku),
		zap.Int("added", quantity),
		zap.Int("quantity", product.Quantity))
	return &product, nil
}

// LowStock returns active products at or below their minimum quantity,
// lowest stock first.
func (s *Service) LowStock(ctx context.Context) ([]domain.Product, error) {
	var rows []domain.Product
	err := s.db.WithContext(ctx).
		Where("status = ? AND quantity <= min_quantity", domain.ProductStatusActive).
		Order("quantity ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ScanLowStock runs the low-stock query and publishes a stock.low event
// per product found. Used by the low_stock_scan scheduler task.
func (s *Service) ScanLowStock(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.LowStock(ctx)
	if err != nil {
		return nil, err
	}

	for _, p := range rows {
		events.PublishStock(events.TopicStockLow, events.StockEvent{
			ProductID: p.ID,
			Sku:       p.Sku,
			Remaining: p.Quantity,
		})
	}
	return rows, nil
}

// InUse reports whether any order item references the product.
func (s *Service) InUse(ctx context.Context, productID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.OrderItem{}).
		Where("product_id = ?", productID).Count(&count).Error
	return count > 0, err
}
