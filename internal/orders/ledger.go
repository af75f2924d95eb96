package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/orderdesk/orderdesk/internal/audit"
	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/inventory"
	"github.com/orderdesk/orderdesk/pkg/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RecomputeTotals reloads the order's items and rewrites the derived
// monetary fields: total_amount = sum of item totals, final_amount =
// total_amount + tax_amount - discount_amount. Every item mutation goes
// through here before its transaction commits.
func RecomputeTotals(tx *gorm.DB, order *domain.Order) error {
	var items []domain.OrderItem
	if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
		return err
	}

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalPrice)
	}
	order.TotalAmount = total
	order.FinalAmount = total.Add(order.TaxAmount).Sub(order.DiscountAmount)

	return tx.Model(&domain.Order{}).Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"total_amount": order.TotalAmount,
			"final_amount": order.FinalAmount,
		}).Error
}

// AddItem attaches quantity units of a product to a draft or pending
// order. Availability is checked against current stock but nothing is
// reserved yet; reservation happens when the order enters processing.
// Adding a product that is already on the order raises that line's
// quantity instead of creating a second row; the line keeps the unit
// price snapshotted when it was first added.
func (s *Service) AddItem(ctx context.Context, orderID, productID int64, quantity int, actor audit.Actor) (*domain.Order, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	var order *domain.Order
	var err error
	// Two concurrent adds of the same product can both pass the
	// existing-line lookup; the unique (order_id, product_id) index
	// rejects the second insert and one retry turns it into a merge.
	for attempt := 0; attempt < 2; attempt++ {
		order, err = s.addItemTx(ctx, orderID, productID, quantity, actor)
		if err == nil || !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("order item added",
		zap.Int64("order_id", orderID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity),
		zap.String("total_amount", order.TotalAmount.String()))
	return order, nil
}

func (s *Service) addItemTx(ctx context.Context, orderID, productID int64, quantity int, actor audit.Actor) (*domain.Order, error) {
	var order *domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if !order.CanBeModified() {
			return fmt.Errorf("%w: status is %s", ErrOrderNotModifiable, order.Status)
		}

		var product domain.Product
		if err := tx.First(&product, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return inventory.ErrProductNotFound
			}
			return err
		}
		if product.Quantity < quantity {
			return fmt.Errorf("%w: product %s has %d, requested %d",
				inventory.ErrInsufficientStock, product.Sku, product.Quantity, quantity)
		}

		var item domain.OrderItem
		err = tx.Where("order_id = ? AND product_id = ?", orderID, productID).First(&item).Error
		switch {
		case err == nil:
			item.Quantity += quantity
			item.TotalPrice = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
			if err := tx.Model(&domain.OrderItem{}).Where("id = ?", item.ID).
				Updates(map[string]interface{}{
					"quantity":    item.Quantity,
					"total_price": item.TotalPrice,
				}).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			item = domain.OrderItem{
				ID:         common.UUIDint64(),
				OrderID:    orderID,
				ProductID:  productID,
				Quantity:   quantity,
				UnitPrice:  product.Price,
				TotalPrice: product.Price.Mul(decimal.NewFromInt(int64(quantity))),
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		default:
			return err
		}

		if err := RecomputeTotals(tx, order); err != nil {
			return err
		}
		return audit.RecordOrderAction(tx, orderID, actor, domain.OrderActionAddItem,
			map[string]interface{}{
				"product_id": fmt.Sprintf("%d", productID),
				"sku":        product.Sku,
				"quantity":   quantity,
				"unit_price": item.UnitPrice.String(),
			})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// RemoveItem deletes one line from a draft or pending order and
// recomputes the totals.
func (s *Service) RemoveItem(ctx context.Context, orderID, itemID int64, actor audit.Actor) (*domain.Order, error) {
	var order *domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if !order.CanBeModified() {
			return fmt.Errorf("%w: status is %s", ErrOrderNotModifiable, order.Status)
		}

		var item domain.OrderItem
		if err := tx.Where("id = ? AND order_id = ?", itemID, orderID).First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return err
		}
		if err := tx.Delete(&domain.OrderItem{}, item.ID).Error; err != nil {
			return err
		}

		if err := RecomputeTotals(tx, order); err != nil {
			return err
		}
		return audit.RecordOrderAction(tx, orderID, actor, domain.OrderActionRemoveItem,
			map[string]interface{}{
				"product_id": fmt.Sprintf("%d", item.ProductID),
				"quantity":   item.Quantity,
			})
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("order item removed",
		zap.Int64("order_id", orderID),
		zap.Int64("item_id", itemID))
	return order, nil
}

// SetCharges updates tax_amount and discount_amount and recomputes
// final_amount. Charges follow the same status guard as items.
func (s *Service) SetCharges(ctx context.Context, orderID int64, tax, discount decimal.Decimal, actor audit.Actor) (*domain.Order, error) {
	if tax.IsNegative() || discount.IsNegative() {
		return nil, ErrInvalidAmount
	}

	var order *domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if !order.CanBeModified() {
			return fmt.Errorf("%w: status is %s", ErrOrderNotModifiable, order.Status)
		}

		order.TaxAmount = tax
		order.DiscountAmount = discount
		if err := tx.Model(&domain.Order{}).Where("id = ?", orderID).
			Updates(map[string]interface{}{
				"tax_amount":      tax,
				"discount_amount": discount,
			}).Error; err != nil {
			return err
		}

		if err := RecomputeTotals(tx, order); err != nil {
			return err
		}
		return audit.RecordOrderAction(tx, orderID, actor, domain.OrderActionUpdate,
			map[string]interface{}{
				"tax_amount":      tax.String(),
				"discount_amount": discount.String(),
			})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}
