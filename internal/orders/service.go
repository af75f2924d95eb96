package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orderdesk/orderdesk/internal/audit"
	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/events"
	"github.com/orderdesk/orderdesk/internal/inventory"
	"github.com/orderdesk/orderdesk/pkg/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Settings supplies runtime configuration values from the settings
// table. *app.Application satisfies it.
type Settings interface {
	GetSettingsStringValue(category, key string) string
}

// Service implements the order lifecycle and ledger operations. Every
// public method runs as one transaction: either the full mutation plus
// its audit entry commits, or nothing does.
type Service struct {
	db       *gorm.DB
	settings Settings
}

// New builds an order service. settings may be nil; defaults apply.
func New(db *gorm.DB, settings Settings) *Service {
	return &Service{db: db, settings: settings}
}

func (s *Service) numberPrefix() string {
	if s.settings != nil {
		if v := s.settings.GetSettingsStringValue("orders", "number_prefix"); v != "" {
			return v
		}
	}
	return DefaultNumberPrefix
}

// lockOrder loads the order under a row lock so concurrent mutations of
// the same order serialize. The locking clause is postgres-only; SQLite
// serializes writers on its own.
func lockOrder(tx *gorm.DB, orderID int64) (*domain.Order, error) {
	var order domain.Order
	q := tx
	if strings.EqualFold(tx.Name(), "postgres") {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// CreateOrderInput carries the caller-provided fields of a new order.
type CreateOrderInput struct {
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	CustomerAddress string
	Notes           string
	TaxAmount       decimal.Decimal
	DiscountAmount  decimal.Decimal
}

// ContactInput carries the mutable contact fields of an order.
type ContactInput struct {
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	CustomerAddress string
	Notes           string
}

// Create persists a new draft order and allocates its number. Two
// same-day creations can race for the same sequence; the unique index
// on order_number rejects one and the whole transaction is retried with
// a fresh read.
func (s *Service) Create(ctx context.Context, input CreateOrderInput, actor audit.Actor) (*domain.Order, error) {
	if input.TaxAmount.IsNegative() || input.DiscountAmount.IsNegative() {
		return nil, ErrInvalidAmount
	}

	var createdBy int64
	if actor.ID != nil {
		createdBy = *actor.ID
	}

	var order domain.Order
	var err error
	for attempt := 0; attempt < numberAllocRetries; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			number, err := nextOrderNumber(tx, s.numberPrefix(), time.Now())
			if err != nil {
				return err
			}
			order = domain.Order{
				ID:              common.UUIDint64(),
				OrderNumber:     number,
				CustomerName:    input.CustomerName,
				CustomerEmail:   input.CustomerEmail,
				CustomerPhone:   input.CustomerPhone,
				CustomerAddress: input.CustomerAddress,
				Status:          domain.OrderStatusDraft,
				Notes:           input.Notes,
				CreatedBy:       createdBy,
				TaxAmount:       input.TaxAmount,
				DiscountAmount:  input.DiscountAmount,
				TotalAmount:     decimal.Zero,
				FinalAmount:     input.TaxAmount.Sub(input.DiscountAmount),
			}
			if err := tx.Create(&order).Error; err != nil {
				return err
			}
			return audit.RecordOrderAction(tx, order.ID, actor, domain.OrderActionCreate,
				map[string]interface{}{
					"order_number":   order.OrderNumber,
					"customer_email": order.CustomerEmail,
				})
		})
		if err == nil || !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	events.PublishOrder(events.TopicOrderCreated, events.OrderEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		ToStatus:    string(order.Status),
		OprName:     actor.Name,
	})
	zap.L().Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("customer_email", order.CustomerEmail))
	return &order, nil
}

// Get loads an order with its items.
func (s *Service) Get(ctx context.Context, orderID int64) (*domain.Order, error) {
	var order domain.Order
	err := s.db.WithContext(ctx).Preload("Items").First(&order, orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// UpdateContact rewrites the customer contact fields and notes of an
// order that has not reached a terminal state. The audit entry carries
// the per-field diff computed against the row read in the same
// transaction that writes the change.
func (s *Service) UpdateContact(ctx context.Context, orderID int64, input ContactInput, actor audit.Actor) (*domain.Order, error) {
	var order *domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.IsCompleted() {
			return fmt.Errorf("%w: status is %s", ErrOrderNotModifiable, order.Status)
		}

		changes := map[string]interface{}{}
		updates := map[string]interface{}{}
		diff := func(field, from, to string) {
			if from != to {
				changes[field] = map[string]string{"from": from, "to": to}
				updates[field] = to
			}
		}
		diff("customer_name", order.CustomerName, input.CustomerName)
		diff("customer_email", order.CustomerEmail, input.CustomerEmail)
		diff("customer_phone", order.CustomerPhone, input.CustomerPhone)
		diff("customer_address", order.CustomerAddress, input.CustomerAddress)
		diff("notes", order.Notes, input.Notes)
		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(&domain.Order{}).Where("id = ?", orderID).
			Updates(updates).Error; err != nil {
			return err
		}
		order.CustomerName = input.CustomerName
		order.CustomerEmail = input.CustomerEmail
		order.CustomerPhone = input.CustomerPhone
		order.CustomerAddress = input.CustomerAddress
		order.Notes = input.Notes

		return audit.RecordOrderAction(tx, orderID, actor, domain.OrderActionUpdate, changes)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Transition moves an order along one edge of the lifecycle table.
// Entering processing or cancelled carries stock side effects, so those
// targets route through Process and Cancel; there is no status path
// that bypasses stock accounting.
func (s *Service) Transition(ctx context.Context, orderID int64, newStatus domain.OrderStatus, actor audit.Actor) (*domain.Order, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, string(newStatus))
	}
	switch newStatus {
	case domain.OrderStatusProcessing:
		return s.Process(ctx, orderID, actor)
	case domain.OrderStatusCancelled:
		return s.Cancel(ctx, orderID, actor, "")
	}

	var order *domain.Order
	var from domain.OrderStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		from = order.Status
		if !domain.CanTransition(order.Status, newStatus) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, newStatus)
		}

		updates := map[string]interface{}{"status": newStatus}
		if newStatus == domain.OrderStatusDelivered && order.CompletedAt == nil {
			now := time.Now()
			updates["completed_at"] = now
			order.CompletedAt = &now
		}
		if err := tx.Model(&domain.Order{}).Where("id = ?", orderID).
			Updates(updates).Error; err != nil {
			return err
		}
		order.Status = newStatus

		action := domain.OrderActionStatusChange
		switch newStatus {
		case domain.OrderStatusShipped:
			action = domain.OrderActionShip
		case domain.OrderStatusDelivered:
			action = domain.OrderActionDeliver
		}
		return audit.RecordOrderAction(tx, orderID, actor, action,
			map[string]interface{}{"from": string(from), "to": string(newStatus)})
	})
	if err != nil {
		return nil, err
	}

	events.PublishOrder(events.TopicOrderStatusChanged, events.OrderEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		FromStatus:  string(from),
		ToStatus:    string(order.Status),
		OprName:     actor.Name,
	})
	zap.L().Info("order status changed",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("from", string(from)),
		zap.String("to", string(order.Status)))
	return order, nil
}

// Process moves a pending order into processing, reserving stock for
// every item as one atomic unit. Each item's reservation is a
// conditional decrement; the first shortfall aborts the transaction and
// rolls back every reservation already applied, so partial reservation
// never commits. The acting operator becomes the order's handler.
func (s *Service) Process(ctx context.Context, orderID int64, actor audit.Actor) (*domain.Order, error) {
	var order *domain.Order
	var reserved []events.StockEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusPending {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, domain.OrderStatusProcessing)
		}

		var items []domain.OrderItem
		if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
			return err
		}

		reserved = reserved[:0]
		for _, item := range items {
			remaining, err := inventory.ReserveStock(tx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			reserved = append(reserved, events.StockEvent{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Remaining: remaining,
			})
		}

		updates := map[string]interface{}{"status": domain.OrderStatusProcessing}
		if actor.ID != nil {
			updates["assigned_to"] = *actor.ID
			order.AssignedTo = actor.ID
		}
		if err := tx.Model(&domain.Order{}).Where("id = ?", orderID).
			Updates(updates).Error; err != nil {
			return err
		}
		order.Status = domain.OrderStatusProcessing

		return audit.RecordOrderAction(tx, orderID, actor, domain.OrderActionProcess,
			map[string]interface{}{
				"from":  string(domain.OrderStatusPending),
				"to":    string(domain.OrderStatusProcessing),
				"items": len(items),
			})
	})
	if err != nil {
		return nil, err
	}

	for _, evt := range reserved {
		events.PublishStock(events.TopicStockReserved, evt)
	}
	events.PublishOrder(events.TopicOrderStatusChanged, events.OrderEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		FromStatus:  string(domain.OrderStatusPending),
		ToStatus:    string(order.Status),
		OprName:     actor.Name,
	})
	zap.L().Info("order processing",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int("items", len(reserved)))
	return order, nil
}

// Cancel terminates an order that has not shipped. Stock is reserved
// only when an order enters processing, so only a cancellation from
// processing releases quantities; cancelling a draft or pending order
// credits nothing back. The reason is appended to the order's notes.
func (s *Service) Cancel(ctx context.Context, orderID int64, actor audit.Actor, reason string) (*domain.Order, error) {
	var order *domain.Order
	var from domain.OrderStatus
	var released []events.StockEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		from = order.Status
		if !order.CanBeCancelled() {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, domain.OrderStatusCancelled)
		}

		released = released[:0]
		if order.Status == domain.OrderStatusProcessing {
			var items []domain.OrderItem
			if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
				return err
			}
			for _, item := range items {
				remaining, err := inventory.ReleaseStock(tx, item.ProductID, item.Quantity)
				if err != nil {
					return err
				}
				released = append(released, events.StockEvent{
					ProductID: item.ProductID,
					Quantity:  item.Quantity,
					Remaining: remaining,
				})
			}
		}

		note := fmt.Sprintf("Cancelled by %s", common.IfEmptyStr(actor.Name, "system"))
		if reason != "" {
			note = note + ": " + reason
		}
		if order.Notes != "" {
			note = order.Notes + "\n" + note
		}

		updates := map[string]interface{}{
			"status": domain.OrderStatusCancelled,
			"notes":  note,
		}
		if order.CompletedAt == nil {
			now := time.Now()
			updates["completed_at"] = now
			order.CompletedAt = &now
		}
		if err := tx.Model(&domain.Order{}).Where("id = ?", orderID).
			Updates(updates).Error; err != nil {
			return err
		}
		order.Status = domain.OrderStatusCancelled
		order.Notes = note

		return audit.RecordOrderAction(tx, orderID, actor, domain.OrderActionCancel,
			map[string]interface{}{
				"from":   string(from),
				"reason": reason,
			})
	})
	if err != nil {
		return nil, err
	}

	for _, evt := range released {
		events.PublishStock(events.TopicStockReleased, evt)
	}
	events.PublishOrder(events.TopicOrderCancelled, events.OrderEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		FromStatus:  string(from),
		ToStatus:    string(order.Status),
		OprName:     actor.Name,
	})
	zap.L().Info("order cancelled",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("from", string(from)),
		zap.Int("released_items", len(released)))
	return order, nil
}

// Ship moves a processing order to shipped.
func (s *Service) Ship(ctx context.Context, orderID int64, actor audit.Actor) (*domain.Order, error) {
	return s.Transition(ctx, orderID, domain.OrderStatusShipped, actor)
}

// Deliver moves a shipped order to delivered and stamps completed_at.
func (s *Service) Deliver(ctx context.Context, orderID int64, actor audit.Actor) (*domain.Order, error) {
	return s.Transition(ctx, orderID, domain.OrderStatusDelivered, actor)
}
