package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order status values. delivered and cancelled are terminal.
type OrderStatus string

const (
	OrderStatusDraft      OrderStatus = "draft"
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatusChoices lists every valid order status.
var OrderStatusChoices = []OrderStatus{
	OrderStatusDraft,
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// orderTransitions is the allowed status edge table. Any write that is
// not listed here must be rejected before persistence.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusDraft:      {OrderStatusPending, OrderStatusCancelled},
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatusChoices {
		if v == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether from → to is a legal status edge.
// A same-state write is not a legal edge.
func CanTransition(from, to OrderStatus) bool {
	for _, v := range orderTransitions[from] {
		if v == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the destinations reachable from status.
func AllowedTransitions(from OrderStatus) []OrderStatus {
	return orderTransitions[from]
}

// Order is a commercial order with its derived monetary totals.
// total_amount is always the sum of the item totals and final_amount is
// always total_amount + tax_amount - discount_amount; both are recomputed
// by the ledger, never set independently.
type Order struct {
	ID              int64           `json:"id,string" form:"id" gorm:"primaryKey"`
	OrderNumber     string          `gorm:"size:20;uniqueIndex" json:"order_number" form:"order_number"`
	CustomerName    string          `gorm:"size:200" json:"customer_name" form:"customer_name"`
	CustomerEmail   string          `gorm:"size:200;index" json:"customer_email" form:"customer_email"`
	CustomerPhone   string          `gorm:"size:20" json:"customer_phone" form:"customer_phone"`
	CustomerAddress string          `gorm:"type:text" json:"customer_address" form:"customer_address"`
	Status          OrderStatus     `gorm:"size:20;index;default:'draft'" json:"status" form:"status"`
	Notes           string          `gorm:"type:text" json:"notes" form:"notes"`
	CreatedBy       int64           `gorm:"index" json:"created_by,string"`
	AssignedTo      *int64          `gorm:"index" json:"assigned_to,string"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(10,2)" json:"total_amount"`
	TaxAmount       decimal.Decimal `gorm:"type:decimal(10,2)" json:"tax_amount"`
	DiscountAmount  decimal.Decimal `gorm:"type:decimal(10,2)" json:"discount_amount"`
	FinalAmount     decimal.Decimal `gorm:"type:decimal(10,2)" json:"final_amount"`
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	CompletedAt     *time.Time      `json:"completed_at"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// TableName Specify table name
func (Order) TableName() string {
	return "orders"
}

// CanBeModified reports whether items and charges may still change.
func (o *Order) CanBeModified() bool {
	return o.Status == OrderStatusDraft || o.Status == OrderStatusPending
}

// CanBeCancelled reports whether the order may still be cancelled.
func (o *Order) CanBeCancelled() bool {
	switch o.Status {
	case OrderStatusDraft, OrderStatusPending, OrderStatusProcessing:
		return true
	}
	return false
}

// IsCompleted reports whether the order reached a terminal status.
func (o *Order) IsCompleted() bool {
	return o.Status == OrderStatusDelivered || o.Status == OrderStatusCancelled
}

// OrderItem is one order line. unit_price is a snapshot taken when the
// line was added; later catalog price changes never touch it.
// At most one line exists per (order, product) pair.
type OrderItem struct {
	ID         int64           `json:"id,string" gorm:"primaryKey"`
	OrderID    int64           `gorm:"index;uniqueIndex:idx_order_item_order_product" json:"order_id,string"`
	ProductID  int64           `gorm:"index;uniqueIndex:idx_order_item_order_product" json:"product_id,string"`
	Quantity   int             `json:"quantity" form:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(10,2)" json:"unit_price"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(10,2)" json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TableName Specify table name
func (OrderItem) TableName() string {
	return "order_items"
}

// Order audit actions.
const (
	OrderActionCreate       = "create"
	OrderActionUpdate       = "update"
	OrderActionStatusChange = "status_change"
	OrderActionAddItem      = "add_item"
	OrderActionRemoveItem   = "remove_item"
	OrderActionCancel       = "cancel"
	OrderActionProcess      = "process"
	OrderActionShip         = "ship"
	OrderActionDeliver      = "deliver"
)

// OrderAuditLog is one immutable record of a mutating order action.
// OprID is nullable so entries survive operator removal; OprName keeps
// a display snapshot either way. Entries are never updated or deleted.
type OrderAuditLog struct {
	ID        int64     `json:"id,string" gorm:"primaryKey"`
	OrderID   int64     `gorm:"index:idx_order_audit_order_time" json:"order_id,string"`
	OprID     *int64    `json:"opr_id,string"`
	OprName   string    `gorm:"size:100" json:"opr_name"`
	Action    string    `gorm:"size:20;index" json:"action"`
	Details   string    `gorm:"type:text" json:"details"`
	CreatedAt time.Time `gorm:"index:idx_order_audit_order_time" json:"created_at"`
}

// TableName Specify table name
func (OrderAuditLog) TableName() string {
	return "order_audit_log"
}
