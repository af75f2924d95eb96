package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Product status values. out_of_stock is set automatically whenever a
// reservation drives quantity to zero; restocking above zero restores
// active.
type ProductStatus string

const (
	ProductStatusActive       ProductStatus = "active"
	ProductStatusInactive     ProductStatus = "inactive"
	ProductStatusDiscontinued ProductStatus = "discontinued"
	ProductStatusOutOfStock   ProductStatus = "out_of_stock"
)

// ProductStatusChoices lists every valid product status.
var ProductStatusChoices = []ProductStatus{
	ProductStatusActive,
	ProductStatusInactive,
	ProductStatusDiscontinued,
	ProductStatusOutOfStock,
}

// Valid reports whether s is a known product status.
func (s ProductStatus) Valid() bool {
	for _, v := range ProductStatusChoices {
		if v == s {
			return true
		}
	}
	return false
}

// Category groups catalog products
type Category struct {
	ID          int64     `json:"id,string" form:"id" gorm:"primaryKey"`
	Name        string    `gorm:"size:100;uniqueIndex" json:"name" form:"name"`
	Description string    `gorm:"type:text" json:"description" form:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Category) TableName() string {
	return "categories"
}

// Product is a catalog item whose quantity is the shared, finite stock
// that orders compete for. Quantity never goes below zero; only the
// inventory service mutates it.
type Product struct {
	ID          int64           `json:"id,string" form:"id" gorm:"primaryKey"`
	Sku         string          `gorm:"size:50;uniqueIndex" json:"sku" form:"sku"`
	Name        string          `gorm:"size:200;index" json:"name" form:"name"`
	Description string          `gorm:"type:text" json:"description" form:"description"`
	CategoryID  int64           `gorm:"index" json:"category_id,string" form:"category_id"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2)" json:"price" form:"price"`
	Cost        decimal.Decimal `gorm:"type:decimal(10,2)" json:"cost" form:"cost"`
	Quantity    int             `gorm:"index" json:"quantity" form:"quantity"`
	MinQuantity int             `gorm:"default:10" json:"min_quantity" form:"min_quantity"`
	MaxQuantity int             `gorm:"default:1000" json:"max_quantity" form:"max_quantity"`
	Status      ProductStatus   `gorm:"size:20;index;default:'active'" json:"status" form:"status"`
	CreatedBy   int64           `json:"created_by,string"`
	UpdatedBy   int64           `json:"updated_by,string"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName Specify table name
func (Product) TableName() string {
	return "products"
}

// Validate enforces the catalog field rules.
func (p *Product) Validate() error {
	if p.Price.LessThan(p.Cost) {
		return errors.New("price must be greater than or equal to cost")
	}
	if p.Quantity < 0 {
		return errors.New("quantity cannot be negative")
	}
	if p.MaxQuantity <= p.MinQuantity {
		return errors.New("maximum quantity must be greater than minimum quantity")
	}
	if p.Status != "" && !p.Status.Valid() {
		return errors.New("unknown product status")
	}
	return nil
}

// Margin returns the profit margin percentage.
func (p *Product) Margin() float64 {
	if p.Price.IsPositive() {
		margin, _ := p.Price.Sub(p.Cost).Div(p.Price).Mul(decimal.NewFromInt(100)).Float64()
		return margin
	}
	return 0
}

// NeedsRestock reports whether quantity fell to the minimum threshold.
func (p *Product) NeedsRestock() bool {
	return p.Quantity <= p.MinQuantity
}

// IsAvailable reports whether the product can be purchased.
func (p *Product) IsAvailable() bool {
	return p.Status == ProductStatusActive && p.Quantity > 0
}

// Product audit actions.
const (
	ProductActionCreate      = "create"
	ProductActionUpdate      = "update"
	ProductActionDelete      = "delete"
	ProductActionRestock     = "restock"
	ProductActionPriceChange = "price_change"
)

// ProductAuditLog is one immutable record of a mutating catalog action.
// Rows reference the product by plain id so the trail survives product
// deletion; entries are never updated or deleted.
type ProductAuditLog struct {
	ID        int64     `json:"id,string" gorm:"primaryKey"`
	ProductID int64     `gorm:"index:idx_product_audit_product_time" json:"product_id,string"`
	OprID     *int64    `json:"opr_id,string"`
	OprName   string    `gorm:"size:100" json:"opr_name"`
	Action    string    `gorm:"size:20;index" json:"action"`
	Changes   string    `gorm:"type:text" json:"changes"`
	Notes     string    `gorm:"type:text" json:"notes"`
	CreatedAt time.Time `gorm:"index:idx_product_audit_product_time" json:"created_at"`
}

// TableName Specify table name
func (ProductAuditLog) TableName() string {
	return "product_audit_log"
}
