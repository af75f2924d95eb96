package audit

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Actor identifies who performed an audited action. ID is nil for
// unattended actions (schedulers, seed jobs); Name is stored as a
// snapshot so the trail stays readable after operator removal.
type Actor struct {
	ID   *int64
	Name string
}

// SystemActor is the identity recorded for unattended actions.
func SystemActor() Actor {
	return Actor{Name: "system"}
}

// OperatorActor builds an actor from an operator row.
func OperatorActor(opr *domain.SysOpr) Actor {
	if opr == nil {
		return SystemActor()
	}
	id := opr.ID
	name := opr.Username
	if name == "" {
		name = opr.Realname
	}
	return Actor{ID: &id, Name: name}
}

func marshalDetails(details interface{}) string {
	if details == nil {
		return ""
	}
	if s, ok := details.(string); ok {
		return s
	}
	b, err := json.Marshal(details)
	if err != nil {
		zap.S().Warnf("audit details marshal failed: %s", err.Error())
		return fmt.Sprintf("%v", details)
	}
	return string(b)
}

// RecordOrderAction appends one entry to the order trail inside tx.
// Callers pass the transaction that performs the audited change so the
// entry commits or rolls back together with it.
func RecordOrderAction(tx *gorm.DB, orderID int64, actor Actor, action string, details interface{}) error {
	entry := domain.OrderAuditLog{
		ID:        common.UUIDint64(),
		OrderID:   orderID,
		OprID:     actor.ID,
		OprName:   actor.Name,
		Action:    action,
		Details:   marshalDetails(details),
		CreatedAt: time.Now(),
	}
	return tx.Create(&entry).Error
}

// RecordProductAction appends one entry to the product trail inside tx.
func RecordProductAction(tx *gorm.DB, productID int64, actor Actor, action string, changes interface{}, notes string) error {
	entry := domain.ProductAuditLog{
		ID:        common.UUIDint64(),
		ProductID: productID,
		OprID:     actor.ID,
		OprName:   actor.Name,
		Action:    action,
		Changes:   marshalDetails(changes),
		Notes:     notes,
		CreatedAt: time.Now(),
	}
	return tx.Create(&entry).Error
}

// ListOrderTrail returns the order's audit entries oldest first.
func ListOrderTrail(db *gorm.DB, orderID int64) ([]domain.OrderAuditLog, error) {
	var entries []domain.OrderAuditLog
	err := db.Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

// ListProductTrail returns the product's audit entries oldest first.
// Entries reference the product by plain id, so the trail remains
// queryable after the product row is deleted.
func ListProductTrail(db *gorm.DB, productID int64) ([]domain.ProductAuditLog, error) {
	var entries []domain.ProductAuditLog
	err := db.Where("product_id = ?", productID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}
