package orders

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/orderdesk/orderdesk/internal/domain"
	"gorm.io/gorm"
)

// DefaultNumberPrefix is used when no orders.number_prefix setting is
// configured.
const DefaultNumberPrefix = "ORD"

const (
	orderNumberDateFormat = "20060102"

	// How often a creation is retried when two transactions allocate
	// the same number for the same day. The unique index on
	// order_number arbitrates; the loser just re-reads and retries.
	numberAllocRetries = 5
)

// nextOrderNumber derives PREFIX-YYYYMMDD-NNNN where NNNN is one more
// than the highest sequence already persisted for that calendar day.
// Zero-padding keeps lexicographic and numeric order aligned, so the
// day's maximum is simply the last number in sort order.
func nextOrderNumber(tx *gorm.DB, prefix string, day time.Time) (string, error) {
	datePrefix := fmt.Sprintf("%s-%s-", prefix, day.Format(orderNumberDateFormat))

	var numbers []string
	err := tx.Model(&domain.Order{}).
		Where("order_number LIKE ?", datePrefix+"%").
		Order("order_number DESC").
		Limit(1).
		Pluck("order_number", &numbers).Error
	if err != nil {
		return "", err
	}

	seq := 1
	if len(numbers) > 0 {
		if n, err := strconv.Atoi(strings.TrimPrefix(numbers[0], datePrefix)); err == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", datePrefix, seq), nil
}
