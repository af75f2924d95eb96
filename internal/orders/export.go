package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/pkg/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ExportFilter narrows the CSV export by status and creation window.
// Limit caps the row count when positive.
type ExportFilter struct {
	Status domain.OrderStatus
	From   *time.Time
	To     *time.Time
	Limit  int
}

// ExportRow is one line of the orders CSV.
type ExportRow struct {
	OrderNumber    string `csv:"order_number"`
	CustomerName   string `csv:"customer_name"`
	CustomerEmail  string `csv:"customer_email"`
	Status         string `csv:"status"`
	ItemCount      int    `csv:"item_count"`
	TotalAmount    string `csv:"total_amount"`
	TaxAmount      string `csv:"tax_amount"`
	DiscountAmount string `csv:"discount_amount"`
	FinalAmount    string `csv:"final_amount"`
	CreatedAt      string `csv:"created_at"`
	CompletedAt    string `csv:"completed_at"`
}

// ExportStats summarizes one export run. Revenue excludes cancelled
// orders.
type ExportStats struct {
	Count    int             `json:"count"`
	Revenue  decimal.Decimal `json:"revenue"`
	Average  decimal.Decimal `json:"average"`
	ByStatus map[string]int  `json:"by_status"`
}

// ExportCSV renders the filtered orders as CSV and returns the summary
// statistics for the same set. Read-only.
func (s *Service) ExportCSV(ctx context.Context, filter ExportFilter) (string, *ExportStats, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return "", nil, fmt.Errorf("unknown status %q", string(filter.Status))
	}

	q := s.db.WithContext(ctx).Preload("Items").Order("created_at ASC")
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var list []domain.Order
	if err := q.Find(&list).Error; err != nil {
		return "", nil, err
	}

	rows := make([]*ExportRow, 0, len(list))
	stats := &ExportStats{ByStatus: map[string]int{}}
	revenue := decimal.Zero
	for i := range list {
		o := &list[i]
		completed := ""
		if o.CompletedAt != nil {
			completed = common.FmtDatetime(*o.CompletedAt)
		}
		rows = append(rows, &ExportRow{
			OrderNumber:    o.OrderNumber,
			CustomerName:   o.CustomerName,
			CustomerEmail:  o.CustomerEmail,
			Status:         string(o.Status),
			ItemCount:      len(o.Items),
			TotalAmount:    o.TotalAmount.StringFixed(2),
			TaxAmount:      o.TaxAmount.StringFixed(2),
			DiscountAmount: o.DiscountAmount.StringFixed(2),
			FinalAmount:    o.FinalAmount.StringFixed(2),
			CreatedAt:      common.FmtDatetime(o.CreatedAt),
			CompletedAt:    completed,
		})
		stats.ByStatus[string(o.Status)]++
		if o.Status != domain.OrderStatusCancelled {
			revenue = revenue.Add(o.FinalAmount)
		}
	}
	stats.Count = len(list)
	stats.Revenue = revenue
	if stats.Count > 0 {
		stats.Average = revenue.Div(decimal.NewFromInt(int64(stats.Count))).Round(2)
	}

	data, err := gocsv.MarshalString(&rows)
	if err != nil {
		return "", nil, err
	}

	zap.L().Info("orders exported",
		zap.Int("count", stats.Count),
		zap.String("revenue", stats.Revenue.StringFixed(2)),
		zap.String("average", stats.Average.StringFixed(2)))
	return data, stats, nil
}

// StatusCounts returns per-status order counts plus the overall total,
// shown on the order list view.
func (s *Service) StatusCounts(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&domain.Order{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := map[string]int64{"total": 0}
	for _, r := range rows {
		out[r.Status] = r.Count
		out["total"] += r.Count
	}
	return out, nil
}
