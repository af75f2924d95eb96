package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/inventory"
	"github.com/orderdesk/orderdesk/internal/orders"
	"go.uber.org/zap"
)

// StartSchedulerService runs enabled schedulers periodically
func (a *Application) StartSchedulerService(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.runSchedulers()
			}
		}
	}()
}

// runSchedulers executes enabled schedulers
func (a *Application) runSchedulers() {
	var schedulers []domain.SysScheduler
	a.gormDB.Where("status = ?", "enabled").Find(&schedulers)
	now := time.Now()
	for _, sched := range schedulers {
		// Only run if now >= next_run_at
		if sched.NextRunAt.IsZero() || now.After(sched.NextRunAt) || now.Equal(sched.NextRunAt) {
			a.runSchedulerTask(&sched)
			// Update next_run_at
			a.gormDB.Model(&domain.SysScheduler{}).Where("id = ?", sched.ID).
				Update("next_run_at", now.Add(time.Duration(sched.Interval)*time.Second))
		}
	}
}

func (a *Application) runSchedulerTask(sched *domain.SysScheduler) {
	switch sched.TaskType {
	case "low_stock_scan":
		a.runLowStockScheduler(sched)
	case "order_stats":
		a.runOrderStatsScheduler(sched)
	// Add more task types here
	default:
		zap.L().Warn("unknown scheduler task type",
			zap.Int64("scheduler_id", sched.ID),
			zap.String("task_type", sched.TaskType))
	}
}

// runLowStockScheduler scans for products at or below their minimum
// quantity and records the outcome on the scheduler row.
func (a *Application) runLowStockScheduler(sched *domain.SysScheduler) {
	rows, err := inventory.New(a.gormDB).ScanLowStock(context.Background())
	if err != nil {
		zap.L().Error("low stock scan failed", zap.Int64("scheduler_id", sched.ID), zap.Error(err))
		a.finishSchedulerRun(sched, "failed", err.Error())
		return
	}

	msg := fmt.Sprintf("%d products at or below minimum", len(rows))
	zap.L().Info("low stock scan completed",
		zap.Int64("scheduler_id", sched.ID),
		zap.Int("low_products", len(rows)))
	a.finishSchedulerRun(sched, "success", msg)
}

// runOrderStatsScheduler logs an order count snapshot per status.
func (a *Application) runOrderStatsScheduler(sched *domain.SysScheduler) {
	counts, err := orders.New(a.gormDB, a).StatusCounts(context.Background())
	if err != nil {
		zap.L().Error("order stats snapshot failed", zap.Int64("scheduler_id", sched.ID), zap.Error(err))
		a.finishSchedulerRun(sched, "failed", err.Error())
		return
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
		fields = append(fields, zap.Int64(k, counts[k]))
	}

	zap.L().Info("order statistics snapshot", fields...)
	a.finishSchedulerRun(sched, "success", strings.Join(parts, " "))
}

func (a *Application) finishSchedulerRun(sched *domain.SysScheduler, result, message string) {
	a.gormDB.Model(&domain.SysScheduler{}).Where("id = ?", sched.ID).Updates(map[string]interface{}{
		"last_run_at":  time.Now(),
		"last_result":  result,
		"last_message": message,
	})
}

// RunSchedulerNow triggers a scheduler execution immediately by ID
func (a *Application) RunSchedulerNow(id int64) error {
	var sched domain.SysScheduler
	if err := a.gormDB.First(&sched, id).Error; err != nil {
		return err
	}

	a.runSchedulerTask(&sched)

	// update next run
	now := time.Now()
	a.gormDB.Model(&domain.SysScheduler{}).Where("id = ?", sched.ID).
		Update("next_run_at", now.Add(time.Duration(sched.Interval)*time.Second))
	return nil
}
