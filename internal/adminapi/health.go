package adminapi

import (
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/webserver"
)

// registerHealthRoutes registers the unauthenticated health probe
func registerHealthRoutes() {
	webserver.ApiGET("/health", healthCheck)
}

// healthCheck reports service liveness, database reachability and basic
// entity counts.
// @Summary health probe
// @Tags System
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/health [get]
func healthCheck(c echo.Context) error {
	status := "ok"
	dbStatus := "ok"

	db := GetDB(c)
	sqlDB, err := db.DB()
	if err != nil {
		dbStatus = err.Error()
		status = "degraded"
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = err.Error()
		status = "degraded"
	}

	counts := map[string]int64{}
	if dbStatus == "ok" {
		for name, model := range map[string]interface{}{
			"products":   &domain.Product{},
			"orders":     &domain.Order{},
			"categories": &domain.Category{},
			"operators":  &domain.SysOpr{},
		} {
			var n int64
			db.Model(model).Count(&n)
			counts[name] = n
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}

	return c.JSON(code, map[string]interface{}{
		"status":   status,
		"database": dbStatus,
		"counts":   counts,
		"go":       runtime.Version(),
		"time":     time.Now().Format(time.RFC3339),
	})
}
