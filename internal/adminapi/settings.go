package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/webserver"
)

// registerSettingsRoutes registers system configuration routes
func registerSettingsRoutes() {
	webserver.ApiGET("/system/settings", listSettings)
	webserver.ApiPUT("/system/settings", saveSettings)
}

// listSettings returns all configuration rows grouped by type,
// ordered the way the settings page renders them.
func listSettings(c echo.Context) error {
	db := GetDB(c).Model(&domain.SysConfig{})
	if ctype := strings.TrimSpace(c.QueryParam("type")); ctype != "" {
		db = db.Where("type = ?", ctype)
	}

	var rows []domain.SysConfig
	if err := db.Order("sort ASC, id ASC").Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query settings", err.Error())
	}

	grouped := map[string][]domain.SysConfig{}
	for _, row := range rows {
		grouped[row.Type] = append(grouped[row.Type], row)
	}

	return ok(c, grouped)
}

// saveSettings updates configuration values. The body is a flat map of
// "type.name" keys to values.
func saveSettings(c echo.Context) error {
	var values map[string]interface{}
	if err := c.Bind(&values); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse settings parameters", err.Error())
	}
	if len(values) == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "No settings provided", nil)
	}

	if err := GetAppContext(c).SaveSettings(values); err != nil {
		return fail(c, http.StatusBadRequest, "SETTINGS_SAVE_FAILED", "Failed to save settings", err.Error())
	}

	return ok(c, map[string]interface{}{"updated": len(values)})
}
