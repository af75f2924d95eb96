package app

import (
	"fmt"
	"strings"

	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/pkg/common"
	"github.com/spf13/cast"
)

// defaultSettings are seeded into sys_config on first start and
// whenever a row goes missing. Values are editable through the API.
var defaultSettings = []domain.SysConfig{
	{Sort: 101, Type: "system", Name: "oprlog_retention_days", Value: "365", Remark: "Operator action log retention in days"},
	{Sort: 102, Type: "web", Name: "jwt_expire_hours", Value: "24", Remark: "Admin token lifetime in hours"},
	{Sort: 201, Type: "orders", Name: "number_prefix", Value: "ORD", Remark: "Order number prefix"},
	{Sort: 202, Type: "orders", Name: "export_limit", Value: "10000", Remark: "Maximum rows per CSV export"},
}

// ConfigManager reads and writes the runtime settings stored in
// sys_config. Values are fetched on demand so edits through the API
// take effect without a restart.
type ConfigManager struct {
	app *Application
}

func NewConfigManager(app *Application) *ConfigManager {
	return &ConfigManager{app: app}
}

func (cm *ConfigManager) GetValue(ctype, name string) string {
	var value string
	cm.app.gormDB.Model(&domain.SysConfig{}).
		Where("type = ? AND name = ?", ctype, name).
		Limit(1).Pluck("value", &value)
	return value
}

func (cm *ConfigManager) GetString(ctype, name string) string {
	return cm.GetValue(ctype, name)
}

func (cm *ConfigManager) GetInt(ctype, name string) int {
	return cast.ToInt(cm.GetValue(ctype, name))
}

func (cm *ConfigManager) GetInt64(ctype, name string) int64 {
	return cast.ToInt64(cm.GetValue(ctype, name))
}

func (cm *ConfigManager) GetBool(ctype, name string) bool {
	return cast.ToBool(cm.GetValue(ctype, name))
}

// SetValue updates an existing setting or inserts a new row.
func (cm *ConfigManager) SetValue(ctype, name, value string) error {
	db := cm.app.gormDB
	res := db.Model(&domain.SysConfig{}).
		Where("type = ? AND name = ?", ctype, name).
		Update("value", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.Create(&domain.SysConfig{
			ID:    common.UUIDint64(),
			Type:  ctype,
			Name:  name,
			Value: value,
		}).Error
	}
	return nil
}

// SaveValues persists a settings map keyed by "type.name".
func (cm *ConfigManager) SaveValues(values map[string]interface{}) error {
	for key, val := range values {
		parts := strings.SplitN(key, ".", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid settings key %q, want type.name", key)
		}
		if err := cm.SetValue(parts[0], parts[1], cast.ToString(val)); err != nil {
			return err
		}
	}
	return nil
}
