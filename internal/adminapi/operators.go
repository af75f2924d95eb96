package adminapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/webserver"
	"github.com/orderdesk/orderdesk/pkg/common"
)

type operatorPayload struct {
	Username string `json:"username" validate:"required,min=1,max=50"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	Realname string `json:"realname" validate:"required,min=1,max=100"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Mobile   string `json:"mobile" validate:"omitempty,max=20"`
	Level    string `json:"level" validate:"required,oneof=super admin staff"`
	Status   string `json:"status" validate:"omitempty,oneof=enabled disabled"`
	Remark   string `json:"remark" validate:"omitempty,max=500"`
}

type operatorUpdatePayload struct {
	Password *string `json:"password" validate:"omitempty,min=6,max=128"`
	Realname *string `json:"realname" validate:"omitempty,min=1,max=100"`
	Email    *string `json:"email" validate:"omitempty,email,max=254"`
	Mobile   *string `json:"mobile" validate:"omitempty,max=20"`
	Level    *string `json:"level" validate:"omitempty,oneof=super admin staff"`
	Status   *string `json:"status" validate:"omitempty,oneof=enabled disabled"`
	Remark   *string `json:"remark" validate:"omitempty,max=500"`
}

// registerOperatorRoutes registers operator account CRUD routes
func registerOperatorRoutes() {
	webserver.ApiGET("/system/operators", listOperators)
	webserver.ApiGET("/system/operators/:id", getOperator)
	webserver.ApiPOST("/system/operators", createOperator)
	webserver.ApiPUT("/system/operators/:id", updateOperator)
	webserver.ApiDELETE("/system/operators/:id", deleteOperator)
}

func listOperators(c echo.Context) error {
	page, pageSize := parsePagination(c)

	db := GetDB(c).Model(&domain.SysOpr{})
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		if strings.EqualFold(db.Name(), "postgres") { //nolint:staticcheck
			db = db.Where("username ILIKE ? OR realname ILIKE ? OR email ILIKE ?",
				"%"+q+"%", "%"+q+"%", "%"+q+"%")
		} else {
			lq := "%" + strings.ToLower(q) + "%"
			db = db.Where("LOWER(username) LIKE ? OR LOWER(realname) LIKE ? OR LOWER(email) LIKE ?", lq, lq, lq)
		}
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operators", err.Error())
	}

	var oprs []domain.SysOpr
	if err := db.Order("id DESC").Offset((page-1)*pageSize).Limit(pageSize).Find(&oprs).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operators", err.Error())
	}
	for i := range oprs {
		oprs[i].Password = ""
	}

	return paged(c, oprs, total, page, pageSize)
}

func getOperator(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid operator ID", nil)
	}

	var opr domain.SysOpr
	if err := GetDB(c).Where("id = ?", id).First(&opr).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "OPERATOR_NOT_FOUND", "Operator not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operator", err.Error())
	}
	opr.Password = ""

	return ok(c, opr)
}

func createOperator(c echo.Context) error {
	var payload operatorPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse operator parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	payload.Username = strings.TrimSpace(payload.Username)

	var exists int64
	GetDB(c).Model(&domain.SysOpr{}).Where("username = ?", payload.Username).Count(&exists)
	if exists > 0 {
		return fail(c, http.StatusConflict, "OPERATOR_EXISTS", "Username already exists", nil)
	}

	hash, err := common.HashPassword(payload.Password)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "HASH_FAILED", "Failed to hash password", err.Error())
	}

	opr := domain.SysOpr{
		ID:        common.UUIDint64(),
		Username:  payload.Username,
		Password:  hash,
		Realname:  strings.TrimSpace(payload.Realname),
		Email:     common.IfEmptyStr(payload.Email, common.NA),
		Mobile:    common.IfEmptyStr(payload.Mobile, common.NA),
		Level:     payload.Level,
		Status:    common.IfEmptyStr(payload.Status, common.ENABLED),
		Remark:    payload.Remark,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := GetDB(c).Create(&opr).Error; errors.Is(err, gorm.ErrDuplicatedKey) {
		return fail(c, http.StatusConflict, "OPERATOR_EXISTS", "Username already exists", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create operator", err.Error())
	}
	opr.Password = ""

	return ok(c, opr)
}

func updateOperator(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid operator ID", nil)
	}

	var payload operatorUpdatePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse operator parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	var opr domain.SysOpr
	if err := GetDB(c).Where("id = ?", id).First(&opr).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "OPERATOR_NOT_FOUND", "Operator not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operator", err.Error())
	}

	if strings.EqualFold(opr.Level, "super") {
		// The built-in super account cannot be demoted or disabled
		if payload.Level != nil && !strings.EqualFold(*payload.Level, "super") {
			return fail(c, http.StatusConflict, "OPERATOR_PROTECTED", "The super operator level cannot be changed", nil)
		}
		if payload.Status != nil && !strings.EqualFold(*payload.Status, common.ENABLED) {
			return fail(c, http.StatusConflict, "OPERATOR_PROTECTED", "The super operator cannot be disabled", nil)
		}
	}

	if payload.Password != nil {
		hash, err := common.HashPassword(*payload.Password)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "HASH_FAILED", "Failed to hash password", err.Error())
		}
		opr.Password = hash
	}
	if payload.Realname != nil {
		opr.Realname = strings.TrimSpace(*payload.Realname)
	}
	if payload.Email != nil {
		opr.Email = common.IfEmptyStr(*payload.Email, common.NA)
	}
	if payload.Mobile != nil {
		opr.Mobile = common.IfEmptyStr(*payload.Mobile, common.NA)
	}
	if payload.Level != nil {
		opr.Level = *payload.Level
	}
	if payload.Status != nil {
		opr.Status = *payload.Status
	}
	if payload.Remark != nil {
		opr.Remark = *payload.Remark
	}
	opr.UpdatedAt = time.Now()

	if err := GetDB(c).Save(&opr).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update operator", err.Error())
	}
	opr.Password = ""

	return ok(c, opr)
}

func deleteOperator(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid operator ID", nil)
	}

	var opr domain.SysOpr
	if err := GetDB(c).Where("id = ?", id).First(&opr).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "OPERATOR_NOT_FOUND", "Operator not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operator", err.Error())
	}

	if strings.EqualFold(opr.Level, "super") {
		return fail(c, http.StatusConflict, "OPERATOR_PROTECTED", "The super operator cannot be deleted", nil)
	}

	if err := GetDB(c).Where("id = ?", id).Delete(&domain.SysOpr{}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete operator", err.Error())
	}

	return ok(c, map[string]interface{}{"id": id})
}
