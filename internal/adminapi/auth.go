package adminapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/webserver"
	"github.com/orderdesk/orderdesk/pkg/common"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type loginPayload struct {
	Username string `json:"username" validate:"required,min=1,max=50"`
	Password string `json:"password" validate:"required,min=1,max=128"`
}

func registerAuthRoutes() {
	webserver.ApiPOST("/auth/login", login)
	webserver.ApiGET("/auth/profile", profile)
}

// login verifies operator credentials and issues a signed token
func login(c echo.Context) error {
	var payload loginPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse login parameters", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	// operators may sign in with their username or their email address
	ident := strings.TrimSpace(payload.Username)
	var opr domain.SysOpr
	err := GetDB(c).Where("username = ? OR email = ?", ident, ident).First(&opr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operator", err.Error())
	}
	if !strings.EqualFold(opr.Status, common.ENABLED) {
		return fail(c, http.StatusForbidden, "OPERATOR_DISABLED", "Operator account is disabled", nil)
	}
	if !common.CheckPassword(opr.Password, payload.Password) {
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
	}

	appCtx := GetAppContext(c)
	expireHours := appCtx.GetSettingsInt64Value("web", "jwt_expire_hours")
	if expireHours <= 0 {
		expireHours = 24
	}

	claims := jwt.MapClaims{
		"uid": strconv.FormatInt(opr.ID, 10),
		"usr": opr.Username,
		"lvl": opr.Level,
		"exp": time.Now().Add(time.Duration(expireHours) * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(appCtx.Config().Web.Secret))
	if err != nil {
		return fail(c, http.StatusInternalServerError, "TOKEN_ERROR", "Failed to sign token", err.Error())
	}

	now := time.Now()
	GetDB(c).Model(&domain.SysOpr{}).Where("id = ?", opr.ID).Update("last_login", now)
	GetDB(c).Create(&domain.SysOprLog{
		ID:        common.UUIDint64(),
		OprName:   opr.Username,
		OprIp:     c.RealIP(),
		OptAction: "login",
		OptDesc:   "admin api login",
		OptTime:   now,
	})
	zap.L().Info("operator login",
		zap.String("username", opr.Username),
		zap.String("ip", c.RealIP()))

	return ok(c, map[string]interface{}{
		"token":    signed,
		"username": opr.Username,
		"realname": opr.Realname,
		"level":    opr.Level,
	})
}

// profile returns the operator bound to the current token
func profile(c echo.Context) error {
	username := cast.ToString(c.Get(webserver.OperatorUsernameKey))
	if username == "" {
		return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "No operator claims in token", nil)
	}
	var opr domain.SysOpr
	if err := GetDB(c).Where("username = ?", username).First(&opr).Error; err != nil {
		return fail(c, http.StatusNotFound, "OPERATOR_NOT_FOUND", "Operator not found", nil)
	}
	opr.Password = ""
	return ok(c, &opr)
}
