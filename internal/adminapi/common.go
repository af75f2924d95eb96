package adminapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/orderdesk/orderdesk/internal/app"
	"github.com/orderdesk/orderdesk/internal/audit"
	"github.com/orderdesk/orderdesk/internal/inventory"
	"github.com/orderdesk/orderdesk/internal/orders"
	"github.com/orderdesk/orderdesk/internal/webserver"
	"github.com/spf13/cast"
	"gorm.io/gorm"
)

// ListResponse is the paged list envelope
type ListResponse struct {
	Data    interface{} `json:"data"`
	Total   int64       `json:"total"`
	Page    int         `json:"page"`
	PerPage int         `json:"perPage"`
}

// ErrorResponse is the error envelope
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Detail  interface{} `json:"detail,omitempty"`
}

// InitRouter registers all admin api routes. The webserver must be
// initialized first.
func InitRouter() {
	registerAuthRoutes()
	registerHealthRoutes()
	registerCategoryRoutes()
	registerProductRoutes()
	registerOrderRoutes()
	registerOperatorRoutes()
	registerSettingsRoutes()
	registerSchedulerRoutes()
	registerOprlogRoutes()
}

// GetAppContext returns the application context injected by the webserver
func GetAppContext(c echo.Context) app.AppContext {
	return c.Get(webserver.AppContextKey).(app.AppContext)
}

// GetDB returns the request database handle
func GetDB(c echo.Context) *gorm.DB {
	return GetAppContext(c).DB()
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

func fail(c echo.Context, status int, code, message string, detail interface{}) error {
	return c.JSON(status, ErrorResponse{Code: code, Message: message, Detail: detail})
}

func paged(c echo.Context, data interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, ListResponse{Data: data, Total: total, Page: page, PerPage: pageSize})
}

func parsePagination(c echo.Context) (page, pageSize int) {
	page = 1
	pageSize = 20
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		page = p
	}
	ps := c.QueryParam("perPage")
	if ps == "" {
		ps = c.QueryParam("pageSize")
	}
	if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 500 {
		pageSize = v
	}
	return page, pageSize
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}

func handleValidationError(c echo.Context, err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		details := make([]string, 0, len(ve))
		for _, fe := range ve {
			details = append(details, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
		}
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", details)
	}
	return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", err.Error())
}

// currentActor resolves the acting operator from the token claims. Calls
// arriving without claims (seed paths, tests) act as the system.
func currentActor(c echo.Context) audit.Actor {
	username := cast.ToString(c.Get(webserver.OperatorUsernameKey))
	if username == "" {
		return audit.SystemActor()
	}
	actor := audit.Actor{Name: username}
	if id := cast.ToInt64(c.Get(webserver.OperatorIdKey)); id != 0 {
		actor.ID = &id
	}
	return actor
}

// serviceError maps domain errors to API failures
func serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		return fail(c, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found", nil)
	case errors.Is(err, inventory.ErrProductNotFound):
		return fail(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found", nil)
	case errors.Is(err, orders.ErrItemNotFound):
		return fail(c, http.StatusNotFound, "ITEM_NOT_FOUND", "Order item not found", nil)
	case errors.Is(err, orders.ErrOrderNotModifiable):
		return fail(c, http.StatusConflict, "ORDER_NOT_MODIFIABLE", "Order can no longer be modified", err.Error())
	case errors.Is(err, orders.ErrInvalidTransition):
		return fail(c, http.StatusConflict, "INVALID_TRANSITION", "Illegal status transition", err.Error())
	case errors.Is(err, inventory.ErrInsufficientStock):
		return fail(c, http.StatusConflict, "INSUFFICIENT_STOCK", "Not enough stock to fulfil the order", err.Error())
	case errors.Is(err, inventory.ErrProductInUse):
		return fail(c, http.StatusConflict, "PRODUCT_IN_USE", "Product is referenced by order items", nil)
	case errors.Is(err, orders.ErrInvalidQuantity), errors.Is(err, inventory.ErrInvalidQuantity):
		return fail(c, http.StatusBadRequest, "INVALID_QUANTITY", "Quantity must be a positive integer", nil)
	case errors.Is(err, orders.ErrInvalidAmount):
		return fail(c, http.StatusBadRequest, "INVALID_AMOUNT", "Amounts must not be negative", nil)
	default:
		return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Operation failed", err.Error())
	}
}
