package adminapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/orderdesk/orderdesk/internal/audit"
	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/orders"
	"github.com/orderdesk/orderdesk/internal/webserver"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

type orderPayload struct {
	CustomerName    string          `json:"customer_name" validate:"required,min=1,max=200"`
	CustomerEmail   string          `json:"customer_email" validate:"required,email,max=254"`
	CustomerPhone   string          `json:"customer_phone" validate:"omitempty,max=20"`
	CustomerAddress string          `json:"customer_address" validate:"omitempty,max=2000"`
	Notes           string          `json:"notes" validate:"omitempty,max=2000"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
}

type contactPayload struct {
	CustomerName    string `json:"customer_name" validate:"required,min=1,max=200"`
	CustomerEmail   string `json:"customer_email" validate:"required,email,max=254"`
	CustomerPhone   string `json:"customer_phone" validate:"omitempty,max=20"`
	CustomerAddress string `json:"customer_address" validate:"omitempty,max=2000"`
	Notes           string `json:"notes" validate:"omitempty,max=2000"`
}

type orderItemPayload struct {
	ProductID int64 `json:"product_id,string" validate:"required"`
	Quantity  int   `json:"quantity" validate:"required,min=1"`
}

type chargesPayload struct {
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

type statusPayload struct {
	Status string `json:"status" validate:"required,oneof=draft pending processing shipped delivered cancelled"`
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

type cancelPayload struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// registerOrderRoutes registers order lifecycle endpoints
func registerOrderRoutes() {
	webserver.ApiGET("/orders", listOrders)
	webserver.ApiGET("/orders/export", exportOrders)
	webserver.ApiGET("/orders/product-info", getProductInfo)
	webserver.ApiGET("/orders/:id", getOrder)
	webserver.ApiGET("/orders/:id/audit", listOrderAudit)
	webserver.ApiPOST("/orders", createOrder)
	webserver.ApiPUT("/orders/:id", updateOrderContact)
	webserver.ApiPUT("/orders/:id/charges", setOrderCharges)
	webserver.ApiPOST("/orders/:id/items", addOrderItem)
	webserver.ApiDELETE("/orders/:id/items/:itemId", removeOrderItem)
	webserver.ApiPOST("/orders/:id/status", changeOrderStatus)
	webserver.ApiPOST("/orders/:id/process", processOrder)
	webserver.ApiPOST("/orders/:id/ship", shipOrder)
	webserver.ApiPOST("/orders/:id/deliver", deliverOrder)
	webserver.ApiPOST("/orders/:id/cancel", cancelOrder)
}

func orderService(c echo.Context) *orders.Service {
	return orders.New(GetDB(c), GetAppContext(c))
}

// listOrders retrieves the order list with embedded status statistics
// @Summary get the order list
// @Tags Orders
// @Param page query int false "Page number"
// @Param perPage query int false "Items per page"
// @Param q query string false "Search in number, customer name and email"
// @Param status query string false "Status filter"
// @Success 200 {object} ListResponse
// @Router /api/v1/orders [get]
func listOrders(c echo.Context) error {
	page, pageSize := parsePagination(c)

	sortField := strings.TrimSpace(c.QueryParam("sort"))
	order := strings.ToUpper(strings.TrimSpace(c.QueryParam("order")))
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	// whitelist allowed sort columns to avoid SQL injection
	allowed := map[string]string{
		"id":           "id",
		"order_number": "order_number",
		"customer":     "customer_name",
		"status":       "status",
		"total":        "total_amount",
		"final":        "final_amount",
		"created_at":   "created_at",
		"updated_at":   "updated_at",
	}
	sortCol, found := allowed[sortField]
	if !found || sortCol == "" {
		sortCol = "created_at"
	}

	db := GetDB(c).Model(&domain.Order{})
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		if strings.EqualFold(db.Name(), "postgres") { //nolint:staticcheck
			db = db.Where("order_number ILIKE ? OR customer_name ILIKE ? OR customer_email ILIKE ?",
				"%"+q+"%", "%"+q+"%", "%"+q+"%")
		} else {
			lq := "%" + strings.ToLower(q) + "%"
			db = db.Where("LOWER(order_number) LIKE ? OR LOWER(customer_name) LIKE ? OR LOWER(customer_email) LIKE ?",
				lq, lq, lq)
		}
	}
	if status := strings.TrimSpace(c.QueryParam("status")); status != "" {
		db = db.Where("status = ?", status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query orders", err.Error())
	}

	var rows []domain.Order
	if err := db.Order(sortCol + " " + order).Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query orders", err.Error())
	}

	stats, err := orderService(c).StatusCounts(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query order statistics", err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":    rows,
		"total":   total,
		"page":    page,
		"perPage": pageSize,
		"stats":   stats,
	})
}

// getOrder returns the order with its items and audit trail
func getOrder(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}

	order, err := orderService(c).Get(c.Request().Context(), id)
	if err != nil {
		return serviceError(c, err)
	}
	trail, err := audit.ListOrderTrail(GetDB(c), id)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query order audit trail", err.Error())
	}
	reverseOrderTrail(trail)

	return ok(c, map[string]interface{}{
		"order": order,
		"audit": trail,
	})
}

func listOrderAudit(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	trail, err := audit.ListOrderTrail(GetDB(c), id)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query order audit trail", err.Error())
	}
	reverseOrderTrail(trail)
	return ok(c, trail)
}

// reverseOrderTrail flips the recorder's oldest-first order for display
func reverseOrderTrail(trail []domain.OrderAuditLog) {
	for i, j := 0, len(trail)-1; i < j; i, j = i+1, j-1 {
		trail[i], trail[j] = trail[j], trail[i]
	}
}

func createOrder(c echo.Context) error {
	var payload orderPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse order parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	order, err := orderService(c).Create(c.Request().Context(), orders.CreateOrderInput{
		CustomerName:    strings.TrimSpace(payload.CustomerName),
		CustomerEmail:   strings.TrimSpace(payload.CustomerEmail),
		CustomerPhone:   payload.CustomerPhone,
		CustomerAddress: payload.CustomerAddress,
		Notes:           payload.Notes,
		TaxAmount:       payload.TaxAmount,
		DiscountAmount:  payload.DiscountAmount,
	}, currentActor(c))
	if err != nil {
		return serviceError(c, err)
	}
	return ok(c, order)
}

func updateOrderContact(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	var payload contactPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse order parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	order, err := orderService(c).UpdateContact(c.Request().Context(), id, orders.ContactInput{
		CustomerName:    strings.TrimSpace(payload.CustomerName),
		CustomerEmail:   strings.TrimSpace(payload.CustomerEmail),
		CustomerPhone:   payload.CustomerPhone,
		CustomerAddress: payload.CustomerAddress,
		Notes:           payload.Notes,
	}, currentActor(c))
	if err != nil {
		return serviceError(c, err)
	}
	return ok(c, order)
}

func setOrderCharges(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	var payload chargesPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse charge parameters", err.Error())
	}

	order, err := orderService(c).SetCharges(c.Request().Context(), id,
		payload.TaxAmount, payload.DiscountAmount, currentActor(c))
	if err != nil {
		return serviceError(c, err)
	}
	return ok(c, order)
}

func addOrderItem(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	var payload orderItemPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse item parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	order, err := orderService(c).AddItem(c.Request().Context(), id, payload.ProductID, payload.Quantity, currentActor(c))
	if err != nil {
		return serviceError(c, err)
	}
	return ok(c, order)
}

func removeOrderItem(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	itemID, err := parseIDParam(c, "itemId")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid item ID", nil)
	}

	order, err := orderService(c).RemoveItem(c.Request().Context(), id, itemID, currentActor(c))
	if err != nil {
		return serviceError(c, err)
	}
	return ok(c, order)
}

// changeOrderStatus moves an order along the lifecycle table. Cancelled
// as target accepts an optional reason.
func changeOrderStatus(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	var payload statusPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse status parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	svc := orderService(c)
	actor := currentActor(c)
	target := domain.OrderStatus(payload.Status)

	var order *domain.Order
	if target == domain.OrderStatusCancelled {
		order, err = svc.Cancel(c.Request().Context(), id, actor, payload.Reason)
	} else {
		order, err = svc.Transition(c.Request().Context(), id, target, actor)
	}
	if err != nil {
		return serviceError(c, err)
	}
	return ok(c, order)
}

func processOrder(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	order, err := orderService(c).Process(c.Request().Context(), id, currentActor(c))
	if err != nil {
		return serviceError(c, err)
	}
	return ok(c, order)
}

func shipOrder(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	order, err := orderService(c).Ship(c.Request().Context(), id, currentActor(c))
	if err != nil {
		return serviceError(c, err)
	}
	return ok(c, order)
}

func deliverOrder(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	order, err := orderService(c).Deliver(c.Request().Context(), id, currentActor(c))
	if err != nil {
		return serviceError(c, err)
	}
	return ok(c, order)
}

func cancelOrder(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
	}
	var payload cancelPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse cancel parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	order, err := orderService(c).Cancel(c.Request().Context(), id, currentActor(c), payload.Reason)
	if err != nil {
		return serviceError(c, err)
	}
	return ok(c, order)
}

// exportOrders streams the filtered orders as a CSV attachment
// @Summary export orders as CSV
// @Tags Orders
// @Param status query string false "Status filter"
// @Param from query string false "Creation date lower bound (YYYY-MM-DD)"
// @Param to query string false "Creation date upper bound (YYYY-MM-DD, inclusive)"
// @Router /api/v1/orders/export [get]
func exportOrders(c echo.Context) error {
	filter := orders.ExportFilter{
		Status: domain.OrderStatus(strings.TrimSpace(c.QueryParam("status"))),
	}
	if from := strings.TrimSpace(c.QueryParam("from")); from != "" {
		t, err := time.ParseInLocation("2006-01-02", from, time.Local)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_DATE", "Invalid from date, want YYYY-MM-DD", nil)
		}
		filter.From = &t
	}
	if to := strings.TrimSpace(c.QueryParam("to")); to != "" {
		t, err := time.ParseInLocation("2006-01-02", to, time.Local)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_DATE", "Invalid to date, want YYYY-MM-DD", nil)
		}
		// inclusive end of day
		t = t.Add(24*time.Hour - time.Second)
		filter.To = &t
	}
	if limit := GetAppContext(c).GetSettingsInt64Value("orders", "export_limit"); limit > 0 {
		filter.Limit = int(limit)
	}

	data, _, err := orderService(c).ExportCSV(c.Request().Context(), filter)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "EXPORT_FAILED", "Failed to export orders", err.Error())
	}

	filename := fmt.Sprintf("orders-%s.csv", time.Now().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+filename)
	return c.Blob(http.StatusOK, "text/csv", []byte(data))
}

// getProductInfo returns the price and availability snapshot the order
// form needs when picking a product
// @Summary lookup product price and stock
// @Tags Orders
// @Param product_id query string true "Product ID"
// @Router /api/v1/orders/product-info [get]
func getProductInfo(c echo.Context) error {
	productID := cast.ToInt64(c.QueryParam("product_id"))
	if productID == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var p domain.Product
	if err := GetDB(c).First(&p, productID).Error; err != nil {
		return fail(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found", nil)
	}
	return ok(c, map[string]interface{}{
		"price":     p.Price,
		"stock":     p.Quantity,
		"available": p.IsAvailable(),
	})
}
