package adminapi_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderdesk/orderdesk/config"
	"github.com/orderdesk/orderdesk/internal/adminapi"
	"github.com/orderdesk/orderdesk/internal/app"
	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/testutil"
	"github.com/orderdesk/orderdesk/internal/webserver"
	"github.com/orderdesk/orderdesk/pkg/common"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// setupAPI wires a fresh application, database and router for one test.
// The webserver holds a process global, so these tests must not run in
// parallel.
func setupAPI(t *testing.T) (*echo.Echo, *app.Application) {
	t.Helper()
	cfg := new(config.AppConfig)
	*cfg = *config.DefaultAppConfig
	cfg.System.DemoData = false
	a := app.NewApplication(cfg)
	a.OverrideDB(testutil.OpenTestDB(t))
	webserver.Init(a)
	adminapi.InitRouter()
	return webserver.Router(), a
}

func seedOperator(t *testing.T, a *app.Application, username, password, level string) {
	t.Helper()
	hash, err := common.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, a.DB().Create(&domain.SysOpr{
		ID:       common.UUIDint64(),
		Username: username,
		Password: hash,
		Realname: "Test Operator",
		Email:    common.NA,
		Level:    level,
		Status:   common.ENABLED,
	}).Error)
}

func doJSON(e *echo.Echo, method, target, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func loginToken(t *testing.T, e *echo.Echo, username, password string) string {
	t.Helper()
	rec := doJSON(e, http.MethodPost, "/api/v1/auth/login", "",
		fmt.Sprintf(`{"username":%q,"password":%q}`, username, password))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func TestHealth_NoTokenRequired(t *testing.T) {
	e, _ := setupAPI(t)

	rec := doJSON(e, http.MethodGet, "/api/v1/health", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "ok", out["database"])
}

func TestLogin_IssuesTokenAndWritesLog(t *testing.T) {
	e, a := setupAPI(t)
	seedOperator(t, a, "admin", "let-me-in", "super")

	rec := doJSON(e, http.MethodPost, "/api/v1/auth/login", "",
		`{"username":"admin","password":"let-me-in"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotEmpty(t, out["token"])
	assert.Equal(t, "admin", out["username"])
	assert.Equal(t, "super", out["level"])

	var logs int64
	a.DB().Model(&domain.SysOprLog{}).
		Where("opr_name = ? AND opt_action = ?", "admin", "login").
		Count(&logs)
	assert.EqualValues(t, 1, logs)
}

func TestLogin_WrongPasswordRejected(t *testing.T) {
	e, a := setupAPI(t)
	seedOperator(t, a, "admin", "let-me-in", "super")

	rec := doJSON(e, http.MethodPost, "/api/v1/auth/login", "",
		`{"username":"admin","password":"wrong"}`)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_CREDENTIALS")
}

func TestLogin_DisabledOperatorRejected(t *testing.T) {
	e, a := setupAPI(t)
	seedOperator(t, a, "parttime", "let-me-in", "staff")
	a.DB().Model(&domain.SysOpr{}).
		Where("username = ?", "parttime").
		Update("status", common.DISABLED)

	rec := doJSON(e, http.MethodPost, "/api/v1/auth/login", "",
		`{"username":"parttime","password":"let-me-in"}`)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "OPERATOR_DISABLED")
}

func TestAPI_RequiresToken(t *testing.T) {
	e, _ := setupAPI(t)

	// echo-jwt answers a missing token with 400 and a bad token with 401
	rec := doJSON(e, http.MethodGet, "/api/v1/catalog/products", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/v1/catalog/products", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProductLifecycleOverHTTP(t *testing.T) {
	e, a := setupAPI(t)
	seedOperator(t, a, "admin", "let-me-in", "super")
	token := loginToken(t, e, "admin", "let-me-in")

	createBody := `{"sku":"SKU-1001","name":"Mechanical Keyboard","price":"79.90","cost":"41.00","quantity":20,"min_quantity":5}`
	rec := doJSON(e, http.MethodPost, "/api/v1/catalog/products", token, createBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created domain.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotZero(t, created.ID)
	assert.Equal(t, 20, created.Quantity)
	assert.Equal(t, domain.ProductStatusActive, created.Status)

	rec = doJSON(e, http.MethodPost, "/api/v1/catalog/products", token, createBody)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "SKU_EXISTS")

	rec = doJSON(e, http.MethodPost,
		fmt.Sprintf("/api/v1/catalog/products/%d/restock", created.ID), token,
		`{"quantity":15,"notes":"weekly delivery"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var restocked domain.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &restocked))
	assert.Equal(t, 35, restocked.Quantity)

	rec = doJSON(e, http.MethodGet, "/api/v1/catalog/products?q=keyboard", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list adminapi.ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.EqualValues(t, 1, list.Total)

	// trail endpoint lists newest first and carries the operator name
	rec = doJSON(e, http.MethodGet,
		fmt.Sprintf("/api/v1/catalog/products/%d/audit", created.ID), token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var trail []domain.ProductAuditLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trail))
	require.Len(t, trail, 2)
	assert.Equal(t, domain.ProductActionRestock, trail[0].Action)
	assert.Equal(t, domain.ProductActionCreate, trail[1].Action)
	assert.Equal(t, "admin", trail[0].OprName)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	e, a := setupAPI(t)
	seedOperator(t, a, "admin", "let-me-in", "super")
	token := loginToken(t, e, "admin", "let-me-in")

	rec := doJSON(e, http.MethodPost, "/api/v1/catalog/products", token,
		`{"sku":"SKU-2001","name":"USB Hub","price":"25.00","cost":"9.50","quantity":10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var product domain.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &product))

	// static segment must win over the :id route
	rec = doJSON(e, http.MethodGet,
		fmt.Sprintf("/api/v1/orders/product-info?product_id=%d", product.ID), token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"available":true`)

	rec = doJSON(e, http.MethodPost, "/api/v1/orders", token,
		`{"customer_name":"Alice Example","customer_email":"alice@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var order domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	require.NotZero(t, order.ID)
	assert.Equal(t, domain.OrderStatusDraft, order.Status)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"), order.OrderNumber)

	rec = doJSON(e, http.MethodPost,
		fmt.Sprintf("/api/v1/orders/%d/items", order.ID), token,
		fmt.Sprintf(`{"product_id":"%d","quantity":3}`, product.ID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("75")), order.TotalAmount)

	rec = doJSON(e, http.MethodPost,
		fmt.Sprintf("/api/v1/orders/%d/status", order.ID), token,
		`{"status":"pending"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(e, http.MethodPost,
		fmt.Sprintf("/api/v1/orders/%d/process", order.ID), token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var stocked domain.Product
	require.NoError(t, a.DB().First(&stocked, product.ID).Error)
	assert.Equal(t, 7, stocked.Quantity)

	// skipping the shipped state is refused
	rec = doJSON(e, http.MethodPost,
		fmt.Sprintf("/api/v1/orders/%d/deliver", order.ID), token, "")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_TRANSITION")

	rec = doJSON(e, http.MethodPost,
		fmt.Sprintf("/api/v1/orders/%d/cancel", order.ID), token,
		`{"reason":"customer changed mind"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NoError(t, a.DB().First(&stocked, product.ID).Error)
	assert.Equal(t, 10, stocked.Quantity, "cancel must return reserved stock")

	rec = doJSON(e, http.MethodGet,
		fmt.Sprintf("/api/v1/orders/%d", order.ID), token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"order"`)
	assert.Contains(t, body, `"audit"`)
	assert.Contains(t, body, "customer changed mind")
}

func TestAddItem_InsufficientStockOverHTTP(t *testing.T) {
	e, a := setupAPI(t)
	seedOperator(t, a, "admin", "let-me-in", "super")
	token := loginToken(t, e, "admin", "let-me-in")

	rec := doJSON(e, http.MethodPost, "/api/v1/catalog/products", token,
		`{"sku":"SKU-3001","name":"HDMI Cable","price":"8.00","cost":"2.00","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var product domain.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &product))

	rec = doJSON(e, http.MethodPost, "/api/v1/orders", token,
		`{"customer_name":"Bob Example","customer_email":"bob@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var order domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))

	rec = doJSON(e, http.MethodPost,
		fmt.Sprintf("/api/v1/orders/%d/items", order.ID), token,
		fmt.Sprintf(`{"product_id":"%d","quantity":5}`, product.ID))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "INSUFFICIENT_STOCK")
}

func TestListOrders_EnvelopeCarriesStats(t *testing.T) {
	e, a := setupAPI(t)
	seedOperator(t, a, "admin", "let-me-in", "super")
	token := loginToken(t, e, "admin", "let-me-in")

	for i := 0; i < 2; i++ {
		rec := doJSON(e, http.MethodPost, "/api/v1/orders", token,
			fmt.Sprintf(`{"customer_name":"Customer %d","customer_email":"c%d@example.com"}`, i, i))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := doJSON(e, http.MethodGet, "/api/v1/orders", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Data  []domain.Order   `json:"data"`
		Total int64            `json:"total"`
		Stats map[string]int64 `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.EqualValues(t, 2, out.Total)
	assert.Len(t, out.Data, 2)
	assert.EqualValues(t, 2, out.Stats["draft"])
	assert.EqualValues(t, 2, out.Stats["total"])
}

func TestCreateOrder_ValidationDetail(t *testing.T) {
	e, a := setupAPI(t)
	seedOperator(t, a, "admin", "let-me-in", "super")
	token := loginToken(t, e, "admin", "let-me-in")

	rec := doJSON(e, http.MethodPost, "/api/v1/orders", token,
		`{"customer_name":"Bob"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
	assert.Contains(t, rec.Body.String(), "CustomerEmail")
}

func TestSettingsRoundTripOverHTTP(t *testing.T) {
	e, a := setupAPI(t)
	seedOperator(t, a, "admin", "let-me-in", "super")
	token := loginToken(t, e, "admin", "let-me-in")

	rec := doJSON(e, http.MethodPut, "/api/v1/system/settings", token,
		`{"orders.number_prefix":"SO","web.jwt_expire_hours":48}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "SO", a.GetSettingsStringValue("orders", "number_prefix"))
	assert.EqualValues(t, 48, a.GetSettingsInt64Value("web", "jwt_expire_hours"))

	rec = doJSON(e, http.MethodGet, "/api/v1/system/settings", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var groups map[string][]domain.SysConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
	require.NotEmpty(t, groups["orders"])
}
