package adminapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/orderdesk/orderdesk/internal/audit"
	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/inventory"
	"github.com/orderdesk/orderdesk/internal/webserver"
	"github.com/orderdesk/orderdesk/pkg/common"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type productPayload struct {
	Sku         string          `json:"sku" validate:"required,min=1,max=50"`
	Name        string          `json:"name" validate:"required,min=1,max=200"`
	Description string          `json:"description" validate:"omitempty,max=2000"`
	CategoryID  int64           `json:"category_id,string"`
	Price       decimal.Decimal `json:"price"`
	Cost        decimal.Decimal `json:"cost"`
	Quantity    *int            `json:"quantity" validate:"omitempty,min=0"`
	MinQuantity *int            `json:"min_quantity" validate:"omitempty,min=0"`
	MaxQuantity *int            `json:"max_quantity" validate:"omitempty,min=1"`
	Status      string          `json:"status" validate:"omitempty,oneof=active inactive discontinued out_of_stock"`
}

// productUpdatePayload relaxes validation rules for partial updates.
// Quantity is absent on purpose: stock moves only through restock,
// reserve and release.
type productUpdatePayload struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
	CategoryID  *int64           `json:"category_id,string"`
	Price       *decimal.Decimal `json:"price"`
	Cost        *decimal.Decimal `json:"cost"`
	MinQuantity *int             `json:"min_quantity" validate:"omitempty,min=0"`
	MaxQuantity *int             `json:"max_quantity" validate:"omitempty,min=1"`
	Status      *string          `json:"status" validate:"omitempty,oneof=active inactive discontinued out_of_stock"`
}

type restockPayload struct {
	Quantity int    `json:"quantity" validate:"required,min=1"`
	Notes    string `json:"notes" validate:"omitempty,max=500"`
}

// registerProductRoutes registers catalog product endpoints
func registerProductRoutes() {
	webserver.ApiGET("/catalog/products", listProducts)
	webserver.ApiGET("/catalog/products/low-stock", listLowStockProducts)
	webserver.ApiGET("/catalog/products/:id", getProduct)
	webserver.ApiGET("/catalog/products/:id/audit", listProductAudit)
	webserver.ApiPOST("/catalog/products", createProduct)
	webserver.ApiPOST("/catalog/products/:id/restock", restockProduct)
	webserver.ApiPUT("/catalog/products/:id", updateProduct)
	webserver.ApiDELETE("/catalog/products/:id", deleteProduct)
}

// listProducts retrieves the product list
// @Summary get the product list
// @Tags Products
// @Param page query int false "Page number"
// @Param perPage query int false "Items per page"
// @Param q query string false "Search in sku and name"
// @Param category_id query int false "Category filter"
// @Param status query string false "Status filter"
// @Success 200 {object} ListResponse
// @Router /api/v1/catalog/products [get]
func listProducts(c echo.Context) error {
	page, pageSize := parsePagination(c)

	sortField := strings.TrimSpace(c.QueryParam("sort"))
	order := strings.ToUpper(strings.TrimSpace(c.QueryParam("order")))
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	// whitelist allowed sort columns to avoid SQL injection
	allowed := map[string]string{
		"id":         "id",
		"sku":        "sku",
		"name":       "name",
		"price":      "price",
		"quantity":   "quantity",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}
	sortCol, found := allowed[sortField]
	if !found || sortCol == "" {
		sortCol = "id"
	}

	db := GetDB(c).Model(&domain.Product{})
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		if strings.EqualFold(db.Name(), "postgres") { //nolint:staticcheck
			db = db.Where("sku ILIKE ? OR name ILIKE ?", "%"+q+"%", "%"+q+"%")
		} else {
			db = db.Where("LOWER(sku) LIKE ? OR LOWER(name) LIKE ?",
				"%"+strings.ToLower(q)+"%", "%"+strings.ToLower(q)+"%")
		}
	}
	if cid := strings.TrimSpace(c.QueryParam("category_id")); cid != "" {
		db = db.Where("category_id = ?", cid)
	}
	if status := strings.TrimSpace(c.QueryParam("status")); status != "" {
		db = db.Where("status = ?", status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}

	var rows []domain.Product
	if err := db.Order(sortCol + " " + order).Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}

	return paged(c, rows, total, page, pageSize)
}

// listLowStockProducts lists active products at or below min quantity
func listLowStockProducts(c echo.Context) error {
	rows, err := inventory.New(GetDB(c)).LowStock(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query low stock products", err.Error())
	}
	return ok(c, rows)
}

func getProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var p domain.Product
	if err := GetDB(c).Where("id = ?", id).First(&p).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", err.Error())
	}
	return ok(c, p)
}

// listProductAudit lists the product trail, newest first
func listProductAudit(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	trail, err := audit.ListProductTrail(GetDB(c), id)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product audit trail", err.Error())
	}
	// newest first for display
	for i, j := 0, len(trail)-1; i < j; i, j = i+1, j-1 {
		trail[i], trail[j] = trail[j], trail[i]
	}
	return ok(c, trail)
}

func createProduct(c echo.Context) error {
	var payload productPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	actor := currentActor(c)
	p := domain.Product{
		ID:          common.UUIDint64(),
		Sku:         strings.TrimSpace(payload.Sku),
		Name:        strings.TrimSpace(payload.Name),
		Description: payload.Description,
		CategoryID:  payload.CategoryID,
		Price:       payload.Price,
		Cost:        payload.Cost,
		MinQuantity: 10,
		MaxQuantity: 1000,
		Status:      domain.ProductStatusActive,
	}
	if payload.Quantity != nil {
		p.Quantity = *payload.Quantity
	}
	if payload.MinQuantity != nil {
		p.MinQuantity = *payload.MinQuantity
	}
	if payload.MaxQuantity != nil {
		p.MaxQuantity = *payload.MaxQuantity
	}
	if payload.Status != "" {
		p.Status = domain.ProductStatus(payload.Status)
	}
	if actor.ID != nil {
		p.CreatedBy = *actor.ID
		p.UpdatedBy = *actor.ID
	}
	if err := p.Validate(); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_PRODUCT", err.Error(), nil)
	}

	err := GetDB(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		return audit.RecordProductAction(tx, p.ID, actor, domain.ProductActionCreate,
			map[string]interface{}{
				"sku":      p.Sku,
				"name":     p.Name,
				"price":    p.Price,
				"quantity": p.Quantity,
			}, "")
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fail(c, http.StatusConflict, "SKU_EXISTS", "Product SKU already exists", nil)
		}
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create product", err.Error())
	}
	return ok(c, p)
}

func updateProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}

	var payload productUpdatePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	var p domain.Product
	if err := GetDB(c).Where("id = ?", id).First(&p).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", err.Error())
	}

	actor := currentActor(c)
	updates := map[string]interface{}{}
	changes := map[string]interface{}{}
	var priceChange map[string]interface{}

	if payload.Name != nil && *payload.Name != p.Name {
		updates["name"] = strings.TrimSpace(*payload.Name)
		changes["name"] = map[string]interface{}{"from": p.Name, "to": *payload.Name}
	}
	if payload.Description != nil && *payload.Description != p.Description {
		updates["description"] = *payload.Description
		changes["description"] = map[string]interface{}{"from": p.Description, "to": *payload.Description}
	}
	if payload.CategoryID != nil && *payload.CategoryID != p.CategoryID {
		updates["category_id"] = *payload.CategoryID
		changes["category_id"] = map[string]interface{}{"from": p.CategoryID, "to": *payload.CategoryID}
	}
	if payload.Price != nil && !payload.Price.Equal(p.Price) {
		updates["price"] = *payload.Price
		priceChange = map[string]interface{}{
			"from": p.Price.StringFixed(2),
			"to":   payload.Price.StringFixed(2),
		}
	}
	if payload.Cost != nil && !payload.Cost.Equal(p.Cost) {
		updates["cost"] = *payload.Cost
		changes["cost"] = map[string]interface{}{"from": p.Cost.StringFixed(2), "to": payload.Cost.StringFixed(2)}
	}
	if payload.MinQuantity != nil && *payload.MinQuantity != p.MinQuantity {
		updates["min_quantity"] = *payload.MinQuantity
		changes["min_quantity"] = map[string]interface{}{"from": p.MinQuantity, "to": *payload.MinQuantity}
	}
	if payload.MaxQuantity != nil && *payload.MaxQuantity != p.MaxQuantity {
		updates["max_quantity"] = *payload.MaxQuantity
		changes["max_quantity"] = map[string]interface{}{"from": p.MaxQuantity, "to": *payload.MaxQuantity}
	}
	if payload.Status != nil && domain.ProductStatus(*payload.Status) != p.Status {
		updates["status"] = *payload.Status
		changes["status"] = map[string]interface{}{"from": p.Status, "to": *payload.Status}
	}

	if len(updates) == 0 {
		return ok(c, p)
	}

	// Validate the product as it will look after the update
	candidate := p
	if v, found := updates["name"]; found {
		candidate.Name = v.(string)
	}
	if payload.Price != nil {
		candidate.Price = *payload.Price
	}
	if payload.Cost != nil {
		candidate.Cost = *payload.Cost
	}
	if payload.MinQuantity != nil {
		candidate.MinQuantity = *payload.MinQuantity
	}
	if payload.MaxQuantity != nil {
		candidate.MaxQuantity = *payload.MaxQuantity
	}
	if payload.Status != nil {
		candidate.Status = domain.ProductStatus(*payload.Status)
	}
	if err := candidate.Validate(); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_PRODUCT", err.Error(), nil)
	}

	if actor.ID != nil {
		updates["updated_by"] = *actor.ID
	}

	err = GetDB(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Product{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		if len(changes) > 0 {
			if err := audit.RecordProductAction(tx, id, actor, domain.ProductActionUpdate, changes, ""); err != nil {
				return err
			}
		}
		if priceChange != nil {
			if err := audit.RecordProductAction(tx, id, actor, domain.ProductActionPriceChange, priceChange, ""); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update product", err.Error())
	}

	GetDB(c).Where("id = ?", id).First(&p)
	return ok(c, p)
}

// restockProduct adds stock to a product
func restockProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}

	var payload restockPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse restock parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	p, err := inventory.New(GetDB(c)).Restock(c.Request().Context(), id, payload.Quantity, currentActor(c), payload.Notes)
	if err != nil {
		return serviceError(c, err)
	}
	return ok(c, p)
}

// deleteProduct removes a product that no order item references
func deleteProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}

	var p domain.Product
	if err := GetDB(c).Where("id = ?", id).First(&p).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", err.Error())
	}

	inUse, err := inventory.New(GetDB(c)).InUse(c.Request().Context(), id)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to check product references", err.Error())
	}
	if inUse {
		return serviceError(c, inventory.ErrProductInUse)
	}

	actor := currentActor(c)
	err = GetDB(c).Transaction(func(tx *gorm.DB) error {
		// The trail outlives the product row
		if err := audit.RecordProductAction(tx, id, actor, domain.ProductActionDelete,
			map[string]interface{}{
				"sku":      p.Sku,
				"name":     p.Name,
				"quantity": p.Quantity,
			}, ""); err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Product{}).Error
	})
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete product", err.Error())
	}
	return ok(c, map[string]interface{}{"id": id})
}
