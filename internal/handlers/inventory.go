package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alptraumtech/lms/internal/services"
	"github.com/alptraumtech/lms/pkg/response"
)

// InventoryHandler serves item and checkout endpoints.
type InventoryHandler struct {
	inventoryService *services.InventoryService
	permitService    *services.PermitService
	directoryService *services.DirectoryService
}

// NewInventoryHandler constructs an InventoryHandler.
func NewInventoryHandler(inventoryService *services.InventoryService, permitService *services.PermitService, directoryService *services.DirectoryService) *InventoryHandler {
	return &InventoryHandler{
		inventoryService: inventoryService,
		permitService:    permitService,
		directoryService: directoryService,
	}
}

type createItemRequest struct {
	CategoryCode    string   `json:"category_code" validate:"required,max=16"`
	SubCategoryCode string   `json:"subcategory_code" validate:"required,max=16"`
	Parameters      []string `json:"parameters" validate:"max=5"`
	Description     string   `json:"description"`
	Quantity        int      `json:"quantity"`
	Location        string   `json:"location"`
	ManualPath      string   `json:"manual_path"`
	SOPPath         string   `json:"sop_path"`
	ImagePath       string   `json:"image_path"`
	Price           *float64 `json:"price"`
}

type updateItemRequest struct {
	NewItemID   *string  `json:"new_item_id"`
	Description *string  `json:"description"`
	Quantity    *int     `json:"quantity"`
	Status      *string  `json:"status" validate:"omitempty,oneof='In Stock' Damaged"`
	Location    *string  `json:"location"`
	ManualPath  *string  `json:"manual_path"`
	SOPPath     *string  `json:"sop_path"`
	ImagePath   *string  `json:"image_path"`
	Price       *float64 `json:"price"`
	SetPrice    bool     `json:"set_price"`
}

type requirementRequest struct {
	PermitTypeID uint `json:"permit_type_id" validate:"required"`
}

type scanRequest struct {
	ItemID string `json:"item_id" validate:"required"`
}

// List returns inventory items with optional filters.
func (h *InventoryHandler) List(c *gin.Context) {
	opts := services.ItemListOptions{
		Search:          c.Query("search"),
		CategoryCode:    c.Query("category"),
		SubCategoryCode: c.Query("subcategory"),
		Status:          c.Query("status"),
		Page:            parseIntQuery(c, "page", 1),
		PageSize:        parseIntQuery(c, "per_page", 100),
	}

	items, total, err := h.inventoryService.List(requestContext(c), opts)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{
		Page:    opts.Page,
		PerPage: opts.PageSize,
		Total:   int(total),
	})
}

// Get returns a single item with its permit requirements.
func (h *InventoryHandler) Get(c *gin.Context) {
	itemID := c.Param("id")

	item, err := h.inventoryService.GetByID(requestContext(c), itemID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	requirements, err := h.permitService.RequirementsFor(requestContext(c), itemID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"item":             item,
		"required_permits": requirements,
	})
}

// Create registers a new item.
func (h *InventoryHandler) Create(c *gin.Context) {
	var req createItemRequest
	if !bindAndValidate(c, &req) {
		return
	}

	item, err := h.inventoryService.Create(requestContext(c), services.CreateItemInput{
		CategoryCode:    req.CategoryCode,
		SubCategoryCode: req.SubCategoryCode,
		Parameters:      req.Parameters,
		Description:     req.Description,
		Quantity:        req.Quantity,
		Location:        req.Location,
		ManualPath:      req.ManualPath,
		SOPPath:         req.SOPPath,
		ImagePath:       req.ImagePath,
		Price:           req.Price,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, item)
}

// Update modifies an item, optionally re-keying its id.
func (h *InventoryHandler) Update(c *gin.Context) {
	var req updateItemRequest
	if !bindAndValidate(c, &req) {
		return
	}

	item, err := h.inventoryService.Update(requestContext(c), c.Param("id"), services.UpdateItemInput{
		NewItemID:   req.NewItemID,
		Description: req.Description,
		Quantity:    req.Quantity,
		Status:      req.Status,
		Location:    req.Location,
		ManualPath:  req.ManualPath,
		SOPPath:     req.SOPPath,
		ImagePath:   req.ImagePath,
		Price:       req.Price,
		SetPrice:    req.SetPrice,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, item)
}

// Delete removes an item.
func (h *InventoryHandler) Delete(c *gin.Context) {
	itemID := c.Param("id")
	if err := h.inventoryService.Delete(requestContext(c), itemID); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": itemID})
}

// Checkout hands an item to the authenticated employee.
func (h *InventoryHandler) Checkout(c *gin.Context) {
	employee := currentEmployee(c, h.directoryService)
	if employee == nil {
		return
	}

	item, err := h.inventoryService.Checkout(requestContext(c), employee, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, item)
}

// Return puts an item back in stock.
func (h *InventoryHandler) Return(c *gin.Context) {
	employee := currentEmployee(c, h.directoryService)
	if employee == nil {
		return
	}

	item, err := h.inventoryService.Return(requestContext(c), employee, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, item)
}

// Scan toggles an item between checkout and return for the authenticated
// employee, mirroring the kiosk scanner flow.
func (h *InventoryHandler) Scan(c *gin.Context) {
	employee := currentEmployee(c, h.directoryService)
	if employee == nil {
		return
	}

	var req scanRequest
	if !bindAndValidate(c, &req) {
		return
	}

	item, action, err := h.inventoryService.ProcessScan(requestContext(c), employee, req.ItemID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"item": item, "action": action})
}

// AddRequirement attaches a permit requirement to an item.
func (h *InventoryHandler) AddRequirement(c *gin.Context) {
	actor := currentEmployee(c, h.directoryService)
	if actor == nil {
		return
	}

	var req requirementRequest
	if !bindAndValidate(c, &req) {
		return
	}

	itemID := c.Param("id")
	if _, err := h.inventoryService.GetByID(requestContext(c), itemID); err != nil {
		respondServiceError(c, err)
		return
	}

	if err := h.permitService.AddRequirement(requestContext(c), actor, itemID, req.PermitTypeID); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"item_id": itemID, "permit_type_id": req.PermitTypeID})
}

// RemoveRequirement detaches a permit requirement from an item.
func (h *InventoryHandler) RemoveRequirement(c *gin.Context) {
	actor := currentEmployee(c, h.directoryService)
	if actor == nil {
		return
	}

	permitTypeID, ok := parseUintParam(c, "permitTypeId")
	if !ok {
		return
	}

	if err := h.permitService.RemoveRequirement(requestContext(c), actor, c.Param("id"), permitTypeID); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}

// Export streams the inventory as CSV.
func (h *InventoryHandler) Export(c *gin.Context) {
	data, err := h.inventoryService.ExportCSV(requestContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="inventory.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}
