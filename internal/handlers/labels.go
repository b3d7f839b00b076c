package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alptraumtech/lms/internal/models"
	"github.com/alptraumtech/lms/internal/services"
	"github.com/alptraumtech/lms/pkg/response"
)

// LabelHandler serves label template and rendering endpoints.
type LabelHandler struct {
	labelService     *services.LabelService
	directoryService *services.DirectoryService
	inventoryService *services.InventoryService
}

// NewLabelHandler constructs a LabelHandler.
func NewLabelHandler(labelService *services.LabelService, directoryService *services.DirectoryService, inventoryService *services.InventoryService) *LabelHandler {
	return &LabelHandler{
		labelService:     labelService,
		directoryService: directoryService,
		inventoryService: inventoryService,
	}
}

type createTemplateRequest struct {
	Name      string            `json:"name" validate:"required,max=100"`
	Kind      string            `json:"kind" validate:"required,oneof=employee item"`
	Body      string            `json:"body" validate:"required"`
	Defaults  map[string]string `json:"defaults"`
	IsDefault bool              `json:"is_default"`
}

type renderEmployeeRequest struct {
	EmployeeID uint  `json:"employee_id" validate:"required"`
	TemplateID *uint `json:"template_id"`
}

type renderItemRequest struct {
	ItemID     string `json:"item_id" validate:"required"`
	TemplateID *uint  `json:"template_id"`
}

// List returns templates, optionally filtered by kind.
func (h *LabelHandler) List(c *gin.Context) {
	templates, err := h.labelService.List(requestContext(c), c.Query("kind"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, templates)
}

// Create stores a new label template.
func (h *LabelHandler) Create(c *gin.Context) {
	var req createTemplateRequest
	if !bindAndValidate(c, &req) {
		return
	}

	template, err := h.labelService.Create(requestContext(c), services.CreateTemplateInput{
		Name:      req.Name,
		Kind:      req.Kind,
		Body:      req.Body,
		Defaults:  req.Defaults,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, template)
}

// SetDefault marks a template as its kind's default.
func (h *LabelHandler) SetDefault(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.labelService.SetDefault(requestContext(c), id); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"default": id})
}

// Delete removes a template.
func (h *LabelHandler) Delete(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.labelService.Delete(requestContext(c), id); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": id})
}

// RenderEmployee renders a badge label for an employee. Without an explicit
// template the kind's default is used.
func (h *LabelHandler) RenderEmployee(c *gin.Context) {
	var req renderEmployeeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	employee, err := h.directoryService.GetByID(requestContext(c), req.EmployeeID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	templateID, err := h.resolveTemplate(c, req.TemplateID, models.LabelKindEmployee)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	commands, err := h.labelService.RenderForEmployee(requestContext(c), templateID, employee)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"commands": commands})
}

// RenderItem renders an inventory label for an item.
func (h *LabelHandler) RenderItem(c *gin.Context) {
	var req renderItemRequest
	if !bindAndValidate(c, &req) {
		return
	}

	item, err := h.inventoryService.GetByID(requestContext(c), req.ItemID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	templateID, err := h.resolveTemplate(c, req.TemplateID, models.LabelKindItem)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	commands, err := h.labelService.RenderForItem(requestContext(c), templateID, item)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"commands": commands})
}

func (h *LabelHandler) resolveTemplate(c *gin.Context, explicit *uint, kind string) (uint, error) {
	if explicit != nil {
		return *explicit, nil
	}
	template, err := h.labelService.DefaultForKind(requestContext(c), kind)
	if err != nil {
		return 0, err
	}
	return template.ID, nil
}
