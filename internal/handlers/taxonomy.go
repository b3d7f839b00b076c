package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alptraumtech/lms/internal/services"
	"github.com/alptraumtech/lms/pkg/response"
)

// TaxonomyHandler serves category, subcategory and parameter endpoints.
type TaxonomyHandler struct {
	taxonomyService *services.TaxonomyService
}

// NewTaxonomyHandler constructs a TaxonomyHandler.
func NewTaxonomyHandler(taxonomyService *services.TaxonomyService) *TaxonomyHandler {
	return &TaxonomyHandler{taxonomyService: taxonomyService}
}

type categoryRequest struct {
	Code        string `json:"code" validate:"required,max=16"`
	Description string `json:"description"`
}

type descriptionRequest struct {
	Description string `json:"description"`
}

type subCategoryRequest struct {
	Code        string `json:"code" validate:"required,max=16"`
	Description string `json:"description"`
}

type parameterRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type reorderRequest struct {
	OldPosition int `json:"old_position" validate:"required,min=1"`
	NewPosition int `json:"new_position" validate:"required,min=1"`
}

// ListCategories returns the full category list.
func (h *TaxonomyHandler) ListCategories(c *gin.Context) {
	categories, err := h.taxonomyService.ListCategories(requestContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, categories)
}

// CreateCategory registers a category.
func (h *TaxonomyHandler) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if !bindAndValidate(c, &req) {
		return
	}

	category, err := h.taxonomyService.CreateCategory(requestContext(c), req.Code, req.Description)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, category)
}

// UpdateCategory changes a category's description.
func (h *TaxonomyHandler) UpdateCategory(c *gin.Context) {
	var req descriptionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	category, err := h.taxonomyService.UpdateCategory(requestContext(c), c.Param("code"), req.Description)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, category)
}

// DeleteCategory removes an unused category.
func (h *TaxonomyHandler) DeleteCategory(c *gin.Context) {
	if err := h.taxonomyService.DeleteCategory(requestContext(c), c.Param("code")); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": c.Param("code")})
}

// ListSubCategories returns the subcategories of a category.
func (h *TaxonomyHandler) ListSubCategories(c *gin.Context) {
	subs, err := h.taxonomyService.ListSubCategories(requestContext(c), c.Param("code"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, subs)
}

// CreateSubCategory registers a subcategory under a category.
func (h *TaxonomyHandler) CreateSubCategory(c *gin.Context) {
	var req subCategoryRequest
	if !bindAndValidate(c, &req) {
		return
	}

	sub, err := h.taxonomyService.CreateSubCategory(requestContext(c), c.Param("code"), req.Code, req.Description)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, sub)
}

// DeleteSubCategory removes an unused subcategory.
func (h *TaxonomyHandler) DeleteSubCategory(c *gin.Context) {
	if err := h.taxonomyService.DeleteSubCategory(requestContext(c), c.Param("sub")); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": c.Param("sub")})
}

// ListParameters returns a subcategory's ordered parameters.
func (h *TaxonomyHandler) ListParameters(c *gin.Context) {
	params, err := h.taxonomyService.ListParameters(requestContext(c), c.Param("sub"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, params)
}

// AddParameter appends a parameter slot to a subcategory.
func (h *TaxonomyHandler) AddParameter(c *gin.Context) {
	var req parameterRequest
	if !bindAndValidate(c, &req) {
		return
	}

	param, err := h.taxonomyService.AddParameter(requestContext(c), c.Param("sub"), req.Name)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, param)
}

// RenameParameter updates a slot's name.
func (h *TaxonomyHandler) RenameParameter(c *gin.Context) {
	pos, ok := parseUintParam(c, "pos")
	if !ok {
		return
	}

	var req parameterRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.taxonomyService.RenameParameter(requestContext(c), c.Param("sub"), int(pos), req.Name); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"renamed": true})
}

// ReorderParameter moves a slot to a new position.
func (h *TaxonomyHandler) ReorderParameter(c *gin.Context) {
	var req reorderRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.taxonomyService.ReorderParameter(requestContext(c), c.Param("sub"), req.OldPosition, req.NewPosition); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reordered": true})
}

// DeleteParameter removes an unused slot.
func (h *TaxonomyHandler) DeleteParameter(c *gin.Context) {
	pos, ok := parseUintParam(c, "pos")
	if !ok {
		return
	}

	if err := h.taxonomyService.DeleteParameter(requestContext(c), c.Param("sub"), int(pos)); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
