package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alptraumtech/lms/internal/services"
	"github.com/alptraumtech/lms/pkg/response"
)

// PermitHandler serves permit type and grant endpoints.
type PermitHandler struct {
	permitService    *services.PermitService
	directoryService *services.DirectoryService
}

// NewPermitHandler constructs a PermitHandler.
func NewPermitHandler(permitService *services.PermitService, directoryService *services.DirectoryService) *PermitHandler {
	return &PermitHandler{permitService: permitService, directoryService: directoryService}
}

type permitTypeRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type assignPermitRequest struct {
	EmployeeID   uint                    `json:"employee_id" validate:"required"`
	PermitTypeID uint                    `json:"permit_type_id" validate:"required"`
	Duration     services.PermitDuration `json:"duration"`
}

type revokePermitRequest struct {
	EmployeeID   uint      `json:"employee_id" validate:"required"`
	PermitTypeID uint      `json:"permit_type_id" validate:"required"`
	IssueDate    time.Time `json:"issue_date" validate:"required"`
}

// ListTypes returns all permit types.
func (h *PermitHandler) ListTypes(c *gin.Context) {
	types, err := h.permitService.ListTypes(requestContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, types)
}

// CreateType registers a new permit type.
func (h *PermitHandler) CreateType(c *gin.Context) {
	var req permitTypeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	permitType, err := h.permitService.CreateType(requestContext(c), req.Name)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, permitType)
}

// RenameType updates a permit type's name.
func (h *PermitHandler) RenameType(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var req permitTypeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	permitType, err := h.permitService.RenameType(requestContext(c), id, req.Name)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, permitType)
}

// DeleteType removes a permit type and cascades its grants and requirements.
func (h *PermitHandler) DeleteType(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.permitService.DeleteType(requestContext(c), id); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": id})
}

// Assign issues a grant to an employee.
func (h *PermitHandler) Assign(c *gin.Context) {
	actor := currentEmployee(c, h.directoryService)
	if actor == nil {
		return
	}

	var req assignPermitRequest
	if !bindAndValidate(c, &req) {
		return
	}

	grant, err := h.permitService.Assign(requestContext(c), actor, req.EmployeeID, req.PermitTypeID, req.Duration)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, grant)
}

// Extend prolongs an employee's current grant, or issues one if absent.
func (h *PermitHandler) Extend(c *gin.Context) {
	actor := currentEmployee(c, h.directoryService)
	if actor == nil {
		return
	}

	var req assignPermitRequest
	if !bindAndValidate(c, &req) {
		return
	}

	grant, err := h.permitService.ExtendOrCreate(requestContext(c), actor, req.EmployeeID, req.PermitTypeID, req.Duration)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, grant)
}

// Revoke removes the grant identified by employee, permit type and issue date.
func (h *PermitHandler) Revoke(c *gin.Context) {
	actor := currentEmployee(c, h.directoryService)
	if actor == nil {
		return
	}

	var req revokePermitRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.permitService.Revoke(requestContext(c), actor, req.EmployeeID, req.PermitTypeID, req.IssueDate); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}
