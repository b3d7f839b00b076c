package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alptraumtech/lms/internal/models"
	"github.com/alptraumtech/lms/internal/scanner"
	"github.com/alptraumtech/lms/internal/services"
	appErrors "github.com/alptraumtech/lms/pkg/errors"
	"github.com/alptraumtech/lms/pkg/response"
)

// EmployeeHandler serves the personnel directory endpoints.
type EmployeeHandler struct {
	directoryService *services.DirectoryService
	permitService    *services.PermitService
}

// NewEmployeeHandler constructs an EmployeeHandler.
func NewEmployeeHandler(directoryService *services.DirectoryService, permitService *services.PermitService) *EmployeeHandler {
	return &EmployeeHandler{directoryService: directoryService, permitService: permitService}
}

type createEmployeeRequest struct {
	SupervisorID *uint   `json:"supervisor_id"`
	LastName     string  `json:"last_name" validate:"required,max=100"`
	FirstName    string  `json:"first_name" validate:"required,max=100"`
	Role         string  `json:"role" validate:"omitempty,oneof=EMPLOYEE SUPERVISOR ADMIN"`
	RFIDUID      *string `json:"rfid_uid"`
	Email        string  `json:"email" validate:"omitempty,email"`
	Password     string  `json:"password" validate:"omitempty,min=6"`
}

type updateEmployeeRequest struct {
	SupervisorID  *uint   `json:"supervisor_id"`
	SetSupervisor bool    `json:"set_supervisor"`
	LastName      *string `json:"last_name" validate:"omitempty,max=100"`
	FirstName     *string `json:"first_name" validate:"omitempty,max=100"`
	Role          *string `json:"role" validate:"omitempty,oneof=EMPLOYEE SUPERVISOR ADMIN"`
	IsActive      *bool   `json:"is_active"`
	RFIDUID       *string `json:"rfid_uid"`
	SetRFID       bool    `json:"set_rfid"`
	Email         *string `json:"email" validate:"omitempty,email"`
	Password      *string `json:"password" validate:"omitempty,min=6"`
}

// List returns directory entries with optional search and role filters.
func (h *EmployeeHandler) List(c *gin.Context) {
	var active *bool
	switch c.Query("active") {
	case "true":
		v := true
		active = &v
	case "false":
		v := false
		active = &v
	}

	opts := services.EmployeeListOptions{
		Search:   c.Query("search"),
		Role:     c.Query("role"),
		Active:   active,
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "per_page", 100),
	}

	employees, total, err := h.directoryService.List(requestContext(c), opts)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, employees, &response.Meta{
		Page:    opts.Page,
		PerPage: opts.PageSize,
		Total:   int(total),
	})
}

// Get returns a single employee record.
func (h *EmployeeHandler) Get(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	employee, err := h.directoryService.GetByID(requestContext(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, employee)
}

// Create registers a new employee. Supervisors may only create plain
// employees under themselves; admins may create anyone.
func (h *EmployeeHandler) Create(c *gin.Context) {
	actor := currentEmployee(c, h.directoryService)
	if actor == nil {
		return
	}

	var req createEmployeeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if !actor.IsAdmin() {
		if req.Role != "" && req.Role != models.RoleEmployee {
			response.Error(c, appErrors.NewForbidden("Supervisors may only create employees"))
			return
		}
		if req.SupervisorID == nil || *req.SupervisorID != actor.ID {
			response.Error(c, appErrors.NewForbidden("Supervisors may only create their own reports"))
			return
		}
	}

	employee, err := h.directoryService.Create(requestContext(c), services.CreateEmployeeInput{
		SupervisorID: req.SupervisorID,
		LastName:     req.LastName,
		FirstName:    req.FirstName,
		Role:         req.Role,
		RFIDUID:      req.RFIDUID,
		Email:        req.Email,
		Password:     req.Password,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, employee)
}

// Update modifies an employee record.
func (h *EmployeeHandler) Update(c *gin.Context) {
	actor := currentEmployee(c, h.directoryService)
	if actor == nil {
		return
	}

	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var req updateEmployeeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if !actor.IsAdmin() {
		allowed, err := h.directoryService.IsInSubtree(requestContext(c), actor.ID, id)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		if !allowed || id == actor.ID {
			response.Error(c, appErrors.NewForbidden("Supervisors may only edit their own subtree"))
			return
		}
		if req.Role != nil && *req.Role == models.RoleAdmin {
			response.Error(c, appErrors.NewForbidden("Only admins may grant the ADMIN role"))
			return
		}
	}

	employee, err := h.directoryService.Update(requestContext(c), id, services.UpdateEmployeeInput{
		SupervisorID:  req.SupervisorID,
		SetSupervisor: req.SetSupervisor,
		LastName:      req.LastName,
		FirstName:     req.FirstName,
		Role:          req.Role,
		IsActive:      req.IsActive,
		RFIDUID:       req.RFIDUID,
		SetRFID:       req.SetRFID,
		Email:         req.Email,
		Password:      req.Password,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, employee)
}

// Delete removes an employee, re-parenting their reports.
func (h *EmployeeHandler) Delete(c *gin.Context) {
	actor := currentEmployee(c, h.directoryService)
	if actor == nil {
		return
	}

	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	if id == actor.ID {
		response.Error(c, appErrors.NewBadRequest("cannot delete your own account"))
		return
	}

	if err := h.directoryService.Delete(requestContext(c), id); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": id})
}

// Reports returns the direct reports of an employee.
func (h *EmployeeHandler) Reports(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	reports, err := h.directoryService.ListDirectReports(requestContext(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, reports)
}

// Subtree returns an employee and all transitive reports.
func (h *EmployeeHandler) Subtree(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	subtree, err := h.directoryService.Subtree(requestContext(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, subtree)
}

// Grants returns the permit grants held by an employee.
func (h *EmployeeHandler) Grants(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	grants, err := h.permitService.GrantsFor(requestContext(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, grants)
}

// Badge returns the printable badge code for an employee.
func (h *EmployeeHandler) Badge(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	employee, err := h.directoryService.GetByID(requestContext(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"badge": scanner.EncodeBadge(employee.ID)})
}
