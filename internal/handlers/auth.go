package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alptraumtech/lms/internal/services"
	"github.com/alptraumtech/lms/pkg/response"
)

// AuthHandler serves login endpoints for badge, RFID and password flows.
type AuthHandler struct {
	authService      *services.AuthService
	directoryService *services.DirectoryService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(authService *services.AuthService, directoryService *services.DirectoryService) *AuthHandler {
	return &AuthHandler{authService: authService, directoryService: directoryService}
}

type badgeLoginRequest struct {
	Badge string `json:"badge" validate:"required"`
}

type rfidLoginRequest struct {
	UID string `json:"uid" validate:"required"`
}

type passwordLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginBadge authenticates a scanned badge code.
func (h *AuthHandler) LoginBadge(c *gin.Context) {
	var req badgeLoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	session, err := h.authService.LoginWithBadge(requestContext(c), req.Badge)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, session)
}

// LoginRFID authenticates a scanned RFID tag.
func (h *AuthHandler) LoginRFID(c *gin.Context) {
	var req rfidLoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	session, err := h.authService.LoginWithRFID(requestContext(c), req.UID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, session)
}

// LoginPassword authenticates an email and password pair.
func (h *AuthHandler) LoginPassword(c *gin.Context) {
	var req passwordLoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	session, err := h.authService.LoginWithPassword(requestContext(c), req.Email, req.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, session)
}

// Me returns the authenticated employee's own record.
func (h *AuthHandler) Me(c *gin.Context) {
	employee := currentEmployee(c, h.directoryService)
	if employee == nil {
		return
	}
	response.Success(c, http.StatusOK, employee)
}
