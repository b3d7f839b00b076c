package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alptraumtech/lms/internal/licensing"
	"github.com/alptraumtech/lms/pkg/response"
)

// LicenseHandler serves license activation and company endpoints.
type LicenseHandler struct {
	licenseService *licensing.Service
}

// NewLicenseHandler constructs a LicenseHandler.
func NewLicenseHandler(licenseService *licensing.Service) *LicenseHandler {
	return &LicenseHandler{licenseService: licenseService}
}

type activateRequest struct {
	LicenseCode string `json:"license_code" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
}

type updateCompanyRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Address string `json:"address" validate:"max=500"`
}

// Status reports the cached license state.
func (h *LicenseHandler) Status(c *gin.Context) {
	company, err := h.licenseService.Company(requestContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	valid := h.licenseService.Valid(requestContext(c)) == nil
	response.Success(c, http.StatusOK, gin.H{
		"company": company,
		"valid":   valid,
	})
}

// Activate exchanges a license code for an activated company record.
func (h *LicenseHandler) Activate(c *gin.Context) {
	var req activateRequest
	if !bindAndValidate(c, &req) {
		return
	}

	company, err := h.licenseService.Activate(requestContext(c), req.LicenseCode, req.Email)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, company)
}

// UpdateCompany pushes edited company details to the licensing server.
func (h *LicenseHandler) UpdateCompany(c *gin.Context) {
	var req updateCompanyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	company, err := h.licenseService.PushCompanyUpdate(requestContext(c), req.Name, req.Address)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, company)
}
