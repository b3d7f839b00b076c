package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/alptraumtech/lms/internal/middleware"
	"github.com/alptraumtech/lms/internal/models"
	"github.com/alptraumtech/lms/internal/services"
	appErrors "github.com/alptraumtech/lms/pkg/errors"
	"github.com/alptraumtech/lms/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentEmployee loads the authenticated employee record. It writes an
// error response and returns nil when the identity cannot be resolved.
func currentEmployee(c *gin.Context, directory *services.DirectoryService) *models.Employee {
	raw, exists := c.Get(middleware.CtxEmployeeIDKey)
	if !exists {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil
	}
	id, ok := raw.(uint)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil
	}

	employee, err := directory.GetByID(requestContext(c), id)
	if err != nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil
	}
	return employee
}
