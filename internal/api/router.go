package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/alptraumtech/lms/internal/app"
	iauth "github.com/alptraumtech/lms/internal/auth"
	"github.com/alptraumtech/lms/internal/handlers"
	"github.com/alptraumtech/lms/internal/licensing"
	"github.com/alptraumtech/lms/internal/middleware"
	"github.com/alptraumtech/lms/internal/models"
	"github.com/alptraumtech/lms/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, licenseService *licensing.Service) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	auditService, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	directoryService, err := services.NewDirectoryService(db, auditService)
	if err != nil {
		return nil, err
	}
	permitService, err := services.NewPermitService(db, auditService)
	if err != nil {
		return nil, err
	}
	inventoryService, err := services.NewInventoryService(db, permitService, auditService)
	if err != nil {
		return nil, err
	}
	taxonomyService, err := services.NewTaxonomyService(db, auditService)
	if err != nil {
		return nil, err
	}
	labelService, err := services.NewLabelService(db)
	if err != nil {
		return nil, err
	}
	authService, err := services.NewAuthService(db, jwt, licenseService, auditService)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/health", healthHandler.Live)
	r.GET("/health/ready", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := handlers.NewAuthHandler(authService, directoryService)

	// Public auth routes
	authRoutes := r.Group("/api/auth")
	{
		authRoutes.POST("/login/badge", authHandler.LoginBadge)
		authRoutes.POST("/login/rfid", authHandler.LoginRFID)
		authRoutes.POST("/login/password", authHandler.LoginPassword)
	}

	requireAuth := middleware.Auth(jwt)
	requireSupervisor := middleware.RequireRole(models.RoleSupervisor)
	requireAdmin := middleware.RequireRole(models.RoleAdmin)

	api := r.Group("/api")
	api.Use(requireAuth)

	api.GET("/auth/me", authHandler.Me)

	// Directory
	employeeHandler := handlers.NewEmployeeHandler(directoryService, permitService)
	employees := api.Group("/employees")
	{
		employees.GET("", employeeHandler.List)
		employees.GET("/:id", employeeHandler.Get)
		employees.GET("/:id/reports", employeeHandler.Reports)
		employees.GET("/:id/subtree", employeeHandler.Subtree)
		employees.GET("/:id/grants", employeeHandler.Grants)
		employees.GET("/:id/badge", employeeHandler.Badge)
		employees.POST("", requireSupervisor, employeeHandler.Create)
		employees.PUT("/:id", requireSupervisor, employeeHandler.Update)
		employees.DELETE("/:id", requireAdmin, employeeHandler.Delete)
	}

	// Permits
	permitHandler := handlers.NewPermitHandler(permitService, directoryService)
	permits := api.Group("/permits")
	{
		permits.GET("/types", permitHandler.ListTypes)
		permits.POST("/types", requireAdmin, permitHandler.CreateType)
		permits.PUT("/types/:id", requireAdmin, permitHandler.RenameType)
		permits.DELETE("/types/:id", requireAdmin, permitHandler.DeleteType)
		permits.POST("/assign", requireSupervisor, permitHandler.Assign)
		permits.POST("/extend", requireSupervisor, permitHandler.Extend)
		permits.POST("/revoke", requireSupervisor, permitHandler.Revoke)
	}

	// Inventory
	inventoryHandler := handlers.NewInventoryHandler(inventoryService, permitService, directoryService)
	items := api.Group("/items")
	{
		items.GET("", inventoryHandler.List)
		items.GET("/export", inventoryHandler.Export)
		items.GET("/:id", inventoryHandler.Get)
		items.POST("", requireSupervisor, inventoryHandler.Create)
		items.PUT("/:id", requireSupervisor, inventoryHandler.Update)
		items.DELETE("/:id", requireAdmin, inventoryHandler.Delete)
		items.POST("/:id/checkout", inventoryHandler.Checkout)
		items.POST("/:id/return", inventoryHandler.Return)
		items.POST("/:id/requirements", requireSupervisor, inventoryHandler.AddRequirement)
		items.DELETE("/:id/requirements/:permitTypeId", requireSupervisor, inventoryHandler.RemoveRequirement)
	}
	api.POST("/scan", inventoryHandler.Scan)

	// Taxonomy
	taxonomyHandler := handlers.NewTaxonomyHandler(taxonomyService)
	categories := api.Group("/categories")
	{
		categories.GET("", taxonomyHandler.ListCategories)
		categories.POST("", requireAdmin, taxonomyHandler.CreateCategory)
		categories.PUT("/:code", requireAdmin, taxonomyHandler.UpdateCategory)
		categories.DELETE("/:code", requireAdmin, taxonomyHandler.DeleteCategory)
		categories.GET("/:code/subcategories", taxonomyHandler.ListSubCategories)
		categories.POST("/:code/subcategories", requireAdmin, taxonomyHandler.CreateSubCategory)
	}
	subcategories := api.Group("/subcategories")
	{
		subcategories.DELETE("/:sub", requireAdmin, taxonomyHandler.DeleteSubCategory)
		subcategories.GET("/:sub/parameters", taxonomyHandler.ListParameters)
		subcategories.POST("/:sub/parameters", requireAdmin, taxonomyHandler.AddParameter)
		subcategories.PUT("/:sub/parameters/:pos", requireAdmin, taxonomyHandler.RenameParameter)
		subcategories.POST("/:sub/parameters/reorder", requireAdmin, taxonomyHandler.ReorderParameter)
		subcategories.DELETE("/:sub/parameters/:pos", requireAdmin, taxonomyHandler.DeleteParameter)
	}

	// Labels
	labelHandler := handlers.NewLabelHandler(labelService, directoryService, inventoryService)
	labelRoutes := api.Group("/labels")
	{
		labelRoutes.GET("/templates", labelHandler.List)
		labelRoutes.POST("/templates", requireAdmin, labelHandler.Create)
		labelRoutes.POST("/templates/:id/default", requireAdmin, labelHandler.SetDefault)
		labelRoutes.DELETE("/templates/:id", requireAdmin, labelHandler.Delete)
		labelRoutes.POST("/render/employee", labelHandler.RenderEmployee)
		labelRoutes.POST("/render/item", labelHandler.RenderItem)
	}

	// Licensing
	if licenseService != nil {
		licenseHandler := handlers.NewLicenseHandler(licenseService)
		license := api.Group("/license")
		{
			license.GET("", licenseHandler.Status)
			license.POST("/activate", requireAdmin, licenseHandler.Activate)
			license.PUT("/company", requireAdmin, licenseHandler.UpdateCompany)
		}
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
