package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/palisade-admin/palisade/internal/auth"
	"github.com/palisade-admin/palisade/internal/handlers"
	"github.com/palisade-admin/palisade/internal/middleware"
	"github.com/palisade-admin/palisade/internal/rbac"
	"github.com/palisade-admin/palisade/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes. Every route
// under /api except the self-service endpoints is guarded by route authorization: the
// registered gin pattern plus HTTP verb must match an api permission the caller holds.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, resolver *rbac.Resolver) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if resolver == nil {
		return nil, fmt.Errorf("resolver must be provided")
	}

	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	userService, err := services.NewUserService(db, audit)
	if err != nil {
		return nil, err
	}
	roleService, err := services.NewRoleService(db, audit)
	if err != nil {
		return nil, err
	}
	permissionService, err := services.NewPermissionService(db, audit)
	if err != nil {
		return nil, err
	}
	departmentService, err := services.NewDepartmentService(db, audit)
	if err != nil {
		return nil, err
	}
	menuService, err := services.NewMenuService(db, resolver, audit)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	r.NoRoute(middleware.NotFoundHandler)

	// Public endpoints
	r.GET("/health", handlers.Health())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := handlers.NewAuthHandler(userService, jwt, resolver)
	r.POST("/api/auth/login", authHandler.Login)

	requireAuth := middleware.Auth(jwt)
	requireRoute := middleware.RequireRoute(resolver)

	api := r.Group("/api")
	api.Use(requireAuth)

	// Self-service endpoints skip route authorization
	api.GET("/auth/me", authHandler.Me)

	menuHandler := handlers.NewMenuHandler(menuService)
	api.GET("/menus/visible", menuHandler.VisibleTree)

	userHandler := handlers.NewUserHandler(userService)
	users := api.Group("/users", requireRoute)
	{
		users.GET("", userHandler.List)
		users.POST("", userHandler.Create)
		users.GET("/:id", userHandler.Get)
		users.PATCH("/:id", userHandler.Update)
		users.DELETE("/:id", userHandler.Delete)
		users.PUT("/:id/password", userHandler.SetPassword)
		users.PUT("/:id/roles", userHandler.AssignRoles)
		users.PUT("/:id/departments", userHandler.AssignDepartments)
	}

	roleHandler := handlers.NewRoleHandler(roleService)
	roles := api.Group("/roles", requireRoute)
	{
		roles.GET("", roleHandler.List)
		roles.POST("", roleHandler.Create)
		roles.GET("/:id", roleHandler.Get)
		roles.PATCH("/:id", roleHandler.Update)
		roles.DELETE("/:id", roleHandler.Delete)
		roles.PUT("/:id/permissions", roleHandler.SetPermissions)
	}

	permissionHandler := handlers.NewPermissionHandler(permissionService)
	perms := api.Group("/permissions", requireRoute)
	{
		perms.GET("", permissionHandler.List)
		perms.POST("", permissionHandler.Create)
		perms.GET("/:id", permissionHandler.Get)
		perms.PATCH("/:id", permissionHandler.Update)
		perms.DELETE("/:id", permissionHandler.Delete)
	}

	departmentHandler := handlers.NewDepartmentHandler(departmentService)
	departments := api.Group("/departments", requireRoute)
	{
		departments.GET("", departmentHandler.List)
		departments.POST("", departmentHandler.Create)
		departments.GET("/tree", departmentHandler.Tree)
		departments.GET("/:id", departmentHandler.Get)
		departments.GET("/:id/subtree", departmentHandler.Subtree)
		departments.PATCH("/:id", departmentHandler.Rename)
		departments.DELETE("/:id", departmentHandler.Delete)
	}

	menus := api.Group("/menus", requireRoute)
	{
		menus.GET("", menuHandler.List)
		menus.POST("", menuHandler.Create)
		menus.GET("/tree", menuHandler.Tree)
		menus.GET("/:id", menuHandler.Get)
		menus.PATCH("/:id", menuHandler.Update)
		menus.DELETE("/:id", menuHandler.Delete)
	}

	auditHandler := handlers.NewAuditHandler(audit)
	auditLogs := api.Group("/audit-logs", requireRoute)
	{
		auditLogs.GET("", auditHandler.List)
		auditLogs.GET("/export", auditHandler.Export)
	}

	return r, nil
}
