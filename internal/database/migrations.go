package database

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/palisade-admin/palisade/internal/models"
	"github.com/palisade-admin/palisade/pkg/crypto"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.Department{},
		&models.Menu{},
		&models.AuditLog{},
	)
}

// SeedOptions configures the initial records created on first start.
type SeedOptions struct {
	AdminUsername string
	AdminPassword string
}

// Seed provisions the super admin role, the initial admin account and the baseline
// permissions and menus. It is idempotent: existing rows are left untouched.
func Seed(db *gorm.DB, opts SeedOptions) error {
	username := strings.TrimSpace(opts.AdminUsername)
	if username == "" {
		username = "admin"
	}

	var role models.Role
	err := db.Where(models.Role{Name: models.SuperAdminRoleName}).
		Attrs(models.Role{Description: "Built-in role that bypasses all permission checks"}).
		FirstOrCreate(&role).Error
	if err != nil {
		return fmt.Errorf("seed super admin role: %w", err)
	}

	var user models.User
	err = db.Where(models.User{Username: username}).First(&user).Error
	switch {
	case err == nil:
		// already provisioned
	case errors.Is(err, gorm.ErrRecordNotFound):
		password := opts.AdminPassword
		if password == "" {
			return fmt.Errorf("seed admin user: initial password is required")
		}
		hashed, hashErr := crypto.HashPassword(password)
		if hashErr != nil {
			return fmt.Errorf("seed admin user: hash password: %w", hashErr)
		}
		user = models.User{Username: username, Password: hashed, IsActive: true}
		if createErr := db.Create(&user).Error; createErr != nil {
			return fmt.Errorf("seed admin user: %w", createErr)
		}
	default:
		return fmt.Errorf("seed admin user: %w", err)
	}

	if err := db.Model(&user).Association("Roles").Append(&role); err != nil {
		return fmt.Errorf("seed admin role membership: %w", err)
	}

	if err := seedPermissions(db); err != nil {
		return err
	}
	return seedMenus(db)
}

func seedPermissions(db *gorm.DB) error {
	baseline := []models.Permission{
		{Name: "user:list", Description: "List users", Type: models.PermissionTypeAPI, Path: "/api/users", Method: "GET"},
		{Name: "user:create", Description: "Create a user", Type: models.PermissionTypeAPI, Path: "/api/users", Method: "POST"},
		{Name: "user:read", Description: "Read a user", Type: models.PermissionTypeAPI, Path: "/api/users/:id", Method: "GET"},
		{Name: "user:update", Description: "Update a user", Type: models.PermissionTypeAPI, Path: "/api/users/:id", Method: "PATCH"},
		{Name: "user:delete", Description: "Delete a user", Type: models.PermissionTypeAPI, Path: "/api/users/:id", Method: "DELETE"},
		{Name: "user:set_password", Description: "Reset a user's password", Type: models.PermissionTypeAPI, Path: "/api/users/:id/password", Method: "PUT"},
		{Name: "user:assign_roles", Description: "Assign roles to a user", Type: models.PermissionTypeAPI, Path: "/api/users/:id/roles", Method: "PUT"},
		{Name: "user:assign_departments", Description: "Assign departments to a user", Type: models.PermissionTypeAPI, Path: "/api/users/:id/departments", Method: "PUT"},
		{Name: "role:list", Description: "List roles", Type: models.PermissionTypeAPI, Path: "/api/roles", Method: "GET"},
		{Name: "role:create", Description: "Create a role", Type: models.PermissionTypeAPI, Path: "/api/roles", Method: "POST"},
		{Name: "role:read", Description: "Read a role", Type: models.PermissionTypeAPI, Path: "/api/roles/:id", Method: "GET"},
		{Name: "role:update", Description: "Update a role", Type: models.PermissionTypeAPI, Path: "/api/roles/:id", Method: "PATCH"},
		{Name: "role:delete", Description: "Delete a role", Type: models.PermissionTypeAPI, Path: "/api/roles/:id", Method: "DELETE"},
		{Name: "role:set_permissions", Description: "Bind permissions to a role", Type: models.PermissionTypeAPI, Path: "/api/roles/:id/permissions", Method: "PUT"},
		{Name: "permission:list", Description: "List permissions", Type: models.PermissionTypeAPI, Path: "/api/permissions", Method: "GET"},
		{Name: "permission:create", Description: "Create a permission", Type: models.PermissionTypeAPI, Path: "/api/permissions", Method: "POST"},
		{Name: "permission:read", Description: "Read a permission", Type: models.PermissionTypeAPI, Path: "/api/permissions/:id", Method: "GET"},
		{Name: "permission:update", Description: "Update a permission", Type: models.PermissionTypeAPI, Path: "/api/permissions/:id", Method: "PATCH"},
		{Name: "permission:delete", Description: "Delete a permission", Type: models.PermissionTypeAPI, Path: "/api/permissions/:id", Method: "DELETE"},
		{Name: "department:list", Description: "List departments", Type: models.PermissionTypeAPI, Path: "/api/departments", Method: "GET"},
		{Name: "department:create", Description: "Create a department", Type: models.PermissionTypeAPI, Path: "/api/departments", Method: "POST"},
		{Name: "department:tree", Description: "View the department tree", Type: models.PermissionTypeAPI, Path: "/api/departments/tree", Method: "GET"},
		{Name: "department:read", Description: "Read a department", Type: models.PermissionTypeAPI, Path: "/api/departments/:id", Method: "GET"},
		{Name: "department:subtree", Description: "View a department subtree", Type: models.PermissionTypeAPI, Path: "/api/departments/:id/subtree", Method: "GET"},
		{Name: "department:update", Description: "Update a department", Type: models.PermissionTypeAPI, Path: "/api/departments/:id", Method: "PATCH"},
		{Name: "department:delete", Description: "Delete a department", Type: models.PermissionTypeAPI, Path: "/api/departments/:id", Method: "DELETE"},
		{Name: "menu:list", Description: "List menus", Type: models.PermissionTypeAPI, Path: "/api/menus", Method: "GET"},
		{Name: "menu:create", Description: "Create a menu", Type: models.PermissionTypeAPI, Path: "/api/menus", Method: "POST"},
		{Name: "menu:tree", Description: "View the menu tree", Type: models.PermissionTypeAPI, Path: "/api/menus/tree", Method: "GET"},
		{Name: "menu:read", Description: "Read a menu", Type: models.PermissionTypeAPI, Path: "/api/menus/:id", Method: "GET"},
		{Name: "menu:update", Description: "Update a menu", Type: models.PermissionTypeAPI, Path: "/api/menus/:id", Method: "PATCH"},
		{Name: "menu:delete", Description: "Delete a menu", Type: models.PermissionTypeAPI, Path: "/api/menus/:id", Method: "DELETE"},
		{Name: "audit:list", Description: "List audit logs", Type: models.PermissionTypeAPI, Path: "/api/audit-logs", Method: "GET"},
		{Name: "audit:export", Description: "Export audit logs", Type: models.PermissionTypeAPI, Path: "/api/audit-logs/export", Method: "GET"},
	}

	for _, perm := range baseline {
		if err := db.Where(models.Permission{Name: perm.Name}).Attrs(perm).FirstOrCreate(&models.Permission{}).Error; err != nil {
			return fmt.Errorf("seed permission %s: %w", perm.Name, err)
		}
	}
	return nil
}

func seedMenus(db *gorm.DB) error {
	var system models.Menu
	err := db.Where(models.Menu{Code: "system"}).
		Attrs(models.Menu{Title: "System", IsDirectory: true, Icon: "settings", Sort: 100, IsVisible: true}).
		FirstOrCreate(&system).Error
	if err != nil {
		return fmt.Errorf("seed menu system: %w", err)
	}

	children := []models.Menu{
		{Code: "system:users", Title: "Users", Path: strPtr("/system/users"), Icon: "user", Sort: 1, IsVisible: true, ParentID: &system.ID},
		{Code: "system:roles", Title: "Roles", Path: strPtr("/system/roles"), Icon: "shield", Sort: 2, IsVisible: true, ParentID: &system.ID},
		{Code: "system:permissions", Title: "Permissions", Path: strPtr("/system/permissions"), Icon: "key", Sort: 3, IsVisible: true, ParentID: &system.ID},
		{Code: "system:departments", Title: "Departments", Path: strPtr("/system/departments"), Icon: "sitemap", Sort: 4, IsVisible: true, ParentID: &system.ID},
		{Code: "system:menus", Title: "Menus", Path: strPtr("/system/menus"), Icon: "menu", Sort: 5, IsVisible: true, ParentID: &system.ID},
	}

	for _, menu := range children {
		if err := db.Where(models.Menu{Code: menu.Code}).Attrs(menu).FirstOrCreate(&models.Menu{}).Error; err != nil {
			return fmt.Errorf("seed menu %s: %w", menu.Code, err)
		}
	}
	return nil
}

func strPtr(s string) *string {
	return &s
}
