package models

// SuperAdminRoleName is the reserved role name that bypasses all permission checks.
const SuperAdminRoleName = "super_admin"

// Role is a named bundle of permissions assignable to users.
type Role struct {
	BaseModel

	Name        string `gorm:"size:64;not null;index" json:"name"`
	Description string `gorm:"size:255" json:"description"`

	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions,omitempty"`
	Users       []User       `gorm:"many2many:user_roles;" json:"users,omitempty"`
}
