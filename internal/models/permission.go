package models

// PermissionType classifies what a permission guards.
type PermissionType string

const (
	PermissionTypeAPI    PermissionType = "api"
	PermissionTypeMenu   PermissionType = "menu"
	PermissionTypeButton PermissionType = "button"
)

// Valid reports whether the type is one of the declared variants.
func (t PermissionType) Valid() bool {
	switch t {
	case PermissionTypeAPI, PermissionTypeMenu, PermissionTypeButton:
		return true
	}
	return false
}

// Permission is an atomic grant. Only api-typed permissions carry a route path and HTTP method.
// Name is unique among live rows; (Path, Method) is unique among live api-typed rows. Both
// invariants are enforced by the permission service rather than a database partial index so
// the rule holds across every supported driver.
type Permission struct {
	BaseModel

	Name        string         `gorm:"size:64;not null;index" json:"name"`
	Description string         `gorm:"size:255" json:"description"`
	Type        PermissionType `gorm:"size:16;not null;default:api;index" json:"type"`

	Path   string `gorm:"size:255" json:"path,omitempty"`
	Method string `gorm:"size:10" json:"method,omitempty"`

	Roles []Role `gorm:"many2many:role_permissions;" json:"roles,omitempty"`
}
