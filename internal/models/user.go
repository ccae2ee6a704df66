package models

// User describes an authenticatable principal with role and department memberships.
type User struct {
	BaseModel

	Username string `gorm:"size:64;not null;index" json:"username"`
	Password string `gorm:"not null" json:"-"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	Roles       []Role       `gorm:"many2many:user_roles;" json:"roles,omitempty"`
	Departments []Department `gorm:"many2many:user_departments;" json:"departments,omitempty"`
}
