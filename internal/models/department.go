package models

// Department is a self-referencing organizational unit. Path materialises the full ancestor
// chain ("/1/3/8/"), is assigned once at creation and never rewritten; tree reads work from
// the flat table, never via recursive queries.
type Department struct {
	BaseModel

	Name     string `gorm:"size:64;not null" json:"name"`
	ParentID *uint  `gorm:"index" json:"parent_id"`
	Path     string `gorm:"size:255;not null;index" json:"path"`

	Users []User `gorm:"many2many:user_departments;" json:"users,omitempty"`
}
