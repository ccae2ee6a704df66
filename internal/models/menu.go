package models

// Menu is a navigation node. Directory nodes may contain children; leaves may not.
// Code is unique among live rows, as is a non-empty Path. A menu without an associated
// permission is public; directory nodes never need one.
type Menu struct {
	BaseModel

	Code        string  `gorm:"size:64;not null;index" json:"code"`
	Title       string  `gorm:"size:64;not null" json:"title"`
	IsDirectory bool    `gorm:"default:false" json:"is_directory"`
	Path        *string `gorm:"size:255" json:"path,omitempty"`
	Icon        string  `gorm:"size:64" json:"icon,omitempty"`
	Sort        int     `gorm:"default:0" json:"sort"`
	IsVisible   bool    `gorm:"default:true" json:"is_visible"`

	ParentID     *uint `gorm:"index" json:"parent_id"`
	PermissionID *uint `gorm:"index" json:"permission_id"`
}
