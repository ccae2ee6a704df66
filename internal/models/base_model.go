package models

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel provides the shared envelope for all persistent entities: numeric identity,
// creation/update timestamps and a nullable soft-delete marker.
type BaseModel struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsDeleted reports whether the soft-delete marker is set.
func (m *BaseModel) IsDeleted() bool {
	return m.DeletedAt.Valid
}
