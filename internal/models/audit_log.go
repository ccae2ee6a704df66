package models

import "gorm.io/datatypes"

// AuditLog records security-relevant events (role grants, permission changes, denied
// authorization checks) together with structured metadata.
type AuditLog struct {
	BaseModel

	UserID   *uint          `gorm:"index" json:"user_id"`
	Action   string         `gorm:"size:64;not null;index" json:"action"`
	Resource string         `gorm:"size:255" json:"resource"`
	Result   string         `gorm:"size:16;not null" json:"result"`
	Metadata datatypes.JSON `json:"metadata,omitempty"`
}
