package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog records a single user-visible action and its outcome.
type AuditLog struct {
	ID         string         `gorm:"primaryKey;type:uuid" json:"id"`
	EmployeeID *uint          `gorm:"index" json:"employee_id"`
	Action     string         `gorm:"not null;index" json:"action"`
	Resource   string         `gorm:"index" json:"resource"`
	Result     string         `gorm:"not null" json:"result"`
	IPAddress  string         `json:"ip_address"`
	Metadata   datatypes.JSON `json:"metadata"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
