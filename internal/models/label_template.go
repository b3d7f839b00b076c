package models

import (
	"time"

	"gorm.io/datatypes"
)

// Label template kinds, one default template per kind.
const (
	LabelKindEmployee = "employee"
	LabelKindItem     = "item"
)

// LabelTemplate stores a WDFX/XML label layout. Placeholders of the form
// %%%Name%%% are substituted from a flat map at render time; Defaults
// supplies fallback values for placeholders the caller omits.
type LabelTemplate struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"uniqueIndex;not null" json:"name"`
	Kind      string         `gorm:"index;not null" json:"kind"`
	Body      string         `gorm:"type:text;not null" json:"body"`
	Defaults  datatypes.JSON `json:"defaults,omitempty"`
	IsDefault bool           `gorm:"default:false" json:"is_default"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
