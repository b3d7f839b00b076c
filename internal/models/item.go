package models

import "time"

// Item status values. HolderID is non-nil exactly when status is "In Use".
const (
	ItemInStock = "In Stock"
	ItemInUse   = "In Use"
	ItemDamaged = "Damaged"
)

// Item is a tracked inventory record. The ID is a composite string built
// from the taxonomy: CATEGORY-SUBCATEGORY-param1-...-paramN.
type Item struct {
	ItemID          string    `gorm:"primaryKey;size:64" json:"item_id"`
	CategoryCode    string    `gorm:"index;not null" json:"category_code"`
	SubCategoryCode string    `gorm:"index;not null" json:"subcategory_code"`
	Description     string    `json:"description"`
	Quantity        int       `gorm:"default:1" json:"quantity"`
	Status          string    `gorm:"not null;default:'In Stock'" json:"status"`
	HolderID        *uint     `gorm:"index" json:"holder_id"`
	Location        string    `json:"location"`
	ManualPath      string    `json:"manual_path,omitempty"`
	SOPPath         string    `json:"sop_path,omitempty"`
	ImagePath       string    `json:"image_path,omitempty"`
	Price           *float64  `json:"price,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Held reports whether the item is currently checked out.
func (i *Item) Held() bool {
	return i.HolderID != nil
}
