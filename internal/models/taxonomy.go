package models

// Category is the top level of the item taxonomy.
type Category struct {
	Code        string `gorm:"primaryKey;size:16" json:"code"`
	Description string `json:"description"`
}

// SubCategory is the second taxonomy level, scoped to a category.
type SubCategory struct {
	Code         string `gorm:"primaryKey;size:16" json:"code"`
	CategoryCode string `gorm:"index;not null" json:"category_code"`
	Description  string `json:"description"`
}

// MaxParameterSlots bounds the ordered parameter positions per subcategory.
const MaxParameterSlots = 5

// Parameter names one ordered slot of a subcategory's item-id template.
// (SubCategoryCode, Position) is unique; positions form a dense 1..N run.
type Parameter struct {
	SubCategoryCode string `gorm:"primaryKey;size:16" json:"subcategory_code"`
	Position        int    `gorm:"primaryKey;autoIncrement:false" json:"position"`
	Name            string `gorm:"not null" json:"name"`
}
