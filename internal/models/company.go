package models

import "time"

// Company mirrors the licensing record held on the remote server. Only the
// fields the client reads are mapped.
type Company struct {
	ID                uint       `gorm:"primaryKey;column:company_id" json:"company_id"`
	Name              string     `gorm:"column:company_name" json:"company_name"`
	Address           string     `gorm:"column:company_address" json:"company_address"`
	RootAdminEmail    string     `gorm:"column:root_admin_email;uniqueIndex" json:"root_admin_email"`
	RootAdminPassword string     `gorm:"column:root_admin_password" json:"-"`
	LicenceCode       string     `gorm:"column:licence_code" json:"-"`
	LicenceType       string     `gorm:"column:licence_type" json:"licence_type"`
	LicenceExpireDate *time.Time `gorm:"column:licence_expire_date" json:"licence_expire_date"`
}

// TableName keeps the legacy table naming used by the remote schema.
func (Company) TableName() string { return "companies" }

// DeviceActivation records the single machine a company license is bound to.
type DeviceActivation struct {
	CompanyID uint      `gorm:"primaryKey;autoIncrement:false" json:"company_id"`
	DeviceID  string    `gorm:"not null" json:"device_id"`
	CreatedAt time.Time `json:"created_at"`
}
