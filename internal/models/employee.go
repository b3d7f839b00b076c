package models

import "time"

// Employee roles, in ascending order of privilege.
const (
	RoleEmployee   = "EMPLOYEE"
	RoleSupervisor = "SUPERVISOR"
	RoleAdmin      = "ADMIN"
)

// Employee describes a personnel record. SupervisorID links records into a
// reporting forest rooted at employees with a nil supervisor.
type Employee struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	CompanyID    uint       `gorm:"not null;default:1" json:"company_id"`
	SupervisorID *uint      `gorm:"index" json:"supervisor_id"`
	LastName     string     `gorm:"not null" json:"last_name"`
	FirstName    string     `gorm:"not null" json:"first_name"`
	Role         string     `gorm:"not null;default:EMPLOYEE" json:"role"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	RFIDUID      *string    `gorm:"column:rfid_uid;uniqueIndex" json:"rfid_uid,omitempty"`
	Email        *string    `gorm:"uniqueIndex" json:"email,omitempty"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsSupervisor reports whether the employee can have direct reports.
func (e *Employee) IsSupervisor() bool {
	return e.Role == RoleSupervisor
}

// IsAdmin reports whether the employee has administrative privileges.
func (e *Employee) IsAdmin() bool {
	return e.Role == RoleAdmin
}

// FullName renders the display name used on labels and scan confirmations.
func (e *Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}
