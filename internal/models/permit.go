package models

import "time"

// PermitType names a class of safety authorization (e.g. "Forklift", "ESD").
type PermitType struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// PermitGrant is one time-bounded authorization of a permit type to an
// employee. Grants are never mutated in place: extensions insert a new row
// keyed by a later issue date, and the grant with the latest issue date is
// the current one.
type PermitGrant struct {
	EmployeeID   uint       `gorm:"primaryKey;autoIncrement:false" json:"employee_id"`
	PermitTypeID uint       `gorm:"primaryKey;autoIncrement:false" json:"permit_type_id"`
	IssueDate    time.Time  `gorm:"primaryKey" json:"issue_date"`
	ExpireDate   *time.Time `json:"expire_date"`
	IssuerID     uint       `gorm:"not null" json:"issuer_id"`
}

// Permanent reports whether the grant never expires.
func (g *PermitGrant) Permanent() bool {
	return g.ExpireDate == nil
}

// Active reports whether the grant is valid at the given instant.
func (g *PermitGrant) Active(now time.Time) bool {
	return g.ExpireDate == nil || g.ExpireDate.After(now)
}

// ItemPermitRequirement declares that an item may only be checked out by a
// holder with a current grant of the referenced permit type.
type ItemPermitRequirement struct {
	ItemID       string `gorm:"primaryKey;size:64" json:"item_id"`
	PermitTypeID uint   `gorm:"primaryKey;autoIncrement:false" json:"permit_type_id"`
}
