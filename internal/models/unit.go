package models

import "time"

// Unit is a fleet vehicle identified by its unit number, driven by a named
// operator. Units are enumerated per tenant when a batch capture run starts;
// only active units participate.
type Unit struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	TenantID     uint   `gorm:"not null;index:idx_tenant_unit_number,unique"`
	UnitNumber   string `gorm:"size:32;not null;index:idx_tenant_unit_number,unique"`
	OperatorName string `gorm:"size:128;not null"`
	Active       bool   `gorm:"default:true;index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Tenant Tenant `gorm:"foreignKey:TenantID"`
}

// Label returns the human-readable identity used in chat prompts.
func (u Unit) Label() string {
	return u.OperatorName + " - " + u.UnitNumber
}
