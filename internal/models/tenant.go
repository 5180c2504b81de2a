package models

import "time"

// Tenant is an isolated customer company. Every unit, kilometer log and fuel
// charge is scoped to exactly one tenant; the tenant ID is the sole isolation
// mechanism across companies.
type Tenant struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"size:128;not null;uniqueIndex"`
	ChannelID string `gorm:"size:128"` // chat channel for reminders and batch runs
	Active    bool   `gorm:"default:true;index"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Units []Unit `gorm:"foreignKey:TenantID"`
}
