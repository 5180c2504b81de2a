package models

import "time"

// Fuel types offered by the charge form.
const (
	FuelTypeGas      = "gas"
	FuelTypeGasoline = "gasolina"
	FuelTypeDiesel   = "diesel"
)

// Payment states for a fuel charge.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
)

// FuelCharge is a fuel purchase recorded for a unit. Kilometers is optional;
// when present it participates in the cross-source last-known-kilometer
// resolution alongside KilometerLog rows.
type FuelCharge struct {
	ID            uint     `gorm:"primaryKey;autoIncrement"`
	TenantID      uint     `gorm:"not null;index"`
	UnitID        uint     `gorm:"not null;index"`
	Liters        float64  `gorm:"not null"`
	Amount        float64  `gorm:"not null"`
	FuelType      string   `gorm:"size:16;not null"`
	Kilometers    *float64 // nil when the operator skipped the odometer step
	RecordDate    time.Time `gorm:"not null;index"`
	ActorID       string    `gorm:"size:64"`
	PaymentStatus string    `gorm:"size:16;default:pending;index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Unit Unit `gorm:"foreignKey:UnitID"`
}
