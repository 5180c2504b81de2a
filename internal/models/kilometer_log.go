package models

import "time"

// Log types for kilometer (odometer) readings.
const (
	LogTypeShiftStart = "SHIFT_START"
	LogTypeShiftEnd   = "SHIFT_END"
)

// ValidLogType reports whether t is a known kilometer log type.
func ValidLogType(t string) bool {
	return t == LogTypeShiftStart || t == LogTypeShiftEnd
}

// KilometerLog is a single odometer reading for a unit, tagged with the shift
// boundary it belongs to. The unique index guarantees at most one row per
// (tenant, unit, date, type); a skipped unit keeps its row with Omitted set,
// and re-capturing the same key reactivates that row instead of inserting.
type KilometerLog struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	TenantID   uint      `gorm:"not null;index:idx_km_key,unique"`
	UnitID     uint      `gorm:"not null;index:idx_km_key,unique"`
	LogDate    time.Time `gorm:"not null;index:idx_km_key,unique"` // calendar day, midnight UTC
	LogType    string    `gorm:"size:16;not null;index:idx_km_key,unique"`
	Kilometers float64   `gorm:"not null"`
	LogTime    time.Time `gorm:"not null;index"` // capture instant
	ActorID    string    `gorm:"size:64"`
	Omitted    bool      `gorm:"default:false;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Unit Unit `gorm:"foreignKey:UnitID"`
}

// DateOnly truncates t to midnight UTC, the canonical LogDate representation.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
