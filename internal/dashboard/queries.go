package dashboard

import (
	"time"

	"github.com/Fechomap/cargas-gas-sub000/internal/models"
	"gorm.io/gorm"
)

// UnitRow holds unit data for display.
type UnitRow struct {
	ID           uint   `json:"id"`
	UnitNumber   string `json:"unit_number"`
	OperatorName string `json:"operator_name"`
	Active       bool   `json:"active"`
}

// UnitSummary returns a tenant's units, active first, by unit number.
func UnitSummary(db *gorm.DB, tenantID uint) ([]UnitRow, error) {
	var units []models.Unit
	if err := db.Where("tenant_id = ?", tenantID).
		Order("active DESC, unit_number ASC").Find(&units).Error; err != nil {
		return nil, err
	}

	rows := make([]UnitRow, len(units))
	for i, u := range units {
		rows[i] = UnitRow{
			ID:           u.ID,
			UnitNumber:   u.UnitNumber,
			OperatorName: u.OperatorName,
			Active:       u.Active,
		}
	}
	return rows, nil
}

// KilometerRow holds one odometer reading for display.
type KilometerRow struct {
	ID         uint      `json:"id"`
	UnitID     uint      `json:"unit_id"`
	UnitNumber string    `json:"unit_number"`
	LogDate    string    `json:"log_date"`
	LogType    string    `json:"log_type"`
	Kilometers float64   `json:"kilometers"`
	LogTime    time.Time `json:"log_time"`
	ActorID    string    `json:"actor_id"`
	Omitted    bool      `json:"omitted"`
}

// KilometerFilter narrows a kilometer log listing. Zero values mean "any".
type KilometerFilter struct {
	Date    time.Time
	LogType string
}

// KilometerSummary returns a tenant's kilometer logs, newest first, capped
// at 200 rows.
func KilometerSummary(db *gorm.DB, tenantID uint, filter KilometerFilter) ([]KilometerRow, error) {
	q := db.Model(&models.KilometerLog{}).
		Preload("Unit").
		Where("tenant_id = ?", tenantID)
	if !filter.Date.IsZero() {
		q = q.Where("log_date = ?", models.DateOnly(filter.Date))
	}
	if filter.LogType != "" {
		q = q.Where("log_type = ?", filter.LogType)
	}

	var entries []models.KilometerLog
	if err := q.Order("log_time DESC").Limit(200).Find(&entries).Error; err != nil {
		return nil, err
	}

	rows := make([]KilometerRow, len(entries))
	for i, e := range entries {
		rows[i] = KilometerRow{
			ID:         e.ID,
			UnitID:     e.UnitID,
			UnitNumber: e.Unit.UnitNumber,
			LogDate:    e.LogDate.Format("2006-01-02"),
			LogType:    e.LogType,
			Kilometers: e.Kilometers,
			LogTime:    e.LogTime,
			ActorID:    e.ActorID,
			Omitted:    e.Omitted,
		}
	}
	return rows, nil
}

// ChargeRow holds one fuel charge for display.
type ChargeRow struct {
	ID            uint      `json:"id"`
	UnitID        uint      `json:"unit_id"`
	UnitNumber    string    `json:"unit_number"`
	FuelType      string    `json:"fuel_type"`
	Liters        float64   `json:"liters"`
	Amount        float64   `json:"amount"`
	Kilometers    *float64  `json:"kilometers,omitempty"`
	PaymentStatus string    `json:"payment_status"`
	RecordDate    time.Time `json:"record_date"`
}

// ChargeSummary returns a tenant's fuel charges, newest first, optionally
// filtered by payment status, capped at 200 rows.
func ChargeSummary(db *gorm.DB, tenantID uint, paymentStatus string) ([]ChargeRow, error) {
	q := db.Model(&models.FuelCharge{}).
		Preload("Unit").
		Where("tenant_id = ?", tenantID)
	if paymentStatus != "" {
		q = q.Where("payment_status = ?", paymentStatus)
	}

	var charges []models.FuelCharge
	if err := q.Order("record_date DESC").Limit(200).Find(&charges).Error; err != nil {
		return nil, err
	}

	rows := make([]ChargeRow, len(charges))
	for i, c := range charges {
		rows[i] = ChargeRow{
			ID:            c.ID,
			UnitID:        c.UnitID,
			UnitNumber:    c.Unit.UnitNumber,
			FuelType:      c.FuelType,
			Liters:        c.Liters,
			Amount:        c.Amount,
			Kilometers:    c.Kilometers,
			PaymentStatus: c.PaymentStatus,
			RecordDate:    c.RecordDate,
		}
	}
	return rows, nil
}

// PendingTotal returns the number and combined amount of unpaid charges for
// a tenant.
func PendingTotal(db *gorm.DB, tenantID uint) (int64, float64, error) {
	type agg struct {
		Count int64
		Total float64
	}
	var a agg
	err := db.Model(&models.FuelCharge{}).
		Select("count(*) as count, coalesce(sum(amount), 0) as total").
		Where("tenant_id = ? AND payment_status = ?", tenantID, models.PaymentPending).
		Scan(&a).Error
	if err != nil {
		return 0, 0, err
	}
	return a.Count, a.Total, nil
}

// MarkChargePaid flips a charge to paid. It reports gorm.ErrRecordNotFound
// when the charge does not exist.
func MarkChargePaid(db *gorm.DB, chargeID uint) error {
	result := db.Model(&models.FuelCharge{}).
		Where("id = ?", chargeID).
		Update("payment_status", models.PaymentPaid)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
