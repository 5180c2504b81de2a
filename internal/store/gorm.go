package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Fechomap/cargas-gas-sub000/internal/models"
	"gorm.io/gorm"
)

// GormStore implements Store on a GORM database handle.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("store: db is required")
	}
	return &GormStore{db: db}, nil
}

// ListActiveUnits returns the tenant's active units ordered by unit number.
func (s *GormStore) ListActiveUnits(ctx context.Context, tenantID uint) ([]models.Unit, error) {
	var units []models.Unit
	result := s.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Order("unit_number").Find(&units)
	if result.Error != nil {
		return nil, fmt.Errorf("store: list active units: %w", result.Error)
	}
	return units, nil
}

// GetUnit returns a unit scoped by tenant.
func (s *GormStore) GetUnit(ctx context.Context, tenantID, unitID uint) (*models.Unit, error) {
	var unit models.Unit
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, unitID).
		First(&unit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get unit %d: %w", unitID, err)
	}
	return &unit, nil
}

// FindLastKnownKilometer merges the shift-log and fuel-record streams into
// the single most recent reading for the unit. On equal dates the shift log
// wins unless the fuel record carries a strictly greater value.
func (s *GormStore) FindLastKnownKilometer(ctx context.Context, tenantID, unitID uint) (*LastKnown, error) {
	var lastLog models.KilometerLog
	logErr := s.db.WithContext(ctx).
		Where("tenant_id = ? AND unit_id = ? AND omitted = ?", tenantID, unitID, false).
		Order("log_time DESC").First(&lastLog).Error
	if logErr != nil && !errors.Is(logErr, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("store: last shift log: %w", logErr)
	}

	var lastCharge models.FuelCharge
	chargeErr := s.db.WithContext(ctx).
		Where("tenant_id = ? AND unit_id = ? AND kilometers IS NOT NULL", tenantID, unitID).
		Order("record_date DESC").First(&lastCharge).Error
	if chargeErr != nil && !errors.Is(chargeErr, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("store: last fuel record: %w", chargeErr)
	}

	hasLog := logErr == nil
	hasCharge := chargeErr == nil

	switch {
	case !hasLog && !hasCharge:
		return nil, nil
	case hasLog && !hasCharge:
		return fromShiftLog(lastLog), nil
	case !hasLog && hasCharge:
		return fromFuelRecord(lastCharge), nil
	}

	// Both streams have history: pick the later date; on a tie, the shift
	// log wins unless the fuel record is strictly larger, which keeps the
	// monotonicity reference as tight as possible.
	if lastCharge.RecordDate.After(lastLog.LogTime) {
		return fromFuelRecord(lastCharge), nil
	}
	if lastCharge.RecordDate.Equal(lastLog.LogTime) && *lastCharge.Kilometers > lastLog.Kilometers {
		return fromFuelRecord(lastCharge), nil
	}
	return fromShiftLog(lastLog), nil
}

func fromShiftLog(entry models.KilometerLog) *LastKnown {
	return &LastKnown{
		Value:    entry.Kilometers,
		Date:     entry.LogTime,
		Source:   SourceShiftLog,
		SourceID: entry.ID,
	}
}

func fromFuelRecord(charge models.FuelCharge) *LastKnown {
	return &LastKnown{
		Value:    *charge.Kilometers,
		Date:     charge.RecordDate,
		Source:   SourceFuelRecord,
		SourceID: charge.ID,
	}
}

// CreateLogEntry persists one odometer reading, reactivating a matching
// omitted row when one exists.
func (s *GormStore) CreateLogEntry(ctx context.Context, tenantID, unitID uint, kilometers float64, logType string, date time.Time, actorID string) (*models.KilometerLog, error) {
	if !models.ValidLogType(logType) {
		return nil, fmt.Errorf("store: invalid log type %q", logType)
	}
	day := models.DateOnly(date)

	var existing models.KilometerLog
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND unit_id = ? AND log_date = ? AND log_type = ?",
			tenantID, unitID, day, logType).
		First(&existing).Error
	switch {
	case err == nil && !existing.Omitted:
		return nil, ErrDuplicateActiveEntry
	case err == nil:
		// Reactivate the omitted row in place, keeping its identity.
		updates := map[string]interface{}{
			"kilometers": kilometers,
			"actor_id":   actorID,
			"log_time":   time.Now().UTC(),
			"omitted":    false,
		}
		if uerr := s.db.WithContext(ctx).Model(&existing).Updates(updates).Error; uerr != nil {
			return nil, fmt.Errorf("store: reactivate entry %d: %w", existing.ID, uerr)
		}
		return s.GetLogEntry(ctx, tenantID, existing.ID)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("store: lookup existing entry: %w", err)
	}

	entry := models.KilometerLog{
		TenantID:   tenantID,
		UnitID:     unitID,
		LogDate:    day,
		LogType:    logType,
		Kilometers: kilometers,
		LogTime:    time.Now().UTC(),
		ActorID:    actorID,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, ErrDuplicateActiveEntry
		}
		return nil, fmt.Errorf("store: create log entry: %w", err)
	}
	return &entry, nil
}

// ListEntriesForDate returns non-omitted entries for one day and log type.
func (s *GormStore) ListEntriesForDate(ctx context.Context, tenantID uint, date time.Time, logType string) ([]models.KilometerLog, error) {
	var entries []models.KilometerLog
	result := s.db.WithContext(ctx).
		Where("tenant_id = ? AND log_date = ? AND log_type = ? AND omitted = ?",
			tenantID, models.DateOnly(date), logType, false).
		Order("unit_id").Find(&entries)
	if result.Error != nil {
		return nil, fmt.Errorf("store: list entries for date: %w", result.Error)
	}
	return entries, nil
}

// GetLogEntry returns a log entry scoped by tenant.
func (s *GormStore) GetLogEntry(ctx context.Context, tenantID, entryID uint) (*models.KilometerLog, error) {
	var entry models.KilometerLog
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, entryID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get log entry %d: %w", entryID, err)
	}
	return &entry, nil
}

// FindNeighborEntries returns the nearest non-omitted entries around at.
func (s *GormStore) FindNeighborEntries(ctx context.Context, tenantID, unitID uint, at time.Time, excludeID uint) (prev, next *models.KilometerLog, err error) {
	var before models.KilometerLog
	berr := s.db.WithContext(ctx).
		Where("tenant_id = ? AND unit_id = ? AND omitted = ? AND log_time < ? AND id != ?",
			tenantID, unitID, false, at, excludeID).
		Order("log_time DESC").First(&before).Error
	if berr == nil {
		prev = &before
	} else if !errors.Is(berr, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("store: earlier neighbor: %w", berr)
	}

	var after models.KilometerLog
	aerr := s.db.WithContext(ctx).
		Where("tenant_id = ? AND unit_id = ? AND omitted = ? AND log_time > ? AND id != ?",
			tenantID, unitID, false, at, excludeID).
		Order("log_time ASC").First(&after).Error
	if aerr == nil {
		next = &after
	} else if !errors.Is(aerr, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("store: later neighbor: %w", aerr)
	}

	return prev, next, nil
}

// FindSameDayCounterpart returns the opposite-type entry on the same day.
func (s *GormStore) FindSameDayCounterpart(ctx context.Context, tenantID, unitID uint, date time.Time, logType string, excludeID uint) (*models.KilometerLog, error) {
	other := models.LogTypeShiftEnd
	if logType == models.LogTypeShiftEnd {
		other = models.LogTypeShiftStart
	}

	var entry models.KilometerLog
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND unit_id = ? AND log_date = ? AND log_type = ? AND omitted = ? AND id != ?",
			tenantID, unitID, models.DateOnly(date), other, false, excludeID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: same-day counterpart: %w", err)
	}
	return &entry, nil
}

// UpdateEntryKilometers overwrites an entry's kilometer value.
func (s *GormStore) UpdateEntryKilometers(ctx context.Context, tenantID, entryID uint, kilometers float64, actorID string) (*models.KilometerLog, error) {
	entry, err := s.GetLogEntry(ctx, tenantID, entryID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"kilometers": kilometers,
		"actor_id":   actorID,
	}
	if err := s.db.WithContext(ctx).Model(entry).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("store: update entry %d: %w", entryID, err)
	}
	return s.GetLogEntry(ctx, tenantID, entryID)
}

// OmitEntry soft-deletes an entry by setting its omitted flag.
func (s *GormStore) OmitEntry(ctx context.Context, tenantID, entryID uint, actorID string) error {
	entry, err := s.GetLogEntry(ctx, tenantID, entryID)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{
		"omitted":  true,
		"actor_id": actorID,
	}
	if err := s.db.WithContext(ctx).Model(entry).Updates(updates).Error; err != nil {
		return fmt.Errorf("store: omit entry %d: %w", entryID, err)
	}
	return nil
}

// CreateFuelCharge persists a fuel purchase record.
func (s *GormStore) CreateFuelCharge(ctx context.Context, charge *models.FuelCharge) error {
	if charge.RecordDate.IsZero() {
		charge.RecordDate = time.Now().UTC()
	}
	if charge.PaymentStatus == "" {
		charge.PaymentStatus = models.PaymentPending
	}
	if err := s.db.WithContext(ctx).Create(charge).Error; err != nil {
		return fmt.Errorf("store: create fuel charge: %w", err)
	}
	return nil
}
