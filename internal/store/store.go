// Package store provides relational persistence for units, kilometer logs
// and fuel charges. All queries are scoped by tenant ID.
package store

import (
	"context"
	"time"

	"github.com/Fechomap/cargas-gas-sub000/internal/models"
)

// Source identifies which event stream a last-known kilometer came from.
type Source string

const (
	SourceShiftLog   Source = "shift_log"
	SourceFuelRecord Source = "fuel_record"
)

// LastKnown is the normalized result of merging the shift-log and fuel-record
// streams into a single most-recent kilometer reading for a unit.
type LastKnown struct {
	Value    float64
	Date     time.Time
	Source   Source
	SourceID uint
}

// Store is the persistence contract consumed by the batch engine, the
// kilometer validator and the chat flows.
type Store interface {
	// ListActiveUnits returns the tenant's active units ordered by unit number.
	ListActiveUnits(ctx context.Context, tenantID uint) ([]models.Unit, error)

	// GetUnit returns a unit scoped by tenant, or ErrNotFound.
	GetUnit(ctx context.Context, tenantID, unitID uint) (*models.Unit, error)

	// FindLastKnownKilometer merges both event streams and returns the most
	// recent kilometer reading for the unit, or nil when the unit has no
	// history in either stream.
	FindLastKnownKilometer(ctx context.Context, tenantID, unitID uint) (*LastKnown, error)

	// CreateLogEntry persists one odometer reading. When an omitted entry
	// already exists for the same (tenant, unit, date, type) key it is
	// reactivated in place, keeping its identity. A non-omitted entry for the
	// same key yields ErrDuplicateActiveEntry.
	CreateLogEntry(ctx context.Context, tenantID, unitID uint, kilometers float64, logType string, date time.Time, actorID string) (*models.KilometerLog, error)

	// ListEntriesForDate returns the non-omitted entries for a calendar day
	// and log type, used to compute the pending queue of a batch run.
	ListEntriesForDate(ctx context.Context, tenantID uint, date time.Time, logType string) ([]models.KilometerLog, error)

	// GetLogEntry returns a log entry scoped by tenant, or ErrNotFound.
	GetLogEntry(ctx context.Context, tenantID, entryID uint) (*models.KilometerLog, error)

	// FindNeighborEntries returns the nearest non-omitted entries strictly
	// earlier and strictly later than at (by LogTime) for the unit,
	// independent of log type. Either may be nil. excludeID is skipped so an
	// entry being edited is not its own neighbor.
	FindNeighborEntries(ctx context.Context, tenantID, unitID uint, at time.Time, excludeID uint) (prev, next *models.KilometerLog, err error)

	// FindSameDayCounterpart returns the non-omitted entry of the opposite
	// log type on the same calendar day, or nil.
	FindSameDayCounterpart(ctx context.Context, tenantID, unitID uint, date time.Time, logType string, excludeID uint) (*models.KilometerLog, error)

	// UpdateEntryKilometers overwrites an entry's kilometer value. Callers
	// run the edit validator first; this method applies the change even when
	// the validator reported warnings (explicit override path).
	UpdateEntryKilometers(ctx context.Context, tenantID, entryID uint, kilometers float64, actorID string) (*models.KilometerLog, error)

	// OmitEntry soft-deletes an entry by setting its omitted flag. The row
	// stays in place so a later capture for the same key reactivates it.
	OmitEntry(ctx context.Context, tenantID, entryID uint, actorID string) error

	// CreateFuelCharge persists a fuel purchase record.
	CreateFuelCharge(ctx context.Context, charge *models.FuelCharge) error
}
