// Package kilometer validates odometer readings against a unit's history.
//
// Two entry points share the comparison logic but differ in strictness:
// ValidateCreate fails closed (live data entry), ValidateEdit reports
// non-fatal warnings with suggested bounds (administrative corrections that
// must remain possible even when locally inconsistent).
package kilometer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Fechomap/cargas-gas-sub000/internal/models"
	"github.com/Fechomap/cargas-gas-sub000/internal/store"
)

// Code identifies a validation outcome.
type Code string

const (
	CodeInvalidFormat Code = "INVALID_FORMAT"
	CodeBelowLast     Code = "KILOMETER_BELOW_LAST"
	CodeHighIncrement Code = "HIGH_INCREMENT"
)

// ErrInvalidFormat is returned by ParseKilometers for malformed input.
var ErrInvalidFormat = errors.New("kilometer: invalid format")

// HistorySource is the subset of the store the validator reads from.
type HistorySource interface {
	FindLastKnownKilometer(ctx context.Context, tenantID, unitID uint) (*store.LastKnown, error)
	FindNeighborEntries(ctx context.Context, tenantID, unitID uint, at time.Time, excludeID uint) (prev, next *models.KilometerLog, err error)
	FindSameDayCounterpart(ctx context.Context, tenantID, unitID uint, date time.Time, logType string, excludeID uint) (*models.KilometerLog, error)
}

// Validator checks candidate kilometer readings for a unit.
type Validator struct {
	src       HistorySource
	threshold float64
}

// Opts holds parameters for creating a Validator.
type Opts struct {
	Source                 HistorySource
	HighIncrementThreshold float64 // defaults to 1000
}

// New creates a Validator.
func New(opts Opts) (*Validator, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("kilometer: history source is required")
	}
	threshold := opts.HighIncrementThreshold
	if threshold <= 0 {
		threshold = 1000
	}
	return &Validator{src: opts.Source, threshold: threshold}, nil
}

// Result is the outcome of a creation-path validation.
type Result struct {
	Valid     bool
	Code      Code             // set on rejection or warning, empty otherwise
	Warning   bool             // true when Code is advisory and the value is accepted
	LastKnown *store.LastKnown // nil for a unit's first record
	Increment float64          // candidate minus last known (0 for first record)
	Message   string
}

// ParseKilometers parses user text into a kilometer value. It accepts a
// comma as decimal separator, requires a non-negative value and allows at
// most two decimal digits.
func ParseKilometers(text string) (float64, error) {
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", "."))
	if text == "" {
		return 0, ErrInvalidFormat
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, ErrInvalidFormat
	}
	// Check the parsed value, not the text: exponent forms like "1e-3"
	// carry decimal places without a literal dot.
	if !checkValue(value) {
		return 0, ErrInvalidFormat
	}
	return value, nil
}

// checkValue re-applies the format constraints to an already-parsed value.
func checkValue(candidate float64) bool {
	if candidate < 0 || math.IsInf(candidate, 0) || math.IsNaN(candidate) {
		return false
	}
	// At most two decimal places.
	scaled := candidate * 100
	return math.Abs(scaled-math.Round(scaled)) < 1e-6
}

// ValidateCreate validates a candidate reading for live data entry.
//
// A unit with no history in either stream accepts any well-formed value. A
// candidate below the last known value is a hard rejection; an increment
// above the configured threshold is accepted with a HIGH_INCREMENT warning
// the caller must surface.
func (v *Validator) ValidateCreate(ctx context.Context, tenantID, unitID uint, candidate float64) (*Result, error) {
	if !checkValue(candidate) {
		return &Result{
			Code:    CodeInvalidFormat,
			Message: "El valor debe ser un número no negativo con máximo 2 decimales.",
		}, nil
	}

	last, err := v.src.FindLastKnownKilometer(ctx, tenantID, unitID)
	if err != nil {
		return nil, fmt.Errorf("kilometer: resolve last known: %w", err)
	}
	if last == nil {
		// First record for this unit: unconditionally valid.
		return &Result{Valid: true}, nil
	}

	if candidate < last.Value {
		return &Result{
			Code:      CodeBelowLast,
			LastKnown: last,
			Increment: candidate - last.Value,
			Message: fmt.Sprintf("El kilometraje %.2f es menor al último registrado (%.2f del %s).",
				candidate, last.Value, last.Date.Format("2006-01-02")),
		}, nil
	}

	result := &Result{
		Valid:     true,
		LastKnown: last,
		Increment: candidate - last.Value,
	}
	if result.Increment > v.threshold {
		result.Code = CodeHighIncrement
		result.Warning = true
		result.Message = fmt.Sprintf("Incremento de %.2f km respecto al último registro (%.2f). Verifica el valor.",
			result.Increment, last.Value)
	}
	return result, nil
}

// EditWarning describes one inconsistency found by the edit validator,
// with the concrete bound the conflicting entry implies.
type EditWarning struct {
	Message string
	// Bound is the kilometer value of the conflicting entry. Exclusive
	// reports whether the suggested range excludes the bound itself.
	Bound     float64
	Exclusive bool
}

// EditResult is the outcome of a neighbor-aware edit validation. Warnings
// never block the update; the caller decides whether to force it.
type EditResult struct {
	OK           bool
	Warnings     []EditWarning
	SuggestedMin *float64 // inclusive lower bound from the earlier neighbor
	SuggestedMax *float64 // upper bound from the later neighbor or same-day rule
}

// ValidateEdit checks a proposed replacement value for an existing entry
// against both its nearest earlier and nearest later entries (any log type),
// plus the same-day SHIFT_START < SHIFT_END rule.
func (v *Validator) ValidateEdit(ctx context.Context, tenantID uint, entry *models.KilometerLog, newValue float64) (*EditResult, error) {
	if entry == nil {
		return nil, fmt.Errorf("kilometer: entry is required")
	}

	result := &EditResult{}

	prev, next, err := v.src.FindNeighborEntries(ctx, tenantID, entry.UnitID, entry.LogTime, entry.ID)
	if err != nil {
		return nil, fmt.Errorf("kilometer: find neighbors: %w", err)
	}

	if prev != nil && newValue < prev.Kilometers {
		result.Warnings = append(result.Warnings, EditWarning{
			Message: fmt.Sprintf("El valor %.2f es menor al registro anterior (%.2f del %s). Usa un valor de al menos %.2f.",
				newValue, prev.Kilometers, prev.LogTime.Format("2006-01-02"), prev.Kilometers),
			Bound: prev.Kilometers,
		})
		result.SuggestedMin = &prev.Kilometers
	}
	if next != nil && newValue > next.Kilometers {
		result.Warnings = append(result.Warnings, EditWarning{
			Message: fmt.Sprintf("El valor %.2f es mayor al registro siguiente (%.2f del %s). Usa un valor de máximo %.2f.",
				newValue, next.Kilometers, next.LogTime.Format("2006-01-02"), next.Kilometers),
			Bound: next.Kilometers,
		})
		result.SuggestedMax = &next.Kilometers
	}

	counterpart, err := v.src.FindSameDayCounterpart(ctx, tenantID, entry.UnitID, entry.LogDate, entry.LogType, entry.ID)
	if err != nil {
		return nil, fmt.Errorf("kilometer: same-day counterpart: %w", err)
	}
	if counterpart != nil {
		switch entry.LogType {
		case models.LogTypeShiftStart:
			if newValue >= counterpart.Kilometers {
				result.Warnings = append(result.Warnings, EditWarning{
					Message: fmt.Sprintf("El inicio de turno no puede ser mayor o igual al fin de turno del mismo día (%.2f). Usa un valor menor a %.2f.",
						counterpart.Kilometers, counterpart.Kilometers),
					Bound:     counterpart.Kilometers,
					Exclusive: true,
				})
				if result.SuggestedMax == nil || counterpart.Kilometers < *result.SuggestedMax {
					result.SuggestedMax = &counterpart.Kilometers
				}
			}
		case models.LogTypeShiftEnd:
			if newValue <= counterpart.Kilometers {
				result.Warnings = append(result.Warnings, EditWarning{
					Message: fmt.Sprintf("El fin de turno no puede ser menor o igual al inicio de turno del mismo día (%.2f). Usa un valor mayor a %.2f.",
						counterpart.Kilometers, counterpart.Kilometers),
					Bound:     counterpart.Kilometers,
					Exclusive: true,
				})
				if result.SuggestedMin == nil || counterpart.Kilometers > *result.SuggestedMin {
					result.SuggestedMin = &counterpart.Kilometers
				}
			}
		}
	}

	result.OK = len(result.Warnings) == 0
	return result, nil
}
