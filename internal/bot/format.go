package bot

import (
	"fmt"
	"strings"

	"github.com/Fechomap/cargas-gas-sub000/internal/models"
	"github.com/Fechomap/cargas-gas-sub000/internal/store"
)

// logTypeLabel returns the user-facing name of a log type.
func logTypeLabel(logType string) string {
	switch logType {
	case models.LogTypeShiftStart:
		return "Inicio de turno"
	case models.LogTypeShiftEnd:
		return "Fin de turno"
	}
	return logType
}

// sourceLabel returns the user-facing name of a last-known source.
func sourceLabel(src store.Source) string {
	switch src {
	case store.SourceShiftLog:
		return "registro de turno"
	case store.SourceFuelRecord:
		return "carga de combustible"
	}
	return string(src)
}

// fuelTypeLabel returns the user-facing name of a fuel type.
func fuelTypeLabel(fuelType string) string {
	switch fuelType {
	case models.FuelTypeGas:
		return "Gas"
	case models.FuelTypeGasoline:
		return "Gasolina"
	case models.FuelTypeDiesel:
		return "Diésel"
	}
	return fuelType
}

// formatBatchSummary renders the terminal message of a batch run: counts
// first, then the per-unit outcomes.
func formatBatchSummary(summary BatchSummary, job *BatchJob) string {
	var b strings.Builder

	if summary.Cancelled {
		fmt.Fprintf(&b, "🛑 Proceso cancelado - %s del %s\n",
			logTypeLabel(summary.LogType), summary.Date.Format("2006-01-02"))
	} else {
		fmt.Fprintf(&b, "✅ Proceso completado - %s del %s\n",
			logTypeLabel(summary.LogType), summary.Date.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "Registradas: %d | Omitidas: %d", summary.Processed, summary.Omitted)
	if summary.Cancelled {
		fmt.Fprintf(&b, " | Pendientes: %d", summary.Remaining)
	}
	b.WriteByte('\n')

	for _, outcome := range job.Processed {
		if outcome.Kilometers == sentinelAlreadyLogged {
			fmt.Fprintf(&b, "• %s: ya registrada\n", outcome.Unit.Label())
			continue
		}
		fmt.Fprintf(&b, "• %s: %.2f km\n", outcome.Unit.Label(), outcome.Kilometers)
	}
	for _, unit := range job.Omitted {
		fmt.Fprintf(&b, "• %s: omitida\n", unit.Label())
	}

	return strings.TrimRight(b.String(), "\n")
}

// formatFuelDraft renders the confirmation summary of a fuel-charge form.
func formatFuelDraft(draft *FuelDraft) string {
	var b strings.Builder
	b.WriteString("⛽ Confirma la carga:\n")
	fmt.Fprintf(&b, "Unidad: %s\n", draft.UnitLabel)
	fmt.Fprintf(&b, "Combustible: %s\n", fuelTypeLabel(draft.FuelType))
	fmt.Fprintf(&b, "Litros: %.2f\n", draft.Liters)
	fmt.Fprintf(&b, "Monto: $%.2f\n", draft.Amount)
	if draft.Kilometers != nil {
		fmt.Fprintf(&b, "Kilometraje: %.2f\n", *draft.Kilometers)
	} else {
		b.WriteString("Kilometraje: omitido\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
