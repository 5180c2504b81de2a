package bot

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/Fechomap/cargas-gas-sub000/internal/kilometer"
	"github.com/Fechomap/cargas-gas-sub000/internal/models"
	"github.com/Fechomap/cargas-gas-sub000/internal/store"
)

// Callback payloads for the fuel-charge form buttons.
const (
	cbFuelUnit    = "fuelunit"  // fuelunit_<unitID>
	cbFuelType    = "fueltype"  // fueltype_<type>
	cbFuelSkipKm  = "fuel_skipkm"
	cbFuelConfirm = "fuel_confirm"
	cbFuelCancel  = "fuel_cancel"
)

// FuelDraft is the flow data of an in-progress fuel-charge form.
type FuelDraft struct {
	UnitID     uint
	UnitLabel  string
	FuelType   string
	Liters     float64
	Amount     float64
	Kilometers *float64
}

func (d *FuelDraft) flowData() {}

// FuelFlow is the guided multi-step form that records a fuel charge:
// unit → fuel type → liters → amount → optional validated kilometers →
// confirmation.
type FuelFlow struct {
	sessions  *SessionStore
	store     store.Store
	validator *kilometer.Validator
	adapter   Adapter
	out       io.Writer
}

// FuelFlowOpts holds parameters for creating a FuelFlow.
type FuelFlowOpts struct {
	Sessions  *SessionStore
	Store     store.Store
	Validator *kilometer.Validator
	Adapter   Adapter
	Out       io.Writer // defaults to os.Stdout
}

// NewFuelFlow creates a FuelFlow and registers its step handlers on the
// dispatcher.
func NewFuelFlow(d *Dispatcher, opts FuelFlowOpts) (*FuelFlow, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("bot: fuel flow: sessions is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("bot: fuel flow: store is required")
	}
	if opts.Validator == nil {
		return nil, fmt.Errorf("bot: fuel flow: validator is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("bot: fuel flow: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	f := &FuelFlow{
		sessions:  opts.Sessions,
		store:     opts.Store,
		validator: opts.Validator,
		adapter:   opts.Adapter,
		out:       out,
	}
	steps := map[State]HandlerFunc{
		StateFuelAwaitingUnit:       f.handleUnit,
		StateFuelAwaitingType:       f.handleType,
		StateFuelAwaitingLiters:     f.handleLiters,
		StateFuelAwaitingAmount:     f.handleAmount,
		StateFuelAwaitingKilometers: f.handleKilometers,
		StateFuelAwaitingConfirm:    f.handleConfirm,
	}
	for state, h := range steps {
		if err := d.Register(state, h); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Start opens the form by offering the tenant's active units as buttons.
func (f *FuelFlow) Start(ctx context.Context, ev InboundEvent) error {
	units, err := f.store.ListActiveUnits(ctx, ev.TenantID)
	if err != nil {
		return fmt.Errorf("bot: fuel start: %w", err)
	}
	if len(units) == 0 {
		return f.send(ctx, ev.ChatID, "No hay unidades activas registradas.")
	}

	var rows [][]Button
	for _, u := range units {
		rows = append(rows, []Button{{
			Label: u.Label(),
			Data:  fmt.Sprintf("%s_%d", cbFuelUnit, u.ID),
		}})
	}
	rows = append(rows, []Button{{Label: "Cancelar", Data: cbFuelCancel}})

	if err := f.sessions.TransitionWithData(ev.ChatID, StateFuelAwaitingUnit, &FuelDraft{}); err != nil {
		return err
	}
	return f.adapter.Send(ctx, OutboundMessage{
		ChatID:  ev.ChatID,
		Text:    "⛽ Nueva carga de combustible. Selecciona la unidad:",
		Buttons: rows,
	})
}

func (f *FuelFlow) handleUnit(ctx context.Context, ev InboundEvent) error {
	if done, err := f.cancelled(ctx, ev); done {
		return err
	}
	param, ok := ev.CallbackParam(cbFuelUnit)
	if !ok {
		return f.send(ctx, ev.ChatID, "Selecciona una unidad con los botones.")
	}
	unitID, err := strconv.ParseUint(param, 10, 32)
	if err != nil {
		return fmt.Errorf("bot: fuel unit callback %q: %w", ev.Callback, err)
	}
	unit, err := f.store.GetUnit(ctx, ev.TenantID, uint(unitID))
	if err != nil {
		return fmt.Errorf("bot: fuel unit lookup: %w", err)
	}

	draft := f.draft(ev.ChatID)
	draft.UnitID = unit.ID
	draft.UnitLabel = unit.Label()

	if err := f.sessions.Transition(ev.ChatID, StateFuelAwaitingType); err != nil {
		return err
	}
	return f.adapter.Send(ctx, OutboundMessage{
		ChatID: ev.ChatID,
		Text:   fmt.Sprintf("Unidad %s. Tipo de combustible:", unit.Label()),
		Buttons: [][]Button{{
			{Label: "Gas", Data: cbFuelType + "_" + models.FuelTypeGas},
			{Label: "Gasolina", Data: cbFuelType + "_" + models.FuelTypeGasoline},
			{Label: "Diésel", Data: cbFuelType + "_" + models.FuelTypeDiesel},
		}, {
			{Label: "Cancelar", Data: cbFuelCancel},
		}},
	})
}

func (f *FuelFlow) handleType(ctx context.Context, ev InboundEvent) error {
	if done, err := f.cancelled(ctx, ev); done {
		return err
	}
	fuelType, ok := ev.CallbackParam(cbFuelType)
	if !ok {
		return f.send(ctx, ev.ChatID, "Selecciona el tipo de combustible con los botones.")
	}

	draft := f.draft(ev.ChatID)
	draft.FuelType = fuelType

	if err := f.sessions.Transition(ev.ChatID, StateFuelAwaitingLiters); err != nil {
		return err
	}
	return f.send(ctx, ev.ChatID, "Escribe los litros cargados:")
}

func (f *FuelFlow) handleLiters(ctx context.Context, ev InboundEvent) error {
	if done, err := f.cancelled(ctx, ev); done {
		return err
	}
	liters, err := parsePositiveAmount(ev.Text)
	if err != nil {
		return f.send(ctx, ev.ChatID, "⚠️ Litros inválidos. Escribe un número mayor a cero, máximo 2 decimales.")
	}

	draft := f.draft(ev.ChatID)
	draft.Liters = liters

	if err := f.sessions.Transition(ev.ChatID, StateFuelAwaitingAmount); err != nil {
		return err
	}
	return f.send(ctx, ev.ChatID, "Escribe el monto total en pesos:")
}

func (f *FuelFlow) handleAmount(ctx context.Context, ev InboundEvent) error {
	if done, err := f.cancelled(ctx, ev); done {
		return err
	}
	amount, err := parsePositiveAmount(ev.Text)
	if err != nil {
		return f.send(ctx, ev.ChatID, "⚠️ Monto inválido. Escribe un número mayor a cero, máximo 2 decimales.")
	}

	draft := f.draft(ev.ChatID)
	draft.Amount = amount

	if err := f.sessions.Transition(ev.ChatID, StateFuelAwaitingKilometers); err != nil {
		return err
	}
	return f.adapter.Send(ctx, OutboundMessage{
		ChatID: ev.ChatID,
		Text:   "Escribe el kilometraje actual (opcional):",
		Buttons: [][]Button{{
			{Label: "Omitir kilometraje", Data: cbFuelSkipKm},
			{Label: "Cancelar", Data: cbFuelCancel},
		}},
	})
}

func (f *FuelFlow) handleKilometers(ctx context.Context, ev InboundEvent) error {
	if done, err := f.cancelled(ctx, ev); done {
		return err
	}
	draft := f.draft(ev.ChatID)

	if ev.Callback == cbFuelSkipKm {
		draft.Kilometers = nil
		return f.confirm(ctx, ev.ChatID, draft)
	}

	value, err := kilometer.ParseKilometers(ev.Text)
	if err != nil {
		return f.send(ctx, ev.ChatID, "⚠️ Kilometraje inválido. Escribe un número no negativo con máximo 2 decimales, o usa Omitir.")
	}
	result, err := f.validator.ValidateCreate(ctx, ev.TenantID, draft.UnitID, value)
	if err != nil {
		return fmt.Errorf("bot: fuel validate km: %w", err)
	}
	if !result.Valid {
		// Same strictness as live capture: re-prompt without advancing.
		return f.send(ctx, ev.ChatID, "❌ "+result.Message)
	}
	if result.Warning {
		if err := f.send(ctx, ev.ChatID, "⚠️ "+result.Message); err != nil {
			return err
		}
	}

	draft.Kilometers = &value
	return f.confirm(ctx, ev.ChatID, draft)
}

func (f *FuelFlow) confirm(ctx context.Context, chatID string, draft *FuelDraft) error {
	if err := f.sessions.Transition(chatID, StateFuelAwaitingConfirm); err != nil {
		return err
	}
	return f.adapter.Send(ctx, OutboundMessage{
		ChatID: chatID,
		Text:   formatFuelDraft(draft),
		Buttons: [][]Button{{
			{Label: "Confirmar", Data: cbFuelConfirm},
			{Label: "Cancelar", Data: cbFuelCancel},
		}},
	})
}

func (f *FuelFlow) handleConfirm(ctx context.Context, ev InboundEvent) error {
	if done, err := f.cancelled(ctx, ev); done {
		return err
	}
	if ev.Callback != cbFuelConfirm {
		return f.send(ctx, ev.ChatID, "Usa los botones para confirmar o cancelar.")
	}

	draft := f.draft(ev.ChatID)
	charge := &models.FuelCharge{
		TenantID:   ev.TenantID,
		UnitID:     draft.UnitID,
		Liters:     draft.Liters,
		Amount:     draft.Amount,
		FuelType:   draft.FuelType,
		Kilometers: draft.Kilometers,
		RecordDate: time.Now().UTC(),
		ActorID:    ev.UserID,
	}
	if err := f.store.CreateFuelCharge(ctx, charge); err != nil {
		return fmt.Errorf("bot: fuel persist: %w", err)
	}

	fmt.Fprintf(f.out, "bot: fuel charge %d saved [tenant=%d unit=%d]\n",
		charge.ID, charge.TenantID, charge.UnitID)
	f.sessions.Reset(ev.ChatID)
	return f.send(ctx, ev.ChatID, fmt.Sprintf("✅ Carga registrada para %s.", draft.UnitLabel))
}

// cancelled handles the shared cancel button; it reports true when the
// event ended the flow, along with the notice send's error.
func (f *FuelFlow) cancelled(ctx context.Context, ev InboundEvent) (bool, error) {
	if ev.Callback != cbFuelCancel {
		return false, nil
	}
	f.sessions.Reset(ev.ChatID)
	return true, f.send(ctx, ev.ChatID, "Carga cancelada.")
}

// draft returns the current flow data, or a fresh draft if the session was
// tampered with (wrong type); the flow will then fail on confirm guards.
func (f *FuelFlow) draft(chatID string) *FuelDraft {
	if d, ok := f.sessions.Data(chatID).(*FuelDraft); ok {
		return d
	}
	return &FuelDraft{}
}

func (f *FuelFlow) send(ctx context.Context, chatID, text string) error {
	return f.adapter.Send(ctx, OutboundMessage{ChatID: chatID, Text: text})
}

// parsePositiveAmount parses a strictly positive number with at most two
// decimal places, accepting a comma as decimal separator.
func parsePositiveAmount(text string) (float64, error) {
	value, err := kilometer.ParseKilometers(text)
	if err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, kilometer.ErrInvalidFormat
	}
	return value, nil
}
