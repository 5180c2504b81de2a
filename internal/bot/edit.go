package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Fechomap/cargas-gas-sub000/internal/kilometer"
	"github.com/Fechomap/cargas-gas-sub000/internal/store"
)

// Callback payloads for the edit flow buttons.
const (
	cbEditForce  = "kmedit_force" // kmedit_force_<entryID>_<value>
	cbEditOmit   = "kmedit_omit"  // kmedit_omit_<entryID>
	cbEditCancel = "kmedit_cancel"
)

// EditDraft is the flow data of an in-progress entry correction.
type EditDraft struct {
	EntryID uint
}

func (d *EditDraft) flowData() {}

// EditFlow is the administrative correction path for kilometer entries.
// Unlike live capture it never fails closed: inconsistencies against
// neighboring entries are reported as warnings with suggested bounds, and
// the admin may force the update anyway.
type EditFlow struct {
	sessions  *SessionStore
	store     store.Store
	validator *kilometer.Validator
	adapter   Adapter
	out       io.Writer
}

// EditFlowOpts holds parameters for creating an EditFlow.
type EditFlowOpts struct {
	Sessions  *SessionStore
	Store     store.Store
	Validator *kilometer.Validator
	Adapter   Adapter
	Out       io.Writer // defaults to os.Stdout
}

// NewEditFlow creates an EditFlow and registers its handler on the dispatcher.
func NewEditFlow(d *Dispatcher, opts EditFlowOpts) (*EditFlow, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("bot: edit flow: sessions is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("bot: edit flow: store is required")
	}
	if opts.Validator == nil {
		return nil, fmt.Errorf("bot: edit flow: validator is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("bot: edit flow: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	f := &EditFlow{
		sessions:  opts.Sessions,
		store:     opts.Store,
		validator: opts.Validator,
		adapter:   opts.Adapter,
		out:       out,
	}
	if err := d.Register(StateEditAwaitingKilometers, f.HandleEvent); err != nil {
		return nil, err
	}
	return f, nil
}

// Start opens the correction flow for one entry.
func (f *EditFlow) Start(ctx context.Context, ev InboundEvent, entryID uint) error {
	entry, err := f.store.GetLogEntry(ctx, ev.TenantID, entryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return f.send(ctx, ev.ChatID, fmt.Sprintf("No existe el registro %d.", entryID))
		}
		return fmt.Errorf("bot: edit start: %w", err)
	}

	if err := f.sessions.TransitionWithData(ev.ChatID, StateEditAwaitingKilometers, &EditDraft{EntryID: entry.ID}); err != nil {
		return err
	}
	return f.adapter.Send(ctx, OutboundMessage{
		ChatID: ev.ChatID,
		Text: fmt.Sprintf("✏️ Registro %d — %s del %s, valor actual %.2f km.\nEscribe el nuevo kilometraje:",
			entry.ID, logTypeLabel(entry.LogType), entry.LogDate.Format("2006-01-02"), entry.Kilometers),
		Buttons: [][]Button{{
			{Label: "Omitir registro", Data: fmt.Sprintf("%s_%d", cbEditOmit, entry.ID)},
			{Label: "Cancelar", Data: cbEditCancel},
		}},
	})
}

// HandleEvent processes the admin's reply: a new value, a force press, an
// omit press or a cancel.
func (f *EditFlow) HandleEvent(ctx context.Context, ev InboundEvent) error {
	switch {
	case ev.Callback == cbEditCancel:
		f.sessions.Reset(ev.ChatID)
		return f.send(ctx, ev.ChatID, "Edición cancelada.")

	case strings.HasPrefix(ev.Callback, cbEditForce+"_"):
		return f.handleForce(ctx, ev)

	case strings.HasPrefix(ev.Callback, cbEditOmit+"_"):
		return f.handleOmit(ctx, ev)

	case ev.IsCallback():
		return f.send(ctx, ev.ChatID, "Usa los botones o escribe el nuevo kilometraje.")
	}

	draft, ok := f.sessions.Data(ev.ChatID).(*EditDraft)
	if !ok {
		f.sessions.Reset(ev.ChatID)
		return f.send(ctx, ev.ChatID, "No hay una edición activa.")
	}

	value, err := kilometer.ParseKilometers(ev.Text)
	if err != nil {
		return f.send(ctx, ev.ChatID, "⚠️ Valor inválido. Escribe un número no negativo con máximo 2 decimales.")
	}

	entry, err := f.store.GetLogEntry(ctx, ev.TenantID, draft.EntryID)
	if err != nil {
		return fmt.Errorf("bot: edit lookup: %w", err)
	}

	result, err := f.validator.ValidateEdit(ctx, ev.TenantID, entry, value)
	if err != nil {
		return fmt.Errorf("bot: edit validate: %w", err)
	}
	if result.OK {
		return f.apply(ctx, ev, draft.EntryID, value)
	}

	// Inconsistent with neighbors: report every warning and offer the
	// explicit override.
	var b strings.Builder
	b.WriteString("⚠️ El nuevo valor es inconsistente:\n")
	for _, w := range result.Warnings {
		b.WriteString("• " + w.Message + "\n")
	}
	b.WriteString("¿Aplicar de todas formas?")

	forceData := fmt.Sprintf("%s_%d_%s", cbEditForce, draft.EntryID,
		strconv.FormatFloat(value, 'f', -1, 64))
	return f.adapter.Send(ctx, OutboundMessage{
		ChatID: ev.ChatID,
		Text:   b.String(),
		Buttons: [][]Button{{
			{Label: "Forzar actualización", Data: forceData},
			{Label: "Cancelar", Data: cbEditCancel},
		}},
	})
}

// handleForce applies an update the validator warned about. The callback
// round-trips both the entry ID and the proposed value.
func (f *EditFlow) handleForce(ctx context.Context, ev InboundEvent) error {
	param, _ := ev.CallbackParam(cbEditForce)
	parts := strings.SplitN(param, "_", 2)
	if len(parts) != 2 {
		return fmt.Errorf("bot: malformed force callback %q", ev.Callback)
	}
	entryID, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return fmt.Errorf("bot: force callback entry id %q: %w", parts[0], err)
	}
	value, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return fmt.Errorf("bot: force callback value %q: %w", parts[1], err)
	}

	fmt.Fprintf(f.out, "bot: forced edit of entry %d to %.2f [tenant=%d user=%s]\n",
		entryID, value, ev.TenantID, ev.UserID)
	return f.apply(ctx, ev, uint(entryID), value)
}

// handleOmit soft-deletes the entry being edited.
func (f *EditFlow) handleOmit(ctx context.Context, ev InboundEvent) error {
	param, _ := ev.CallbackParam(cbEditOmit)
	entryID, err := strconv.ParseUint(param, 10, 32)
	if err != nil {
		return fmt.Errorf("bot: omit callback entry id %q: %w", param, err)
	}
	if err := f.store.OmitEntry(ctx, ev.TenantID, uint(entryID), ev.UserID); err != nil {
		return fmt.Errorf("bot: omit entry: %w", err)
	}
	f.sessions.Reset(ev.ChatID)
	return f.send(ctx, ev.ChatID, fmt.Sprintf("Registro %d marcado como omitido.", entryID))
}

// apply persists the new value and closes the flow.
func (f *EditFlow) apply(ctx context.Context, ev InboundEvent, entryID uint, value float64) error {
	entry, err := f.store.UpdateEntryKilometers(ctx, ev.TenantID, entryID, value, ev.UserID)
	if err != nil {
		return fmt.Errorf("bot: edit apply: %w", err)
	}
	f.sessions.Reset(ev.ChatID)
	return f.send(ctx, ev.ChatID,
		fmt.Sprintf("✅ Registro %d actualizado a %.2f km.", entry.ID, entry.Kilometers))
}

func (f *EditFlow) send(ctx context.Context, chatID, text string) error {
	return f.adapter.Send(ctx, OutboundMessage{ChatID: chatID, Text: text})
}
