package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/Fechomap/cargas-gas-sub000/internal/kilometer"
	"github.com/Fechomap/cargas-gas-sub000/internal/models"
	"github.com/Fechomap/cargas-gas-sub000/internal/store"
)

// Callback payloads for the batch capture buttons.
const (
	cbBatchOmit   = "batch_omit"
	cbBatchCancel = "batch_cancel"
)

// sentinelAlreadyLogged marks a unit that turned out to be logged already
// (concurrent duplicate) while the batch was running.
const sentinelAlreadyLogged = -1

// BatchOutcome records the result for one unit of a batch run.
type BatchOutcome struct {
	Unit       models.Unit
	Kilometers float64 // sentinelAlreadyLogged when a duplicate was detected
	EntryID    uint    // zero for duplicates
}

// BatchJob is the in-memory queue of one capture run. It lives in the
// session's flow data, is mutated only by the BatchEngine, and is discarded
// on completion or cancel. A process restart loses it.
type BatchJob struct {
	TenantID  uint
	LogType   string
	Date      time.Time
	Pending   []models.Unit
	Index     int
	Processed []BatchOutcome
	Omitted   []models.Unit
}

func (j *BatchJob) flowData() {}

// Current returns the unit at the queue position.
func (j *BatchJob) Current() models.Unit {
	return j.Pending[j.Index]
}

// Remaining returns how many units have not been visited yet, including the
// current one.
func (j *BatchJob) Remaining() int {
	return len(j.Pending) - j.Index
}

// BatchSummary is the final tally of a run, also handed to the notifier.
type BatchSummary struct {
	TenantID  uint
	LogType   string
	Date      time.Time
	Total     int
	Processed int
	Omitted   int
	Remaining int // non-zero only for cancelled runs
	Cancelled bool
}

// SummaryNotifier receives the summary of every finished or cancelled run.
type SummaryNotifier interface {
	NotifyBatchSummary(ctx context.Context, summary BatchSummary) error
}

// BatchEngine drives the sequential odometer capture over the pending-unit
// queue: one prompt per unit, with per-unit omit and whole-run cancel.
type BatchEngine struct {
	sessions  *SessionStore
	store     store.Store
	validator *kilometer.Validator
	adapter   Adapter
	notifier  SummaryNotifier
	out       io.Writer
}

// BatchEngineOpts holds parameters for creating a BatchEngine.
type BatchEngineOpts struct {
	Sessions  *SessionStore
	Store     store.Store
	Validator *kilometer.Validator
	Adapter   Adapter
	Notifier  SummaryNotifier // optional
	Out       io.Writer       // defaults to os.Stdout
}

// NewBatchEngine creates a BatchEngine and registers its capture handler on
// the dispatcher.
func NewBatchEngine(d *Dispatcher, opts BatchEngineOpts) (*BatchEngine, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("bot: batch engine: sessions is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("bot: batch engine: store is required")
	}
	if opts.Validator == nil {
		return nil, fmt.Errorf("bot: batch engine: validator is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("bot: batch engine: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	e := &BatchEngine{
		sessions:  opts.Sessions,
		store:     opts.Store,
		validator: opts.Validator,
		adapter:   opts.Adapter,
		notifier:  opts.Notifier,
		out:       out,
	}
	if err := d.Register(StateBatchCapturingKm, e.HandleEvent); err != nil {
		return nil, err
	}
	return e, nil
}

// Start begins a capture run for the tenant: active units minus units that
// already have a non-omitted entry for (date, logType). When nothing is
// pending it reports completion and creates no job.
func (e *BatchEngine) Start(ctx context.Context, ev InboundEvent, logType string, date time.Time) error {
	if !models.ValidLogType(logType) {
		return fmt.Errorf("bot: batch start: invalid log type %q", logType)
	}
	day := models.DateOnly(date)

	units, err := e.store.ListActiveUnits(ctx, ev.TenantID)
	if err != nil {
		return fmt.Errorf("bot: batch start: %w", err)
	}
	logged, err := e.store.ListEntriesForDate(ctx, ev.TenantID, day, logType)
	if err != nil {
		return fmt.Errorf("bot: batch start: %w", err)
	}
	done := make(map[uint]bool, len(logged))
	for _, entry := range logged {
		done[entry.UnitID] = true
	}

	var pending []models.Unit
	for _, u := range units {
		if !done[u.ID] {
			pending = append(pending, u)
		}
	}

	if len(pending) == 0 {
		return e.send(ctx, ev.ChatID, fmt.Sprintf("✅ Todas las unidades ya tienen registro de %s para el %s.",
			logTypeLabel(logType), day.Format("2006-01-02")))
	}

	job := &BatchJob{
		TenantID: ev.TenantID,
		LogType:  logType,
		Date:     day,
		Pending:  pending,
	}
	if err := e.sessions.TransitionWithData(ev.ChatID, StateBatchCapturingKm, job); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "bot: batch started [tenant=%d type=%s date=%s units=%d]\n",
		ev.TenantID, logType, day.Format("2006-01-02"), len(pending))
	return e.promptCurrent(ctx, ev.ChatID, job)
}

// HandleEvent processes one event while the chat is capturing: a numeric
// reading, an omit press, or a cancel press.
func (e *BatchEngine) HandleEvent(ctx context.Context, ev InboundEvent) error {
	job, ok := e.sessions.Data(ev.ChatID).(*BatchJob)
	if !ok {
		// Data lost or of the wrong flow: nothing to resume.
		e.sessions.Reset(ev.ChatID)
		return e.send(ctx, ev.ChatID, "No hay un proceso de captura activo.")
	}

	switch {
	case ev.Callback == cbBatchCancel:
		return e.cancel(ctx, ev.ChatID, job)
	case ev.Callback == cbBatchOmit:
		job.Omitted = append(job.Omitted, job.Current())
		return e.advance(ctx, ev.ChatID, job)
	case ev.IsCallback():
		// A stray button from another flow: re-prompt.
		return e.promptCurrent(ctx, ev.ChatID, job)
	}

	unit := job.Current()
	value, err := kilometer.ParseKilometers(ev.Text)
	if err != nil {
		if sendErr := e.send(ctx, ev.ChatID,
			"⚠️ Valor inválido. Escribe un número no negativo con máximo 2 decimales."); sendErr != nil {
			return sendErr
		}
		return e.promptCurrent(ctx, ev.ChatID, job)
	}

	result, err := e.validator.ValidateCreate(ctx, job.TenantID, unit.ID, value)
	if err != nil {
		return fmt.Errorf("bot: batch validate: %w", err)
	}
	if !result.Valid {
		// Hard rejection: stay on the same unit.
		if sendErr := e.send(ctx, ev.ChatID, "❌ "+result.Message); sendErr != nil {
			return sendErr
		}
		return e.promptCurrent(ctx, ev.ChatID, job)
	}
	if result.Warning {
		if sendErr := e.send(ctx, ev.ChatID, "⚠️ "+result.Message); sendErr != nil {
			return sendErr
		}
	}

	entry, err := e.store.CreateLogEntry(ctx, job.TenantID, unit.ID, value, job.LogType, job.Date, ev.UserID)
	switch {
	case errors.Is(err, store.ErrDuplicateActiveEntry):
		// Logged concurrently elsewhere: count as processed, do not fail the run.
		log.Printf("bot: batch duplicate for unit %d, counting as processed", unit.ID)
		job.Processed = append(job.Processed, BatchOutcome{Unit: unit, Kilometers: sentinelAlreadyLogged})
	case err != nil:
		// Persistence failure is a skip-with-error: the run continues.
		log.Printf("bot: batch persist unit %d: %v", unit.ID, err)
		job.Omitted = append(job.Omitted, unit)
		if sendErr := e.send(ctx, ev.ChatID,
			fmt.Sprintf("⚠️ No se pudo guardar la unidad %s, se omite y continúa el proceso.", unit.Label())); sendErr != nil {
			return sendErr
		}
	default:
		job.Processed = append(job.Processed, BatchOutcome{Unit: unit, Kilometers: value, EntryID: entry.ID})
	}

	return e.advance(ctx, ev.ChatID, job)
}

// advance moves to the next unit or summarizes when the queue is exhausted.
func (e *BatchEngine) advance(ctx context.Context, chatID string, job *BatchJob) error {
	job.Index++
	if job.Index < len(job.Pending) {
		return e.promptCurrent(ctx, chatID, job)
	}
	return e.summarize(ctx, chatID, job, false)
}

// cancel abandons the remaining queue, reporting partial progress. Entries
// already persisted stay persisted.
func (e *BatchEngine) cancel(ctx context.Context, chatID string, job *BatchJob) error {
	return e.summarize(ctx, chatID, job, true)
}

// promptCurrent shows the capture prompt for the unit at the queue position:
// last-known context, position in the queue and the omit/cancel buttons.
func (e *BatchEngine) promptCurrent(ctx context.Context, chatID string, job *BatchJob) error {
	unit := job.Current()

	lastLine := "Primer registro para esta unidad."
	last, err := e.store.FindLastKnownKilometer(ctx, job.TenantID, unit.ID)
	if err != nil {
		return fmt.Errorf("bot: batch prompt: %w", err)
	}
	if last != nil {
		lastLine = fmt.Sprintf("Último kilometraje: %.2f (%s, %s)",
			last.Value, sourceLabel(last.Source), last.Date.Format("2006-01-02"))
	}

	text := fmt.Sprintf("🚛 %s de %s\n%s\n%s\nUnidad %d de %d. Escribe el kilometraje:",
		logTypeLabel(job.LogType), job.Date.Format("2006-01-02"),
		unit.Label(), lastLine, job.Index+1, len(job.Pending))

	return e.adapter.Send(ctx, OutboundMessage{
		ChatID: chatID,
		Text:   text,
		Buttons: [][]Button{{
			{Label: "Omitir unidad", Data: cbBatchOmit},
			{Label: "Cancelar proceso", Data: cbBatchCancel},
		}},
	})
}

// summarize emits the final tally, notifies the ops channel and resets the
// session, discarding the job.
func (e *BatchEngine) summarize(ctx context.Context, chatID string, job *BatchJob, cancelled bool) error {
	summary := BatchSummary{
		TenantID:  job.TenantID,
		LogType:   job.LogType,
		Date:      job.Date,
		Total:     len(job.Pending),
		Processed: len(job.Processed),
		Omitted:   len(job.Omitted),
		Remaining: job.Remaining(),
		Cancelled: cancelled,
	}
	if cancelled {
		// The current unit was never resolved; it counts as remaining.
		fmt.Fprintf(e.out, "bot: batch cancelled [tenant=%d processed=%d omitted=%d remaining=%d]\n",
			job.TenantID, summary.Processed, summary.Omitted, summary.Remaining)
	} else {
		summary.Remaining = 0
		fmt.Fprintf(e.out, "bot: batch complete [tenant=%d processed=%d omitted=%d]\n",
			job.TenantID, summary.Processed, summary.Omitted)
	}

	e.sessions.Reset(chatID)

	if e.notifier != nil {
		if err := e.notifier.NotifyBatchSummary(ctx, summary); err != nil {
			log.Printf("bot: batch summary notification: %v", err)
		}
	}

	return e.send(ctx, chatID, formatBatchSummary(summary, job))
}

// send delivers a plain text message.
func (e *BatchEngine) send(ctx context.Context, chatID, text string) error {
	return e.adapter.Send(ctx, OutboundMessage{ChatID: chatID, Text: text})
}
