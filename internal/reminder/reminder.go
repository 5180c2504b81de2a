// Package reminder schedules the daily shift capture nudges. At the
// configured times it posts a prompt to every tenant channel pointing the
// operators at the matching capture command.
package reminder

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/robfig/cron/v3"

	"github.com/Fechomap/cargas-gas-sub000/internal/bot"
	"github.com/Fechomap/cargas-gas-sub000/internal/models"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Target is one channel to nudge.
type Target struct {
	Name      string // tenant name, for logs only
	ChannelID string
}

// Scheduler fires the shift-start and shift-end reminders on their cron
// expressions.
type Scheduler struct {
	cron    *cron.Cron
	adapter bot.Adapter
	targets []Target
	out     io.Writer
}

// SchedulerOpts holds parameters for creating a Scheduler.
type SchedulerOpts struct {
	Adapter        bot.Adapter
	Targets        []Target
	ShiftStartCron string // e.g. "0 7 * * *"
	ShiftEndCron   string // e.g. "0 19 * * *"
	Out            io.Writer // defaults to os.Stdout
}

// New creates a Scheduler and registers both reminder jobs. Expressions are
// validated here so a bad config fails at startup, not at fire time.
func New(opts SchedulerOpts) (*Scheduler, error) {
	if opts.Adapter == nil {
		return nil, fmt.Errorf("reminder: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithParser(cronParser)),
		adapter: opts.Adapter,
		targets: opts.Targets,
		out:     out,
	}

	jobs := []struct {
		expr    string
		logType string
	}{
		{opts.ShiftStartCron, models.LogTypeShiftStart},
		{opts.ShiftEndCron, models.LogTypeShiftEnd},
	}
	for _, j := range jobs {
		if j.expr == "" {
			continue
		}
		logType := j.logType
		if _, err := s.cron.AddFunc(j.expr, func() {
			s.remind(context.Background(), logType)
		}); err != nil {
			return nil, fmt.Errorf("reminder: cron expression %q: %w", j.expr, err)
		}
	}
	return s, nil
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	fmt.Fprintf(s.out, "reminder: scheduler started [targets=%d]\n", len(s.targets))
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// remind posts the capture prompt for one shift boundary to every target
// channel. A failed channel is logged and skipped so one broken tenant
// cannot silence the rest.
func (s *Scheduler) remind(ctx context.Context, logType string) {
	text := reminderText(logType)
	for _, target := range s.targets {
		if err := s.adapter.Send(ctx, bot.OutboundMessage{ChatID: target.ChannelID, Text: text}); err != nil {
			log.Printf("reminder: send to %s (%s): %v", target.Name, target.ChannelID, err)
			continue
		}
		fmt.Fprintf(s.out, "reminder: %s sent to %s\n", logType, target.Name)
	}
}

// reminderText returns the nudge message for a shift boundary.
func reminderText(logType string) string {
	if logType == models.LogTypeShiftEnd {
		return "⏰ Es hora de capturar los kilometrajes de fin de turno. Usa /turno_fin para comenzar."
	}
	return "⏰ Es hora de capturar los kilometrajes de inicio de turno. Usa /turno_inicio para comenzar."
}
