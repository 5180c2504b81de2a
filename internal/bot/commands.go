package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Fechomap/cargas-gas-sub000/internal/models"
)

// Commands understood while a chat is idle.
const (
	cmdFuel       = "/carga"
	cmdShiftStart = "/turno_inicio"
	cmdShiftEnd   = "/turno_fin"
	cmdEdit       = "/editar"
	cmdHelp       = "/ayuda"
)

// RegisterCommands wires the idle-state command matchers into the dispatcher
// fallthrough chain. Order matters: the first matching entry wins.
func RegisterCommands(d *Dispatcher, batch *BatchEngine, fuel *FuelFlow, edit *EditFlow) {
	d.AddMatcher(Matcher{
		Name:  "fuel-charge",
		Match: matchCommand(cmdFuel),
		Handle: func(ctx context.Context, ev InboundEvent) error {
			return fuel.Start(ctx, ev)
		},
	})
	d.AddMatcher(Matcher{
		Name:  "shift-start",
		Match: matchCommand(cmdShiftStart),
		Handle: func(ctx context.Context, ev InboundEvent) error {
			return batch.Start(ctx, ev, models.LogTypeShiftStart, time.Now())
		},
	})
	d.AddMatcher(Matcher{
		Name:  "shift-end",
		Match: matchCommand(cmdShiftEnd),
		Handle: func(ctx context.Context, ev InboundEvent) error {
			return batch.Start(ctx, ev, models.LogTypeShiftEnd, time.Now())
		},
	})
	d.AddMatcher(Matcher{
		Name:  "edit-entry",
		Match: matchCommand(cmdEdit),
		Handle: func(ctx context.Context, ev InboundEvent) error {
			args := strings.Fields(ev.Text)
			if len(args) < 2 {
				return d.adapter.Send(ctx, OutboundMessage{
					ChatID: ev.ChatID,
					Text:   "Uso: /editar <id de registro>",
				})
			}
			entryID, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return d.adapter.Send(ctx, OutboundMessage{
					ChatID: ev.ChatID,
					Text:   fmt.Sprintf("Id inválido: %q", args[1]),
				})
			}
			return edit.Start(ctx, ev, uint(entryID))
		},
	})
	d.AddMatcher(Matcher{
		Name:  "help",
		Match: matchCommand(cmdHelp),
		Handle: func(ctx context.Context, ev InboundEvent) error {
			return d.adapter.Send(ctx, OutboundMessage{ChatID: ev.ChatID, Text: helpText()})
		},
	})
}

// matchCommand builds a matcher predicate for a slash command, accepting
// trailing arguments.
func matchCommand(cmd string) func(ev InboundEvent) bool {
	return func(ev InboundEvent) bool {
		if ev.IsCallback() {
			return false
		}
		text := strings.TrimSpace(ev.Text)
		return text == cmd || strings.HasPrefix(text, cmd+" ")
	}
}

// helpText returns usage information for all commands.
func helpText() string {
	return "**Comandos**\n" +
		"`/carga` — Registrar una carga de combustible\n" +
		"`/turno_inicio` — Capturar kilometrajes de inicio de turno\n" +
		"`/turno_fin` — Capturar kilometrajes de fin de turno\n" +
		"`/editar <id>` — Corregir un registro de kilometraje\n" +
		"`/ayuda` — Este mensaje"
}
