package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
)

// HandlerFunc processes one inbound event for a session state.
type HandlerFunc func(ctx context.Context, ev InboundEvent) error

// Matcher is one link of the fallthrough chain used for events that arrive
// while a chat is idle: commands and stateless callbacks. The first matcher
// whose Match returns true wins; unmatched events are ignored silently.
type Matcher struct {
	Name   string
	Match  func(ev InboundEvent) bool
	Handle HandlerFunc
}

// Dispatcher routes each inbound event to the single handler registered for the
// chat's current state, falling through to the matcher chain when the chat
// is idle. Handler errors and panics are recovered at this boundary: the
// session is forcibly reset to idle so no chat is ever stuck mid-flow.
type Dispatcher struct {
	sessions *SessionStore
	adapter  Adapter
	handlers map[State]HandlerFunc
	matchers []Matcher
	out      io.Writer
}

// DispatcherOpts holds parameters for creating a Dispatcher.
type DispatcherOpts struct {
	Sessions *SessionStore
	Adapter  Adapter
	Out      io.Writer // defaults to os.Stdout
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts DispatcherOpts) (*Dispatcher, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("bot: dispatcher: sessions is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("bot: dispatcher: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Dispatcher{
		sessions: opts.Sessions,
		adapter:  opts.Adapter,
		handlers: make(map[State]HandlerFunc),
		out:      out,
	}, nil
}

// Register binds a state to its handler. Exactly one handler may own a
// state; a second registration is a programming error.
func (d *Dispatcher) Register(state State, h HandlerFunc) error {
	if !knownStates[state] || state == StateIdle {
		return fmt.Errorf("bot: cannot register handler for state %q", state)
	}
	if _, dup := d.handlers[state]; dup {
		return fmt.Errorf("bot: handler already registered for state %q", state)
	}
	d.handlers[state] = h
	return nil
}

// AddMatcher appends a matcher to the fallthrough chain.
func (d *Dispatcher) AddMatcher(m Matcher) {
	d.matchers = append(d.matchers, m)
}

// Sessions exposes the session store to flows constructed around this
// dispatcher.
func (d *Dispatcher) Sessions() *SessionStore {
	return d.sessions
}

// Dispatch routes one inbound event. It never returns an error: every
// failure path recovers by resetting the session and telling the user to
// retry.
func (d *Dispatcher) Dispatch(ctx context.Context, ev InboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("bot: dispatch panic [chat=%s state=%s]: %v", ev.ChatID, d.sessions.State(ev.ChatID), r)
			d.recoverSession(ctx, ev)
		}
	}()

	state := d.sessions.State(ev.ChatID)
	fmt.Fprintf(d.out, "bot: dispatch [chat=%s user=%s state=%s callback=%q]\n",
		ev.ChatID, ev.UserName, state, ev.Callback)

	if state != StateIdle {
		handler, ok := d.handlers[state]
		if !ok {
			// A state with no handler is unreachable by construction; reset
			// rather than strand the chat.
			log.Printf("bot: no handler for state %q [chat=%s]", state, ev.ChatID)
			d.recoverSession(ctx, ev)
			return
		}
		if err := handler(ctx, ev); err != nil {
			log.Printf("bot: handler for state %q failed [chat=%s]: %v", state, ev.ChatID, err)
			d.recoverSession(ctx, ev)
		}
		return
	}

	for _, m := range d.matchers {
		if !m.Match(ev) {
			continue
		}
		fmt.Fprintf(d.out, "bot: dispatch → matcher %s\n", m.Name)
		if err := m.Handle(ctx, ev); err != nil {
			log.Printf("bot: matcher %s failed [chat=%s]: %v", m.Name, ev.ChatID, err)
			d.recoverSession(ctx, ev)
		}
		return
	}

	// Unmatched idle event: ignore.
	fmt.Fprintf(d.out, "bot: dispatch → ignore\n")
}

// recoverSession resets the session to idle and notifies the user.
func (d *Dispatcher) recoverSession(ctx context.Context, ev InboundEvent) {
	d.sessions.Reset(ev.ChatID)
	if err := d.adapter.Send(ctx, OutboundMessage{
		ChatID: ev.ChatID,
		Text:   "Ocurrió un error inesperado. La operación fue cancelada, intenta de nuevo.",
	}); err != nil {
		log.Printf("bot: send recovery notice: %v", err)
	}
}
