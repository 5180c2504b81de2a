package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func newDispatcher(t *testing.T) (*Dispatcher, *SessionStore, *MockAdapter) {
	t.Helper()
	sessions := NewSessionStore()
	adapter := NewMockAdapter()
	adapter.Connect(context.Background())
	d, err := NewDispatcher(DispatcherOpts{Sessions: sessions, Adapter: adapter, Out: discard{}})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d, sessions, adapter
}

func TestNewDispatcher_Validation(t *testing.T) {
	if _, err := NewDispatcher(DispatcherOpts{Adapter: NewMockAdapter()}); err == nil {
		t.Fatal("expected error for nil sessions")
	}
	if _, err := NewDispatcher(DispatcherOpts{Sessions: NewSessionStore()}); err == nil {
		t.Fatal("expected error for nil adapter")
	}
}

func TestRegister_Duplicate(t *testing.T) {
	d, _, _ := newDispatcher(t)
	noop := func(ctx context.Context, ev InboundEvent) error { return nil }
	if err := d.Register(StateBatchCapturingKm, noop); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := d.Register(StateBatchCapturingKm, noop); err == nil {
		t.Fatal("expected error for duplicate registration")
	}
}

func TestRegister_IdleAndUnknownRejected(t *testing.T) {
	d, _, _ := newDispatcher(t)
	noop := func(ctx context.Context, ev InboundEvent) error { return nil }
	if err := d.Register(StateIdle, noop); err == nil {
		t.Fatal("expected error registering idle handler")
	}
	if err := d.Register(State("bogus"), noop); err == nil {
		t.Fatal("expected error registering unknown state")
	}
}

func TestDispatch_StateHandlerWins(t *testing.T) {
	d, sessions, _ := newDispatcher(t)

	var handled, matched bool
	d.Register(StateBatchCapturingKm, func(ctx context.Context, ev InboundEvent) error {
		handled = true
		return nil
	})
	d.AddMatcher(Matcher{
		Name:   "catch-all",
		Match:  func(ev InboundEvent) bool { return true },
		Handle: func(ctx context.Context, ev InboundEvent) error { matched = true; return nil },
	})

	sessions.TransitionWithData("chat-1", StateBatchCapturingKm, &BatchJob{})
	d.Dispatch(context.Background(), event("500"))

	if !handled || matched {
		t.Errorf("handled=%v matched=%v, want state handler only", handled, matched)
	}
}

func TestDispatch_FirstMatcherWins(t *testing.T) {
	d, _, _ := newDispatcher(t)

	var order []string
	add := func(name string, match bool) {
		d.AddMatcher(Matcher{
			Name:  name,
			Match: func(ev InboundEvent) bool { return match },
			Handle: func(ctx context.Context, ev InboundEvent) error {
				order = append(order, name)
				return nil
			},
		})
	}
	add("never", false)
	add("first", true)
	add("second", true)

	d.Dispatch(context.Background(), event("hola"))
	if len(order) != 1 || order[0] != "first" {
		t.Errorf("order = %v, want [first]", order)
	}
}

func TestDispatch_UnmatchedIgnored(t *testing.T) {
	d, sessions, adapter := newDispatcher(t)
	d.Dispatch(context.Background(), event("random text"))
	if sessions.State("chat-1") != StateIdle {
		t.Error("state changed for unmatched event")
	}
	if adapter.SentCount() != 0 {
		t.Errorf("sent %d messages for unmatched event", adapter.SentCount())
	}
}

func TestDispatch_HandlerErrorResetsSession(t *testing.T) {
	d, sessions, adapter := newDispatcher(t)
	d.Register(StateEditAwaitingKilometers, func(ctx context.Context, ev InboundEvent) error {
		return errors.New("boom")
	})
	sessions.TransitionWithData("chat-1", StateEditAwaitingKilometers, &EditDraft{EntryID: 7})

	d.Dispatch(context.Background(), event("500"))

	if sessions.State("chat-1") != StateIdle || sessions.Data("chat-1") != nil {
		t.Error("session not reset after handler error")
	}
	last, ok := adapter.LastSent()
	if !ok || !strings.Contains(last.Text, "error inesperado") {
		t.Errorf("user notice = %+v", last)
	}
}

func TestDispatch_PanicRecovered(t *testing.T) {
	d, sessions, adapter := newDispatcher(t)
	d.Register(StateFuelAwaitingLiters, func(ctx context.Context, ev InboundEvent) error {
		panic("unexpected")
	})
	sessions.TransitionWithData("chat-1", StateFuelAwaitingLiters, &FuelDraft{})

	d.Dispatch(context.Background(), event("40")) // must not propagate the panic

	if sessions.State("chat-1") != StateIdle {
		t.Error("session not reset after panic")
	}
	if adapter.SentCount() != 1 {
		t.Errorf("sent = %d, want 1 recovery notice", adapter.SentCount())
	}
}

func TestDispatch_StateWithoutHandlerResets(t *testing.T) {
	d, sessions, _ := newDispatcher(t)
	sessions.TransitionWithData("chat-1", StateBatchCapturingKm, &BatchJob{})

	d.Dispatch(context.Background(), event("500"))

	if sessions.State("chat-1") != StateIdle {
		t.Error("session not reset for unhandled state")
	}
}
