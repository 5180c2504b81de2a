package bot

import "testing"

func TestSessionStore_LazyCreate(t *testing.T) {
	s := NewSessionStore()
	if got := s.State("new-chat"); got != StateIdle {
		t.Errorf("State = %q, want idle", got)
	}
	if s.Data("new-chat") != nil {
		t.Error("fresh session must have nil data")
	}
}

func TestSessionStore_TransitionKeepsData(t *testing.T) {
	s := NewSessionStore()
	job := &BatchJob{TenantID: 1}
	if err := s.TransitionWithData("c", StateBatchCapturingKm, job); err != nil {
		t.Fatalf("transition with data: %v", err)
	}

	// A state-only transition must not clobber the queue progress.
	if err := s.Transition("c", StateBatchCapturingKm); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if got, ok := s.Data("c").(*BatchJob); !ok || got != job {
		t.Errorf("data = %v, want the original job", s.Data("c"))
	}
}

func TestSessionStore_TransitionWithDataReplaces(t *testing.T) {
	s := NewSessionStore()
	s.TransitionWithData("c", StateBatchCapturingKm, &BatchJob{})
	draft := &FuelDraft{}
	if err := s.TransitionWithData("c", StateFuelAwaitingLiters, draft); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if got, ok := s.Data("c").(*FuelDraft); !ok || got != draft {
		t.Errorf("data = %v, want the fuel draft", s.Data("c"))
	}
}

func TestSessionStore_UnknownStateRejected(t *testing.T) {
	s := NewSessionStore()
	if err := s.Transition("c", State("bogus")); err == nil {
		t.Fatal("expected error for unknown state")
	}
	if err := s.TransitionWithData("c", State("bogus"), &FuelDraft{}); err == nil {
		t.Fatal("expected error for unknown state")
	}
	if got := s.State("c"); got != StateIdle {
		t.Errorf("state after rejected transition = %q, want idle", got)
	}
}

func TestSessionStore_IdleClearsData(t *testing.T) {
	s := NewSessionStore()
	s.TransitionWithData("c", StateBatchCapturingKm, &BatchJob{})

	if err := s.Transition("c", StateIdle); err != nil {
		t.Fatalf("transition to idle: %v", err)
	}
	if s.Data("c") != nil {
		t.Error("data must be cleared when returning to idle")
	}
}

func TestSessionStore_Reset(t *testing.T) {
	s := NewSessionStore()
	s.TransitionWithData("c", StateFuelAwaitingConfirm, &FuelDraft{Liters: 10})
	s.Reset("c")
	if s.State("c") != StateIdle || s.Data("c") != nil {
		t.Errorf("after reset: state=%q data=%v", s.State("c"), s.Data("c"))
	}
}

func TestSessionStore_IsolatedPerChat(t *testing.T) {
	s := NewSessionStore()
	s.TransitionWithData("a", StateBatchCapturingKm, &BatchJob{})
	if got := s.State("b"); got != StateIdle {
		t.Errorf("chat b state = %q, want idle", got)
	}
}
