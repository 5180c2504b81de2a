package bot

import (
	"fmt"
	"sync"
)

// State labels the conversation position of one chat. The set is closed:
// the session store rejects transitions to unknown states.
type State string

const (
	StateIdle State = "idle"

	// Fuel-charge form.
	StateFuelAwaitingUnit       State = "fuel-awaiting-unit"
	StateFuelAwaitingType       State = "fuel-awaiting-type"
	StateFuelAwaitingLiters     State = "fuel-awaiting-liters"
	StateFuelAwaitingAmount     State = "fuel-awaiting-amount"
	StateFuelAwaitingKilometers State = "fuel-awaiting-kilometers"
	StateFuelAwaitingConfirm    State = "fuel-awaiting-confirm"

	// Batch odometer capture.
	StateBatchCapturingKm State = "batch-capturing-km"

	// Administrative entry edit.
	StateEditAwaitingKilometers State = "edit-awaiting-kilometers"
)

var knownStates = map[State]bool{
	StateIdle:                   true,
	StateFuelAwaitingUnit:       true,
	StateFuelAwaitingType:       true,
	StateFuelAwaitingLiters:     true,
	StateFuelAwaitingAmount:     true,
	StateFuelAwaitingKilometers: true,
	StateFuelAwaitingConfirm:    true,
	StateBatchCapturingKm:       true,
	StateEditAwaitingKilometers: true,
}

// FlowData is the typed per-flow payload carried by a session. Each flow
// defines its own concrete type, so fields can never leak between unrelated
// flows through a shared bag.
type FlowData interface {
	flowData()
}

// session pairs a state label with its flow data.
type session struct {
	state State
	data  FlowData
}

// SessionStore holds the in-memory conversation session for every chat.
// Sessions are created lazily on first access and are not durable: a process
// restart loses all in-flight conversations.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*session)}
}

// State returns the current state for a chat, creating an idle session on
// first use.
func (s *SessionStore) State(chatID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(chatID).state
}

// Data returns the current flow data for a chat, or nil when idle.
func (s *SessionStore) Data(chatID string) FlowData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(chatID).data
}

// Transition replaces the state and preserves the existing flow data. Batch
// step handlers rely on this to change state without clobbering queue
// progress.
func (s *SessionStore) Transition(chatID string, state State) error {
	if !knownStates[state] {
		return fmt.Errorf("bot: unknown state %q", state)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(chatID)
	sess.state = state
	if state == StateIdle {
		sess.data = nil
	}
	return nil
}

// TransitionWithData replaces both the state and the flow data.
func (s *SessionStore) TransitionWithData(chatID string, state State, data FlowData) error {
	if !knownStates[state] {
		return fmt.Errorf("bot: unknown state %q", state)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(chatID)
	sess.state = state
	sess.data = data
	if state == StateIdle {
		sess.data = nil
	}
	return nil
}

// Reset forces a chat back to idle with empty data.
func (s *SessionStore) Reset(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(chatID)
	sess.state = StateIdle
	sess.data = nil
}

// get returns the session for a chat, creating it when absent.
// Callers must hold the lock.
func (s *SessionStore) get(chatID string) *session {
	sess, ok := s.sessions[chatID]
	if !ok {
		sess = &session{state: StateIdle}
		s.sessions[chatID] = sess
	}
	return sess
}
