// Package bot hosts the conversation engine: per-chat session state, the
// event dispatcher, the guided fuel-charge form and the batch odometer
// capture workflow. Chat platforms plug in through the Adapter interface.
package bot

import (
	"context"
	"strings"
	"time"
)

// Adapter is the interface that platform-specific implementations must
// satisfy. Each adapter handles connection management and message delivery
// for a single chat platform, including interactive buttons.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound events from the platform. The
	// channel is closed when the context is cancelled or the adapter is
	// closed. Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan InboundEvent, error)

	// Send delivers an outbound message, optionally with button rows.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// InboundEvent is a single user event: either a plain text message or a
// button press (Callback set, Text empty). Events for the same chat are
// delivered one at a time by the transport, so handlers never race on the
// same session.
type InboundEvent struct {
	TenantID  uint      // resolved by the transport layer before dispatch
	ChatID    string    // session key: platform channel identifier
	UserID    string    // platform-specific user identifier
	UserName  string    // human-readable username
	Text      string    // raw message text (empty for button presses)
	Callback  string    // button payload in prefix_parameter form
	Timestamp time.Time // when the event was produced
}

// IsCallback reports whether the event is a button press.
func (ev InboundEvent) IsCallback() bool {
	return ev.Callback != ""
}

// CallbackParam returns the parameter portion of the event's callback when
// it starts with prefix ("prefix_parameter" convention). The second return
// is false if the callback does not carry the prefix.
func (ev InboundEvent) CallbackParam(prefix string) (string, bool) {
	if !strings.HasPrefix(ev.Callback, prefix+"_") {
		return "", false
	}
	return ev.Callback[len(prefix)+1:], true
}

// OutboundMessage is a message to be sent to the chat platform.
type OutboundMessage struct {
	ChatID  string     // target channel
	Text    string     // message text
	Buttons [][]Button // button rows; nil for plain messages
}

// Button is one interactive control. Data round-trips back as the Callback
// field of an InboundEvent when pressed.
type Button struct {
	Label string
	Data  string
}
