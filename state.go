package polyvox

// StreamState represents the current state of a voice streaming session.
type StreamState string

const (
	// StateIdle is the initial state before any operation.
	StateIdle StreamState = "Idle"

	// StateConnecting indicates the session is establishing a WebSocket connection.
	StateConnecting StreamState = "Connecting"

	// StateOpen indicates the WebSocket connection is established and ready.
	StateOpen StreamState = "Open"

	// StateStreaming indicates audio is actively being sent over the connection.
	StateStreaming StreamState = "Streaming"

	// StateReconnecting indicates the connection dropped and the session is
	// renewing its credential to resume on a fresh connection.
	StateReconnecting StreamState = "Reconnecting"

	// StateClosed indicates the session completed gracefully after the server
	// sent its end-of-stream marker.
	StateClosed StreamState = "Closed"

	// StateErrored indicates the session failed and cannot transition further.
	StateErrored StreamState = "Errored"
)

// IsActive returns true if the state indicates an in-progress session.
func (s StreamState) IsActive() bool {
	switch s {
	case StateConnecting, StateOpen, StateStreaming, StateReconnecting:
		return true
	default:
		return false
	}
}

// CanSend returns true if audio may be transmitted in this state.
func (s StreamState) CanSend() bool {
	switch s {
	case StateOpen, StateStreaming:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the state is a terminal state that cannot transition further.
func (s StreamState) IsTerminal() bool {
	switch s {
	case StateClosed, StateErrored:
		return true
	default:
		return false
	}
}

// String returns the string representation of the state.
func (s StreamState) String() string {
	return string(s)
}
