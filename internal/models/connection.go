package models

// ConnStatus represents the transport connection state
type ConnStatus string

const (
	ConnStatusConnecting   ConnStatus = "connecting"
	ConnStatusConnected    ConnStatus = "connected"
	ConnStatusDisconnected ConnStatus = "disconnected"
	ConnStatusError        ConnStatus = "error"
)

// IsTerminal returns true when no automatic reconnect will follow.
// A manual Connect call is required to leave either state.
func (s ConnStatus) IsTerminal() bool {
	return s == ConnStatusDisconnected || s == ConnStatusError
}
