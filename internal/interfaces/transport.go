package interfaces

import "github.com/ternarybob/quanta/internal/models"

// Transport maintains a logical connection to a remote event source and
// shields the rest of the system from transient network failures.
// Connectivity changes are published on the event bus under the
// connection kind.
type Transport interface {
	// Connect starts the connection loop. Resets the reconnect attempt
	// counter, so it also recovers a transport stuck in the Error state.
	Connect() error

	// Disconnect is a deliberate close; no auto-reconnect follows.
	Disconnect()

	// Send writes a JSON message. Returns ErrNotConnected unless the
	// connection is currently Connected.
	Send(v interface{}) error

	// Status returns the current connection status.
	Status() models.ConnStatus

	// Messages returns the inbound message stream.
	Messages() <-chan []byte

	// Close tears the transport down for good.
	Close() error
}
