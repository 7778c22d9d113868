// Package transport maintains a logical websocket connection to a remote
// event source. Unexpected disconnects trigger automatic reconnection
// under the configured backoff policy; transport failures surface as
// connection events on the bus and are never fatal to the orchestrator.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quanta/internal/common"
	"github.com/ternarybob/quanta/internal/interfaces"
	"github.com/ternarybob/quanta/internal/models"
)

// ErrNotConnected is returned by Send while the connection is anything
// other than Connected.
var ErrNotConnected = errors.New("transport not connected")

// ErrClosed is returned by Connect after Close
var ErrClosed = errors.New("transport closed")

// Client is a reconnecting websocket client implementing Transport
type Client struct {
	url         string
	interval    time.Duration
	maxAttempts int
	exponential bool
	bus         interfaces.EventService
	logger      arbor.ILogger
	dialer      *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	status  models.ConnStatus
	attempt int
	cancel  context.CancelFunc
	closed  bool

	messages chan []byte
	wg       sync.WaitGroup
}

// NewClient creates a transport client from config. It starts in the
// Disconnected state; call Connect to begin the connection loop.
func NewClient(cfg *common.TransportConfig, bus interfaces.EventService, logger arbor.ILogger) *Client {
	maxAttempts := cfg.MaxReconnectAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Client{
		url:         cfg.URL,
		interval:    cfg.ReconnectIntervalDuration(),
		maxAttempts: maxAttempts,
		exponential: cfg.Backoff == "exponential",
		bus:         bus,
		logger:      logger,
		dialer:      &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		status:      models.ConnStatusDisconnected,
		messages:    make(chan []byte, 256),
	}
}

// Connect starts (or restarts) the connection loop. The reconnect attempt
// counter is reset, so a transport in the terminal Error state retries
// from zero.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.url == "" {
		c.mu.Unlock()
		return fmt.Errorf("transport url not configured")
	}
	if c.cancel != nil {
		c.cancel()
	}
	// Close any live connection too: cancellation alone leaves the old
	// loop blocked in ReadMessage until a frame arrives.
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.attempt = 0
	c.mu.Unlock()

	c.wg.Add(1)
	go c.connectLoop(ctx)

	return nil
}

// Disconnect is a deliberate close; no auto-reconnect follows
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}

	c.setStatus(models.ConnStatusDisconnected, 0, "")
}

// Send writes a JSON message over the connection
func (c *Client) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != models.ConnStatusConnected || c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(v)
}

// Status returns the current connection status
func (c *Client) Status() models.ConnStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Messages returns the inbound message stream
func (c *Client) Messages() <-chan []byte {
	return c.messages
}

// Close tears the transport down for good
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.Disconnect()
	c.wg.Wait()
	close(c.messages)
	return nil
}

// connectLoop dials until connected, reads until the connection drops,
// then retries with backoff up to the attempt ceiling.
func (c *Client) connectLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		c.mu.Lock()
		attempt := c.attempt + 1
		c.attempt = attempt
		c.mu.Unlock()

		if attempt > c.maxAttempts {
			c.setStatus(models.ConnStatusError, attempt-1,
				fmt.Sprintf("exceeded %d reconnect attempts", c.maxAttempts))
			c.logger.Warn().
				Int("attempts", c.maxAttempts).
				Str("url", c.url).
				Msg("Transport gave up reconnecting; call Connect to retry")
			return
		}

		c.setStatus(models.ConnStatusConnecting, attempt, "")

		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Str("url", c.url).
				Msg("Transport dial failed")

			if !c.sleep(ctx, c.backoff(attempt)) {
				return
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.attempt = 0
		c.mu.Unlock()
		c.setStatus(models.ConnStatusConnected, attempt, "")

		c.logger.Info().Str("url", c.url).Msg("Transport connected")

		readErr := c.readPump(ctx, conn)

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()

		if ctx.Err() != nil {
			return
		}

		c.logger.Warn().Err(readErr).Msg("Transport connection lost; reconnecting")

		if !c.sleep(ctx, c.backoff(1)) {
			return
		}
	}
}

// readPump forwards inbound frames to the message channel until the
// connection errors. Slow consumers drop frames rather than stall the pump.
func (c *Client) readPump(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		select {
		case c.messages <- data:
		case <-ctx.Done():
			return ctx.Err()
		default:
			c.logger.Warn().Msg("Transport message dropped: consumer too slow")
		}
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	if !c.exponential || attempt <= 1 {
		return c.interval
	}
	d := c.interval
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > time.Minute {
			return time.Minute
		}
	}
	return d
}

func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Client) setStatus(status models.ConnStatus, attempt int, errMsg string) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()

	c.bus.Publish(context.Background(), models.NewEvent(models.ConnectionPayload{
		Status:  status,
		Attempt: attempt,
		Error:   errMsg,
	}, time.Now()))
}
