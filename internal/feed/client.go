// Package feed consumes completed-trade events from the execution
// engine's WebSocket stream and hands them to the learning scheduler.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/furrsati/OMM-BOT-sub002/internal/domain"
	"github.com/furrsati/OMM-BOT-sub002/internal/observability"
	"github.com/furrsati/OMM-BOT-sub002/internal/wallet"
)

// Handler receives each completed trade exactly as decoded from the
// stream. Handlers must tolerate replays: the engine re-sends events it
// could not confirm delivered.
type Handler func(ctx context.Context, t *domain.Trade) error

// Config configures feed client behavior.
type Config struct {
	// Endpoint is the ws:// or wss:// URL of the trade stream.
	Endpoint string
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing control frames.
	WriteTimeout time.Duration
}

// DefaultConfig returns default feed configuration.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:          endpoint,
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Client maintains the stream connection and dispatches decoded trades
// to the handler. Reconnects with exponential backoff; handler errors
// are logged and never tear down the connection.
type Client struct {
	config  Config
	handler Handler
	log     zerolog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewClient creates a feed client and connects to the endpoint.
func NewClient(ctx context.Context, config Config, handler Handler, log zerolog.Logger) (*Client, error) {
	if handler == nil {
		return nil, fmt.Errorf("feed handler is required")
	}

	c := &Client{
		config:  config,
		handler: handler,
		log:     log.With().Str("component", "feed").Logger(),
		done:    make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// connect establishes the WebSocket connection.
func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.config.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("feed dial: %w", err)
	}

	c.conn = conn
	return nil
}

// Close closes the stream connection and waits for the loops to exit.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop reads frames and dispatches trade events, reconnecting with
// exponential backoff on connection errors.
func (c *Client) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.waitOrDone(reconnectDelay) {
				return
			}
			reconnectDelay = c.nextDelay(reconnectDelay)
			observability.RecordFeedReconnect()
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := c.connect(ctx)
			cancel()
			if err != nil {
				c.log.Warn().Err(err).Dur("retry_in", reconnectDelay).Msg("Feed reconnect failed")
			} else {
				c.log.Info().Msg("Feed reconnected")
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			c.log.Warn().Err(err).Msg("Feed read failed, dropping connection")
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.Close()
				c.conn = nil
			}
			c.connMu.Unlock()
			continue
		}

		// Reset delay on successful read
		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// waitOrDone sleeps for delay, returning false when the client closed.
func (c *Client) waitOrDone(delay time.Duration) bool {
	select {
	case <-c.done:
		return false
	case <-time.After(delay):
		return true
	}
}

func (c *Client) nextDelay(delay time.Duration) time.Duration {
	delay *= 2
	if delay > c.config.MaxReconnectDelay {
		delay = c.config.MaxReconnectDelay
	}
	return delay
}

// handleMessage decodes one frame and dispatches completed trades.
// Unknown frame types and malformed payloads are logged and skipped.
func (c *Client) handleMessage(message []byte) {
	var frame eventFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		observability.RecordFrameDecodeError()
		c.log.Warn().Err(err).Msg("Feed frame decode failed")
		return
	}

	switch frame.Type {
	case eventTradeCompleted:
		var payload tradePayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			observability.RecordFrameDecodeError()
			c.log.Warn().Err(err).Msg("Trade payload decode failed")
			return
		}
		trade := payload.toDomain()
		if !trade.Completed() {
			c.log.Warn().Str("trade", trade.TradeID).Msg("Open trade on completion stream, skipping")
			return
		}
		if !wallet.IsValidAddress(trade.Mint) {
			c.log.Warn().Str("trade", trade.TradeID).Str("mint", trade.Mint).Msg("Trade mint is not a valid address, skipping")
			return
		}
		observability.RecordTradeReceived()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := c.handler(ctx, trade)
		cancel()
		if err != nil {
			c.log.Error().Err(err).Str("trade", trade.TradeID).Msg("Trade handler failed")
		}
	case eventHeartbeat:
		// Engine liveness marker, nothing to do.
	default:
		c.log.Debug().Str("type", frame.Type).Msg("Ignoring unknown frame type")
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			c.connMu.Unlock()
		}
	}
}
