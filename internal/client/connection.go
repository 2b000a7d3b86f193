// Package client implements a simulated sensor's outgoing link to the
// gateway: a drop-oldest buffer absorbing readings produced faster than
// they can be sent, and a connection manager that dials the gateway's
// TCP port and reconnects with exponential backoff when the link drops.
package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sensorgw/gateway/internal/ingest"
	"github.com/sensorgw/gateway/internal/models"
)

// ConnectionState represents the current state of the connection.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (cs ConnectionState) String() string {
	switch cs {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Connection manages the TCP connection to the gateway for one
// simulated sensor, draining readings from a ReadingBuffer and
// reconnecting with exponential backoff on failure.
type Connection struct {
	Target   string
	SensorID uint16

	conn       net.Conn
	state      ConnectionState
	stateMutex sync.RWMutex
	logger     zerolog.Logger
	buffer     *ReadingBuffer

	reconnectInterval        time.Duration
	maxReconnectInterval     time.Duration
	currentReconnectInterval time.Duration

	dialTimeout time.Duration
}

// ConnectionConfig holds configuration for the connection.
type ConnectionConfig struct {
	Target               string
	ReconnectInterval    time.Duration
	MaxReconnectInterval time.Duration
	DialTimeout          time.Duration
}

// NewConnection creates a new connection manager for sensorID, sending
// to target, draining readings from buffer.
func NewConnection(cfg ConnectionConfig, sensorID uint16, buffer *ReadingBuffer, logger zerolog.Logger) *Connection {
	return &Connection{
		Target:                   cfg.Target,
		SensorID:                 sensorID,
		state:                    StateDisconnected,
		logger:                   logger,
		buffer:                   buffer,
		reconnectInterval:        cfg.ReconnectInterval,
		maxReconnectInterval:     cfg.MaxReconnectInterval,
		currentReconnectInterval: cfg.ReconnectInterval,
		dialTimeout:              cfg.DialTimeout,
	}
}

func (c *Connection) setState(state ConnectionState) {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	c.state = state
	c.logger.Debug().Str("state", state.String()).Msg("connection state updated")
}

// State returns the current connection state.
func (c *Connection) State() ConnectionState {
	c.stateMutex.RLock()
	defer c.stateMutex.RUnlock()
	return c.state
}

// IsConnected returns true if currently connected.
func (c *Connection) IsConnected() bool {
	c.stateMutex.RLock()
	defer c.stateMutex.RUnlock()
	return c.state == StateConnected
}

// dial establishes the TCP connection to the gateway.
func (c *Connection) dial(ctx context.Context) error {
	c.setState(StateConnecting)
	c.logger.Info().Str("target", c.Target).Msg("connecting to gateway")

	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.Target)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("dial failed: %w", err)
	}

	c.conn = conn
	c.setState(StateConnected)
	c.currentReconnectInterval = c.reconnectInterval
	c.logger.Info().Msg("connected to gateway")
	return nil
}

// Run drains the buffer and sends readings to the gateway until ctx is
// cancelled, reconnecting with exponential backoff whenever the link
// drops.
func (c *Connection) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.dial(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("connect failed")
			if !c.waitBeforeReconnect(ctx) {
				return
			}
			continue
		}

		if !c.sendLoop(ctx) {
			return
		}
		c.disconnect()
		c.logger.Info().Msg("connection lost, will reconnect")
		if !c.waitBeforeReconnect(ctx) {
			return
		}
	}
}

// waitBeforeReconnect waits before the next reconnect attempt with
// exponential backoff, doubling up to maxReconnectInterval. It returns
// false if ctx was cancelled while waiting.
func (c *Connection) waitBeforeReconnect(ctx context.Context) bool {
	c.logger.Info().Dur("delay", c.currentReconnectInterval).Msg("waiting before reconnect")
	select {
	case <-time.After(c.currentReconnectInterval):
	case <-ctx.Done():
		return false
	}
	c.currentReconnectInterval *= 2
	if c.currentReconnectInterval > c.maxReconnectInterval {
		c.currentReconnectInterval = c.maxReconnectInterval
	}
	return true
}

// sendLoop drains the buffer at a steady pace until ctx is cancelled or
// a write fails. It returns false when ctx was cancelled (caller should
// stop entirely), true when the link dropped and should be retried.
func (c *Connection) sendLoop(ctx context.Context) bool {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			for _, reading := range c.buffer.PopBatch(16) {
				if err := c.send(reading); err != nil {
					c.logger.Warn().Err(err).Msg("send failed")
					c.buffer.Push(reading) // put it back for the next connection
					return true
				}
			}
		}
	}
}

func (c *Connection) send(reading models.SensorReading) error {
	_, err := c.conn.Write(ingest.EncodePacket(reading.SensorID, reading.Value))
	return err
}

func (c *Connection) disconnect() {
	c.stateMutex.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.state = StateDisconnected
	c.stateMutex.Unlock()
}

// Close gracefully shuts down the connection.
func (c *Connection) Close() error {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.state = StateDisconnected
	return nil
}
