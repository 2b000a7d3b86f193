// Package ingest implements the connection manager (C3): the TCP
// front end that accepts sensor connections, enforces admission
// control and idle timeouts, parses the binary wire packets, and
// forwards readings into the staging buffers feeding the analytics
// and storage workers.
//
// The original source multiplexes the listener, a shutdown
// notification, and every live client socket on a single supervisory
// thread via select(). This is the idiomatic Go replacement: one
// goroutine per connection, idle timeout via SetReadDeadline instead
// of a polled scan, and a registry mutex standing in for the
// select()-driven single-threaded access discipline.
package ingest

import (
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sensorgw/gateway/internal/buffer"
	"github.com/sensorgw/gateway/internal/gwerr"
	"github.com/sensorgw/gateway/internal/logging"
	"github.com/sensorgw/gateway/internal/models"
)

// Server is the connection manager (C3).
type Server struct {
	maxConnections      int
	maxConnectionsPerIP int
	sensorTimeout       time.Duration

	logger  logging.Logger
	outputs []*buffer.StagingBuffer // fan-out targets, one per consumer

	registry *registry

	mu       sync.Mutex
	listener net.Listener
	closed   bool

	wg sync.WaitGroup
}

// Config carries the connection manager's tunables; kept distinct from
// the package-level config.Config so this package has no dependency on
// it.
type Config struct {
	MaxConnections      int
	MaxConnectionsPerIP int
	SensorTimeout       time.Duration
}

// NewServer builds a connection manager that fans every accepted
// reading out to each of outputs (the spec's dual-buffer design: one
// buffer per consumer).
func NewServer(cfg Config, outputs []*buffer.StagingBuffer, logger logging.Logger) *Server {
	return &Server{
		maxConnections:      cfg.MaxConnections,
		maxConnectionsPerIP: cfg.MaxConnectionsPerIP,
		sensorTimeout:       cfg.SensorTimeout,
		logger:              logger.Component("ingest"),
		outputs:             outputs,
		registry:            newRegistry(cfg.MaxConnections, cfg.MaxConnectionsPerIP),
	}
}

// Listen binds the TCP port. Go's net.Listen does not expose a backlog
// knob the way POSIX listen() does; TCP_BACKLOG is therefore carried
// in configuration for documentation parity but has no effect here —
// the runtime manages its own accept queue.
func (s *Server) Listen(port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Run drives the accept loop. It returns when the listener is closed
// by Stop, or immediately if Listen was never called.
func (s *Server) Run() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("ingest: Listen must be called before Run")
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("connection manager listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				s.logger.Info().Msg("accept loop exiting on shutdown")
				s.wg.Wait()
				return nil
			}
			s.logger.Error().Err(err).Msg("accept failed")
			continue
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// Stop closes the listener (so Run's accept loop exits) and closes
// every live connection (so in-flight reads unblock), mirroring the
// source's "close listener, then close clients" shutdown order.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, conn := range s.registry.allConns() {
		conn.Close()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}

	rec, admitted := s.registry.tryAdmit(conn, host)
	if !admitted {
		err := gwerr.New(gwerr.ResourceExhausted, "admission cap reached")
		s.logger.Warn().Str("ip", host).Err(err).Msg("connection rejected")
		return
	}
	defer s.registry.remove(conn)

	s.logger.Debug().Str("ip", host).Msg("connection accepted")

	buf := make([]byte, PacketSize)
	for {
		conn.SetReadDeadline(time.Now().Add(s.sensorTimeout))
		_, err := io.ReadFull(conn, buf)
		if err != nil {
			s.logClose(host, rec, err)
			return
		}

		sensorID, value := DecodePacket(buf)
		now := time.Now()

		if sensorID == models.InvalidSensorID {
			s.logger.Warn().Str("ip", host).Msg("packet carries reserved sensor id 0")
		}

		if prev, latched := s.registry.sensorIDFor(conn); latched && prev != sensorID && sensorID != models.InvalidSensorID {
			s.logger.Warn().Str("ip", host).Uint16("previous_id", prev).Uint16("new_id", sensorID).
				Msg("sensor id changed on established connection; treating as identity update")
		}
		s.registry.touch(conn, sensorID)

		reading := models.NewSensorReading(sensorID, value, now.Unix())
		for _, out := range s.outputs {
			if insErr := out.Insert(reading); insErr != nil {
				if !errors.Is(insErr, buffer.ErrShutdown) {
					s.logger.Error().Err(insErr).Msg("failed to forward reading")
				}
			}
		}
	}
}

func (s *Server) logClose(host string, rec *clientRecord, err error) {
	switch {
	case errors.Is(err, io.EOF):
		s.logger.Debug().Str("ip", host).Msg("connection closed by peer")
	case errors.Is(err, io.ErrUnexpectedEOF):
		ge := gwerr.Wrap(gwerr.ProtocolViolation, "connection closed mid-packet", err)
		s.logger.Warn().Str("ip", host).Err(ge).Msg("connection closed mid-packet")
	case isTimeout(err):
		s.logger.Info().Str("ip", host).Msg("connection idle timeout")
	default:
		ge := gwerr.Wrap(gwerr.Io, "connection read failed", err)
		s.logger.Warn().Str("ip", host).Err(ge).Msg("connection read error")
	}
	_ = rec
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Stats returns a point-in-time snapshot of the connection registry,
// backing the control socket's "stats" command.
func (s *Server) Stats() ConnectionStats {
	return s.registry.stats()
}

// ActiveConnectionCount backs the dashboard snapshot's active
// connection count.
func (s *Server) ActiveConnectionCount() int {
	return s.registry.activeConnectionCount()
}

// ActiveSensorIDs is used by the dashboard to know which sensors are
// currently connected.
func (s *Server) ActiveSensorIDs() []uint16 {
	return s.registry.activeSensorIDs()
}
