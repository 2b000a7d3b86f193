// Package control implements the control server (C7): a UNIX domain
// socket that accepts newline-terminated commands and reports
// connection and resource statistics as plain text.
package control

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sensorgw/gateway/internal/logging"
)

// ConnectionStats is the subset of the connection manager's registry
// state the control server reports.
type ConnectionStats struct {
	ActiveConnections int
	PerIP             map[string]int
}

// ResourceSample is the subset of the resource sampler's state the
// control server reports.
type ResourceSample struct {
	CPUPercent float64
	RSSBytes   uint64
}

// SensorSnapshot is the subset of per-sensor analytics state the
// control server reports.
type SensorSnapshot struct {
	SensorID uint16
	Average  float64
	Count    uint64
	State    string
}

// StorageStats is the subset of the storage worker's retry-queue state
// the control server reports.
type StorageStats struct {
	RetryQueueLength  int
	RetryHeadAttempts int
}

// Source supplies the data the control server formats into responses.
// The orchestrator fills each function from ingest.Server,
// analytics.Worker, sysmon.Sampler and storage.Worker, converting their
// results field by field into this package's types.
type Source struct {
	Connections func() ConnectionStats
	Sensors     func() []SensorSnapshot
	Resource    func() ResourceSample
	Storage     func() StorageStats
}

// Server is the control server (C7).
type Server struct {
	socketPath string
	source     Source
	logger     logging.Logger

	listener net.Listener
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewServer builds a control server bound to socketPath, serving data
// from source.
func NewServer(socketPath string, source Source, logger logging.Logger) *Server {
	return &Server{socketPath: socketPath, source: source, logger: logger.Component("control")}
}

// Listen binds the UNIX domain socket, removing any stale socket file
// left behind by a previous unclean shutdown.
func (s *Server) Listen() error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale control socket: %w", err)
	}
	l, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("binding control socket %q: %w", s.socketPath, err)
	}
	s.listener = l
	return nil
}

// Run accepts connections until the listener is closed by Stop.
func (s *Server) Run() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if isClosedErr(err) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.wg.Add(1)
		go s.handle(conn)
	}
}

// Stop closes the listener, waits for in-flight connections to finish,
// and removes the socket file, mirroring the original's cmdif_stop.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		if s.listener != nil {
			s.listener.Close()
		}
	})
	s.wg.Wait()
	os.Remove(s.socketPath)
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(5 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return
	}
	cmd := strings.TrimSpace(line)

	response := s.dispatch(cmd)
	conn.Write([]byte(response))
}

func (s *Server) dispatch(cmd string) string {
	switch cmd {
	case "stats":
		return s.formatStats()
	case "status":
		return s.formatStatus()
	default:
		return fmt.Sprintf("error: unknown command %q\n", cmd)
	}
}

func (s *Server) formatStats() string {
	stats := s.source.Connections()
	var b strings.Builder
	fmt.Fprintf(&b, "active_connections: %d\n", stats.ActiveConnections)
	for ip, count := range stats.PerIP {
		fmt.Fprintf(&b, "connections[%s]: %d\n", ip, count)
	}
	for _, sensor := range s.source.Sensors() {
		fmt.Fprintf(&b, "sensor[%d]: avg=%.2f count=%d state=%s\n", sensor.SensorID, sensor.Average, sensor.Count, sensor.State)
	}
	storage := s.source.Storage()
	fmt.Fprintf(&b, "retry_queue_length: %d\n", storage.RetryQueueLength)
	fmt.Fprintf(&b, "retry_head_attempts: %d\n", storage.RetryHeadAttempts)
	return b.String()
}

func (s *Server) formatStatus() string {
	var b strings.Builder
	b.WriteString(s.formatStats())
	res := s.source.Resource()
	fmt.Fprintf(&b, "cpu_percent: %.2f\n", res.CPUPercent)
	fmt.Fprintf(&b, "rss_bytes: %d\n", res.RSSBytes)
	return b.String()
}

func isClosedErr(err error) bool {
	return strings.Contains(err.Error(), "use of closed network connection")
}
