// Package dashboard implements the read-only observability surface
// added on top of the original component set: an HTTP server that
// serves a JSON snapshot and pushes the same snapshot over WebSocket on
// an interval, adapted from the teacher repository's sensor-facing
// WebSocket handler (see DESIGN.md) into a server-push model.
package dashboard

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sensorgw/gateway/internal/logging"
	"github.com/sensorgw/gateway/internal/models"
)

// SnapshotSource builds the current dashboard snapshot on demand.
type SnapshotSource func() models.DashboardSnapshot

// HistorySource returns up to n of the most recent readings recorded
// for sensorID, newest first.
type HistorySource func(sensorID uint16, n int) []models.SensorReading

// Server serves the dashboard over HTTP and WebSocket.
type Server struct {
	addr         string
	readTimeout  time.Duration
	writeTimeout time.Duration
	pushInterval time.Duration
	source       SnapshotSource
	history      HistorySource
	logger       logging.Logger

	upgrader websocket.Upgrader
	httpSrv  *http.Server
	stopPush chan struct{}

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// Config mirrors config.DashboardConfig's shape without introducing a
// dependency on the config package.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PushInterval time.Duration
}

// NewServer builds a dashboard server that renders snapshots from
// source and answers per-sensor history queries from history.
func NewServer(cfg Config, source SnapshotSource, history HistorySource, logger logging.Logger) *Server {
	s := &Server{
		addr:         cfg.Addr,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		pushInterval: cfg.PushInterval,
		source:       source,
		history:      history,
		logger:       logger.Component("dashboard"),
		clients:      make(map[*websocket.Conn]struct{}),
		stopPush:     make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return s
}

// Run starts the HTTP server and the periodic WebSocket push loop. It
// blocks until the server is stopped.
func (s *Server) Run() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.httpSrv = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	go s.pushLoop()

	s.logger.Info().Str("addr", s.addr).Msg("dashboard listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts down the HTTP server and closes any open WebSocket
// connections.
func (s *Server) Stop() {
	select {
	case <-s.stopPush:
	default:
		close(s.stopPush)
	}
	if s.httpSrv != nil {
		s.httpSrv.Close()
	}
	s.mu.Lock()
	for c := range s.clients {
		c.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.source())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sensorID, err := strconv.ParseUint(r.URL.Query().Get("sensor"), 10, 16)
	if err != nil {
		http.Error(w, "missing or invalid sensor query parameter", http.StatusBadRequest)
		return
	}

	n := 50
	if raw := r.URL.Query().Get("n"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.history(uint16(sensorID), n))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	s.sendSnapshot(conn)

	// Drain and discard client frames so the connection's read side
	// never backs up; the dashboard is push-only.
	go func() {
		defer s.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) pushLoop() {
	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopPush:
			return
		case <-ticker.C:
			s.broadcast()
		}
	}
}

func (s *Server) broadcast() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		s.sendSnapshot(c)
	}
}

func (s *Server) sendSnapshot(conn *websocket.Conn) {
	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := conn.WriteJSON(s.source()); err != nil {
		s.logger.Warn().Err(err).Msg("failed to push snapshot, dropping client")
		s.removeClient(conn)
	}
}
