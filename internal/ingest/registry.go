package ingest

import (
	"net"
	"sync"
	"time"
)

// clientRecord is the connection manager's per-connection bookkeeping.
// It is mutated only from the connection's own goroutine (accept-time
// setup, and the read loop updating LastActive/SensorID); the registry
// mutex guards only the map itself plus reads taken for snapshotting.
type clientRecord struct {
	conn        net.Conn
	ip          string
	sensorID    *uint16 // nil until the first packet is read
	connectedAt time.Time
	lastActive  time.Time
}

// registry tracks every live connection, enforcing CM1 (per-IP cap)
// and CM2 (global cap) and backing the control socket's read-only
// snapshot operations.
type registry struct {
	mu         sync.Mutex
	byConn     map[net.Conn]*clientRecord
	perIPCount map[string]int
	maxTotal   int
	maxPerIP   int
}

func newRegistry(maxTotal, maxPerIP int) *registry {
	return &registry{
		byConn:     make(map[net.Conn]*clientRecord),
		perIPCount: make(map[string]int),
		maxTotal:   maxTotal,
		maxPerIP:   maxPerIP,
	}
}

// tryAdmit enforces the admission algorithm from the spec: count
// existing records for this IP, reject if at cap, reject if the
// global cap is reached, otherwise register a new clientRecord.
func (r *registry) tryAdmit(conn net.Conn, ip string) (*clientRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.byConn) >= r.maxTotal {
		return nil, false
	}
	if r.perIPCount[ip] >= r.maxPerIP {
		return nil, false
	}

	now := time.Now()
	rec := &clientRecord{
		conn:        conn,
		ip:          ip,
		connectedAt: now,
		lastActive:  now,
	}
	r.byConn[conn] = rec
	r.perIPCount[ip]++
	return rec, true
}

func (r *registry) remove(conn net.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byConn[conn]
	if !ok {
		return
	}
	delete(r.byConn, conn)
	r.perIPCount[rec.ip]--
	if r.perIPCount[rec.ip] <= 0 {
		delete(r.perIPCount, rec.ip)
	}
}

func (r *registry) touch(conn net.Conn, sensorID uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byConn[conn]
	if !ok {
		return
	}
	rec.lastActive = time.Now()
	id := sensorID
	rec.sensorID = &id
}

// sensorIDFor reports the sensor id currently latched for a
// connection, and whether one has been latched yet (false before the
// first packet). The caller compares it with a newly read id to detect
// and warn on an identity change on an established socket.
func (r *registry) sensorIDFor(conn net.Conn) (uint16, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byConn[conn]
	if !ok || rec.sensorID == nil {
		return 0, false
	}
	return *rec.sensorID, true
}

// allConns returns a snapshot of every currently tracked connection,
// used by Stop to force-close live sockets so blocked reads unblock.
func (r *registry) allConns() []net.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := make([]net.Conn, 0, len(r.byConn))
	for c := range r.byConn {
		conns = append(conns, c)
	}
	return conns
}

// ConnectionStats is the read-only snapshot backing the control
// socket's "stats"/"status" commands, grounded on conmgt_get_
// connection_stats/conmgt_get_active_connections in the original
// source.
type ConnectionStats struct {
	ActiveConnections int
	PerIP             map[string]int
}

func (r *registry) stats() ConnectionStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	perIP := make(map[string]int, len(r.perIPCount))
	for ip, n := range r.perIPCount {
		perIP[ip] = n
	}
	return ConnectionStats{ActiveConnections: len(r.byConn), PerIP: perIP}
}

func (r *registry) activeConnectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byConn)
}

// activeSensorIDs builds a models.SensorSnapshot-free list of every
// currently-latched sensor id, used by the dashboard to know which
// connections are currently live; analytics' own running averages are
// supplied separately by the analytics worker.
func (r *registry) activeSensorIDs() []uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uint16, 0, len(r.byConn))
	for _, rec := range r.byConn {
		if rec.sensorID != nil {
			ids = append(ids, *rec.sensorID)
		}
	}
	return ids
}
