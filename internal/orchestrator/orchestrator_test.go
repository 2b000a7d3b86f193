package orchestrator

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/sensorgw/gateway/internal/config"
	"github.com/sensorgw/gateway/internal/logging"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find a free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Server.Port = freePort(t)
	cfg.Storage.DSN = filepath.Join(dir, "test.db")
	cfg.Control.Enabled = false
	cfg.Dashboard.Enabled = false
	cfg.Server.RoomMapPath = filepath.Join(dir, "missing-room.map")
	return cfg
}

func TestOrchestrator_StartsAndStopsOnSignal(t *testing.T) {
	cfg := testConfig(t)
	o := New(cfg, logging.NewDefault())

	done := make(chan int, 1)
	go func() { done <- o.Run() }()

	// Wait for the listener to come up before sending a shutdown signal.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Server.Port)))
		if err == nil {
			conn.Close()
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatalf("FindProcess failed: %v", err)
	}
	if err := proc.Signal(os.Interrupt); err != nil {
		t.Fatalf("Signal failed: %v", err)
	}

	select {
	case code := <-done:
		if code != 0 {
			t.Errorf("exit code = %d, want 0 for clean signal shutdown", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not exit after SIGINT")
	}

	if got := o.State(); got != StateStopped {
		t.Errorf("State() = %v, want StateStopped", got)
	}
}
