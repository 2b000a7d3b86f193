package control

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sensorgw/gateway/internal/logging"
)

func testSource() Source {
	return Source{
		Connections: func() ConnectionStats {
			return ConnectionStats{ActiveConnections: 2, PerIP: map[string]int{"127.0.0.1": 2}}
		},
		Sensors: func() []SensorSnapshot {
			return []SensorSnapshot{{SensorID: 7, Average: 21.5, Count: 3, State: "Normal"}}
		},
		Resource: func() ResourceSample {
			return ResourceSample{CPUPercent: 1.5, RSSBytes: 1024}
		},
		Storage: func() StorageStats {
			return StorageStats{RetryQueueLength: 2, RetryHeadAttempts: 1}
		},
	}
}

func newTestControlServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "control.sock")

	srv := NewServer(path, testSource(), logging.NewDefault())
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	go srv.Run()
	t.Cleanup(srv.Stop)

	return srv, path
}

func sendCommand(t *testing.T, path, cmd string) string {
	t.Helper()
	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var out []byte
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		out = append(out, line...)
		if err != nil {
			break
		}
	}
	return string(out)
}

func TestControlServer_StatsCommand(t *testing.T) {
	_, path := newTestControlServer(t)

	resp := sendCommand(t, path, "stats")
	if !contains(resp, "active_connections: 2") {
		t.Errorf("response missing active_connections, got %q", resp)
	}
	if !contains(resp, "sensor[7]") {
		t.Errorf("response missing sensor line, got %q", resp)
	}
	if !contains(resp, "retry_queue_length: 2") {
		t.Errorf("response missing retry_queue_length, got %q", resp)
	}
}

func TestControlServer_StatusCommandIncludesResourceSample(t *testing.T) {
	_, path := newTestControlServer(t)

	resp := sendCommand(t, path, "status")
	if !contains(resp, "cpu_percent: 1.50") {
		t.Errorf("response missing cpu_percent, got %q", resp)
	}
	if !contains(resp, "rss_bytes: 1024") {
		t.Errorf("response missing rss_bytes, got %q", resp)
	}
}

func TestControlServer_UnknownCommand(t *testing.T) {
	_, path := newTestControlServer(t)

	resp := sendCommand(t, path, "bogus")
	if !contains(resp, "error:") {
		t.Errorf("expected an error response, got %q", resp)
	}
}

func TestControlServer_StopRemovesSocketFile(t *testing.T) {
	srv, path := newTestControlServer(t)
	srv.Stop()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected socket file to be removed, stat err = %v", err)
	}
}

func contains(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}
