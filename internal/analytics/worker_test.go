package analytics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sensorgw/gateway/internal/buffer"
	"github.com/sensorgw/gateway/internal/logging"
	"github.com/sensorgw/gateway/internal/models"
)

func testThresholds() Thresholds {
	return Thresholds{TooColdBelow: 15.0, TooHotAbove: 30.0}
}

func TestWorker_RunningAverage(t *testing.T) {
	in := buffer.New(8)
	w := NewWorker(in, testThresholds(), nil, logging.NewDefault())

	go w.Run()
	defer in.SignalShutdown()

	values := []float64{20.0, 22.0, 18.0, 19.0}
	var want float64
	for i, v := range values {
		in.Insert(models.NewSensorReading(7, v, 0))
		want += v
		expectedAvg := want / float64(i+1)

		waitForSnapshot(t, w, 7, func(s models.SensorSnapshot) bool {
			return s.Count == uint64(i+1)
		})

		snap := snapshotFor(w, 7)
		if snap == nil {
			t.Fatalf("no snapshot for sensor 7 after %d readings", i+1)
		}
		if diff := snap.Average - expectedAvg; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("step %d: average = %v, want %v", i, snap.Average, expectedAvg)
		}
	}
}

// TestWorker_HysteresisAlertsOnlyOnTransition covers AN2: N consecutive
// identical classifications produce exactly one alert.
func TestWorker_HysteresisAlertsOnlyOnTransition(t *testing.T) {
	in := buffer.New(8)
	var logs bytes.Buffer
	w := NewWorker(in, testThresholds(), nil, logging.New(&logs, "json", "info"))
	go w.Run()
	defer in.SignalShutdown()

	for i := 0; i < 3; i++ {
		in.Insert(models.NewSensorReading(7, 31.0, 0))
	}

	waitForSnapshot(t, w, 7, func(s models.SensorSnapshot) bool {
		return s.Count == 3
	})

	snap := snapshotFor(w, 7)
	if snap == nil {
		t.Fatal("expected a snapshot for sensor 7")
	}
	if snap.State != TooHot.String() {
		t.Errorf("State = %v, want %v", snap.State, TooHot.String())
	}
	if n := strings.Count(logs.String(), "sensor temperature state changed"); n != 1 {
		t.Errorf("alerts emitted = %d, want exactly 1 for three TooHot readings", n)
	}
}

func TestWorker_DropsReservedSensorID(t *testing.T) {
	in := buffer.New(8)
	w := NewWorker(in, testThresholds(), nil, logging.NewDefault())
	go w.Run()
	defer in.SignalShutdown()

	in.Insert(models.NewSensorReading(models.InvalidSensorID, 20.0, 0))
	in.Insert(models.NewSensorReading(7, 20.0, 0))

	waitForSnapshot(t, w, 7, func(s models.SensorSnapshot) bool { return s.Count == 1 })

	if snap := snapshotFor(w, models.InvalidSensorID); snap != nil {
		t.Error("sensor id 0 should never produce a stats entry")
	}
}

func TestWorker_ExitsOnShutdown(t *testing.T) {
	in := buffer.New(4)
	w := NewWorker(in, testThresholds(), nil, logging.NewDefault())

	done := make(chan struct{})
	go func() {
		w.Run()
		close(done)
	}()

	in.SignalShutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after SignalShutdown")
	}
}

func snapshotFor(w *Worker, id uint16) *models.SensorSnapshot {
	for _, s := range w.Snapshot() {
		if s.SensorID == id {
			return &s
		}
	}
	return nil
}

func waitForSnapshot(t *testing.T, w *Worker, id uint16, ok func(models.SensorSnapshot) bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if snap := snapshotFor(w, id); snap != nil && ok(*snap) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for expected snapshot state for sensor %d", id)
}
