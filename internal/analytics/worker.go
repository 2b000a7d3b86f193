// Package analytics implements the analytics worker (C4): the
// staging-buffer consumer that maintains per-sensor running averages
// and emits hysteresis-based threshold alerts.
package analytics

import (
	"errors"
	"sync"

	"github.com/sensorgw/gateway/internal/buffer"
	"github.com/sensorgw/gateway/internal/logging"
	"github.com/sensorgw/gateway/internal/models"
)

// Thresholds holds the hysteresis classification boundaries (the
// spec's TEMP_TOO_COLD_THRESHOLD / TEMP_TOO_HOT_THRESHOLD).
type Thresholds struct {
	TooColdBelow float64
	TooHotAbove  float64
}

func (t Thresholds) classify(avg float64) State {
	switch {
	case avg < t.TooColdBelow:
		return TooCold
	case avg > t.TooHotAbove:
		return TooHot
	default:
		return Normal
	}
}

// Worker is the analytics worker (C4).
type Worker struct {
	in         *buffer.StagingBuffer
	thresholds Thresholds
	rooms      *models.RoomMap
	logger     logging.Logger

	// mu guards stats. The worker's own Run loop is the only writer;
	// Snapshot is the only reader, called from the control server and
	// dashboard goroutines. The spec keeps SensorStats owned
	// exclusively by the analytics worker, so this mutex exists purely
	// to make that ownership safe to observe from outside, not to
	// share mutation.
	mu    sync.RWMutex
	stats *statsList
}

// NewWorker builds an analytics worker consuming from in. rooms may be
// nil (room enrichment is then skipped; alerts report the sensor id).
func NewWorker(in *buffer.StagingBuffer, thresholds Thresholds, rooms *models.RoomMap, logger logging.Logger) *Worker {
	return &Worker{
		in:         in,
		thresholds: thresholds,
		rooms:      rooms,
		logger:     logger.Component("analytics"),
		stats:      newStatsList(),
	}
}

// Run consumes readings until the staging buffer reports shutdown.
func (w *Worker) Run() {
	for {
		reading, err := w.in.Remove()
		if err != nil {
			if errors.Is(err, buffer.ErrShutdown) {
				w.logger.Info().Msg("analytics worker exiting: buffer shut down")
				return
			}
			w.logger.Error().Err(err).Msg("unexpected error reading from staging buffer")
			return
		}
		w.process(reading)
	}
}

func (w *Worker) process(reading models.SensorReading) {
	if reading.SensorID == models.InvalidSensorID {
		w.logger.Warn().Msg("dropping reading with reserved sensor id 0")
		return
	}

	w.mu.Lock()
	entry := w.stats.findOrCreate(reading.SensorID)
	entry.sum += reading.Value
	entry.count++
	avg := entry.average()
	state := w.thresholds.classify(avg)
	changed := state != entry.lastState
	if changed {
		entry.lastState = state
	}
	w.mu.Unlock()

	if changed {
		w.emitAlert(reading.SensorID, avg, state)
	}
}

func (w *Worker) emitAlert(sensorID uint16, avg float64, state State) {
	event := w.logger.Info()
	if state != Normal {
		event = w.logger.Warn()
	}
	event = event.Uint16("sensor_id", sensorID).Float64("avg", avg).Str("state", state.String())
	if roomID, ok := w.rooms.RoomID(sensorID); ok {
		event = event.Int32("room_id", roomID)
	}
	event.Msg("sensor temperature state changed")
}

// Snapshot returns the current per-sensor running average and state
// for every sensor observed so far, used by the control server and
// dashboard. Safe to call concurrently with Run from any goroutine;
// mu guards the read against the worker's own writes.
func (w *Worker) Snapshot() []models.SensorSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	entries := w.stats.all()
	out := make([]models.SensorSnapshot, 0, len(entries))
	for _, e := range entries {
		snap := models.SensorSnapshot{
			SensorID: e.id,
			Average:  e.average(),
			Count:    e.count,
			State:    e.lastState.String(),
		}
		if roomID, ok := w.rooms.RoomID(e.id); ok {
			room := roomID
			snap.RoomID = &room
		}
		out = append(out, snap)
	}
	return out
}
