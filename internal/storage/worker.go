package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/sensorgw/gateway/internal/buffer"
	"github.com/sensorgw/gateway/internal/logging"
	"github.com/sensorgw/gateway/internal/models"
)

// Config holds the storage worker's tunables (the spec's
// DB_CONNECT_RETRY_ATTEMPTS / DB_CONNECT_RETRY_DELAY_SEC / retry queue
// capacity).
type Config struct {
	ConnectRetryAttempts int
	ConnectRetryDelay    time.Duration
	RetryQueueCapacity   int
}

// Worker is the storage worker (C5): a single long-running consumer of
// its dedicated staging buffer, plus owner of the retry queue.
type Worker struct {
	store  Store
	in     *buffer.StagingBuffer
	cfg    Config
	logger logging.Logger

	stop    chan struct{}
	stopped sync.Once
	fatal   chan struct{}

	retry *retryQueue

	mu        sync.Mutex
	connected bool
}

// NewWorker builds a storage worker writing through store, consuming
// from in. fatal is closed exactly once if reconnection is exhausted;
// the orchestrator selects on it to trigger a full shutdown.
func NewWorker(store Store, in *buffer.StagingBuffer, cfg Config, logger logging.Logger) *Worker {
	return &Worker{
		store:  store,
		in:     in,
		cfg:    cfg,
		logger: logger.Component("storage"),
		stop:   make(chan struct{}),
		fatal:  make(chan struct{}),
		retry:  newRetryQueue(cfg.RetryQueueCapacity),
	}
}

// Fatal returns a channel that is closed if the worker exhausts its
// reconnect attempts and must escalate to the orchestrator.
func (w *Worker) Fatal() <-chan struct{} {
	return w.fatal
}

// Stop requests that the worker abandon any interruptible backoff
// sleep and exit its loop as soon as the staging buffer also reports
// shutdown. Safe to call more than once.
func (w *Worker) Stop() {
	w.stopped.Do(func() { close(w.stop) })
}

// Run connects to the store and then services the staging buffer and
// retry queue until shutdown, exactly as the component design's
// steady-state loop describes.
func (w *Worker) Run() {
	if !w.connectWithBackoff() {
		return
	}
	defer w.store.Close()

	for {
		if !w.isConnected() {
			if !w.connectWithBackoff() {
				return
			}
		}

		item, fromRetry, ok := w.nextItem()
		if !ok {
			w.logger.Info().Msg("storage worker exiting: buffer shut down")
			return
		}

		err := w.store.InsertReading(item.SensorID, item.Timestamp, item.Value)
		if err == nil {
			if fromRetry {
				w.retry.dequeueHead()
			}
			continue
		}

		w.logger.Warn().Err(err).Uint16("sensor_id", item.SensorID).Msg("insert failed, marking connection lost")
		w.setConnected(false)
		if fromRetry {
			w.retry.bumpHeadAttempts()
			continue
		}
		if dropped := w.retry.enqueue(item); dropped {
			w.logger.Warn().Int("capacity", w.cfg.RetryQueueCapacity).Msg("retry queue full, dropped oldest reading")
		}
	}
}

// nextItem implements "choose source": retry queue head takes priority
// over the staging buffer. ok is false only when the staging buffer
// reports shutdown and the retry queue is empty.
func (w *Worker) nextItem() (models.SensorReading, bool, bool) {
	if head, present := w.retry.peekHead(); present {
		return head.reading, true, true
	}
	reading, err := w.in.Remove()
	if err != nil {
		if errors.Is(err, buffer.ErrShutdown) {
			return models.SensorReading{}, false, false
		}
		w.logger.Error().Err(err).Msg("unexpected error reading from staging buffer")
		return models.SensorReading{}, false, false
	}
	return reading, false, true
}

// connectWithBackoff retries Connect up to ConnectRetryAttempts times,
// sleeping ConnectRetryDelay between attempts, interruptibly. It
// returns false (and closes fatal) once on exhaustion.
func (w *Worker) connectWithBackoff() bool {
	attempts := w.cfg.ConnectRetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := w.store.Connect(); err == nil {
			w.setConnected(true)
			return true
		} else {
			w.logger.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", attempts).Msg("database connect failed")
		}

		if attempt == attempts {
			break
		}

		select {
		case <-time.After(w.cfg.ConnectRetryDelay):
		case <-w.stop:
			w.logger.Info().Msg("storage worker exiting: shutdown during connect backoff")
			return false
		}
	}

	w.logger.Error().Int("attempts", attempts).Msg("FATAL: exhausted database connect attempts")
	select {
	case <-w.fatal:
	default:
		close(w.fatal)
	}
	return false
}

func (w *Worker) setConnected(v bool) {
	w.mu.Lock()
	w.connected = v
	w.mu.Unlock()
}

func (w *Worker) isConnected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

// Stats reports the retry queue depth and the head item's attempt
// count, exposed to the control server.
type Stats struct {
	RetryQueueLength  int
	RetryHeadAttempts int
}

func (w *Worker) Stats() Stats {
	return Stats{RetryQueueLength: w.retry.len(), RetryHeadAttempts: w.retry.headAttempts()}
}
