// Package buffer implements the bounded single-producer/single-consumer
// staging buffer that decouples the connection manager from each of its
// downstream consumers (analytics, storage, and the dashboard's history
// store).
package buffer

import (
	"sync"

	"github.com/sensorgw/gateway/internal/gwerr"
	"github.com/sensorgw/gateway/internal/models"
)

// ErrShutdown is returned by Insert and Remove once SignalShutdown has
// been called and, for Remove, once all items inserted before shutdown
// have been drained. It carries gwerr.BufferShutdown so callers can
// errors.As it into a *gwerr.GatewayError for dispatch.
var ErrShutdown error = gwerr.New(gwerr.BufferShutdown, "staging buffer: shutdown")

// StagingBuffer is a bounded circular FIFO of models.SensorReading. A
// single instance is meant to be shared between exactly one producer
// goroutine and one consumer goroutine; the pipeline creates one
// instance per consumer (analytics worker, storage worker, history
// store) so that every reading reaches each of them.
type StagingBuffer struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	items    []models.SensorReading
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int

	shutdown bool
}

// New creates a StagingBuffer with the given capacity (B in the spec;
// the source default is 15).
func New(capacity int) *StagingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	b := &StagingBuffer{
		items:    make([]models.SensorReading, capacity),
		capacity: capacity,
	}
	b.notFull = sync.NewCond(&b.mu)
	b.notEmpty = sync.NewCond(&b.mu)
	return b
}

// Insert enqueues a reading, blocking while the buffer is full. It
// returns ErrShutdown without blocking (and without enqueuing) once
// shutdown has been asserted.
func (b *StagingBuffer) Insert(r models.SensorReading) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.shutdown {
		return ErrShutdown
	}
	for b.count == b.capacity && !b.shutdown {
		b.notFull.Wait()
	}
	if b.shutdown {
		return ErrShutdown
	}

	b.items[b.head] = r
	b.head = (b.head + 1) % b.capacity
	b.count++
	b.notEmpty.Signal()
	return nil
}

// Remove dequeues the oldest reading, blocking while the buffer is
// empty. Once shutdown has been asserted, Remove still drains any
// readings inserted before the shutdown; only once the buffer is both
// shut down and empty does it return ErrShutdown.
func (b *StagingBuffer) Remove() (models.SensorReading, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.shutdown {
		b.notEmpty.Wait()
	}
	if b.count == 0 && b.shutdown {
		return models.SensorReading{}, ErrShutdown
	}

	r := b.items[b.tail]
	b.tail = (b.tail + 1) % b.capacity
	b.count--
	b.notFull.Signal()
	return r, nil
}

// SignalShutdown marks the buffer as shut down and wakes every waiter
// on both conditions. It is idempotent: calling it more than once has
// no additional effect. After this call, Insert always fails
// immediately; Remove continues to drain whatever was already queued.
func (b *StagingBuffer) SignalShutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.shutdown {
		return
	}
	b.shutdown = true
	b.notFull.Broadcast()
	b.notEmpty.Broadcast()
}

// Len reports the number of readings currently queued. Intended for
// diagnostics and tests; callers must not rely on it for correctness
// since it can change immediately after the call returns.
func (b *StagingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Capacity returns B, the fixed buffer capacity.
func (b *StagingBuffer) Capacity() int {
	return b.capacity
}
