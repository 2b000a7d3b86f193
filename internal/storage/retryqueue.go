package storage

import "github.com/sensorgw/gateway/internal/models"

// retryItem is a reading that failed to insert, held for a later
// attempt. Attempts counts how many insert attempts have been made
// against this item while it sat at the queue head (this repository's
// resolution of Open Question #4: the original's unbounded retry
// semantics are kept, but observability is added rather than a second
// eviction policy — see DESIGN.md).
type retryItem struct {
	reading  models.SensorReading
	attempts int
}

// retryQueue is a bounded FIFO of failed writes. On overflow the
// oldest entry is dropped to make room for the newest, exactly as the
// component design specifies ("drop-oldest on overflow, with a
// warning"). It is owned exclusively by the storage worker's own
// goroutine, so it needs no synchronization.
type retryQueue struct {
	items    []retryItem
	capacity int
}

func newRetryQueue(capacity int) *retryQueue {
	return &retryQueue{capacity: capacity}
}

func (q *retryQueue) empty() bool {
	return len(q.items) == 0
}

func (q *retryQueue) len() int {
	return len(q.items)
}

// peekHead returns the item at the head without removing it.
func (q *retryQueue) peekHead() (retryItem, bool) {
	if len(q.items) == 0 {
		return retryItem{}, false
	}
	return q.items[0], true
}

// dequeueHead removes the head item.
func (q *retryQueue) dequeueHead() {
	if len(q.items) == 0 {
		return
	}
	q.items = q.items[1:]
}

// bumpHeadAttempts increments the attempt counter on the head item,
// used when a from-retry insert fails and the item is left in place.
func (q *retryQueue) bumpHeadAttempts() {
	if len(q.items) == 0 {
		return
	}
	q.items[0].attempts++
}

// headAttempts reports the attempt count of the head item, for
// operational visibility via the control server's stats command.
func (q *retryQueue) headAttempts() int {
	if len(q.items) == 0 {
		return 0
	}
	return q.items[0].attempts
}

// enqueue appends reading, dropping the oldest entry first if the
// queue is already at capacity. Returns true if an entry was dropped.
func (q *retryQueue) enqueue(reading models.SensorReading) (dropped bool) {
	if len(q.items) >= q.capacity {
		q.items = q.items[1:]
		dropped = true
	}
	q.items = append(q.items, retryItem{reading: reading})
	return dropped
}
