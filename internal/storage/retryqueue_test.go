package storage

import (
	"testing"

	"github.com/sensorgw/gateway/internal/models"
)

func TestRetryQueue_EnqueuePeekDequeue(t *testing.T) {
	q := newRetryQueue(3)

	q.enqueue(models.NewSensorReading(1, 10, 0))
	q.enqueue(models.NewSensorReading(2, 20, 0))

	head, ok := q.peekHead()
	if !ok || head.reading.SensorID != 1 {
		t.Fatalf("peekHead = %+v, %v, want sensor 1", head, ok)
	}

	q.dequeueHead()
	head, ok = q.peekHead()
	if !ok || head.reading.SensorID != 2 {
		t.Fatalf("peekHead after dequeue = %+v, %v, want sensor 2", head, ok)
	}
}

func TestRetryQueue_DropsOldestOnOverflow(t *testing.T) {
	q := newRetryQueue(2)

	q.enqueue(models.NewSensorReading(1, 0, 0))
	q.enqueue(models.NewSensorReading(2, 0, 0))
	dropped := q.enqueue(models.NewSensorReading(3, 0, 0))

	if !dropped {
		t.Fatal("expected enqueue to report a drop at capacity")
	}
	if q.len() != 2 {
		t.Fatalf("len = %d, want 2", q.len())
	}
	head, _ := q.peekHead()
	if head.reading.SensorID != 2 {
		t.Errorf("head sensor = %d, want 2 (sensor 1 should have been dropped)", head.reading.SensorID)
	}
}

func TestRetryQueue_BumpHeadAttempts(t *testing.T) {
	q := newRetryQueue(2)
	q.enqueue(models.NewSensorReading(1, 0, 0))

	q.bumpHeadAttempts()
	q.bumpHeadAttempts()

	head, _ := q.peekHead()
	if head.attempts != 2 {
		t.Errorf("attempts = %d, want 2", head.attempts)
	}
}

func TestRetryQueue_EmptyQueueOperationsAreNoops(t *testing.T) {
	q := newRetryQueue(2)

	if _, ok := q.peekHead(); ok {
		t.Error("peekHead on empty queue should report ok=false")
	}
	q.dequeueHead()
	q.bumpHeadAttempts()
	if !q.empty() {
		t.Error("expected queue to remain empty")
	}
}
