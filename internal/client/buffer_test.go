package client

import (
	"sync"
	"testing"

	"github.com/sensorgw/gateway/internal/models"
)

func reading(value float64) models.SensorReading {
	return models.NewSensorReading(1, value, 0)
}

func TestNewReadingBuffer(t *testing.T) {
	buf := NewReadingBuffer(100)

	if buf.Len() != 0 {
		t.Errorf("Len = %d, want 0", buf.Len())
	}
}

func TestBuffer_PushAndLen(t *testing.T) {
	buf := NewReadingBuffer(10)

	if dropped := buf.Push(reading(22.5)); dropped {
		t.Error("Push on an empty buffer should not report a drop")
	}
	if buf.Len() != 1 {
		t.Errorf("Len = %d, want 1", buf.Len())
	}
}

func TestBuffer_PopBatch(t *testing.T) {
	buf := NewReadingBuffer(10)

	for i := 0; i < 5; i++ {
		buf.Push(reading(float64(20 + i)))
	}

	readings := buf.PopBatch(3)
	if len(readings) != 3 {
		t.Errorf("PopBatch(3) returned %d readings, want 3", len(readings))
	}
	if buf.Len() != 2 {
		t.Errorf("Len after pop = %d, want 2", buf.Len())
	}
	if readings[0].Value != 20.0 {
		t.Errorf("first popped value = %v, want 20.0", readings[0].Value)
	}
	if readings[2].Value != 22.0 {
		t.Errorf("third popped value = %v, want 22.0", readings[2].Value)
	}
}

func TestBuffer_PopBatch_MoreThanAvailable(t *testing.T) {
	buf := NewReadingBuffer(10)

	for i := 0; i < 3; i++ {
		buf.Push(reading(22.0))
	}

	readings := buf.PopBatch(10)
	if len(readings) != 3 {
		t.Errorf("PopBatch(10) with 3 available returned %d, want 3", len(readings))
	}
	if buf.Len() != 0 {
		t.Error("buffer should be empty after popping all")
	}
}

func TestBuffer_PopBatch_Empty(t *testing.T) {
	buf := NewReadingBuffer(10)

	if readings := buf.PopBatch(5); readings != nil {
		t.Errorf("PopBatch on an empty buffer = %v, want nil", readings)
	}
}

func TestBuffer_DropsOldestOnOverflow(t *testing.T) {
	buf := NewReadingBuffer(3)

	for i := 0; i < 3; i++ {
		buf.Push(reading(float64(20 + i)))
	}

	if dropped := buf.Push(reading(99.0)); !dropped {
		t.Error("Push on a full buffer should report a drop")
	}
	if buf.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", buf.Dropped())
	}

	readings := buf.PopBatch(3)
	if readings[0].Value != 21.0 {
		t.Errorf("after drop-oldest, first value = %v, want 21.0", readings[0].Value)
	}
	if readings[2].Value != 99.0 {
		t.Errorf("after drop-oldest, last value = %v, want 99.0", readings[2].Value)
	}
}

func TestBuffer_ThreadSafety(t *testing.T) {
	buf := NewReadingBuffer(1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buf.Push(reading(float64(id*100 + j)))
			}
		}(i)
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				buf.PopBatch(10)
			}
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buf.Len()
				buf.Dropped()
			}
		}()
	}
	wg.Wait()
}

func TestBuffer_FIFO_Order(t *testing.T) {
	buf := NewReadingBuffer(100)

	for i := 0; i < 10; i++ {
		buf.Push(reading(float64(i)))
	}

	readings := buf.PopBatch(10)
	for i, r := range readings {
		if r.Value != float64(i) {
			t.Errorf("reading %d has value %v, want %v (FIFO order broken)", i, r.Value, float64(i))
		}
	}
}

func BenchmarkBuffer_Push(b *testing.B) {
	buf := NewReadingBuffer(10000)
	r := reading(22.5)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Push(r)
	}
}

func BenchmarkBuffer_PopBatch(b *testing.B) {
	buf := NewReadingBuffer(10000)
	for i := 0; i < 10000; i++ {
		buf.Push(reading(22.5))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.PopBatch(100)
	}
}
