// Package sysmon implements the resource sampler (C8): a ticker-driven
// collector of process CPU and memory usage, exposed to the control
// server and dashboard.
package sysmon

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/sensorgw/gateway/internal/models"
)

// Sampler periodically snapshots process resource usage.
type Sampler struct {
	interval time.Duration
	stop     chan struct{}
	stopped  sync.Once
	wg       sync.WaitGroup

	mu       sync.RWMutex
	latest   models.ResourceSnapshot
	lastStat cpuTimes
}

type cpuTimes struct {
	total   time.Duration
	sampled time.Time
}

// NewSampler builds a sampler that refreshes its snapshot every
// interval once Run is called.
func NewSampler(interval time.Duration) *Sampler {
	return &Sampler{interval: interval, stop: make(chan struct{})}
}

// Run blocks, refreshing the snapshot every interval, until Stop is
// called.
func (s *Sampler) Run() {
	s.wg.Add(1)
	defer s.wg.Done()

	s.refresh()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.refresh()
		case <-s.stop:
			return
		}
	}
}

// Stop halts the sampling loop. Safe to call more than once.
func (s *Sampler) Stop() {
	s.stopped.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// Sample returns the most recently collected snapshot.
func (s *Sampler) Sample() models.ResourceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// refresh reads runtime memory stats for RSS (approximated by
// HeapSys+StackSys, since the standard library exposes no direct RSS
// counter without reading /proc) and process CPU time from
// /proc/self/stat, dividing the delta in CPU time by the delta in wall
// time to get a percentage. /proc/self/stat is Linux-specific; on other
// platforms cpuPercent simply reports 0, which is documented behavior
// rather than an error.
func (s *Sampler) refresh() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	now := time.Now()
	cpu, ok := readProcessCPUTime()
	var percent float64
	if ok {
		s.mu.Lock()
		if !s.lastStat.sampled.IsZero() {
			wall := now.Sub(s.lastStat.sampled).Seconds()
			if wall > 0 {
				percent = 100 * (cpu - s.lastStat.total).Seconds() / wall
			}
		}
		s.lastStat = cpuTimes{total: cpu, sampled: now}
		s.mu.Unlock()
	}

	snap := models.ResourceSnapshot{
		CPUPercent: percent,
		RSSBytes:   mem.HeapSys + mem.StackSys,
	}

	s.mu.Lock()
	s.latest = snap
	s.mu.Unlock()
}

// readProcessCPUTime reads this process's accumulated user+system CPU
// time from /proc/self/stat. Returns ok=false on platforms without a
// /proc filesystem.
func readProcessCPUTime() (time.Duration, bool) {
	data, err := os.ReadFile("/proc/self/stat")
	if err != nil {
		return 0, false
	}
	return parseProcStatCPUTime(data)
}
