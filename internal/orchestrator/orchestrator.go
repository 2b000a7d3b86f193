// Package orchestrator implements the top-level process lifecycle
// (C6): loading configuration, wiring every component together,
// running until a termination signal or a fatal condition arrives, and
// shutting down in dependency order.
package orchestrator

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sensorgw/gateway/internal/analytics"
	"github.com/sensorgw/gateway/internal/buffer"
	"github.com/sensorgw/gateway/internal/config"
	"github.com/sensorgw/gateway/internal/control"
	"github.com/sensorgw/gateway/internal/dashboard"
	"github.com/sensorgw/gateway/internal/history"
	"github.com/sensorgw/gateway/internal/ingest"
	"github.com/sensorgw/gateway/internal/logging"
	"github.com/sensorgw/gateway/internal/models"
	"github.com/sensorgw/gateway/internal/storage"
	"github.com/sensorgw/gateway/internal/sysmon"
)

// historyWindowPerSensor bounds how many recent readings the dashboard's
// history endpoint retains for each sensor.
const historyWindowPerSensor = 200

// State is the orchestrator's lifecycle state machine:
// Init -> Running -> Draining -> Stopped.
type State int

const (
	StateInit State = iota
	StateRunning
	StateDraining
	StateStopped
)

// Orchestrator owns every long-running component and coordinates
// startup and shutdown order.
type Orchestrator struct {
	cfg    *config.Config
	logger logging.Logger

	mu    sync.Mutex
	state State

	analyticsBuf *buffer.StagingBuffer
	storageBuf   *buffer.StagingBuffer
	historyBuf   *buffer.StagingBuffer

	ingestSrv    *ingest.Server
	analytics    *analytics.Worker
	storageWkr   *storage.Worker
	controlSrv   *control.Server
	sampler      *sysmon.Sampler
	dashSrv      *dashboard.Server
	historyStore *history.Store

	wg sync.WaitGroup
}

// New builds an orchestrator from cfg. It does not start anything;
// call Run for that.
func New(cfg *config.Config, logger logging.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, logger: logger.Component("orchestrator"), state: StateInit}
}

// Run performs the full startup sequence, blocks until a termination
// signal (or a fatal condition from the storage worker) arrives, then
// shuts everything down in reverse dependency order. It returns the
// process exit code: 0 for a clean signal-driven shutdown, nonzero for
// initialization failure or fatal storage exhaustion.
func (o *Orchestrator) Run() int {
	rooms, err := models.LoadRoomMap(o.cfg.Server.RoomMapPath, func(msg string) {
		o.logger.Warn().Msg(msg)
	})
	if err != nil {
		o.logger.Error().Err(err).Msg("failed to load room map")
		return 1
	}

	o.analyticsBuf = buffer.New(o.cfg.Buffer.Size)
	o.storageBuf = buffer.New(o.cfg.Buffer.Size)
	o.historyBuf = buffer.New(o.cfg.Buffer.Size)
	o.historyStore = history.NewStore(historyWindowPerSensor)

	o.ingestSrv = ingest.NewServer(ingest.Config{
		MaxConnections:      o.cfg.Server.MaxConnections,
		MaxConnectionsPerIP: o.cfg.Server.MaxConnectionsPerIP,
		SensorTimeout:       o.cfg.Server.SensorTimeout,
	}, []*buffer.StagingBuffer{o.analyticsBuf, o.storageBuf, o.historyBuf}, o.logger)

	if err := o.ingestSrv.Listen(o.cfg.Server.Port); err != nil {
		o.logger.Error().Err(err).Msg("failed to bind listener")
		return 1
	}

	o.analytics = analytics.NewWorker(o.analyticsBuf, analytics.Thresholds{
		TooColdBelow: o.cfg.Alerting.TooColdBelow,
		TooHotAbove:  o.cfg.Alerting.TooHotAbove,
	}, rooms, o.logger)

	store := storage.NewSQLiteStore(o.cfg.Storage.DSN, o.cfg.Storage.TableName, o.logger.Component("storage").Logger)
	o.storageWkr = storage.NewWorker(store, o.storageBuf, storage.Config{
		ConnectRetryAttempts: o.cfg.Storage.ConnectRetryAttempts,
		ConnectRetryDelay:    o.cfg.Storage.ConnectRetryDelay,
		RetryQueueCapacity:   o.cfg.Storage.RetryQueueCapacity,
	}, o.logger)

	o.setState(StateRunning)

	o.wg.Add(4)
	go func() { defer o.wg.Done(); o.ingestSrv.Run() }()
	go func() { defer o.wg.Done(); o.analytics.Run() }()
	go func() { defer o.wg.Done(); o.storageWkr.Run() }()
	go func() { defer o.wg.Done(); o.runHistoryConsumer() }()

	if o.cfg.Control.Enabled {
		o.controlSrv = control.NewServer(o.cfg.Control.SocketPath, o.controlSource(), o.logger)
		if err := o.controlSrv.Listen(); err != nil {
			o.logger.Warn().Err(err).Msg("failed to start control server, continuing without it")
			o.controlSrv = nil
		} else {
			o.wg.Add(1)
			go func() { defer o.wg.Done(); o.controlSrv.Run() }()
		}
	}

	o.sampler = sysmon.NewSampler(time.Second)
	o.wg.Add(1)
	go func() { defer o.wg.Done(); o.sampler.Run() }()

	if o.cfg.Dashboard.Enabled {
		o.dashSrv = dashboard.NewServer(dashboard.Config{
			Addr:         o.cfg.Dashboard.Addr(),
			ReadTimeout:  o.cfg.Dashboard.ReadTimeout,
			WriteTimeout: o.cfg.Dashboard.WriteTimeout,
			PushInterval: o.cfg.Dashboard.PushInterval,
		}, o.dashboardSnapshot, o.historyStore.GetLatest, o.logger)
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.dashSrv.Run(); err != nil {
				o.logger.Warn().Err(err).Msg("dashboard server exited with error")
			}
		}()
	}

	exitCode := o.waitForShutdown()
	o.shutdown()
	o.setState(StateStopped)
	return exitCode
}

// waitForShutdown blocks until SIGINT/SIGTERM or the storage worker's
// fatal channel fires, returning the exit code that shutdown should
// report.
func (o *Orchestrator) waitForShutdown() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	select {
	case <-ctx.Done():
		o.logger.Info().Msg("received termination signal, shutting down")
		return 0
	case <-o.storageWkr.Fatal():
		o.logger.Error().Msg("FATAL: storage worker exhausted reconnect attempts, shutting down")
		return 1
	}
}

// shutdown stops every component in reverse dependency order: the
// observability collaborators first (no data-path dependency), then
// the listener (stops new data entering the staging buffers), then the
// buffers (drains the consumers), then the consumers themselves.
func (o *Orchestrator) shutdown() {
	o.setState(StateDraining)

	if o.dashSrv != nil {
		o.dashSrv.Stop()
	}
	if o.sampler != nil {
		o.sampler.Stop()
	}
	if o.controlSrv != nil {
		o.controlSrv.Stop()
	}

	o.ingestSrv.Stop()
	o.analyticsBuf.SignalShutdown()
	o.storageBuf.SignalShutdown()
	o.historyBuf.SignalShutdown()
	o.storageWkr.Stop()

	o.wg.Wait()
}

// runHistoryConsumer drains the history staging buffer into the
// in-memory recent-readings store the dashboard queries for per-sensor
// history, until the buffer is shut down.
func (o *Orchestrator) runHistoryConsumer() {
	for {
		reading, err := o.historyBuf.Remove()
		if err != nil {
			return
		}
		o.historyStore.Add(reading)
	}
}

// setState transitions state. Entering Draining is idempotent: a
// second termination signal must be tolerated without re-running
// shutdown logic from Run, since waitForShutdown only ever fires once
// per process.
func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
}

// State reports the orchestrator's current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) controlSource() control.Source {
	return control.Source{
		Connections: func() control.ConnectionStats {
			s := o.ingestSrv.Stats()
			return control.ConnectionStats{ActiveConnections: s.ActiveConnections, PerIP: s.PerIP}
		},
		Sensors: func() []control.SensorSnapshot {
			snaps := o.analytics.Snapshot()
			out := make([]control.SensorSnapshot, 0, len(snaps))
			for _, s := range snaps {
				out = append(out, control.SensorSnapshot{SensorID: s.SensorID, Average: s.Average, Count: s.Count, State: s.State})
			}
			return out
		},
		Resource: func() control.ResourceSample {
			r := o.sampler.Sample()
			return control.ResourceSample{CPUPercent: r.CPUPercent, RSSBytes: r.RSSBytes}
		},
		Storage: func() control.StorageStats {
			s := o.storageWkr.Stats()
			return control.StorageStats{RetryQueueLength: s.RetryQueueLength, RetryHeadAttempts: s.RetryHeadAttempts}
		},
	}
}

func (o *Orchestrator) dashboardSnapshot() models.DashboardSnapshot {
	res := o.sampler.Sample()
	return models.DashboardSnapshot{
		ActiveConnections: o.ingestSrv.ActiveConnectionCount(),
		Sensors:           o.analytics.Snapshot(),
		Resource:          &res,
	}
}
