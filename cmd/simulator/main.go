// Command simulator dials a sensor gateway and streams synthetic
// readings for one or more simulated sensors, grounded on the original
// project's test/sensor_sim.c harness.
package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sensorgw/gateway/internal/client"
	"github.com/sensorgw/gateway/internal/models"
)

const (
	baseTemp        = 20.0
	tempFluctuation = 5.0
)

func main() {
	addr := flag.String("addr", "127.0.0.1", "gateway host or IP")
	port := flag.Int("port", 9000, "gateway TCP port")
	sensors := flag.Int("sensors", 1, "number of simulated sensors")
	startID := flag.Int("start-id", 1, "first simulated sensor id (sequential ids follow)")
	interval := flag.Duration("interval", 500*time.Millisecond, "interval between readings per sensor")
	bufferSize := flag.Int("buffer", 64, "per-sensor outgoing buffer capacity")
	flag.Parse()

	if *sensors < 1 {
		log.Fatalf("sensors must be >= 1")
	}
	if *startID < 1 || *startID+*sensors-1 > 65535 {
		log.Fatalf("sensor ids must fall within 1-65535")
	}
	if *interval < 10*time.Millisecond {
		log.Fatalf("interval must be >= 10ms")
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	target := net.JoinHostPort(*addr, strconv.Itoa(*port))

	var wg sync.WaitGroup
	for i := 0; i < *sensors; i++ {
		id := uint16(*startID + i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			runSensor(ctx, target, id, *interval, *bufferSize, logger)
		}()
	}
	wg.Wait()
}

// runSensor generates readings for one sensor into an outgoing buffer
// and hands the buffer to a connection manager that drains it over TCP,
// reconnecting with backoff whenever the gateway link drops.
func runSensor(ctx context.Context, target string, sensorID uint16, interval time.Duration, bufferSize int, logger zerolog.Logger) {
	sensorLogger := logger.With().Uint16("sensor_id", sensorID).Logger()
	buffer := client.NewReadingBuffer(bufferSize)

	conn := client.NewConnection(client.ConnectionConfig{
		Target:               target,
		ReconnectInterval:    time.Second,
		MaxReconnectInterval: 30 * time.Second,
		DialTimeout:          5 * time.Second,
	}, sensorID, buffer, sensorLogger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		conn.Run(ctx)
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			value := generateTemperature()
			reading := models.NewSensorReading(sensorID, value, 0)
			if dropped := buffer.Push(reading); dropped {
				sensorLogger.Warn().Msg("outgoing buffer full, reading dropped")
			}
		}
	}

	wg.Wait()
	sensorLogger.Info().Msg("sensor shut down")
}

func generateTemperature() float64 {
	return baseTemp + (rand.Float64()*2-1)*tempFluctuation
}
