//go:build integration
// +build integration

package main

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sensorgw/gateway/internal/ingest"
)

// TestRunSensor_StreamsPacketsToListener runs a single simulated sensor
// against a bare TCP listener standing in for a gateway and checks that
// decodable packets arrive for the configured sensor id.
//
// Run with: go test -tags=integration -v ./cmd/simulator/
func TestRunSensor_StreamsPacketsToListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start test listener: %v", err)
	}
	defer ln.Close()

	received := make(chan uint16, 8)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, ingest.PacketSize)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
			id, _ := ingest.DecodePacket(buf)
			received <- id
		}
	}()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go runSensor(ctx, ln.Addr().String(), 42, 20*time.Millisecond, 16, logger)

	select {
	case id := <-received:
		if id != 42 {
			t.Errorf("decoded sensor id = %d, want 42", id)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("did not observe a packet from the simulated sensor in time")
	}
}
