package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sensorgw/gateway/internal/gwerr"
)

// DashboardConfig holds the settings for the optional live-monitoring
// HTTP+WebSocket dashboard (internal/dashboard). It is its own section
// of Config (Config.Dashboard), defined in this file: the dashboard is a
// read-only observability surface, not part of the ingestion pipeline,
// and a deployment may disable it entirely; Config.Validate checks it
// only when it is enabled.
type DashboardConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PushInterval time.Duration `yaml:"push_interval"`
}

// ApplyDefaults fills in the dashboard's defaults.
func (dc *DashboardConfig) ApplyDefaults() {
	if dc.Host == "" {
		dc.Host = "localhost"
	}
	if dc.Port == 0 {
		dc.Port = 8081
	}
	if dc.ReadTimeout == 0 {
		dc.ReadTimeout = 60 * time.Second
	}
	if dc.WriteTimeout == 0 {
		dc.WriteTimeout = 10 * time.Second
	}
	if dc.PushInterval == 0 {
		dc.PushInterval = 2 * time.Second
	}
}

// OverrideFromEnv overrides dashboard settings from environment
// variables.
func (dc *DashboardConfig) OverrideFromEnv() {
	if v := os.Getenv("GATEWAY_DASHBOARD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			dc.Port = port
		}
	}
	if v := os.Getenv("GATEWAY_DASHBOARD_HOST"); v != "" {
		dc.Host = v
	}
}

// Validate checks that the dashboard configuration is usable.
func (dc *DashboardConfig) Validate() error {
	if dc.Port < 1 || dc.Port > 65535 {
		return gwerr.New(gwerr.InvalidArgument, "dashboard port must be between 1 and 65535")
	}
	return nil
}

// Addr returns the host:port string to listen on.
func (dc *DashboardConfig) Addr() string {
	return fmt.Sprintf("%s:%d", dc.Host, dc.Port)
}
