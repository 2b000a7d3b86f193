package models

import "time"

// DashboardSnapshot is the JSON payload pushed to live dashboard
// clients over the websocket feed (see internal/dashboard). It is a
// read-only observability view over the connection manager's registry
// and the analytics worker's running statistics; it never touches the
// ingestion path.
type DashboardSnapshot struct {
	GeneratedAt       time.Time         `json:"generated_at"`
	ActiveConnections int               `json:"active_connections"`
	Sensors           []SensorSnapshot  `json:"sensors"`
	Resource          *ResourceSnapshot `json:"resource,omitempty"`
}

// SensorSnapshot describes one sensor's current running average and
// alert state for display.
type SensorSnapshot struct {
	SensorID uint16  `json:"sensor_id"`
	RoomID   *int32  `json:"room_id,omitempty"`
	Average  float64 `json:"average"`
	Count    uint64  `json:"count"`
	State    string  `json:"state"`
}

// ResourceSnapshot is the resource sampler's (internal/sysmon) latest
// CPU and memory reading; it lives in models so the dashboard can send
// it as JSON without importing sysmon.
type ResourceSnapshot struct {
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
}
