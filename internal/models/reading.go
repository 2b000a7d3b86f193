package models

import "fmt"

// InvalidSensorID is the reserved sensor identifier meaning "no sensor".
const InvalidSensorID uint16 = 0

// SensorReading is a single temperature sample as it flows from the
// connection manager through the staging buffers to the analytics and
// storage workers. It is immutable once constructed; each consumer
// receives its own copy.
type SensorReading struct {
	SensorID  uint16
	Value     float64
	Timestamp int64
}

// NewSensorReading builds a reading carrying the given timestamp. The
// connection manager passes the gateway's own clock at read time, not
// the sensor's — the gateway is the sole authority on Timestamp.
func NewSensorReading(sensorID uint16, value float64, timestamp int64) SensorReading {
	return SensorReading{SensorID: sensorID, Value: value, Timestamp: timestamp}
}

func (r SensorReading) String() string {
	return fmt.Sprintf("SensorReading{id=%d value=%.2f ts=%d}", r.SensorID, r.Value, r.Timestamp)
}
