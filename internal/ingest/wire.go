package ingest

import (
	"encoding/binary"
	"math"
)

// PacketSize is the exact number of bytes a sensor packet occupies on
// the wire: a 2-byte sensor id followed by an 8-byte value.
const PacketSize = 10

// DecodePacket parses a PacketSize-byte packet into a sensor id and a
// value. The sensor id is big-endian per the original wire format; the
// value is big-endian IEEE-754, this repository's resolution of the
// source's native-endian ambiguity (see DESIGN.md) — both this gateway
// and the bundled simulator agree on that encoding.
func DecodePacket(buf []byte) (sensorID uint16, value float64) {
	sensorID = binary.BigEndian.Uint16(buf[0:2])
	bits := binary.BigEndian.Uint64(buf[2:10])
	value = math.Float64frombits(bits)
	return sensorID, value
}

// EncodePacket is the inverse of DecodePacket, used by the bundled
// sensor simulator.
func EncodePacket(sensorID uint16, value float64) []byte {
	buf := make([]byte, PacketSize)
	binary.BigEndian.PutUint16(buf[0:2], sensorID)
	binary.BigEndian.PutUint64(buf[2:10], math.Float64bits(value))
	return buf
}
