package models

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// RoomMap is a static, load-once lookup from sensor identifier to room
// identifier. It is immutable after Load and safe for concurrent reads
// from multiple goroutines without further synchronization.
type RoomMap struct {
	bySensor map[uint16]int32
}

// LoadRoomMap reads the room/sensor mapping file. Grammar, per line:
// "<room_id> , <sensor_id>". Blank lines and lines whose first
// non-whitespace character is '#' are skipped. A malformed line is
// skipped with a warning rather than aborting the load. A missing file
// is not fatal: it yields an empty map, and callers should treat that
// the same as "no map available" (alerts fall back to reporting the
// sensor id instead of a room id).
func LoadRoomMap(path string, warn func(string)) (*RoomMap, error) {
	rm := &RoomMap{bySensor: make(map[uint16]int32)}

	f, err := os.Open(path)
	if err != nil {
		if warn != nil {
			warn(fmt.Sprintf("room map %q not available: %v", path, err))
		}
		return rm, nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		roomID, sensorID, ok := parseRoomMapLine(line)
		if !ok {
			if warn != nil {
				warn(fmt.Sprintf("room map %q: skipping malformed line %d: %q", path, lineNo, line))
			}
			continue
		}
		rm.bySensor[sensorID] = roomID
	}
	if err := scanner.Err(); err != nil {
		return rm, fmt.Errorf("reading room map %q: %w", path, err)
	}
	return rm, nil
}

func parseRoomMapLine(line string) (roomID int32, sensorID uint16, ok bool) {
	parts := strings.SplitN(line, ",", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	room, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 32)
	if err != nil {
		return 0, 0, false
	}
	sensor, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 32)
	if err != nil || sensor < 0 || sensor > 65535 {
		return 0, 0, false
	}
	return int32(room), uint16(sensor), true
}

// RoomID looks up the room for a sensor. The second return value is
// false when the sensor has no recorded room (including when rm is nil
// or the map failed to load).
func (rm *RoomMap) RoomID(sensorID uint16) (int32, bool) {
	if rm == nil {
		return 0, false
	}
	id, ok := rm.bySensor[sensorID]
	return id, ok
}

// Len reports how many sensor-to-room entries were loaded.
func (rm *RoomMap) Len() int {
	if rm == nil {
		return 0
	}
	return len(rm.bySensor)
}
