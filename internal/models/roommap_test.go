package models

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempMap(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "room_sensor.map")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write temp map: %v", err)
	}
	return path
}

func TestLoadRoomMap_Basic(t *testing.T) {
	path := writeTempMap(t, "# comment\n1 , 7\n2,8\n\n3 , 9\n")

	rm, err := LoadRoomMap(path, nil)
	if err != nil {
		t.Fatalf("LoadRoomMap returned error: %v", err)
	}
	if rm.Len() != 3 {
		t.Errorf("Len() = %d, want 3", rm.Len())
	}

	if room, ok := rm.RoomID(7); !ok || room != 1 {
		t.Errorf("RoomID(7) = (%v, %v), want (1, true)", room, ok)
	}
	if room, ok := rm.RoomID(8); !ok || room != 2 {
		t.Errorf("RoomID(8) = (%v, %v), want (2, true)", room, ok)
	}
	if _, ok := rm.RoomID(999); ok {
		t.Error("RoomID(999) should not be found")
	}
}

func TestLoadRoomMap_SkipsMalformedLines(t *testing.T) {
	var warnings []string
	path := writeTempMap(t, "not,a,valid,line\n1 , 7\ngarbage\n2 , 70000\n")

	rm, err := LoadRoomMap(path, func(msg string) { warnings = append(warnings, msg) })
	if err != nil {
		t.Fatalf("LoadRoomMap returned error: %v", err)
	}
	if rm.Len() != 1 {
		t.Errorf("Len() = %d, want 1", rm.Len())
	}
	if len(warnings) == 0 {
		t.Error("expected warnings for malformed lines")
	}
}

func TestLoadRoomMap_MissingFile(t *testing.T) {
	var warned bool
	rm, err := LoadRoomMap(filepath.Join(t.TempDir(), "does-not-exist.map"), func(string) { warned = true })
	if err != nil {
		t.Fatalf("LoadRoomMap returned error: %v", err)
	}
	if rm.Len() != 0 {
		t.Errorf("Len() = %d, want 0 for missing file", rm.Len())
	}
	if !warned {
		t.Error("expected a warning callback on missing file")
	}
	if _, ok := rm.RoomID(1); ok {
		t.Error("RoomID should not resolve on empty map")
	}
}

func TestRoomMap_NilSafe(t *testing.T) {
	var rm *RoomMap
	if _, ok := rm.RoomID(1); ok {
		t.Error("nil RoomMap.RoomID should return false")
	}
	if rm.Len() != 0 {
		t.Error("nil RoomMap.Len should return 0")
	}
}
