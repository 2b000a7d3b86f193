package sysmon

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// clockTicksPerSecond is the kernel's USER_HZ, effectively always 100
// on Linux regardless of architecture.
const clockTicksPerSecond = 100

// parseProcStatCPUTime extracts utime+stime (fields 14 and 15, 1-indexed)
// from the contents of /proc/self/stat. The comm field (2nd field) is
// parenthesized and may itself contain spaces or parentheses, so
// splitting starts after the last ')' rather than by naive whitespace
// splitting of the whole line.
func parseProcStatCPUTime(data []byte) (time.Duration, bool) {
	closeParen := bytes.LastIndexByte(data, ')')
	if closeParen < 0 || closeParen+2 > len(data) {
		return 0, false
	}
	fields := strings.Fields(string(data[closeParen+2:]))
	// After the comm field, state is field index 0 here; utime is
	// original field 14, i.e. index 14-3=11 in this truncated slice.
	const utimeIndex = 11
	const stimeIndex = 12
	if len(fields) <= stimeIndex {
		return 0, false
	}
	utime, err1 := strconv.ParseInt(fields[utimeIndex], 10, 64)
	stime, err2 := strconv.ParseInt(fields[stimeIndex], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, false
	}
	ticks := utime + stime
	seconds := float64(ticks) / clockTicksPerSecond
	return time.Duration(seconds * float64(time.Second)), true
}
