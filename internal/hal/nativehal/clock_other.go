//go:build !linux

package nativehal

import "time"

// clockBase anchors the fallback monotonic reading at process start.
var clockBase = time.Now()

// monotonicNanos falls back to the Go runtime's monotonic clock reading on
// non-Linux hosts, where CLOCK_MONOTONIC isn't reachable via x/sys/unix the
// same way. It counts nanoseconds since process start, not since boot.
func monotonicNanos() int64 {
	return int64(time.Since(clockBase))
}
