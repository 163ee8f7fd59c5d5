//go:build linux

package nativehal

import "golang.org/x/sys/unix"

// monotonicNanos reads CLOCK_MONOTONIC directly via unix.ClockGettime
// rather than time.Now().UnixNano(), which is wall-clock and can jump
// backwards on NTP correction — the kernel's GetTime syscall promises
// monotonic nanoseconds since boot.
func monotonicNanos() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return ts.Sec*1e9 + ts.Nsec
}
