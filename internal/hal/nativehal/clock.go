package nativehal

import "time"

// wallClockMs is identical on every platform: milliseconds since the Unix
// epoch. Only the monotonic reading (used for GetTime) needs a
// platform-specific path.
func wallClockMs() int64 {
	return time.Now().UnixMilli()
}
