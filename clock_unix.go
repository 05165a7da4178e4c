//go:build linux || darwin

package sensord

import "golang.org/x/sys/unix"

// monotonicNanos returns CLOCK_MONOTONIC so timestamps line up with other
// processes on the same host.
func monotonicNanos() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return fallbackNanos()
	}
	return ts.Nano()
}
