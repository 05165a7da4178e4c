package sensord

import "time"

var processStart = time.Now()

// fallbackNanos uses the monotonic reading carried by time.Time. It is only
// comparable within the current process.
func fallbackNanos() int64 {
	return int64(time.Since(processStart))
}
