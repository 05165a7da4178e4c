//go:build !(linux || darwin)

package sensord

func monotonicNanos() int64 {
	return fallbackNanos()
}
