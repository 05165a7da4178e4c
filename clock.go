package sensord

// Clock is a monotonic nanosecond time source.
type Clock interface {
	Nanotime() int64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() int64

func (f ClockFunc) Nanotime() int64 {
	return f()
}

// MonotonicClock reads the system monotonic clock.
var MonotonicClock Clock = ClockFunc(monotonicNanos)
