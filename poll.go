package sensord

import (
	"context"
	"errors"
	"time"
)

// Poll calls GetEvent until a sample is available. ErrDataNotReady is retried
// every interval, any other error is returned immediately.
func Poll(ctx context.Context, s Sensor, interval time.Duration) (*Event, error) {
	for {
		ev, err := s.GetEvent(ctx)
		if err == nil {
			return ev, nil
		}
		if !errors.Is(err, ErrDataNotReady) {
			return nil, err
		}
		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}
