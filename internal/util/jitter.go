package util

import (
	"context"
	"math/rand"
	"time"
)

// SleepJitter blocks for a uniformly random duration in [min, max], or
// until the context is cancelled. A non-positive window returns without
// sleeping.
func SleepJitter(ctx context.Context, min, max time.Duration) error {
	d := min
	if max > min {
		d = min + time.Duration(rand.Int63n(int64(max-min)))
	}
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
