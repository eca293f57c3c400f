package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type Lock interface {
	Lock(ctx context.Context) (func(), error)
}

type lock struct {
	lck      *sync.Mutex
	duration time.Duration
	last     time.Time
}

// New creates a new rate limit lock. A zero duration disables waiting.
func New(d time.Duration) Lock {
	return &lock{
		lck:      &sync.Mutex{},
		duration: d,
	}
}

// Lock waits until the given duration has passed since the previous lock was
// released and returns a function that releases the lock.
// The wait is aborted if the context is done.
func (l *lock) Lock(ctx context.Context) (func(), error) {
	l.lck.Lock()
	if !l.last.IsZero() && l.duration > 0 {
		// Apply a factor between 0.85 and 1.15 to the duration
		d := time.Duration(float64(l.duration) * (0.85 + rand.Float64()*0.3))
		if wait := time.Until(l.last.Add(d)); wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				l.lck.Unlock()
				return nil, ctx.Err()
			case <-t.C:
			}
		}
	}
	return func() {
		l.last = time.Now()
		l.lck.Unlock()
	}, nil
}
