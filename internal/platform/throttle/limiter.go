package throttle

import (
	"context"
	"sync"
	"time"
)

// Release marks the end of a throttled call. Calling it more than once is a no-op.
type Release func()

// Limiter spaces calls to a single upstream provider. One Limiter is shared by
// every run in the process; calls are serialized and each one starts no sooner
// than Interval after both the previous start and the previous release.
type Limiter struct {
	interval time.Duration
	slot     chan struct{}

	mu        sync.Mutex
	lastStart time.Time
	lastDone  time.Time

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	onWait func(d time.Duration)
}

type Option func(*Limiter)

// WithClock swaps the time source and sleeper, for tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

// WithWaitObserver reports how long each caller was held back.
func WithWaitObserver(fn func(d time.Duration)) Option {
	return func(l *Limiter) { l.onWait = fn }
}

func New(interval time.Duration, opts ...Option) *Limiter {
	if interval < 0 {
		interval = 0
	}
	l := &Limiter{
		interval: interval,
		slot:     make(chan struct{}, 1),
		now:      time.Now,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Interval() time.Duration { return l.interval }

// Throttle blocks until the caller may issue its call. The returned Release
// must be invoked once the call has returned, success or not.
func (l *Limiter) Throttle(ctx context.Context) (Release, error) {
	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	l.mu.Lock()
	ready := l.lastStart
	if l.lastDone.After(ready) {
		ready = l.lastDone
	}
	var wait time.Duration
	if !ready.IsZero() {
		wait = ready.Add(l.interval).Sub(l.now())
	}
	l.mu.Unlock()

	if wait > 0 {
		if err := l.sleep(ctx, wait); err != nil {
			<-l.slot
			return nil, err
		}
	}
	if l.onWait != nil {
		if wait < 0 {
			wait = 0
		}
		l.onWait(wait)
	}

	l.mu.Lock()
	l.lastStart = l.now()
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.lastDone = l.now()
			l.mu.Unlock()
			<-l.slot
		})
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
