// Package loop provides the single serialized execution context that owns
// session state. Renderers enter it with Do, timers and background work
// re-enter it with Post.
package loop

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrStopped = errors.New("loop stopped")

type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func New() *Loop {
	return &Loop{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

// Run executes posted functions one at a time until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.stopped) })

	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			fn()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// Post enqueues fn without waiting. It never blocks, so it is safe to call
// from the loop itself.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do runs fn on the loop and waits for it to return. Calling Do from the
// loop goroutine deadlocks.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})

	select {
	case <-done:
		return nil
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AfterFunc posts fn to the loop once d has elapsed. The returned stop
// function reports whether it prevented the post.
func (l *Loop) AfterFunc(d time.Duration, fn func()) func() bool {
	timer := time.AfterFunc(d, func() {
		l.Post(fn)
	})
	return timer.Stop
}

// Go runs blocking work off the loop.
func (l *Loop) Go(fn func()) {
	go fn()
}
