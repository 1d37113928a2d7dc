// Package looptest provides a deterministic stand-in for loop.Loop. Every
// callback runs on the test goroutine; time only moves on Advance.
package looptest

import (
	"sort"
	"time"
)

type timer struct {
	at      time.Duration
	seq     int
	fn      func()
	stopped bool
}

type Manual struct {
	now        time.Duration
	seq        int
	queue      []func()
	background []func()
	timers     []*timer
}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Post(fn func()) {
	m.queue = append(m.queue, fn)
}

// Go defers fn until the next Drain so tests can interleave operations with
// in-flight background work.
func (m *Manual) Go(fn func()) {
	m.background = append(m.background, fn)
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) func() bool {
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &timer{at: m.now + d, seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return func() bool {
		if t.stopped {
			return false
		}
		t.stopped = true
		return true
	}
}

// Drain runs background work and posted functions until both are empty.
func (m *Manual) Drain() {
	for len(m.background) > 0 || len(m.queue) > 0 {
		if len(m.background) > 0 {
			fn := m.background[0]
			m.background = m.background[1:]
			fn()
			continue
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		fn()
	}
}

// Advance moves the clock forward, firing due timers in order and draining
// after each one.
func (m *Manual) Advance(d time.Duration) {
	target := m.now + d
	m.Drain()
	for {
		next := m.nextDue(target)
		if next == nil {
			break
		}
		m.now = next.at
		next.stopped = true
		next.fn()
		m.Drain()
	}
	m.now = target
}

func (m *Manual) nextDue(target time.Duration) *timer {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	m.timers = live

	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].at != m.timers[j].at {
			return m.timers[i].at < m.timers[j].at
		}
		return m.timers[i].seq < m.timers[j].seq
	})
	if len(m.timers) == 0 || m.timers[0].at > target {
		return nil
	}
	return m.timers[0]
}

// Now is the elapsed manual time.
func (m *Manual) Now() time.Duration {
	return m.now
}

// PendingTimers counts timers that have not fired or been stopped.
func (m *Manual) PendingTimers() int {
	count := 0
	for _, t := range m.timers {
		if !t.stopped {
			count++
		}
	}
	return count
}
