package countdown

import "time"

const DefaultInterval = time.Second

// Scheduler runs fn on the serialized context after d. loop.Loop and
// looptest.Manual both satisfy it.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

// Countdown is a cancellable tick timer. Start and Cancel must be called on
// the same serialized context the scheduler delivers callbacks on; that is
// what lets the generation check guarantee no callback runs after Cancel.
type Countdown struct {
	sched    Scheduler
	interval time.Duration

	generation uint64
	running    bool
	remaining  time.Duration
	stop       func() bool
}

func New(sched Scheduler, interval time.Duration) *Countdown {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Countdown{
		sched:    sched,
		interval: interval,
	}
}

// Start cancels any live countdown, then ticks every interval until d is
// used up. onTick sees every new remaining value including zero; onFinish
// runs exactly once, after the zero tick.
func (c *Countdown) Start(d time.Duration, onTick func(remaining time.Duration), onFinish func()) {
	c.Cancel()

	if d < 0 {
		d = 0
	}
	c.generation++
	c.running = true
	c.remaining = d
	c.schedule(c.generation, onTick, onFinish)
}

func (c *Countdown) schedule(generation uint64, onTick func(time.Duration), onFinish func()) {
	step := c.interval
	if c.remaining < step {
		step = c.remaining
	}

	c.stop = c.sched.AfterFunc(step, func() {
		if generation != c.generation || !c.running {
			return
		}

		c.remaining -= step
		if c.remaining < 0 {
			c.remaining = 0
		}
		if step > 0 && onTick != nil {
			onTick(c.remaining)
		}
		// onTick may have cancelled or restarted us.
		if generation != c.generation || !c.running {
			return
		}

		if c.remaining == 0 {
			c.running = false
			c.stop = nil
			if onFinish != nil {
				onFinish()
			}
			return
		}
		c.schedule(generation, onTick, onFinish)
	})
}

// Cancel is idempotent and safe when nothing is running.
func (c *Countdown) Cancel() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	if c.running {
		c.running = false
		c.generation++
	}
}
