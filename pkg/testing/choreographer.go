package testing

import (
	"sync"
	"time"
)

// ManualChoreographer queues frame callbacks and posted tasks until the test
// runs them. It implements queue.Choreographer.
type ManualChoreographer struct {
	mu     sync.Mutex
	clock  *FakeClock
	frames []func(time.Time)
	posted []func()
	onLoop bool
}

// NewManualChoreographer returns a choreographer reporting frame times from
// clock.
func NewManualChoreographer(clock *FakeClock) *ManualChoreographer {
	return &ManualChoreographer{clock: clock}
}

// PostFrameCallback queues fn for the next DoFrame.
func (c *ManualChoreographer) PostFrameCallback(fn func(frameTime time.Time)) {
	c.mu.Lock()
	c.frames = append(c.frames, fn)
	c.mu.Unlock()
}

// Post queues fn for the next RunPosted.
func (c *ManualChoreographer) Post(fn func()) {
	c.mu.Lock()
	c.posted = append(c.posted, fn)
	c.mu.Unlock()
}

// RunPosted runs posted tasks, including tasks posted while running, and
// returns how many ran.
func (c *ManualChoreographer) RunPosted() int {
	ran := 0
	for {
		c.mu.Lock()
		if len(c.posted) == 0 {
			c.mu.Unlock()
			return ran
		}
		fn := c.posted[0]
		c.posted = c.posted[1:]
		c.mu.Unlock()
		c.run(fn)
		ran++
	}
}

// DoFrame runs the frame callbacks queued before the call, with the current
// clock time as the frame time. Callbacks posted during the frame wait for
// the next one.
func (c *ManualChoreographer) DoFrame() int {
	c.mu.Lock()
	frames := c.frames
	c.frames = nil
	c.mu.Unlock()

	frameTime := c.clock.Now()
	for _, fn := range frames {
		c.run(func() { fn(frameTime) })
	}
	return len(frames)
}

func (c *ManualChoreographer) run(fn func()) {
	c.mu.Lock()
	c.onLoop = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.onLoop = false
		c.mu.Unlock()
	}()
	fn()
}

// OnLoop reports whether the caller is inside a callback run by the
// choreographer. It is meant for native.Tree.SetThreadCheck.
func (c *ManualChoreographer) OnLoop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.onLoop
}

// PendingFrameCallbacks returns the number of queued frame callbacks.
func (c *ManualChoreographer) PendingFrameCallbacks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// PendingPosted returns the number of queued tasks.
func (c *ManualChoreographer) PendingPosted() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.posted)
}
