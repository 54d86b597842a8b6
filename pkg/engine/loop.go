package engine

import (
	"bytes"
	"context"
	stderrors "errors"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-drift/viewtree/pkg/queue"
)

var errLoopRunning = stderrors.New("engine: loop is already running")

// Loop is the consumer context. A single goroutine runs posted tasks as
// soon as they arrive and one-shot frame callbacks on every tick.
//
// Loop implements queue.Choreographer.
type Loop struct {
	interval time.Duration
	clock    queue.Clock

	dispatchMu    sync.Mutex
	dispatchQueue []func()
	frameQueue    []func(time.Time)
	wake          chan struct{}

	running atomic.Bool
	// owner is the id of the goroutine inside Run, 0 when stopped.
	owner atomic.Uint64
}

// NewLoop returns a loop ticking every interval. A zero interval takes
// queue.DefaultFrameInterval and a nil clock the wall clock.
func NewLoop(interval time.Duration, clock queue.Clock) *Loop {
	if interval <= 0 {
		interval = queue.DefaultFrameInterval
	}
	if clock == nil {
		clock = queue.SystemClock
	}
	return &Loop{
		interval: interval,
		clock:    clock,
		wake:     make(chan struct{}, 1),
	}
}

// Interval returns the frame interval.
func (l *Loop) Interval() time.Duration { return l.interval }

// Post schedules fn to run on the loop and is safe to call from any
// goroutine.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.dispatchMu.Lock()
	l.dispatchQueue = append(l.dispatchQueue, fn)
	l.dispatchMu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// PostFrameCallback schedules fn for the next tick.
func (l *Loop) PostFrameCallback(fn func(frameTime time.Time)) {
	if fn == nil {
		return
	}
	l.dispatchMu.Lock()
	l.frameQueue = append(l.frameQueue, fn)
	l.dispatchMu.Unlock()
}

// OnLoop reports whether the caller runs on the loop goroutine, that is
// inside a posted task or a frame callback.
func (l *Loop) OnLoop() bool {
	owner := l.owner.Load()
	return owner != 0 && goroutineID() == owner
}

// Running reports whether Run is active.
func (l *Loop) Running() bool { return l.running.Load() }

// Run processes tasks and frames until ctx is done. Cancellation is a
// normal shutdown and returns nil.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errLoopRunning
	}
	defer l.running.Store(false)
	l.owner.Store(goroutineID())
	defer l.owner.Store(0)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.drainDispatchQueue()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
			l.drainDispatchQueue()
		case <-ticker.C:
			l.drainDispatchQueue()
			l.doFrame(l.clock.Now())
		}
	}
}

// drainDispatchQueue runs posted tasks, including tasks posted while
// draining.
func (l *Loop) drainDispatchQueue() {
	for {
		l.dispatchMu.Lock()
		callbacks := l.dispatchQueue
		l.dispatchQueue = nil
		l.dispatchMu.Unlock()
		if len(callbacks) == 0 {
			return
		}
		for _, callback := range callbacks {
			callback()
		}
	}
}

// doFrame runs the frame callbacks queued before the tick. Callbacks posted
// from a frame callback wait for the next tick.
func (l *Loop) doFrame(frameTime time.Time) {
	l.dispatchMu.Lock()
	callbacks := l.frameQueue
	l.frameQueue = nil
	l.dispatchMu.Unlock()
	for _, callback := range callbacks {
		callback(frameTime)
	}
}

var goroutinePrefix = []byte("goroutine ")

// goroutineID returns the id of the calling goroutine, read from the
// "goroutine N [running]:" header of its stack trace.
func goroutineID() uint64 {
	var buf [64]byte
	b := bytes.TrimPrefix(buf[:runtime.Stack(buf[:], false)], goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
