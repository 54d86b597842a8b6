package queue

import "time"

const (
	// DefaultFrameInterval is the length of one display frame.
	DefaultFrameInterval = 16 * time.Millisecond
	// DefaultMinTimeLeftInFrame is the time that must remain in a frame for
	// another non-batched operation to run.
	DefaultMinTimeLeftInFrame = 8 * time.Millisecond
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Choreographer delivers callbacks on the consumer context.
type Choreographer interface {
	// PostFrameCallback runs fn once, at the start of the next frame.
	PostFrameCallback(fn func(frameTime time.Time))
	// Post runs fn as soon as possible.
	Post(fn func())
}

// Listener observes hierarchy updates. OnViewHierarchyUpdateEnqueued is
// called on the producer context, the rest on the consumer context.
type Listener interface {
	OnViewHierarchyUpdateEnqueued()
	OnOperationExecuted(op Operation)
	OnViewHierarchyUpdateFinished()
}

// FrameStats describes one frame callback.
type FrameStats struct {
	FrameTime           time.Time
	NonBatchedExecuted  int
	NonBatchedRemaining int
	BatchesFlushed      int
	OperationsExecuted  int
	NonBatchedDuration  time.Duration
	BatchedDuration     time.Duration
	// Skipped is set when the queue is in an illegal state.
	Skipped bool
}

// FrameObserver receives a FrameStats record after every frame callback.
type FrameObserver interface {
	ObserveFrame(FrameStats)
}

// Options configure a Queue.
type Options struct {
	FrameInterval      time.Duration
	MinTimeLeftInFrame time.Duration
	Clock              Clock
	Listener           Listener
	FrameObserver      FrameObserver
}

func (o Options) withDefaults() Options {
	if o.FrameInterval <= 0 {
		o.FrameInterval = DefaultFrameInterval
	}
	if o.MinTimeLeftInFrame <= 0 {
		o.MinTimeLeftInFrame = DefaultMinTimeLeftInFrame
	}
	if o.Clock == nil {
		o.Clock = SystemClock
	}
	return o
}

// PerfCounters are collected for a batch after ProfileNextBatch.
type PerfCounters struct {
	CommitStart             time.Time     `json:"commitStart"`
	CommitEnd               time.Time     `json:"commitEnd"`
	LayoutTime              time.Duration `json:"layoutTime"`
	DispatchViewUpdatesTime time.Time     `json:"dispatchViewUpdatesTime"`
	RunStart                time.Time     `json:"runStart"`
	RunEnd                  time.Time     `json:"runEnd"`
	BatchedExecutionTime    time.Duration `json:"batchedExecutionTime"`
	NonBatchedExecutionTime time.Duration `json:"nonBatchedExecutionTime"`
	CreateViewCount         int           `json:"createViewCount"`
	UpdatePropertiesCount   int           `json:"updatePropertiesCount"`
}
