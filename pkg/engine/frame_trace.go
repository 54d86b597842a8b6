package engine

import (
	"sync"
	"time"

	"github.com/go-drift/viewtree/pkg/queue"
)

const (
	frameTraceSamplesDefault   = 240
	defaultFrameTraceThreshold = 16667 * time.Microsecond
)

// FramePhaseTimings captures time spent in each frame phase (ms).
type FramePhaseTimings struct {
	NonBatchedMs float64 `json:"nonBatchedMs"`
	BatchedMs    float64 `json:"batchedMs"`
}

// FrameCounts captures per-frame workload indicators.
type FrameCounts struct {
	NonBatchedExecuted  int `json:"nonBatchedExecuted"`
	NonBatchedRemaining int `json:"nonBatchedRemaining"`
	BatchesFlushed      int `json:"batchesFlushed"`
	OperationsExecuted  int `json:"operationsExecuted"`
	NativeViewCount     int `json:"nativeViewCount"`
}

// FrameFlags captures contextual flags for a frame.
type FrameFlags struct {
	// Skipped is set when the queue refused to run because it is in an
	// illegal state.
	Skipped bool `json:"skipped,omitempty"`
}

// FrameSample is a single frame trace sample.
type FrameSample struct {
	Timestamp int64             `json:"ts"`
	FrameMs   float64           `json:"frameMs"`
	Phases    FramePhaseTimings `json:"phases"`
	Counts    FrameCounts       `json:"counts"`
	Flags     FrameFlags        `json:"flags"`
}

// FrameTimeline is the debug server response shape.
type FrameTimeline struct {
	Samples       []FrameSample `json:"samples"`
	DroppedFrames int           `json:"droppedFrames"`
	ThresholdMs   float64       `json:"thresholdMs"`
}

// FrameTraceBuffer stores recent frame samples in a ring buffer.
type FrameTraceBuffer struct {
	mu        sync.RWMutex
	samples   []FrameSample
	index     int
	count     int
	dropped   int
	threshold time.Duration
}

// NewFrameTraceBuffer creates a new frame trace buffer.
func NewFrameTraceBuffer(capacity int, threshold time.Duration) *FrameTraceBuffer {
	if capacity <= 0 {
		capacity = frameTraceSamplesDefault
	}
	if threshold <= 0 {
		threshold = defaultFrameTraceThreshold
	}
	return &FrameTraceBuffer{
		samples:   make([]FrameSample, capacity),
		threshold: threshold,
	}
}

// Capacity returns the buffer capacity.
func (b *FrameTraceBuffer) Capacity() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// SetThreshold updates the dropped frame threshold.
func (b *FrameTraceBuffer) SetThreshold(threshold time.Duration) {
	if threshold <= 0 {
		threshold = defaultFrameTraceThreshold
	}
	b.mu.Lock()
	b.threshold = threshold
	b.mu.Unlock()
}

// Threshold returns the dropped frame threshold.
func (b *FrameTraceBuffer) Threshold() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.threshold
}

// Add records a frame sample and updates dropped frame count.
func (b *FrameTraceBuffer) Add(sample FrameSample, frameDuration time.Duration) {
	b.mu.Lock()
	b.samples[b.index] = sample
	b.index = (b.index + 1) % len(b.samples)
	if b.count < len(b.samples) {
		b.count++
	}
	if frameDuration > b.threshold {
		b.dropped++
	}
	b.mu.Unlock()
}

// Snapshot returns a chronological copy of samples and stats.
func (b *FrameTraceBuffer) Snapshot() FrameTimeline {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 {
		return FrameTimeline{ThresholdMs: durationToMillis(b.threshold)}
	}

	result := make([]FrameSample, b.count)
	if b.count < len(b.samples) {
		copy(result, b.samples[:b.count])
	} else {
		copy(result, b.samples[b.index:])
		copy(result[len(b.samples)-b.index:], b.samples[:b.index])
	}

	return FrameTimeline{
		Samples:       result,
		DroppedFrames: b.dropped,
		ThresholdMs:   durationToMillis(b.threshold),
	}
}

// frameSample converts scheduler stats. Idle frames yield ok == false and
// are not recorded.
func frameSample(stats queue.FrameStats, nativeViews int) (sample FrameSample, frameDuration time.Duration, ok bool) {
	idle := stats.NonBatchedExecuted == 0 && stats.BatchesFlushed == 0 && !stats.Skipped
	if idle {
		return FrameSample{}, 0, false
	}
	frameDuration = stats.NonBatchedDuration + stats.BatchedDuration
	return FrameSample{
		Timestamp: stats.FrameTime.UnixMilli(),
		FrameMs:   durationToMillis(frameDuration),
		Phases: FramePhaseTimings{
			NonBatchedMs: durationToMillis(stats.NonBatchedDuration),
			BatchedMs:    durationToMillis(stats.BatchedDuration),
		},
		Counts: FrameCounts{
			NonBatchedExecuted:  stats.NonBatchedExecuted,
			NonBatchedRemaining: stats.NonBatchedRemaining,
			BatchesFlushed:      stats.BatchesFlushed,
			OperationsExecuted:  stats.OperationsExecuted,
			NativeViewCount:     nativeViews,
		},
		Flags: FrameFlags{Skipped: stats.Skipped},
	}, frameDuration, true
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
