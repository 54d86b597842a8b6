package queue_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/viewtree/pkg/errors"
	"github.com/go-drift/viewtree/pkg/native"
	"github.com/go-drift/viewtree/pkg/props"
	"github.com/go-drift/viewtree/pkg/queue"
	drifttest "github.com/go-drift/viewtree/pkg/testing"
)

type fixture struct {
	tree   *native.Tree
	clock  *drifttest.FakeClock
	ch     *drifttest.ManualChoreographer
	rec    *drifttest.Recorder
	frames []queue.FrameStats
	q      *queue.Queue
}

type observerFunc func(queue.FrameStats)

func (f observerFunc) ObserveFrame(s queue.FrameStats) { f(s) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		tree:  native.NewTree(native.DefaultRegistry()),
		clock: drifttest.NewFakeClock(),
		rec:   &drifttest.Recorder{},
	}
	f.ch = drifttest.NewManualChoreographer(f.clock)
	f.tree.SetThreadCheck(f.ch.OnLoop)
	require.NoError(t, f.tree.AddRootView(1, native.NewWidget(native.ClassRoot, 1, native.ThemedContext{RootTag: 1})))
	f.q = queue.New(f.tree, f.ch, queue.Options{
		Clock:         f.clock,
		Listener:      f.rec,
		FrameObserver: observerFunc(func(s queue.FrameStats) { f.frames = append(f.frames, s) }),
	})
	return f
}

func (f *fixture) commit(id int) {
	f.q.DispatchViewUpdates(id, f.clock.Now(), 0)
}

func (f *fixture) widget(t *testing.T, tag int) *native.Widget {
	t.Helper()
	v, err := f.tree.ResolveView(tag)
	require.NoError(t, err)
	return v.(*native.Widget)
}

func TestQueue_TransactionOrdering(t *testing.T) {
	f := newFixture(t)
	f.q.EnqueueCreateView(native.ThemedContext{RootTag: 1}, 7, native.ClassView, nil)
	f.q.EnqueueManageChildren(1, nil, []native.ViewAtIndex{{Tag: 7, Index: 0}}, nil)
	for _, opacity := range []float64{0.1, 0.2, 0.3} {
		f.q.EnqueueUpdateProperties(7, props.Map{"opacity": opacity})
	}
	f.commit(1)

	// The next transaction starts before the first one is flushed.
	f.q.EnqueueUpdateProperties(7, props.Map{"opacity": 0.9})
	f.ch.RunPosted()

	assert.Equal(t, []string{
		"create(7, View)",
		"manageChildren(1, remove=[] add=[{7 0}] delete=[])",
		"updateProps(7, [opacity])",
		"updateProps(7, [opacity])",
		"updateProps(7, [opacity])",
	}, f.rec.Strings())
	assert.Equal(t, 0.3, f.widget(t, 7).Opacity)

	f.commit(2)
	f.ch.RunPosted()
	assert.Len(t, f.rec.Operations(), 6)
	assert.Equal(t, 0.9, f.widget(t, 7).Opacity)
	assert.Equal(t, 2, f.rec.Enqueued())
	assert.Equal(t, 2, f.rec.Finished())
}

func TestDispatchViewUpdates_EmptyCommitAddsNothing(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.q.IsEmpty())
	f.commit(-1)
	assert.Equal(t, 0, f.q.PendingBatches())
	assert.Equal(t, 0, f.ch.PendingPosted())
	assert.Equal(t, 0, f.rec.Enqueued())
}

func TestDispatchViewUpdates_FlushesOnConsumerWithoutFrameCallback(t *testing.T) {
	f := newFixture(t)
	require.False(t, f.q.IsFrameCallbackActive())
	f.q.EnqueueCreateView(native.ThemedContext{}, 2, native.ClassView, nil)
	f.commit(1)

	assert.False(t, f.tree.Has(2), "nothing runs on the producer")
	assert.Equal(t, 1, f.ch.PendingPosted())
	f.ch.RunPosted()
	assert.True(t, f.tree.Has(2))
	assert.Equal(t, 0, f.q.PendingBatches())
}

func TestQueue_NonBatchedFrameBudget(t *testing.T) {
	f := newFixture(t)
	f.rec.OnExecuted = func(queue.Operation) { f.clock.Advance(3 * time.Millisecond) }
	f.q.ResumeFrameCallback()
	for tag := 2; tag <= 6; tag++ {
		f.q.EnqueueCreateView(native.ThemedContext{}, tag, native.ClassView, nil)
	}

	require.Equal(t, 1, f.ch.DoFrame())
	// 16ms frames with an 8ms floor leave room for three 3ms creates.
	assert.Equal(t, 2, f.q.NonBatchedLen())
	assert.True(t, f.tree.Has(4))
	assert.False(t, f.tree.Has(5))
	require.Len(t, f.frames, 1)
	assert.Equal(t, 3, f.frames[0].NonBatchedExecuted)
	assert.Equal(t, 2, f.frames[0].NonBatchedRemaining)
	assert.Equal(t, 1, f.ch.PendingFrameCallbacks(), "the callback reposts itself")

	f.ch.DoFrame()
	assert.Equal(t, 0, f.q.NonBatchedLen())
	assert.True(t, f.tree.Has(6))
}

func TestDispatchViewUpdates_CarriesUndrainedCreatesFirst(t *testing.T) {
	f := newFixture(t)
	f.q.ResumeFrameCallback()
	f.q.EnqueueManageChildren(1, nil, []native.ViewAtIndex{{Tag: 2, Index: 0}}, nil)
	f.q.EnqueueCreateView(native.ThemedContext{}, 2, native.ClassView, nil)
	f.commit(1)
	assert.Equal(t, 0, f.q.NonBatchedLen())

	f.ch.DoFrame()
	assert.Equal(t, []string{
		"create(2, View)",
		"manageChildren(1, remove=[] add=[{2 0}] delete=[])",
	}, f.rec.Strings())
	assert.False(t, f.q.IsIllegal())
}

func TestDispatchCommandOperation_RetriedOnce(t *testing.T) {
	log := drifttest.CaptureErrors(t)
	f := newFixture(t)

	f.q.EnqueueDispatchCommand(5, "focus", nil)
	f.commit(1)
	f.ch.RunPosted()
	assert.False(t, f.q.IsEmpty(), "the command waits for the next transaction")
	assert.Empty(t, log.Errors())

	f.q.EnqueueCreateView(native.ThemedContext{}, 5, native.ClassTextInput, nil)
	f.commit(2)
	f.ch.RunPosted()
	assert.True(t, f.widget(t, 5).Focused)
	assert.True(t, f.q.IsEmpty())
	assert.False(t, f.q.IsIllegal())
}

func TestDispatchCommandOperation_DroppedAfterSecondFailure(t *testing.T) {
	log := drifttest.CaptureErrors(t)
	f := newFixture(t)

	f.q.EnqueueDispatchCommand(5, "focus", nil)
	f.commit(1)
	f.ch.RunPosted()
	f.commit(2)
	f.ch.RunPosted()

	assert.True(t, f.q.IsEmpty())
	assert.False(t, f.q.IsIllegal())
	assert.Equal(t, []errors.ErrorKind{errors.KindRetryableMount}, log.Kinds())

	f.commit(3)
	assert.Equal(t, 0, f.q.PendingBatches())
}

func TestSendAccessibilityEventOperation_MissingViewIsSkipped(t *testing.T) {
	log := drifttest.CaptureErrors(t)
	f := newFixture(t)
	f.q.EnqueueSendAccessibilityEvent(9, 1)
	f.q.EnqueueCreateView(native.ThemedContext{}, 2, native.ClassView, nil)
	f.q.EnqueueSendAccessibilityEvent(2, 1)
	f.commit(1)
	f.ch.RunPosted()

	assert.False(t, f.q.IsIllegal())
	assert.Equal(t, []int{1}, f.widget(t, 2).AccessibilityEvents)
	assert.Equal(t, []errors.ErrorKind{errors.KindRetryableMount}, log.Kinds())
	assert.True(t, f.q.IsEmpty())
}

func TestQueue_FailureStopsFlushing(t *testing.T) {
	log := drifttest.CaptureErrors(t)
	f := newFixture(t)
	f.q.ResumeFrameCallback()

	f.q.EnqueueManageChildren(42, []int{0}, nil, nil)
	f.q.EnqueueCreateView(native.ThemedContext{}, 3, native.ClassView, nil)
	f.q.EnqueueUpdateProperties(3, props.Map{"opacity": 0.5})
	f.commit(1)
	f.q.EnqueueUpdateProperties(3, props.Map{"opacity": 0.7})
	f.commit(2)

	f.ch.DoFrame()
	assert.True(t, f.q.IsIllegal())
	assert.Equal(t, []string{"create(3, View)"}, f.rec.Strings())
	assert.Equal(t, []errors.ErrorKind{errors.KindNotFound}, log.Kinds())
	assert.Equal(t, 0, f.ch.PendingFrameCallbacks(), "an illegal queue stops scheduling frames")

	batches, ops := f.q.FlushPendingBatches()
	assert.Zero(t, batches)
	assert.Zero(t, ops)
	assert.Equal(t, 1.0, f.widget(t, 3).Opacity)
}

func TestQueue_PanicStopsFlushing(t *testing.T) {
	log := drifttest.CaptureErrors(t)
	f := newFixture(t)
	f.q.EnqueueUIBlock(func(*native.Tree) { panic("boom") })
	f.q.EnqueueCreateView(native.ThemedContext{}, 3, native.ClassView, nil)
	f.commit(1)
	f.ch.RunPosted()

	assert.True(t, f.q.IsIllegal())
	require.Len(t, log.Panics(), 1)
	assert.Equal(t, "boom", log.Panics()[0].Value)
	assert.Empty(t, log.Errors())
}

func TestPauseFrameCallback_FlushesAndStopsFrames(t *testing.T) {
	f := newFixture(t)
	f.q.ResumeFrameCallback()
	f.q.EnqueueCreateView(native.ThemedContext{}, 2, native.ClassView, nil)
	f.commit(1)
	assert.Equal(t, 0, f.ch.PendingPosted())

	f.q.PauseFrameCallback()
	assert.False(t, f.q.IsFrameCallbackActive())
	f.ch.RunPosted()
	assert.True(t, f.tree.Has(2))

	f.ch.DoFrame()
	assert.Empty(t, f.frames, "stale frame callbacks do nothing")
	assert.Equal(t, 0, f.ch.PendingFrameCallbacks())

	f.q.ResumeFrameCallback()
	f.q.ResumeFrameCallback()
	assert.Equal(t, 1, f.ch.PendingFrameCallbacks())
}

func TestPrependUIBlock_RunsBeforeQueuedBlocks(t *testing.T) {
	f := newFixture(t)
	var order []string
	f.q.EnqueueUIBlock(func(*native.Tree) { order = append(order, "second") })
	f.q.PrependUIBlock(func(*native.Tree) { order = append(order, "first") })
	f.q.EnqueueLayoutUpdateFinished(1, func(root int) { order = append(order, fmt.Sprint("layout ", root)) })
	f.commit(1)
	f.ch.RunPosted()
	assert.Equal(t, []string{"first", "second", "layout 1"}, order)
}

func TestEnqueueMeasure_ReportsAbsoluteFrame(t *testing.T) {
	f := newFixture(t)
	f.q.EnqueueCreateView(native.ThemedContext{}, 2, native.ClassView, nil)
	f.q.EnqueueManageChildren(1, nil, []native.ViewAtIndex{{Tag: 2, Index: 0}}, nil)
	f.q.EnqueueUpdateLayout(1, 2, 3, 4, 50, 60)

	var got native.Rect
	var found, missing bool
	f.q.EnqueueMeasure(2, func(r native.Rect, ok bool) { got, found = r, ok })
	f.q.EnqueueMeasureInWindow(99, func(_ native.Rect, ok bool) { missing = !ok })
	f.commit(1)
	f.ch.RunPosted()

	assert.True(t, found)
	assert.Equal(t, native.Rect{X: 3, Y: 4, Width: 50, Height: 60}, got)
	assert.True(t, missing)
	assert.False(t, f.q.IsIllegal())
}

func TestProfileNextBatch_RecordsTimings(t *testing.T) {
	f := newFixture(t)
	f.rec.OnExecuted = func(queue.Operation) { f.clock.Advance(time.Millisecond) }

	f.q.ProfileNextBatch()
	commitStart := f.clock.Now()
	f.q.EnqueueCreateView(native.ThemedContext{}, 2, native.ClassView, nil)
	f.q.EnqueueUpdateProperties(2, props.Map{"opacity": 0.5})
	f.q.EnqueueUpdateProperties(2, props.Map{"opacity": 0.6})
	f.q.DispatchViewUpdates(1, commitStart, 2*time.Millisecond)
	f.ch.RunPosted()

	perf := f.q.ProfiledBatchPerfCounters()
	assert.Equal(t, commitStart, perf.CommitStart)
	assert.Equal(t, 2*time.Millisecond, perf.LayoutTime)
	assert.Equal(t, 1, perf.CreateViewCount)
	assert.Equal(t, 2, perf.UpdatePropertiesCount)
	assert.Equal(t, time.Millisecond, perf.NonBatchedExecutionTime)
	assert.Equal(t, 2*time.Millisecond, perf.BatchedExecutionTime)
	assert.Equal(t, 3*time.Millisecond, perf.RunEnd.Sub(perf.RunStart))
}

func TestQueue_ThreadCheckIsSatisfiedOnConsumer(t *testing.T) {
	prev := errors.SetDebugMode(true)
	defer errors.SetDebugMode(prev)
	f := newFixture(t)

	f.q.EnqueueCreateView(native.ThemedContext{}, 2, native.ClassView, nil)
	f.commit(1)
	assert.NotPanics(t, func() { f.ch.RunPosted() })
	assert.Panics(t, func() { _ = f.tree.CreateView(native.ThemedContext{}, 3, native.ClassView, nil) })
}
