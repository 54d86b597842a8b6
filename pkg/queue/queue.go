// Package queue buffers native tree operations produced by a transaction and
// applies them on the consumer context.
//
// Two streams feed the queue. View creation goes to a non-batched FIFO that
// frame callbacks drain while enough of the frame is left. Everything else
// is appended to the current batch, which DispatchViewUpdates swaps out as a
// whole into the pending list. Frame callbacks run every pending batch in
// order, each to completion.
package queue

import (
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-drift/viewtree/pkg/errors"
	"github.com/go-drift/viewtree/pkg/native"
	"github.com/go-drift/viewtree/pkg/props"
)

type batch struct {
	id         int
	nonBatched []Operation
	operations []Operation
	profile    bool
}

// Queue is the two-phase mutation scheduler in front of a native.Tree.
type Queue struct {
	tree          *native.Tree
	choreographer Choreographer
	opts          Options

	mu         sync.Mutex
	operations []Operation
	retries    []Operation

	nonBatchedMu sync.Mutex
	nonBatched   []Operation

	dispatchMu sync.Mutex
	pending    []*batch

	frameMu     sync.Mutex
	frameActive bool
	frameGen    int

	illegal atomic.Bool

	perfMu                sync.Mutex
	profileNext           bool
	perf                  PerfCounters
	createViewCount       int
	updatePropertiesCount int
}

// New returns a queue applying operations to tree. Frame callbacks and
// flushes are delivered through choreographer.
func New(tree *native.Tree, choreographer Choreographer, opts Options) *Queue {
	return &Queue{
		tree:          tree,
		choreographer: choreographer,
		opts:          opts.withDefaults(),
	}
}

// Tree returns the native tree the queue mutates.
func (q *Queue) Tree() *native.Tree { return q.tree }

func (q *Queue) enqueue(op Operation) {
	q.mu.Lock()
	q.operations = append(q.operations, op)
	q.mu.Unlock()
}

// IsEmpty reports whether the current batch has no operations.
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.operations) == 0 && len(q.retries) == 0
}

// EnqueueCreateView adds a create operation to the non-batched stream.
func (q *Queue) EnqueueCreateView(ctx native.ThemedContext, tag int, class string, initial props.Map) {
	q.perfMu.Lock()
	q.createViewCount++
	q.perfMu.Unlock()

	q.nonBatchedMu.Lock()
	q.nonBatched = append(q.nonBatched, &CreateViewOperation{Context: ctx, Tag: tag, ViewClass: class, Props: initial})
	q.nonBatchedMu.Unlock()
}

// EnqueueUpdateProperties adds a property update.
func (q *Queue) EnqueueUpdateProperties(tag int, m props.Map) {
	q.perfMu.Lock()
	q.updatePropertiesCount++
	q.perfMu.Unlock()
	q.enqueue(&UpdatePropertiesOperation{Tag: tag, Props: m})
}

// EnqueueUpdateLayout adds a layout update of tag inside parentTag.
func (q *Queue) EnqueueUpdateLayout(parentTag, tag, x, y, width, height int) {
	q.enqueue(&UpdateLayoutOperation{ParentTag: parentTag, Tag: tag, X: x, Y: y, Width: width, Height: height})
}

// EnqueueManageChildren adds a child management operation.
func (q *Queue) EnqueueManageChildren(tag int, indicesToRemove []int, viewsToAdd []native.ViewAtIndex, tagsToDelete []int) {
	q.enqueue(&ManageChildrenOperation{Tag: tag, IndicesToRemove: indicesToRemove, ViewsToAdd: viewsToAdd, TagsToDelete: tagsToDelete})
}

// EnqueueSetChildren adds a set children operation.
func (q *Queue) EnqueueSetChildren(tag int, childTags []int) {
	q.enqueue(&SetChildrenOperation{Tag: tag, ChildTags: childTags})
}

// EnqueueUpdateExtraData adds an extra data update.
func (q *Queue) EnqueueUpdateExtraData(tag int, data any) {
	q.enqueue(&UpdateExtraDataOperation{Tag: tag, Data: data})
}

// EnqueueRemoveRootView adds the teardown of a root.
func (q *Queue) EnqueueRemoveRootView(tag int) {
	q.enqueue(&RemoveRootViewOperation{Tag: tag})
}

// EnqueueDispatchCommand adds an imperative view command.
func (q *Queue) EnqueueDispatchCommand(tag int, command string, args []any) {
	q.enqueue(&DispatchCommandOperation{Tag: tag, Command: command, Args: args})
}

// EnqueueSendAccessibilityEvent adds an accessibility event.
func (q *Queue) EnqueueSendAccessibilityEvent(tag, eventType int) {
	q.enqueue(&SendAccessibilityEventOperation{Tag: tag, EventType: eventType})
}

// EnqueueMeasure adds a query for the frame of tag relative to its root.
func (q *Queue) EnqueueMeasure(tag int, cb MeasureCallback) {
	q.enqueue(&MeasureOperation{Tag: tag, Callback: cb})
}

// EnqueueMeasureInWindow adds a query for the window frame of tag.
func (q *Queue) EnqueueMeasureInWindow(tag int, cb MeasureCallback) {
	q.enqueue(&MeasureOperation{Tag: tag, InWindow: true, Callback: cb})
}

// EnqueueUIBlock appends a consumer callback to the current batch.
func (q *Queue) EnqueueUIBlock(block UIBlock) {
	q.enqueue(&UIBlockOperation{Block: block})
}

// PrependUIBlock puts a consumer callback at the front of the current batch.
func (q *Queue) PrependUIBlock(block UIBlock) {
	q.mu.Lock()
	q.operations = append([]Operation{&UIBlockOperation{Block: block}}, q.operations...)
	q.mu.Unlock()
}

// EnqueueLayoutUpdateFinished adds a notification that the layout of
// rootTag has been applied.
func (q *Queue) EnqueueLayoutUpdateFinished(rootTag int, fn func(rootTag int)) {
	q.enqueue(&LayoutUpdateFinishedOperation{RootTag: rootTag, Listener: fn})
}

// ProfileNextBatch collects PerfCounters for the next non-empty batch.
func (q *Queue) ProfileNextBatch() {
	q.perfMu.Lock()
	q.profileNext = true
	q.perfMu.Unlock()
}

// ProfiledBatchPerfCounters returns the counters of the last profiled batch.
func (q *Queue) ProfiledBatchPerfCounters() PerfCounters {
	q.perfMu.Lock()
	defer q.perfMu.Unlock()
	return q.perf
}

// DispatchViewUpdates closes the current transaction. The current batch and
// the undrained non-batched operations move to the pending list together,
// and a fresh batch starts accepting operations right away.
func (q *Queue) DispatchViewUpdates(batchID int, commitStart time.Time, layoutTime time.Duration) {
	dispatchStart := q.opts.Clock.Now()

	q.mu.Lock()
	operations := q.operations
	q.operations = nil
	if len(q.retries) > 0 {
		operations = append(q.retries, operations...)
		q.retries = nil
	}
	q.mu.Unlock()

	q.nonBatchedMu.Lock()
	nonBatched := q.nonBatched
	q.nonBatched = nil
	q.nonBatchedMu.Unlock()

	q.perfMu.Lock()
	profile := q.profileNext && (len(operations) > 0 || len(nonBatched) > 0)
	if profile {
		q.profileNext = false
		q.perf = PerfCounters{
			CommitStart:             commitStart,
			CommitEnd:               q.opts.Clock.Now(),
			LayoutTime:              layoutTime,
			DispatchViewUpdatesTime: dispatchStart,
			CreateViewCount:         q.createViewCount,
			UpdatePropertiesCount:   q.updatePropertiesCount,
		}
	}
	q.createViewCount = 0
	q.updatePropertiesCount = 0
	q.perfMu.Unlock()

	if len(operations) == 0 && len(nonBatched) == 0 {
		return
	}

	if l := q.opts.Listener; l != nil {
		l.OnViewHierarchyUpdateEnqueued()
	}

	q.dispatchMu.Lock()
	q.pending = append(q.pending, &batch{id: batchID, nonBatched: nonBatched, operations: operations, profile: profile})
	q.dispatchMu.Unlock()

	if !q.IsFrameCallbackActive() {
		q.choreographer.Post(func() { q.FlushPendingBatches() })
	}
}

// PendingBatches returns the number of committed batches not yet run.
func (q *Queue) PendingBatches() int {
	q.dispatchMu.Lock()
	defer q.dispatchMu.Unlock()
	return len(q.pending)
}

// NonBatchedLen returns the number of undrained non-batched operations.
func (q *Queue) NonBatchedLen() int {
	q.nonBatchedMu.Lock()
	defer q.nonBatchedMu.Unlock()
	return len(q.nonBatched)
}

// IsIllegal reports whether a failed operation stopped the queue.
func (q *Queue) IsIllegal() bool { return q.illegal.Load() }

// IsFrameCallbackActive reports whether frame callbacks are being received.
func (q *Queue) IsFrameCallbackActive() bool {
	q.frameMu.Lock()
	defer q.frameMu.Unlock()
	return q.frameActive
}

// ResumeFrameCallback starts receiving frame callbacks.
func (q *Queue) ResumeFrameCallback() {
	q.frameMu.Lock()
	if q.frameActive {
		q.frameMu.Unlock()
		return
	}
	q.frameActive = true
	q.frameGen++
	gen := q.frameGen
	q.frameMu.Unlock()
	q.postFrame(gen)
}

// PauseFrameCallback stops frame callbacks and flushes whatever is pending.
func (q *Queue) PauseFrameCallback() {
	q.frameMu.Lock()
	q.frameActive = false
	q.frameMu.Unlock()
	q.choreographer.Post(func() { q.FlushPendingBatches() })
}

func (q *Queue) postFrame(gen int) {
	q.choreographer.PostFrameCallback(func(frameTime time.Time) { q.doFrame(gen, frameTime) })
}

func (q *Queue) frameCurrent(gen int) bool {
	q.frameMu.Lock()
	defer q.frameMu.Unlock()
	return q.frameActive && q.frameGen == gen
}

func (q *Queue) doFrame(gen int, frameTime time.Time) {
	if !q.frameCurrent(gen) {
		return
	}
	stats := FrameStats{FrameTime: frameTime}
	if q.illegal.Load() {
		errors.Logger().Warn("not flushing pending view operations because of a previous failure")
		stats.Skipped = true
		q.observe(stats)
		return
	}

	start := q.opts.Clock.Now()
	stats.NonBatchedExecuted = q.dispatchPendingNonBatched(frameTime)
	stats.NonBatchedDuration = q.opts.Clock.Now().Sub(start)

	start = q.opts.Clock.Now()
	stats.BatchesFlushed, stats.OperationsExecuted = q.FlushPendingBatches()
	stats.BatchedDuration = q.opts.Clock.Now().Sub(start)
	stats.OperationsExecuted += stats.NonBatchedExecuted
	stats.NonBatchedRemaining = q.NonBatchedLen()
	q.observe(stats)

	if q.frameCurrent(gen) && !q.illegal.Load() {
		q.postFrame(gen)
	}
}

func (q *Queue) observe(stats FrameStats) {
	if o := q.opts.FrameObserver; o != nil {
		o.ObserveFrame(stats)
	}
}

// dispatchPendingNonBatched runs non-batched operations one at a time while
// at least MinTimeLeftInFrame remains in the frame that started at frameTime.
func (q *Queue) dispatchPendingNonBatched(frameTime time.Time) int {
	executed := 0
	for {
		elapsed := q.opts.Clock.Now().Sub(frameTime)
		if q.opts.FrameInterval-elapsed < q.opts.MinTimeLeftInFrame {
			return executed
		}
		q.nonBatchedMu.Lock()
		if len(q.nonBatched) == 0 {
			q.nonBatchedMu.Unlock()
			return executed
		}
		op := q.nonBatched[0]
		q.nonBatched[0] = nil
		q.nonBatched = q.nonBatched[1:]
		q.nonBatchedMu.Unlock()

		if !q.execute(op) {
			return executed
		}
		executed++
	}
}

// FlushPendingBatches runs every pending batch in commit order. It must be
// called on the consumer context. It returns the number of batches and
// operations executed.
func (q *Queue) FlushPendingBatches() (batches, operations int) {
	if q.illegal.Load() {
		errors.Logger().Warn("not flushing pending view operations because of a previous failure")
		return 0, 0
	}
	q.dispatchMu.Lock()
	pending := q.pending
	q.pending = nil
	q.dispatchMu.Unlock()

	for _, b := range pending {
		if q.illegal.Load() {
			break
		}
		operations += q.runBatch(b)
		batches++
	}
	return batches, operations
}

func (q *Queue) runBatch(b *batch) int {
	runStart := q.opts.Clock.Now()
	executed := 0
	for _, op := range b.nonBatched {
		if !q.execute(op) {
			return executed
		}
		executed++
	}
	nonBatchedEnd := q.opts.Clock.Now()
	for _, op := range b.operations {
		if !q.execute(op) {
			return executed
		}
		executed++
	}
	runEnd := q.opts.Clock.Now()

	if b.profile {
		q.perfMu.Lock()
		q.perf.RunStart = runStart
		q.perf.RunEnd = runEnd
		q.perf.NonBatchedExecutionTime = nonBatchedEnd.Sub(runStart)
		q.perf.BatchedExecutionTime = runEnd.Sub(nonBatchedEnd)
		q.perfMu.Unlock()
	}
	if l := q.opts.Listener; l != nil {
		l.OnViewHierarchyUpdateFinished()
	}
	return executed
}

// execute runs op and applies the failure policy. It returns false when the
// queue has entered the illegal state.
func (q *Queue) execute(op Operation) bool {
	err := q.run(op)
	if err == nil {
		if l := q.opts.Listener; l != nil {
			l.OnOperationExecuted(op)
		}
		return true
	}

	if errors.IsRetryable(err) {
		switch o := op.(type) {
		case *DispatchCommandOperation:
			if o.retries == 0 {
				o.retries++
				q.mu.Lock()
				q.retries = append(q.retries, o)
				q.mu.Unlock()
				errors.Logger().Debug("retrying view command", "tag", o.Tag, "command", o.Command)
				return true
			}
			report(err)
			return true
		case *SendAccessibilityEventOperation:
			report(err)
			return true
		}
	}

	q.illegal.Store(true)
	var pe *errors.PanicError
	if !stderrors.As(err, &pe) {
		report(err)
	}
	return false
}

func (q *Queue) run(op Operation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ae, ok := r.(*errors.AssertionError); ok {
				panic(ae)
			}
			pe := &errors.PanicError{
				Op:         fmt.Sprint(op),
				Value:      r,
				StackTrace: errors.CaptureStack(),
				Timestamp:  time.Now(),
			}
			errors.ReportPanic(pe)
			err = pe
		}
	}()
	return op.Execute(q.tree)
}

func report(err error) {
	var ve *errors.ViewError
	if !stderrors.As(err, &ve) {
		ve = &errors.ViewError{Op: "queue.execute", Kind: errors.KindUnknown, Tag: errors.NoTag, Err: err}
	}
	errors.Report(ve)
}
