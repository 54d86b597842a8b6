package testing

import (
	"fmt"
	"sync"

	"github.com/go-drift/viewtree/pkg/queue"
)

// Recorder is a queue.Listener that records executed operations.
type Recorder struct {
	mu       sync.Mutex
	ops      []queue.Operation
	enqueued int
	finished int

	// OnExecuted, when set, runs after each operation is recorded. Tests use
	// it to charge time to the fake clock.
	OnExecuted func(op queue.Operation)
}

func (r *Recorder) OnViewHierarchyUpdateEnqueued() {
	r.mu.Lock()
	r.enqueued++
	r.mu.Unlock()
}

func (r *Recorder) OnOperationExecuted(op queue.Operation) {
	r.mu.Lock()
	r.ops = append(r.ops, op)
	hook := r.OnExecuted
	r.mu.Unlock()
	if hook != nil {
		hook(op)
	}
}

func (r *Recorder) OnViewHierarchyUpdateFinished() {
	r.mu.Lock()
	r.finished++
	r.mu.Unlock()
}

// Operations returns the executed operations in order.
func (r *Recorder) Operations() []queue.Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]queue.Operation(nil), r.ops...)
}

// Strings returns the executed operations formatted with %v.
func (r *Recorder) Strings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ops))
	for i, op := range r.ops {
		out[i] = fmt.Sprint(op)
	}
	return out
}

// Count returns how many executed operations satisfy match.
func (r *Recorder) Count(match func(queue.Operation) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, op := range r.ops {
		if match(op) {
			n++
		}
	}
	return n
}

// Enqueued returns how many non-empty transactions were committed.
func (r *Recorder) Enqueued() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enqueued
}

// Finished returns how many batches ran to completion.
func (r *Recorder) Finished() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.ops = nil
	r.enqueued = 0
	r.finished = 0
	r.mu.Unlock()
}

// IsCreate matches create operations.
func IsCreate(op queue.Operation) bool {
	_, ok := op.(*queue.CreateViewOperation)
	return ok
}

// IsManageChildren matches child management operations.
func IsManageChildren(op queue.Operation) bool {
	_, ok := op.(*queue.ManageChildrenOperation)
	return ok
}

// IsSetChildren matches set children operations.
func IsSetChildren(op queue.Operation) bool {
	_, ok := op.(*queue.SetChildrenOperation)
	return ok
}

// IsRemoval matches child management operations that remove children.
func IsRemoval(op queue.Operation) bool {
	m, ok := op.(*queue.ManageChildrenOperation)
	return ok && len(m.IndicesToRemove) > 0
}

// IsInsertion matches child management operations that add children.
func IsInsertion(op queue.Operation) bool {
	m, ok := op.(*queue.ManageChildrenOperation)
	return ok && len(m.ViewsToAdd) > 0
}

var _ queue.Listener = (*Recorder)(nil)
