package testing

import (
	"testing"

	"github.com/go-drift/viewtree/pkg/native"
	"github.com/go-drift/viewtree/pkg/props"
	"github.com/go-drift/viewtree/pkg/queue"
	"github.com/go-drift/viewtree/pkg/shadow"
	"github.com/go-drift/viewtree/pkg/uimanager"
)

const (
	// DefaultRootWidth is the width of roots added with AddRoot(0, 0).
	DefaultRootWidth = 400
	// DefaultRootHeight is the height of roots added with AddRoot(0, 0).
	DefaultRootHeight = 800
)

// Harness wires a UIManager, a queue and a native tree together with a fake
// clock and a manual choreographer, so a test decides exactly when commits
// and frames happen.
type Harness struct {
	t     testing.TB
	clock *FakeClock
	ch    *ManualChoreographer
	rec   *Recorder
	tree  *native.Tree
	q     *queue.Queue
	ui    *uimanager.UIManager

	nextRoot        int
	nextTransaction int
}

// NewHarness returns a harness with frame callbacks running. The manager
// is invalidated when the test ends.
func NewHarness(t testing.TB) *Harness {
	clock := NewFakeClock()
	h := &Harness{
		t:        t,
		clock:    clock,
		ch:       NewManualChoreographer(clock),
		rec:      &Recorder{},
		tree:     native.NewTree(native.DefaultRegistry()),
		nextRoot: 1,
	}
	h.tree.SetThreadCheck(h.ch.OnLoop)
	h.q = queue.New(h.tree, h.ch, queue.Options{Clock: clock, Listener: h.rec})
	h.ui = uimanager.New(h.q, uimanager.Options{Clock: clock})
	h.ui.OnHostResume()
	t.Cleanup(h.ui.Invalidate)
	return h
}

// UI returns the manager under test.
func (h *Harness) UI() *uimanager.UIManager { return h.ui }

// Tree returns the native tree.
func (h *Harness) Tree() *native.Tree { return h.tree }

// Queue returns the mutation queue.
func (h *Harness) Queue() *queue.Queue { return h.q }

// Clock returns the fake clock shared by the queue and the manager.
func (h *Harness) Clock() *FakeClock { return h.clock }

// Choreographer returns the manual choreographer driving the queue.
func (h *Harness) Choreographer() *ManualChoreographer { return h.ch }

// Recorder returns the listener recording executed operations.
func (h *Harness) Recorder() *Recorder { return h.rec }

// AddRoot registers a root of the given size and returns its tag. Root
// tags are 1, 11, 21 and so on. A zero size takes the defaults.
func (h *Harness) AddRoot(width, height int) int {
	h.t.Helper()
	if width == 0 && height == 0 {
		width, height = DefaultRootWidth, DefaultRootHeight
	}
	tag := h.nextRoot
	h.nextRoot += 10
	w := native.NewWidget(native.ClassRoot, tag, native.ThemedContext{RootTag: tag, Scale: 1})
	w.SetFrame(native.Rect{Width: width, Height: height})
	if err := h.ui.RegisterRootView(tag, w, native.ThemedContext{Scale: 1}); err != nil {
		h.t.Fatalf("register root %d: %v", tag, err)
	}
	return tag
}

// Create creates a view under rootTag.
func (h *Harness) Create(tag int, class string, rootTag int, p props.Map) {
	h.t.Helper()
	if err := h.ui.CreateView(tag, class, rootTag, p); err != nil {
		h.t.Fatalf("create %d: %v", tag, err)
	}
}

// Update changes the properties of a view.
func (h *Harness) Update(tag int, class string, p props.Map) {
	h.t.Helper()
	if err := h.ui.UpdateView(tag, class, p); err != nil {
		h.t.Fatalf("update %d: %v", tag, err)
	}
}

// SetChildren sets the initial children of tag.
func (h *Harness) SetChildren(tag int, children ...int) {
	h.t.Helper()
	if err := h.ui.SetChildren(tag, children); err != nil {
		h.t.Fatalf("set children of %d: %v", tag, err)
	}
}

// ManageChildren edits the children of tag.
func (h *Harness) ManageChildren(tag int, moveFrom, moveTo, addChildTags, addAtIndices, removeFrom []int) {
	h.t.Helper()
	if err := h.ui.ManageChildren(tag, moveFrom, moveTo, addChildTags, addAtIndices, removeFrom); err != nil {
		h.t.Fatalf("manage children of %d: %v", tag, err)
	}
}

// Commit closes the current transaction and returns its ID.
func (h *Harness) Commit() int {
	h.nextTransaction++
	h.ui.DispatchViewUpdates(h.nextTransaction)
	return h.nextTransaction
}

// Pump runs posted tasks and one frame, then advances the clock by a frame
// interval. It returns the number of operations executed.
func (h *Harness) Pump() int {
	before := len(h.rec.Operations())
	h.ch.RunPosted()
	h.ch.DoFrame()
	h.ch.RunPosted()
	h.clock.Advance(queue.DefaultFrameInterval)
	return len(h.rec.Operations()) - before
}

// CommitAndPump commits and runs a frame.
func (h *Harness) CommitAndPump() int {
	h.Commit()
	return h.Pump()
}

// NativeShape returns the shape of the mounted tree under tag.
func (h *Harness) NativeShape(tag int) Shape {
	h.t.Helper()
	shape, err := NativeShape(h.tree, tag)
	if err != nil {
		h.t.Fatalf("native shape of %d: %v", tag, err)
	}
	return shape
}

// ShadowNativeShape returns the native tree the shadow tree under tag
// expects.
func (h *Harness) ShadowNativeShape(tag int) Shape {
	h.t.Helper()
	var shape Shape
	if err := h.ui.InspectNode(tag, func(n *shadow.Node) { shape = ShadowNativeShape(n) }); err != nil {
		h.t.Fatalf("shadow node %d: %v", tag, err)
	}
	return shape
}

// LogicalShape returns the authored tree under tag.
func (h *Harness) LogicalShape(tag int) Shape {
	h.t.Helper()
	var shape Shape
	if err := h.ui.InspectNode(tag, func(n *shadow.Node) { shape = LogicalShape(n) }); err != nil {
		h.t.Fatalf("shadow node %d: %v", tag, err)
	}
	return shape
}

// AssertConsistent checks that the mounted tree under rootTag matches the
// native child lists of the shadow tree and that native child totals add
// up.
func (h *Harness) AssertConsistent(rootTag int) bool {
	h.t.Helper()
	ok := AssertShape(h.t, h.ShadowNativeShape(rootTag), h.NativeShape(rootTag))
	err := h.ui.InspectNode(rootTag, func(n *shadow.Node) { ok = CheckNativeTotals(h.t, n) && ok })
	if err != nil {
		h.t.Fatalf("shadow node %d: %v", rootTag, err)
	}
	return ok
}

// CaptureSnapshot captures the shadow and native trees of rootTag.
func (h *Harness) CaptureSnapshot(rootTag int) *Snapshot {
	h.t.Helper()
	s, err := h.ui.ShadowSnapshot(rootTag)
	if err != nil {
		h.t.Fatalf("shadow snapshot of %d: %v", rootTag, err)
	}
	n, err := h.tree.Snapshot(rootTag)
	if err != nil {
		h.t.Fatalf("native snapshot of %d: %v", rootTag, err)
	}
	return &Snapshot{Shadow: s, Native: n}
}
