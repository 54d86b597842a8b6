// Package uimanager is the entry point for tree edits. It applies edit
// intents to the shadow tree, runs the flattening optimizer, and at each
// commit solves layout and hands the resulting native operations to the
// mutation queue.
//
// Every method takes a single lock, so a UIManager can be driven from any
// goroutine. Callbacks passed in (layout events, measure results, UI
// blocks) are never invoked with the lock held.
package uimanager

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/go-drift/viewtree/pkg/errors"
	"github.com/go-drift/viewtree/pkg/layout"
	"github.com/go-drift/viewtree/pkg/native"
	"github.com/go-drift/viewtree/pkg/optimizer"
	"github.com/go-drift/viewtree/pkg/props"
	"github.com/go-drift/viewtree/pkg/queue"
	"github.com/go-drift/viewtree/pkg/shadow"
)

// ImplicitTransaction is the transaction ID of commits the manager starts
// on its own.
const ImplicitTransaction = -1

// DefaultPoolSize bounds the layout node free list.
const DefaultPoolSize = 256

// LayoutEvent reports the new screen geometry of a node with an onLayout
// handler.
type LayoutEvent struct {
	Tag    int
	X, Y   int
	Width  int
	Height int
}

// Options configures a UIManager. Zero fields take defaults.
type Options struct {
	// Types resolves view classes. Defaults to shadow.DefaultTypes().
	Types *shadow.TypeRegistry
	// Solver computes layout. Defaults to layout.FlexSolver.
	Solver layout.Solver
	// PoolSize bounds the layout node free list.
	PoolSize int
	// Clock times commits. Defaults to queue.SystemClock.
	Clock queue.Clock
}

type rootSpec struct {
	width, height float64
}

// UIManager owns the shadow tree of every root registered with it.
type UIManager struct {
	mu sync.Mutex

	registry  *shadow.Registry
	types     *shadow.TypeRegistry
	optimizer *optimizer.Optimizer
	queue     *queue.Queue
	solver    layout.Solver
	pool      *layout.Pool
	clock     queue.Clock

	rootSpecs map[int]rootSpec

	layoutUpdateListener func(rootTag int)
	layoutEventHandler   func(LayoutEvent)

	lastLayoutTime time.Duration
	invalidated    bool
}

// New returns a manager emitting native operations to q.
func New(q *queue.Queue, opts Options) *UIManager {
	if opts.Types == nil {
		opts.Types = shadow.DefaultTypes()
	}
	if opts.Solver == nil {
		opts.Solver = layout.FlexSolver{}
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = DefaultPoolSize
	}
	if opts.Clock == nil {
		opts.Clock = queue.SystemClock
	}
	registry := shadow.NewRegistry()
	return &UIManager{
		registry:  registry,
		types:     opts.Types,
		optimizer: optimizer.New(q, registry),
		queue:     q,
		solver:    opts.Solver,
		pool:      layout.NewPool(opts.PoolSize),
		clock:     opts.Clock,
		rootSpecs: make(map[int]rootSpec),
	}
}

// Queue returns the mutation queue the manager feeds.
func (m *UIManager) Queue() *queue.Queue { return m.queue }

// Types returns the view class registry.
func (m *UIManager) Types() *shadow.TypeRegistry { return m.types }

// RegisterRootView adds a shadow root for tag and mounts view as its
// native counterpart. A view with a non-empty frame also sets the root
// size.
func (m *UIManager) RegisterRootView(tag int, view native.ViewGroup, ctx native.ThemedContext) error {
	const op = "uimanager.UIManager.RegisterRootView"
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalidated {
		return nil
	}

	typ, err := m.types.Lookup(shadow.ClassRoot)
	if err != nil {
		typ = &shadow.Type{Name: shadow.ClassRoot}
	}
	ctx.RootTag = tag
	root := shadow.NewNode(tag, typ, m.pool.Acquire())
	root.SetRootTag(tag)
	root.SetThemedContext(ctx)
	if err := m.registry.AddRootNode(root); err != nil {
		m.pool.Release(root.DetachLayoutNode())
		return err
	}
	if err := m.queue.Tree().AddRootView(tag, view); err != nil {
		_ = m.registry.RemoveRootNode(tag)
		m.pool.Release(root.DetachLayoutNode())
		return err
	}
	if f := view.Frame(); f.Width > 0 && f.Height > 0 {
		m.setRootSpec(root, float64(f.Width), float64(f.Height))
	}
	errors.Logger().Debug("root view registered", "op", op, "tag", tag)
	return nil
}

// RemoveRootView tears down the shadow tree of a root and schedules the
// removal of its native views.
func (m *UIManager) RemoveRootView(tag int) error {
	const op = "uimanager.UIManager.RemoveRootView"
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalidated {
		return nil
	}
	if !m.registry.IsRoot(tag) {
		return errors.IllegalOperation(op, tag, "view with tag %d is not registered as a root view", tag)
	}
	root, _ := m.registry.Lookup(tag)
	m.removeShadowNode(root)
	delete(m.rootSpecs, tag)
	m.queue.EnqueueRemoveRootView(tag)
	return nil
}

// UpdateRootView sets the size a root is laid out at. Roots are not laid
// out until they have a size. Unknown tags are ignored.
func (m *UIManager) UpdateRootView(tag int, width, height float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalidated {
		return
	}
	root, ok := m.registry.Lookup(tag)
	if !ok || !m.registry.IsRoot(tag) {
		errors.Logger().Warn("tried to update size of non-existent root view", "tag", tag)
		return
	}
	m.setRootSpec(root, width, height)
}

func (m *UIManager) setRootSpec(root *shadow.Node, width, height float64) {
	if prev, ok := m.rootSpecs[root.Tag()]; ok && prev.width == width && prev.height == height {
		return
	}
	m.rootSpecs[root.Tag()] = rootSpec{width: width, height: height}
	root.Dirty()
	root.MarkUpdated()
}

// ResolveRootTag returns the root a view was created under. Roots resolve
// to themselves.
func (m *UIManager) ResolveRootTag(tag int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	node, ok := m.registry.Lookup(tag)
	if !ok {
		return 0, errors.NotFound("uimanager.UIManager.ResolveRootTag", tag)
	}
	return node.RootTag(), nil
}

// CreateView adds a shadow node of class under the root rootTag and
// applies its initial properties.
func (m *UIManager) CreateView(tag int, class string, rootTag int, p props.Map) error {
	const op = "uimanager.UIManager.CreateView"
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalidated {
		return nil
	}

	root, ok := m.registry.Lookup(rootTag)
	if !ok || !m.registry.IsRoot(rootTag) {
		return errors.NotFound(op, rootTag)
	}
	typ, err := m.types.Lookup(class)
	if err != nil {
		return errors.IllegalOperation(op, tag, "got unknown view type %q", class)
	}
	if _, exists := m.registry.Lookup(tag); exists {
		return errors.IllegalOperation(op, tag, "view with tag %d already exists", tag)
	}

	var ln *layout.Node
	if !typ.Virtual {
		ln = m.pool.Acquire()
	}
	node := shadow.NewNode(tag, typ, ln)
	node.SetRootTag(rootTag)
	node.SetThemedContext(root.ThemedContext())
	if err := m.registry.AddNode(node); err != nil {
		m.pool.Release(node.DetachLayoutNode())
		return err
	}
	m.applyProperties(op, node, p)
	if !node.IsVirtual() {
		m.optimizer.HandleCreateView(node, root.ThemedContext(), p)
	}
	return nil
}

// UpdateView applies changed properties to an existing view.
func (m *UIManager) UpdateView(tag int, class string, p props.Map) error {
	const op = "uimanager.UIManager.UpdateView"
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalidated {
		return nil
	}
	if _, err := m.types.Lookup(class); err != nil {
		return errors.IllegalOperation(op, tag, "got unknown view type %q", class)
	}
	node, ok := m.registry.Lookup(tag)
	if !ok {
		return errors.IllegalOperation(op, tag, "trying to update non-existent view with tag %d", tag)
	}
	if len(p) == 0 {
		return nil
	}
	m.applyProperties(op, node, p)
	if !node.IsVirtual() {
		m.optimizer.HandleUpdateView(node, p)
	}
	return nil
}

// ForceNativeView gives the view for tag a native view of its own if it was
// flattened, for callers that need to measure it or send it commands. The
// view stays native for the rest of its life.
func (m *UIManager) ForceNativeView(tag int) error {
	const op = "uimanager.UIManager.ForceNativeView"
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalidated {
		return nil
	}
	node, ok := m.registry.Lookup(tag)
	if !ok {
		return errors.IllegalOperation(op, tag, "trying to force non-existent view with tag %d", tag)
	}
	m.optimizer.HandleForceViewToBeNonLayoutOnly(node)
	return nil
}

// applyProperties runs the shadow setters. A value a setter rejects is
// reported and the remaining properties still apply.
func (m *UIManager) applyProperties(op string, node *shadow.Node, p props.Map) {
	if err := node.UpdateProperties(p); err != nil {
		errors.Report(errors.IllegalOperation(op, node.Tag(), "%v", err))
	}
}

// ManageChildren edits the children of tag. moveFrom and removeFrom index
// the children as they are before the edit; moveTo and addAtIndices index
// them as they are after it. Moved children keep their views, removed
// children are destroyed.
func (m *UIManager) ManageChildren(tag int, moveFrom, moveTo, addChildTags, addAtIndices, removeFrom []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalidated {
		return nil
	}
	return m.manageChildren(tag, moveFrom, moveTo, addChildTags, addAtIndices, removeFrom)
}

func (m *UIManager) manageChildren(tag int, moveFrom, moveTo, addChildTags, addAtIndices, removeFrom []int) error {
	const op = "uimanager.UIManager.ManageChildren"
	node, ok := m.registry.Lookup(tag)
	if !ok {
		return errors.NotFound(op, tag)
	}
	if len(moveFrom) != len(moveTo) {
		return errors.IllegalOperation(op, tag, "size of moveFrom (%d) != size of moveTo (%d)", len(moveFrom), len(moveTo))
	}
	if len(addChildTags) != len(addAtIndices) {
		return errors.IllegalOperation(op, tag, "size of addChildTags (%d) != size of addAtIndices (%d)", len(addChildTags), len(addAtIndices))
	}

	childAt := func(i int) (*shadow.Node, error) {
		if i < 0 || i >= node.ChildCount() {
			return nil, errors.IllegalOperation(op, tag, "index %d out of bounds for %d children", i, node.ChildCount())
		}
		return node.ChildAt(i), nil
	}

	// Moves are treated as a removal plus an add.
	n := len(moveFrom) + len(removeFrom)
	viewsToAdd := make([]native.ViewAtIndex, 0, len(moveFrom)+len(addChildTags))
	indicesToRemove := make([]int, 0, n)
	tagsToRemove := make([]int, 0, n)
	tagsToDelete := make([]int, 0, len(removeFrom))

	for i, from := range moveFrom {
		child, err := childAt(from)
		if err != nil {
			return err
		}
		viewsToAdd = append(viewsToAdd, native.ViewAtIndex{Tag: child.Tag(), Index: moveTo[i]})
		indicesToRemove = append(indicesToRemove, from)
		tagsToRemove = append(tagsToRemove, child.Tag())
	}
	for i, t := range addChildTags {
		viewsToAdd = append(viewsToAdd, native.ViewAtIndex{Tag: t, Index: addAtIndices[i]})
	}
	for _, idx := range removeFrom {
		child, err := childAt(idx)
		if err != nil {
			return err
		}
		indicesToRemove = append(indicesToRemove, idx)
		tagsToRemove = append(tagsToRemove, child.Tag())
		tagsToDelete = append(tagsToDelete, child.Tag())
	}

	// Removals run from the highest index down and adds from the lowest up,
	// so every index stays valid while the edit is applied.
	slices.SortStableFunc(viewsToAdd, func(a, b native.ViewAtIndex) int { return cmp.Compare(a.Index, b.Index) })
	slices.Sort(indicesToRemove)
	for i := 1; i < len(indicesToRemove); i++ {
		if indicesToRemove[i] == indicesToRemove[i-1] {
			return errors.IllegalOperation(op, tag, "repeated indices in removal list for view tag %d", tag)
		}
	}

	count := node.ChildCount() - len(indicesToRemove)
	for _, v := range viewsToAdd {
		child, ok := m.registry.Lookup(v.Tag)
		if !ok {
			return errors.IllegalOperation(op, v.Tag, "trying to add unknown view tag %d", v.Tag)
		}
		if slices.Contains(tagsToDelete, v.Tag) {
			return errors.IllegalOperation(op, v.Tag, "view %d is both removed and added", v.Tag)
		}
		if p := child.Parent(); p != nil && (p != node || !slices.Contains(tagsToRemove, v.Tag)) {
			return errors.IllegalOperation(op, v.Tag, "view %d already has parent %d", v.Tag, p.Tag())
		}
		if v.Index < 0 || v.Index > count {
			return errors.IllegalOperation(op, tag, "add index %d out of bounds for %d children", v.Index, count)
		}
		count++
	}

	for i := len(indicesToRemove) - 1; i >= 0; i-- {
		if _, err := node.RemoveChildAt(indicesToRemove[i]); err != nil {
			return err
		}
	}
	for _, v := range viewsToAdd {
		child, _ := m.registry.Lookup(v.Tag)
		if err := node.AddChildAt(child, v.Index); err != nil {
			return err
		}
	}

	if !node.IsVirtual() && !node.IsVirtualAnchor() {
		if err := m.optimizer.HandleManageChildren(node, tagsToRemove, viewsToAdd, tagsToDelete); err != nil {
			return err
		}
	}
	for _, t := range tagsToDelete {
		if child, ok := m.registry.Lookup(t); ok {
			m.removeShadowNode(child)
		}
	}
	return nil
}

// SetChildren sets the initial children of a view that has none.
func (m *UIManager) SetChildren(tag int, childTags []int) error {
	const op = "uimanager.UIManager.SetChildren"
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalidated {
		return nil
	}

	node, ok := m.registry.Lookup(tag)
	if !ok {
		return errors.NotFound(op, tag)
	}
	children := make([]*shadow.Node, 0, len(childTags))
	for _, t := range childTags {
		child, ok := m.registry.Lookup(t)
		if !ok {
			return errors.IllegalOperation(op, t, "trying to add unknown view tag %d", t)
		}
		if p := child.Parent(); p != nil {
			return errors.IllegalOperation(op, t, "view %d already has parent %d", t, p.Tag())
		}
		children = append(children, child)
	}
	for i, child := range children {
		if err := node.AddChildAt(child, i); err != nil {
			return err
		}
	}
	if !node.IsVirtual() && !node.IsVirtualAnchor() {
		m.optimizer.HandleSetChildren(node, children)
	}
	return nil
}

// ReplaceExistingNonRootView puts newTag in the place of oldTag and
// destroys oldTag.
func (m *UIManager) ReplaceExistingNonRootView(oldTag, newTag int) error {
	const op = "uimanager.UIManager.ReplaceExistingNonRootView"
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalidated {
		return nil
	}

	old, ok := m.registry.Lookup(oldTag)
	if !ok {
		return errors.IllegalOperation(op, oldTag, "trying to replace unknown view tag %d", oldTag)
	}
	parent := old.Parent()
	if parent == nil {
		return errors.IllegalOperation(op, oldTag, "node %d is not attached to a parent", oldTag)
	}
	idx := parent.IndexOf(old)
	if idx < 0 {
		return errors.Inconsistent(op, oldTag, "node %d not found among the children of %d", oldTag, parent.Tag())
	}
	return m.manageChildren(parent.Tag(), nil, nil, []int{newTag}, []int{idx}, []int{idx})
}

// RemoveSubviewsFromContainer destroys every child of tag.
func (m *UIManager) RemoveSubviewsFromContainer(tag int) error {
	const op = "uimanager.UIManager.RemoveSubviewsFromContainer"
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalidated {
		return nil
	}

	node, ok := m.registry.Lookup(tag)
	if !ok {
		return errors.IllegalOperation(op, tag, "trying to remove subviews of an unknown view tag %d", tag)
	}
	indices := make([]int, node.ChildCount())
	for i := range indices {
		indices[i] = i
	}
	return m.manageChildren(tag, nil, nil, nil, nil, indices)
}

// removeShadowNode unregisters node and its whole subtree and returns
// their layout nodes to the pool.
func (m *UIManager) removeShadowNode(node *shadow.Node) {
	var released []*layout.Node
	m.removeShadowNodeRecursive(node, &released)
	for _, ln := range released {
		m.pool.Release(ln)
	}
}

func (m *UIManager) removeShadowNodeRecursive(node *shadow.Node, released *[]*layout.Node) {
	node.RemoveAllNativeChildren()
	if m.registry.IsRoot(node.Tag()) {
		_ = m.registry.RemoveRootNode(node.Tag())
	} else {
		_ = m.registry.RemoveNode(node.Tag())
	}
	for i := node.ChildCount() - 1; i >= 0; i-- {
		m.removeShadowNodeRecursive(node.ChildAt(i), released)
	}
	node.RemoveAllChildren()
	if ln := node.DetachLayoutNode(); ln != nil {
		*released = append(*released, ln)
	}
}

// UpdateNodeSize fixes the size of a view, typically one whose content is
// measured outside the engine, and commits if nothing else is pending.
func (m *UIManager) UpdateNodeSize(tag int, width, height float64) {
	m.mu.Lock()
	if m.invalidated {
		m.mu.Unlock()
		return
	}
	node, ok := m.registry.Lookup(tag)
	if !ok || node.LayoutNode() == nil {
		m.mu.Unlock()
		errors.Logger().Warn("tried to update size of non-existent view", "tag", tag)
		return
	}
	node.LayoutNode().UpdateStyle(func(s *layout.Style) {
		s.Width = width
		s.Height = height
	})
	node.MarkUpdated()
	events := m.dispatchViewUpdatesIfNeeded()
	handler := m.layoutEventHandler
	m.mu.Unlock()
	deliver(handler, events)
}

// SetViewLocalData attaches environment data to a view and commits if
// nothing else is pending.
func (m *UIManager) SetViewLocalData(tag int, data any) {
	m.mu.Lock()
	if m.invalidated {
		m.mu.Unlock()
		return
	}
	node, ok := m.registry.Lookup(tag)
	if !ok {
		m.mu.Unlock()
		errors.Logger().Warn("attempt to set local data for view with unknown tag", "tag", tag)
		return
	}
	node.SetLocalData(data)
	events := m.dispatchViewUpdatesIfNeeded()
	handler := m.layoutEventHandler
	m.mu.Unlock()
	deliver(handler, events)
}

func (m *UIManager) dispatchViewUpdatesIfNeeded() []LayoutEvent {
	if !m.queue.IsEmpty() {
		return nil
	}
	return m.dispatchViewUpdates(ImplicitTransaction)
}

// MeasureLayout returns the frame of tag relative to ancestorTag, from the
// last committed layout.
func (m *UIManager) MeasureLayout(tag, ancestorTag int) (native.Rect, error) {
	const op = "uimanager.UIManager.MeasureLayout"
	m.mu.Lock()
	defer m.mu.Unlock()

	node, ok := m.registry.Lookup(tag)
	if !ok {
		return native.Rect{}, errors.IllegalOperation(op, tag, "tag %d does not exist", tag)
	}
	ancestor, ok := m.registry.Lookup(ancestorTag)
	if !ok {
		return native.Rect{}, errors.IllegalOperation(op, ancestorTag, "tag %d does not exist", ancestorTag)
	}
	if node != ancestor && !node.IsDescendantOf(ancestor) {
		return native.Rect{}, errors.IllegalOperation(op, tag, "tag %d is not an ancestor of tag %d", ancestorTag, tag)
	}
	return m.measureRelativeToVerifiedAncestor(op, node, ancestor)
}

// MeasureLayoutRelativeToParent returns the frame of tag relative to its
// parent.
func (m *UIManager) MeasureLayoutRelativeToParent(tag int) (native.Rect, error) {
	const op = "uimanager.UIManager.MeasureLayoutRelativeToParent"
	m.mu.Lock()
	defer m.mu.Unlock()

	node, ok := m.registry.Lookup(tag)
	if !ok {
		return native.Rect{}, errors.IllegalOperation(op, tag, "no view for tag %d exists", tag)
	}
	parent := node.Parent()
	if parent == nil {
		return native.Rect{}, errors.IllegalOperation(op, tag, "view with tag %d doesn't have a parent", tag)
	}
	return m.measureRelativeToVerifiedAncestor(op, node, parent)
}

func (m *UIManager) measureRelativeToVerifiedAncestor(op string, node, ancestor *shadow.Node) (native.Rect, error) {
	r := native.Rect{Width: node.ScreenWidth(), Height: node.ScreenHeight()}
	if node == ancestor || node.IsVirtual() {
		return r, nil
	}
	r.X, r.Y = node.ScreenX(), node.ScreenY()
	for p := node.Parent(); ; p = p.Parent() {
		if err := m.assertNoCustomLayout(op, p); err != nil {
			return native.Rect{}, err
		}
		if p == ancestor {
			return r, nil
		}
		r.X += p.ScreenX()
		r.Y += p.ScreenY()
	}
}

func (m *UIManager) assertNoCustomLayout(op string, node *shadow.Node) error {
	needs, err := m.queue.Tree().NeedsCustomLayoutForChildren(node.ViewClass())
	if err == nil && needs {
		return errors.IllegalOperation(op, node.Tag(),
			"trying to measure a view relative to %s, which lays out its children itself", node)
	}
	return nil
}

// Measure reports the frame of a mounted view relative to its root. cb runs
// on the consumer once the operations enqueued before it have run.
func (m *UIManager) Measure(tag int, cb queue.MeasureCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.invalidated {
		m.queue.EnqueueMeasure(tag, cb)
	}
}

// MeasureInWindow is Measure with the root origin added.
func (m *UIManager) MeasureInWindow(tag int, cb queue.MeasureCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.invalidated {
		m.queue.EnqueueMeasureInWindow(tag, cb)
	}
}

// ViewIsDescendantOf reports whether ancestorTag is a logical ancestor of
// tag. Unknown tags are never descendants.
func (m *UIManager) ViewIsDescendantOf(tag, ancestorTag int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	node, ok := m.registry.Lookup(tag)
	if !ok {
		return false
	}
	ancestor, ok := m.registry.Lookup(ancestorTag)
	if !ok {
		return false
	}
	return node.IsDescendantOf(ancestor)
}

// DispatchViewManagerCommand sends an imperative command to a view. An
// unknown tag is an error in debug mode and a logged no-op otherwise.
func (m *UIManager) DispatchViewManagerCommand(tag int, command string, args []any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invalidated {
		return nil
	}
	if err := m.checkOrAssertViewExists(tag, "dispatchViewManagerCommand"); err != nil {
		return err
	}
	if _, ok := m.registry.Lookup(tag); ok {
		m.queue.EnqueueDispatchCommand(tag, command, args)
	}
	return nil
}

// SendAccessibilityEvent asks the view for tag to announce eventType.
func (m *UIManager) SendAccessibilityEvent(tag, eventType int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.invalidated {
		m.queue.EnqueueSendAccessibilityEvent(tag, eventType)
	}
}

func (m *UIManager) checkOrAssertViewExists(tag int, what string) error {
	if _, ok := m.registry.Lookup(tag); ok {
		return nil
	}
	err := errors.IllegalOperation("uimanager.UIManager."+what, tag, "unable to execute %s on view with tag %d, its shadow node no longer exists", what, tag)
	if errors.DebugMode() {
		return err
	}
	errors.Logger().Warn(err.Error())
	return nil
}

// AddUIBlock runs block on the consumer after the operations of the
// current transaction.
func (m *UIManager) AddUIBlock(block queue.UIBlock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.invalidated {
		m.queue.EnqueueUIBlock(block)
	}
}

// PrependUIBlock runs block on the consumer before the operations of the
// current transaction.
func (m *UIManager) PrependUIBlock(block queue.UIBlock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.invalidated {
		m.queue.PrependUIBlock(block)
	}
}

// SetLayoutUpdateListener installs fn, called on the consumer after the
// layout operations of each root have run.
func (m *UIManager) SetLayoutUpdateListener(fn func(rootTag int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layoutUpdateListener = fn
}

// RemoveLayoutUpdateListener removes the layout update listener.
func (m *UIManager) RemoveLayoutUpdateListener() {
	m.SetLayoutUpdateListener(nil)
}

// SetLayoutEventHandler installs fn, called after each commit for every
// onLayout node whose screen frame changed.
func (m *UIManager) SetLayoutEventHandler(fn func(LayoutEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layoutEventHandler = fn
}

// DispatchViewUpdates commits the current transaction: it solves layout
// for every sized root, emits the resulting geometry and hands the batch
// to the queue. transactionID only labels the batch.
func (m *UIManager) DispatchViewUpdates(transactionID int) {
	m.mu.Lock()
	if m.invalidated {
		m.mu.Unlock()
		return
	}
	events := m.dispatchViewUpdates(transactionID)
	handler := m.layoutEventHandler
	m.mu.Unlock()
	deliver(handler, events)
}

func deliver(handler func(LayoutEvent), events []LayoutEvent) {
	if handler == nil {
		return
	}
	for _, e := range events {
		handler(e)
	}
}

func (m *UIManager) dispatchViewUpdates(transactionID int) []LayoutEvent {
	commitStart := m.clock.Now()
	var events []LayoutEvent
	var layoutTime time.Duration

	for _, tag := range m.registry.RootTags() {
		spec, ok := m.rootSpecs[tag]
		if !ok {
			continue
		}
		root, _ := m.registry.Lookup(tag)
		m.notifyBeforeLayout(root)

		// Unchanged ancestors of a resized node report no new layout, so a
		// relaid tree is walked in full.
		relaid := root.IsDirty()
		start := m.clock.Now()
		m.solver.Calculate(root.LayoutNode(), spec.width, spec.height)
		layoutTime += m.clock.Now().Sub(start)

		m.applyUpdatesRecursive(root, 0, 0, relaid, &events)
		if m.layoutUpdateListener != nil {
			m.queue.EnqueueLayoutUpdateFinished(tag, m.layoutUpdateListener)
		}
	}
	m.lastLayoutTime = layoutTime

	m.optimizer.OnBatchComplete()
	m.queue.DispatchViewUpdates(transactionID, commitStart, layoutTime)
	return events
}

func (m *UIManager) notifyBeforeLayout(node *shadow.Node) {
	if !node.HasUpdates() {
		return
	}
	for i := 0; i < node.ChildCount(); i++ {
		m.notifyBeforeLayout(node.ChildAt(i))
	}
	if fn := node.Type().BeforeLayout; fn != nil {
		fn(node)
	}
}

func (m *UIManager) applyUpdatesRecursive(node *shadow.Node, absoluteX, absoluteY float64, force bool, events *[]LayoutEvent) {
	if !force && !node.HasUpdates() {
		return
	}
	if !node.IsVirtualAnchor() {
		x, y := absoluteX+node.LayoutX(), absoluteY+node.LayoutY()
		for i := 0; i < node.ChildCount(); i++ {
			m.applyUpdatesRecursive(node.ChildAt(i), x, y, force, events)
		}
	}
	if !m.registry.IsRoot(node.Tag()) && !node.IsVirtual() {
		if m.dispatchUpdates(node, absoluteX, absoluteY) && node.ShouldNotifyOnLayout() {
			*events = append(*events, LayoutEvent{
				Tag:    node.Tag(),
				X:      node.ScreenX(),
				Y:      node.ScreenY(),
				Width:  node.ScreenWidth(),
				Height: node.ScreenHeight(),
			})
		}
	}
	node.MarkUpdateSeen()
}

// dispatchUpdates emits the extra data and the geometry of one node and
// reports whether its screen frame changed.
func (m *UIManager) dispatchUpdates(node *shadow.Node, absoluteX, absoluteY float64) bool {
	if node.HasUnseenUpdates() && node.NativeKind() != shadow.KindNone {
		if fn := node.Type().ExtraUpdates; fn != nil {
			if data, ok := fn(node); ok {
				m.queue.EnqueueUpdateExtraData(node.Tag(), data)
			}
		}
	}
	if !node.UpdateScreenFrame(absoluteX, absoluteY) {
		return false
	}
	m.optimizer.HandleUpdateLayout(node)
	return true
}

// OnHostResume restarts frame callbacks.
func (m *UIManager) OnHostResume() {
	m.queue.ResumeFrameCallback()
}

// OnHostPause stops frame callbacks. Committed batches are flushed on the
// consumer instead of waiting for a frame.
func (m *UIManager) OnHostPause() {
	m.queue.PauseFrameCallback()
}

// OnHostDestroy stops frame callbacks for good.
func (m *UIManager) OnHostDestroy() {
	m.queue.PauseFrameCallback()
}

// Invalidate turns every later call into a no-op.
func (m *UIManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = true
	m.layoutUpdateListener = nil
	m.layoutEventHandler = nil
}

// ShadowSnapshot captures the shadow tree under rootTag.
func (m *UIManager) ShadowSnapshot(rootTag int) (*shadow.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	root, ok := m.registry.Lookup(rootTag)
	if !ok {
		return nil, errors.NotFound("uimanager.UIManager.ShadowSnapshot", rootTag)
	}
	return root.Snapshot(), nil
}

// DumpShadowTree renders the shadow tree under rootTag as text.
func (m *UIManager) DumpShadowTree(rootTag int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	root, ok := m.registry.Lookup(rootTag)
	if !ok {
		return "", errors.NotFound("uimanager.UIManager.DumpShadowTree", rootTag)
	}
	return root.Dump(), nil
}

// InspectNode runs fn with the shadow node for tag while holding the
// manager lock. fn must not modify the node or call back into m.
func (m *UIManager) InspectNode(tag int, fn func(*shadow.Node)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	node, ok := m.registry.Lookup(tag)
	if !ok {
		return errors.NotFound("uimanager.UIManager.InspectNode", tag)
	}
	fn(node)
	return nil
}

// RootTags returns the registered roots in registration order.
func (m *UIManager) RootTags() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.RootTags()
}

// Len returns the number of live shadow nodes, roots included.
func (m *UIManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Len()
}

// LastLayoutTime returns the time the last commit spent in the solver.
func (m *UIManager) LastLayoutTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastLayoutTime
}

// ProfileNextBatch collects perf counters for the next non-empty commit.
func (m *UIManager) ProfileNextBatch() {
	m.queue.ProfileNextBatch()
}

// ProfiledBatchPerfCounters returns the counters of the last profiled
// commit.
func (m *UIManager) ProfiledBatchPerfCounters() queue.PerfCounters {
	return m.queue.ProfiledBatchPerfCounters()
}
