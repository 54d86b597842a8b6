// Package optimizer decides which shadow nodes need a native view and
// translates shadow tree edits into the smallest set of native tree
// operations.
//
// Plain View nodes whose properties only affect layout are flattened: they
// get no native view, and their children are hoisted into the nearest
// ancestor that has one. Nodes of a type that cannot host native children
// (KindLeaf) hoist their children the same way, placing them right after
// the leaf itself. Geometry of flattened nodes is folded into the offsets of
// their native descendants.
package optimizer

import (
	"math"
	"slices"

	"github.com/go-drift/viewtree/pkg/errors"
	"github.com/go-drift/viewtree/pkg/native"
	"github.com/go-drift/viewtree/pkg/props"
	"github.com/go-drift/viewtree/pkg/shadow"
)

// Sink receives the native tree operations computed by the optimizer.
type Sink interface {
	EnqueueCreateView(ctx native.ThemedContext, tag int, class string, initial props.Map)
	EnqueueUpdateProperties(tag int, m props.Map)
	EnqueueManageChildren(tag int, indicesToRemove []int, viewsToAdd []native.ViewAtIndex, tagsToDelete []int)
	EnqueueSetChildren(tag int, childTags []int)
	EnqueueUpdateLayout(parentTag, tag, x, y, width, height int)
}

// Optimizer keeps the native child lists of the shadow tree in sync with
// the logical tree. It is not safe for concurrent use; the orchestrator
// serializes all calls.
type Optimizer struct {
	sink     Sink
	registry *shadow.Registry

	// tagsWithLayoutVisited holds the nodes whose layout was dispatched in
	// the current batch.
	tagsWithLayoutVisited map[int]struct{}

	// settingChildren is the node whose native children are being collected
	// into a single set children operation.
	settingChildren *shadow.Node
}

// New returns an optimizer emitting to sink and resolving tags in registry.
func New(sink Sink, registry *shadow.Registry) *Optimizer {
	return &Optimizer{
		sink:                  sink,
		registry:              registry,
		tagsWithLayoutVisited: make(map[int]struct{}),
	}
}

// HandleCreateView classifies a new node and emits its create operation
// unless it is flattened.
func (o *Optimizer) HandleCreateView(node *shadow.Node, ctx native.ThemedContext, initial props.Map) {
	isLayoutOnly := node.ViewClass() == shadow.ClassView && props.IsLayoutOnlyAndCollapsable(initial)
	node.SetIsLayoutOnly(isLayoutOnly)

	if node.NativeKind() != shadow.KindNone {
		o.sink.EnqueueCreateView(ctx, node.Tag(), node.ViewClass(), initial)
	}
}

// HandleForceViewToBeNonLayoutOnly gives a flattened node a native view.
// Nodes that already have one are left alone.
func (o *Optimizer) HandleForceViewToBeNonLayoutOnly(node *shadow.Node) {
	if node.IsLayoutOnly() {
		o.transitionLayoutOnlyViewToNativeView(node, nil)
	}
}

// HandleUpdateView forwards changed properties, unflattening the node when
// the change gives it a visual effect.
func (o *Optimizer) HandleUpdateView(node *shadow.Node, m props.Map) {
	needsToLeaveLayoutOnly := node.IsLayoutOnly() && !props.IsLayoutOnlyAndCollapsable(m)
	if needsToLeaveLayoutOnly {
		o.transitionLayoutOnlyViewToNativeView(node, m)
	} else if !node.IsLayoutOnly() {
		o.sink.EnqueueUpdateProperties(node.Tag(), m)
	}
}

// HandleManageChildren mirrors a child edit that was already applied to
// the logical tree. tagsToRemove lists the removed children, tagsToDelete
// the subset that is destroyed rather than moved.
func (o *Optimizer) HandleManageChildren(node *shadow.Node, tagsToRemove []int, viewsToAdd []native.ViewAtIndex, tagsToDelete []int) error {
	const op = "optimizer.HandleManageChildren"
	for _, tag := range tagsToRemove {
		toRemove, ok := o.registry.Lookup(tag)
		if !ok {
			return errors.IllegalOperation(op, node.Tag(), "trying to remove unknown view tag %d", tag)
		}
		o.removeNodeFromParent(toRemove, slices.Contains(tagsToDelete, tag))
	}
	for _, add := range viewsToAdd {
		toAdd, ok := o.registry.Lookup(add.Tag)
		if !ok {
			return errors.IllegalOperation(op, node.Tag(), "trying to add unknown view tag %d", add.Tag)
		}
		o.addNodeToNode(node, toAdd, add.Index)
	}
	return nil
}

// HandleSetChildren mirrors the initial children of a node. A native
// parent that hosts nothing yet receives all of its native children,
// hoisted ones included, in one set children operation.
func (o *Optimizer) HandleSetChildren(node *shadow.Node, children []*shadow.Node) {
	if node.NativeKind() != shadow.KindParent || node.NativeChildCount() > 0 {
		for i, child := range children {
			o.addNodeToNode(node, child, i)
		}
		return
	}

	o.settingChildren = node
	for i, child := range children {
		o.addNodeToNode(node, child, i)
	}
	o.settingChildren = nil

	if node.NativeChildCount() == 0 {
		return
	}
	tags := make([]int, node.NativeChildCount())
	for i := range tags {
		tags[i] = node.NativeChildAt(i).Tag()
	}
	o.sink.EnqueueSetChildren(node.Tag(), tags)
}

// HandleUpdateLayout emits the geometry of node, or of its closest native
// descendants when node is flattened.
func (o *Optimizer) HandleUpdateLayout(node *shadow.Node) {
	o.applyLayoutBase(node)
}

// OnBatchComplete resets per-batch state. Call it once per transaction,
// after layout dispatch.
func (o *Optimizer) OnBatchComplete() {
	clear(o.tagsWithLayoutVisited)
}

func (o *Optimizer) visited(tag int) bool {
	_, ok := o.tagsWithLayoutVisited[tag]
	return ok
}

// walkUpUntilNativeKindIsParent finds the nearest KindParent ancestor of
// node and the index in its native children that corresponds to
// indexInNativeChildren of node. It returns nil when there is none yet.
func walkUpUntilNativeKindIsParent(node *shadow.Node, indexInNativeChildren int) (*shadow.Node, int) {
	for node.NativeKind() != shadow.KindParent {
		parent := node.Parent()
		if parent == nil {
			return nil, 0
		}
		if node.NativeKind() == shadow.KindLeaf {
			indexInNativeChildren++
		}
		indexInNativeChildren += parent.NativeOffsetForChild(node)
		node = parent
	}
	return node, indexInNativeChildren
}

func (o *Optimizer) addNodeToNode(parent, child *shadow.Node, index int) {
	indexInNativeChildren := parent.NativeOffsetForChild(parent.ChildAt(index))
	if parent.NativeKind() != shadow.KindParent {
		parent, indexInNativeChildren = walkUpUntilNativeKindIsParent(parent, indexInNativeChildren)
		if parent == nil {
			// The subtree is not attached yet; it is added when it is.
			return
		}
	}

	if child.NativeKind() != shadow.KindNone {
		o.addNativeChild(parent, child, indexInNativeChildren)
	} else {
		o.addNonNativeChild(parent, child, indexInNativeChildren)
	}
}

// removeNodeFromParent detaches node, and for nodes that do not host their
// own native children the hoisted descendants too, from their native
// parents.
func (o *Optimizer) removeNodeFromParent(node *shadow.Node, shouldDelete bool) {
	if node.NativeKind() != shadow.KindParent {
		for i := node.ChildCount() - 1; i >= 0; i-- {
			o.removeNodeFromParent(node.ChildAt(i), shouldDelete)
		}
	}

	nativeParent := node.NativeParent()
	if nativeParent == nil {
		return
	}
	index := nativeParent.IndexOfNativeChild(node)
	nativeParent.RemoveNativeChildAt(index)

	var tagsToDelete []int
	if shouldDelete {
		tagsToDelete = []int{node.Tag()}
	}
	o.sink.EnqueueManageChildren(nativeParent.Tag(), []int{index}, nil, tagsToDelete)
}

func (o *Optimizer) addNonNativeChild(nativeParent, child *shadow.Node, index int) {
	o.addGrandchildren(nativeParent, child, index)
}

func (o *Optimizer) addNativeChild(parent, child *shadow.Node, index int) {
	parent.AddNativeChildAt(child, index)
	if parent != o.settingChildren {
		o.sink.EnqueueManageChildren(parent.Tag(), nil, []native.ViewAtIndex{{Tag: child.Tag(), Index: index}}, nil)
	}

	if child.NativeKind() != shadow.KindParent {
		o.addGrandchildren(parent, child, index+1)
	}
}

// addGrandchildren hoists the children of child into nativeParent starting
// at index.
func (o *Optimizer) addGrandchildren(nativeParent, child *shadow.Node, index int) {
	errors.Assert(child.NativeKind() != shadow.KindParent, "optimizer.addGrandchildren", child.Tag(), child.Dump,
		"%s hosts its own native children", child)

	currentIndex := index
	for i := 0; i < child.ChildCount(); i++ {
		grandchild := child.ChildAt(i)
		before := nativeParent.NativeChildCount()
		if grandchild.NativeKind() == shadow.KindNone {
			o.addNonNativeChild(nativeParent, grandchild, currentIndex)
		} else {
			o.addNativeChild(nativeParent, grandchild, currentIndex)
		}
		currentIndex += nativeParent.NativeChildCount() - before
	}
}

// applyLayoutBase accumulates the offsets of the ancestors between node and
// its nearest KindParent ancestor and dispatches the layout of node at that
// offset.
func (o *Optimizer) applyLayoutBase(node *shadow.Node) {
	tag := node.Tag()
	if o.visited(tag) {
		return
	}
	o.tagsWithLayoutVisited[tag] = struct{}{}

	x, y := node.ScreenX(), node.ScreenY()
	for parent := node.Parent(); parent != nil && parent.NativeKind() != shadow.KindParent; parent = parent.Parent() {
		// Virtual nodes have no layout of their own.
		if !parent.IsVirtual() {
			x += int(math.Round(parent.LayoutX()))
			y += int(math.Round(parent.LayoutY()))
		}
	}
	o.applyLayoutRecursive(node, x, y)
}

func (o *Optimizer) applyLayoutRecursive(node *shadow.Node, x, y int) {
	if node.NativeKind() != shadow.KindNone && node.NativeParent() != nil {
		o.sink.EnqueueUpdateLayout(node.NativeParent().Tag(), node.Tag(), x, y, node.ScreenWidth(), node.ScreenHeight())
		if node.NativeKind() == shadow.KindParent {
			return
		}
	}

	// Flattened nodes and leaves place their children in the native parent
	// they hoisted them into.
	for i := 0; i < node.ChildCount(); i++ {
		child := node.ChildAt(i)
		if o.visited(child.Tag()) {
			continue
		}
		o.tagsWithLayoutVisited[child.Tag()] = struct{}{}
		o.applyLayoutRecursive(child, child.ScreenX()+x, child.ScreenY()+y)
	}
}

// transitionLayoutOnlyViewToNativeView detaches a flattened node, gives it
// a native view and attaches it again, then redispatches the geometry that
// was folded into its descendants.
func (o *Optimizer) transitionLayoutOnlyViewToNativeView(node *shadow.Node, m props.Map) {
	const op = "optimizer.transitionLayoutOnlyViewToNativeView"
	initial := props.Map{}
	initial.Merge(node.Props())
	initial.Merge(m)

	parent := node.Parent()
	if parent == nil {
		node.SetIsLayoutOnly(false)
		o.sink.EnqueueCreateView(node.ThemedContext(), node.Tag(), node.ViewClass(), initial)
		for i := 0; i < node.ChildCount(); i++ {
			o.addNodeToNode(node, node.ChildAt(i), i)
		}
		return
	}

	childIndex := parent.IndexOf(node)
	if _, err := parent.RemoveChildAt(childIndex); err != nil {
		errors.Report(errors.Inconsistent(op, node.Tag(), "%v", err))
		return
	}
	o.removeNodeFromParent(node, false)
	node.SetIsLayoutOnly(false)

	o.sink.EnqueueCreateView(node.ThemedContext(), node.Tag(), node.ViewClass(), initial)

	if err := parent.AddChildAt(node, childIndex); err != nil {
		errors.Report(errors.Inconsistent(op, node.Tag(), "%v", err))
		return
	}
	o.addNodeToNode(parent, node, childIndex)
	for i := 0; i < node.ChildCount(); i++ {
		o.addNodeToNode(node, node.ChildAt(i), i)
	}

	// Geometry was folded into the children while the node was flattened;
	// dispatch the node and its children from scratch.
	errors.Assert(len(o.tagsWithLayoutVisited) == 0, op, node.Tag(), node.Dump,
		"layout of %d nodes already dispatched in this batch", len(o.tagsWithLayoutVisited))
	o.applyLayoutBase(node)
	for i := 0; i < node.ChildCount(); i++ {
		o.applyLayoutBase(node.ChildAt(i))
	}
	clear(o.tagsWithLayoutVisited)
}
