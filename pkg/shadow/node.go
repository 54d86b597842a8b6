// Package shadow holds the shadow tree: the logical tree of view nodes as
// authored, and alongside it the native child lists that describe the
// flattened tree actually mounted on screen.
package shadow

import (
	"fmt"
	"math"
	"slices"

	"github.com/go-drift/viewtree/pkg/errors"
	"github.com/go-drift/viewtree/pkg/layout"
	"github.com/go-drift/viewtree/pkg/native"
	"github.com/go-drift/viewtree/pkg/props"
)

// Node is one shadow node.
//
// A node keeps two child lists. The logical children are the tree as
// authored. The native children are the descendants whose native views
// this node hosts directly; they are only populated on KindParent nodes.
type Node struct {
	tag       int
	viewClass string
	typ       *Type
	rootTag   int
	ctx       native.ThemedContext

	parent   *Node
	children []*Node

	nativeParent   *Node
	nativeChildren []*Node

	isLayoutOnly        bool
	nodeUpdated         bool
	totalNativeChildren int

	layout *layout.Node

	screenX, screenY, screenWidth, screenHeight int

	shouldNotifyOnLayout bool
	localData            any
	props                props.Map

	anchorText        string
	anchorTextPending bool
}

// NewNode returns a node for tag. layoutNode is nil for virtual types.
func NewNode(tag int, typ *Type, layoutNode *layout.Node) *Node {
	n := &Node{
		tag:       tag,
		viewClass: typ.Name,
		typ:       typ,
		layout:    layoutNode,
		props:     props.Map{},
	}
	if layoutNode != nil {
		layoutNode.Context = n
		if typ.Measure != nil {
			measure := typ.Measure
			layoutNode.SetMeasureFunc(func(_ *layout.Node, maxWidth, maxHeight float64) (float64, float64) {
				return measure(n, maxWidth, maxHeight)
			})
		}
	}
	return n
}

// Tag returns the node identity.
func (n *Node) Tag() int { return n.tag }

// ViewClass returns the native view class.
func (n *Node) ViewClass() string { return n.viewClass }

// Type returns the capability set of the node's view class.
func (n *Node) Type() *Type { return n.typ }

// RootTag returns the tag of the root the node was created under.
func (n *Node) RootTag() int { return n.rootTag }

// SetRootTag records the owning root.
func (n *Node) SetRootTag(tag int) { n.rootTag = tag }

// ThemedContext returns the context native views of this node are created with.
func (n *Node) ThemedContext() native.ThemedContext { return n.ctx }

// SetThemedContext sets the creation context.
func (n *Node) SetThemedContext(ctx native.ThemedContext) { n.ctx = ctx }

// IsVirtual reports whether the node stays out of the native and layout trees.
func (n *Node) IsVirtual() bool { return n.typ.Virtual }

// IsVirtualAnchor reports whether the node anchors a virtual subtree.
func (n *Node) IsVirtualAnchor() bool { return n.typ.VirtualAnchor }

// IsLayoutOnly reports whether the node was flattened out of the native tree.
func (n *Node) IsLayoutOnly() bool { return n.isLayoutOnly }

// SetIsLayoutOnly changes flattening. The node must be detached from both
// trees and hold no native children.
func (n *Node) SetIsLayoutOnly(layoutOnly bool) {
	const op = "shadow.Node.SetIsLayoutOnly"
	if !errors.Assert(n.parent == nil, op, n.tag, n.Dump, "must remove from parent first") ||
		!errors.Assert(n.nativeParent == nil, op, n.tag, n.Dump, "must remove from native parent first") ||
		!errors.Assert(len(n.nativeChildren) == 0, op, n.tag, n.Dump, "must remove all native children first") {
		return
	}
	n.isLayoutOnly = layoutOnly
}

// NativeKind returns the node's relation to the native tree.
func (n *Node) NativeKind() NativeKind {
	return n.typ.nativeKind(n.isLayoutOnly)
}

// Parent returns the logical parent.
func (n *Node) Parent() *Node { return n.parent }

// ChildCount returns the number of logical children.
func (n *Node) ChildCount() int { return len(n.children) }

// ChildAt returns the logical child at i.
func (n *Node) ChildAt(i int) *Node { return n.children[i] }

// Children returns a copy of the logical children.
func (n *Node) Children() []*Node { return slices.Clone(n.children) }

// IndexOf returns the index of child among the logical children, or -1.
func (n *Node) IndexOf(child *Node) int {
	return slices.Index(n.children, child)
}

// holdsLayoutChildren reports whether logical children are mirrored in the
// layout tree.
func (n *Node) holdsLayoutChildren() bool {
	return n.layout != nil && !n.layout.IsMeasured() && !n.typ.VirtualAnchor
}

// AddChildAt inserts child at index i and updates native child counts up to
// the nearest KindParent ancestor.
func (n *Node) AddChildAt(child *Node, i int) error {
	if i < 0 || i > len(n.children) {
		return errors.IllegalOperation("shadow.Node.AddChildAt", n.tag, "index %d out of bounds for %d children", i, len(n.children))
	}
	if child.parent != nil {
		return errors.IllegalOperation("shadow.Node.AddChildAt", child.tag, "node already has parent %d", child.parent.tag)
	}
	if n.typ.VirtualAnchor && !child.typ.Virtual {
		return errors.IllegalOperation("shadow.Node.AddChildAt", child.tag, "%s only accepts virtual children, got %s", n.viewClass, child.viewClass)
	}
	if n.holdsLayoutChildren() && child.layout == nil {
		return errors.IllegalOperation("shadow.Node.AddChildAt", child.tag,
			"cannot add %s without a layout node to %s", child, n)
	}
	n.children = slices.Insert(n.children, i, child)
	child.parent = n
	if n.holdsLayoutChildren() {
		n.layout.InsertChild(child.layout, n.layoutIndexOf(i))
	}
	n.MarkUpdated()

	increase := child.nativeContribution()
	n.totalNativeChildren += increase
	n.updateNativeChildrenCountInParent(increase)
	return nil
}

// layoutIndexOf maps a logical index to the layout child index, skipping
// virtual siblings that have no layout node.
func (n *Node) layoutIndexOf(i int) int {
	idx := 0
	for _, c := range n.children[:i] {
		if c.layout != nil {
			idx++
		}
	}
	return idx
}

// RemoveChildAt removes and returns the logical child at i.
func (n *Node) RemoveChildAt(i int) (*Node, error) {
	if i < 0 || i >= len(n.children) {
		return nil, errors.IllegalOperation("shadow.Node.RemoveChildAt", n.tag, "index %d out of bounds for %d children", i, len(n.children))
	}
	removed := n.children[i]
	if n.holdsLayoutChildren() && removed.layout != nil {
		n.layout.RemoveChildAt(n.layoutIndexOf(i))
	}
	n.children = slices.Delete(n.children, i, i+1)
	removed.parent = nil
	n.MarkUpdated()

	decrease := removed.nativeContribution()
	n.totalNativeChildren -= decrease
	n.updateNativeChildrenCountInParent(-decrease)
	return removed, nil
}

// RemoveAllChildren detaches every logical child and returns them.
func (n *Node) RemoveAllChildren() []*Node {
	if len(n.children) == 0 {
		return nil
	}
	removed := n.children
	decrease := 0
	for _, c := range removed {
		c.parent = nil
		decrease += c.nativeContribution()
	}
	if n.holdsLayoutChildren() {
		n.layout.RemoveAllChildren()
	}
	n.children = nil
	n.MarkUpdated()
	n.totalNativeChildren -= decrease
	n.updateNativeChildrenCountInParent(-decrease)
	return removed
}

func (n *Node) updateNativeChildrenCountInParent(delta int) {
	if n.NativeKind() == KindParent {
		return
	}
	for p := n.parent; p != nil; p = p.parent {
		p.totalNativeChildren += delta
		if p.NativeKind() == KindParent {
			break
		}
	}
}

// nativeContribution is the number of native views this node adds to its
// nearest native parent.
func (n *Node) nativeContribution() int {
	switch n.NativeKind() {
	case KindNone:
		return n.totalNativeChildren
	case KindLeaf:
		return 1 + n.totalNativeChildren
	default:
		return 1
	}
}

// TotalNativeChildren returns the native views contributed by the subtree
// below this node.
func (n *Node) TotalNativeChildren() int { return n.totalNativeChildren }

// NativeOffsetForChild returns the number of native views contributed by
// the logical siblings before child.
func (n *Node) NativeOffsetForChild(child *Node) int {
	index := 0
	for _, c := range n.children {
		if c == child {
			return index
		}
		index += c.nativeContribution()
	}
	errors.Assert(false, "shadow.Node.NativeOffsetForChild", n.tag, n.Dump, "%s is not a child of %s", child, n)
	return index
}

// IsDescendantOf reports whether ancestor is a strict logical ancestor.
func (n *Node) IsDescendantOf(ancestor *Node) bool {
	for p := n.parent; p != nil; p = p.parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// AddNativeChildAt records child as hosted by this node's native view.
func (n *Node) AddNativeChildAt(child *Node, i int) {
	const op = "shadow.Node.AddNativeChildAt"
	if !errors.Assert(n.NativeKind() == KindParent, op, n.tag, n.Dump, "%s cannot host native children", n) ||
		!errors.Assert(child.NativeKind() != KindNone, op, child.tag, n.Dump, "%s has no native view", child) ||
		!errors.Assert(i >= 0 && i <= len(n.nativeChildren), op, n.tag, n.Dump,
			"native index %d out of range [0, %d]", i, len(n.nativeChildren)) {
		return
	}
	n.nativeChildren = slices.Insert(n.nativeChildren, i, child)
	child.nativeParent = n
}

// RemoveNativeChildAt removes the native child at i.
func (n *Node) RemoveNativeChildAt(i int) *Node {
	removed := n.nativeChildren[i]
	n.nativeChildren = slices.Delete(n.nativeChildren, i, i+1)
	removed.nativeParent = nil
	return removed
}

// RemoveAllNativeChildren clears the native child list.
func (n *Node) RemoveAllNativeChildren() {
	for _, c := range n.nativeChildren {
		c.nativeParent = nil
	}
	n.nativeChildren = nil
}

// NativeChildCount returns the number of native children.
func (n *Node) NativeChildCount() int { return len(n.nativeChildren) }

// NativeChildAt returns the native child at i.
func (n *Node) NativeChildAt(i int) *Node { return n.nativeChildren[i] }

// IndexOfNativeChild returns the native index of child, or -1.
func (n *Node) IndexOfNativeChild(child *Node) int {
	return slices.Index(n.nativeChildren, child)
}

// NativeParent returns the node whose native view hosts this one.
func (n *Node) NativeParent() *Node { return n.nativeParent }

// MarkUpdated flags the node and its ancestors as having unseen updates.
// Propagation stops at the first ancestor that is already flagged.
func (n *Node) MarkUpdated() {
	for p := n; p != nil && !p.nodeUpdated; p = p.parent {
		p.nodeUpdated = true
	}
}

// HasUnseenUpdates reports whether MarkUpdated was called since the last
// MarkUpdateSeen.
func (n *Node) HasUnseenUpdates() bool { return n.nodeUpdated }

// HasUpdates reports pending property, layout or dirty state.
func (n *Node) HasUpdates() bool {
	return n.nodeUpdated || n.HasNewLayout() || n.IsDirty()
}

// MarkUpdateSeen clears the update flag and acknowledges new layout.
func (n *Node) MarkUpdateSeen() {
	n.nodeUpdated = false
	if n.layout != nil && n.layout.HasNewLayout() {
		n.layout.MarkLayoutSeen()
	}
}

// Dirty requests a relayout. Virtual nodes forward the request to their
// parent.
func (n *Node) Dirty() {
	if n.layout != nil {
		n.layout.MarkDirty()
		return
	}
	if n.parent != nil {
		n.parent.Dirty()
	}
}

// IsDirty reports whether layout is pending.
func (n *Node) IsDirty() bool { return n.layout != nil && n.layout.IsDirty() }

// HasNewLayout reports whether the last layout pass changed the node frame.
func (n *Node) HasNewLayout() bool { return n.layout != nil && n.layout.HasNewLayout() }

// LayoutNode returns the layout node, nil for virtual nodes.
func (n *Node) LayoutNode() *layout.Node { return n.layout }

// DetachLayoutNode returns the layout node and clears it from n.
func (n *Node) DetachLayoutNode() *layout.Node {
	ln := n.layout
	if ln != nil {
		ln.Context = nil
	}
	n.layout = nil
	return ln
}

// LayoutX returns the x offset relative to the logical parent.
func (n *Node) LayoutX() float64 {
	if n.layout == nil {
		return 0
	}
	return n.layout.LayoutX()
}

// LayoutY returns the y offset relative to the logical parent.
func (n *Node) LayoutY() float64 {
	if n.layout == nil {
		return 0
	}
	return n.layout.LayoutY()
}

// LayoutWidth returns the computed width.
func (n *Node) LayoutWidth() float64 {
	if n.layout == nil {
		return 0
	}
	return n.layout.LayoutWidth()
}

// LayoutHeight returns the computed height.
func (n *Node) LayoutHeight() float64 {
	if n.layout == nil {
		return 0
	}
	return n.layout.LayoutHeight()
}

// ScreenX returns the last dispatched x, rounded to pixels.
func (n *Node) ScreenX() int { return n.screenX }

// ScreenY returns the last dispatched y, rounded to pixels.
func (n *Node) ScreenY() int { return n.screenY }

// ScreenWidth returns the last dispatched width.
func (n *Node) ScreenWidth() int { return n.screenWidth }

// ScreenHeight returns the last dispatched height.
func (n *Node) ScreenHeight() int { return n.screenHeight }

// screenFrame rounds the layout frame at the given absolute parent origin.
// Width and height come from rounded absolute edges so adjacent views do
// not leave gaps.
func (n *Node) screenFrame(absoluteX, absoluteY float64) (x, y, w, h int) {
	lx, ly := n.LayoutX(), n.LayoutY()
	left := math.Round(absoluteX + lx)
	top := math.Round(absoluteY + ly)
	right := math.Round(absoluteX + lx + n.LayoutWidth())
	bottom := math.Round(absoluteY + ly + n.LayoutHeight())
	return int(math.Round(lx)), int(math.Round(ly)), int(right - left), int(bottom - top)
}

// WillChangeScreenFrame reports whether UpdateScreenFrame would change the
// dispatched geometry.
func (n *Node) WillChangeScreenFrame(absoluteX, absoluteY float64) bool {
	if !n.HasNewLayout() {
		return false
	}
	x, y, w, h := n.screenFrame(absoluteX, absoluteY)
	return x != n.screenX || y != n.screenY || w != n.screenWidth || h != n.screenHeight
}

// UpdateScreenFrame stores the rounded frame for a node with new layout and
// reports whether it changed.
func (n *Node) UpdateScreenFrame(absoluteX, absoluteY float64) bool {
	if !n.HasNewLayout() {
		return false
	}
	x, y, w, h := n.screenFrame(absoluteX, absoluteY)
	changed := x != n.screenX || y != n.screenY || w != n.screenWidth || h != n.screenHeight
	n.screenX, n.screenY, n.screenWidth, n.screenHeight = x, y, w, h
	return changed
}

// ShouldNotifyOnLayout reports whether the node carries an onLayout handler.
func (n *Node) ShouldNotifyOnLayout() bool { return n.shouldNotifyOnLayout }

// LocalData returns the data set with SetLocalData.
func (n *Node) LocalData() any { return n.localData }

// SetLocalData attaches environment data, such as a measured intrinsic
// size, and requests relayout.
func (n *Node) SetLocalData(data any) {
	n.localData = data
	n.MarkUpdated()
	n.Dirty()
}

// Props returns the properties currently set on the node.
func (n *Node) Props() props.Map { return n.props }

// UpdateProperties applies changed properties through the node's setter
// table and records them.
func (n *Node) UpdateProperties(m props.Map) error {
	if len(m) == 0 {
		return nil
	}
	n.props.Merge(m)
	table := LayoutTable()
	if n.typ.Props != nil {
		table = n.typ.Props
	}
	err := table.Apply(n, m)
	n.MarkUpdated()
	return err
}

func (n *Node) String() string {
	return fmt.Sprintf("[%s %d]", n.viewClass, n.tag)
}
