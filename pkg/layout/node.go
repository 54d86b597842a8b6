// Package layout holds the layout nodes that mirror the shadow tree and the
// solver that computes their geometry.
//
// The engine treats the solver as opaque: it marks nodes dirty, calls
// Solver.Calculate on each root, then reads LayoutX/Y/Width/Height and
// HasNewLayout. FlexSolver is a small flexbox subset that covers the
// properties the shadow tree understands.
package layout

import "math"

// Undefined marks an unset dimension.
var Undefined = math.NaN()

// IsUndefined reports whether v is Undefined.
func IsUndefined(v float64) bool { return math.IsNaN(v) }

// FlexDirection is the main axis of a container.
type FlexDirection int

const (
	Column FlexDirection = iota
	Row
)

// Justify distributes free space along the main axis.
type Justify int

const (
	JustifyStart Justify = iota
	JustifyCenter
	JustifyEnd
	JustifySpaceBetween
	JustifySpaceAround
)

// Align positions children along the cross axis.
type Align int

const (
	AlignStretch Align = iota
	AlignStart
	AlignCenter
	AlignEnd
)

// PositionType selects between flow and absolute placement.
type PositionType int

const (
	Relative PositionType = iota
	Absolute
)

// Edges holds per-side values.
type Edges struct {
	Left, Top, Right, Bottom float64
}

// Horizontal returns Left+Right.
func (e Edges) Horizontal() float64 { return e.Left + e.Right }

// Vertical returns Top+Bottom.
func (e Edges) Vertical() float64 { return e.Top + e.Bottom }

// Style is the subset of flexbox the solver understands.
type Style struct {
	Direction FlexDirection
	Justify   Justify
	Align     Align
	AlignSelf *Align
	Position  PositionType
	// Left, Top, Right, Bottom are offsets; Undefined when unset.
	Left, Top, Right, Bottom float64
	Width, Height            float64
	MinWidth, MinHeight      float64
	MaxWidth, MaxHeight      float64
	FlexGrow                 float64
	FlexShrink               float64
	Margin                   Edges
	Padding                  Edges
	Hidden                   bool
}

// DefaultStyle returns a style with every dimension unset.
func DefaultStyle() Style {
	return Style{
		Left: Undefined, Top: Undefined, Right: Undefined, Bottom: Undefined,
		Width: Undefined, Height: Undefined,
		MinWidth: Undefined, MinHeight: Undefined,
		MaxWidth: Undefined, MaxHeight: Undefined,
	}
}

// MeasureFunc sizes a leaf from the space available to it. Either bound
// may be Undefined.
type MeasureFunc func(n *Node, maxWidth, maxHeight float64) (width, height float64)

// Node is one layout node.
type Node struct {
	style    Style
	parent   *Node
	children []*Node
	measure  MeasureFunc

	// Context is free for the owner of the node.
	Context any

	x, y, width, height float64
	hasLayout           bool
	hasNewLayout        bool
	dirty               bool

	lastAvailWidth, lastAvailHeight float64
}

// NewNode returns a dirty node with the default style.
func NewNode() *Node {
	n := &Node{}
	n.Reset()
	return n
}

// Reset returns n to the state of NewNode. Children and parent links are cleared.
func (n *Node) Reset() {
	*n = Node{
		style:           DefaultStyle(),
		dirty:           true,
		lastAvailWidth:  Undefined,
		lastAvailHeight: Undefined,
	}
}

// Style returns a copy of the node style.
func (n *Node) Style() Style { return n.style }

// UpdateStyle applies fn to the style and marks the node dirty.
func (n *Node) UpdateStyle(fn func(*Style)) {
	fn(&n.style)
	n.MarkDirty()
}

// SetMeasureFunc installs a measure function. Nodes with one are leaves.
func (n *Node) SetMeasureFunc(fn MeasureFunc) {
	n.measure = fn
	n.MarkDirty()
}

// IsMeasured reports whether the node has a measure function.
func (n *Node) IsMeasured() bool { return n.measure != nil }

// Parent returns the parent node.
func (n *Node) Parent() *Node { return n.parent }

// ChildCount returns the number of children.
func (n *Node) ChildCount() int { return len(n.children) }

// ChildAt returns the child at i.
func (n *Node) ChildAt(i int) *Node { return n.children[i] }

// InsertChild inserts child at index i.
func (n *Node) InsertChild(child *Node, i int) {
	n.children = append(n.children, nil)
	copy(n.children[i+1:], n.children[i:])
	n.children[i] = child
	child.parent = n
	n.MarkDirty()
}

// RemoveChildAt removes and returns the child at index i.
func (n *Node) RemoveChildAt(i int) *Node {
	child := n.children[i]
	n.children = append(n.children[:i], n.children[i+1:]...)
	child.parent = nil
	n.MarkDirty()
	return child
}

// RemoveAllChildren detaches every child.
func (n *Node) RemoveAllChildren() {
	for _, c := range n.children {
		c.parent = nil
	}
	n.children = n.children[:0]
	n.MarkDirty()
}

// MarkDirty flags the node and its ancestors for relayout.
func (n *Node) MarkDirty() {
	for p := n; p != nil && !p.dirty; p = p.parent {
		p.dirty = true
	}
}

// IsDirty reports whether the node needs layout.
func (n *Node) IsDirty() bool { return n.dirty }

// HasNewLayout reports whether the computed geometry changed since the
// last MarkLayoutSeen.
func (n *Node) HasNewLayout() bool { return n.hasNewLayout }

// MarkLayoutSeen clears HasNewLayout.
func (n *Node) MarkLayoutSeen() { n.hasNewLayout = false }

// LayoutX returns the x offset relative to the parent.
func (n *Node) LayoutX() float64 { return n.x }

// LayoutY returns the y offset relative to the parent.
func (n *Node) LayoutY() float64 { return n.y }

// LayoutWidth returns the computed width.
func (n *Node) LayoutWidth() float64 { return n.width }

// LayoutHeight returns the computed height.
func (n *Node) LayoutHeight() float64 { return n.height }

// SetLayout records a computed frame and clears the dirty flag. The node
// reports HasNewLayout when the frame differs from the previous one.
func (n *Node) SetLayout(x, y, width, height float64) {
	if !n.hasLayout || x != n.x || y != n.y || width != n.width || height != n.height {
		n.hasNewLayout = true
	}
	n.x, n.y, n.width, n.height = x, y, width, height
	n.hasLayout = true
	n.dirty = false
}
