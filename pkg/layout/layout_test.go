package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct{ X, Y, W, H float64 }

func frameOf(n *Node) frame {
	return frame{n.LayoutX(), n.LayoutY(), n.LayoutWidth(), n.LayoutHeight()}
}

func styled(fn func(*Style)) *Node {
	n := NewNode()
	n.UpdateStyle(fn)
	return n
}

func TestColumnStretchAndPadding(t *testing.T) {
	root := styled(func(s *Style) { s.Padding = Edges{10, 10, 10, 10} })
	a := styled(func(s *Style) { s.Height = 20 })
	b := styled(func(s *Style) { s.Height = 30; s.Margin.Top = 5 })
	root.InsertChild(a, 0)
	root.InsertChild(b, 1)

	FlexSolver{}.Calculate(root, 100, 200)

	assert.Equal(t, frame{0, 0, 100, 200}, frameOf(root))
	assert.Equal(t, frame{10, 10, 80, 20}, frameOf(a))
	assert.Equal(t, frame{10, 35, 80, 30}, frameOf(b))
}

func TestRowGrowAndJustify(t *testing.T) {
	root := styled(func(s *Style) { s.Direction = Row })
	a := styled(func(s *Style) { s.Width = 20 })
	b := styled(func(s *Style) { s.FlexGrow = 1 })
	c := styled(func(s *Style) { s.FlexGrow = 3 })
	root.InsertChild(a, 0)
	root.InsertChild(b, 1)
	root.InsertChild(c, 2)

	FlexSolver{}.Calculate(root, 100, 50)

	assert.Equal(t, frame{0, 0, 20, 50}, frameOf(a))
	assert.Equal(t, frame{20, 0, 20, 50}, frameOf(b))
	assert.Equal(t, frame{40, 0, 60, 50}, frameOf(c))

	root.UpdateStyle(func(s *Style) { s.Justify = JustifyCenter; s.Align = AlignCenter })
	b.UpdateStyle(func(s *Style) { s.FlexGrow = 0; s.Width = 10; s.Height = 10 })
	c.UpdateStyle(func(s *Style) { s.FlexGrow = 0; s.Width = 10; s.Height = 10 })
	a.UpdateStyle(func(s *Style) { s.Height = 10 })
	FlexSolver{}.Calculate(root, 100, 50)
	assert.Equal(t, frame{30, 20, 20, 10}, frameOf(a))
	assert.Equal(t, frame{60, 20, 10, 10}, frameOf(c))
}

func TestAbsolutePosition(t *testing.T) {
	root := NewNode()
	abs := styled(func(s *Style) {
		s.Position = Absolute
		s.Right = 10
		s.Bottom = 5
		s.Width = 20
		s.Height = 20
	})
	fill := styled(func(s *Style) {
		s.Position = Absolute
		s.Left = 0
		s.Right = 0
		s.Top = 0
		s.Height = 4
	})
	root.InsertChild(abs, 0)
	root.InsertChild(fill, 1)
	FlexSolver{}.Calculate(root, 100, 100)

	assert.Equal(t, frame{70, 75, 20, 20}, frameOf(abs))
	assert.Equal(t, frame{0, 0, 100, 4}, frameOf(fill))
}

func TestMeasuredLeaf(t *testing.T) {
	root := NewNode()
	leaf := NewNode()
	leaf.SetMeasureFunc(func(n *Node, maxWidth, maxHeight float64) (float64, float64) {
		return 42, 13
	})
	leaf.UpdateStyle(func(s *Style) { s.Padding = Edges{Top: 2, Bottom: 2} })
	root.InsertChild(leaf, 0)

	FlexSolver{}.Calculate(root, 100, Undefined)

	assert.Equal(t, frame{0, 0, 100, 17}, frameOf(leaf))
	assert.Equal(t, 17.0, root.LayoutHeight(), "root hugs content when height is unbounded")
}

func TestHasNewLayoutOnlyOnChange(t *testing.T) {
	root := NewNode()
	child := styled(func(s *Style) { s.Height = 10 })
	root.InsertChild(child, 0)

	FlexSolver{}.Calculate(root, 50, 50)
	require.True(t, child.HasNewLayout())
	child.MarkLayoutSeen()
	root.MarkLayoutSeen()
	assert.False(t, root.IsDirty())

	// Same input, clean tree: nothing new.
	FlexSolver{}.Calculate(root, 50, 50)
	assert.False(t, child.HasNewLayout())

	// Dirty but unchanged geometry: still nothing new.
	child.MarkDirty()
	assert.True(t, root.IsDirty(), "dirty propagates to the root")
	FlexSolver{}.Calculate(root, 50, 50)
	assert.False(t, child.HasNewLayout())

	child.UpdateStyle(func(s *Style) { s.Height = 12 })
	FlexSolver{}.Calculate(root, 50, 50)
	assert.True(t, child.HasNewLayout())
	assert.False(t, root.HasNewLayout())
}

func TestRemoveChild(t *testing.T) {
	root := NewNode()
	a, b := NewNode(), NewNode()
	root.InsertChild(a, 0)
	root.InsertChild(b, 0)
	require.Equal(t, 2, root.ChildCount())
	assert.Same(t, b, root.ChildAt(0))

	got := root.RemoveChildAt(0)
	assert.Same(t, b, got)
	assert.Nil(t, b.Parent())
	assert.Same(t, a, root.ChildAt(0))
}

func TestPoolReuse(t *testing.T) {
	p := NewPool(1)
	a := p.Acquire()
	a.UpdateStyle(func(s *Style) { s.Width = 5 })
	b := p.Acquire()
	p.Release(a)
	p.Release(b)

	c := p.Acquire()
	assert.Same(t, a, c)
	assert.True(t, IsUndefined(c.Style().Width), "released nodes are reset")
	assert.True(t, c.IsDirty())

	acquired, reused, idle := p.Stats()
	assert.Equal(t, 3, acquired)
	assert.Equal(t, 1, reused)
	assert.Equal(t, 0, idle)
}
