package testing

import (
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/go-drift/viewtree/pkg/native"
	"github.com/go-drift/viewtree/pkg/shadow"
)

// TestingT is the subset of *testing.T used by the assertion helpers,
// allowing test doubles to intercept failures.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
	Errorf(format string, args ...any)
	Name() string
}

// Shape is the tag structure of a tree, without geometry or properties.
type Shape struct {
	Tag      int
	Children []Shape
}

// S builds a Shape.
func S(tag int, children ...Shape) Shape {
	return Shape{Tag: tag, Children: children}
}

func (s Shape) String() string {
	var sb strings.Builder
	s.write(&sb)
	return sb.String()
}

func (s Shape) write(sb *strings.Builder) {
	fmt.Fprint(sb, s.Tag)
	if len(s.Children) == 0 {
		return
	}
	sb.WriteString("(")
	for i, c := range s.Children {
		if i > 0 {
			sb.WriteString(" ")
		}
		c.write(sb)
	}
	sb.WriteString(")")
}

// NativeShape returns the shape of the mounted subtree under tag.
func NativeShape(tree *native.Tree, tag int) (Shape, error) {
	snap, err := tree.Snapshot(tag)
	if err != nil {
		return Shape{}, err
	}
	return shapeOfSnapshot(snap), nil
}

func shapeOfSnapshot(s *native.Snapshot) Shape {
	shape := Shape{Tag: s.Tag}
	for _, c := range s.Children {
		shape.Children = append(shape.Children, shapeOfSnapshot(c))
	}
	return shape
}

// ShadowNativeShape returns the native tree implied by the native child
// lists of the shadow subtree under n.
func ShadowNativeShape(n *shadow.Node) Shape {
	shape := Shape{Tag: n.Tag()}
	for i := 0; i < n.NativeChildCount(); i++ {
		shape.Children = append(shape.Children, ShadowNativeShape(n.NativeChildAt(i)))
	}
	return shape
}

// LogicalShape returns the authored tree under n.
func LogicalShape(n *shadow.Node) Shape {
	shape := Shape{Tag: n.Tag()}
	for i := 0; i < n.ChildCount(); i++ {
		shape.Children = append(shape.Children, LogicalShape(n.ChildAt(i)))
	}
	return shape
}

// AssertShape reports a diff when got differs from want.
func AssertShape(t TestingT, want, got Shape) bool {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tree shape mismatch (-want +got):\n%s\nwant %v\ngot  %v", diff, want, got)
		return false
	}
	return true
}

// CheckNativeTotals verifies that every node under n counts exactly the
// native contributions of its children.
func CheckNativeTotals(t TestingT, n *shadow.Node) bool {
	t.Helper()
	ok := true
	want := 0
	for i := 0; i < n.ChildCount(); i++ {
		c := n.ChildAt(i)
		switch c.NativeKind() {
		case shadow.KindParent:
			want++
		case shadow.KindLeaf:
			want += 1 + c.TotalNativeChildren()
		default:
			want += c.TotalNativeChildren()
		}
		ok = CheckNativeTotals(t, c) && ok
	}
	if got := n.TotalNativeChildren(); got != want {
		t.Errorf("%v: total native children = %d, want %d", n, got, want)
		ok = false
	}
	return ok
}
