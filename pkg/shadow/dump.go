package shadow

import (
	"fmt"
	"strings"
)

// Dump renders the subtree rooted at n, one node per line.
func (n *Node) Dump() string {
	var sb strings.Builder
	n.dump(&sb, 0)
	return sb.String()
}

func (n *Node) dump(sb *strings.Builder, depth int) {
	fmt.Fprintf(sb, "%s%s kind=%s total=%d", strings.Repeat("  ", depth), n, n.NativeKind(), n.totalNativeChildren)
	if len(n.nativeChildren) > 0 {
		tags := make([]string, len(n.nativeChildren))
		for i, c := range n.nativeChildren {
			tags[i] = fmt.Sprint(c.tag)
		}
		fmt.Fprintf(sb, " native=[%s]", strings.Join(tags, ","))
	}
	fmt.Fprintf(sb, " frame=(%d,%d %dx%d)\n", n.screenX, n.screenY, n.screenWidth, n.screenHeight)
	for _, c := range n.children {
		c.dump(sb, depth+1)
	}
}

// Snapshot is a serializable view of a shadow subtree.
type Snapshot struct {
	Tag            int         `json:"tag"`
	ViewClass      string      `json:"viewClass"`
	NativeKind     string      `json:"nativeKind"`
	LayoutOnly     bool        `json:"layoutOnly,omitempty"`
	TotalNative    int         `json:"totalNativeChildren"`
	NativeChildren []int       `json:"nativeChildren,omitempty"`
	NativeParent   int         `json:"nativeParent,omitempty"`
	Layout         [4]float64  `json:"layout"`
	Screen         [4]int      `json:"screen"`
	Children       []*Snapshot `json:"children,omitempty"`
}

// Snapshot captures the subtree rooted at n.
func (n *Node) Snapshot() *Snapshot {
	s := &Snapshot{
		Tag:         n.tag,
		ViewClass:   n.viewClass,
		NativeKind:  n.NativeKind().String(),
		LayoutOnly:  n.isLayoutOnly,
		TotalNative: n.totalNativeChildren,
		Layout:      [4]float64{n.LayoutX(), n.LayoutY(), n.LayoutWidth(), n.LayoutHeight()},
		Screen:      [4]int{n.screenX, n.screenY, n.screenWidth, n.screenHeight},
	}
	if n.nativeParent != nil {
		s.NativeParent = n.nativeParent.tag
	}
	for _, c := range n.nativeChildren {
		s.NativeChildren = append(s.NativeChildren, c.tag)
	}
	for _, c := range n.children {
		s.Children = append(s.Children, c.Snapshot())
	}
	return s
}
