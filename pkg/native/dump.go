package native

import (
	"fmt"
	"strings"

	"github.com/go-drift/viewtree/pkg/errors"
)

// Snapshot is a serializable copy of a mounted subtree.
type Snapshot struct {
	Tag        int         `json:"tag"`
	Class      string      `json:"class"`
	Frame      Rect        `json:"frame"`
	Background string      `json:"background,omitempty"`
	Text       string      `json:"text,omitempty"`
	Children   []*Snapshot `json:"children,omitempty"`
}

// Walk visits the subtree under tag depth first, parents before children.
// Returning false from fn skips the children of that view.
func (t *Tree) Walk(tag int, fn func(v View, depth int) bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	view, ok := t.views[tag]
	if !ok {
		return errors.NotFound("native.Tree.Walk", tag)
	}
	walk(view, 0, fn)
	return nil
}

func walk(v View, depth int, fn func(View, int) bool) {
	if !fn(v, depth) {
		return
	}
	if g, ok := v.(ViewGroup); ok {
		for i := 0; i < g.ChildCount(); i++ {
			walk(g.ChildAt(i), depth+1, fn)
		}
	}
}

// Snapshot captures the subtree under tag.
func (t *Tree) Snapshot(tag int) (*Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	view, ok := t.views[tag]
	if !ok {
		return nil, errors.NotFound("native.Tree.Snapshot", tag)
	}
	return snapshot(view), nil
}

func snapshot(v View) *Snapshot {
	s := &Snapshot{Tag: v.ID(), Frame: v.Frame()}
	if w, ok := v.(*Widget); ok {
		s.Class = w.class
		s.Text = w.Text
		if w.Background != 0 {
			s.Background = w.Background.String()
		}
	}
	if g, ok := v.(ViewGroup); ok {
		for i := 0; i < g.ChildCount(); i++ {
			s.Children = append(s.Children, snapshot(g.ChildAt(i)))
		}
	}
	return s
}

// Dump renders the subtree under tag, one view per line.
func (t *Tree) Dump(tag int) string {
	var sb strings.Builder
	err := t.Walk(tag, func(v View, depth int) bool {
		fmt.Fprintf(&sb, "%s%v %s\n", strings.Repeat("  ", depth), v, v.Frame())
		return true
	})
	if err != nil {
		return err.Error()
	}
	return sb.String()
}
