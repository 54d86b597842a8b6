// Package native owns the mounted widget tree. Everything in this package
// runs on the consumer context; the producer side only ever refers to
// views by tag.
package native

import (
	"fmt"
	"slices"

	"github.com/go-drift/viewtree/pkg/props"
)

// Rect is an integer frame in pixels.
type Rect struct {
	X, Y, Width, Height int
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// ThemedContext is handed to view managers when a view is created.
type ThemedContext struct {
	// RootTag is the root the view will be mounted under.
	RootTag int
	// Scale is the pixel density of the root surface.
	Scale float64
}

// View is a mounted native view.
type View interface {
	// ID returns the tag the view was created for.
	ID() int
	// Frame returns the frame relative to the parent view.
	Frame() Rect
	// SetFrame positions the view.
	SetFrame(Rect)
}

// ViewGroup is a view that hosts children.
type ViewGroup interface {
	View
	ChildCount() int
	ChildAt(i int) View
	InsertChild(child View, i int)
	RemoveChildAt(i int) View
	RemoveAllChildren()
}

// ViewAtIndex pairs a tag with the index it is inserted at.
type ViewAtIndex struct {
	Tag   int
	Index int
}

// Command is an imperative call received by a widget.
type Command struct {
	Name string
	Args []any
}

// Widget is the in-memory view implementation used by the built-in managers.
type Widget struct {
	tag      int
	class    string
	frame    Rect
	children []View

	Context ThemedContext
	// Props holds every property applied so far.
	Props props.Map

	Background   props.Color
	Opacity      float64
	BorderWidth  float64
	BorderColor  props.Color
	BorderRadius float64
	Overflow     string
	Hidden       bool
	TestID       string
	Label        string
	Text         string
	Placeholder  string
	Source       string
	ScrollY      float64
	Focused      bool

	ExtraData           any
	Commands            []Command
	AccessibilityEvents []int
	Dropped             bool
}

// NewWidget returns a widget for tag.
func NewWidget(class string, tag int, ctx ThemedContext) *Widget {
	return &Widget{tag: tag, class: class, Context: ctx, Opacity: 1, Props: props.Map{}}
}

// ID implements View.
func (w *Widget) ID() int { return w.tag }

// Class returns the view class the widget was created for.
func (w *Widget) Class() string { return w.class }

// Frame implements View.
func (w *Widget) Frame() Rect { return w.frame }

// SetFrame implements View.
func (w *Widget) SetFrame(r Rect) { w.frame = r }

// ChildCount implements ViewGroup.
func (w *Widget) ChildCount() int { return len(w.children) }

// ChildAt implements ViewGroup.
func (w *Widget) ChildAt(i int) View { return w.children[i] }

// InsertChild implements ViewGroup. Indexes past the end append.
func (w *Widget) InsertChild(child View, i int) {
	i = min(max(i, 0), len(w.children))
	w.children = slices.Insert(w.children, i, child)
}

// RemoveChildAt implements ViewGroup.
func (w *Widget) RemoveChildAt(i int) View {
	child := w.children[i]
	w.children = slices.Delete(w.children, i, i+1)
	return child
}

// RemoveAllChildren implements ViewGroup.
func (w *Widget) RemoveAllChildren() { w.children = nil }

func (w *Widget) String() string {
	return fmt.Sprintf("[%s %d]", w.class, w.tag)
}
