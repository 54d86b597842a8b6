package queue

import (
	stderrors "errors"
	"fmt"

	"github.com/go-drift/viewtree/pkg/errors"
	"github.com/go-drift/viewtree/pkg/native"
	"github.com/go-drift/viewtree/pkg/props"
)

// Operation is one native tree mutation or query, executed on the consumer
// context.
type Operation interface {
	Execute(tree *native.Tree) error
}

// TaggedOperation is implemented by operations that target a single view.
type TaggedOperation interface {
	Operation
	ViewTag() int
}

// CreateViewOperation creates the widget for a shadow node.
type CreateViewOperation struct {
	Context   native.ThemedContext
	Tag       int
	ViewClass string
	Props     props.Map
}

func (o *CreateViewOperation) Execute(tree *native.Tree) error {
	return tree.CreateView(o.Context, o.Tag, o.ViewClass, o.Props)
}

func (o *CreateViewOperation) ViewTag() int { return o.Tag }

func (o *CreateViewOperation) String() string {
	return fmt.Sprintf("create(%d, %s)", o.Tag, o.ViewClass)
}

// UpdatePropertiesOperation applies changed properties.
type UpdatePropertiesOperation struct {
	Tag   int
	Props props.Map
}

func (o *UpdatePropertiesOperation) Execute(tree *native.Tree) error {
	tree.UpdateProperties(o.Tag, o.Props)
	return nil
}

func (o *UpdatePropertiesOperation) ViewTag() int { return o.Tag }

func (o *UpdatePropertiesOperation) String() string {
	return fmt.Sprintf("updateProps(%d, %v)", o.Tag, o.Props.Keys())
}

// UpdateLayoutOperation positions a widget inside its native parent.
type UpdateLayoutOperation struct {
	ParentTag int
	Tag       int
	X, Y      int
	Width     int
	Height    int
}

func (o *UpdateLayoutOperation) Execute(tree *native.Tree) error {
	return tree.UpdateLayout(o.ParentTag, o.Tag, o.X, o.Y, o.Width, o.Height)
}

func (o *UpdateLayoutOperation) ViewTag() int { return o.Tag }

func (o *UpdateLayoutOperation) String() string {
	return fmt.Sprintf("updateLayout(%d in %d, %d,%d %dx%d)", o.Tag, o.ParentTag, o.X, o.Y, o.Width, o.Height)
}

// ManageChildrenOperation removes, inserts and deletes native children.
type ManageChildrenOperation struct {
	Tag             int
	IndicesToRemove []int
	ViewsToAdd      []native.ViewAtIndex
	TagsToDelete    []int
}

func (o *ManageChildrenOperation) Execute(tree *native.Tree) error {
	return tree.ManageChildren(o.Tag, o.IndicesToRemove, o.ViewsToAdd, o.TagsToDelete)
}

func (o *ManageChildrenOperation) ViewTag() int { return o.Tag }

func (o *ManageChildrenOperation) String() string {
	return fmt.Sprintf("manageChildren(%d, remove=%v add=%v delete=%v)", o.Tag, o.IndicesToRemove, o.ViewsToAdd, o.TagsToDelete)
}

// SetChildrenOperation appends children to a freshly created widget.
type SetChildrenOperation struct {
	Tag       int
	ChildTags []int
}

func (o *SetChildrenOperation) Execute(tree *native.Tree) error {
	return tree.SetChildren(o.Tag, o.ChildTags)
}

func (o *SetChildrenOperation) ViewTag() int { return o.Tag }

func (o *SetChildrenOperation) String() string {
	return fmt.Sprintf("setChildren(%d, %v)", o.Tag, o.ChildTags)
}

// UpdateExtraDataOperation hands shadow-computed data to a widget.
type UpdateExtraDataOperation struct {
	Tag  int
	Data any
}

func (o *UpdateExtraDataOperation) Execute(tree *native.Tree) error {
	return tree.UpdateExtraData(o.Tag, o.Data)
}

func (o *UpdateExtraDataOperation) ViewTag() int { return o.Tag }

func (o *UpdateExtraDataOperation) String() string {
	return fmt.Sprintf("updateExtraData(%d)", o.Tag)
}

// RemoveRootViewOperation drops a root and its subtree.
type RemoveRootViewOperation struct {
	Tag int
}

func (o *RemoveRootViewOperation) Execute(tree *native.Tree) error {
	return tree.RemoveRootView(o.Tag)
}

func (o *RemoveRootViewOperation) ViewTag() int { return o.Tag }

func (o *RemoveRootViewOperation) String() string {
	return fmt.Sprintf("removeRootView(%d)", o.Tag)
}

// DispatchCommandOperation runs an imperative command. It may be retried
// once when the target is not mounted yet.
type DispatchCommandOperation struct {
	Tag     int
	Command string
	Args    []any

	retries int
}

func (o *DispatchCommandOperation) Execute(tree *native.Tree) error {
	return tree.DispatchCommand(o.Tag, o.Command, o.Args)
}

func (o *DispatchCommandOperation) ViewTag() int { return o.Tag }

// Retries returns how many times the command has been re-queued.
func (o *DispatchCommandOperation) Retries() int { return o.retries }

func (o *DispatchCommandOperation) String() string {
	return fmt.Sprintf("dispatchCommand(%d, %s)", o.Tag, o.Command)
}

// SendAccessibilityEventOperation forwards an accessibility event.
type SendAccessibilityEventOperation struct {
	Tag       int
	EventType int
}

func (o *SendAccessibilityEventOperation) Execute(tree *native.Tree) error {
	return tree.SendAccessibilityEvent(o.Tag, o.EventType)
}

func (o *SendAccessibilityEventOperation) ViewTag() int { return o.Tag }

func (o *SendAccessibilityEventOperation) String() string {
	return fmt.Sprintf("sendAccessibilityEvent(%d, %d)", o.Tag, o.EventType)
}

// MeasureCallback receives the result of a measure query. ok is false when
// the view is not mounted.
type MeasureCallback func(frame native.Rect, ok bool)

// MeasureOperation reads the frame of a view relative to its root.
type MeasureOperation struct {
	Tag      int
	InWindow bool
	Callback MeasureCallback
}

func (o *MeasureOperation) Execute(tree *native.Tree) error {
	measure := tree.Measure
	if o.InWindow {
		measure = tree.MeasureInWindow
	}
	frame, err := measure(o.Tag)
	if err != nil {
		if !stderrors.Is(err, errors.ErrNotFound) {
			return err
		}
		o.Callback(native.Rect{}, false)
		return nil
	}
	o.Callback(frame, true)
	return nil
}

func (o *MeasureOperation) ViewTag() int { return o.Tag }

func (o *MeasureOperation) String() string {
	if o.InWindow {
		return fmt.Sprintf("measureInWindow(%d)", o.Tag)
	}
	return fmt.Sprintf("measure(%d)", o.Tag)
}

// UIBlock is a one-off callback run on the consumer context.
type UIBlock func(tree *native.Tree)

// UIBlockOperation runs a UIBlock.
type UIBlockOperation struct {
	Block UIBlock
}

func (o *UIBlockOperation) Execute(tree *native.Tree) error {
	o.Block(tree)
	return nil
}

func (o *UIBlockOperation) String() string { return "uiBlock" }

// LayoutUpdateFinishedOperation tells a listener that the layout commands of
// a root have been applied.
type LayoutUpdateFinishedOperation struct {
	RootTag  int
	Listener func(rootTag int)
}

func (o *LayoutUpdateFinishedOperation) Execute(*native.Tree) error {
	o.Listener(o.RootTag)
	return nil
}

func (o *LayoutUpdateFinishedOperation) ViewTag() int { return o.RootTag }

func (o *LayoutUpdateFinishedOperation) String() string {
	return fmt.Sprintf("layoutUpdateFinished(%d)", o.RootTag)
}
