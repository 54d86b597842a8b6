package native

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/go-drift/viewtree/pkg/errors"
	"github.com/go-drift/viewtree/pkg/props"
)

// Tree is the only mutator of the mounted view tree. It owns the tag to
// view and tag to manager mappings.
//
// All mutating methods must run on the mutation context; SetThreadCheck
// installs the predicate used to assert that.
type Tree struct {
	mu          sync.Mutex
	registry    *Registry
	rootManager GroupManager

	views    map[int]View
	managers map[int]ViewManager
	parents  map[int]int
	roots    map[int]bool

	threadCheck func() bool
}

// NewTree returns an empty tree backed by registry.
func NewTree(registry *Registry) *Tree {
	return &Tree{
		registry:    registry,
		rootManager: NewRootManager(),
		views:       make(map[int]View),
		managers:    make(map[int]ViewManager),
		parents:     make(map[int]int),
		roots:       make(map[int]bool),
	}
}

// SetThreadCheck installs a predicate that reports whether the caller is on
// the mutation context. Nil disables the check.
func (t *Tree) SetThreadCheck(fn func() bool) {
	t.mu.Lock()
	t.threadCheck = fn
	t.mu.Unlock()
}

func (t *Tree) assertOnMutationContext(op string) {
	if t.threadCheck != nil {
		errors.Assertf(t.threadCheck(), op, "called off the mutation context")
	}
}

// CreateView instantiates a view of class for tag and applies initial props.
func (t *Tree) CreateView(ctx ThemedContext, tag int, class string, initial props.Map) error {
	const op = "native.Tree.CreateView"
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assertOnMutationContext(op)

	if _, ok := t.views[tag]; ok {
		return errors.IllegalOperation(op, tag, "view with tag %d already exists", tag)
	}
	manager, err := t.registry.Lookup(class)
	if err != nil {
		return err
	}
	view := manager.CreateView(ctx, tag)
	t.views[tag] = view
	t.managers[tag] = manager
	if len(initial) > 0 {
		if err := manager.UpdateProperties(view, initial); err != nil {
			errors.Report(&errors.ViewError{Op: op, Kind: errors.KindIllegalOperation, Tag: tag, Err: err})
		}
	}
	return nil
}

// UpdateProperties applies props to the view for tag. Failures are reported
// and otherwise ignored.
func (t *Tree) UpdateProperties(tag int, m props.Map) {
	const op = "native.Tree.UpdateProperties"
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assertOnMutationContext(op)

	view, ok := t.views[tag]
	if !ok {
		errors.Report(errors.NotFound(op, tag))
		return
	}
	if err := t.managers[tag].UpdateProperties(view, m); err != nil {
		errors.Report(&errors.ViewError{Op: op, Kind: errors.KindIllegalOperation, Tag: tag, Err: err})
	}
}

// UpdateExtraData passes shadow-computed data to the view for tag.
func (t *Tree) UpdateExtraData(tag int, data any) error {
	const op = "native.Tree.UpdateExtraData"
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assertOnMutationContext(op)

	view, manager, err := t.resolve(op, tag)
	if err != nil {
		return err
	}
	manager.UpdateExtraData(view, data)
	return nil
}

// UpdateLayout positions the view for tag inside parentTag. Children of
// views that lay out their own children are left alone.
func (t *Tree) UpdateLayout(parentTag, tag int, x, y, width, height int) error {
	const op = "native.Tree.UpdateLayout"
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assertOnMutationContext(op)

	view, _, err := t.resolve(op, tag)
	if err != nil {
		return err
	}
	frame := Rect{X: x, Y: y, Width: width, Height: height}
	if t.roots[parentTag] {
		view.SetFrame(frame)
		return nil
	}
	parentManager, ok := t.managers[parentTag]
	if !ok {
		return errors.NotFound(op, parentTag)
	}
	group, ok := parentManager.(GroupManager)
	if !ok {
		return errors.IllegalOperation(op, tag, "trying to use view %d as a parent, but %s does not manage groups", parentTag, parentManager.Name())
	}
	if !group.NeedsCustomLayoutForChildren() {
		view.SetFrame(frame)
	}
	return nil
}

func (t *Tree) resolve(op string, tag int) (View, ViewManager, error) {
	view, ok := t.views[tag]
	if !ok {
		return nil, nil, errors.NotFound(op, tag)
	}
	return view, t.managers[tag], nil
}

func (t *Tree) resolveGroup(op string, tag int) (ViewGroup, error) {
	view, manager, err := t.resolve(op, tag)
	if err != nil {
		return nil, err
	}
	group, ok := view.(ViewGroup)
	if _, isGroupManager := manager.(GroupManager); !ok || !isGroupManager {
		return nil, errors.IllegalOperation(op, tag, "view %d (%s) cannot host children", tag, manager.Name())
	}
	return group, nil
}

// ManageChildren removes the children at indicesToRemove (ascending), adds
// viewsToAdd (ascending by index) and drops tagsToDelete.
//
// Removing from a root that already has no children is ignored: the root
// was torn down while the removal was in flight.
func (t *Tree) ManageChildren(tag int, indicesToRemove []int, viewsToAdd []ViewAtIndex, tagsToDelete []int) error {
	const op = "native.Tree.ManageChildren"
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assertOnMutationContext(op)

	group, err := t.resolveGroup(op, tag)
	if err != nil {
		return err
	}
	detail := func() string { return t.manageChildrenDetail(group, indicesToRemove, viewsToAdd, tagsToDelete) }

	lastIndexToRemove := group.ChildCount()
	for i := len(indicesToRemove) - 1; i >= 0; i-- {
		index := indicesToRemove[i]
		if index < 0 {
			return errors.IllegalOperation(op, tag, "trying to remove a negative view index %d\n%s", index, detail())
		}
		if index >= group.ChildCount() {
			if t.roots[tag] && group.ChildCount() == 0 {
				return nil
			}
			return errors.IllegalOperation(op, tag, "trying to remove a view index %d above child count %d\n%s", index, group.ChildCount(), detail())
		}
		if index >= lastIndexToRemove {
			return errors.IllegalOperation(op, tag, "trying to remove an out of order view index %d\n%s", index, detail())
		}
		removed := group.RemoveChildAt(index)
		delete(t.parents, removed.ID())
		lastIndexToRemove = index
	}

	for _, add := range viewsToAdd {
		child, ok := t.views[add.Tag]
		if !ok {
			return errors.IllegalOperation(op, tag, "trying to add unknown view tag %d\n%s", add.Tag, detail())
		}
		group.InsertChild(child, add.Index)
		t.parents[add.Tag] = tag
	}

	for _, del := range tagsToDelete {
		view, ok := t.views[del]
		if !ok {
			return errors.IllegalOperation(op, tag, "trying to destroy unknown view tag %d\n%s", del, detail())
		}
		t.dropView(view)
	}
	return nil
}

func (t *Tree) manageChildrenDetail(group ViewGroup, indicesToRemove []int, viewsToAdd []ViewAtIndex, tagsToDelete []int) string {
	var sb strings.Builder
	children := make([]int, group.ChildCount())
	for i := range children {
		children[i] = group.ChildAt(i).ID()
	}
	fmt.Fprintf(&sb, "  view %d children=%v", group.ID(), children)
	if len(indicesToRemove) > 0 {
		fmt.Fprintf(&sb, " indicesToRemove=%v", indicesToRemove)
	}
	if len(viewsToAdd) > 0 {
		fmt.Fprintf(&sb, " viewsToAdd=%v", viewsToAdd)
	}
	if len(tagsToDelete) > 0 {
		fmt.Fprintf(&sb, " tagsToDelete=%v", tagsToDelete)
	}
	return sb.String()
}

// SetChildren appends childTags to the view for tag in order.
func (t *Tree) SetChildren(tag int, childTags []int) error {
	const op = "native.Tree.SetChildren"
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assertOnMutationContext(op)

	group, err := t.resolveGroup(op, tag)
	if err != nil {
		return err
	}
	for i, childTag := range childTags {
		child, ok := t.views[childTag]
		if !ok {
			return errors.IllegalOperation(op, tag, "trying to add unknown view tag %d", childTag)
		}
		group.InsertChild(child, i)
		t.parents[childTag] = tag
	}
	return nil
}

// AddRootView registers an externally created root view.
func (t *Tree) AddRootView(tag int, view ViewGroup) error {
	const op = "native.Tree.AddRootView"
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.views[tag]; ok {
		return errors.IllegalOperation(op, tag, "view with tag %d already exists", tag)
	}
	t.views[tag] = view
	t.managers[tag] = t.rootManager
	t.roots[tag] = true
	return nil
}

// RemoveRootView drops the root for tag and every view below it.
func (t *Tree) RemoveRootView(tag int) error {
	const op = "native.Tree.RemoveRootView"
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assertOnMutationContext(op)

	if !t.roots[tag] {
		errors.Report(errors.IllegalOperation(op, tag, "view with tag %d is not registered as a root view", tag))
		return nil
	}
	if view, ok := t.views[tag]; ok {
		t.dropView(view)
	}
	delete(t.roots, tag)
	return nil
}

// DropView releases the view for tag and its subtree.
func (t *Tree) DropView(tag int) error {
	const op = "native.Tree.DropView"
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assertOnMutationContext(op)

	view, ok := t.views[tag]
	if !ok {
		return errors.NotFound(op, tag)
	}
	t.dropView(view)
	return nil
}

// dropView notifies the manager of every non-root view in the subtree once
// and forgets the subtree.
func (t *Tree) dropView(view View) {
	tag := view.ID()
	manager := t.managers[tag]
	if !t.roots[tag] && manager != nil {
		manager.OnDropViewInstance(view)
	}
	if group, ok := view.(ViewGroup); ok {
		if _, isGroup := manager.(GroupManager); isGroup {
			for i := group.ChildCount() - 1; i >= 0; i-- {
				child := group.ChildAt(i)
				if _, live := t.views[child.ID()]; live {
					t.dropView(child)
				}
			}
			group.RemoveAllChildren()
		}
	}
	delete(t.views, tag)
	delete(t.managers, tag)
	delete(t.parents, tag)
}

// rootOf walks up from tag and returns the root tag and the frame of tag
// relative to that root.
func (t *Tree) rootOf(op string, tag int) (int, Rect, error) {
	view, ok := t.views[tag]
	if !ok {
		return 0, Rect{}, errors.NotFound(op, tag)
	}
	frame := view.Frame()
	rel := Rect{Width: frame.Width, Height: frame.Height}
	cur := tag
	for !t.roots[cur] {
		v := t.views[cur]
		f := v.Frame()
		rel.X += f.X
		rel.Y += f.Y
		parent, ok := t.parents[cur]
		if !ok {
			return 0, Rect{}, errors.NotFound(op, tag)
		}
		cur = parent
	}
	return cur, rel, nil
}

// Measure returns the frame of tag relative to its root view.
func (t *Tree) Measure(tag int) (Rect, error) {
	const op = "native.Tree.Measure"
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assertOnMutationContext(op)

	_, rel, err := t.rootOf(op, tag)
	return rel, err
}

// MeasureInWindow returns the frame of tag in window coordinates. The root
// view frame is its position in the window.
func (t *Tree) MeasureInWindow(tag int) (Rect, error) {
	const op = "native.Tree.MeasureInWindow"
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assertOnMutationContext(op)

	root, rel, err := t.rootOf(op, tag)
	if err != nil {
		return Rect{}, err
	}
	if root != tag {
		origin := t.views[root].Frame()
		rel.X += origin.X
		rel.Y += origin.Y
	} else {
		rel = t.views[root].Frame()
	}
	return rel, nil
}

// DispatchCommand runs command on the view for tag. A missing view yields a
// retryable error: the view may simply not be mounted yet.
func (t *Tree) DispatchCommand(tag int, command string, args []any) error {
	const op = "native.Tree.DispatchCommand"
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assertOnMutationContext(op)

	view, ok := t.views[tag]
	if !ok {
		return errors.RetryableMount(op, tag, "unable to execute command %q on view with tag %d, it does not exist", command, tag)
	}
	return t.managers[tag].ReceiveCommand(view, command, args)
}

// SendAccessibilityEvent records eventType on the view for tag.
func (t *Tree) SendAccessibilityEvent(tag int, eventType int) error {
	const op = "native.Tree.SendAccessibilityEvent"
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assertOnMutationContext(op)

	view, ok := t.views[tag]
	if !ok {
		return errors.RetryableMount(op, tag, "could not find view with tag %d", tag)
	}
	if w, ok := view.(*Widget); ok {
		w.AccessibilityEvents = append(w.AccessibilityEvents, eventType)
	}
	return nil
}

// ResolveView returns the view for tag.
func (t *Tree) ResolveView(tag int) (View, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	view, _, err := t.resolve("native.Tree.ResolveView", tag)
	return view, err
}

// NeedsCustomLayoutForChildren reports whether the manager of class lays out
// children itself. Unknown and non-group classes report an error.
func (t *Tree) NeedsCustomLayoutForChildren(class string) (bool, error) {
	if class == ClassRoot {
		return t.rootManager.NeedsCustomLayoutForChildren(), nil
	}
	manager, err := t.registry.Lookup(class)
	if err != nil {
		return false, err
	}
	group, ok := manager.(GroupManager)
	if !ok {
		return false, errors.IllegalOperation("native.Tree.NeedsCustomLayoutForChildren", errors.NoTag,
			"trying to use view %s as a parent, but its manager does not manage groups", class)
	}
	return group.NeedsCustomLayoutForChildren(), nil
}

// Has reports whether a view for tag is mounted.
func (t *Tree) Has(tag int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.views[tag]
	return ok
}

// Len returns the number of live views, roots included.
func (t *Tree) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.views)
}

// RootTags returns the registered roots in ascending order.
func (t *Tree) RootTags() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	tags := make([]int, 0, len(t.roots))
	for tag := range t.roots {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}
