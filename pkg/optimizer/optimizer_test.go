package optimizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/viewtree/pkg/errors"
	"github.com/go-drift/viewtree/pkg/layout"
	"github.com/go-drift/viewtree/pkg/native"
	"github.com/go-drift/viewtree/pkg/optimizer"
	"github.com/go-drift/viewtree/pkg/props"
	"github.com/go-drift/viewtree/pkg/queue"
	"github.com/go-drift/viewtree/pkg/shadow"
	drifttest "github.com/go-drift/viewtree/pkg/testing"
)

const rootTag = 1

// env plays the orchestrator: it edits the logical tree, then hands the
// edit to the optimizer, and commits through a real queue and native tree.
type env struct {
	t     *testing.T
	types *shadow.TypeRegistry
	reg   *shadow.Registry
	tree  *native.Tree
	ch    *drifttest.ManualChoreographer
	rec   *drifttest.Recorder
	q     *queue.Queue
	opt   *optimizer.Optimizer
	root  *shadow.Node
	clock *drifttest.FakeClock
	batch int
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		t:     t,
		types: shadow.DefaultTypes(),
		reg:   shadow.NewRegistry(),
		tree:  native.NewTree(native.DefaultRegistry()),
		rec:   &drifttest.Recorder{},
	}
	e.clock = drifttest.NewFakeClock()
	e.ch = drifttest.NewManualChoreographer(e.clock)
	e.q = queue.New(e.tree, e.ch, queue.Options{Clock: e.clock, Listener: e.rec})
	e.opt = optimizer.New(e.q, e.reg)

	e.root = e.node(rootTag, shadow.ClassRoot)
	require.NoError(t, e.reg.AddRootNode(e.root))
	require.NoError(t, e.tree.AddRootView(rootTag, native.NewWidget(native.ClassRoot, rootTag, native.ThemedContext{RootTag: rootTag})))
	return e
}

func (e *env) node(tag int, class string) *shadow.Node {
	e.t.Helper()
	typ, err := e.types.Lookup(class)
	require.NoError(e.t, err)
	var ln *layout.Node
	if !typ.Virtual {
		ln = layout.NewNode()
	}
	n := shadow.NewNode(tag, typ, ln)
	n.SetRootTag(rootTag)
	n.SetThemedContext(native.ThemedContext{RootTag: rootTag})
	return n
}

func (e *env) create(tag int, class string, m props.Map) *shadow.Node {
	e.t.Helper()
	n := e.node(tag, class)
	require.NoError(e.t, n.UpdateProperties(m))
	require.NoError(e.t, e.reg.AddNode(n))
	e.opt.HandleCreateView(n, n.ThemedContext(), m)
	return n
}

func (e *env) add(parent, child *shadow.Node, index int) {
	e.t.Helper()
	require.NoError(e.t, parent.AddChildAt(child, index))
	require.NoError(e.t, e.opt.HandleManageChildren(parent, nil, []native.ViewAtIndex{{Tag: child.Tag(), Index: index}}, nil))
}

func (e *env) remove(parent *shadow.Node, index int, del bool) *shadow.Node {
	e.t.Helper()
	child, err := parent.RemoveChildAt(index)
	require.NoError(e.t, err)
	var tagsToDelete []int
	if del {
		tagsToDelete = []int{child.Tag()}
	}
	require.NoError(e.t, e.opt.HandleManageChildren(parent, []int{child.Tag()}, nil, tagsToDelete))
	return child
}

// set adds children to a parent without children, in order.
func (e *env) set(parent *shadow.Node, children ...*shadow.Node) {
	e.t.Helper()
	for i, child := range children {
		require.NoError(e.t, parent.AddChildAt(child, i))
	}
	e.opt.HandleSetChildren(parent, children)
}

func (e *env) update(n *shadow.Node, m props.Map) {
	e.t.Helper()
	require.NoError(e.t, n.UpdateProperties(m))
	e.opt.HandleUpdateView(n, m)
}

func (e *env) commit() {
	e.t.Helper()
	e.batch++
	e.opt.OnBatchComplete()
	e.q.DispatchViewUpdates(e.batch, e.clock.Now(), 0)
	e.ch.RunPosted()
	require.False(e.t, e.q.IsIllegal())
}

// check verifies the mounted tree matches the native child lists of the
// shadow tree and that native child counts are consistent.
func (e *env) check(want drifttest.Shape) {
	e.t.Helper()
	got, err := drifttest.NativeShape(e.tree, rootTag)
	require.NoError(e.t, err)
	drifttest.AssertShape(e.t, want, got)
	drifttest.AssertShape(e.t, want, drifttest.ShadowNativeShape(e.root))
	drifttest.CheckNativeTotals(e.t, e.root)
}

var S = drifttest.S

func TestHandleCreateView_FlattensLayoutOnlyContainer(t *testing.T) {
	e := newEnv(t)
	c := e.create(2, shadow.ClassView, props.Map{"flex": 1, "padding": 4})
	w := e.create(3, shadow.ClassView, props.Map{"backgroundColor": "red"})
	e.add(e.root, c, 0)
	e.add(c, w, 0)
	e.commit()

	assert.Equal(t, shadow.KindNone, c.NativeKind())
	assert.Equal(t, shadow.KindParent, w.NativeKind())
	assert.False(t, e.tree.Has(2))
	e.check(S(rootTag, S(3)))
	assert.Equal(t, 1, e.rec.Count(drifttest.IsCreate))
}

func TestHandleUpdateView_VisualPropertyUnflattensContainer(t *testing.T) {
	e := newEnv(t)
	c := e.create(2, shadow.ClassView, nil)
	w := e.create(3, shadow.ClassView, props.Map{"backgroundColor": "red"})
	e.add(e.root, c, 0)
	e.add(c, w, 0)
	e.commit()
	e.rec.Reset()

	e.update(c, props.Map{"backgroundColor": "blue"})
	e.commit()

	assert.Equal(t, shadow.KindParent, c.NativeKind())
	assert.False(t, c.IsLayoutOnly())
	e.check(S(rootTag, S(2, S(3))))

	assert.Equal(t, 1, e.rec.Count(drifttest.IsCreate))
	assert.Equal(t, 1, e.rec.Count(drifttest.IsRemoval))
	assert.Equal(t, 2, e.rec.Count(drifttest.IsInsertion), "one insertion for the container, one relocating its child")

	v, err := e.tree.ResolveView(2)
	require.NoError(t, err)
	assert.Equal(t, props.Color(0xff0000ff), v.(*native.Widget).Background)
}

func TestOptimizer_FlatteningRoundTrip(t *testing.T) {
	build := func(t *testing.T, flattenFirst bool) *env {
		e := newEnv(t)
		containerProps := props.Map{"backgroundColor": "blue"}
		if flattenFirst {
			containerProps = nil
		}
		a := e.create(2, shadow.ClassView, props.Map{"backgroundColor": "white"})
		c := e.create(3, shadow.ClassView, containerProps)
		x := e.create(4, shadow.ClassView, props.Map{"opacity": 0.5})
		img := e.create(5, shadow.ClassImage, nil)
		y := e.create(6, shadow.ClassView, props.Map{"backgroundColor": "red"})
		e.add(e.root, a, 0)
		e.add(e.root, c, 1)
		e.add(c, x, 0)
		e.add(c, img, 1)
		e.add(img, y, 0)
		e.commit()
		if flattenFirst {
			e.update(c, props.Map{"backgroundColor": "blue"})
			e.commit()
			e.update(c, props.Map{"backgroundColor": nil})
			e.commit()
		}
		return e
	}

	flattened := build(t, true)
	direct := build(t, false)
	want := S(rootTag, S(2), S(3, S(4), S(5), S(6)))
	flattened.check(want)
	direct.check(want)
}

func TestOptimizer_LeafHoistsChildrenAfterItself(t *testing.T) {
	e := newEnv(t)
	before := e.create(2, shadow.ClassView, props.Map{"backgroundColor": "red"})
	img := e.create(3, shadow.ClassImage, props.Map{"source": "cat.png"})
	a := e.create(4, shadow.ClassView, props.Map{"backgroundColor": "red"})
	b := e.create(5, shadow.ClassView, props.Map{"backgroundColor": "red"})
	e.add(e.root, before, 0)
	e.add(e.root, img, 1)
	e.add(img, a, 0)
	e.add(img, b, 1)
	e.commit()

	assert.Equal(t, shadow.KindLeaf, img.NativeKind())
	e.check(S(rootTag, S(2), S(3), S(4), S(5)))
	assert.Equal(t, 4, e.root.TotalNativeChildren())

	e.remove(e.root, 1, true)
	e.commit()
	e.check(S(rootTag, S(2)))
	for _, tag := range []int{3, 4, 5} {
		assert.False(t, e.tree.Has(tag), "tag %d", tag)
	}
}

func TestHandleManageChildren_SubtreeAttachedLater(t *testing.T) {
	e := newEnv(t)
	flat := e.create(2, shadow.ClassView, nil)
	inner := e.create(3, shadow.ClassView, nil)
	x := e.create(4, shadow.ClassView, props.Map{"backgroundColor": "red"})
	y := e.create(5, shadow.ClassView, props.Map{"backgroundColor": "red"})
	z := e.create(6, shadow.ClassView, props.Map{"backgroundColor": "red"})
	e.add(flat, inner, 0)
	e.add(inner, x, 0)
	e.add(inner, y, 1)
	e.add(flat, z, 1)
	assert.True(t, e.q.IsEmpty(), "a detached subtree emits no child operations")

	e.add(e.root, flat, 0)
	e.commit()
	e.check(S(rootTag, S(4), S(5), S(6)))
}

func TestHandleManageChildren_MoveWithinFlattenedParent(t *testing.T) {
	e := newEnv(t)
	a := e.create(2, shadow.ClassView, nil)
	b := e.create(3, shadow.ClassView, nil)
	x := e.create(4, shadow.ClassView, props.Map{"backgroundColor": "red"})
	y := e.create(5, shadow.ClassView, props.Map{"backgroundColor": "red"})
	e.add(e.root, a, 0)
	e.add(a, b, 0)
	e.add(b, x, 0)
	e.add(a, y, 1)
	e.commit()
	e.check(S(rootTag, S(4), S(5)))

	moved := e.remove(a, 1, false)
	e.add(a, moved, 0)
	e.commit()
	e.check(S(rootTag, S(5), S(4)))
	assert.True(t, e.tree.Has(5), "moved views are not deleted")
}

func TestHandleUpdateView_DetachedContainerUnflattens(t *testing.T) {
	e := newEnv(t)
	c := e.create(2, shadow.ClassView, nil)
	w := e.create(3, shadow.ClassView, props.Map{"backgroundColor": "red"})
	e.add(c, w, 0)
	e.update(c, props.Map{"opacity": 0.5})
	e.add(e.root, c, 0)
	e.commit()

	e.check(S(rootTag, S(2, S(3))))
	v, err := e.tree.ResolveView(2)
	require.NoError(t, err)
	assert.Equal(t, 0.5, v.(*native.Widget).Opacity)
}

func TestHandleCreateView_CollapsableFalseKeepsNativeView(t *testing.T) {
	e := newEnv(t)
	c := e.create(2, shadow.ClassView, props.Map{"collapsable": false})
	e.add(e.root, c, 0)
	e.commit()
	assert.Equal(t, shadow.KindParent, c.NativeKind())
	e.check(S(rootTag, S(2)))
}

func TestHandleUpdateView_LayoutOnlyUpdatesAreNotForwarded(t *testing.T) {
	e := newEnv(t)
	c := e.create(2, shadow.ClassView, nil)
	e.add(e.root, c, 0)
	e.commit()
	e.rec.Reset()

	e.update(c, props.Map{"margin": 10})
	e.commit()
	assert.Empty(t, e.rec.Operations())
	assert.True(t, c.IsLayoutOnly())
}

func TestHandleManageChildren_UnknownChildTagIsIllegal(t *testing.T) {
	e := newEnv(t)
	err := e.opt.HandleManageChildren(e.root, []int{42}, nil, nil)
	assert.ErrorIs(t, err, errors.ErrIllegalOperation)
	err = e.opt.HandleManageChildren(e.root, nil, []native.ViewAtIndex{{Tag: 42, Index: 0}}, nil)
	assert.ErrorIs(t, err, errors.ErrIllegalOperation)
}

func TestHandleSetChildren_CollectsHoistedChildrenIntoOneOperation(t *testing.T) {
	e := newEnv(t)
	red := props.Map{"backgroundColor": "red"}
	a := e.create(2, shadow.ClassView, red)
	img := e.create(3, shadow.ClassImage, nil)
	x := e.create(4, shadow.ClassView, red)
	flat := e.create(5, shadow.ClassView, nil)
	y := e.create(6, shadow.ClassView, red)
	e.set(img, x)
	e.set(flat, y)
	assert.True(t, e.q.IsEmpty(), "detached subtrees emit no child operations")

	e.set(e.root, a, img, flat)
	e.commit()

	e.check(S(rootTag, S(2), S(3), S(4), S(6)))
	assert.Equal(t, 1, e.rec.Count(drifttest.IsSetChildren))
	assert.Zero(t, e.rec.Count(drifttest.IsManageChildren))
	assert.Contains(t, e.rec.Strings(), "setChildren(1, [2 3 4 6])")
}

func TestHandleSetChildren_FlattenedParentEditsNativeAncestor(t *testing.T) {
	e := newEnv(t)
	before := e.create(2, shadow.ClassView, props.Map{"backgroundColor": "red"})
	flat := e.create(3, shadow.ClassView, nil)
	e.set(e.root, before, flat)
	e.commit()
	e.rec.Reset()

	w := e.create(4, shadow.ClassView, props.Map{"backgroundColor": "red"})
	e.set(flat, w)
	e.commit()

	e.check(S(rootTag, S(2), S(4)))
	assert.Zero(t, e.rec.Count(drifttest.IsSetChildren))
	assert.Contains(t, e.rec.Strings(), "manageChildren(1, remove=[] add=[{4 1}] delete=[])")
}

func TestHandleSetChildren_NativeParentWithChildrenAddsOneByOne(t *testing.T) {
	e := newEnv(t)
	flat := e.create(2, shadow.ClassView, nil)
	inner := e.create(3, shadow.ClassView, props.Map{"backgroundColor": "red"})
	e.set(flat, inner)
	e.add(e.root, flat, 0)
	e.commit()
	e.rec.Reset()

	// The root already hosts 3 through its flattened child; new children are
	// inserted before it.
	w := e.create(4, shadow.ClassView, props.Map{"backgroundColor": "red"})
	require.NoError(t, e.root.AddChildAt(w, 0))
	e.opt.HandleSetChildren(e.root, []*shadow.Node{w})
	e.commit()

	e.check(S(rootTag, S(4), S(3)))
	assert.Zero(t, e.rec.Count(drifttest.IsSetChildren))
	assert.Equal(t, 1, e.rec.Count(drifttest.IsInsertion))
}

func TestHandleForceViewToBeNonLayoutOnly_MountsFlattenedView(t *testing.T) {
	e := newEnv(t)
	c := e.create(2, shadow.ClassView, props.Map{"padding": 4})
	w := e.create(3, shadow.ClassView, props.Map{"backgroundColor": "red"})
	e.add(e.root, c, 0)
	e.add(c, w, 0)
	e.commit()
	e.check(S(rootTag, S(3)))
	e.rec.Reset()

	e.opt.HandleForceViewToBeNonLayoutOnly(c)
	e.commit()
	assert.False(t, c.IsLayoutOnly())
	e.check(S(rootTag, S(2, S(3))))
	assert.Equal(t, 1, e.rec.Count(drifttest.IsCreate))

	e.rec.Reset()
	e.opt.HandleForceViewToBeNonLayoutOnly(c)
	e.commit()
	assert.Empty(t, e.rec.Operations(), "a native view is left alone")
}

type layoutCall struct{ parent, tag, x, y, w, h int }

type layoutSink struct {
	calls []layoutCall
}

func (s *layoutSink) EnqueueCreateView(native.ThemedContext, int, string, props.Map) {}
func (s *layoutSink) EnqueueUpdateProperties(int, props.Map)                         {}
func (s *layoutSink) EnqueueManageChildren(int, []int, []native.ViewAtIndex, []int)  {}
func (s *layoutSink) EnqueueSetChildren(int, []int)                                  {}
func (s *layoutSink) EnqueueUpdateLayout(parent, tag, x, y, w, h int) {
	s.calls = append(s.calls, layoutCall{parent, tag, x, y, w, h})
}

func setFrame(n *shadow.Node, x, y, w, h float64) {
	n.LayoutNode().SetLayout(x, y, w, h)
	n.UpdateScreenFrame(0, 0)
}

func TestHandleUpdateLayout_FoldsFlattenedAncestorOffsets(t *testing.T) {
	e := newEnv(t)
	sink := &layoutSink{}
	opt := optimizer.New(sink, e.reg)

	outer := e.node(2, shadow.ClassView)
	inner := e.node(3, shadow.ClassView)
	leaf := e.node(4, shadow.ClassView)
	for _, n := range []*shadow.Node{outer, inner, leaf} {
		require.NoError(t, e.reg.AddNode(n))
	}
	opt.HandleCreateView(outer, native.ThemedContext{}, nil)
	opt.HandleCreateView(inner, native.ThemedContext{}, nil)
	opt.HandleCreateView(leaf, native.ThemedContext{}, props.Map{"backgroundColor": "red"})
	// Children are set bottom up, before the parent is attached.
	for _, edge := range [][2]*shadow.Node{{inner, leaf}, {outer, inner}, {e.root, outer}} {
		require.NoError(t, edge[0].AddChildAt(edge[1], 0))
		opt.HandleSetChildren(edge[0], []*shadow.Node{edge[1]})
	}

	setFrame(outer, 10.4, 20, 200, 200)
	setFrame(inner, 5, 5.6, 100, 100)
	setFrame(leaf, 1, 2, 30, 40)

	opt.HandleUpdateLayout(leaf)
	opt.HandleUpdateLayout(leaf)
	require.Len(t, sink.calls, 1, "a node is dispatched once per batch")
	assert.Equal(t, layoutCall{rootTag, 4, 16, 28, 30, 40}, sink.calls[0])

	// Flattened nodes dispatch their native descendants.
	opt.OnBatchComplete()
	sink.calls = nil
	opt.HandleUpdateLayout(outer)
	assert.Equal(t, []layoutCall{{rootTag, 4, 16, 28, 30, 40}}, sink.calls)
}
