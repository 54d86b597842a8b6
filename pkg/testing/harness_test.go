package testing

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/viewtree/pkg/props"
)

func TestHarness_FlattensLayoutOnlyViews(t *testing.T) {
	h := NewHarness(t)
	root := h.AddRoot(0, 0)

	h.Create(2, "View", root, props.Map{"padding": 4.0})
	h.Create(3, "View", root, props.Map{"backgroundColor": "red", "height": 10.0})
	h.SetChildren(2, 3)
	h.SetChildren(root, 2)
	h.Commit()
	assert.Positive(t, h.Pump())

	AssertShape(t, S(root, S(3)), h.NativeShape(root))
	AssertShape(t, S(root, S(2, S(3))), h.LogicalShape(root))
	assert.True(t, h.AssertConsistent(root))
}

func TestHarness_RootTags(t *testing.T) {
	h := NewHarness(t)
	assert.Equal(t, 1, h.AddRoot(0, 0))
	assert.Equal(t, 11, h.AddRoot(100, 100))
	assert.Equal(t, []int{1, 11}, h.UI().RootTags())
}

func TestSnapshot_RoundTrip(t *testing.T) {
	h := NewHarness(t)
	root := h.AddRoot(100, 50)
	h.Create(2, "View", root, props.Map{"backgroundColor": "#00ff00", "width": 20.0, "height": 10.0})
	h.SetChildren(root, 2)
	h.CommitAndPump()

	snap := h.CaptureSnapshot(root)
	require.NotNil(t, snap.Native)
	require.Len(t, snap.Native.Children, 1)
	assert.Equal(t, 20, snap.Native.Children[0].Frame.Width)

	path := filepath.Join(t.TempDir(), "tree.snapshot.json")
	require.NoError(t, snap.UpdateFile(path))
	snap.MatchesFile(t, path)

	h.Update(2, "View", props.Map{"width": 30.0})
	h.CommitAndPump()
	assert.NotEmpty(t, h.CaptureSnapshot(root).Diff(snap))
}
