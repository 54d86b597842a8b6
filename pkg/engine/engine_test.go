package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/viewtree/pkg/config"
	"github.com/go-drift/viewtree/pkg/native"
	"github.com/go-drift/viewtree/pkg/props"
)

// startHost runs a default host until the test ends.
func startHost(t *testing.T) *Host {
	t.Helper()
	h, err := New(nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return h
}

func waitIdle(t *testing.T, h *Host) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.WaitIdle(ctx))
}

// mountSample builds root 1 (200x100) -> 2 (layout only, padding 5) ->
// 3 (red, height 20) and 4 (text "hi").
func mountSample(t *testing.T, h *Host) {
	t.Helper()
	require.NoError(t, h.AddRoot(1, 200, 100))
	require.NoError(t, h.CreateView(2, "View", 1, props.Map{"padding": 5.0}))
	require.NoError(t, h.CreateView(3, "View", 1, props.Map{"backgroundColor": "red", "height": 20.0}))
	require.NoError(t, h.CreateView(4, "Text", 1, nil))
	require.NoError(t, h.CreateView(5, "RawText", 1, props.Map{"text": "hi"}))
	require.NoError(t, h.SetChildren(4, []int{5}))
	require.NoError(t, h.SetChildren(2, []int{3, 4}))
	require.NoError(t, h.SetChildren(1, []int{2}))
	h.DispatchViewUpdates(1)
	waitIdle(t, h)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Version = "2.0"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestHost_MountsOnLoop(t *testing.T) {
	h := startHost(t)
	mountSample(t, h)

	snap, err := h.NativeSnapshot(1)
	require.NoError(t, err)
	require.Len(t, snap.Children, 2, "the layout-only view is flattened away")
	assert.Equal(t, 3, snap.Children[0].Tag)
	assert.Equal(t, native.Rect{X: 5, Y: 5, Width: 190, Height: 20}, snap.Children[0].Frame)
	assert.Equal(t, 4, snap.Children[1].Tag)
	assert.Equal(t, "hi", snap.Children[1].Text)
	assert.False(t, h.Tree().Has(2))
}

func TestHost_RecordsFrames(t *testing.T) {
	h := startHost(t)
	mountSample(t, h)

	timeline := h.Frames().Snapshot()
	require.NotEmpty(t, timeline.Samples)
	executed := 0
	for _, s := range timeline.Samples {
		executed += s.Counts.OperationsExecuted + s.Counts.NonBatchedExecuted
	}
	assert.Positive(t, executed)
	assert.InDelta(t, 16.667, timeline.ThresholdMs, 0.001)
}

func TestHost_CallRunsOnLoop(t *testing.T) {
	h := startHost(t)

	var onLoop bool
	require.NoError(t, h.Call(context.Background(), func() { onLoop = h.Loop().OnLoop() }))
	assert.True(t, onLoop)
	assert.False(t, h.Loop().OnLoop())
}

func TestHost_CallHonorsContext(t *testing.T) {
	h, err := New(nil)
	require.NoError(t, err)

	// The loop is not running, so the task never completes.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Call(ctx, func() {}), context.DeadlineExceeded)
}

func TestHost_AddRootRejectsNegativeSize(t *testing.T) {
	h, err := New(nil)
	require.NoError(t, err)
	assert.Error(t, h.AddRoot(1, -1, 10))
}

func TestHost_RemoveRootView(t *testing.T) {
	h := startHost(t)
	mountSample(t, h)

	require.NoError(t, h.RemoveRootView(1))
	h.DispatchViewUpdates(2)
	waitIdle(t, h)

	assert.False(t, h.Tree().Has(1))
	assert.False(t, h.Tree().Has(3))
	assert.Empty(t, h.RootTags())
}

func TestHost_RunServesDebugPort(t *testing.T) {
	cfg := config.Default()
	cfg.Debug.ServerPort = freePort(t)
	h, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	require.NoError(t, waitForServer(cfg.Debug.ServerPort, 2*time.Second))
	cancel()
	require.NoError(t, <-done)
	assert.NoError(t, waitForServerDown(cfg.Debug.ServerPort, 2*time.Second))
}
