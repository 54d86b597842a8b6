// Package engine runs a UIManager against a live consumer loop.
//
// A Host owns the native view tree, the mutation queue and the manager in
// front of them. Tree edits may come from any goroutine; native mutations
// only ever run on the Loop goroutine started by Run.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-drift/viewtree/pkg/config"
	"github.com/go-drift/viewtree/pkg/errors"
	"github.com/go-drift/viewtree/pkg/native"
	"github.com/go-drift/viewtree/pkg/queue"
	"github.com/go-drift/viewtree/pkg/uimanager"
)

// Host wires a UIManager to a native tree through a queue driven by a Loop.
// The embedded manager receives tree edits.
type Host struct {
	*uimanager.UIManager

	cfg     *config.Config
	loop    *Loop
	tree    *native.Tree
	queue   *queue.Queue
	frames  *FrameTraceBuffer
	runtime *RuntimeSampleBuffer
	debug   debugServer
}

// New returns a host configured by cfg. A nil cfg takes config.Default().
func New(cfg *config.Config) (*Host, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h := &Host{
		cfg:     cfg,
		loop:    NewLoop(cfg.FrameInterval(), nil),
		tree:    native.NewTree(native.DefaultRegistry()),
		frames:  NewFrameTraceBuffer(cfg.Trace.Samples, cfg.TraceThreshold()),
		runtime: NewRuntimeSampleBuffer(0, 0),
	}
	h.tree.SetThreadCheck(h.loop.OnLoop)
	h.queue = queue.New(h.tree, h.loop, queue.Options{
		FrameInterval:      cfg.FrameInterval(),
		MinTimeLeftInFrame: cfg.MinTimeLeftInFrame(),
		FrameObserver:      h,
	})
	h.UIManager = uimanager.New(h.queue, uimanager.Options{PoolSize: cfg.Layout.PoolSize})
	return h, nil
}

// Config returns the configuration the host was built with.
func (h *Host) Config() *config.Config { return h.cfg }

// Loop returns the consumer loop.
func (h *Host) Loop() *Loop { return h.loop }

// Tree returns the native view tree.
func (h *Host) Tree() *native.Tree { return h.tree }

// Frames returns the frame trace of the queue.
func (h *Host) Frames() *FrameTraceBuffer { return h.frames }

// RuntimeSamples returns the runtime sample history.
func (h *Host) RuntimeSamples() *RuntimeSampleBuffer { return h.runtime }

// AddRoot registers a root surface of the given size. A root with a zero
// dimension is not laid out until UpdateRootView gives it one.
func (h *Host) AddRoot(tag, width, height int) error {
	if width < 0 || height < 0 {
		return errors.IllegalOperation("engine.Host.AddRoot", tag, "negative root size %dx%d", width, height)
	}
	ctx := native.ThemedContext{RootTag: tag, Scale: 1}
	root := native.NewWidget(native.ClassRoot, tag, ctx)
	root.SetFrame(native.Rect{Width: width, Height: height})
	return h.RegisterRootView(tag, root, ctx)
}

// NativeSnapshot captures the mounted views under rootTag.
func (h *Host) NativeSnapshot(rootTag int) (*native.Snapshot, error) {
	return h.tree.Snapshot(rootTag)
}

// ObserveFrame implements queue.FrameObserver.
func (h *Host) ObserveFrame(stats queue.FrameStats) {
	sample, d, ok := frameSample(stats, h.tree.Len())
	if !ok {
		return
	}
	h.frames.Add(sample, d)
	if d > h.frames.Threshold() {
		errors.Logger().Debug("slow frame",
			slog.Float64("ms", sample.FrameMs),
			slog.Int("operations", stats.OperationsExecuted))
	}
}

// Run drives the loop, the runtime sampler and, when the configuration
// names a port, the debug server until ctx is done or one of them fails.
func (h *Host) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.loop.Run(gctx) })
	g.Go(func() error {
		return sampleRuntime(gctx, h.runtime, func() RuntimeSample {
			return readRuntimeSample(h.tree.Len(), h.Len())
		})
	})
	if port := h.cfg.Debug.ServerPort; port > 0 {
		g.Go(func() error { return h.serveDebug(gctx, port) })
	}

	h.OnHostResume()
	err := g.Wait()
	h.OnHostPause()
	return err
}

func (h *Host) serveDebug(ctx context.Context, port int) error {
	actual, err := h.StartDebugServer(port)
	if err != nil {
		return err
	}
	errors.Logger().Info("debug server listening", slog.Int("port", actual))
	<-ctx.Done()
	h.StopDebugServer()
	return nil
}

// Call runs fn on the loop and waits for it to return.
func (h *Host) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	h.loop.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitIdle blocks until every committed batch and pending view creation has
// reached the native tree.
func (h *Host) WaitIdle(ctx context.Context) error {
	for {
		idle := false
		err := h.Call(ctx, func() {
			idle = h.queue.PendingBatches() == 0 && h.queue.NonBatchedLen() == 0
		})
		if err != nil {
			return err
		}
		if h.queue.IsIllegal() {
			return fmt.Errorf("engine: queue stopped after a failed operation")
		}
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(h.loop.Interval()):
		}
	}
}

// defaultRoot returns the lowest root tag, or false when none is mounted.
func (h *Host) defaultRoot() (int, bool) {
	roots := h.RootTags()
	if len(roots) == 0 {
		return 0, false
	}
	return slices.Min(roots), true
}
