// Package testing provides helpers for testing code built on viewtree.
//
// # Quick Start
//
// Create a harness, edit the shadow tree and pump a frame:
//
//	func TestMyTree(t *testing.T) {
//	    h := drifttest.NewHarness(t)
//	    root := h.AddRoot(400, 800)
//
//	    h.Create(2, "View", root, props.Map{"backgroundColor": "red"})
//	    h.SetChildren(root, 2)
//	    h.Commit()
//	    h.Pump()
//
//	    drifttest.AssertShape(t, drifttest.S(root, drifttest.S(2)), h.NativeShape(root))
//	}
//
// # Snapshot Testing
//
// Capture and compare shadow and native tree snapshots:
//
//	snapshot := h.CaptureSnapshot(root)
//	snapshot.MatchesFile(t, "testdata/my_tree.snapshot.json")
//
// Update snapshots with:
//
//	VIEWTREE_UPDATE_SNAPSHOTS=1 go test ./...
//
// # Frame Control
//
// The harness drives the queue with a FakeClock and a ManualChoreographer,
// so frame budgets are deterministic:
//
//	h.Recorder().OnExecuted = func(queue.Operation) { h.Clock().Advance(3 * time.Millisecond) }
//	h.Pump()
//
// # Import Alias
//
// Since this package has the same name as the standard library testing
// package, import it with an alias:
//
//	import drifttest "github.com/go-drift/viewtree/pkg/testing"
package testing
