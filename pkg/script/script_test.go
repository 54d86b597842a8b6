package script

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/viewtree/pkg/props"
)

type recordingTarget struct {
	calls  []string
	props  []props.Map
	failOn string
}

func (r *recordingTarget) record(format string, args ...any) error {
	call := fmt.Sprintf(format, args...)
	r.calls = append(r.calls, call)
	if r.failOn != "" && call == r.failOn {
		return errors.New("rejected")
	}
	return nil
}

func (r *recordingTarget) AddRoot(tag, width, height int) error {
	return r.record("root %d %dx%d", tag, width, height)
}

func (r *recordingTarget) RemoveRootView(tag int) error {
	return r.record("remove_root %d", tag)
}

func (r *recordingTarget) CreateView(tag int, class string, rootTag int, p props.Map) error {
	r.props = append(r.props, p)
	return r.record("create %d %s %d", tag, class, rootTag)
}

func (r *recordingTarget) UpdateView(tag int, class string, p props.Map) error {
	r.props = append(r.props, p)
	return r.record("update %d %s", tag, class)
}

func (r *recordingTarget) ManageChildren(tag int, moveFrom, moveTo, addChildTags, addAtIndices, removeFrom []int) error {
	return r.record("manage %d %v %v %v %v %v", tag, moveFrom, moveTo, addChildTags, addAtIndices, removeFrom)
}

func (r *recordingTarget) SetChildren(tag int, childTags []int) error {
	return r.record("set_children %d %v", tag, childTags)
}

func (r *recordingTarget) ReplaceExistingNonRootView(oldTag, newTag int) error {
	return r.record("replace %d %d", oldTag, newTag)
}

func (r *recordingTarget) RemoveSubviewsFromContainer(tag int) error {
	return r.record("remove_subviews %d", tag)
}

func (r *recordingTarget) ForceNativeView(tag int) error {
	return r.record("force_native %d", tag)
}

func (r *recordingTarget) DispatchViewManagerCommand(tag int, command string, args []any) error {
	return r.record("command %d %s %v", tag, command, args)
}

func (r *recordingTarget) SendAccessibilityEvent(tag, eventType int) {
	_ = r.record("accessibility %d %d", tag, eventType)
}

func (r *recordingTarget) UpdateNodeSize(tag int, width, height float64) {
	_ = r.record("update_size %d %gx%g", tag, width, height)
}

func (r *recordingTarget) DispatchViewUpdates(transactionID int) {
	_ = r.record("commit %d", transactionID)
}

const fullScript = `
version: v1.2.0
roots:
  - {tag: 1, width: 400, height: 800}
steps:
  - create: {tag: 2, class: View, root: 1, props: {background_color: red, padding: 4}}
  - create: {tag: 3, class: RCTText, root: 1}
  - set_children: {tag: 1, children: [2, 3]}
  - commit: 1
  - update: {tag: 2, class: View, props: {opacity: 0.5}}
  - manage: {tag: 1, move_from: [1], move_to: [0]}
  - replace: {old: 3, new: 4}
  - remove_subviews: {tag: 2}
  - force_native: {tag: 2}
  - command: {tag: 2, name: focus, args: [1, two]}
  - accessibility: {tag: 2, event: 8}
  - update_size: {tag: 2, width: 10, height: 20.5}
  - remove_root: 1
`

func TestRun_AppliesStepsInOrder(t *testing.T) {
	s, err := Parse([]byte(fullScript))
	require.NoError(t, err)

	target := &recordingTarget{}
	require.NoError(t, Run(context.Background(), target, s))

	want := []string{
		"root 1 400x800",
		"create 2 View 1",
		"create 3 RCTText 1",
		"set_children 1 [2 3]",
		"commit 1",
		"update 2 View",
		"manage 1 [1] [0] [] [] []",
		"replace 3 4",
		"remove_subviews 2",
		"force_native 2",
		"command 2 focus [1 two]",
		"accessibility 2 8",
		"update_size 2 10x20.5",
		"remove_root 1",
	}
	if diff := cmp.Diff(want, target.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_NormalizesPropKeys(t *testing.T) {
	s, err := Parse([]byte(fullScript))
	require.NoError(t, err)

	target := &recordingTarget{}
	require.NoError(t, Run(context.Background(), target, s))

	require.Len(t, target.props, 3)
	assert.Equal(t, props.Map{"backgroundColor": "red", "padding": 4}, target.props[0])
	assert.Nil(t, target.props[1])
	assert.Equal(t, props.Map{"opacity": 0.5}, target.props[2])
}

func TestRun_StopsAtFailingStep(t *testing.T) {
	s, err := Parse([]byte(fullScript))
	require.NoError(t, err)

	target := &recordingTarget{failOn: "replace 3 4"}
	err = Run(context.Background(), target, s)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 6, stepErr.Index)
	assert.Equal(t, "replace", stepErr.Kind)
	assert.Equal(t, "replace 3 4", target.calls[len(target.calls)-1])
}

func TestRun_RootFailure(t *testing.T) {
	s, err := Parse([]byte(fullScript))
	require.NoError(t, err)

	target := &recordingTarget{failOn: "root 1 400x800"}
	err = Run(context.Background(), target, s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root 1")
	assert.Len(t, target.calls, 1)
}

func TestRun_HonorsCancellation(t *testing.T) {
	s, err := Parse([]byte(fullScript))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target := &recordingTarget{}
	err = Run(ctx, target, s)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"root 1 400x800"}, target.calls)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing version", "steps: []", "semantic version"},
		{"bad version", `version: "1.0"`, "semantic version"},
		{"future major", "version: v2.0.0", "unsupported"},
		{"empty step", "version: v1.0.0\nsteps:\n  - {}", "step 0"},
		{"two edits", "version: v1.0.0\nsteps:\n  - {commit: 1, remove_root: 1}", "step 0"},
		{"malformed", "version: [", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStep_Kind(t *testing.T) {
	one := 1
	assert.Equal(t, "commit", Step{Commit: &one}.Kind())
	assert.Equal(t, "set_children", Step{SetChildren: &SetChildren{}}.Kind())
	assert.Equal(t, "force_native", Step{ForceNative: &TagRef{Tag: 2}}.Kind())
	assert.Equal(t, "", Step{}.Kind())
	assert.Equal(t, "", Step{Commit: &one, RemoveRoot: &one}.Kind())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(t.TempDir() + "/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read script")
}
