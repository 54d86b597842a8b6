package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewErrorString(t *testing.T) {
	err := NotFound("shadow.Registry.Node", 42)
	assert.Equal(t, "shadow.Registry.Node [not-found] tag=42: no view with tag 42", err.Error())

	noTag := IllegalOperation("uimanager.ManageChildren", NoTag, "size mismatch %d != %d", 1, 2)
	assert.Equal(t, "uimanager.ManageChildren [illegal-operation]: size mismatch 1 != 2", noTag.Error())
}

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindUnknown, "unknown"},
		{KindNotFound, "not-found"},
		{KindIllegalOperation, "illegal-operation"},
		{KindInconsistentState, "inconsistent-state"},
		{KindRetryableMount, "retryable-mount"},
		{KindPanic, "panic"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String(), "ErrorKind(%d)", tt.kind)
	}
}

func TestSentinelMatching(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"not found", NotFound("op", 1), ErrNotFound},
		{"illegal", IllegalOperation("op", 1, "bad"), ErrIllegalOperation},
		{"inconsistent", Inconsistent("op", 1, "bad"), ErrInconsistentState},
		{"retryable", RetryableMount("op", 1, "bad"), ErrRetryableMount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			for _, other := range []error{ErrNotFound, ErrIllegalOperation, ErrInconsistentState, ErrRetryableMount} {
				if other != tt.sentinel {
					assert.NotErrorIs(t, wrapped, other)
				}
			}
		})
	}
}

func TestIsRetryableAndKindOf(t *testing.T) {
	assert.True(t, IsRetryable(RetryableMount("native.DispatchCommand", 3, "missing")))
	assert.False(t, IsRetryable(NotFound("op", 3)))
	assert.False(t, IsRetryable(stderrors.New("plain")))

	assert.Equal(t, KindIllegalOperation, KindOf(fmt.Errorf("x: %w", IllegalOperation("op", 1, "bad"))))
	assert.Equal(t, KindUnknown, KindOf(stderrors.New("plain")))
}

func TestPanicErrorString(t *testing.T) {
	err := &PanicError{Value: "test panic", Timestamp: time.Now()}
	assert.Equal(t, "panic: test panic", err.Error())

	err.Op = "queue.flushPendingBatches"
	assert.Equal(t, "panic in queue.flushPendingBatches: test panic", err.Error())
}

func TestReport(t *testing.T) {
	var captured *ViewError
	handler := &testHandler{onError: func(err *ViewError) { captured = err }}

	oldHandler := DefaultHandler
	SetHandler(handler)
	defer SetHandler(oldHandler)

	Report(&ViewError{Op: "test.op", Kind: KindNotFound, Tag: 5, Err: stderrors.New("gone")})

	require.NotNil(t, captured)
	assert.Equal(t, "test.op", captured.Op)
	assert.False(t, captured.Timestamp.IsZero(), "expected Timestamp to be set")
}

func TestRecover(t *testing.T) {
	var captured *PanicError
	handler := &testHandler{onPanic: func(err *PanicError) { captured = err }}

	oldHandler := DefaultHandler
	SetHandler(handler)
	defer SetHandler(oldHandler)

	func() {
		defer Recover("test.recover")
		panic("intentional test panic")
	}()

	require.NotNil(t, captured)
	assert.Equal(t, "intentional test panic", captured.Value)
	assert.Equal(t, "test.recover", captured.Op)
	assert.NotEmpty(t, captured.StackTrace)
}

func TestRecoverWithCallback(t *testing.T) {
	oldHandler := DefaultHandler
	SetHandler(&testHandler{})
	defer SetHandler(oldHandler)

	var got any
	func() {
		defer RecoverWithCallback("test.callback", func(r any) { got = r })
		panic(7)
	}()
	assert.Equal(t, 7, got)
}

func TestAssertReportsOutsideDebug(t *testing.T) {
	prev := SetDebugMode(false)
	defer SetDebugMode(prev)

	var captured *ViewError
	oldHandler := DefaultHandler
	SetHandler(&testHandler{onError: func(err *ViewError) { captured = err }})
	defer SetHandler(oldHandler)

	dumped := false
	ok := Assert(false, "optimizer.walkUp", 9, func() string { dumped = true; return "" }, "no parent for %d", 9)
	assert.False(t, ok)
	assert.False(t, dumped, "dump is only rendered for fatal assertions")
	require.NotNil(t, captured)
	assert.Equal(t, KindInconsistentState, captured.Kind)
	assert.Equal(t, 9, captured.Tag)

	captured = nil
	assert.True(t, Assert(true, "op", 1, nil, "never"))
	assert.Nil(t, captured)
}

func TestAssertPanicsInDebug(t *testing.T) {
	prev := SetDebugMode(true)
	defer SetDebugMode(prev)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		ae, ok := r.(*AssertionError)
		require.True(t, ok, "got %T", r)
		assert.Equal(t, "R\n  C", ae.Dump)
		assert.Contains(t, ae.Error(), "R\n  C")
		assert.ErrorIs(t, ae, ErrInconsistentState)
	}()
	Assert(false, "optimizer.walkUp", 3, func() string { return "R\n  C" }, "broken")
}

func TestCaptureStack(t *testing.T) {
	stack := CaptureStack()
	assert.NotEmpty(t, stack)
	assert.Contains(t, stack, "testing")
}

func TestSetHandlerNil(t *testing.T) {
	SetHandler(nil)
	require.NotNil(t, DefaultHandler)
	assert.IsType(t, &LogHandler{}, DefaultHandler)
}

type testHandler struct {
	onError func(*ViewError)
	onPanic func(*PanicError)
}

func (h *testHandler) HandleError(err *ViewError) {
	if h.onError != nil {
		h.onError(err)
	}
}

func (h *testHandler) HandlePanic(err *PanicError) {
	if h.onPanic != nil {
		h.onPanic(err)
	}
}
