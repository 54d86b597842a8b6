package testing

import (
	"sync"

	"github.com/go-drift/viewtree/pkg/errors"
)

// ErrorLog is an errors.ErrorHandler that keeps every report.
type ErrorLog struct {
	mu     sync.Mutex
	errors []*errors.ViewError
	panics []*errors.PanicError
}

// CaptureErrors installs an ErrorLog as the global handler until the test
// ends.
func CaptureErrors(t interface{ Cleanup(func()) }) *ErrorLog {
	log := &ErrorLog{}
	errors.SetHandler(log)
	t.Cleanup(func() { errors.SetHandler(nil) })
	return log
}

func (l *ErrorLog) HandleError(err *errors.ViewError) {
	l.mu.Lock()
	l.errors = append(l.errors, err)
	l.mu.Unlock()
}

func (l *ErrorLog) HandlePanic(err *errors.PanicError) {
	l.mu.Lock()
	l.panics = append(l.panics, err)
	l.mu.Unlock()
}

// Errors returns the reported errors in order.
func (l *ErrorLog) Errors() []*errors.ViewError {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*errors.ViewError(nil), l.errors...)
}

// Panics returns the reported panics in order.
func (l *ErrorLog) Panics() []*errors.PanicError {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*errors.PanicError(nil), l.panics...)
}

// Kinds returns the kinds of the reported errors in order.
func (l *ErrorLog) Kinds() []errors.ErrorKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	kinds := make([]errors.ErrorKind, len(l.errors))
	for i, err := range l.errors {
		kinds[i] = err.Kind
	}
	return kinds
}
