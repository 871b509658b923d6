package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError is a panic raised inside a fit or transform, turned into an
// error so one broken run does not take the process down.
type PanicError struct {
	Operation  string
	PanicValue interface{}
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// Unwrap returns the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.PanicValue.(error)
	return err
}

// String includes the stack captured at recovery.
func (e *PanicError) String() string {
	return e.Error() + "\nStack trace:\n" + e.StackTrace
}

// Recover converts a panic into *err. Defer it with the named result:
//
//	defer errors.Recover(&err, "Pipeline.Fit")
//
// An error already assigned to *err stays reachable through the wrap.
func Recover(err *error, operation string) {
	r := recover()
	if r == nil {
		return
	}
	if *err != nil {
		*err = fmt.Errorf("panic in %s: %v (original error: %w)", operation, r, *err)
		return
	}
	*err = &PanicError{Operation: operation, PanicValue: r, StackTrace: string(debug.Stack())}
}

// SafeExecute runs fn, returning its error or the recovered panic.
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
