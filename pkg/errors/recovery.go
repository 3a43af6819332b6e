package errors

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// RecoverPanic converts a recovered value into a fatal internal error with
// the stack attached under the "stack_trace" detail.
func RecoverPanic(r interface{}) error {
	if r == nil {
		return nil
	}

	var err error
	switch v := r.(type) {
	case error:
		err = v
	case string:
		err = fmt.Errorf("panic: %s", v)
	default:
		err = fmt.Errorf("panic: %v", v)
	}

	return ErrInternal.
		WithCause(err).
		WithDetail("panic", true).
		WithDetail("stack_trace", string(debug.Stack())).
		AsFatal()
}

// Guard runs fn and turns a panic inside it into a returned error, so one
// bad event or tick cannot take the process down.
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = RecoverPanic(r)
		}
	}()
	return fn()
}

// IsPanic reports whether err came from a recovered panic.
func IsPanic(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		p, _ := appErr.Details["panic"].(bool)
		return p
	}
	return false
}
