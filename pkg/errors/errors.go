// Package errors provides typed errors for the pooling engine.
//
// Every error carries an ErrorType that callers branch on instead of
// matching messages: overflow and timeout errors are retryable, not_found
// maps to a missing pool, closed to a disposed pool or service. Package
// level sentinels are built with Sentinel and matched with Is; errors
// returned by operations wrap them with a message and details.
package errors

import (
	"errors"
	"fmt"
	"maps"
	"runtime"
	"slices"
	"strings"
)

// ErrorType classifies an error.
type ErrorType string

const (
	// ErrorTypeInternal reports a broken invariant or a failing factory.
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation reports a bad argument.
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound reports an unknown pool, key or object.
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConflict reports a duplicate registration or an object in
	// the wrong state.
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeOverflow reports a pool at capacity that refused to hand out
	// an object.
	ErrorTypeOverflow ErrorType = "overflow"
	// ErrorTypeClosed reports use after Dispose or Close.
	ErrorTypeClosed ErrorType = "closed"
	// ErrorTypeTimeout reports a request that stopped waiting.
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConfig reports an invalid configuration file.
	ErrorTypeConfig ErrorType = "config"
)

// Error is a typed error with optional cause, details and call stack.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]any
	Stack   []StackFrame
}

// StackFrame is one caller recorded when the error was created.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error formats the error as "type: message: cause".
func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Type) + ": " + e.Message
	}
	return string(e.Type) + ": " + e.Message + ": " + e.Cause.Error()
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Cause }

// Format implements fmt.Formatter. %+v adds the details and the stack.
func (e *Error) Format(s fmt.State, verb rune) {
	if verb != 'v' || !s.Flag('+') {
		fmt.Fprint(s, e.Error())
		return
	}
	var b strings.Builder
	b.WriteString(e.Error())
	for _, k := range slices.Sorted(maps.Keys(e.Details)) {
		fmt.Fprintf(&b, "\n  %s=%v", k, e.Details[k])
	}
	for _, f := range e.Stack {
		fmt.Fprintf(&b, "\n    %s\n        %s:%d", f.Function, f.File, f.Line)
	}
	fmt.Fprint(s, b.String())
}

// WithDetail records key=value on e and returns e.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, 2)
	}
	e.Details[key] = value
	return e
}

// New returns an error of the given type with a captured stack.
func New(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message, Stack: callers()}
}

// Sentinel returns an error without a stack, for package-level values
// matched with Is.
func Sentinel(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message}
}

// Wrap returns err with a type and message on top. The stack of the first
// *Error in the chain is kept; otherwise the current stack is captured.
// Wrap returns nil for a nil err.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	w := &Error{Type: errType, Message: message, Cause: err}
	var inner *Error
	if errors.As(err, &inner) && inner.Stack != nil {
		w.Stack = inner.Stack
	} else {
		w.Stack = callers()
	}
	return w
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, errType ErrorType, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err, errType, fmt.Sprintf(format, args...))
}

// TypeOf returns the type of the outermost *Error in err's chain, or the
// empty type when there is none.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

// IsType reports whether the outermost *Error in err's chain has type
// errType.
func IsType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// IsRetryable reports whether retrying the operation later may succeed:
// the pool overflowed or the caller stopped waiting.
func IsRetryable(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeOverflow, ErrorTypeTimeout:
		return true
	}
	return false
}

// Detail returns the first value recorded under key along err's chain.
func Detail(err error, key string) (any, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if v, ok := e.Details[key]; ok {
				return v, true
			}
		}
		err = errors.Unwrap(err)
	}
	return nil, false
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// Join returns an error wrapping errs, or nil if all are nil.
func Join(errs ...error) error { return errors.Join(errs...) }

const maxStackDepth = 32

// callers records the stack of the caller of New or Wrap.
func callers() []StackFrame {
	var pcs [maxStackDepth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	stack := make([]StackFrame, 0, n)
	for {
		f, more := frames.Next()
		stack = append(stack, StackFrame{Function: f.Function, File: f.File, Line: f.Line})
		if !more {
			break
		}
	}
	return stack
}
