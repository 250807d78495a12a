package symbols

import (
	"errors"
	"fmt"
)

var (
	// ErrNotBuiltin is returned when built-in dispatch is requested for a
	// name that has no built-in function.
	ErrNotBuiltin = errors.New("not a built-in function")
	// ErrNoSuchFunction is returned for operations on unknown names.
	ErrNoSuchFunction = errors.New("not a defined function")
	// ErrInvalidScope is returned when a scope id does not name a live
	// scope, or names one the operation may not touch.
	ErrInvalidScope = errors.New("invalid scope")
)

// DeclarationError reports a structurally invalid program: a global or
// persistent declaration where it is not allowed.
type DeclarationError struct {
	Name   string
	Reason string
}

func (e *DeclarationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Reason)
}

// LoadError reports a file that exists but could not be turned into a
// function.
type LoadError struct {
	File   string
	Line   int
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, msg)
	}
	return fmt.Sprintf("%s: %s", e.File, msg)
}

func (e *LoadError) Unwrap() error { return e.Err }
