package engine

import (
	"errors"
	"fmt"
)

// ErrClosed reports use of a session after Close
var ErrClosed = errors.New("session is closed")

// CompileError is a syntax or declaration-resolution failure. The
// failed fragment leaves the program state unchanged.
type CompileError struct {
	Msg string
}

func (e *CompileError) Error() string { return "compile error: " + e.Msg }

// LinkError is a failure to resolve an import request to exactly one
// native symbol, or a prototype appearing outside any #lib block.
type LinkError struct {
	Msg string
}

func (e *LinkError) Error() string { return "link error: " + e.Msg }

// RuntimeFault is a failure during execution of well-compiled code.
// Declarations committed earlier in the same fragment stay committed.
type RuntimeFault struct {
	Msg string
}

func (e *RuntimeFault) Error() string { return "runtime fault: " + e.Msg }

func compileErrf(format string, args ...any) error {
	return &CompileError{Msg: fmt.Sprintf(format, args...)}
}

func linkErrf(format string, args ...any) error {
	return &LinkError{Msg: fmt.Sprintf(format, args...)}
}

func faultErr(err error) error {
	return &RuntimeFault{Msg: err.Error()}
}
