// Package mallocinfo provides safe access to glibc's malloc_info(3).
//
// MallocInfo opens a libc memory stream, lets glibc write its XML
// allocator report into it, and decodes the bytes into a typed
// report.Malloc tree. The native stream and its buffer are released on
// every exit path.
//
// malloc_info is glibc-specific: it reports nothing about Go's own
// runtime heap, only about allocations that went through the C
// allocator (cgo, C libraries linked into the process). On platforms
// without glibc the call is unavailable and MallocInfo returns an
// error; use Supported to check first.
package mallocinfo

import (
	"errors"
	"syscall"

	"github.com/genc-murat/mallocinfo/internal/memstream"
	"github.com/genc-murat/mallocinfo/pkg/report"
)

// ErrorKind classifies a failed MallocInfo call.
type ErrorKind int

const (
	// KindLibraryCall means a libc primitive (open_memstream,
	// malloc_info, fflush) returned a failure status. Errno carries the
	// platform error code when one was available.
	KindLibraryCall ErrorKind = iota
	// KindInvalidState means a libc primitive reported success but left
	// an impossible postcondition, such as a null buffer after a
	// successful flush. This points at the environment, not the caller.
	KindInvalidState
	// KindParse means the report bytes did not decode into the expected
	// document shape. Unknown type tags never cause this; only missing
	// or malformed structure does.
	KindParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindLibraryCall:
		return "library call"
	case KindInvalidState:
		return "invalid state"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Error is the only error type returned by MallocInfo.
type Error struct {
	Kind  ErrorKind
	Errno syscall.Errno // set for KindLibraryCall when known, else 0
	Op    string        // pipeline stage: open, malloc_info, flush, decode
	Err   error
}

func (e *Error) Error() string {
	msg := "mallocinfo"
	if e.Op != "" {
		msg += ": " + e.Op
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// classify maps a collaborator error onto the three error kinds.
func classify(op string, err error) *Error {
	e := &Error{Op: op, Err: err}
	var perr *report.ParseError
	switch {
	case errors.Is(err, memstream.ErrNoBuffer):
		e.Kind = KindInvalidState
	case errors.As(err, &perr):
		e.Kind = KindParse
	default:
		e.Kind = KindLibraryCall
		var errno syscall.Errno
		if errors.As(err, &errno) {
			e.Errno = errno
		}
	}
	return e
}
