// Package memstream wraps glibc's open_memstream(3): a writable stdio
// stream whose destination is a growable in-memory buffer owned by this
// package. The stream handle can be handed to C code that expects a
// FILE*, and the written bytes are readable back without copying after
// a flush.
//
// The package only does real work on Linux with cgo enabled; on other
// platforms Open returns an error.
package memstream

import "errors"

// ErrNoBuffer is returned by Open when the stream flushed successfully
// but libc still reports a null buffer pointer. This indicates a broken
// libc, not a caller mistake.
var ErrNoBuffer = errors.New("memstream: buffer is nil after flush")
