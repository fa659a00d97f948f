//go:build unix && cgo

package memstream

/*
#include <stdio.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"syscall"
	"unsafe"
)

// MemStream owns a FILE* produced by open_memstream together with the
// two cells (buffer pointer and buffer length) that libc updates in
// place as the stream grows. The cells live on the C heap so their
// addresses stay fixed for as long as the handle is open; libc writes
// through them out-of-band, not via return values.
type MemStream struct {
	fp   *C.FILE
	buf  **C.char
	size *C.size_t
}

// Open creates a new memory stream and flushes it once so that the
// buffer pointer is valid even before the first write.
func Open() (*MemStream, error) {
	buf := (**C.char)(C.calloc(1, C.size_t(unsafe.Sizeof((*C.char)(nil)))))
	if buf == nil {
		return nil, fmt.Errorf("memstream: alloc buffer cell: %w", syscall.ENOMEM)
	}
	size := (*C.size_t)(C.calloc(1, C.size_t(unsafe.Sizeof(C.size_t(0)))))
	if size == nil {
		C.free(unsafe.Pointer(buf))
		return nil, fmt.Errorf("memstream: alloc size cell: %w", syscall.ENOMEM)
	}

	fp, err := C.open_memstream(buf, size)
	if fp == nil {
		C.free(unsafe.Pointer(buf))
		C.free(unsafe.Pointer(size))
		if err == nil {
			err = syscall.EINVAL
		}
		return nil, fmt.Errorf("memstream: open_memstream: %w", err)
	}

	ms := &MemStream{fp: fp, buf: buf, size: size}
	if err := ms.Flush(); err != nil {
		ms.Close()
		return nil, err
	}
	if *ms.buf == nil {
		ms.Close()
		return nil, ErrNoBuffer
	}
	return ms, nil
}

// File returns the raw FILE* as an unsafe.Pointer so that callers in
// other packages can pass it to C functions. The pointer must not be
// retained past the MemStream's lifetime or closed by the caller.
func (m *MemStream) File() unsafe.Pointer {
	return unsafe.Pointer(m.fp)
}

// WriteString appends s to the stream through the stdio handle. Bytes
// are not visible in Bytes() until the next Flush.
func (m *MemStream) WriteString(s string) error {
	if m.fp == nil {
		return fmt.Errorf("memstream: write on closed stream: %w", syscall.EBADF)
	}
	cs := C.CString(s)
	defer C.free(unsafe.Pointer(cs))
	ret, err := C.fputs(cs, m.fp)
	if ret < 0 {
		if err == nil {
			err = syscall.EIO
		}
		return fmt.Errorf("memstream: fputs: %w", err)
	}
	return nil
}

// Flush synchronizes stdio's internal write buffer into the owned
// cells. Must be called after external writes before Bytes is trusted.
func (m *MemStream) Flush() error {
	if m.fp == nil {
		return fmt.Errorf("memstream: flush on closed stream: %w", syscall.EBADF)
	}
	ret, err := C.fflush(m.fp)
	if ret != 0 {
		if err == nil {
			err = syscall.EIO
		}
		return fmt.Errorf("memstream: fflush: %w", err)
	}
	return nil
}

// Bytes returns a zero-copy view over the flushed contents. The view is
// only valid until the next write, Flush or Close; it is empty before
// the first flushed write and after Close. Never dereferences a null
// buffer.
func (m *MemStream) Bytes() []byte {
	if m.buf == nil || m.size == nil || *m.buf == nil || *m.size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(*m.buf)), int(*m.size))
}

// Close releases the stream handle, the libc-grown buffer and the two
// owned cells, in that order. Idempotent: every field is zeroed on the
// first call and later calls are no-ops.
func (m *MemStream) Close() error {
	if m.fp != nil {
		C.fclose(m.fp)
		m.fp = nil
	}
	if m.buf != nil {
		if *m.buf != nil {
			C.free(unsafe.Pointer(*m.buf))
			*m.buf = nil
		}
		C.free(unsafe.Pointer(m.buf))
		m.buf = nil
	}
	if m.size != nil {
		C.free(unsafe.Pointer(m.size))
		m.size = nil
	}
	return nil
}
