//go:build !unix || !cgo

package memstream

import (
	"fmt"
	"syscall"
	"unsafe"
)

// MemStream is unavailable without cgo on a unix platform.
type MemStream struct{}

func Open() (*MemStream, error) {
	return nil, fmt.Errorf("memstream: requires cgo on a unix platform: %w", syscall.ENOSYS)
}

func (m *MemStream) File() unsafe.Pointer     { return nil }
func (m *MemStream) WriteString(string) error { return syscall.ENOSYS }
func (m *MemStream) Flush() error             { return syscall.ENOSYS }
func (m *MemStream) Bytes() []byte            { return nil }
func (m *MemStream) Close() error             { return nil }
