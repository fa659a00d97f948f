//go:build !linux || !cgo

package mallocinfo

import (
	"syscall"

	"github.com/genc-murat/mallocinfo/pkg/report"
)

// Supported reports whether malloc_info is available in this build.
func Supported() bool { return false }

// MallocInfo always fails on builds without glibc's malloc_info.
func MallocInfo() (*report.Malloc, error) {
	return nil, &Error{
		Kind:  KindLibraryCall,
		Errno: syscall.ENOSYS,
		Op:    "malloc_info",
		Err:   syscall.ENOSYS,
	}
}
